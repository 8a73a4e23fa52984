// Package corpus holds the immutable document collection and its category set.
package corpus

import (
	"fmt"
	"strings"
)

// UnknownCategory is reported when a classifier cannot name a known category.
const UnknownCategory = "unknown"

// Document is a single corpus entry. Documents are immutable once loaded.
type Document struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`

	// Embedding is optional and only present for corpora with precomputed vectors.
	Embedding []float32 `json:"embedding,omitempty"`
}

// Text returns the title and content joined, as fed to embedders.
func (d *Document) Text() string {
	if d.Title == "" {
		return d.Content
	}
	return d.Title + "\n" + d.Content
}

// CategorySet is the fixed, enumerable set of topical categories.
// The zero value is an empty set.
type CategorySet struct {
	names []string
	index map[string]struct{}
}

// NewCategorySet builds a set from names, rejecting empty and duplicate labels.
// The set preserves the order of names.
func NewCategorySet(names []string) (CategorySet, error) {
	set := CategorySet{
		names: make([]string, 0, len(names)),
		index: make(map[string]struct{}, len(names)),
	}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return CategorySet{}, fmt.Errorf("empty category label")
		}
		if n == UnknownCategory {
			return CategorySet{}, fmt.Errorf("category %q is reserved", n)
		}
		if _, dup := set.index[n]; dup {
			return CategorySet{}, fmt.Errorf("duplicate category %q", n)
		}
		set.index[n] = struct{}{}
		set.names = append(set.names, n)
	}
	return set, nil
}

// MustCategorySet is NewCategorySet for static label lists.
func MustCategorySet(names ...string) CategorySet {
	set, err := NewCategorySet(names)
	if err != nil {
		panic(err)
	}
	return set
}

// Contains reports whether name is a member of the set.
func (s CategorySet) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Names returns the categories in configuration order.
func (s CategorySet) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of categories.
func (s CategorySet) Len() int {
	return len(s.names)
}
