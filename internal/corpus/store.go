package corpus

import (
	"fmt"
	"sort"
)

// Store is the read-only id to document lookup shared by all queries.
// It is safe for concurrent use because nothing mutates it after NewStore.
type Store struct {
	docs       map[string]*Document
	order      []string
	categories CategorySet
	counts     map[string]int
}

// NewStore indexes docs by id. Every document must carry a category from
// categories and ids must be unique.
func NewStore(docs []Document, categories CategorySet) (*Store, error) {
	s := &Store{
		docs:       make(map[string]*Document, len(docs)),
		order:      make([]string, 0, len(docs)),
		categories: categories,
		counts:     make(map[string]int, categories.Len()),
	}
	for i := range docs {
		d := docs[i]
		if d.ID == "" {
			return nil, fmt.Errorf("document %d has no id", i)
		}
		if _, dup := s.docs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate document id %q", d.ID)
		}
		if !categories.Contains(d.Category) {
			return nil, fmt.Errorf("document %q has unknown category %q", d.ID, d.Category)
		}
		s.docs[d.ID] = &d
		s.order = append(s.order, d.ID)
		s.counts[d.Category]++
	}
	return s, nil
}

// Get returns the document with id.
func (s *Store) Get(id string) (*Document, bool) {
	d, ok := s.docs[id]
	return d, ok
}

// CategoryOf returns the category of id.
func (s *Store) CategoryOf(id string) (string, bool) {
	d, ok := s.docs[id]
	if !ok {
		return "", false
	}
	return d.Category, true
}

// Snapshot returns the categories of the given ids. Unknown ids are omitted.
func (s *Store) Snapshot(ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if cat, ok := s.CategoryOf(id); ok {
			out[id] = cat
		}
	}
	return out
}

// Len returns the number of documents.
func (s *Store) Len() int {
	return len(s.order)
}

// Categories returns the category set the store was built with.
func (s *Store) Categories() CategorySet {
	return s.categories
}

// Documents returns all documents in load order.
func (s *Store) Documents() []*Document {
	out := make([]*Document, len(s.order))
	for i, id := range s.order {
		out[i] = s.docs[id]
	}
	return out
}

// CategoryCount is one row of Stats.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Stats returns the document count per category, including empty categories,
// sorted by category name.
func (s *Store) Stats() []CategoryCount {
	out := make([]CategoryCount, 0, s.categories.Len())
	for _, c := range s.categories.Names() {
		out = append(out, CategoryCount{Category: c, Count: s.counts[c]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
