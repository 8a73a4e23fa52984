package eval

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
)

// Suite is a set of judged queries.
type Suite struct {
	Queries []Case `yaml:"queries"`
}

// Case is one judged query. K and Category are optional.
type Case struct {
	ID       string   `yaml:"id"`
	Query    string   `yaml:"query"`
	Relevant []string `yaml:"relevant"`

	// Category is the expected classification, scored for accuracy when set.
	Category string `yaml:"category,omitempty"`

	// K overrides the harness cutoff for this query.
	K int `yaml:"k,omitempty"`
}

// LoadSuite reads and validates a YAML suite file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	return ParseSuite(data)
}

// ParseSuite decodes and validates a YAML suite.
func ParseSuite(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, serrors.ValidationError("parse suite", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate fills missing ids and rejects empty or duplicate cases.
func (s *Suite) Validate() error {
	if len(s.Queries) == 0 {
		return serrors.ValidationError("suite has no queries", nil)
	}
	seen := make(map[string]struct{}, len(s.Queries))
	for i := range s.Queries {
		c := &s.Queries[i]
		if c.ID == "" {
			c.ID = fmt.Sprintf("q%d", i+1)
		}
		if _, dup := seen[c.ID]; dup {
			return serrors.ValidationError(fmt.Sprintf("duplicate query id %q", c.ID), nil)
		}
		seen[c.ID] = struct{}{}

		if strings.TrimSpace(c.Query) == "" {
			return serrors.ValidationError(fmt.Sprintf("query %s: empty query text", c.ID), nil)
		}
		if c.K < 0 {
			return serrors.ValidationError(fmt.Sprintf("query %s: k must not be negative", c.ID), nil)
		}
	}
	return nil
}
