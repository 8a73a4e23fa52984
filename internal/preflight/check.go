package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/topicsearch/internal/config"
	"github.com/Aman-CERP/topicsearch/internal/embed"
	"github.com/Aman-CERP/topicsearch/internal/output"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// EmbedderFactory builds the embedder probed by CheckEmbedder.
type EmbedderFactory func(ctx context.Context, cfg config.EmbeddingsConfig) (embed.Embedder, error)

// Checker performs preflight validation checks.
type Checker struct {
	cfg         *config.Config
	corpusPath  string
	newEmbedder EmbedderFactory
	verbose     bool
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithCorpusPath overrides cfg.Corpus.Path.
func WithCorpusPath(path string) Option {
	return func(c *Checker) {
		c.corpusPath = path
	}
}

// WithEmbedderFactory replaces embed.NewFromConfig.
func WithEmbedderFactory(f EmbedderFactory) Option {
	return func(c *Checker) {
		c.newEmbedder = f
	}
}

// New creates a Checker for cfg.
func New(cfg *config.Config, opts ...Option) *Checker {
	c := &Checker{
		cfg:         cfg,
		corpusPath:  cfg.Corpus.Path,
		newEmbedder: embed.NewFromConfig,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks and returns the results.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	return []CheckResult{
		c.CheckConfig(),
		c.CheckWritePermissions(),
		c.CheckDiskSpace(),
		c.CheckCorpus(),
		c.CheckIndex(),
		c.CheckEmbedder(ctx),
	}
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "failed", "ready_with_warnings" or "ready".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results with the summary and the list of issues.
func (c *Checker) PrintResults(out *output.Writer, results []CheckResult) {
	out.Header("topicsearch System Check")
	out.Newline()

	for _, r := range results {
		line := fmt.Sprintf("[%s] %s: %s", r.Status, r.Name, r.Message)
		switch {
		case r.IsCritical():
			out.Error(line)
		case r.Status != StatusPass:
			out.Warning(line)
		default:
			out.Status("", line)
		}
		if c.verbose && r.Details != "" {
			out.Dim("      " + r.Details)
		}
	}

	out.Newline()
	out.Statusf("", "Status: %s", strings.ToUpper(c.SummaryStatus(results)))

	var warnings, errors []string
	for _, r := range results {
		if r.IsCritical() {
			errors = append(errors, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(errors) > 0 {
		out.Newline()
		out.Statusf("", "%d error(s):", len(errors))
		for _, e := range errors {
			out.Statusf("", "  - %s", e)
		}
	}

	if len(warnings) > 0 {
		out.Newline()
		out.Statusf("", "%d warning(s):", len(warnings))
		for _, w := range warnings {
			out.Statusf("", "  - %s", w)
		}
	}
}

// CheckConfig validates the loaded configuration.
func (c *Checker) CheckConfig() CheckResult {
	result := CheckResult{
		Name:     "config",
		Required: true,
	}
	if err := c.cfg.Validate(); err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	result.Status = StatusPass
	result.Message = "OK"
	result.Details = fmt.Sprintf("%d categories, embeddings=%s, classifier=%s",
		len(c.cfg.Corpus.Categories), c.cfg.Embeddings.Provider, c.cfg.Classifier.Provider)
	return result
}

// CheckWritePermissions checks that the data directory can be created and written.
func (c *Checker) CheckWritePermissions() CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
	}

	dir := c.cfg.Index.DataDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}

	testFile := filepath.Join(dir, ".preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = "OK"
	result.Details = dir
	return result
}
