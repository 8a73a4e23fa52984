// Package config loads topicsearch configuration from defaults, YAML files and
// environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectConfigName is the per-directory config file.
	ProjectConfigName = ".topicsearch.yaml"

	envPrefix = "TOPICSEARCH_"
)

// DefaultCategories is the 20 Newsgroups label set.
var DefaultCategories = []string{
	"alt.atheism",
	"comp.graphics",
	"comp.os.ms-windows.misc",
	"comp.sys.ibm.pc.hardware",
	"comp.sys.mac.hardware",
	"comp.windows.x",
	"misc.forsale",
	"rec.autos",
	"rec.motorcycles",
	"rec.sport.baseball",
	"rec.sport.hockey",
	"sci.crypt",
	"sci.electronics",
	"sci.med",
	"sci.space",
	"soc.religion.christian",
	"talk.politics.guns",
	"talk.politics.mideast",
	"talk.politics.misc",
	"talk.religion.misc",
}

// Config is the complete topicsearch configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier"`
	Corpus     CorpusConfig     `yaml:"corpus" json:"corpus"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Eval       EvalConfig       `yaml:"eval" json:"eval"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// SearchConfig configures fusion and orchestration.
// Alpha, RRF constant and confidence threshold can be overridden per
// environment with TOPICSEARCH_ALPHA, TOPICSEARCH_RRF_CONSTANT and
// TOPICSEARCH_CONFIDENCE_THRESHOLD.
type SearchConfig struct {
	// Alpha is the lexical weight in [0,1]; the semantic weight is 1-Alpha.
	Alpha float64 `yaml:"alpha" json:"alpha"`

	// RRFConstant is the RRF smoothing constant k. Default 60.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// CandidateCount is how many results each searcher is asked for.
	CandidateCount int `yaml:"candidate_count" json:"candidate_count"`

	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k" json:"max_top_k"`

	// ConfidenceThreshold is the strict lower bound a classifier prediction
	// must exceed before its category is used as a filter.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`

	// SearcherTimeout bounds each searcher call (e.g. "5s").
	SearcherTimeout string `yaml:"searcher_timeout" json:"searcher_timeout"`

	// LexicalBackend selects the keyword index: "bleve" (default) or "sqlite".
	LexicalBackend string `yaml:"lexical_backend" json:"lexical_backend"`

	// LexicalPrefilter pushes the category filter into the lexical searcher.
	LexicalPrefilter bool `yaml:"lexical_prefilter" json:"lexical_prefilter"`

	// TitleBoost weights title matches against body matches in the keyword index.
	TitleBoost float64 `yaml:"title_boost" json:"title_boost"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is one of static, ollama or openai.
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`

	OllamaHost      string `yaml:"ollama_host" json:"ollama_host"`
	OpenAIBaseURL   string `yaml:"openai_base_url" json:"openai_base_url"`
	OpenAIAPIKeyEnv string `yaml:"openai_api_key_env" json:"openai_api_key_env"`

	// CacheSize bounds the query embedding LRU. Zero disables caching.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// MaxChars truncates document text before embedding.
	MaxChars  int    `yaml:"max_chars" json:"max_chars"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
	Timeout   string `yaml:"timeout" json:"timeout"`
}

// ClassifierConfig configures the query classifier.
type ClassifierConfig struct {
	// Provider is one of centroid, ollama, hybrid or none.
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`
	Host     string `yaml:"host" json:"host"`
	Timeout  string `yaml:"timeout" json:"timeout"`

	// Temperature sharpens the centroid softmax; lower is more decisive.
	Temperature float64 `yaml:"temperature" json:"temperature"`
	CacheSize   int     `yaml:"cache_size" json:"cache_size"`
}

// CorpusConfig locates the corpus and names its category set.
type CorpusConfig struct {
	Path       string   `yaml:"path" json:"path"`
	Categories []string `yaml:"categories" json:"categories"`
}

// IndexConfig configures where indexes are stored.
type IndexConfig struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`
	Workers int    `yaml:"workers" json:"workers"`
}

// EvalConfig configures the evaluation harness.
type EvalConfig struct {
	SuiteFile string `yaml:"suite_file" json:"suite_file"`
	Workers   int    `yaml:"workers" json:"workers"`
	K         int    `yaml:"k" json:"k"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      bool   `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			Alpha:               0.5,
			RRFConstant:         60,
			CandidateCount:      100,
			DefaultTopK:         10,
			MaxTopK:             100,
			ConfidenceThreshold: 0.7,
			SearcherTimeout:     "5s",
			LexicalBackend:      "bleve",
			LexicalPrefilter:    false,
			TitleBoost:          2.0,
		},
		Embeddings: EmbeddingsConfig{
			Provider:        "static",
			Model:           "nomic-embed-text",
			Dimensions:      256,
			OllamaHost:      "http://localhost:11434",
			OpenAIBaseURL:   "",
			OpenAIAPIKeyEnv: "OPENAI_API_KEY",
			CacheSize:       1000,
			MaxChars:        1000,
			BatchSize:       32,
			Timeout:         "30s",
		},
		Classifier: ClassifierConfig{
			Provider:    "centroid",
			Model:       "qwen3:0.6b",
			Host:        "http://localhost:11434",
			Timeout:     "5s",
			Temperature: 0.05,
			CacheSize:   1000,
		},
		Corpus: CorpusConfig{
			Path:       "corpus.jsonl",
			Categories: append([]string(nil), DefaultCategories...),
		},
		Index: IndexConfig{
			DataDir: ".topicsearch",
			Workers: 4,
		},
		Eval: EvalConfig{
			SuiteFile: "eval.yaml",
			Workers:   4,
			K:         10,
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      true,
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the user configuration file path:
// $XDG_CONFIG_HOME/topicsearch/config.yaml, else ~/.config/topicsearch/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "topicsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "topicsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "topicsearch", "config.yaml")
}

// Load builds the configuration for dir. Precedence, lowest first:
//  1. Defaults
//  2. User config
//  3. Project config (.topicsearch.yaml in dir)
//  4. TOPICSEARCH_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if path := filepath.Join(dir, ProjectConfigName); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile loads a single YAML file on top of defaults, without env overrides.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML decodes path over the current values. Keys absent from the file
// keep their previous value, so explicit zeros (alpha: 0) are honored.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies TOPICSEARCH_* variables. Unparseable numbers are errors.
func (c *Config) applyEnvOverrides() error {
	if v, ok := lookupEnv("ALPHA"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sALPHA: %w", envPrefix, err)
		}
		c.Search.Alpha = f
	}
	if v, ok := lookupEnv("RRF_CONSTANT"); ok {
		k, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRRF_CONSTANT: %w", envPrefix, err)
		}
		c.Search.RRFConstant = k
	}
	if v, ok := lookupEnv("CONFIDENCE_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sCONFIDENCE_THRESHOLD: %w", envPrefix, err)
		}
		c.Search.ConfidenceThreshold = f
	}
	if v, ok := lookupEnv("LEXICAL_BACKEND"); ok {
		c.Search.LexicalBackend = v
	}
	if v, ok := lookupEnv("EMBEDDINGS_PROVIDER"); ok {
		c.Embeddings.Provider = v
	}
	if v, ok := lookupEnv("EMBEDDINGS_MODEL"); ok {
		c.Embeddings.Model = v
	}
	if v, ok := lookupEnv("OLLAMA_HOST"); ok {
		c.Embeddings.OllamaHost = v
		c.Classifier.Host = v
	}
	if v, ok := lookupEnv("CLASSIFIER_PROVIDER"); ok {
		c.Classifier.Provider = v
	}
	if v, ok := lookupEnv("DATA_DIR"); ok {
		c.Index.DataDir = v
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	return nil
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Validate checks the configuration for values the search pipeline cannot run with.
func (c *Config) Validate() error {
	s := c.Search
	if math.IsNaN(s.Alpha) || s.Alpha < 0 || s.Alpha > 1 {
		return fmt.Errorf("search.alpha must be between 0 and 1, got %v", s.Alpha)
	}
	if s.RRFConstant < 0 {
		return fmt.Errorf("search.rrf_constant must be non-negative, got %d", s.RRFConstant)
	}
	if s.CandidateCount < 1 {
		return fmt.Errorf("search.candidate_count must be positive, got %d", s.CandidateCount)
	}
	if s.DefaultTopK < 1 || s.MaxTopK < s.DefaultTopK {
		return fmt.Errorf("search.default_top_k must be in [1, max_top_k], got %d (max %d)", s.DefaultTopK, s.MaxTopK)
	}
	if math.IsNaN(s.ConfidenceThreshold) || s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return fmt.Errorf("search.confidence_threshold must be between 0 and 1, got %v", s.ConfidenceThreshold)
	}
	if _, err := parseDuration("search.searcher_timeout", s.SearcherTimeout); err != nil {
		return err
	}
	if s.TitleBoost <= 0 {
		return fmt.Errorf("search.title_boost must be positive, got %v", s.TitleBoost)
	}
	if err := oneOf("search.lexical_backend", s.LexicalBackend, "bleve", "sqlite"); err != nil {
		return err
	}

	if err := oneOf("embeddings.provider", c.Embeddings.Provider, "static", "ollama", "openai"); err != nil {
		return err
	}
	if c.Embeddings.Dimensions < 1 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.MaxChars < 1 {
		return fmt.Errorf("embeddings.max_chars must be positive, got %d", c.Embeddings.MaxChars)
	}
	if _, err := parseDuration("embeddings.timeout", c.Embeddings.Timeout); err != nil {
		return err
	}

	if err := oneOf("classifier.provider", c.Classifier.Provider, "centroid", "ollama", "hybrid", "none"); err != nil {
		return err
	}
	if _, err := parseDuration("classifier.timeout", c.Classifier.Timeout); err != nil {
		return err
	}
	if c.Classifier.Temperature <= 0 {
		return fmt.Errorf("classifier.temperature must be positive, got %v", c.Classifier.Temperature)
	}

	if len(c.Corpus.Categories) == 0 {
		return fmt.Errorf("corpus.categories must not be empty")
	}
	seen := make(map[string]bool, len(c.Corpus.Categories))
	for _, cat := range c.Corpus.Categories {
		if strings.TrimSpace(cat) == "" {
			return fmt.Errorf("corpus.categories contains an empty label")
		}
		if seen[cat] {
			return fmt.Errorf("corpus.categories contains duplicate %q", cat)
		}
		seen[cat] = true
	}

	if c.Eval.K < 1 {
		return fmt.Errorf("eval.k must be positive, got %d", c.Eval.K)
	}

	return oneOf("logging.level", strings.ToLower(c.Logging.Level), "debug", "info", "warn", "warning", "error")
}

// SearcherTimeoutDuration returns the parsed per-searcher timeout.
func (s SearchConfig) SearcherTimeoutDuration() time.Duration {
	d, _ := parseDuration("", s.SearcherTimeout)
	return d
}

// TimeoutDuration returns the parsed embedding request timeout.
func (e EmbeddingsConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration("", e.Timeout)
	return d
}

// TimeoutDuration returns the parsed classifier timeout.
func (c ClassifierConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration("", c.Timeout)
	return d
}

// IndexPath returns path joined under the data directory.
func (i IndexConfig) IndexPath(name string) string {
	return filepath.Join(i.DataDir, name)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func parseDuration(field, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", field, v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, v)
	}
	return d, nil
}

func oneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), v)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
