// Package config loads the research pipeline settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/kwresearch/pkg/kwresearch/internalerr"
	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
)

// Environment variables that override file values.
const (
	EnvAPIKey       = "KWRESEARCH_LLM_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvBaseURL      = "KWRESEARCH_LLM_BASE_URL"
	EnvModel        = "KWRESEARCH_LLM_MODEL"
)

// Cache drivers.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
)

// Config is the full set of pipeline settings.
type Config struct {
	LLM         LLM      `yaml:"llm"`
	Concurrency int      `yaml:"concurrency"`
	Batch       Batch    `yaml:"batch"`
	Retry       Retry    `yaml:"retry"`
	Ingest      Ingest   `yaml:"ingest"`
	Pipeline    Pipeline `yaml:"pipeline"`
	SEO         SEO      `yaml:"seo"`
	Cache       Cache    `yaml:"cache"`
	Output      Output   `yaml:"output"`
	Log         Log      `yaml:"log"`
	Product     Product  `yaml:"product"`

	// Stoplist is an optional YAML file with extra root stop words.
	Stoplist string `yaml:"stoplist"`
	// LanguageMarkers replaces the default marker words per language code.
	LanguageMarkers map[string][]string `yaml:"language_markers"`
}

type LLM struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Batch struct {
	BrandDetect int `yaml:"brand_detect"`
	BrandVerify int `yaml:"brand_verify"`
	Relevance   int `yaml:"relevance"`
}

type Retry struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

type Ingest struct {
	MinCompetitorHits    int `yaml:"min_competitor_hits"`
	CompetitorRankCutoff int `yaml:"competitor_rank_cutoff"`
}

type Pipeline struct {
	// MinRelevanceScore drops non-branded rows scoring below it from the
	// evaluation output. Zero keeps every row.
	MinRelevanceScore int    `yaml:"min_relevance_score"`
	Marketplace       string `yaml:"marketplace"`
}

type SEO struct {
	Enabled           bool     `yaml:"enabled"`
	TitleBudget       int      `yaml:"title_budget"`
	MobileBudget      int      `yaml:"mobile_budget"`
	BulletBudget      int      `yaml:"bullet_budget"`
	BulletCount       int      `yaml:"bullet_count"`
	IncludeDesignRoot bool     `yaml:"include_design_root"`
	Categories        []string `yaml:"categories"`
}

type Cache struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type Output struct {
	Dir     string `yaml:"dir"`
	RunLogs bool   `yaml:"run_logs"`
}

type Log struct {
	Mode string `yaml:"mode"`
}

type Product struct {
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		LLM: LLM{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		Concurrency: 4,
		Batch:       Batch{BrandDetect: 100, BrandVerify: 50, Relevance: 20},
		Retry:       Retry{Attempts: 3, Backoff: 500 * time.Millisecond, MaxBackoff: 5 * time.Second},
		Ingest:      Ingest{CompetitorRankCutoff: 11},
		Pipeline:    Pipeline{Marketplace: "US"},
		SEO: SEO{
			Enabled:           true,
			TitleBudget:       200,
			MobileBudget:      80,
			BulletBudget:      250,
			BulletCount:       5,
			IncludeDesignRoot: true,
			Categories:        []string{string(keyword.CategoryRelevant), string(keyword.CategoryDesignSpecific)},
		},
		Cache:   Cache{Driver: CacheNone},
		Output:  Output{Dir: "results"},
		Log:     Log{Mode: "dev"},
		Product: Product{Timeout: 30 * time.Second},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path loads only the defaults and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %v: %w", path, err, internalerr.ErrInvalidConfig)
		}
	}
	cfg.applyEnv(os.Getenv)
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIKey); v != "" {
		c.LLM.APIKey = v
	} else if v := getenv(EnvOpenAIAPIKey); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		c.LLM.BaseURL = v
	}
	if v := getenv(EnvModel); v != "" {
		c.LLM.Model = v
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Concurrency < 1 {
		bad("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.LLM.Timeout <= 0 {
		bad("llm.timeout must be positive")
	}
	if c.Batch.BrandDetect < 1 || c.Batch.BrandVerify < 1 || c.Batch.Relevance < 1 {
		bad("batch sizes must be at least 1")
	}
	if c.Retry.Attempts < 1 {
		bad("retry.attempts must be at least 1")
	}
	if c.Retry.Backoff < 0 || c.Retry.MaxBackoff < 0 {
		bad("retry backoff must not be negative")
	}
	if c.Ingest.MinCompetitorHits < 0 {
		bad("ingest.min_competitor_hits must not be negative")
	}
	if s := c.Pipeline.MinRelevanceScore; s < 0 || s > 10 {
		bad("pipeline.min_relevance_score must be within 0-10, got %d", s)
	}
	if c.SEO.TitleBudget < 1 || c.SEO.BulletBudget < 1 || c.SEO.BulletCount < 1 {
		bad("seo budgets must be at least 1")
	}
	if c.SEO.MobileBudget < 1 || c.SEO.MobileBudget > c.SEO.TitleBudget {
		bad("seo.mobile_budget must be within 1-%d", c.SEO.TitleBudget)
	}
	for _, s := range c.SEO.Categories {
		if _, ok := keyword.ParseCategory(s); !ok {
			bad("seo.categories: unknown category %q", s)
		}
	}
	switch strings.ToLower(c.Cache.Driver) {
	case "", CacheNone, CacheMemory:
	case CacheSQLite:
		if c.Cache.Path == "" {
			bad("cache.path is required for the sqlite driver")
		}
	default:
		bad("cache.driver %q is not one of none, memory, sqlite", c.Cache.Driver)
	}
	if c.Output.Dir == "" {
		bad("output.dir must be set")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", internalerr.ErrInvalidConfig, errors.Join(errs...))
}

// SEOCategories returns the parsed pool categories.
func (c Config) SEOCategories() []keyword.Category {
	out := make([]keyword.Category, 0, len(c.SEO.Categories))
	for _, s := range c.SEO.Categories {
		if cat, ok := keyword.ParseCategory(s); ok {
			out = append(out, cat)
		}
	}
	return out
}

// Stoplist is a list of stop words.
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stop words from a YAML file.
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}
