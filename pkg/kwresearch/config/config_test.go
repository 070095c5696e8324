package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cognicore/kwresearch/pkg/kwresearch/internalerr"
	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvModel, "")

	path := writeFile(t, "kw.yaml", `
llm:
  model: local-model
  timeout: 15s
concurrency: 2
batch:
  relevance: 10
pipeline:
  min_relevance_score: 5
seo:
  categories: [design_specific]
cache:
  driver: sqlite
  path: /tmp/kw.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "local-model" || cfg.LLM.Timeout != 15*time.Second {
		t.Errorf("llm not loaded: %+v", cfg.LLM)
	}
	if cfg.LLM.BaseURL != Default().LLM.BaseURL {
		t.Errorf("base url default lost: %q", cfg.LLM.BaseURL)
	}
	if cfg.Concurrency != 2 || cfg.Batch.Relevance != 10 || cfg.Batch.BrandDetect != 100 {
		t.Errorf("batch settings wrong: %d %+v", cfg.Concurrency, cfg.Batch)
	}
	if cfg.Pipeline.MinRelevanceScore != 5 || cfg.Pipeline.Marketplace != "US" {
		t.Errorf("pipeline settings wrong: %+v", cfg.Pipeline)
	}
	cats := cfg.SEOCategories()
	if len(cats) != 1 || cats[0] != keyword.CategoryDesignSpecific {
		t.Errorf("seo categories = %v", cats)
	}
	if cfg.Cache.Driver != CacheSQLite {
		t.Errorf("cache driver = %q", cfg.Cache.Driver)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "sk-openai")
	t.Setenv(EnvBaseURL, "http://localhost:8080/v1")
	t.Setenv(EnvModel, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "sk-openai" {
		t.Errorf("api key = %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("base url = %q", cfg.LLM.BaseURL)
	}

	t.Setenv(EnvAPIKey, "sk-own")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "sk-own" {
		t.Errorf("dedicated key should win, got %q", cfg.LLM.APIKey)
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Concurrency = 0
	cfg.Pipeline.MinRelevanceScore = 11
	cfg.Cache.Driver = "redis"
	cfg.SEO.Categories = []string{"bogus"}

	err := cfg.Validate()
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	for _, want := range []string{"concurrency", "min_relevance_score", "cache.driver", "bogus"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "concurrency: [1, 2\n")
	if _, err := Load(path); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSQLiteNeedsPath(t *testing.T) {
	cfg := Default()
	cfg.Cache.Driver = CacheSQLite
	if err := cfg.Validate(); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadStoplist(t *testing.T) {
	path := writeFile(t, "stoplist.yaml", `terms:
  - shirt
  - tee
  - gift
`)
	sl, err := LoadStoplist(path)
	if err != nil {
		t.Fatalf("Failed to load stoplist: %v", err)
	}
	if len(sl.Terms) != 3 {
		t.Errorf("Expected 3 terms, got %d", len(sl.Terms))
	}
}

func TestComponents(t *testing.T) {
	cfg := Default()
	cfg.Stoplist = writeFile(t, "stoplist.yaml", "terms: [shirt]\n")
	cfg.LanguageMarkers = map[string][]string{"nl": {"voor"}}

	comp, err := cfg.Components()
	if err != nil {
		t.Fatalf("Components: %v", err)
	}
	if !comp.Tokenizer.IsStopword("shirt") || !comp.Tokenizer.IsStopword("the") {
		t.Errorf("stoplist should extend the defaults")
	}
	tags := keyword.FormatTags(comp.Tagger.Tag("cadeau voor mama", nil, nil))
	if tags != "language:nl" {
		t.Errorf("custom markers not applied: %s", tags)
	}

	cfg.Stoplist = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := cfg.Components(); err == nil {
		t.Fatal("expected error for missing stoplist")
	}
}
