package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/kwresearch/internal/llm"
	"github.com/cognicore/kwresearch/internal/logger"
	"github.com/cognicore/kwresearch/internal/metrics"
	"github.com/cognicore/kwresearch/pkg/kwresearch/ai"
	"github.com/cognicore/kwresearch/pkg/kwresearch/config"
	"github.com/cognicore/kwresearch/pkg/kwresearch/ingest"
	"github.com/cognicore/kwresearch/pkg/kwresearch/internalerr"
	"github.com/cognicore/kwresearch/pkg/kwresearch/pipeline"
	"github.com/cognicore/kwresearch/pkg/kwresearch/productinfo"
	"github.com/cognicore/kwresearch/pkg/kwresearch/store"
	"github.com/cognicore/kwresearch/pkg/kwresearch/store/memstore"
	"github.com/cognicore/kwresearch/pkg/kwresearch/store/sqlite"
)

// buildPipeline wires the pipeline from configuration. The cleanup function
// closes the verdict cache.
func buildPipeline(ctx context.Context, cfg config.Config, products productinfo.Resolver, m *metrics.Metrics, log *logger.Logger) (*pipeline.Pipeline, func(), error) {
	if cfg.LLM.APIKey == "" {
		return nil, nil, fmt.Errorf("no API key: set %s or %s: %w", config.EnvAPIKey, config.EnvOpenAIAPIKey, internalerr.ErrInvalidConfig)
	}
	client := &llm.Client{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		HTTPClient:  &http.Client{Timeout: cfg.LLM.Timeout},
	}

	cache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if cache != nil {
			if err := cache.Close(); err != nil {
				log.Warn("close cache", "error", err)
			}
		}
	}

	if products == nil {
		opts := []productinfo.PageOption{productinfo.WithHTTPClient(&http.Client{Timeout: cfg.Product.Timeout})}
		if cfg.Product.UserAgent != "" {
			opts = append(opts, productinfo.WithUserAgent(cfg.Product.UserAgent))
		}
		products = productinfo.NewPageResolver(opts...)
	}

	p, err := pipeline.New(cfg, ai.NewLLM(client).Capabilities(), products, cache, m, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return p, cleanup, nil
}

func openCache(ctx context.Context, c config.Cache) (store.Cache, error) {
	switch strings.ToLower(c.Driver) {
	case config.CacheMemory:
		return memstore.New(), nil
	case config.CacheSQLite:
		return sqlite.OpenSQLite(ctx, c.Path)
	default:
		return nil, nil
	}
}

// productFile is the YAML form of a product supplied by hand.
type productFile struct {
	ASIN        string   `yaml:"asin"`
	Title       string   `yaml:"title"`
	Bullets     []string `yaml:"bullets"`
	Description string   `yaml:"description"`
}

func loadProduct(path string) (productinfo.Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return productinfo.Static{}, fmt.Errorf("read product file: %w", err)
	}
	var pf productFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return productinfo.Static{}, fmt.Errorf("parse product file %s: %v: %w", path, err, internalerr.ErrInvalidInput)
	}
	return productinfo.Static{Product: productinfo.Product{
		ASIN:        pf.ASIN,
		Title:       pf.Title,
		Bullets:     pf.Bullets,
		Description: pf.Description,
	}}, nil
}

func readReport(path string) (ingest.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingest.Table{}, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	tbl, err := ingest.ReadCSV(f)
	if err != nil {
		return ingest.Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return tbl, nil
}
