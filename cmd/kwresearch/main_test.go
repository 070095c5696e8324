package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/kwresearch/pkg/kwresearch/config"
	"github.com/cognicore/kwresearch/pkg/kwresearch/internalerr"
)

const designReport = "Keyword Phrase,Search Volume,Position (Rank),Title Density,B0AAA\n" +
	"red shoes,500,2,1,4\n" +
	"running shoes,900,1,1,2\n" +
	"red laces,100,5,0,9\n"

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvAPIKey, "")
	t.Setenv(config.EnvOpenAIAPIKey, "")
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append(args, "--log-mode", "prod"))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootsCommand(t *testing.T) {
	design := writeTemp(t, "design.csv", designReport)

	out, err := execute(t, "roots", "--design", design)
	if err != nil {
		t.Fatalf("roots: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header and 4 roots, got %q", out)
	}
	if !strings.HasPrefix(lines[1], "shoe ") || !strings.Contains(lines[1], "1400") {
		t.Errorf("shoe should lead with 1400, got %q", lines[1])
	}
}

func TestRootsCommandTop(t *testing.T) {
	design := writeTemp(t, "design.csv", designReport)

	out, err := execute(t, "roots", "--design", design, "--top", "1")
	if err != nil {
		t.Fatalf("roots: %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(out), "\n")); n != 2 {
		t.Errorf("expected one root, got %d lines", n-1)
	}
}

func TestRootsCommandNeedsAReport(t *testing.T) {
	if _, err := execute(t, "roots"); err == nil {
		t.Fatal("expected error without reports")
	}
}

func TestRootsCommandMissingColumn(t *testing.T) {
	design := writeTemp(t, "design.csv", "Keyword Phrase,B0AAA\nred shoes,1\n")
	_, err := execute(t, "roots", "--design", design)
	if !errors.Is(err, internalerr.ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}

func TestRunRequiresAPIKey(t *testing.T) {
	design := writeTemp(t, "design.csv", designReport)
	revenue := writeTemp(t, "revenue.csv", designReport)

	out, err := execute(t, "run", "--design", design, "--revenue", revenue, "--asin", "B0C1234567")
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if out != "" {
		t.Errorf("no events expected before the pipeline starts, got %q", out)
	}
}

func TestRunRequiresFlags(t *testing.T) {
	design := writeTemp(t, "design.csv", designReport)
	if _, err := execute(t, "run", "--design", design); err == nil {
		t.Fatal("expected error for missing --revenue and --asin")
	}
}

func TestRunSEOFlagsExclusive(t *testing.T) {
	design := writeTemp(t, "design.csv", designReport)
	_, err := execute(t, "run", "--design", design, "--revenue", design, "--asin", "B0C1234567", "--seo", "--no-seo")
	if err == nil {
		t.Fatal("expected error for --seo with --no-seo")
	}
}

func TestLoadProduct(t *testing.T) {
	path := writeTemp(t, "product.yaml", `
title: Red Canvas Sneaker
bullets:
  - Canvas upper
  - Rubber sole
description: A light shoe.
`)
	static, err := loadProduct(path)
	if err != nil {
		t.Fatalf("loadProduct: %v", err)
	}
	if static.Product.Title != "Red Canvas Sneaker" || len(static.Product.Bullets) != 2 {
		t.Errorf("unexpected product %+v", static.Product)
	}

	bad := writeTemp(t, "bad.yaml", "bullets: [a, b\n")
	if _, err := loadProduct(bad); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestOpenCacheDrivers(t *testing.T) {
	ctx := context.Background()
	c, err := openCache(ctx, config.Cache{Driver: config.CacheNone})
	if err != nil || c != nil {
		t.Fatalf("none driver: %v %v", c, err)
	}
	c, err = openCache(ctx, config.Cache{Driver: config.CacheMemory})
	if err != nil || c == nil {
		t.Fatalf("memory driver: %v", err)
	}
	c.Close()

	c, err = openCache(ctx, config.Cache{Driver: config.CacheSQLite, Path: filepath.Join(t.TempDir(), "kw.db")})
	if err != nil {
		t.Fatalf("sqlite driver: %v", err)
	}
	c.Close()
}
