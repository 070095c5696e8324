package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/cognicore/kwresearch/internal/metrics"
	"github.com/cognicore/kwresearch/pkg/kwresearch/pipeline"
	"github.com/cognicore/kwresearch/pkg/kwresearch/productinfo"
	"github.com/cognicore/kwresearch/pkg/kwresearch/progress"
	"github.com/cognicore/kwresearch/pkg/kwresearch/seo"
)

type runFlags struct {
	design      string
	revenue     string
	asin        string
	marketplace string
	productFile string
	seo         bool
	noSEO       bool
	title       string
	bullets     []string
	mainRoot    string
	designRoot  string
	metricsFile string
	requestID   string
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Research keywords for one product",
		Example: `  kwresearch run --design design.csv --revenue revenue.csv --asin B0C1234567
  kwresearch run --design d.csv --revenue r.csv --asin B0C1234567 --product-file product.yaml --title "Old title"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResearch(cmd, g, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.design, "design", "", "design keyword report CSV (required)")
	fl.StringVar(&f.revenue, "revenue", "", "revenue keyword report CSV (required)")
	fl.StringVar(&f.asin, "asin", "", "product ASIN or product page URL (required)")
	fl.StringVar(&f.marketplace, "marketplace", "", "marketplace code, e.g. US or DE")
	fl.StringVar(&f.productFile, "product-file", "", "YAML file with title, bullets and description; skips fetching the product page")
	fl.BoolVar(&f.seo, "seo", false, "always add the listing optimization")
	fl.BoolVar(&f.noSEO, "no-seo", false, "skip the listing optimization")
	fl.StringVar(&f.title, "title", "", "current listing title (defaults to the product title)")
	fl.StringArrayVar(&f.bullets, "bullet", nil, "current listing bullet; repeat for each bullet")
	fl.StringVar(&f.mainRoot, "main-root", "", "root that must lead the title")
	fl.StringVar(&f.designRoot, "design-root", "", "design root to place after the main root")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file")
	fl.StringVar(&f.requestID, "request-id", "", "caller request id added to the logs")
	for _, name := range []string{"design", "revenue", "asin"} {
		_ = cmd.MarkFlagRequired(name)
	}
	cmd.MarkFlagsMutuallyExclusive("seo", "no-seo")
	return cmd
}

func runResearch(cmd *cobra.Command, g *globalFlags, f *runFlags) error {
	ctx := cmd.Context()
	cfg, log, err := g.load()
	if err != nil {
		return err
	}
	defer log.Sync()

	design, err := readReport(f.design)
	if err != nil {
		return err
	}
	revenue, err := readReport(f.revenue)
	if err != nil {
		return err
	}

	var products productinfo.Resolver
	if f.productFile != "" {
		static, err := loadProduct(f.productFile)
		if err != nil {
			return err
		}
		products = static
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	p, cleanup, err := buildPipeline(ctx, cfg, products, m, log)
	if err != nil {
		return err
	}
	defer cleanup()

	req := pipeline.Request{
		ID:              f.requestID,
		Design:          design,
		Revenue:         revenue,
		AsinOrURL:       f.asin,
		Marketplace:     f.marketplace,
		OptimizeListing: (cfg.SEO.Enabled || f.seo) && !f.noSEO,
		MainRoot:        f.mainRoot,
		DesignRoot:      f.designRoot,
	}
	if f.title != "" || len(f.bullets) > 0 {
		req.Current = &seo.Draft{Title: f.title, Bullets: f.bullets}
	}

	_, runErr := p.Run(ctx, req, progress.NewJSONLines(cmd.OutOrStdout()))

	if f.metricsFile != "" {
		if err := prometheus.WriteToTextfile(f.metricsFile, reg); err != nil {
			log.Warn("write metrics", "path", f.metricsFile, "error", err)
		}
	}
	return runErr
}
