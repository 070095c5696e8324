// Command kwresearch runs keyword research over seller report exports.
//
// Progress events and the final result are written to stdout as JSON lines;
// logs go to stderr.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cognicore/kwresearch/internal/logger"
	"github.com/cognicore/kwresearch/pkg/kwresearch/config"
)

type globalFlags struct {
	configPath string
	logMode    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "kwresearch",
		Short: "Keyword research and listing optimization for marketplace products",
		Long: `kwresearch merges design and revenue keyword reports, removes branded
keywords, scores the rest for relevance to a product and writes the
categorized keywords to CSV. With --seo it also drafts an optimized title
and bullet points from the best keywords.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file (defaults apply when empty)")
	root.PersistentFlags().StringVar(&g.logMode, "log-mode", "", "log mode: dev or prod (overrides the config)")

	root.AddCommand(newRunCmd(g), newRootsCmd(g))
	return root
}

// load reads the configuration and builds the logger it asks for.
func (g *globalFlags) load() (config.Config, *logger.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	mode := cfg.Log.Mode
	if g.logMode != "" {
		mode = g.logMode
	}
	log, err := logger.New(mode)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}
