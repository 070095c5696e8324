package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cognicore/kwresearch/pkg/kwresearch/ingest"
	"github.com/cognicore/kwresearch/pkg/kwresearch/keyword"
	"github.com/cognicore/kwresearch/pkg/kwresearch/roots"
)

func newRootsCmd(g *globalFlags) *cobra.Command {
	var (
		design, revenue string
		top             int
	)
	cmd := &cobra.Command{
		Use:   "roots",
		Short: "Rank keyword roots by search volume without calling the model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			defer log.Sync()
			comp, err := cfg.Components()
			if err != nil {
				return err
			}

			in := ingest.Ingestor{
				MinCompetitorHits:    cfg.Ingest.MinCompetitorHits,
				CompetitorRankCutoff: cfg.Ingest.CompetitorRankCutoff,
			}
			var records []keyword.Record
			for _, rep := range []struct {
				name, path string
				src        keyword.Source
			}{
				{"design", design, keyword.SourceDesign},
				{"revenue", revenue, keyword.SourceRevenue},
			} {
				if rep.path == "" {
					continue
				}
				tbl, err := readReport(rep.path)
				if err != nil {
					return err
				}
				res, err := in.Ingest(ingest.Report{Name: rep.name, Source: rep.src, Table: tbl})
				if err != nil {
					return err
				}
				log.Info("report ingested", "report", rep.name, "rows", res.Total, "filtered", res.Filtered)
				records = append(records, res.Candidates...)
			}
			records = ingest.Deduplicate(records)

			ranked := roots.NewExtractor(comp.Tokenizer).Rank(records)
			if top > 0 && len(ranked) > top {
				ranked = ranked[:top]
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ROOT\tVOLUME\tKEYWORDS")
			for _, r := range ranked {
				fmt.Fprintf(w, "%s\t%d\t%d\n", r.Token, r.Volume, r.Keywords)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&design, "design", "", "design keyword report CSV")
	cmd.Flags().StringVar(&revenue, "revenue", "", "revenue keyword report CSV")
	cmd.Flags().IntVar(&top, "top", roots.TopN, "number of roots to print; 0 prints all")
	cmd.MarkFlagsOneRequired("design", "revenue")
	return cmd
}
