package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/medportal/internal/app"
	"github.com/nikhilbhutani/medportal/internal/config"
	"github.com/nikhilbhutani/medportal/internal/llm"
)

func newModelsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Print the effective model chain in fallback order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := llm.NewChainFromConfig(cfg.LLM, nil)
			if err != nil {
				return err
			}
			models := chain.Models()
			if *jsonOutput {
				return writeJSON(models)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tMODEL\tPROVIDER\tTIER\t$/1K TOKENS\tTIMEOUT")
			for i, m := range models {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%g\t%s\n", i+1, m.ID, m.Provider, m.Tier, m.CostPerKToken, m.Timeout())
			}
			return tw.Flush()
		},
	}
}

func newUsageCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Summarize recorded model attempts per model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfg, func(a *app.App) error {
				if a.Audit == nil {
					return fmt.Errorf("usage log needs DATABASE_URL")
				}
				var from *time.Time
				if since > 0 {
					t := time.Now().Add(-since)
					from = &t
				}
				rows, err := a.Audit.GetUsageSummary(cmd.Context(), from)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(rows)
				}

				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PROVIDER\tMODEL\tCALLS\tOK\tTOKENS\tCOST")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t$%.4f\n", r.Provider, r.Model, r.TotalCalls, r.Successes, r.TotalTokens, r.TotalCostUSD)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "only count attempts newer than this (e.g. 24h)")
	return cmd
}
