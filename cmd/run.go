package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"funnelgrid/internal/ingest"
	"funnelgrid/internal/metrics"
	"funnelgrid/internal/worker"
)

// runCmd executes one aggregation run over report files given as flags.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Aggregate funnel metrics from report files",
	Long: `Run one aggregation: decode the given reports, repair their structure,
compute per-agent funnel metrics and time series, update best-ever records,
and persist snapshots to the store.

Only --trips is mandatory; missing sources contribute zero counts. With
--reuse the stored row sets of the last run are re-aggregated instead of
decoding files, so a new date range needs no re-export.

Examples:
  # Full month across all sources
  funnelgrid run --trips trips.xlsx --quotes quotes.xlsx --from 1/1/2024 --to 1/31/2024

  # Same data, different window, no files
  funnelgrid run --reuse --from 1/15/2024 --to 1/31/2024`,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		paths := worker.SourcePaths{
			Trips:         viper.GetString("trips"),
			Quotes:        viper.GetString("quotes"),
			Passthroughs:  viper.GetString("passthroughs"),
			HotPasses:     viper.GetString("hot-passes"),
			Bookings:      viper.GetString("bookings"),
			NonConverted:  viper.GetString("non-converted"),
			QuotesStarted: viper.GetString("quotes-started"),
		}
		if viper.GetBool("reuse") {
			paths = worker.SourcePaths{}
		} else if paths.Trips == "" {
			return fmt.Errorf("--trips is required (or pass --reuse to re-aggregate stored row sets)")
		}

		opts, err := buildRunOptions()
		if err != nil {
			return err
		}

		out, err := runner.Run(rootCtx, worker.Request{Paths: paths, Options: opts})
		if err != nil {
			return err
		}

		if err := printAgentTable(out.Metrics); err != nil {
			return err
		}
		printRunSummary(out)
		return nil
	},
}

// buildRunOptions resolves date range, roster, and lead mode from viper.
func buildRunOptions() (metrics.Options, error) {
	var opts metrics.Options

	if from := viper.GetString("from"); from != "" {
		t, ok := ingest.NormalizeDate(from)
		if !ok {
			return opts, fmt.Errorf("--from: %q is not a recognizable date", from)
		}
		opts.Range.From = t
	}
	if to := viper.GetString("to"); to != "" {
		t, ok := ingest.NormalizeDate(to)
		if !ok {
			return opts, fmt.Errorf("--to: %q is not a recognizable date", to)
		}
		opts.Range.To = t
	}
	opts.Seniors = viper.GetStringSlice("seniors")

	switch mode := viper.GetString("lead-count-mode"); mode {
	case "", string(metrics.LeadReasonFirst):
		opts.LeadCountMode = metrics.LeadReasonFirst
	case string(metrics.LeadLinkageFirst):
		opts.LeadCountMode = metrics.LeadLinkageFirst
	default:
		return opts, fmt.Errorf("--lead-count-mode: %q is not reason-first or linkage-first", mode)
	}
	return opts, nil
}
