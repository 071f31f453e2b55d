package cmd

import (
	"github.com/spf13/cobra"

	"funnelgrid/config"
	"funnelgrid/internal/records"
)

// recordsCmd prints the persisted best-ever store.
var recordsCmd = &cobra.Command{
	Use:     "records",
	Short:   "Show persisted best-ever values per agent and metric",
	Long:    `Print the best single-day value ever recorded for each agent and metric, with the date it was set. The store survives across runs and is never pruned.`,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		recs := records.Store{}
		if _, err := st.GetJSON(config.SnapshotKeyRecords, &recs); err != nil {
			return err
		}
		return printRecordsTable(recs)
	},
}
