// Package cmd defines the command-line interface for funnelgrid.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("store", "", "Path to the snapshot/records store file")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored output (yes/no/true/false/1/0)")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fail("Error binding root flags", err)
	}

	runCmd.Flags().String("trips", "", "Trips report (.xlsx); required unless --reuse")
	runCmd.Flags().String("quotes", "", "Quotes-sent report")
	runCmd.Flags().String("passthroughs", "", "Passthroughs report")
	runCmd.Flags().String("hot-passes", "", "Hot passes report")
	runCmd.Flags().String("bookings", "", "Bookings report")
	runCmd.Flags().String("non-converted", "", "Non-converted leads report")
	runCmd.Flags().String("quotes-started", "", "Quotes-started report (flat count)")
	runCmd.Flags().String("from", "", "Inclusive range start (e.g. 1/1/2024)")
	runCmd.Flags().String("to", "", "Inclusive range end; covers its full day")
	runCmd.Flags().StringSlice("seniors", nil, "Agent names counted in the seniors cohort")
	runCmd.Flags().String("lead-count-mode", "", "Non-converted counting: reason-first or linkage-first")
	runCmd.Flags().Bool("reuse", false, "Re-aggregate from the stored row sets of the last run")
	if err := viper.BindPFlags(runCmd.Flags()); err != nil {
		fail("Error binding run flags", err)
	}

	serveCmd.Flags().Bool("stdio", false, "Serve the tool surface over stdio")
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		fail("Error binding serve flags", err)
	}
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
