package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"funnelgrid/pkg/version"
)

// versionCmd prints the build version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the funnelgrid version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version.Version())
	},
}
