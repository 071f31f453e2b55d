// main is the entry point for the funnelgrid CLI.
package main

import (
	"fmt"
	"os"

	"funnelgrid/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
