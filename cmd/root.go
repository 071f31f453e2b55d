package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"funnelgrid/config"
	"funnelgrid/internal/runtime"
	"funnelgrid/internal/store"
	"funnelgrid/internal/worker"
	"funnelgrid/pkg/version"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// Shared collaborators built once per invocation by sharedSetup.
var (
	logger  zerolog.Logger
	phrases *config.PhraseTable
	st      *store.Store
	ctrl    *runtime.Controller
	runner  *worker.Runner
)

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:           "funnelgrid",
	Short:         "Aggregate funnel metrics from exported spreadsheet reports.",
	Long:          `Funnelgrid ingests messy spreadsheet exports (trips, quotes, passthroughs, bookings, non-converted leads), repairs their structure, and aggregates per-agent funnel metrics, time series, and best-ever records.`,
	Version:       version.Version(),
	SilenceErrors: true,
	SilenceUsage:  true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".funnelgrid")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.SetEnvPrefix("FUNNELGRID")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("store", config.DefaultStoreFile)
	viper.SetDefault("max-concurrent-requests", config.DefaultMaxConcurrentRequests)
	viper.SetDefault("max-active-runs", config.DefaultMaxActiveRuns)
	viper.SetDefault("lead-count-mode", "reason-first")
	viper.SetDefault("color", "yes")
}

// sharedSetup resolves config and builds the store, controller, and runner.
func sharedSetup(_ *cobra.Command, _ []string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger = zlog.With().Str("service", "funnelgrid").Logger()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; defaults/env/flags apply.
	}

	tbl, err := config.PhraseTableFromViper(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid phrases config: %w", err)
	}
	phrases = tbl

	st, err = store.Open(viper.GetString("store"))
	if err != nil {
		return err
	}

	limits := runtime.NewLimits(
		viper.GetInt("max-concurrent-requests"),
		viper.GetInt("max-active-runs"),
	)
	ctrl = runtime.NewController(limits)
	runner = worker.NewRunner(ctrl, st, phrases, logger)
	return nil
}

// Execute runs the root command.
func Execute() error {
	defer func() {
		if st != nil {
			_ = st.Close()
		}
	}()
	return rootCmd.Execute()
}
