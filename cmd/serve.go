package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"funnelgrid/internal/registry"
	"funnelgrid/internal/runtime"
	"funnelgrid/internal/security"
	"funnelgrid/internal/telemetry"
	"funnelgrid/pkg/version"
)

// serveCmd mounts the pipeline as an MCP server over stdio.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline tools over stdio",
	Long: `Launch the tool surface (ingest_report, run_aggregation, get_metrics,
get_records, list_sources) for programmatic clients. Report paths are only
accepted under the directories listed in FUNNELGRID_ALLOWED_DIRS. Set
FUNNELGRID_READ_ONLY=true to expose only the snapshot readers.`,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		if !viper.GetBool("stdio") {
			return fmt.Errorf("no transport selected; use --stdio to run over stdio")
		}

		secMgr, err := security.NewManagerFromEnv()
		if err != nil {
			return fmt.Errorf("invalid security configuration: %w", err)
		}
		if err := secMgr.ValidateConfig(); err != nil {
			return fmt.Errorf("no allowed directories configured; set FUNNELGRID_ALLOWED_DIRS: %w", err)
		}
		logger.Info().Strs("allowed_dirs", secMgr.AllowedDirectories()).Msg("security allow-list configured")

		runtimeMW := runtime.NewMiddleware(ctrl)
		toolRegistry := registry.New()
		readOnlyFilter := registry.NewReadOnlyFilterFromEnv()
		tel := telemetry.NewHooks(logger)

		srv := server.NewMCPServer(
			"Funnelgrid Pipeline Server",
			version.Version(),
			server.WithToolCapabilities(true),
			server.WithRecovery(),
			server.WithHooks(buildHooks(tel, logger)),
			server.WithToolHandlerMiddleware(runtimeMW.ToolMiddleware),
			server.WithToolFilter(func(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
				return readOnlyFilter.FilterTools(ctx, tools)
			}),
		)

		pipeline := registry.NewPipeline(runner, st, secMgr)
		registry.RegisterPipelineTools(srv, toolRegistry, pipeline)

		limits := ctrl.LimitsSnapshot()
		logger.Info().
			Str("version", version.Version()).
			Int("max_concurrent_requests", limits.MaxConcurrentRequests).
			Int("max_active_runs", limits.MaxActiveRuns).
			Msg("server bootstrap configured")

		tel.OnServerStart()
		defer tel.OnServerStop()
		if err := server.ServeStdio(srv); err != nil {
			// Use stderr for transport errors so clients don't misinterpret output.
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

// buildHooks routes mcp-go server lifecycle callbacks through telemetry.
func buildHooks(tel *telemetry.Hooks, logger zerolog.Logger) *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		tel.OnSessionStart(session.SessionID())
	})

	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		tel.OnSessionEnd(session.SessionID())
	})

	hooks.AddAfterListTools(func(ctx context.Context, id any, req *mcp.ListToolsRequest, res *mcp.ListToolsResult) {
		logger.Info().Int("tools", len(res.Tools)).Msg("list_tools served")
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, res *mcp.CallToolResult) {
		tel.OnToolCall("", req.Params.Name, 0, nil)
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		logger.Error().Str("method", string(method)).Err(err).Msg("request error")
	})

	return hooks
}
