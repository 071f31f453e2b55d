package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"funnelgrid/internal/records"
	"funnelgrid/pkg/pipeerr"
	"funnelgrid/pkg/validation"
)

// --- Input / Output Schemas (typed for discovery) ---

// IngestReportInput binds a report file to a funnel source.
type IngestReportInput struct {
	Source string `json:"source" validate:"required" jsonschema_description:"Source name: trips, quotes, passthroughs, hot_passes, bookings, non_converted, quotes_started"`
	Path   string `json:"path" validate:"required,report_ext" jsonschema_description:"Path to the exported report (.xlsx, .xlsm) under an allowed directory"`
}

// IngestReportOutput confirms the binding.
type IngestReportOutput struct {
	Source string `json:"source" jsonschema_description:"Bound source name"`
	Path   string `json:"path" jsonschema_description:"Canonical report path"`
}

// RunAggregationInput tunes one aggregation run.
type RunAggregationInput struct {
	From          string   `json:"from,omitempty" validate:"omitempty,mdy_date" jsonschema_description:"Inclusive range start (e.g. 1/1/2024)"`
	To            string   `json:"to,omitempty" validate:"omitempty,mdy_date" jsonschema_description:"Inclusive range end; covers its full day"`
	Seniors       []string `json:"seniors,omitempty" jsonschema_description:"Agent names counted in the seniors cohort"`
	LeadCountMode string   `json:"leadCountMode,omitempty" jsonschema_description:"reason-first (default) or linkage-first"`
}

// RunAggregationOutput summarizes a completed run.
type RunAggregationOutput struct {
	RunID      string          `json:"runId" jsonschema_description:"Run identifier"`
	FromStored bool            `json:"fromStored" jsonschema_description:"True when stored row sets were reused"`
	Agents     int             `json:"agents" jsonschema_description:"Number of agents in the result"`
	NewRecords []records.Event `json:"newRecords" jsonschema_description:"Records broken by this run, ordered by agent then metric"`
}

// ListSourcesOutput reports the current source bindings.
type ListSourcesOutput struct {
	Sources   []SourceBinding `json:"sources" jsonschema_description:"Bound sources in name order"`
	HasStored bool            `json:"hasStored" jsonschema_description:"True when persisted row sets allow a path-less re-aggregation"`
}

// RegisterPipelineTools wires the funnel pipeline operations as MCP tools.
func RegisterPipelineTools(s *server.MCPServer, reg *Registry, p *Pipeline) {
	// ingest_report
	ingestTool := mcp.NewTool(
		"ingest_report",
		mcp.WithDescription("Bind an exported spreadsheet report to a funnel source. The binding is consumed by the next run_aggregation call. Paths must sit under an allowed directory."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source name: trips, quotes, passthroughs, hot_passes, bookings, non_converted, quotes_started")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the report file (.xlsx, .xlsm)")),
		mcp.WithOutputSchema[IngestReportOutput](),
	)
	s.AddTool(ingestTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in IngestReportInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		canonical, err := p.RegisterSource(strings.TrimSpace(in.Source), in.Path)
		if err != nil {
			return pipeerr.ToolResult(err), nil
		}
		out := IngestReportOutput{Source: in.Source, Path: canonical}
		summary := fmt.Sprintf("bound %s -> %s", out.Source, out.Path)
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(summary)}
		return res, nil
	}))
	reg.Register(ingestTool)

	// run_aggregation
	runTool := mcp.NewTool(
		"run_aggregation",
		mcp.WithDescription("Execute one aggregation run over the bound sources: decode, extract, aggregate, track records, persist snapshots. With no bound sources the last persisted row sets are reused. A second call while a run is in flight fails with BUSY_PIPELINE."),
		mcp.WithString("from", mcp.Description("Inclusive range start (e.g. 1/1/2024)")),
		mcp.WithString("to", mcp.Description("Inclusive range end; covers its full day")),
		mcp.WithString("leadCountMode", mcp.Enum("reason-first", "linkage-first"), mcp.Description("Non-converted lead counting mode")),
		mcp.WithOutputSchema[RunAggregationOutput](),
	)
	s.AddTool(runTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in RunAggregationInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		outcome, err := p.RunAggregation(ctx, RunOptions{
			From:          in.From,
			To:            in.To,
			Seniors:       in.Seniors,
			LeadCountMode: in.LeadCountMode,
		})
		if err != nil {
			return pipeerr.ToolResult(err), nil
		}
		out := RunAggregationOutput{
			RunID:      outcome.RunID,
			FromStored: outcome.FromStored,
			Agents:     len(outcome.Metrics.Agents),
			NewRecords: outcome.Events,
		}
		summary := fmt.Sprintf("run=%s agents=%d new_records=%d from_stored=%v", out.RunID, out.Agents, len(out.NewRecords), out.FromStored)
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(summary)}
		return res, nil
	}))
	reg.Register(runTool)

	// get_metrics
	metricsTool := mcp.NewTool(
		"get_metrics",
		mcp.WithDescription("Return the last persisted aggregation result: per-agent funnel counts and ratios, quotes-started count, and the daily time series. Answered from the snapshot store without recomputation."),
	)
	s.AddTool(metricsTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := p.MetricsSnapshot()
		if err != nil {
			return pipeerr.ToolResult(err), nil
		}
		summary := fmt.Sprintf("agents=%d dates=%d quotes_started=%d", len(snap.Agents), len(snap.Series.Dates()), snap.QuotesStarted)
		res := mcp.NewToolResultStructured(snap, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(summary)}
		return res, nil
	})
	reg.Register(metricsTool)

	// get_records
	recordsTool := mcp.NewTool(
		"get_records",
		mcp.WithDescription("Return the persisted best-ever store: for each agent and metric, the highest single-day value with its date. An empty store means no run has completed yet."),
	)
	s.AddTool(recordsTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		recs, err := p.RecordsSnapshot()
		if err != nil {
			return pipeerr.ToolResult(err), nil
		}
		summary := fmt.Sprintf("agents=%d", len(recs))
		res := mcp.NewToolResultStructured(recs, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(summary)}
		return res, nil
	})
	reg.Register(recordsTool)

	// list_sources
	listTool := mcp.NewTool(
		"list_sources",
		mcp.WithDescription("List the currently bound report sources and whether persisted row sets from a prior run allow a path-less re-aggregation."),
		mcp.WithOutputSchema[ListSourcesOutput](),
	)
	s.AddTool(listTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		bindings, stored, err := p.Sources()
		if err != nil {
			return pipeerr.ToolResult(err), nil
		}
		out := ListSourcesOutput{Sources: bindings, HasStored: stored}
		summary := fmt.Sprintf("sources=%d has_stored=%v", len(out.Sources), out.HasStored)
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(summary)}
		return res, nil
	})
	reg.Register(listTool)
}
