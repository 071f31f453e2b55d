package registry

import (
	"context"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ReadOnlyFilter hides mutating tools when the server runs read-only.
// Enable by setting environment variable FUNNELGRID_READ_ONLY=true.
type ReadOnlyFilter struct {
	readOnly bool
}

// NewReadOnlyFilterFromEnv constructs a filter using FUNNELGRID_READ_ONLY.
func NewReadOnlyFilterFromEnv() *ReadOnlyFilter {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("FUNNELGRID_READ_ONLY")))
	ro := v == "1" || v == "true" || v == "yes"
	return &ReadOnlyFilter{readOnly: ro}
}

// FilterTools implements server tool filtering semantics. In read-only mode
// the tools that decode files or write snapshots are excluded from discovery,
// leaving only the snapshot readers.
func (f *ReadOnlyFilter) FilterTools(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
	if !f.readOnly {
		return tools
	}
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		switch t.Name {
		case "ingest_report", "run_aggregation":
			continue
		}
		out = append(out, t)
	}
	return out
}
