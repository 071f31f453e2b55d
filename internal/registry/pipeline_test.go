package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"funnelgrid/config"
	"funnelgrid/internal/decode"
	"funnelgrid/internal/ingest"
	"funnelgrid/internal/runtime"
	"funnelgrid/internal/security"
	"funnelgrid/internal/store"
	"funnelgrid/internal/worker"
	"funnelgrid/pkg/pipeerr"
)

func newTestPipeline(t *testing.T) (*Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	real, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(t.TempDir(), "funnelgrid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sec, err := security.NewManager([]string{real}, nil)
	require.NoError(t, err)

	ctrl := runtime.NewController(runtime.NewLimits(4, 1))
	runner := worker.NewRunner(ctrl, st, config.DefaultPhraseTable(), zerolog.Nop())
	runner.Decode = func(ctx context.Context, path string, _ decode.Options) (ingest.RawGrid, error) {
		return ingest.RawGrid{
			{"Owner Name", "Trip Name", "Created Date", "Status"},
			{"A", "t1", "1/5/2024", "open"},
			{"B", "t2", "1/6/2024", "open"},
		}, nil
	}

	return NewPipeline(runner, st, sec), real
}

func touchReport(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestRegisterSourceValidates(t *testing.T) {
	p, root := newTestPipeline(t)
	path := touchReport(t, root, "trips.xlsx")

	canonical, err := p.RegisterSource("trips", path)
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(canonical))

	_, err = p.RegisterSource("budget", path)
	require.Error(t, err)
	require.Equal(t, pipeerr.Validation, pipeerr.CodeOf(err))

	_, err = p.RegisterSource("trips", filepath.Join(t.TempDir(), "escape.xlsx"))
	require.Error(t, err)
	require.Equal(t, pipeerr.PermissionDenied, pipeerr.CodeOf(err))
}

func TestRunAggregationEndToEnd(t *testing.T) {
	p, root := newTestPipeline(t)
	_, err := p.RegisterSource("trips", touchReport(t, root, "trips.xlsx"))
	require.NoError(t, err)

	out, err := p.RunAggregation(context.Background(), RunOptions{From: "1/1/2024", To: "1/31/2024"})
	require.NoError(t, err)
	require.Len(t, out.Metrics.Agents, 2)

	snap, err := p.MetricsSnapshot()
	require.NoError(t, err)
	require.Equal(t, out.Metrics.Agents, snap.Agents)

	recs, err := p.RecordsSnapshot()
	require.NoError(t, err)
	require.Equal(t, 1, recs["A"]["trips"].Value)
}

func TestRunAggregationRejectsBadOptions(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.RunAggregation(context.Background(), RunOptions{From: "whenever"})
	require.Error(t, err)
	require.Equal(t, pipeerr.Validation, pipeerr.CodeOf(err))

	_, err = p.RunAggregation(context.Background(), RunOptions{LeadCountMode: "guess"})
	require.Error(t, err)
	require.Equal(t, pipeerr.Validation, pipeerr.CodeOf(err))
}

func TestMetricsSnapshotAbsent(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.MetricsSnapshot()
	require.Error(t, err)
	require.Equal(t, pipeerr.EmptySource, pipeerr.CodeOf(err))

	recs, err := p.RecordsSnapshot()
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestSourcesListsBindingsAndStoredFlag(t *testing.T) {
	p, root := newTestPipeline(t)
	_, err := p.RegisterSource("trips", touchReport(t, root, "trips.xlsx"))
	require.NoError(t, err)
	_, err = p.RegisterSource("bookings", touchReport(t, root, "bookings.xlsx"))
	require.NoError(t, err)

	bindings, stored, err := p.Sources()
	require.NoError(t, err)
	require.False(t, stored)
	require.Equal(t, "bookings", bindings[0].Name)
	require.Equal(t, "trips", bindings[1].Name)

	_, err = p.RunAggregation(context.Background(), RunOptions{})
	require.NoError(t, err)

	_, stored, err = p.Sources()
	require.NoError(t, err)
	require.True(t, stored)
}

func TestReadOnlyFilterHidesMutatingTools(t *testing.T) {
	tools := []mcp.Tool{
		{Name: "ingest_report"},
		{Name: "run_aggregation"},
		{Name: "get_metrics"},
		{Name: "get_records"},
		{Name: "list_sources"},
	}

	open := &ReadOnlyFilter{readOnly: false}
	require.Len(t, open.FilterTools(context.Background(), tools), 5)

	ro := &ReadOnlyFilter{readOnly: true}
	filtered := ro.FilterTools(context.Background(), tools)
	require.Len(t, filtered, 3)
	for _, tool := range filtered {
		require.NotContains(t, []string{"ingest_report", "run_aggregation"}, tool.Name)
	}
}
