package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"funnelgrid/config"
)

func TestExtractTableGroupedReportRepair(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	grid := RawGrid{
		{"Trip Name", "Created Date", "Destination", "Status"},
		{"Jane Doe", "", "", ""},
		{"trip1", "1/5/2024", "Lisbon", "open"},
		{"trip2", "1/6/2024", "Porto", "open"},
		{"Bob Smith, Jr", "", "", ""},
		{"trip3", "1/7/2024", "Faro", "open"},
	}

	out := ExtractTable(grid, tbl)
	require.Empty(t, out.OwnerCol)
	require.Len(t, out.Rows, 3)
	require.Equal(t, "Jane Doe", out.Rows[0][AgentKey])
	require.Equal(t, "Jane Doe", out.Rows[1][AgentKey])
	require.Equal(t, "Bob Smith, Jr", out.Rows[2][AgentKey])
}

func TestExtractTableOwnerColumnPropagation(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	grid := RawGrid{
		{"Owner Name", "Trip Name", "Created Date", "Status"},
		{"Jane Doe", "trip1", "1/5/2024", "open"},
		{"", "trip2", "1/6/2024", "open"},
		{"Bob Smith", "trip3", "1/7/2024", "open"},
		{"", "trip4", "1/8/2024", "open"},
	}

	out := ExtractTable(grid, tbl)
	require.Equal(t, "owner name", out.OwnerCol)
	require.Len(t, out.Rows, 4)
	require.Equal(t, "Jane Doe", out.Rows[1]["owner name"])
	require.Equal(t, "Bob Smith", out.Rows[3]["owner name"])
}

func TestExtractTableSkipsFilterAndSummaryRows(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	grid := RawGrid{
		{"Owner Name contains Jane", "", "", ""},
		{"Status equals Open", "", "", ""},
		{"Owner Name", "Trip Name", "Created Date", "Status"},
		{"Jane Doe", "trip1", "1/5/2024", "open"},
		{"Grand Total", "", "12", ""},
		{"Total", "", "12", ""},
	}

	out := ExtractTable(grid, tbl)
	require.Len(t, out.Rows, 1)
	require.Equal(t, "Jane Doe", out.Rows[0]["owner name"])
}

func TestExtractTableHeaderFallback(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	// No row qualifies as a header; the first row is forced.
	grid := RawGrid{
		{"colx", "coly"},
		{"a", "b"},
	}

	out := ExtractTable(grid, tbl)
	require.Equal(t, []string{"colx", "coly"}, out.Header)
	require.Len(t, out.Rows, 1)
	require.Equal(t, "b", out.Rows[0]["coly"])
}

func TestExtractTableEmptyGrid(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	require.Empty(t, ExtractTable(nil, tbl).Rows)
	require.Empty(t, ExtractTable(RawGrid{}, tbl).Rows)
}

func TestExtractTableDiscardsEmptyRows(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	grid := RawGrid{
		{"Owner Name", "Trip Name", "Created Date", "Status"},
		{"", "", "", ""},
		{"Jane Doe", "trip1", "1/5/2024", "open"},
		{"", "  ", "", ""},
	}

	out := ExtractTable(grid, tbl)
	require.Len(t, out.Rows, 1)
}

func TestGroupLabelHeuristics(t *testing.T) {
	cases := []struct {
		cells  []string
		isRow  bool
	}{
		{[]string{"Jane Doe", "", ""}, true},
		{[]string{"Smith, Bob", "", ""}, true},
		{[]string{"123 Main", "", ""}, false}, // digit-led
		{[]string{"Team Total", "", ""}, false},
		{[]string{"abc", "", ""}, false},         // too short
		{[]string{"JaneDoe", "", ""}, false},     // no space or comma
		{[]string{"Jane Doe", "x", "y"}, false},  // too many cells
	}
	for _, tc := range cases {
		_, got := groupLabel(tc.cells, countNonEmpty(tc.cells))
		require.Equal(t, tc.isRow, got, "cells %v", tc.cells)
	}
}

func TestExtractLeadsReasonCounts(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	grid := RawGrid{
		{"Owner Name", "Trip Name", "Closed Date", "Validation Failure Reason"},
		{"Jane Doe", "trip1", "1/5/2024", "no budget"},
		{"Jane Doe", "trip2", "1/6/2024", ""},
		{"Bob Smith", "trip3", "1/7/2024", "unresponsive"},
	}

	out := ExtractLeads(grid, tbl)
	require.Equal(t, "validation failure reason", out.ReasonCol)
	require.Equal(t, map[string]int{"Jane Doe": 1, "Bob Smith": 1}, out.ReasonCounts)
	require.Len(t, out.Rows, 3)
}
