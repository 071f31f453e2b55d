package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"funnelgrid/config"
)

// Table is the normalized result of extracting one report grid.
type Table struct {
	// Header holds the canonical lowercase header names in column order.
	// Unnamed columns keep an empty slot so positions stay aligned.
	Header []string

	// OwnerCol names the resolved owner/agent column, or "" when rows carry
	// the sentinel agent field instead.
	OwnerCol string

	Rows []NormalizedRow
}

// LeadTable extends Table for the non-converted-lead report, whose
// validation-reason column is the only reliable non-conversion signal.
type LeadTable struct {
	Table

	ReasonCol string
	// ReasonCounts tallies rows per agent carrying a non-empty
	// validation-failure reason.
	ReasonCounts map[string]int
}

// ExtractTable locates the header row of a raw grid and materializes the
// data rows beneath it, repairing the grouped-report layout (agent shown
// once, blank on continuation rows) and dropping report-generated summary
// rows. Malformed input never fails; an empty or header-less grid yields an
// empty table.
func ExtractTable(grid RawGrid, tbl *config.PhraseTable) Table {
	var out Table
	if len(grid) == 0 {
		return out
	}

	headerIdx, ok := findHeaderRow(grid, tbl)
	if !ok {
		// Forced fallback: treat the first row as the header so a known
		// report exported without its usual banner still parses.
		headerIdx = 0
	}

	out.Header = canonicalHeader(grid[headerIdx])
	named := nonEmptyNames(out.Header)
	ownerCol, hasOwner := resolveOwner(named, tbl)
	if hasOwner {
		out.OwnerCol = ownerCol
	}

	// Current agent is an accumulator threaded through a single
	// left-to-right fold; group-label rows set it, data rows consume it.
	currentAgent := ""

	for i := headerIdx + 1; i < len(grid); i++ {
		cells := grid[i]
		filled := countNonEmpty(cells)
		if filled == 0 {
			continue
		}

		if label, isLabel := groupLabel(cells, filled); isLabel {
			currentAgent = label
			continue
		}

		row := materialize(out.Header, cells)

		if hasOwner {
			v := row[ownerCol]
			// Drop summary rows before they can poison the carry-forward.
			if isSummaryRow(v, tbl) {
				continue
			}
			if v != "" {
				currentAgent = v
			} else {
				row[ownerCol] = currentAgent
			}
		} else {
			row[AgentKey] = currentAgent
		}

		if isSummaryRow(row.Agent(out.OwnerCol), tbl) {
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// ExtractLeads runs the standard extraction and additionally tracks the
// validation-reason column, emitting per-agent counts of rows that carry a
// non-empty failure reason.
func ExtractLeads(grid RawGrid, tbl *config.PhraseTable) LeadTable {
	out := LeadTable{
		Table:        ExtractTable(grid, tbl),
		ReasonCounts: map[string]int{},
	}
	named := nonEmptyNames(out.Header)
	reasonCol, ok := resolveColumnStrict(named, config.TargetLeadReason, tbl)
	if !ok {
		return out
	}
	out.ReasonCol = reasonCol
	for _, row := range out.Rows {
		if strings.TrimSpace(row[reasonCol]) == "" {
			continue
		}
		if agent := row.Agent(out.OwnerCol); agent != "" {
			out.ReasonCounts[agent]++
		}
	}
	return out
}

// resolveColumnStrict matches without the agent first-header fallback.
func resolveColumnStrict(headers []string, target config.Target, tbl *config.PhraseTable) (string, bool) {
	name, tier := resolveTiered(headers, target, tbl)
	return name, tier != tierNone
}

// headerScanWindow bounds the search for a buried header row.
const headerScanWindow = config.DefaultHeaderScanRows

// findHeaderRow scans the top of the grid for the first row that looks like
// a real header: enough populated cells plus at least one known domain
// phrase. Filter-description rows emitted by report builders are skipped
// outright.
func findHeaderRow(grid RawGrid, tbl *config.PhraseTable) (int, bool) {
	limit := len(grid)
	if limit > headerScanWindow {
		limit = headerScanWindow
	}
	for i := 0; i < limit; i++ {
		joined := strings.ToLower(strings.Join(grid[i], " "))
		if hasFilterMarker(joined, tbl.FilterMarkers) {
			continue
		}
		if countNonEmpty(grid[i]) < 4 {
			continue
		}
		for _, phrase := range tbl.HeaderPhrases {
			if strings.Contains(joined, phrase) {
				return i, true
			}
		}
	}
	return 0, false
}

// hasFilterMarker reports whether any whole word of the joined row text is a
// filter marker ("contains", "equals"). Word matching keeps headers like
// "Equalization Fund" from being skipped.
func hasFilterMarker(joined string, markers []string) bool {
	for _, field := range strings.Fields(joined) {
		for _, m := range markers {
			if field == m {
				return true
			}
		}
	}
	return false
}

// groupLabel decides whether a row is a grouped-report label carrying the
// agent name for the rows below it.
func groupLabel(cells []string, filled int) (string, bool) {
	if filled > 2 || len(cells) == 0 {
		return "", false
	}
	first := strings.TrimSpace(cells[0])
	if utf8.RuneCountInString(first) <= 3 {
		return "", false
	}
	if !strings.ContainsAny(first, " ,") {
		return "", false
	}
	r, _ := utf8.DecodeRuneInString(first)
	if unicode.IsDigit(r) {
		return "", false
	}
	if strings.Contains(strings.ToLower(first), "total") {
		return "", false
	}
	return first, true
}

func isSummaryRow(agent string, tbl *config.PhraseTable) bool {
	low := strings.ToLower(strings.TrimSpace(agent))
	if low == "" {
		return false
	}
	for _, exact := range tbl.SummaryExact {
		if low == exact {
			return true
		}
	}
	for _, sub := range tbl.SummaryContains {
		if strings.Contains(low, sub) {
			return true
		}
	}
	return false
}

func canonicalHeader(cells []string) []string {
	names := make([]string, len(cells))
	for i, c := range cells {
		names[i] = strings.ToLower(strings.TrimSpace(c))
	}
	return names
}

func nonEmptyNames(header []string) []string {
	out := make([]string, 0, len(header))
	for _, h := range header {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

func materialize(header []string, cells []string) NormalizedRow {
	row := make(NormalizedRow, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		val := ""
		if i < len(cells) {
			val = strings.TrimSpace(cells[i])
		}
		row[name] = val
	}
	return row
}

func countNonEmpty(cells []string) int {
	n := 0
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}
