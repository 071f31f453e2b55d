// Package ingest repairs loosely structured spreadsheet report exports into
// normalized row sets keyed by canonical lowercase header names.
package ingest

// RawGrid is the decoded cell matrix of a report's first sheet. Cells arrive
// as strings; numeric cells carry their serial text and absent cells are "".
type RawGrid [][]string

// NormalizedRow maps canonical lowercase column names to cell values. Every
// row produced from one grid shares the key set of the resolved header.
type NormalizedRow map[string]string

// AgentKey is the reserved field attached to a row when no owner column
// could be resolved and the agent was inferred from grouped-report labels.
// It never collides with real headers, which are plain lowercase text.
const AgentKey = "__agent__"

// Agent returns the row's agent value, preferring the sentinel field set by
// grouped-label repair over any real owner column.
func (r NormalizedRow) Agent(ownerCol string) string {
	if v, ok := r[AgentKey]; ok {
		return v
	}
	if ownerCol == "" {
		return ""
	}
	return r[ownerCol]
}
