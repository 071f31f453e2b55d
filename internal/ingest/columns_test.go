package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"funnelgrid/config"
)

func TestResolveColumnPhraseBeatsGenericToken(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	headers := []string{"last updated", "created date", "trip name"}

	got, ok := ResolveColumn(headers, config.TargetCreatedDate, tbl)
	require.True(t, ok)
	require.Equal(t, "created date", got)
}

func TestResolveColumnAgentTiers(t *testing.T) {
	tbl := config.DefaultPhraseTable()

	// Tier 1 phrase containment.
	got, ok := ResolveColumn([]string{"trip name", "owner name", "status"}, config.TargetAgent, tbl)
	require.True(t, ok)
	require.Equal(t, "owner name", got)

	// Tier 2 exact synonym.
	got, ok = ResolveColumn([]string{"trip name", "rep", "status"}, config.TargetAgent, tbl)
	require.True(t, ok)
	require.Equal(t, "rep", got)

	// Tier 3 substring token.
	got, ok = ResolveColumn([]string{"trip name", "owner:", "status"}, config.TargetAgent, tbl)
	require.True(t, ok)
	require.Equal(t, "owner:", got)
}

func TestResolveColumnSentinelWins(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	headers := []string{"owner name", AgentKey}

	got, ok := ResolveColumn(headers, config.TargetAgent, tbl)
	require.True(t, ok)
	require.Equal(t, AgentKey, got)
}

func TestResolveColumnAgentFallbackToFirstHeader(t *testing.T) {
	tbl := config.DefaultPhraseTable()

	got, ok := ResolveColumn([]string{"column a", "column b"}, config.TargetAgent, tbl)
	require.True(t, ok)
	require.Equal(t, "column a", got)
}

func TestResolveColumnNoMatchForDates(t *testing.T) {
	tbl := config.DefaultPhraseTable()

	// Non-agent targets have no fallback; unresolvable means none.
	_, ok := ResolveColumn([]string{"alpha", "beta"}, config.TargetBookingDate, tbl)
	require.False(t, ok)
}

func TestResolveOwnerIgnoresFallback(t *testing.T) {
	tbl := config.DefaultPhraseTable()

	_, ok := resolveOwner([]string{"column a", "column b"}, tbl)
	require.False(t, ok)

	col, ok := resolveOwner([]string{"column a", "last action by"}, tbl)
	require.True(t, ok)
	require.Equal(t, "last action by", col)
}

func TestResolveColumnPhraseOrderOutranksHeaderOrder(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	// "last action by" appears earlier in the row, but "owner name" is
	// earlier in the phrase list and must win.
	headers := []string{"last action by", "owner name"}

	got, ok := ResolveColumn(headers, config.TargetAgent, tbl)
	require.True(t, ok)
	require.Equal(t, "owner name", got)
}
