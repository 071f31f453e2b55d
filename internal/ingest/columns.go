package ingest

import (
	"strings"

	"funnelgrid/config"
)

// Column match tiers, strongest first. The tiered scan exists because
// generic substring matching alone produces false positives: a bare "date"
// token would happily match "last updated" even when the report carries a
// proper "created date" column.
const (
	tierSentinel = iota
	tierPhrase
	tierSynonym
	tierToken
	tierFallback
	tierNone
)

// ResolveColumn returns the header judged the best match for the semantic
// target, or ok=false when no candidate qualifies. For the agent target the
// first header is a guaranteed fallback so a grouping key always exists.
func ResolveColumn(headers []string, target config.Target, tbl *config.PhraseTable) (string, bool) {
	name, tier := resolveTiered(headers, target, tbl)
	if tier != tierNone {
		return name, true
	}
	if target == config.TargetAgent && len(headers) > 0 {
		return headers[0], true
	}
	return "", false
}

// resolveOwner locates a real owner/agent column, without the first-header
// fallback. The extractor uses it to decide between filling an existing
// column and attaching the sentinel agent field.
func resolveOwner(headers []string, tbl *config.PhraseTable) (string, bool) {
	name, tier := resolveTiered(headers, config.TargetAgent, tbl)
	return name, tier != tierNone && tier != tierSentinel
}

func resolveTiered(headers []string, target config.Target, tbl *config.PhraseTable) (string, int) {
	// Tier 0: a sentinel field means grouping logic already resolved the
	// agent for these rows.
	if target == config.TargetAgent {
		for _, h := range headers {
			if h == AgentKey {
				return h, tierSentinel
			}
		}
	}

	// Tier 1: ordered domain phrases; phrase-list order outranks header
	// order so the most specific wording wins.
	for _, phrase := range tbl.Phrases[target] {
		for _, h := range headers {
			if h == AgentKey {
				continue
			}
			if strings.Contains(strings.ToLower(h), phrase) {
				return h, tierPhrase
			}
		}
	}

	// Tier 2: exact generic synonyms.
	for _, syn := range tbl.Synonyms[target] {
		for _, h := range headers {
			if strings.ToLower(strings.TrimSpace(h)) == syn {
				return h, tierSynonym
			}
		}
	}

	// Tier 3: short generic tokens by containment.
	for _, tok := range tbl.Tokens[target] {
		for _, h := range headers {
			if h == AgentKey {
				continue
			}
			if strings.Contains(strings.ToLower(h), tok) {
				return h, tierToken
			}
		}
	}

	return "", tierNone
}
