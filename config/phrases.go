package config

import "github.com/spf13/viper"

// Target names a semantic column the pipeline needs to locate in a report
// header. Exported reports use wildly different header text for the same
// column, so every target carries an ordered candidate-phrase list.
type Target string

const (
	TargetAgent            Target = "agent"
	TargetCreatedDate      Target = "created_date"
	TargetQuoteSentDate    Target = "quote_sent_date"
	TargetPassthroughDate  Target = "passthrough_date"
	TargetBookingDate      Target = "booking_date"
	TargetNonConvertedDate Target = "non_converted_date"
	TargetTripName         Target = "trip_name"
	TargetLeadReason       Target = "lead_reason"
)

// PhraseTable is the shared matching configuration consumed by both the
// column resolver and the tabular extractor. It is data, not code: new report
// formats are handled by adding phrases, and the whole table can be
// overridden from the config file under the "phrases" key.
type PhraseTable struct {
	// Phrases lists tier-1 domain phrases per target, in priority order.
	// Matching is containment against the lowercased header text.
	Phrases map[Target][]string `mapstructure:"specific"`

	// Synonyms lists tier-2 generic names matched exactly.
	Synonyms map[Target][]string `mapstructure:"synonyms"`

	// Tokens lists tier-3 short generic tokens matched by containment.
	// Checked last because they produce false positives on rich headers.
	Tokens map[Target][]string `mapstructure:"tokens"`

	// HeaderPhrases qualify a row as the header row during discovery.
	HeaderPhrases []string `mapstructure:"header"`

	// FilterMarkers identify report-builder filter-description rows that
	// precede the real header and must never be selected as one.
	FilterMarkers []string `mapstructure:"filter_markers"`

	// SummaryExact / SummaryContains identify report-generated aggregate
	// rows by their agent-cell text.
	SummaryExact    []string `mapstructure:"summary_exact"`
	SummaryContains []string `mapstructure:"summary_contains"`

	// Segment indicators matched against full row text of the trips and
	// passthroughs sources.
	RepeatIndicators []string `mapstructure:"repeat_indicators"`
	B2BIndicators    []string `mapstructure:"b2b_indicators"`
}

// DefaultPhraseTable returns the built-in table covering the known family of
// report layouts.
func DefaultPhraseTable() *PhraseTable {
	return &PhraseTable{
		Phrases: map[Target][]string{
			TargetAgent: {
				"owner name", "last action by", "agent name",
				"sales rep", "assigned to",
			},
			TargetCreatedDate: {
				"created date", "creation date", "date created",
				"trip created",
			},
			TargetQuoteSentDate: {
				"quote sent date", "date quote sent", "quote sent",
				"quote date",
			},
			TargetPassthroughDate: {
				"passthrough date", "pass through date", "handoff date",
				"passed date",
			},
			TargetBookingDate: {
				"booking date", "booked date", "date booked",
				"confirmation date",
			},
			TargetNonConvertedDate: {
				"non converted date", "closed date", "lost date",
				"marked date",
			},
			TargetTripName: {
				"trip name", "trip title", "itinerary name",
				"opportunity name",
			},
			TargetLeadReason: {
				"validation failure reason", "failure reason", "reason",
			},
		},
		Synonyms: map[Target][]string{
			TargetAgent:            {"agent", "rep", "representative", "owner", "salesperson"},
			TargetCreatedDate:      {"created", "date"},
			TargetQuoteSentDate:    {"sent"},
			TargetPassthroughDate:  {"passthrough"},
			TargetBookingDate:      {"booked"},
			TargetNonConvertedDate: {"closed"},
			TargetTripName:         {"trip", "name"},
			TargetLeadReason:       {"reason"},
		},
		Tokens: map[Target][]string{
			TargetAgent:            {"agent", "owner", "rep"},
			TargetCreatedDate:      {"created"},
			TargetQuoteSentDate:    {"quote"},
			TargetPassthroughDate:  {"pass"},
			TargetBookingDate:      {"book"},
			TargetNonConvertedDate: {"lost", "closed"},
			TargetTripName:         {"name"},
			TargetLeadReason:       {"reason"},
		},
		HeaderPhrases: []string{
			"owner name", "trip name", "created date", "last action by",
			"quote sent", "passthrough", "booking date", "agent",
		},
		FilterMarkers:    []string{"contains", "equals"},
		SummaryExact:     []string{"total", "subtotal"},
		SummaryContains:  []string{"grand total"},
		RepeatIndicators: []string{"repeat client", "repeat", "returning"},
		B2BIndicators:    []string{"b2b", "business to business", "corporate"},
	}
}

// PhraseTableFromViper overlays config-file overrides from the "phrases" key
// onto the defaults. An absent key yields the defaults unchanged.
func PhraseTableFromViper(v *viper.Viper) (*PhraseTable, error) {
	tbl := DefaultPhraseTable()
	if v == nil || !v.IsSet("phrases") {
		return tbl, nil
	}
	if err := v.UnmarshalKey("phrases", tbl); err != nil {
		return nil, err
	}
	return tbl, nil
}
