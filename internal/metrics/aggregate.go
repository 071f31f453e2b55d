// Package metrics computes per-agent funnel metrics and calendar-bucketed
// time series from normalized report row sets.
package metrics

import (
	"sort"
	"strings"
	"time"

	"funnelgrid/config"
	"funnelgrid/internal/ingest"
	"funnelgrid/pkg/pipeerr"
)

// Sources carries the extracted row sets of one aggregation run. Trips is
// mandatory; every other source degrades to zero contributions when empty.
type Sources struct {
	Trips        ingest.Table
	Quotes       ingest.Table
	Passthroughs ingest.Table
	HotPasses    ingest.Table
	Bookings     ingest.Table
	NonConverted ingest.LeadTable

	// QuotesStarted lacks a per-agent breakdown and contributes only a
	// flat count.
	QuotesStarted ingest.Table
}

// DateRange is an inclusive calendar filter. A zero bound is open; the end
// bound covers its full calendar day.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether a normalized (midnight) date falls inside the
// range.
func (r DateRange) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	if !r.From.IsZero() && day.Before(dayOf(r.From)) {
		return false
	}
	if !r.To.IsZero() && day.After(dayOf(r.To)) {
		return false
	}
	return true
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// LeadCountMode selects which signal feeds the non-converted lead count
// when both the validation-reason column and the trip linkage are available.
type LeadCountMode string

const (
	// LeadReasonFirst counts only rows carrying a validation-failure
	// reason whenever the reason column resolved; the trip linkage then
	// only supplies missing dates.
	LeadReasonFirst LeadCountMode = "reason-first"
	// LeadLinkageFirst counts every extracted lead row regardless of the
	// reason column.
	LeadLinkageFirst LeadCountMode = "linkage-first"
)

// Options tune one aggregation run.
type Options struct {
	Range         DateRange
	Seniors       []string
	LeadCountMode LeadCountMode
}

// AgentMetrics is the per-agent funnel snapshot. Recomputed from source rows
// on every run, never mutated incrementally.
type AgentMetrics struct {
	Agent string `json:"agent"`

	Trips        int `json:"trips"`
	Quotes       int `json:"quotes"`
	Passthroughs int `json:"passthroughs"`
	HotPasses    int `json:"hotPasses"`
	Bookings     int `json:"bookings"`
	NonConverted int `json:"nonConverted"`
	TotalLeads   int `json:"totalLeads"`

	QuotesFromTrips        float64 `json:"quotesFromTrips"`
	PassthroughsFromTrips  float64 `json:"passthroughsFromTrips"`
	QuotesFromPassthroughs float64 `json:"quotesFromPassthroughs"`
	HotPassRate            float64 `json:"hotPassRate"`
	NonConvertedRate       float64 `json:"nonConvertedRate"`

	RepeatTrips        int `json:"repeatTrips"`
	RepeatPassthroughs int `json:"repeatPassthroughs"`
	B2BTrips           int `json:"b2bTrips"`
	B2BPassthroughs    int `json:"b2bPassthroughs"`
}

// Result is the output of one aggregation run.
type Result struct {
	// Agents is ordered lexicographically by agent name for reproducible
	// diffing against stored records.
	Agents []AgentMetrics `json:"agents"`

	QuotesStarted int `json:"quotesStarted"`

	Series TimeSeries `json:"series"`

	// SegmentDaily holds the repeat-client and B2B daily trip counts,
	// independent of the per-source series. metric -> ISO date -> count.
	SegmentDaily map[string]map[string]int `json:"segmentDaily"`
}

// Aggregate computes funnel metrics and time series for all sources under
// the supplied date range. Row order never affects counts; every
// contribution is commutative per agent and date.
func Aggregate(src Sources, opts Options, tbl *config.PhraseTable) (Result, error) {
	var out Result

	if len(src.Trips.Rows) == 0 {
		return out, pipeerr.New(pipeerr.EmptySource, "trips source has no data rows; funnel metrics need the trips report")
	}
	if opts.LeadCountMode == "" {
		opts.LeadCountMode = LeadReasonFirst
	}

	seniors := make(map[string]struct{}, len(opts.Seniors))
	for _, s := range opts.Seniors {
		seniors[s] = struct{}{}
	}

	trips := countRows(src.Trips, config.TargetCreatedDate, opts.Range, tbl)
	if len(trips.perAgent) == 0 {
		return out, pipeerr.New(pipeerr.NoAgentColumn, "trips source: no owner column and no grouped agent labels")
	}
	quotes := countRows(src.Quotes, config.TargetQuoteSentDate, opts.Range, tbl)
	passthroughs := countRows(src.Passthroughs, config.TargetPassthroughDate, opts.Range, tbl)
	hotPasses := countRows(src.HotPasses, config.TargetPassthroughDate, opts.Range, tbl)
	bookings := countRows(src.Bookings, config.TargetBookingDate, opts.Range, tbl)

	tripDates := tripCreationDates(src.Trips, tbl)
	leads := countLeads(src.NonConverted, tripDates, opts, tbl)

	repeatTrips, repeatDaily := countSegments(src.Trips, config.TargetCreatedDate, tbl.RepeatIndicators, opts.Range, tbl)
	b2bTrips, b2bDaily := countSegments(src.Trips, config.TargetCreatedDate, tbl.B2BIndicators, opts.Range, tbl)
	repeatPass, _ := countSegments(src.Passthroughs, config.TargetPassthroughDate, tbl.RepeatIndicators, opts.Range, tbl)
	b2bPass, _ := countSegments(src.Passthroughs, config.TargetPassthroughDate, tbl.B2BIndicators, opts.Range, tbl)

	out.QuotesStarted = flatCount(src.QuotesStarted, config.TargetQuoteSentDate, opts.Range, tbl)

	agents := agentUnion(trips.perAgent, quotes.perAgent, passthroughs.perAgent,
		hotPasses.perAgent, bookings.perAgent, leads.perAgent)

	out.Agents = make([]AgentMetrics, 0, len(agents))
	for _, agent := range agents {
		m := AgentMetrics{
			Agent:        agent,
			Trips:        trips.perAgent[agent],
			Quotes:       quotes.perAgent[agent],
			Passthroughs: passthroughs.perAgent[agent],
			HotPasses:    hotPasses.perAgent[agent],
			Bookings:     bookings.perAgent[agent],
			NonConverted: leads.perAgent[agent],

			RepeatTrips:        repeatTrips[agent],
			RepeatPassthroughs: repeatPass[agent],
			B2BTrips:           b2bTrips[agent],
			B2BPassthroughs:    b2bPass[agent],
		}
		m.TotalLeads = m.Trips + m.NonConverted
		m.QuotesFromTrips = pct(m.Quotes, m.Trips)
		m.PassthroughsFromTrips = pct(m.Passthroughs, m.Trips)
		m.QuotesFromPassthroughs = pct(m.Quotes, m.Passthroughs)
		m.HotPassRate = pct(m.HotPasses, m.Passthroughs)
		m.NonConvertedRate = pct(m.NonConverted, m.TotalLeads)
		out.Agents = append(out.Agents, m)
	}

	out.Series = TimeSeries{}
	out.Series.addCohorts(MetricTrips, trips.perDate, seniors)
	out.Series.addCohorts(MetricQuotes, quotes.perDate, seniors)
	out.Series.addCohorts(MetricPassthroughs, passthroughs.perDate, seniors)
	out.Series.addCohorts(MetricHotPasses, hotPasses.perDate, seniors)
	out.Series.addCohorts(MetricBookings, bookings.perDate, seniors)
	out.Series.addCohorts(MetricNonConverted, leads.perDate, seniors)

	out.SegmentDaily = map[string]map[string]int{
		MetricRepeatClient: repeatDaily,
		MetricB2B:          b2bDaily,
	}

	return out, nil
}

// sourceCount accumulates a source's rows per agent and per (date, agent).
type sourceCount struct {
	perAgent map[string]int
	perDate  map[string]map[string]int
}

func newSourceCount() sourceCount {
	return sourceCount{
		perAgent: map[string]int{},
		perDate:  map[string]map[string]int{},
	}
}

func (c *sourceCount) add(agent string, date time.Time, dated bool) {
	c.perAgent[agent]++
	if dated {
		iso := ingest.ISODate(date)
		byAgent, ok := c.perDate[iso]
		if !ok {
			byAgent = map[string]int{}
			c.perDate[iso] = byAgent
		}
		byAgent[agent]++
	}
}

// countRows tallies a source per agent, filtering by the resolved date
// column when both a parseable date and a range bound exist. Rows without a
// parseable date are always kept.
func countRows(t ingest.Table, dateTarget config.Target, rng DateRange, tbl *config.PhraseTable) sourceCount {
	out := newSourceCount()
	if len(t.Rows) == 0 {
		return out
	}
	headers := rowHeaders(t)
	agentCol, ok := ingest.ResolveColumn(headers, config.TargetAgent, tbl)
	if !ok {
		return out
	}
	dateCol, hasDate := ingest.ResolveColumn(headers, dateTarget, tbl)

	for _, row := range t.Rows {
		agent := row[agentCol]
		if agent == "" {
			continue
		}
		if !hasDate {
			out.add(agent, time.Time{}, false)
			continue
		}
		d, parsed := ingest.NormalizeDate(row[dateCol])
		if parsed && !rng.Contains(d) {
			continue
		}
		out.add(agent, d, parsed)
	}
	return out
}

// tripCreationDates links trip names to creation dates so lead rows missing
// their own date can still be range-filtered.
func tripCreationDates(t ingest.Table, tbl *config.PhraseTable) map[string]time.Time {
	out := map[string]time.Time{}
	if len(t.Rows) == 0 {
		return out
	}
	headers := rowHeaders(t)
	nameCol, okName := ingest.ResolveColumn(headers, config.TargetTripName, tbl)
	dateCol, okDate := ingest.ResolveColumn(headers, config.TargetCreatedDate, tbl)
	if !okName || !okDate {
		return out
	}
	for _, row := range t.Rows {
		name := strings.ToLower(strings.TrimSpace(row[nameCol]))
		if name == "" {
			continue
		}
		if d, ok := ingest.NormalizeDate(row[dateCol]); ok {
			out[name] = d
		}
	}
	return out
}

// countLeads tallies non-converted rows. A row's date is its own
// non-converted date when parseable, otherwise the linked trip's creation
// date. Under reason-first mode a resolved reason column restricts counting
// to rows that actually carry a failure reason.
func countLeads(lt ingest.LeadTable, tripDates map[string]time.Time, opts Options, tbl *config.PhraseTable) sourceCount {
	out := newSourceCount()
	if len(lt.Rows) == 0 {
		return out
	}
	headers := rowHeaders(lt.Table)
	agentCol, ok := ingest.ResolveColumn(headers, config.TargetAgent, tbl)
	if !ok {
		return out
	}
	dateCol, hasDate := ingest.ResolveColumn(headers, config.TargetNonConvertedDate, tbl)
	nameCol, hasName := ingest.ResolveColumn(headers, config.TargetTripName, tbl)

	reasonGated := opts.LeadCountMode == LeadReasonFirst && lt.ReasonCol != ""

	for _, row := range lt.Rows {
		agent := row[agentCol]
		if agent == "" {
			continue
		}
		if reasonGated && strings.TrimSpace(row[lt.ReasonCol]) == "" {
			continue
		}

		var day time.Time
		dated := false
		if hasDate {
			day, dated = ingest.NormalizeDate(row[dateCol])
		}
		if !dated && hasName {
			if d, ok := tripDates[strings.ToLower(strings.TrimSpace(row[nameCol]))]; ok {
				day, dated = d, true
			}
		}
		if dated && !opts.Range.Contains(day) {
			continue
		}
		out.add(agent, day, dated)
	}
	return out
}

// countSegments re-scans a source for rows whose joined cell text matches a
// segment indicator, within the same date filter as the main counts.
func countSegments(t ingest.Table, dateTarget config.Target, indicators []string, rng DateRange, tbl *config.PhraseTable) (map[string]int, map[string]int) {
	perAgent := map[string]int{}
	perDate := map[string]int{}
	if len(t.Rows) == 0 || len(indicators) == 0 {
		return perAgent, perDate
	}
	headers := rowHeaders(t)
	agentCol, ok := ingest.ResolveColumn(headers, config.TargetAgent, tbl)
	if !ok {
		return perAgent, perDate
	}
	dateCol, hasDate := ingest.ResolveColumn(headers, dateTarget, tbl)

	for _, row := range t.Rows {
		agent := row[agentCol]
		if agent == "" || !rowMatches(row, indicators) {
			continue
		}
		var day time.Time
		dated := false
		if hasDate {
			day, dated = ingest.NormalizeDate(row[dateCol])
			if dated && !rng.Contains(day) {
				continue
			}
		}
		perAgent[agent]++
		if dated {
			perDate[ingest.ISODate(day)]++
		}
	}
	return perAgent, perDate
}

func rowMatches(row ingest.NormalizedRow, indicators []string) bool {
	for _, v := range row {
		low := strings.ToLower(v)
		for _, ind := range indicators {
			if strings.Contains(low, ind) {
				return true
			}
		}
	}
	return false
}

// flatCount tallies a source that has no per-agent breakdown.
func flatCount(t ingest.Table, dateTarget config.Target, rng DateRange, tbl *config.PhraseTable) int {
	if len(t.Rows) == 0 {
		return 0
	}
	headers := rowHeaders(t)
	dateCol, hasDate := ingest.ResolveColumn(headers, dateTarget, tbl)
	n := 0
	for _, row := range t.Rows {
		if hasDate {
			if d, ok := ingest.NormalizeDate(row[dateCol]); ok && !rng.Contains(d) {
				continue
			}
		}
		n++
	}
	return n
}

// rowHeaders lists the resolvable keys of a table's rows: the named header
// columns plus the sentinel agent field when grouping logic attached one.
func rowHeaders(t ingest.Table) []string {
	out := make([]string, 0, len(t.Header)+1)
	for _, h := range t.Header {
		if h != "" {
			out = append(out, h)
		}
	}
	if t.OwnerCol == "" {
		out = append(out, ingest.AgentKey)
	}
	return out
}

func agentUnion(sets ...map[string]int) []string {
	seen := map[string]struct{}{}
	for _, set := range sets {
		for agent := range set {
			seen[agent] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for agent := range seen {
		out = append(out, agent)
	}
	sort.Strings(out)
	return out
}

func pct(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator) * 100
}
