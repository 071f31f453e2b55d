package metrics

import "sort"

// Metric names used as time-series and records keys.
const (
	MetricTrips        = "trips"
	MetricQuotes       = "quotes"
	MetricPassthroughs = "passthroughs"
	MetricHotPasses    = "hotPasses"
	MetricBookings     = "bookings"
	MetricNonConverted = "nonConverted"

	MetricRepeatClient = "repeatClient"
	MetricB2B          = "b2b"
)

// Cohort group keys emitted alongside individual agents.
const (
	GroupSeniors = "seniors"
	GroupOthers  = "others"
)

// TimeSeries maps ISO calendar date -> metric -> agent group -> count. The
// representation is sparse: a date appears only when at least one qualifying
// row existed on it. Consumers computing contiguous averages must gap-fill
// explicitly; zero-activity dates are never synthesized here.
type TimeSeries map[string]map[string]map[string]int

// Add accumulates a count into the series, materializing levels as needed.
func (ts TimeSeries) Add(date, metric, group string, n int) {
	if n == 0 {
		return
	}
	byMetric, ok := ts[date]
	if !ok {
		byMetric = map[string]map[string]int{}
		ts[date] = byMetric
	}
	byGroup, ok := byMetric[metric]
	if !ok {
		byGroup = map[string]int{}
		byMetric[metric] = byGroup
	}
	byGroup[group] += n
}

// Dates returns the series dates in ascending calendar order.
func (ts TimeSeries) Dates() []string {
	out := make([]string, 0, len(ts))
	for d := range ts {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// addCohorts folds per-agent date counts into the seniors/others aggregate
// groups. Senior membership is an exact, case-sensitive name match.
func (ts TimeSeries) addCohorts(metric string, perDate map[string]map[string]int, seniors map[string]struct{}) {
	for date, byAgent := range perDate {
		for agent, n := range byAgent {
			ts.Add(date, metric, agent, n)
			if _, ok := seniors[agent]; ok {
				ts.Add(date, metric, GroupSeniors, n)
			} else {
				ts.Add(date, metric, GroupOthers, n)
			}
		}
	}
}
