// Package records detects and persists best-ever per-agent metric values.
package records

import (
	"sort"
	"time"

	"funnelgrid/internal/metrics"
)

// Best is the stored best-ever value of one metric for one agent.
type Best struct {
	Value     int    `json:"value"`
	Date      string `json:"date"`
	UpdatedAt int64  `json:"updatedAt"`
	// Kind is fixed to "daily" today; a cumulative variant can be added
	// later without migrating persisted entries.
	Kind string `json:"kind"`
}

// Store maps agent name -> metric name -> best. It is owned exclusively by
// the tracker; callers only read snapshots. Entries are never pruned, so
// agents absent from new data keep their history.
type Store map[string]map[string]Best

// Event describes a freshly broken record.
type Event struct {
	Agent         string `json:"agent"`
	Metric        string `json:"metric"`
	NewValue      int    `json:"newValue"`
	PreviousValue int    `json:"previousValue"`
	Date          string `json:"date"`
}

// Track compares the run's time series against the stored bests and returns
// an updated store plus the new-record events, ordered by agent then metric.
// Only strictly greater values break a record; ties are silent. The input
// store is not mutated.
func Track(series metrics.TimeSeries, prior Store, now time.Time) (Store, []Event) {
	next := clone(prior)

	// Collapse the series to the peak single-day value per (agent, metric),
	// keeping the earliest date that reached it.
	type peak struct {
		value int
		date  string
	}
	peaks := map[string]map[string]peak{}
	for _, date := range series.Dates() {
		for metric, byGroup := range series[date] {
			for group, n := range byGroup {
				byMetric, ok := peaks[group]
				if !ok {
					byMetric = map[string]peak{}
					peaks[group] = byMetric
				}
				if p, ok := byMetric[metric]; !ok || n > p.value {
					byMetric[metric] = peak{value: n, date: date}
				}
			}
		}
	}

	var events []Event
	for agent, byMetric := range peaks {
		for metric, p := range byMetric {
			prev, hadPrev := next[agent][metric]
			if hadPrev && p.value <= prev.Value {
				continue
			}
			if next[agent] == nil {
				next[agent] = map[string]Best{}
			}
			next[agent][metric] = Best{
				Value:     p.value,
				Date:      p.date,
				UpdatedAt: now.Unix(),
				Kind:      "daily",
			}
			events = append(events, Event{
				Agent:         agent,
				Metric:        metric,
				NewValue:      p.value,
				PreviousValue: prev.Value,
				Date:          p.date,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Agent != events[j].Agent {
			return events[i].Agent < events[j].Agent
		}
		return events[i].Metric < events[j].Metric
	})
	return next, events
}

func clone(s Store) Store {
	out := make(Store, len(s))
	for agent, byMetric := range s {
		inner := make(map[string]Best, len(byMetric))
		for metric, b := range byMetric {
			inner[metric] = b
		}
		out[agent] = inner
	}
	return out
}
