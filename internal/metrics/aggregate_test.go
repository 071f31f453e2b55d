package metrics

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"funnelgrid/config"
	"funnelgrid/internal/ingest"
)

func table(header []string, cells ...[]string) ingest.Table {
	grid := ingest.RawGrid{header}
	for _, row := range cells {
		grid = append(grid, row)
	}
	return ingest.ExtractTable(grid, config.DefaultPhraseTable())
}

func tripsFixture() ingest.Table {
	return table(
		[]string{"Owner Name", "Trip Name", "Created Date", "Channel"},
		[]string{"A", "trip1", "1/5/2024", ""},
		[]string{"A", "trip2", "1/6/2024", "repeat client"},
		[]string{"A", "trip3", "1/7/2024", "b2b"},
		[]string{"B", "trip4", "1/8/2024", ""},
	)
}

func day(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAggregateFunnelRatioScenario(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	// 10 trips for A in range, 2 outside; 4 quotes for A: quotesFromTrips = 40.
	trips := ingest.RawGrid{{"Owner Name", "Trip Name", "Created Date", "Status"}}
	for i := 0; i < 10; i++ {
		trips = append(trips, []string{"A", "trip", "1/5/2024", "open"})
	}
	trips = append(trips,
		[]string{"A", "old1", "12/1/2023", "open"},
		[]string{"A", "old2", "12/2/2023", "open"},
	)
	quotes := ingest.RawGrid{{"Owner Name", "Trip Name", "Quote Sent Date", "Status"}}
	for i := 0; i < 4; i++ {
		quotes = append(quotes, []string{"A", "trip", "1/6/2024", "sent"})
	}

	src := Sources{
		Trips:  ingest.ExtractTable(trips, tbl),
		Quotes: ingest.ExtractTable(quotes, tbl),
	}
	opts := Options{Range: DateRange{From: day("2024-01-01"), To: day("2024-01-31")}}

	res, err := Aggregate(src, opts, tbl)
	require.NoError(t, err)
	require.Len(t, res.Agents, 1)
	a := res.Agents[0]
	require.Equal(t, "A", a.Agent)
	require.Equal(t, 10, a.Trips)
	require.Equal(t, 4, a.Quotes)
	require.InDelta(t, 40.0, a.QuotesFromTrips, 0.0001)
}

func TestAggregateCountsInvariantUnderRowOrder(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	header := []string{"Owner Name", "Trip Name", "Created Date", "Status"}
	rows := [][]string{
		{"A", "t1", "1/5/2024", "x"},
		{"B", "t2", "1/5/2024", "x"},
		{"A", "t3", "1/6/2024", "x"},
		{"C", "t4", "1/7/2024", "x"},
		{"B", "t5", "1/7/2024", "x"},
	}

	baseline, err := Aggregate(Sources{Trips: table(header, rows...)}, Options{}, tbl)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(7))
	for trial := 0; trial < 5; trial++ {
		shuffled := make([][]string, len(rows))
		copy(shuffled, rows)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		res, err := Aggregate(Sources{Trips: table(header, shuffled...)}, Options{}, tbl)
		require.NoError(t, err)
		require.Equal(t, baseline.Agents, res.Agents)
		require.Equal(t, baseline.Series, res.Series)
	}
}

func TestAggregateKeepsUnparseableDates(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	src := Sources{Trips: table(
		[]string{"Owner Name", "Trip Name", "Created Date", "Status"},
		[]string{"A", "t1", "1/5/2024", "x"},
		[]string{"A", "t2", "pending", "x"},
		[]string{"A", "t3", "", "x"},
		[]string{"A", "t4", "12/1/2023", "x"},
	)}
	opts := Options{Range: DateRange{From: day("2024-01-01")}}

	res, err := Aggregate(src, opts, tbl)
	require.NoError(t, err)
	// In-range row plus both unparseable rows; the 2023 row is excluded.
	require.Equal(t, 3, res.Agents[0].Trips)
}

func TestAggregateRatiosZeroWhenDenominatorZero(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	src := Sources{Trips: table(
		[]string{"Owner Name", "Trip Name", "Created Date", "Status"},
		[]string{"A", "t1", "1/5/2024", "x"},
	)}

	res, err := Aggregate(src, Options{}, tbl)
	require.NoError(t, err)
	a := res.Agents[0]
	require.Zero(t, a.QuotesFromPassthroughs)
	require.Zero(t, a.HotPassRate)
	require.False(t, a.QuotesFromTrips != a.QuotesFromTrips, "ratio must never be NaN")
}

func TestAggregateEmptyTripsFails(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	_, err := Aggregate(Sources{}, Options{}, tbl)
	require.Error(t, err)
	require.Contains(t, err.Error(), "EMPTY_SOURCE")
	require.Contains(t, err.Error(), "trips")
}

func TestAggregateSecondarySourceDegradesToZero(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	src := Sources{Trips: tripsFixture()}

	res, err := Aggregate(src, Options{}, tbl)
	require.NoError(t, err)
	for _, a := range res.Agents {
		require.Zero(t, a.Quotes)
		require.Zero(t, a.Bookings)
	}
}

func TestAggregateSegmentCounts(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	res, err := Aggregate(Sources{Trips: tripsFixture()}, Options{}, tbl)
	require.NoError(t, err)

	require.Equal(t, "A", res.Agents[0].Agent)
	require.Equal(t, 1, res.Agents[0].RepeatTrips)
	require.Equal(t, 1, res.Agents[0].B2BTrips)
	require.Zero(t, res.Agents[1].RepeatTrips)

	require.Equal(t, 1, res.SegmentDaily[MetricRepeatClient]["2024-01-06"])
	require.Equal(t, 1, res.SegmentDaily[MetricB2B]["2024-01-07"])
}

func TestAggregateSeniorCohorts(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	res, err := Aggregate(Sources{Trips: tripsFixture()}, Options{Seniors: []string{"A"}}, tbl)
	require.NoError(t, err)

	day5 := res.Series["2024-01-05"][MetricTrips]
	require.Equal(t, 1, day5["A"])
	require.Equal(t, 1, day5[GroupSeniors])
	require.Zero(t, day5[GroupOthers])

	day8 := res.Series["2024-01-08"][MetricTrips]
	require.Equal(t, 1, day8["B"])
	require.Equal(t, 1, day8[GroupOthers])
}

func TestAggregateSeriesIsSparse(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	res, err := Aggregate(Sources{Trips: tripsFixture()}, Options{}, tbl)
	require.NoError(t, err)

	require.Equal(t, []string{"2024-01-05", "2024-01-06", "2024-01-07", "2024-01-08"}, res.Series.Dates())
	_, hasGap := res.Series["2024-01-09"]
	require.False(t, hasGap, "zero-activity dates must not be fabricated")
}

func TestAggregateAgentsSortedLexicographically(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	src := Sources{Trips: table(
		[]string{"Owner Name", "Trip Name", "Created Date", "Status"},
		[]string{"Zed", "t1", "1/5/2024", "x"},
		[]string{"Amy", "t2", "1/5/2024", "x"},
		[]string{"Mia", "t3", "1/5/2024", "x"},
	)}

	res, err := Aggregate(src, Options{}, tbl)
	require.NoError(t, err)
	require.Equal(t, "Amy", res.Agents[0].Agent)
	require.Equal(t, "Mia", res.Agents[1].Agent)
	require.Equal(t, "Zed", res.Agents[2].Agent)
}

func TestAggregateLeadLinkageSuppliesMissingDates(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	leads := ingest.ExtractLeads(ingest.RawGrid{
		{"Owner Name", "Trip Name", "Closed Date", "Validation Failure Reason"},
		{"A", "trip1", "", "no budget"},   // date via linkage -> 1/5, in range
		{"A", "nomatch", "", "no budget"}, // no date at all -> kept
		{"A", "trip2", "12/1/2023", "no budget"}, // own date outside range
	}, tbl)

	src := Sources{Trips: tripsFixture(), NonConverted: leads}
	opts := Options{Range: DateRange{From: day("2024-01-01"), To: day("2024-01-31")}}

	res, err := Aggregate(src, opts, tbl)
	require.NoError(t, err)
	require.Equal(t, "A", res.Agents[0].Agent)
	require.Equal(t, 2, res.Agents[0].NonConverted)
	require.Equal(t, res.Agents[0].Trips+2, res.Agents[0].TotalLeads)
}

func TestAggregateLeadCountModes(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	leads := ingest.ExtractLeads(ingest.RawGrid{
		{"Owner Name", "Trip Name", "Closed Date", "Validation Failure Reason"},
		{"A", "trip1", "1/5/2024", "no budget"},
		{"A", "trip2", "1/6/2024", ""},
	}, tbl)
	src := Sources{Trips: tripsFixture(), NonConverted: leads}

	// Reason-first: only the row with a failure reason counts.
	res, err := Aggregate(src, Options{LeadCountMode: LeadReasonFirst}, tbl)
	require.NoError(t, err)
	require.Equal(t, 1, res.Agents[0].NonConverted)

	// Linkage-first: every extracted lead row counts.
	res, err = Aggregate(src, Options{LeadCountMode: LeadLinkageFirst}, tbl)
	require.NoError(t, err)
	require.Equal(t, 2, res.Agents[0].NonConverted)
}

func TestAggregateQuotesStartedFlatCount(t *testing.T) {
	tbl := config.DefaultPhraseTable()
	started := table(
		[]string{"Quote Sent Date", "Trip Name", "Stage", "Value"},
		[]string{"1/5/2024", "t1", "draft", "100"},
		[]string{"1/6/2024", "t2", "draft", "200"},
		[]string{"12/1/2023", "t3", "draft", "300"},
	)
	src := Sources{Trips: tripsFixture(), QuotesStarted: started}
	opts := Options{Range: DateRange{From: day("2024-01-01")}}

	res, err := Aggregate(src, opts, tbl)
	require.NoError(t, err)
	require.Equal(t, 2, res.QuotesStarted)
}

func TestDateRangeInclusiveEndOfDay(t *testing.T) {
	rng := DateRange{From: day("2024-01-01"), To: day("2024-01-31")}
	require.True(t, rng.Contains(day("2024-01-31")))
	require.True(t, rng.Contains(day("2024-01-01")))
	require.False(t, rng.Contains(day("2024-02-01")))
	require.False(t, rng.Contains(day("2023-12-31")))

	open := DateRange{}
	require.True(t, open.Contains(day("1999-01-01")))
}
