package cmd

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/viper"

	"funnelgrid/internal/metrics"
	"funnelgrid/internal/records"
	"funnelgrid/internal/worker"
)

var (
	recordColor = color.New(color.FgGreen, color.Bold)
	dimColor    = color.New(color.FgHiBlack)
)

func colorEnabled() bool {
	switch strings.ToLower(viper.GetString("color")) {
	case "no", "false", "0":
		return false
	}
	return true
}

// printAgentTable renders the per-agent funnel snapshot.
func printAgentTable(res metrics.Result) error {
	table := tablewriter.NewWriter(os.Stdout)

	table.Header([]string{
		"Agent", "Trips", "Quotes", "Passthru", "Hot", "Bookings",
		"Non-Conv", "Leads", "Q/T %", "P/T %", "Q/P %", "Hot %", "NC %",
	})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, a := range res.Agents {
		data = append(data, []string{
			a.Agent,
			strconv.Itoa(a.Trips),
			strconv.Itoa(a.Quotes),
			strconv.Itoa(a.Passthroughs),
			strconv.Itoa(a.HotPasses),
			strconv.Itoa(a.Bookings),
			strconv.Itoa(a.NonConverted),
			strconv.Itoa(a.TotalLeads),
			fmt.Sprintf("%.1f", a.QuotesFromTrips),
			fmt.Sprintf("%.1f", a.PassthroughsFromTrips),
			fmt.Sprintf("%.1f", a.QuotesFromPassthroughs),
			fmt.Sprintf("%.1f", a.HotPassRate),
			fmt.Sprintf("%.1f", a.NonConvertedRate),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if res.QuotesStarted > 0 {
		fmt.Printf("Quotes started: %d\n", res.QuotesStarted)
	}
	return nil
}

// printRunSummary prints run metadata and highlights freshly broken records.
func printRunSummary(out worker.Outcome) {
	src := "files"
	if out.FromStored {
		src = "stored row sets"
	}
	if colorEnabled() {
		dimColor.Printf("run %s from %s, %d agents, %d active days\n",
			out.RunID, src, len(out.Metrics.Agents), len(out.Metrics.Series.Dates()))
	} else {
		fmt.Printf("run %s from %s, %d agents, %d active days\n",
			out.RunID, src, len(out.Metrics.Agents), len(out.Metrics.Series.Dates()))
	}

	for _, e := range out.Events {
		line := fmt.Sprintf("new record: %s %s %d (was %d) on %s", e.Agent, e.Metric, e.NewValue, e.PreviousValue, e.Date)
		if colorEnabled() {
			recordColor.Println(line)
		} else {
			fmt.Println(line)
		}
	}
}

// printRecordsTable renders the persisted best-ever store.
func printRecordsTable(recs records.Store) error {
	if len(recs) == 0 {
		fmt.Println("no records yet; run an aggregation first")
		return nil
	}

	agents := make([]string, 0, len(recs))
	for a := range recs {
		agents = append(agents, a)
	}
	sort.Strings(agents)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Agent", "Metric", "Best", "Date"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, agent := range agents {
		byMetric := recs[agent]
		ms := make([]string, 0, len(byMetric))
		for m := range byMetric {
			ms = append(ms, m)
		}
		sort.Strings(ms)
		for _, m := range ms {
			b := byMetric[m]
			data = append(data, []string{agent, m, strconv.Itoa(b.Value), b.Date})
		}
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
