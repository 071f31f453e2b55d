package registry

import (
	"context"
	"sort"
	"sync"

	"funnelgrid/config"
	"funnelgrid/internal/ingest"
	"funnelgrid/internal/metrics"
	"funnelgrid/internal/records"
	"funnelgrid/internal/security"
	"funnelgrid/internal/store"
	"funnelgrid/internal/worker"
	"funnelgrid/pkg/pipeerr"
)

// Source names accepted by ingest_report.
var sourceNames = []string{
	"trips", "quotes", "passthroughs", "hot_passes",
	"bookings", "non_converted", "quotes_started",
}

// Pipeline is the tool-facing facade over the runner and stores. Report
// paths are bound per source name and consumed by the next aggregation run.
type Pipeline struct {
	runner *worker.Runner
	store  *store.Store
	sec    *security.Manager

	mu      sync.Mutex
	sources map[string]string
}

// NewPipeline constructs the facade over shared collaborators.
func NewPipeline(runner *worker.Runner, st *store.Store, sec *security.Manager) *Pipeline {
	return &Pipeline{
		runner:  runner,
		store:   st,
		sec:     sec,
		sources: map[string]string{},
	}
}

// RegisterSource validates and binds a report path to a source name,
// returning the canonical path.
func (p *Pipeline) RegisterSource(name, path string) (string, error) {
	if !validSourceName(name) {
		return "", pipeerr.Newf(pipeerr.Validation, "unknown source %q; expected one of %v", name, sourceNames)
	}
	canonical, err := p.sec.ValidateOpenPath(path)
	if err != nil {
		return "", pipeerr.Newf(pipeerr.PermissionDenied, "source %s: %v", name, err)
	}

	p.mu.Lock()
	p.sources[name] = canonical
	p.mu.Unlock()
	return canonical, nil
}

// SourceBinding describes one bound source.
type SourceBinding struct {
	Name string `json:"name" jsonschema_description:"Source name"`
	Path string `json:"path" jsonschema_description:"Canonical report path"`
}

// Sources lists the bound sources in name order, plus whether stored row
// sets from a prior run are available for path-less re-aggregation.
func (p *Pipeline) Sources() ([]SourceBinding, bool, error) {
	p.mu.Lock()
	out := make([]SourceBinding, 0, len(p.sources))
	for name, path := range p.sources {
		out = append(out, SourceBinding{Name: name, Path: path})
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	_, stored, err := p.store.GetRowset("sources")
	if err != nil {
		return nil, false, err
	}
	return out, stored, nil
}

// RunOptions are the tunables of one aggregation run.
type RunOptions struct {
	From          string   `json:"from,omitempty"`
	To            string   `json:"to,omitempty"`
	Seniors       []string `json:"seniors,omitempty"`
	LeadCountMode string   `json:"leadCountMode,omitempty"`
}

// RunAggregation executes one run over the bound sources. With no sources
// bound, the last persisted row sets are reloaded instead.
func (p *Pipeline) RunAggregation(ctx context.Context, opts RunOptions) (worker.Outcome, error) {
	var out worker.Outcome

	mOpts, err := buildOptions(opts)
	if err != nil {
		return out, err
	}

	p.mu.Lock()
	paths := worker.SourcePaths{
		Trips:         p.sources["trips"],
		Quotes:        p.sources["quotes"],
		Passthroughs:  p.sources["passthroughs"],
		HotPasses:     p.sources["hot_passes"],
		Bookings:      p.sources["bookings"],
		NonConverted:  p.sources["non_converted"],
		QuotesStarted: p.sources["quotes_started"],
	}
	p.mu.Unlock()

	return p.runner.Run(ctx, worker.Request{Paths: paths, Options: mOpts})
}

// MetricsSnapshot loads the last persisted aggregation result.
func (p *Pipeline) MetricsSnapshot() (metrics.Result, error) {
	var res metrics.Result
	ok, err := p.store.GetJSON(config.SnapshotKeyMetrics, &res)
	if err != nil {
		return res, err
	}
	if !ok {
		return res, pipeerr.New(pipeerr.EmptySource, "no metrics snapshot; run an aggregation first")
	}
	return res, nil
}

// RecordsSnapshot loads the persisted best-ever store. An absent snapshot
// is an empty store, not an error.
func (p *Pipeline) RecordsSnapshot() (records.Store, error) {
	recs := records.Store{}
	if _, err := p.store.GetJSON(config.SnapshotKeyRecords, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func buildOptions(opts RunOptions) (metrics.Options, error) {
	var out metrics.Options

	if opts.From != "" {
		t, ok := ingest.NormalizeDate(opts.From)
		if !ok {
			return out, pipeerr.Newf(pipeerr.Validation, "from: %q is not a recognizable date", opts.From)
		}
		out.Range.From = t
	}
	if opts.To != "" {
		t, ok := ingest.NormalizeDate(opts.To)
		if !ok {
			return out, pipeerr.Newf(pipeerr.Validation, "to: %q is not a recognizable date", opts.To)
		}
		out.Range.To = t
	}
	out.Seniors = opts.Seniors

	switch opts.LeadCountMode {
	case "":
	case string(metrics.LeadReasonFirst):
		out.LeadCountMode = metrics.LeadReasonFirst
	case string(metrics.LeadLinkageFirst):
		out.LeadCountMode = metrics.LeadLinkageFirst
	default:
		return out, pipeerr.Newf(pipeerr.Validation, "leadCountMode: %q is not reason-first or linkage-first", opts.LeadCountMode)
	}
	return out, nil
}

func validSourceName(name string) bool {
	for _, n := range sourceNames {
		if n == name {
			return true
		}
	}
	return false
}
