// Package worker executes one aggregation run end to end: decode, extract,
// aggregate, track, persist. A run is a single cancellable unit; stores are
// written only after every stage has succeeded.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"funnelgrid/config"
	"funnelgrid/internal/decode"
	"funnelgrid/internal/ingest"
	"funnelgrid/internal/metrics"
	"funnelgrid/internal/records"
	"funnelgrid/internal/runtime"
	"funnelgrid/internal/store"
	"funnelgrid/pkg/pipeerr"
)

// Stage labels for progress events.
const (
	StageDecode    = "decode"
	StageExtract   = "extract"
	StageAggregate = "aggregate"
	StageTrack     = "track"
	StagePersist   = "persist"
	StageDone      = "done"
)

// rowsetKeySources is the blob-store key holding the last run's extracted
// row sets for re-aggregation without re-uploading files.
const rowsetKeySources = "sources"

// Decoder reads a report file into a raw grid. Swappable in tests.
type Decoder func(ctx context.Context, path string, opts decode.Options) (ingest.RawGrid, error)

// SourcePaths names the report files of one run. Empty entries are skipped;
// their sources degrade to zero contributions.
type SourcePaths struct {
	Trips         string
	Quotes        string
	Passthroughs  string
	HotPasses     string
	Bookings      string
	NonConverted  string
	QuotesStarted string
}

// Empty reports whether no path was supplied at all.
func (p SourcePaths) Empty() bool {
	return p == SourcePaths{}
}

// Request describes one aggregation run. With no paths the runner reloads
// the last persisted row sets instead of decoding files.
type Request struct {
	Paths   SourcePaths
	Options metrics.Options
}

// Progress is an advisory event emitted while a run executes. Delivery is
// best-effort; a slow consumer loses events, never blocks the run.
type Progress struct {
	RunID   string `json:"runId"`
	Stage   string `json:"stage"`
	Source  string `json:"source,omitempty"`
	Percent int    `json:"percent"`
}

// Outcome is the result of a completed run.
type Outcome struct {
	RunID      string          `json:"runId"`
	FromStored bool            `json:"fromStored"`
	Metrics    metrics.Result  `json:"metrics"`
	Records    records.Store   `json:"records"`
	Events     []records.Event `json:"events"`
}

// storedSources is the persisted row-set payload.
type storedSources struct {
	RunID   string `json:"runId"`
	SavedAt int64  `json:"savedAt"`

	Trips         ingest.Table     `json:"trips"`
	Quotes        ingest.Table     `json:"quotes"`
	Passthroughs  ingest.Table     `json:"passthroughs"`
	HotPasses     ingest.Table     `json:"hotPasses"`
	Bookings      ingest.Table     `json:"bookings"`
	NonConverted  ingest.LeadTable `json:"nonConverted"`
	QuotesStarted ingest.Table     `json:"quotesStarted"`
}

// Runner owns run execution. At most one run is in flight; a second submit
// fails fast with BUSY_PIPELINE rather than queueing.
type Runner struct {
	ctrl   *runtime.Controller
	store  *store.Store
	tbl    *config.PhraseTable
	logger zerolog.Logger

	// Decode is the report reader, replaceable in tests.
	Decode Decoder

	progress chan Progress
	clock    func() time.Time
}

// NewRunner constructs a Runner over the shared controller and store.
func NewRunner(ctrl *runtime.Controller, st *store.Store, tbl *config.PhraseTable, logger zerolog.Logger) *Runner {
	return &Runner{
		ctrl:     ctrl,
		store:    st,
		tbl:      tbl,
		logger:   logger.With().Str("component", "worker").Logger(),
		Decode:   decode.FirstSheet,
		progress: make(chan Progress, 64),
		clock:    time.Now,
	}
}

// Progress exposes the advisory event stream.
func (r *Runner) Progress() <-chan Progress {
	return r.progress
}

// Run executes one aggregation end to end. Context cancellation aborts the
// run and leaves every store untouched.
func (r *Runner) Run(ctx context.Context, req Request) (Outcome, error) {
	var out Outcome

	if !r.ctrl.TryAcquireRun() {
		return out, pipeerr.New(pipeerr.BusyPipeline, "an aggregation run is already in flight")
	}
	defer r.ctrl.ReleaseRun()

	out.RunID = uuid.NewString()
	log := r.logger.With().Str("run_id", out.RunID).Logger()
	started := r.clock()

	var src metrics.Sources
	var err error
	if req.Paths.Empty() {
		out.FromStored = true
		src, err = r.loadStored(ctx, out.RunID)
	} else {
		src, err = r.decodeSources(ctx, out.RunID, req.Paths)
	}
	if err != nil {
		log.Error().Err(err).Msg("source ingestion failed")
		return out, err
	}
	if err := runErr(ctx); err != nil {
		return out, err
	}

	r.emit(Progress{RunID: out.RunID, Stage: StageAggregate, Percent: 60})
	result, err := metrics.Aggregate(src, req.Options, r.tbl)
	if err != nil {
		log.Error().Err(err).Msg("aggregation failed")
		return out, err
	}
	if err := runErr(ctx); err != nil {
		return out, err
	}

	r.emit(Progress{RunID: out.RunID, Stage: StageTrack, Percent: 80})
	prior := records.Store{}
	if _, err := r.store.GetJSON(config.SnapshotKeyRecords, &prior); err != nil {
		log.Error().Err(err).Msg("records load failed")
		return out, err
	}
	next, events := records.Track(result.Series, prior, r.clock())
	if err := runErr(ctx); err != nil {
		return out, err
	}

	r.emit(Progress{RunID: out.RunID, Stage: StagePersist, Percent: 90})
	if err := r.persist(out.RunID, src, result, next); err != nil {
		log.Error().Err(err).Msg("persist failed")
		return out, err
	}

	out.Metrics = result
	out.Records = next
	out.Events = events
	r.emit(Progress{RunID: out.RunID, Stage: StageDone, Percent: 100})
	log.Info().
		Int("agents", len(result.Agents)).
		Int("new_records", len(events)).
		Bool("from_stored", out.FromStored).
		Dur("elapsed", r.clock().Sub(started)).
		Msg("aggregation run completed")
	return out, nil
}

func (r *Runner) decodeSources(ctx context.Context, runID string, paths SourcePaths) (metrics.Sources, error) {
	var src metrics.Sources

	named := []struct {
		name  string
		path  string
		table *ingest.Table
	}{
		{"trips", paths.Trips, &src.Trips},
		{"quotes", paths.Quotes, &src.Quotes},
		{"passthroughs", paths.Passthroughs, &src.Passthroughs},
		{"hot_passes", paths.HotPasses, &src.HotPasses},
		{"bookings", paths.Bookings, &src.Bookings},
		{"quotes_started", paths.QuotesStarted, &src.QuotesStarted},
	}

	total := len(named) + 1
	for i, s := range named {
		if s.path == "" {
			continue
		}
		r.emit(Progress{RunID: runID, Stage: StageDecode, Source: s.name, Percent: i * 50 / total})
		grid, err := r.Decode(ctx, s.path, decode.Options{})
		if err != nil {
			return src, err
		}
		r.emit(Progress{RunID: runID, Stage: StageExtract, Source: s.name, Percent: (i*50 + 25) / total})
		*s.table = ingest.ExtractTable(grid, r.tbl)
	}

	if paths.NonConverted != "" {
		r.emit(Progress{RunID: runID, Stage: StageDecode, Source: "non_converted", Percent: 45})
		grid, err := r.Decode(ctx, paths.NonConverted, decode.Options{})
		if err != nil {
			return src, err
		}
		r.emit(Progress{RunID: runID, Stage: StageExtract, Source: "non_converted", Percent: 50})
		src.NonConverted = ingest.ExtractLeads(grid, r.tbl)
	}
	return src, nil
}

func (r *Runner) loadStored(ctx context.Context, runID string) (metrics.Sources, error) {
	var src metrics.Sources
	if err := runErr(ctx); err != nil {
		return src, err
	}

	r.emit(Progress{RunID: runID, Stage: StageExtract, Source: rowsetKeySources, Percent: 30})
	raw, ok, err := r.store.GetRowset(rowsetKeySources)
	if err != nil {
		return src, err
	}
	if !ok {
		return src, pipeerr.New(pipeerr.EmptySource, "no stored row sets; supply report files for a first run")
	}

	var payload storedSources
	if err := unmarshalRowset(raw, &payload); err != nil {
		return src, err
	}
	src.Trips = payload.Trips
	src.Quotes = payload.Quotes
	src.Passthroughs = payload.Passthroughs
	src.HotPasses = payload.HotPasses
	src.Bookings = payload.Bookings
	src.NonConverted = payload.NonConverted
	src.QuotesStarted = payload.QuotesStarted
	return src, nil
}

func (r *Runner) persist(runID string, src metrics.Sources, result metrics.Result, recs records.Store) error {
	payload := storedSources{
		RunID:         runID,
		SavedAt:       r.clock().Unix(),
		Trips:         src.Trips,
		Quotes:        src.Quotes,
		Passthroughs:  src.Passthroughs,
		HotPasses:     src.HotPasses,
		Bookings:      src.Bookings,
		NonConverted:  src.NonConverted,
		QuotesStarted: src.QuotesStarted,
	}
	raw, err := marshalRowset(payload)
	if err != nil {
		return err
	}
	if err := r.store.SetRowset(rowsetKeySources, raw); err != nil {
		return err
	}
	if err := r.store.SetJSON(config.SnapshotKeyMetrics, result); err != nil {
		return err
	}
	if err := r.store.SetJSON(config.SnapshotKeyTimeSeries, result.Series); err != nil {
		return err
	}
	return r.store.SetJSON(config.SnapshotKeyRecords, recs)
}

func (r *Runner) emit(p Progress) {
	select {
	case r.progress <- p:
	default:
	}
}

func marshalRowset(p storedSources) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, pipeerr.Newf(pipeerr.StoreFailed, "encode row sets: %v", err)
	}
	return raw, nil
}

func unmarshalRowset(raw []byte, p *storedSources) error {
	if err := json.Unmarshal(raw, p); err != nil {
		return pipeerr.Newf(pipeerr.StoreFailed, "decode stored row sets: %v", err)
	}
	return nil
}

func runErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return pipeerr.Newf(pipeerr.Cancelled, "run cancelled: %v", err)
	}
	return nil
}
