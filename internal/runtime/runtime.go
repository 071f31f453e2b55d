package runtime

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"funnelgrid/config"
)

// Limits captures the concurrency and ingestion guardrails configured for
// the pipeline.
type Limits struct {
	// Concurrency caps
	MaxConcurrentRequests int
	MaxActiveRuns         int

	// Row bounds per decoded source
	MaxRowsPerSource int

	// Timeouts
	OperationTimeout      time.Duration
	AcquireRequestTimeout time.Duration
}

// NewLimits initializes Limits with compile-time fallbacks when values are unset.
func NewLimits(maxConcurrentRequests, maxActiveRuns int) Limits {
	if maxConcurrentRequests <= 0 {
		maxConcurrentRequests = config.DefaultMaxConcurrentRequests
	}
	if maxActiveRuns <= 0 {
		maxActiveRuns = config.DefaultMaxActiveRuns
	}

	return Limits{
		MaxConcurrentRequests: maxConcurrentRequests,
		MaxActiveRuns:         maxActiveRuns,
		MaxRowsPerSource:      config.DefaultMaxRowsPerSource,
		OperationTimeout:      config.DefaultOperationTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
	}
}

// Controller coordinates the request gate and the aggregation-run gate.
// Runs are single-flight by default: a second aggregation submitted while
// one is active is rejected, not queued.
type Controller struct {
	limits           Limits
	requestSemaphore *semaphore.Weighted
	runSemaphore     *semaphore.Weighted
}

// NewController constructs a Controller backed by weighted semaphores.
func NewController(limits Limits) *Controller {
	return &Controller{
		limits:           limits,
		requestSemaphore: semaphore.NewWeighted(int64(limits.MaxConcurrentRequests)),
		runSemaphore:     semaphore.NewWeighted(int64(limits.MaxActiveRuns)),
	}
}

// AcquireRequest reserves capacity for an incoming request.
func (c *Controller) AcquireRequest(ctx context.Context) error {
	return c.requestSemaphore.Acquire(ctx, 1)
}

// ReleaseRequest frees previously-acquired request capacity.
func (c *Controller) ReleaseRequest() {
	c.requestSemaphore.Release(1)
}

// TryAcquireRun reserves the aggregation slot without waiting. A false
// return means another aggregation is in flight.
func (c *Controller) TryAcquireRun() bool {
	return c.runSemaphore.TryAcquire(1)
}

// ReleaseRun frees the aggregation slot.
func (c *Controller) ReleaseRun() {
	c.runSemaphore.Release(1)
}

// LimitsSnapshot exposes the configured guardrails for telemetry and discovery.
func (c *Controller) LimitsSnapshot() Limits {
	return c.limits
}
