package config

import "time"

// Default runtime limits and guardrails for the funnelgrid pipeline.
// These values are conservative and can be overridden through viper
// (config file, FUNNELGRID_* env vars, or CLI flags).

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10
	// A single aggregation run may be in flight at a time; the records
	// store read-modify-write is not safe under concurrent runs.
	DefaultMaxActiveRuns = 1

	// Extraction bounds
	DefaultHeaderScanRows = 50
	DefaultMaxRowsPerSource = 200_000
)

const (
	// Timeouts
	DefaultOperationTimeout      = 60 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
)

const (
	// Store defaults
	DefaultStoreFile      = "funnelgrid.db"
	SnapshotKeyMetrics    = "metrics"
	SnapshotKeyTimeSeries = "timeseries"
	SnapshotKeyRecords    = "records"
)
