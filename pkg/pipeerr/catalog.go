// Package pipeerr defines the canonical error codes surfaced by the
// ingestion and aggregation pipeline, with per-code guidance for callers.
package pipeerr

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies a canonical pipeline error class.
type Code string

const (
	// Validation & input shape
	Validation    Code = "VALIDATION"
	EmptySource   Code = "EMPTY_SOURCE"
	NoAgentColumn Code = "NO_AGENT_COLUMN"

	// Resources & flow control
	BusyPipeline Code = "BUSY_PIPELINE"
	Timeout      Code = "TIMEOUT"
	Cancelled    Code = "CANCELLED"

	// IO & formats
	DecodeFailed      Code = "DECODE_FAILED"
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	PermissionDenied  Code = "PERMISSION_DENIED"
	StoreFailed       Code = "STORE_FAILED"

	// Computation
	AggregationFailed Code = "AGGREGATION_FAILED"
	RecordsFailed     Code = "RECORDS_FAILED"
)

// Entry documents a code's standard message, retry semantics, and next steps.
type Entry struct {
	Code      Code
	Message   string
	Retryable bool
	NextSteps []string
}

var catalog = map[Code]Entry{
	Validation:    {Code: Validation, Message: "invalid inputs", Retryable: true, NextSteps: []string{"Correct the inputs and retry"}},
	EmptySource:   {Code: EmptySource, Message: "required source has no data rows", Retryable: true, NextSteps: []string{"Re-export the report and verify the first sheet holds the data"}},
	NoAgentColumn: {Code: NoAgentColumn, Message: "no owner/agent column could be resolved", Retryable: true, NextSteps: []string{"Check the report header row", "Add the header wording to the phrases config"}},

	BusyPipeline: {Code: BusyPipeline, Message: "an aggregation run is already in flight", Retryable: true, NextSteps: []string{"Retry after the current run completes"}},
	Timeout:      {Code: Timeout, Message: "operation exceeded configured time limit", Retryable: true, NextSteps: []string{"Reduce source size or raise the timeout"}},
	Cancelled:    {Code: Cancelled, Message: "run cancelled before completion", Retryable: true, NextSteps: []string{"No state was persisted; rerun when ready"}},

	DecodeFailed:      {Code: DecodeFailed, Message: "failed to decode workbook", Retryable: false, NextSteps: []string{"Re-save the export as .xlsx and retry"}},
	UnsupportedFormat: {Code: UnsupportedFormat, Message: "unsupported report format", Retryable: false, NextSteps: []string{"Convert to .xlsx and retry"}},
	PermissionDenied:  {Code: PermissionDenied, Message: "path outside allowed directories", Retryable: false, NextSteps: []string{"Place reports under an allowed directory"}},
	StoreFailed:       {Code: StoreFailed, Message: "persistent store operation failed", Retryable: true, NextSteps: []string{"Check the store file is writable"}},

	AggregationFailed: {Code: AggregationFailed, Message: "metrics aggregation failed", Retryable: true, NextSteps: []string{"Verify source files and date range"}},
	RecordsFailed:     {Code: RecordsFailed, Message: "records tracking failed", Retryable: true, NextSteps: []string{"Clear the records snapshot and rerun"}},
}

// Error is a coded pipeline error carrying a human-readable detail message
// that names the offending source or column.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	return normalize(e.Code, e.Msg)
}

// New constructs a coded error with an optional message override.
func New(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// Newf formats details into a coded error.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the canonical code from an error chain, defaulting to
// AggregationFailed for uncoded failures.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return AggregationFailed
}

// Retryable reports whether the error class is worth retrying.
func Retryable(err error) bool {
	e, ok := catalog[CodeOf(err)]
	return ok && e.Retryable
}

// normalize builds a "CODE: message | nextSteps: ..." string for clients
// that surface only a message.
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", string(code), base)
	}
	if base == "" {
		base = e.Message
	}
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}
