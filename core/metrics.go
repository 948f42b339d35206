package core

import "time"

// Metrics records operational counters.
type Metrics interface {
	// SyncOutcome counts one run of a sync operation (eg. "sync_grade") by outcome.
	SyncOutcome(op, outcome string)
	// JobRun records a finished batch job.
	JobRun(job, action string, processed, updated int, took time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) SyncOutcome(string, string)                     {}
func (nopMetrics) JobRun(string, string, int, int, time.Duration) {}

// NopMetrics discards everything.
var NopMetrics Metrics = nopMetrics{}

// Sync outcomes
const (
	OutcomeOK        = "ok"
	OutcomeNoStudent = "no_student"
	OutcomeSkipped   = "skipped"
	OutcomeDegraded  = "degraded" // primary write done, a best-effort step failed
	OutcomeError     = "error"
)
