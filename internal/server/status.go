package server

import (
	"sync"
	"time"
)

// RunStatus is the snapshot served by /v1/status.
type RunStatus struct {
	RunID       string     `json:"run_id,omitempty"`
	State       string     `json:"state"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RunsTotal   int        `json:"runs_total"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
}

// Run states.
const (
	StateIdle    = "idle"
	StateRunning = "running"
	StateOK      = "ok"
	StateFailed  = "failed"
)

// StatusTracker records batch run transitions for the status endpoint.
// Safe for concurrent use; the serve loop writes, handlers read.
type StatusTracker struct {
	mu     sync.RWMutex
	status RunStatus
}

// NewStatusTracker starts in the idle state.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{status: RunStatus{State: StateIdle}}
}

// RunStarted marks a batch as in flight.
func (t *StatusTracker) RunStarted(runID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.RunID = runID
	t.status.State = StateRunning
	t.status.StartedAt = &at
	t.status.CompletedAt = nil
	t.status.Error = ""
}

// RunFinished records the outcome of the in-flight batch.
func (t *StatusTracker) RunFinished(at time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.CompletedAt = &at
	t.status.RunsTotal++
	if err != nil {
		t.status.State = StateFailed
		t.status.Error = err.Error()
		return
	}
	t.status.State = StateOK
}

// NextRun publishes when the next scheduled batch fires.
func (t *StatusTracker) NextRun(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.NextRunAt = &at
}

// Snapshot returns a copy of the current status.
func (t *StatusTracker) Snapshot() RunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}
