package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/specwright/specwright/internal/trial"
)

// TrialState tracks a single running or completed streamed trial.
type TrialState struct {
	RunID       string
	SessionID   string
	Broadcaster *Broadcaster
	Cancel      context.CancelFunc
	StartedAt   time.Time

	mu     sync.Mutex
	result *trial.Result
	err    error
	done   bool
}

// SetResult records the terminal outcome of the trial.
func (ts *TrialState) SetResult(res *trial.Result, err error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.result = res
	ts.err = err
	ts.done = true
}

// Status returns the current trial status for the HTTP API.
func (ts *TrialState) Status() TrialStatus {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	status := TrialStatus{
		RunID:     ts.RunID,
		SessionID: ts.SessionID,
		State:     "running",
		StartedAt: ts.StartedAt,
	}
	if ts.done {
		switch {
		case ts.err != nil:
			status.State = "error"
			status.FailureReason = ts.err.Error()
		case ts.result != nil && ts.result.Passed:
			status.State = "passed"
		default:
			status.State = "failed"
		}
		status.Result = ts.result
	}
	return status
}

// TrialRegistry tracks streamed trials by run ID.
type TrialRegistry struct {
	mu     sync.Mutex
	trials map[string]*TrialState
}

func NewTrialRegistry() *TrialRegistry {
	return &TrialRegistry{trials: make(map[string]*TrialState)}
}

// Register adds a trial. Duplicate run IDs are an error.
func (r *TrialRegistry) Register(id string, ts *TrialState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trials[id]; ok {
		return fmt.Errorf("trial %s already registered", id)
	}
	r.trials[id] = ts
	return nil
}

// Get returns the trial with the given run ID.
func (r *TrialRegistry) Get(id string) (*TrialState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.trials[id]
	return ts, ok
}

// List returns all known trials.
func (r *TrialRegistry) List() []*TrialState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*TrialState, 0, len(r.trials))
	for _, ts := range r.trials {
		out = append(out, ts)
	}
	return out
}

// CancelAll cancels every running trial. Used at shutdown.
func (r *TrialRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ts := range r.trials {
		if ts.Cancel != nil {
			ts.Cancel()
		}
	}
}
