package warp

import (
	"sync"
)

// StateTracker keeps the most recent warp result for the HTTP endpoints
type StateTracker struct {
	mu        sync.RWMutex
	latest    *Result
	completed int
	failed    int
	lastError string
}

// NewStateTracker creates an empty state tracker
func NewStateTracker() *StateTracker {
	return &StateTracker{}
}

// Update records a completed result
func (st *StateTracker) Update(result *Result) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.latest = result
	st.completed++
}

// RecordFailure records a failed job
func (st *StateTracker) RecordFailure(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.failed++
	if err != nil {
		st.lastError = err.Error()
	}
}

// Latest returns the most recent result, or nil
func (st *StateTracker) Latest() *Result {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.latest
}

// HasResult reports whether any job has completed
func (st *StateTracker) HasResult() bool {
	return st.Latest() != nil
}

// Counts returns the number of completed and failed jobs and the last error message
func (st *StateTracker) Counts() (completed, failed int, lastError string) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.completed, st.failed, st.lastError
}
