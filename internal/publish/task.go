package publish

import (
	"context"
	"sync"

	"github.com/halvard/gebo/internal/apperr"
)

// Task owns the submission state of one modal instance. It enforces the
// single-submission-in-flight rule structurally (a second submit while
// pending is rejected, not queued) and guarantees the pending flag clears on
// every terminal transition. A result arriving after the owning scope is
// cancelled is dropped, never applied.
type Task struct {
	wf *Workflow

	mu     sync.Mutex
	state  State
	result *Result
}

// NewTask creates an idle task over a workflow.
func NewTask(wf *Workflow) *Task {
	return &Task{wf: wf, state: StateIdle}
}

// State returns the current caller-visible state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Result returns the outcome of the last terminal attempt, or nil.
func (t *Task) Result() *Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Do runs one submission attempt. While an attempt is pending, further calls
// return apperr.ErrInFlight. If ctx is cancelled before the attempt finishes,
// the result is discarded and the task returns to idle.
func (t *Task) Do(ctx context.Context, req Request) (Result, error) {
	t.mu.Lock()
	if t.state == StatePending {
		t.mu.Unlock()
		return Result{}, apperr.ErrInFlight
	}
	t.state = StatePending
	t.result = nil
	t.mu.Unlock()

	res := t.wf.Run(ctx, req)

	t.mu.Lock()
	defer t.mu.Unlock()

	// The owning scope went away mid-flight: drop the result.
	if ctx.Err() != nil {
		t.state = StateIdle
		return Result{State: StateIdle}, ctx.Err()
	}

	t.state = res.State
	t.result = &res
	return res, nil
}

// Reset returns the task to idle, modelling modal close/reopen.
func (t *Task) Reset() {
	t.mu.Lock()
	t.state = StateIdle
	t.result = nil
	t.mu.Unlock()
}
