// Package refresh keeps the reminder plan converged while the daemon idles.
//
// The coordinator owns a single outstanding wake-up request with a task
// scheduler, debounced by a tolerance window, and runs the
// load -> plan -> diff -> apply pipeline on every wake within an execution
// budget. Requests are fully re-derivable from settings, so a lost request
// is recovered on the next start or trigger.
package refresh

import (
	"time"
)

// Request is the single outstanding background wake-up.
type Request struct {
	EarliestBegin time.Time
}

// TaskScheduler is the host scheduler collaborator. At most one request is
// outstanding at a time; that invariant is enforced by the coordinator, not
// the scheduler.
type TaskScheduler interface {
	Submit(req Request) error
	Cancel()
	Pending() []Request
}

// State is the coordinator's position in its run cycle.
//
// Completed means the pipeline signalled completion within the execution
// budget, whether or not it returned an error; Expired means the budget
// elapsed first. Run errors travel through the Reconcile return value,
// not the state.
type State int

const (
	StateIdle State = iota
	StateScheduled
	StateRunning
	StateCompleted
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}
