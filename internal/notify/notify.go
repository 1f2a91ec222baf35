// Package notify holds the reminder delivery service.
//
// The planner and reconciler only ever talk to the Delivery interface: a set
// of pending reminders keyed by deterministic IDs. The real implementation
// keeps that set durable and delivers due reminders through a transport
// (Telegram); the in-memory implementation backs tests and transport-less
// runs.
package notify

import (
	"context"
	"errors"
	"time"

	"birthdayd/internal/plan"
)

// ErrStopped is returned by mutating Delivery operations once the dispatch
// loop has exited; the pending set is frozen for shutdown.
var ErrStopped = errors.New("delivery stopped")

// PendingReminder is the delivery service's view of one scheduled entry.
type PendingReminder struct {
	ID      string
	Trigger time.Time
	Title   string
	Body    string
}

// Delivery is the external delivery collaborator.
//
// Add replaces any existing entry with the same ID. Remove ignores unknown
// IDs. Implementations must tolerate concurrent calls.
type Delivery interface {
	Pending(ctx context.Context) ([]PendingReminder, error)
	Add(ctx context.Context, r plan.Reminder) error
	Remove(ctx context.Context, ids []string) error
	RemoveAll(ctx context.Context) error
}

// Sender delivers one rendered reminder to the user. Implementations are
// transport-specific (Telegram); a nil Sender means delivery degrades to a
// silent no-op, mirroring a user who declined notification permission.
type Sender interface {
	Send(ctx context.Context, title, body string) error
}
