package store

import (
	"context"
	"errors"
	"time"

	"birthdayd/internal/birthday"
	"birthdayd/internal/plan"
)

var ErrDisabled = errors.New("store disabled")

// Config configures persistence.
//
// Driver values:
//   - "file": dependency-free JSON documents on disk
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled and the daemon runs on
// an empty, in-memory event list.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the daemon.
//
// Events are owned externally (the daemon only plans from them); reminders
// are the delivery service's pending set, persisted so reconciliation state
// survives restarts.
type Store interface {
	LoadEvents(ctx context.Context) ([]birthday.Event, error)
	SaveEvents(ctx context.Context, events []birthday.Event) error

	ListReminders(ctx context.Context) ([]plan.Reminder, error)
	PutReminder(ctx context.Context, r plan.Reminder) error
	DeleteReminders(ctx context.Context, ids []string) error
	DeleteAllReminders(ctx context.Context) error

	Close() error
}
