package birthday

import (
	"time"

	"github.com/google/uuid"
)

// Event is an annually recurring event record.
//
// The daemon treats events as an immutable snapshot per reconciliation run;
// the store owns creation and editing.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	BirthDate time.Time `json:"birth_date"`

	// Notifications is nil when the record predates the flag; nil means
	// enabled (the historical default).
	Notifications *bool `json:"notifications,omitempty"`
}

// NotifyEnabled reports whether reminders should be planned for the event.
func (e Event) NotifyEnabled() bool {
	return e.Notifications == nil || *e.Notifications
}
