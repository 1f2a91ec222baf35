package plan

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Offsets is the fixed, ordered set of reminder offsets: days before an
// occurrence at which a reminder fires.
var Offsets = [3]int{7, 1, 0}

// Reminder is one desired delivery entry: an event, an offset, and the
// instant it should fire. Its ID is a pure function of (event, offset), so
// the same logical reminder maps to the same ID across runs.
type Reminder struct {
	ID         string
	EventID    uuid.UUID
	OffsetDays int
	Title      string
	Body       string
	Trigger    time.Time
}

// ReminderID builds the deterministic identifier "<eventID>-<offsetDays>".
func ReminderID(eventID uuid.UUID, offsetDays int) string {
	return eventID.String() + "-" + strconv.Itoa(offsetDays)
}

// ParseReminderID reports whether id belongs to this daemon's identifier
// namespace, and if so, which event and offset it encodes. Reconciliation
// uses this to avoid touching reminders created by unrelated features.
func ParseReminderID(id string) (eventID uuid.UUID, offsetDays int, ok bool) {
	i := strings.LastIndexByte(id, '-')
	if i <= 0 || i == len(id)-1 {
		return uuid.Nil, 0, false
	}
	eid, err := uuid.Parse(id[:i])
	if err != nil {
		return uuid.Nil, 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return uuid.Nil, 0, false
	}
	for _, o := range Offsets {
		if n == o {
			return eid, n, true
		}
	}
	return uuid.Nil, 0, false
}

// reminderCopy maps an offset to the notification title and body.
func reminderCopy(offsetDays int, name string, age int) (title, body string) {
	switch offsetDays {
	case 7:
		return "Upcoming birthday", fmt.Sprintf("%s turns %d in 7 days!", name, age)
	case 1:
		return "Birthday tomorrow", fmt.Sprintf("%s turns %d tomorrow!", name, age)
	default:
		return "Happy birthday today", fmt.Sprintf("%s turns %d today!", name, age)
	}
}
