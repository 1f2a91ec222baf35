// Package plan computes the desired set of reminders for a snapshot of
// events and diffs it against the delivery service's pending set.
//
// Everything in this package is pure: "now" is always injected, and two
// calls with identical inputs return identical output.
package plan

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"birthdayd/internal/birthday"
)

// TimeOfDay is a wall-clock time with no date component, the user's
// preferred notification time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On combines the time-of-day with a calendar date.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, date.Location())
}

// Compute returns the desired reminder set for the given events.
//
// For each event with notifications enabled, the next occurrence is computed
// and one reminder per offset is emitted, filtered to the window
// (now, now+horizon]. The horizon bounds how far ahead the delivery service
// is asked to hold reminders, so events many months away produce nothing
// until they approach.
func Compute(events []birthday.Event, at TimeOfDay, horizon time.Duration, now time.Time) []Reminder {
	var out []Reminder
	limit := now.Add(horizon)

	for _, ev := range events {
		if !ev.NotifyEnabled() {
			continue
		}
		occ := birthday.NextOccurrence(ev, now)

		for _, offset := range Offsets {
			trigger := at.On(occ.Date.AddDate(0, 0, -offset))
			if !trigger.After(now) || trigger.After(limit) {
				continue
			}
			title, body := reminderCopy(offset, ev.Name, occ.Age)
			out = append(out, Reminder{
				ID:         ReminderID(ev.ID, offset),
				EventID:    ev.ID,
				OffsetDays: offset,
				Title:      title,
				Body:       body,
				Trigger:    trigger,
			})
		}
	}
	return out
}
