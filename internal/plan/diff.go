package plan

import "time"

// Pending is the delivery service's view of one scheduled reminder.
type Pending struct {
	ID      string
	Trigger time.Time
}

// Diff computes the minimal add/remove set that makes the pending set equal
// to the desired set.
//
//   - toAdd: desired entries missing from pending, or present with a
//     different trigger instant (a changed notification time must reschedule
//     the entry; the delivery service replaces entries by ID).
//   - toRemove: pending IDs inside this daemon's identifier namespace that
//     are no longer desired. Foreign IDs are never touched.
//
// Diff is pure and idempotent: applied once, a second Diff over the result
// yields nothing.
func Diff(desired []Reminder, pending []Pending) (toAdd []Reminder, toRemove []string) {
	pendingByID := make(map[string]Pending, len(pending))
	for _, p := range pending {
		pendingByID[p.ID] = p
	}

	desiredIDs := make(map[string]struct{}, len(desired))
	for _, d := range desired {
		desiredIDs[d.ID] = struct{}{}
		p, ok := pendingByID[d.ID]
		if !ok || !p.Trigger.Equal(d.Trigger) {
			toAdd = append(toAdd, d)
		}
	}

	for _, p := range pending {
		if _, _, ours := ParseReminderID(p.ID); !ours {
			continue
		}
		if _, ok := desiredIDs[p.ID]; !ok {
			toRemove = append(toRemove, p.ID)
		}
	}
	return toAdd, toRemove
}
