package birthday

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Occurrence is the concrete calendar date an event falls on in a given
// year, derived per run and never persisted.
type Occurrence struct {
	EventID uuid.UUID
	Date    time.Time // midnight in today's location
	Age     int       // age turned at Date
}

// NextOccurrence returns the event's next occurrence relative to today.
//
// The occurrence is pinned to today's year; if that date is strictly before
// the start of today it rolls forward one year. The result is always
// >= StartOfDay(today); a birthday falling exactly today counts as next.
//
// Feb 29 in a non-leap target year normalizes to Mar 1. This is the
// normalization time.Date performs and is the fixed policy here.
func NextOccurrence(e Event, today time.Time) Occurrence {
	loc := today.Location()
	start := StartOfDay(today)

	candidate := time.Date(today.Year(), e.BirthDate.Month(), e.BirthDate.Day(), 0, 0, 0, 0, loc)
	if candidate.Before(start) {
		candidate = time.Date(today.Year()+1, e.BirthDate.Month(), e.BirthDate.Day(), 0, 0, 0, 0, loc)
	}

	return Occurrence{
		EventID: e.ID,
		Date:    candidate,
		Age:     candidate.Year() - e.BirthDate.Year(),
	}
}

// LastOccurrence is the symmetric counterpart: the most recent occurrence
// strictly before the start of today.
func LastOccurrence(e Event, today time.Time) Occurrence {
	loc := today.Location()
	start := StartOfDay(today)

	candidate := time.Date(today.Year(), e.BirthDate.Month(), e.BirthDate.Day(), 0, 0, 0, 0, loc)
	if !candidate.Before(start) {
		candidate = time.Date(today.Year()-1, e.BirthDate.Month(), e.BirthDate.Day(), 0, 0, 0, 0, loc)
	}

	return Occurrence{
		EventID: e.ID,
		Date:    candidate,
		Age:     candidate.Year() - e.BirthDate.Year(),
	}
}

// DaysUntil returns the number of calendar days from today to the next
// occurrence; zero when the occurrence is today.
func DaysUntil(e Event, today time.Time) int {
	next := NextOccurrence(e, today)
	return daysBetween(StartOfDay(today), next.Date)
}

// DaysSince returns the number of calendar days since the last occurrence.
func DaysSince(e Event, today time.Time) int {
	last := LastOccurrence(e, today)
	return daysBetween(last.Date, StartOfDay(today))
}

// daysBetween counts calendar days between two midnights in the same
// location. Rounding absorbs DST transitions (23h/25h days).
func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
