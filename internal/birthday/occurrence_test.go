package birthday

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newEvent(birth time.Time) Event {
	return Event{ID: uuid.New(), Name: "Ada", BirthDate: birth}
}

func TestNextOccurrence(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		birth   time.Time
		today   time.Time
		want    time.Time
		wantAge int
	}{
		{
			name:    "upcoming this year",
			birth:   date(1990, time.March, 10),
			today:   time.Date(2024, time.March, 3, 15, 30, 0, 0, time.UTC),
			want:    date(2024, time.March, 10),
			wantAge: 34,
		},
		{
			name:    "just passed rolls to next year",
			birth:   date(1990, time.March, 10),
			today:   date(2024, time.March, 11),
			want:    date(2025, time.March, 10),
			wantAge: 35,
		},
		{
			name:    "today counts as next",
			birth:   date(1990, time.March, 10),
			today:   time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC),
			want:    date(2024, time.March, 10),
			wantAge: 34,
		},
		{
			name:    "dec 31 year boundary",
			birth:   date(2000, time.December, 31),
			today:   date(2024, time.January, 1),
			want:    date(2024, time.December, 31),
			wantAge: 24,
		},
		{
			name:    "feb 29 in leap year",
			birth:   date(1996, time.February, 29),
			today:   date(2024, time.February, 1),
			want:    date(2024, time.February, 29),
			wantAge: 28,
		},
		{
			name:    "feb 29 normalizes to mar 1 in non-leap year",
			birth:   date(1996, time.February, 29),
			today:   date(2025, time.February, 1),
			want:    date(2025, time.March, 1),
			wantAge: 29,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrence(newEvent(tt.birth), tt.today)
			if !got.Date.Equal(tt.want) {
				t.Fatalf("Date = %v, want %v", got.Date, tt.want)
			}
			if got.Age != tt.wantAge {
				t.Fatalf("Age = %d, want %d", got.Age, tt.wantAge)
			}
		})
	}
}

func TestNextOccurrenceNeverBeforeToday(t *testing.T) {
	t.Parallel()
	births := []time.Time{
		date(1990, time.January, 1),
		date(1990, time.June, 15),
		date(1990, time.December, 31),
		date(1996, time.February, 29),
	}
	// Sweep a full year of "today" values.
	today := date(2024, time.January, 1)
	for d := 0; d < 366; d++ {
		for _, b := range births {
			got := NextOccurrence(newEvent(b), today)
			if got.Date.Before(StartOfDay(today)) {
				t.Fatalf("next occurrence %v before start of %v (birth %v)", got.Date, today, b)
			}
		}
		today = today.AddDate(0, 0, 1)
	}
}

func TestLastOccurrence(t *testing.T) {
	t.Parallel()
	ev := newEvent(date(1990, time.March, 10))

	// Already passed this year.
	got := LastOccurrence(ev, date(2024, time.March, 11))
	if !got.Date.Equal(date(2024, time.March, 10)) {
		t.Fatalf("Date = %v", got.Date)
	}
	if got.Age != 34 {
		t.Fatalf("Age = %d", got.Age)
	}

	// Today or upcoming: last was a year ago.
	got = LastOccurrence(ev, date(2024, time.March, 10))
	if !got.Date.Equal(date(2023, time.March, 10)) {
		t.Fatalf("Date = %v", got.Date)
	}

	got = LastOccurrence(ev, date(2024, time.March, 3))
	if !got.Date.Equal(date(2023, time.March, 10)) {
		t.Fatalf("Date = %v", got.Date)
	}
}

func TestDaysUntilAndSince(t *testing.T) {
	t.Parallel()
	ev := newEvent(date(1990, time.March, 10))

	if got := DaysUntil(ev, date(2024, time.March, 3)); got != 7 {
		t.Fatalf("DaysUntil = %d, want 7", got)
	}
	if got := DaysUntil(ev, date(2024, time.March, 10)); got != 0 {
		t.Fatalf("DaysUntil = %d, want 0", got)
	}
	if got := DaysSince(ev, date(2024, time.March, 11)); got != 1 {
		t.Fatalf("DaysSince = %d, want 1", got)
	}
}

func TestNotifyEnabledDefault(t *testing.T) {
	t.Parallel()
	ev := newEvent(date(1990, time.March, 10))
	if !ev.NotifyEnabled() {
		t.Fatal("expected notifications enabled by default")
	}
	off := false
	ev.Notifications = &off
	if ev.NotifyEnabled() {
		t.Fatal("expected notifications disabled")
	}
}
