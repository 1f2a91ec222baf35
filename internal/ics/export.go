// Package ics writes the birthday list as an iCalendar file so calendar
// clients can subscribe to upcoming occurrences alongside the push
// reminders.
package ics

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/emersion/go-ical"

	"birthdayd/internal/birthday"
	logx "birthdayd/pkg/logx"
)

const (
	prodID    = "-//birthdayd//calendar export//EN"
	uidDomain = "birthdayd.local"
)

// FileExporter renders events to a calendar file after each reconciliation
// pass. Writes are atomic: the file is either the previous complete export
// or the new one.
type FileExporter struct {
	path string
	log  logx.Logger
}

func NewFileExporter(path string, log logx.Logger) *FileExporter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &FileExporter{path: path, log: log}
}

func (f *FileExporter) Export(events []birthday.Event, now time.Time) error {
	data, count, err := Render(events, now)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".birthdayd-ics-*")
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace export: %w", err)
	}

	f.log.Debug("calendar export written",
		logx.String("path", f.path),
		logx.Int("occurrences", count))
	return nil
}

// Render produces the iCalendar document. Each person gets one all-day
// VEVENT per year for last year, this year and next year, so clients that
// scroll backwards or forwards still see entries without a re-sync. UIDs are
// deterministic, so re-exports update events in place.
func Render(events []birthday.Event, now time.Time) ([]byte, int, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)

	stamp := ical.NewProp(ical.PropDateTimeStamp)
	stamp.SetDateTime(now.UTC())

	count := 0
	years := []int{now.Year() - 1, now.Year(), now.Year() + 1}
	for _, e := range events {
		for _, y := range years {
			if y < e.BirthDate.Year() {
				continue
			}
			// time.Date folds Feb 29 into Mar 1 in non-leap years,
			// same as the reminder planner.
			date := time.Date(y, e.BirthDate.Month(), e.BirthDate.Day(), 0, 0, 0, 0, now.Location())
			age := y - e.BirthDate.Year()

			ev := ical.NewEvent()
			ev.Props.SetText(ical.PropUID, fmt.Sprintf("%s-%d@%s", e.ID, y, uidDomain))
			ev.Props.SetText(ical.PropSummary, fmt.Sprintf("%s (%d)", e.Name, age))
			ev.Props.Set(stamp)

			start := ical.NewProp(ical.PropDateTimeStart)
			start.SetDate(date)
			ev.Props.Set(start)

			cal.Children = append(cal.Children, ev.Component)
			count++
		}
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, 0, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), count, nil
}
