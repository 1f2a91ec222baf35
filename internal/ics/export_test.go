package ics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"birthdayd/internal/birthday"
	logx "birthdayd/pkg/logx"
)

func TestRenderThreeYearsPerPerson(t *testing.T) {
	id := uuid.MustParse("3d7a9f40-1111-4222-8333-444455556666")
	events := []birthday.Event{{
		ID:        id,
		Name:      "Alice",
		BirthDate: time.Date(1990, 3, 10, 0, 0, 0, 0, time.UTC),
	}}
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	data, count, err := Render(events, now)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3 (one per year)", count)
	}
	body := string(data)
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"SUMMARY:Alice (34)",
		id.String() + "-2024@" + uidDomain,
		id.String() + "-2023@" + uidDomain,
		id.String() + "-2025@" + uidDomain,
		"DTSTART;VALUE=DATE:20240310",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("export missing %q:\n%s", want, body)
		}
	}
}

func TestRenderSkipsYearsBeforeBirth(t *testing.T) {
	events := []birthday.Event{{
		ID:        uuid.New(),
		Name:      "Newborn",
		BirthDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}}
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	_, count, err := Render(events, now)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2 (2024 and 2025 only)", count)
	}
}

func TestFileExporterWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "birthdays.ics")
	exp := NewFileExporter(path, logx.Nop())

	events := []birthday.Event{{
		ID:        uuid.New(),
		Name:      "Bob",
		BirthDate: time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC),
	}}
	if err := exp.Export(events, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "Bob (39)") {
		t.Fatalf("export content unexpected:\n%s", data)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".birthdayd-ics-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}
