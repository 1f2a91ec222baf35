package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"birthdayd/internal/birthday"
	"birthdayd/internal/plan"
	logx "birthdayd/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.events.json    (the event records, a JSON array)
//   - <prefix>.reminders.json (the persisted pending set)
//
// Writes are whole-document with an atomic rename, so a crash mid-write
// never leaves a truncated file behind.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	eventsPath    string
	remindersPath string

	reminders map[string]reminderRecord
}

type reminderRecord struct {
	ID         string    `json:"id"`
	EventID    uuid.UUID `json:"event_id"`
	OffsetDays int       `json:"offset_days"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	TriggerAt  time.Time `json:"trigger_at"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:           log,
		eventsPath:    prefix + ".events.json",
		remindersPath: prefix + ".reminders.json",
		reminders:     map[string]reminderRecord{},
	}

	// Best effort: a missing reminders file just means an empty pending set.
	if err := s.loadReminders(); err != nil {
		log.Warn("reminders file unreadable; starting empty", logx.Err(err))
	}
	return s, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) LoadEvents(ctx context.Context) ([]birthday.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.eventsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var events []birthday.Event
	if err := json.Unmarshal(b, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *fileStore) SaveEvents(ctx context.Context, events []birthday.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.eventsPath, events)
}

func (s *fileStore) ListReminders(ctx context.Context) ([]plan.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]plan.Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		out = append(out, plan.Reminder{
			ID:         r.ID,
			EventID:    r.EventID,
			OffsetDays: r.OffsetDays,
			Title:      r.Title,
			Body:       r.Body,
			Trigger:    r.TriggerAt,
		})
	}
	return out, nil
}

func (s *fileStore) PutReminder(ctx context.Context, r plan.Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reminders[r.ID] = reminderRecord{
		ID:         r.ID,
		EventID:    r.EventID,
		OffsetDays: r.OffsetDays,
		Title:      r.Title,
		Body:       r.Body,
		TriggerAt:  r.Trigger,
	}
	return s.flushRemindersLocked()
}

func (s *fileStore) DeleteReminders(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.reminders, id)
	}
	return s.flushRemindersLocked()
}

func (s *fileStore) DeleteAllReminders(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reminders = map[string]reminderRecord{}
	return s.flushRemindersLocked()
}

func (s *fileStore) loadReminders() error {
	b, err := os.ReadFile(s.remindersPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var records []reminderRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return err
	}
	for _, r := range records {
		s.reminders[r.ID] = r
	}
	return nil
}

func (s *fileStore) flushRemindersLocked() error {
	records := make([]reminderRecord, 0, len(s.reminders))
	for _, r := range s.reminders {
		records = append(records, r)
	}
	return writeJSONAtomic(s.remindersPath, records)
}

func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
