package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"birthdayd/internal/birthday"
	"birthdayd/internal/plan"
	logx "birthdayd/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const dateLayout = "2006-01-02"

func (s *sqliteStore) LoadEvents(ctx context.Context) ([]birthday.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, birth_date, notify FROM events ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []birthday.Event
	for rows.Next() {
		var (
			idStr  string
			name   string
			birth  string
			notify sql.NullInt64
		)
		if err := rows.Scan(&idStr, &name, &birth, &notify); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("event id %q: %w", idStr, err)
		}
		bd, err := time.Parse(dateLayout, birth)
		if err != nil {
			return nil, fmt.Errorf("event %s birth_date %q: %w", idStr, birth, err)
		}
		ev := birthday.Event{ID: id, Name: name, BirthDate: bd}
		if notify.Valid {
			on := notify.Int64 != 0
			ev.Notifications = &on
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *sqliteStore) SaveEvents(ctx context.Context, events []birthday.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return err
	}
	for _, ev := range events {
		var notify any
		if ev.Notifications != nil {
			if *ev.Notifications {
				notify = 1
			} else {
				notify = 0
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, name, birth_date, notify) VALUES (?, ?, ?, ?)`,
			ev.ID.String(), ev.Name, ev.BirthDate.Format(dateLayout), notify)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) ListReminders(ctx context.Context) ([]plan.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_id, offset_days, title, body, trigger_at FROM reminders`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []plan.Reminder
	for rows.Next() {
		var (
			r         plan.Reminder
			eventID   string
			triggerMS int64
		)
		if err := rows.Scan(&r.ID, &eventID, &r.OffsetDays, &r.Title, &r.Body, &triggerMS); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(eventID)
		if err != nil {
			return nil, fmt.Errorf("reminder %s event_id %q: %w", r.ID, eventID, err)
		}
		r.EventID = id
		r.Trigger = time.UnixMilli(triggerMS).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PutReminder(ctx context.Context, r plan.Reminder) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (id, event_id, offset_days, title, body, trigger_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   event_id = excluded.event_id,
		   offset_days = excluded.offset_days,
		   title = excluded.title,
		   body = excluded.body,
		   trigger_at = excluded.trigger_at`,
		r.ID, r.EventID.String(), r.OffsetDays, r.Title, r.Body, r.Trigger.UnixMilli())
	return err
}

func (s *sqliteStore) DeleteReminders(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) DeleteAllReminders(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reminders`)
	return err
}
