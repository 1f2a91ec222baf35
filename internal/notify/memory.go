package notify

import (
	"context"
	"sync"

	"birthdayd/internal/plan"
)

// Memory is an in-memory Delivery with no dispatch. It backs tests and is a
// safe default when no transport is configured.
type Memory struct {
	mu      sync.Mutex
	entries map[string]plan.Reminder
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]plan.Reminder{}}
}

func (m *Memory) Pending(ctx context.Context) ([]PendingReminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PendingReminder, 0, len(m.entries))
	for _, r := range m.entries {
		out = append(out, PendingReminder{ID: r.ID, Trigger: r.Trigger, Title: r.Title, Body: r.Body})
	}
	return out, nil
}

func (m *Memory) Add(ctx context.Context, r plan.Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[r.ID] = r
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) RemoveAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries = map[string]plan.Reminder{}
	m.mu.Unlock()
	return nil
}
