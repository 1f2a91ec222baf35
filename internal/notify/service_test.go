package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"birthdayd/internal/plan"
	logx "birthdayd/pkg/logx"
)

type captureSender struct {
	mu   sync.Mutex
	sent []string
	ch   chan string
}

func newCaptureSender() *captureSender {
	return &captureSender{ch: make(chan string, 16)}
}

func (c *captureSender) Send(_ context.Context, title, body string) error {
	c.mu.Lock()
	c.sent = append(c.sent, title)
	c.mu.Unlock()
	c.ch <- title
	return nil
}

func mkReminder(offset int, trigger time.Time) plan.Reminder {
	id := uuid.New()
	return plan.Reminder{
		ID:         plan.ReminderID(id, offset),
		EventID:    id,
		OffsetDays: offset,
		Title:      "Upcoming birthday",
		Body:       "Ada turns 34 in 7 days!",
		Trigger:    trigger,
	}
}

func TestServicePendingSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(Config{}, nil, nil, logx.Nop(), nil)

	r := mkReminder(7, time.Now().Add(time.Hour))
	if err := s.Add(ctx, r); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Add with the same ID replaces the entry.
	r2 := r
	r2.Trigger = r.Trigger.Add(time.Hour)
	if err := s.Add(ctx, r2); err != nil {
		t.Fatalf("Add (replace): %v", err)
	}

	pending, err := s.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending, want 1", len(pending))
	}
	if !pending[0].Trigger.Equal(r2.Trigger) {
		t.Fatalf("Trigger = %v, want %v", pending[0].Trigger, r2.Trigger)
	}

	if err := s.Remove(ctx, []string{r.ID, "unknown-id"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	pending, _ = s.Pending(ctx)
	if len(pending) != 0 {
		t.Fatalf("got %d pending after remove, want 0", len(pending))
	}
}

func TestServiceRemoveAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(Config{}, nil, nil, logx.Nop(), nil)

	for i := 0; i < 3; i++ {
		if err := s.Add(ctx, mkReminder(7, time.Now().Add(time.Hour))); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := s.RemoveAll(ctx); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	pending, _ := s.Pending(ctx)
	if len(pending) != 0 {
		t.Fatalf("got %d pending, want 0", len(pending))
	}
}

func TestClaimDue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(Config{}, nil, nil, logx.Nop(), nil)

	now := time.Now()
	past := mkReminder(0, now.Add(-time.Minute))
	future := mkReminder(7, now.Add(time.Hour))
	_ = s.Add(ctx, past)
	_ = s.Add(ctx, future)

	due := s.claimDue(now)
	if len(due) != 1 || due[0].ID != past.ID {
		t.Fatalf("claimDue = %+v", due)
	}

	// Claimed entries disappear from the pending view.
	pending, _ := s.Pending(ctx)
	if len(pending) != 1 || pending[0].ID != future.ID {
		t.Fatalf("pending after claim = %+v", pending)
	}
}

func TestDispatchDeliversDueReminder(t *testing.T) {
	t.Parallel()
	sender := newCaptureSender()
	s := New(Config{Workers: 1, RatePerSec: 100}, sender, nil, logx.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	// A reminder already due at Add time fires promptly.
	if err := s.Add(ctx, mkReminder(0, time.Now().Add(-time.Second))); err != nil {
		t.Fatalf("Add: %v", err)
	}

	select {
	case title := <-sender.ch:
		if title != "Upcoming birthday" {
			t.Fatalf("title = %q", title)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reminder was not delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestMutationsFailAfterDispatchStops(t *testing.T) {
	t.Parallel()
	s := New(Config{Workers: 1}, nil, nil, logx.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}

	bg := context.Background()
	if err := s.Add(bg, mkReminder(7, time.Now().Add(time.Hour))); !errors.Is(err, ErrStopped) {
		t.Fatalf("Add after stop = %v, want ErrStopped", err)
	}
	if err := s.Remove(bg, []string{"some-id"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Remove after stop = %v, want ErrStopped", err)
	}
	if err := s.RemoveAll(bg); !errors.Is(err, ErrStopped) {
		t.Fatalf("RemoveAll after stop = %v, want ErrStopped", err)
	}
}

func TestDispatchWithoutSenderConsumesSilently(t *testing.T) {
	t.Parallel()
	s := New(Config{Workers: 1}, nil, nil, logx.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	if err := s.Add(ctx, mkReminder(0, time.Now().Add(-time.Second))); err != nil {
		t.Fatalf("Add: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		pending, _ := s.Pending(ctx)
		if len(pending) == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("reminder still pending: %+v", pending)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
