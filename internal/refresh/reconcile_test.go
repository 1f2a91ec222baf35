package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"birthdayd/internal/birthday"
	"birthdayd/internal/notify"
	"birthdayd/internal/plan"
	logx "birthdayd/pkg/logx"
)

type staticSource struct {
	events []birthday.Event
	err    error
}

func (s *staticSource) LoadEvents(ctx context.Context) ([]birthday.Event, error) {
	return s.events, s.err
}

// recordingDelivery counts mutations so convergence tests can assert that a
// second pass is a no-op.
type recordingDelivery struct {
	notify.Delivery
	mu      sync.Mutex
	adds    int
	removes int
}

func (r *recordingDelivery) Add(ctx context.Context, rem plan.Reminder) error {
	r.mu.Lock()
	r.adds++
	r.mu.Unlock()
	return r.Delivery.Add(ctx, rem)
}

func (r *recordingDelivery) Remove(ctx context.Context, ids []string) error {
	r.mu.Lock()
	r.removes += len(ids)
	r.mu.Unlock()
	return r.Delivery.Remove(ctx, ids)
}

func testSettings() func() Settings {
	return func() Settings {
		return Settings{
			At:      plan.TimeOfDay{Hour: 9, Minute: 0},
			Horizon: 30 * 24 * time.Hour,
		}
	}
}

func TestReconcilerSchedulesUpcomingBirthday(t *testing.T) {
	id := uuid.MustParse("3d7a9f40-1111-4222-8333-444455556666")
	source := &staticSource{events: []birthday.Event{{
		ID:        id,
		Name:      "Alice",
		BirthDate: time.Date(1990, 3, 10, 0, 0, 0, 0, time.UTC),
	}}}
	delivery := notify.NewMemory()
	rec := NewReconciler(source, delivery, testSettings(), logx.Nop(), nil)

	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	if err := rec.Run(context.Background(), now); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pending, err := delivery.Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != len(plan.Offsets) {
		t.Fatalf("pending = %d reminders, want %d", len(pending), len(plan.Offsets))
	}
	byID := map[string]notify.PendingReminder{}
	for _, p := range pending {
		byID[p.ID] = p
	}
	week, ok := byID[plan.ReminderID(id, 7)]
	if !ok {
		t.Fatalf("missing week-before reminder, got %v", byID)
	}
	wantTrigger := time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC)
	if !week.Trigger.Equal(wantTrigger) {
		t.Fatalf("week-before trigger = %v, want %v", week.Trigger, wantTrigger)
	}
}

func TestReconcilerIsIdempotent(t *testing.T) {
	id := uuid.New()
	source := &staticSource{events: []birthday.Event{{
		ID:        id,
		Name:      "Bob",
		BirthDate: time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC),
	}}}
	delivery := &recordingDelivery{Delivery: notify.NewMemory()}
	rec := NewReconciler(source, delivery, testSettings(), logx.Nop(), nil)

	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	if err := rec.Run(context.Background(), now); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	firstAdds := delivery.adds

	if err := rec.Run(context.Background(), now); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if delivery.adds != firstAdds || delivery.removes != 0 {
		t.Fatalf("second pass mutated: adds %d -> %d, removes %d",
			firstAdds, delivery.adds, delivery.removes)
	}
}

func TestReconcilerRemovesStaleAndKeepsForeign(t *testing.T) {
	removedEvent := uuid.New()
	delivery := notify.NewMemory()
	ctx := context.Background()

	// Reminder for an event no longer in the list.
	stale := plan.Reminder{
		ID:      plan.ReminderID(removedEvent, 7),
		Trigger: time.Date(2024, 6, 8, 9, 0, 0, 0, time.UTC),
	}
	// Entry owned by someone else entirely.
	foreign := plan.Reminder{ID: "weekly-digest", Trigger: time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)}
	if err := delivery.Add(ctx, stale); err != nil {
		t.Fatal(err)
	}
	if err := delivery.Add(ctx, foreign); err != nil {
		t.Fatal(err)
	}

	rec := NewReconciler(&staticSource{}, delivery, testSettings(), logx.Nop(), nil)
	if err := rec.Run(ctx, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pending, err := delivery.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != "weekly-digest" {
		t.Fatalf("pending = %v, want only the foreign entry", pending)
	}
}

func TestReconcilerLoadFailurePlansAgainstEmptyList(t *testing.T) {
	eventID := uuid.New()
	delivery := notify.NewMemory()
	ctx := context.Background()
	if err := delivery.Add(ctx, plan.Reminder{
		ID:      plan.ReminderID(eventID, 0),
		Trigger: time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatal(err)
	}

	source := &staticSource{err: errors.New("disk gone")}
	rec := NewReconciler(source, delivery, testSettings(), logx.Nop(), nil)
	if err := rec.Run(ctx, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pending, err := delivery.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %v, want empty after load failure", pending)
	}
}

func TestReconcilerSkipsDisabledEvents(t *testing.T) {
	off := false
	source := &staticSource{events: []birthday.Event{{
		ID:            uuid.New(),
		Name:          "Muted",
		BirthDate:     time.Date(1990, 6, 10, 0, 0, 0, 0, time.UTC),
		Notifications: &off,
	}}}
	delivery := notify.NewMemory()
	rec := NewReconciler(source, delivery, testSettings(), logx.Nop(), nil)

	if err := rec.Run(context.Background(), time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	pending, err := delivery.Pending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %v, want none for a muted event", pending)
	}
}
