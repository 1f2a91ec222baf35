package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"birthdayd/internal/birthday"
	"birthdayd/internal/eventbus"
	"birthdayd/internal/notify"
	"birthdayd/internal/plan"
	logx "birthdayd/pkg/logx"
)

// EventSource provides the current birthday list. The persistence layer
// satisfies it; a nil source behaves like an empty list.
type EventSource interface {
	LoadEvents(ctx context.Context) ([]birthday.Event, error)
}

// Settings is the reconciler's snapshot of the notification preferences.
type Settings struct {
	At       plan.TimeOfDay
	Horizon  time.Duration
	Location *time.Location
}

// Exporter receives the event list after each successful pass. Used for the
// calendar export; a nil exporter disables it.
type Exporter interface {
	Export(events []birthday.Event, now time.Time) error
}

// Reconciler is the Pipeline implementation: it loads events, computes the
// desired reminder set, diffs it against the delivery service's pending set
// and applies the difference. Each pass is idempotent, so a pass interrupted
// by the execution budget converges on the next run.
type Reconciler struct {
	source   EventSource
	delivery notify.Delivery
	settings func() Settings

	expMu    sync.Mutex
	exporter Exporter

	log logx.Logger
	bus eventbus.Bus
}

func NewReconciler(source EventSource, delivery notify.Delivery, settings func() Settings, log logx.Logger, bus eventbus.Bus) *Reconciler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reconciler{
		source:   source,
		delivery: delivery,
		settings: settings,
		log:      log,
		bus:      bus,
	}
}

// SetExporter installs the post-pass export hook. A nil exporter disables
// the hook; swapping is safe while runs are in flight.
func (r *Reconciler) SetExporter(e Exporter) {
	r.expMu.Lock()
	r.exporter = e
	r.expMu.Unlock()
}

func (r *Reconciler) currentExporter() Exporter {
	r.expMu.Lock()
	defer r.expMu.Unlock()
	return r.exporter
}

func (r *Reconciler) Run(ctx context.Context, now time.Time) error {
	st := r.settings()
	if st.Location != nil {
		now = now.In(st.Location)
	}

	events := r.loadEvents(ctx)
	for _, e := range events {
		if !e.NotifyEnabled() {
			continue
		}
		occ := birthday.NextOccurrence(e, now)
		r.log.Debug("upcoming occurrence",
			logx.String("name", e.Name),
			logx.Time("date", occ.Date),
			logx.Int("age", occ.Age),
			logx.Int("in_days", birthday.DaysUntil(e, now)))
	}
	desired := plan.Compute(events, st.At, st.Horizon, now)
	r.publish(eventbus.Event{
		Type: eventbus.TypePlanComputed,
		Data: map[string]any{
			"events":    len(events),
			"reminders": len(desired),
		},
	})

	pending, err := r.delivery.Pending(ctx)
	if err != nil {
		return fmt.Errorf("read pending reminders: %w", err)
	}
	known := make([]plan.Pending, 0, len(pending))
	for _, p := range pending {
		known = append(known, plan.Pending{ID: p.ID, Trigger: p.Trigger})
	}

	toAdd, toRemove := plan.Diff(desired, known)
	r.log.Debug("reconciliation diff",
		logx.Int("desired", len(desired)),
		logx.Int("pending", len(pending)),
		logx.Int("add", len(toAdd)),
		logx.Int("remove", len(toRemove)))
	r.publish(eventbus.Event{
		Type: eventbus.TypeDiffComputed,
		Data: map[string]any{
			"add":    len(toAdd),
			"remove": len(toRemove),
		},
	})

	// Removals first: if the pass is cut short, a missing reminder is
	// recreated next run, while a stale one would fire wrongly.
	if len(toRemove) > 0 {
		if err := r.delivery.Remove(ctx, toRemove); err != nil {
			r.publish(eventbus.Event{Type: eventbus.TypeApplyFailed, Data: map[string]any{"op": "remove"}})
			return fmt.Errorf("remove stale reminders: %w", err)
		}
	}
	for _, reminder := range toAdd {
		if err := r.delivery.Add(ctx, reminder); err != nil {
			r.publish(eventbus.Event{Type: eventbus.TypeApplyFailed, Data: map[string]any{"op": "add", "id": reminder.ID}})
			return fmt.Errorf("schedule reminder %s: %w", reminder.ID, err)
		}
	}
	r.publish(eventbus.Event{
		Type: eventbus.TypeApplyOK,
		Data: map[string]any{
			"added":   len(toAdd),
			"removed": len(toRemove),
		},
	})

	if exp := r.currentExporter(); exp != nil {
		if err := exp.Export(events, now); err != nil {
			// Export is best effort; the reminder state is already correct.
			r.log.Warn("calendar export failed", logx.Err(err))
		}
	}
	return nil
}

// loadEvents degrades to an empty list on failure: planning against nothing
// clears stale reminders instead of leaving wrong ones armed.
func (r *Reconciler) loadEvents(ctx context.Context) []birthday.Event {
	if r.source == nil {
		return nil
	}
	events, err := r.source.LoadEvents(ctx)
	if err != nil {
		r.log.Error("loading events failed; planning against empty list", logx.Err(err))
		return nil
	}
	return events
}

func (r *Reconciler) publish(ev eventbus.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}
