package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"birthdayd/internal/eventbus"
	"birthdayd/internal/plan"
	"birthdayd/internal/store"
	logx "birthdayd/pkg/logx"
)

// Config controls the dispatch pipeline.
type Config struct {
	Workers       int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

// Service implements Delivery with durable pending state and an async
// dispatch pipeline: timer + worker pool + rate limit + retry.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	bus    eventbus.Bus
	sender Sender
	store  store.Store

	cfg     Config
	limiter *rate.Limiter

	pending map[string]plan.Reminder
	wake    chan struct{}
	stopped bool
}

func New(cfg Config, sender Sender, st store.Store, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:     log,
		bus:     bus,
		sender:  sender,
		store:   st,
		pending: map[string]plan.Reminder{},
		wake:    make(chan struct{}, 1),
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Restore loads the persisted pending set, dropping entries whose trigger is
// already in the past (they were missed while the daemon was down; the next
// reconciliation will not want them back).
func (s *Service) Restore(ctx context.Context, now time.Time) error {
	if s.store == nil {
		return nil
	}
	reminders, err := s.store.ListReminders(ctx)
	if err != nil {
		return err
	}

	var stale []string
	s.mu.Lock()
	for _, r := range reminders {
		if r.Trigger.Before(now) {
			stale = append(stale, r.ID)
			continue
		}
		s.pending[r.ID] = r
	}
	restored := len(s.pending)
	s.mu.Unlock()

	if len(stale) > 0 {
		if err := s.store.DeleteReminders(ctx, stale); err != nil {
			s.log.Warn("dropping stale reminders failed", logx.Err(err))
		}
	}
	s.log.Info("pending reminders restored",
		logx.Int("restored", restored), logx.Int("stale", len(stale)))
	return nil
}

// ---- Delivery ----

func (s *Service) Pending(ctx context.Context) ([]PendingReminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PendingReminder, 0, len(s.pending))
	for _, r := range s.pending {
		out = append(out, PendingReminder{ID: r.ID, Trigger: r.Trigger, Title: r.Title, Body: r.Body})
	}
	return out, nil
}

func (s *Service) Add(ctx context.Context, r plan.Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.pending[r.ID] = r
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.PutReminder(ctx, r); err != nil {
			return err
		}
	}
	s.poke()
	return nil
}

func (s *Service) Remove(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	for _, id := range ids {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.DeleteReminders(ctx, ids); err != nil {
			return err
		}
	}
	s.poke()
	return nil
}

func (s *Service) RemoveAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.pending = map[string]plan.Reminder{}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.DeleteAllReminders(ctx); err != nil {
			return err
		}
	}
	s.poke()
	return nil
}

// poke nudges the dispatch loop to recompute its next-trigger timer.
func (s *Service) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// ---- Dispatch ----

// Run is the dispatch loop: it sleeps until the earliest pending trigger,
// claims everything due, and hands the entries to send workers. It blocks
// until ctx is done; after it returns, mutating operations fail with
// ErrStopped. Intended to run under the supervisor.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	workers := s.cfg.Workers
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
	}()

	jobs := make(chan plan.Reminder)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				s.deliver(ctx, r)
			}
		}()
	}
	defer func() {
		close(jobs)
		wg.Wait()
	}()

	for {
		next, ok := s.nextTrigger()
		var timerCh <-chan time.Time
		if ok {
			d := time.Until(next)
			if d < 0 {
				d = 0
			}
			t := time.NewTimer(d)
			timerCh = t.C
			// Stop the timer on every path out of the select.
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-s.wake:
				t.Stop()
				continue
			case <-timerCh:
			}
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.wake:
				continue
			}
		}

		for _, r := range s.claimDue(time.Now()) {
			select {
			case jobs <- r:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (s *Service) nextTrigger() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		next  time.Time
		found bool
	)
	for _, r := range s.pending {
		if !found || r.Trigger.Before(next) {
			next = r.Trigger
			found = true
		}
	}
	return next, found
}

// claimDue removes and returns every pending entry whose trigger is at or
// before now, ordered by trigger. Claimed entries no longer appear in
// Pending(); re-planning simply re-adds them if still desired.
func (s *Service) claimDue(now time.Time) []plan.Reminder {
	s.mu.Lock()
	var due []plan.Reminder
	for id, r := range s.pending {
		if !r.Trigger.After(now) {
			due = append(due, r)
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].Trigger.Before(due[j].Trigger) })
	return due
}

func (s *Service) deliver(ctx context.Context, r plan.Reminder) {
	defer s.forget(r.ID)

	if s.sender == nil {
		// No transport: the reminder is consumed silently. This mirrors a
		// user who declined notifications; planning still works.
		s.log.Debug("reminder dropped (no transport)", logx.String("id", r.ID))
		s.publish(eventbus.TypeReminderDropped, r.ID, nil)
		return
	}

	s.mu.Lock()
	cfg := s.cfg
	limiter := s.limiter
	s.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return
	}

	var err error
	delay := cfg.RetryBase
	for attempt := 0; ; attempt++ {
		err = s.sender.Send(ctx, r.Title, r.Body)
		if err == nil || attempt >= cfg.RetryMax || ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > cfg.RetryMaxDelay {
			delay = cfg.RetryMaxDelay
		}
	}

	if err != nil {
		s.log.Warn("reminder delivery failed", logx.String("id", r.ID), logx.Err(err))
		s.publish(eventbus.TypeReminderDropped, r.ID, err)
		return
	}
	s.log.Info("reminder delivered",
		logx.String("id", r.ID), logx.Time("trigger", r.Trigger))
	s.publish(eventbus.TypeReminderFired, r.ID, nil)
}

// forget drops the delivered entry from the durable pending set.
func (s *Service) forget(id string) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.DeleteReminders(ctx, []string{id}); err != nil {
		s.log.Warn("forget reminder failed", logx.String("id", id), logx.Err(err))
	}
}

func (s *Service) publish(typ, id string, err error) {
	if s.bus == nil {
		return
	}
	data := map[string]any{"id": id}
	if err != nil {
		data["error"] = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
