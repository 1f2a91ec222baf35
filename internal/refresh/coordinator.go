package refresh

import (
	"context"
	"sync"
	"time"

	"birthdayd/internal/eventbus"
	"birthdayd/internal/plan"
	logx "birthdayd/pkg/logx"
)

// Pipeline is one reconciliation pass. Implementations must be idempotent:
// re-running after a partial application converges.
type Pipeline interface {
	Run(ctx context.Context, now time.Time) error
}

// Config tunes the coordinator.
//
// Zero values fall back to: 60s safety buffer, 60s tolerance, 30s budget.
type Config struct {
	// SafetyBuffer is subtracted from the target instant so the wake-up
	// lands slightly before the notification time.
	SafetyBuffer time.Duration
	// Tolerance is the window within which an existing request counts as
	// "the same" and is left untouched.
	Tolerance time.Duration
	// Budget bounds each run; a run that exceeds it is marked expired.
	Budget time.Duration
}

// Coordinator maintains exactly one outstanding wake-up request and runs the
// pipeline on each wake. Overlapping triggers coalesce: while a run is in
// flight, further triggers are dropped (the running pass already reconciles
// to the latest desired state, and reconcile is idempotent anyway).
type Coordinator struct {
	sched    TaskScheduler
	pipeline Pipeline
	settings func() plan.TimeOfDay
	now      func() time.Time

	log logx.Logger
	bus eventbus.Bus

	busy chan struct{} // cap 1; held while a run is in flight

	stateMu sync.Mutex
	state   State
	cfg     Config
}

func normalized(cfg Config) Config {
	if cfg.SafetyBuffer <= 0 {
		cfg.SafetyBuffer = time.Minute
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = time.Minute
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 30 * time.Second
	}
	return cfg
}

func NewCoordinator(cfg Config, sched TaskScheduler, pipeline Pipeline, settings func() plan.TimeOfDay, now func() time.Time, log logx.Logger, bus eventbus.Bus) *Coordinator {
	if now == nil {
		now = time.Now
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Coordinator{
		sched:    sched,
		pipeline: pipeline,
		settings: settings,
		now:      now,
		cfg:      normalized(cfg),
		log:      log,
		bus:      bus,
		busy:     make(chan struct{}, 1),
		state:    StateIdle,
	}
}

// Apply swaps the timing configuration. Takes effect on the next trigger.
func (c *Coordinator) Apply(cfg Config) {
	c.stateMu.Lock()
	c.cfg = normalized(cfg)
	c.stateMu.Unlock()
}

func (c *Coordinator) config() Config {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.cfg
}

// State reports the most recent lifecycle state. Informational only.
func (c *Coordinator) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// NextWakeInstant computes the next wake-up instant: today at the
// notification time-of-day minus the safety buffer, rolled to tomorrow if
// that instant is not in the future. The roll decision uses the buffered
// instant, not the raw time-of-day: inside the buffer window (wake time
// included) the next wake is tomorrow's, so a wake callback that reschedules
// always lands strictly ahead of now.
func NextWakeInstant(at plan.TimeOfDay, now time.Time, buffer time.Duration) time.Time {
	target := at.On(now).Add(-buffer)
	if !target.After(now) {
		target = at.On(now.AddDate(0, 0, 1)).Add(-buffer)
	}
	return target
}

// ScheduleNext ensures a wake-up request exists for the next notification
// time. If the outstanding request is already within the tolerance window of
// the fresh target, it is left alone; otherwise it is cancelled and
// resubmitted. Submission failures are logged, not retried: the next
// trigger (start, config change, wake) reissues the request.
func (c *Coordinator) ScheduleNext() {
	cfg := c.config()
	now := c.now()
	target := NextWakeInstant(c.settings(), now, cfg.SafetyBuffer)

	if pending := c.sched.Pending(); len(pending) > 0 {
		diff := pending[0].EarliestBegin.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff <= cfg.Tolerance {
			c.log.Debug("wake-up request within tolerance; keeping it",
				logx.Time("scheduled", pending[0].EarliestBegin),
				logx.Time("target", target))
			return
		}
		c.log.Info("wake-up target moved; rescheduling",
			logx.Time("scheduled", pending[0].EarliestBegin),
			logx.Time("target", target))
		c.sched.Cancel()
	}

	if err := c.sched.Submit(Request{EarliestBegin: target}); err != nil {
		c.log.Warn("wake-up submission failed; will retry on next trigger", logx.Err(err))
		return
	}
	c.setState(StateScheduled)
	c.log.Info("wake-up scheduled", logx.Time("at", target))
}

// Wake is the scheduler's wake-up callback. The next request is queued
// BEFORE any work happens, so a crash or expiration mid-run never leaves
// zero future wake-ups.
func (c *Coordinator) Wake(ctx context.Context) error {
	c.ScheduleNext()
	return c.Reconcile(ctx)
}

// Reconcile runs one pipeline pass under the execution budget. Concurrent
// calls coalesce: the second caller returns immediately.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	select {
	case c.busy <- struct{}{}:
	default:
		c.log.Debug("reconciliation already in flight; trigger coalesced")
		return nil
	}
	defer func() { <-c.busy }()

	cfg := c.config()
	c.setState(StateRunning)

	runCtx, cancel := context.WithTimeout(ctx, cfg.Budget)
	defer cancel()

	start := c.now()
	done := make(chan error, 1)
	go func() { done <- c.pipeline.Run(runCtx, start) }()

	select {
	case err := <-done:
		// Completed regardless of err: the run finished within budget.
		c.setState(StateCompleted)
		if err != nil {
			c.log.Warn("reconciliation failed", logx.Err(err))
			return err
		}
		c.log.Info("reconciliation completed", logx.Duration("took", time.Since(start)))
		return nil
	case <-runCtx.Done():
		// Budget elapsed (or the parent was cancelled) before the work
		// signalled completion. Partial application is fine: the next
		// successful run converges to the same state.
		c.setState(StateExpired)
		c.log.Warn("reconciliation expired before completion",
			logx.Duration("budget", cfg.Budget))
		if c.bus != nil {
			c.bus.Publish(eventbus.Event{Type: eventbus.TypeRefreshExpired})
		}
		return runCtx.Err()
	}
}
