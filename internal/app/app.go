// Package app assembles the daemon: config, logging, storage, delivery,
// planning and the refresh coordinator.
package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"birthdayd/internal/birthday"
	"birthdayd/internal/config"
	"birthdayd/internal/eventbus"
	"birthdayd/internal/ics"
	"birthdayd/internal/notify"
	"birthdayd/internal/plan"
	"birthdayd/internal/refresh"
	"birthdayd/internal/runtime/supervisor"
	"birthdayd/internal/store"
	logx "birthdayd/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger
	bus    eventbus.Bus

	st       store.Store
	storeCfg store.Config
	delivery *notify.Service
	rec      *refresh.Reconciler
	sched    *refresh.LocalScheduler
	coord    *refresh.Coordinator

	sup     *supervisor.Supervisor
	cron    *cron.Cron
	catchup cron.EntryID

	settings atomic.Pointer[settings]
}

// New loads and validates the config, then builds the component graph.
// Nothing runs until Start.
func New(configPath string) (*App, error) {
	a := &App{
		cfgMgr: config.NewManager(configPath),
		bus:    eventbus.New(),
	}

	cfg, err := a.cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a.logSvc, a.log = logx.New(logConfigFrom(cfg))
	a.cfgMgr.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgMgr.SetValidator(func(ctx context.Context, c *config.Config) error {
		return config.Validate(c)
	})

	s := buildSettings(cfg)
	a.settings.Store(&s)

	a.storeCfg = storeConfigFrom(cfg)
	a.st, err = store.Open(a.storeCfg, a.log.With(logx.String("comp", "store")))
	if err != nil {
		a.logSvc.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	a.delivery = notify.New(deliveryConfigFrom(cfg), a.buildSender(cfg), a.st,
		a.log.With(logx.String("comp", "delivery")), a.bus)

	a.rec = refresh.NewReconciler(a.eventSource(), a.delivery, a.reconcilerSettings,
		a.log.With(logx.String("comp", "reconcile")), a.bus)
	a.applyExporter(cfg)

	a.sched = refresh.NewLocalScheduler(a.log.With(logx.String("comp", "scheduler")))
	a.coord = refresh.NewCoordinator(refreshConfigFrom(cfg), a.sched, a.rec,
		a.timeOfDay, nil, a.log.With(logx.String("comp", "refresh")), a.bus)
	a.sched.SetWake(a.coord.Wake)

	a.cron = cron.New()
	return a, nil
}

// Start spins up the background services and runs the first reconciliation
// in the foreground, so the process comes up with a correct pending set and
// a queued wake-up before it reports ready.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, a.log.With(logx.String("comp", "supervisor")))

	if err := a.delivery.Restore(ctx, time.Now()); err != nil {
		a.log.Warn("restoring pending reminders failed; starting empty", logx.Err(err))
	}

	a.sup.GoRestart("config-watch", a.cfgMgr.Watch)
	a.sup.Go("delivery", a.delivery.Run)
	a.sup.Go("config-apply", a.applyLoop)

	a.scheduleCatchup(catchupIntervalFrom(a.cfgMgr.Get()))
	a.cron.Start()

	a.coord.ScheduleNext()
	if err := a.coord.Reconcile(ctx); err != nil {
		// Not fatal: the wake-up is queued and the catch-up job retries.
		a.log.Warn("initial reconciliation failed", logx.Err(err))
	}

	a.logUpcoming(ctx)
	a.log.Info("daemon started")
	return nil
}

// logUpcoming writes a one-line startup summary of the nearest birthday.
func (a *App) logUpcoming(ctx context.Context) {
	if a.st == nil {
		return
	}
	events, err := a.st.LoadEvents(ctx)
	if err != nil || len(events) == 0 {
		return
	}
	now := time.Now()
	if loc := a.settings.Load().location; loc != nil {
		now = now.In(loc)
	}
	var next *birthday.Event
	nextIn := 0
	for i, e := range events {
		if !e.NotifyEnabled() {
			continue
		}
		in := birthday.DaysUntil(e, now)
		if next == nil || in < nextIn {
			next = &events[i]
			nextIn = in
		}
	}
	if next == nil {
		return
	}
	occ := birthday.NextOccurrence(*next, now)
	a.log.Info("next birthday",
		logx.String("name", next.Name),
		logx.Int("in_days", nextIn),
		logx.Int("age", occ.Age),
		logx.Time("date", occ.Date))
}

// Stop shuts the daemon down: no more wake-ups, background services
// drained, storage closed.
func (a *App) Stop(ctx context.Context) error {
	a.sched.Stop()
	cronCtx := a.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	var firstErr error
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil {
			firstErr = err
		}
	}
	if a.st != nil {
		if err := a.st.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.log.Info("daemon stopped")
	a.logSvc.Close()
	return firstErr
}

// applyLoop reacts to committed config reloads: every hot-swappable
// component gets the new snapshot, then a reconciliation run realigns the
// pending set with the new preferences.
func (a *App) applyLoop(ctx context.Context) error {
	ch := a.cfgMgr.Subscribe(4)
	defer a.cfgMgr.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-ch:
			if !ok {
				return nil
			}
			a.apply(ctx, cfg)
		}
	}
}

func (a *App) apply(ctx context.Context, cfg *config.Config) {
	a.logSvc.Apply(logConfigFrom(cfg))

	s := buildSettings(cfg)
	a.settings.Store(&s)

	a.delivery.Apply(deliveryConfigFrom(cfg))
	a.coord.Apply(refreshConfigFrom(cfg))
	a.applyExporter(cfg)
	a.scheduleCatchup(catchupIntervalFrom(cfg))

	// Storage is fixed for the process lifetime; swapping drivers under a
	// live pending set loses state.
	if live := storeConfigFrom(cfg); live != a.storeCfg {
		a.log.Warn("store config changed; restart to apply",
			logx.String("driver", live.Driver), logx.String("path", live.Path))
	}

	a.coord.ScheduleNext()
	if err := a.coord.Reconcile(ctx); err != nil {
		a.log.Warn("post-reload reconciliation failed", logx.Err(err))
	}
	a.log.Info("config applied")
}

// buildSender returns the configured transport, or nil when delivery is
// disabled. Transport construction failures degrade to silent delivery
// instead of refusing to start; planning still works.
func (a *App) buildSender(cfg *config.Config) notify.Sender {
	if cfg.Delivery == nil || cfg.Delivery.Telegram == nil || !cfg.Delivery.Telegram.Enabled {
		return nil
	}
	tg := cfg.Delivery.Telegram
	sender, err := notify.NewTelegramSender(tg.Token, tg.ChatID,
		a.log.With(logx.String("comp", "telegram")))
	if err != nil {
		a.log.Error("telegram transport unavailable; delivery degraded", logx.Err(err))
		return nil
	}
	return sender
}

func (a *App) applyExporter(cfg *config.Config) {
	if cfg.Export != nil && cfg.Export.ICS != nil && cfg.Export.ICS.Enabled && cfg.Export.ICS.Path != "" {
		a.rec.SetExporter(ics.NewFileExporter(cfg.Export.ICS.Path,
			a.log.With(logx.String("comp", "ics"))))
		return
	}
	a.rec.SetExporter(nil)
}

// scheduleCatchup (re)installs the periodic safety-net reconciliation. It
// covers missed wake-ups: a laptop that slept through the notification time
// converges on the next tick. Interval <= 0 disables it.
func (a *App) scheduleCatchup(interval time.Duration) {
	if a.catchup != 0 {
		a.cron.Remove(a.catchup)
		a.catchup = 0
	}
	if interval <= 0 {
		return
	}
	id, err := a.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		a.coord.ScheduleNext()
		if err := a.coord.Reconcile(ctx); err != nil {
			a.log.Warn("catch-up reconciliation failed", logx.Err(err))
		}
	})
	if err != nil {
		a.log.Warn("catch-up job not scheduled", logx.Err(err))
		return
	}
	a.catchup = id
	a.log.Debug("catch-up reconciliation scheduled", logx.Duration("interval", interval))
}

func (a *App) eventSource() refresh.EventSource {
	if a.st == nil {
		return nil
	}
	return a.st
}

func (a *App) reconcilerSettings() refresh.Settings {
	s := a.settings.Load()
	return refresh.Settings{At: s.at, Horizon: s.horizon, Location: s.location}
}

func (a *App) timeOfDay() plan.TimeOfDay {
	return a.settings.Load().at
}
