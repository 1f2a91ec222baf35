package app

import (
	"strings"
	"time"

	"birthdayd/internal/config"
	"birthdayd/internal/notify"
	"birthdayd/internal/plan"
	"birthdayd/internal/refresh"
	"birthdayd/internal/store"
	logx "birthdayd/pkg/logx"
)

const defaultHorizon = 30 * 24 * time.Hour

// settings is the immutable per-config snapshot the planner and coordinator
// read on every pass. Built once per config commit; swapped atomically.
type settings struct {
	at       plan.TimeOfDay
	horizon  time.Duration
	location *time.Location
}

// buildSettings assumes cfg already passed config.Validate, so parse errors
// here only occur for omitted fields and fall back to defaults.
func buildSettings(cfg *config.Config) settings {
	s := settings{
		at:      plan.TimeOfDay{Hour: 9},
		horizon: defaultHorizon,
	}
	if cfg == nil {
		return s
	}
	if tod, err := plan.ParseTimeOfDay(cfg.Notifications.TimeOfDay); err == nil && cfg.Notifications.TimeOfDay != "" {
		s.at = tod
	}
	if d, err := config.ParseDurationOrDefault("notifications.horizon", cfg.Notifications.Horizon, defaultHorizon); err == nil {
		s.horizon = d
	}
	if cfg.Notifications.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Notifications.Timezone); err == nil {
			s.location = loc
		}
	}
	return s
}

func logConfigFrom(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func storeConfigFrom(cfg *config.Config) store.Config {
	busy, _ := config.ParseDurationOrDefault("store.busy_timeout", cfg.Store.BusyTimeout, 0)
	return store.Config{
		Driver:      cfg.Store.Driver,
		Path:        cfg.Store.Path,
		BusyTimeout: busy,
	}
}

func deliveryConfigFrom(cfg *config.Config) notify.Config {
	out := notify.Config{}
	d := cfg.Delivery
	if d == nil {
		return out
	}
	out.Workers = d.Workers
	out.RatePerSec = d.RatePerSec
	out.RetryMax = d.RetryMax
	out.RetryBase, _ = config.ParseDurationOrDefault("delivery.retry_base", d.RetryBase, 0)
	out.RetryMaxDelay, _ = config.ParseDurationOrDefault("delivery.retry_max_delay", d.RetryMaxDelay, 0)
	return out
}

func refreshConfigFrom(cfg *config.Config) refresh.Config {
	out := refresh.Config{}
	out.SafetyBuffer, _ = config.ParseDurationOrDefault("refresh.safety_buffer", cfg.Refresh.SafetyBuffer, 0)
	out.Tolerance, _ = config.ParseDurationOrDefault("refresh.tolerance", cfg.Refresh.Tolerance, 0)
	out.Budget, _ = config.ParseDurationOrDefault("refresh.budget", cfg.Refresh.Budget, 0)
	return out
}

// catchupIntervalFrom defaults to hourly when the field is omitted; an
// explicit "0s" disables the catch-up job.
func catchupIntervalFrom(cfg *config.Config) time.Duration {
	raw := strings.TrimSpace(cfg.Refresh.CatchupInterval)
	if raw == "" {
		return time.Hour
	}
	d, err := config.ParseDurationField("refresh.catchup_interval", raw)
	if err != nil {
		return time.Hour
	}
	return d
}
