package config

import (
	"fmt"
	"strings"
	"time"

	"birthdayd/internal/plan"
)

// Validate checks the fields the daemon cannot start (or keep running)
// without. It is installed as the Watch() validator so a broken edit never
// replaces a good running config.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	tod := strings.TrimSpace(cfg.Notifications.TimeOfDay)
	if tod != "" {
		if _, err := plan.ParseTimeOfDay(tod); err != nil {
			return fmt.Errorf("notifications.time_of_day: %w", err)
		}
	}
	if _, err := ParseDurationField("notifications.horizon", cfg.Notifications.Horizon); err != nil {
		return err
	}
	if tz := strings.TrimSpace(cfg.Notifications.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("notifications.timezone: %w", err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Store.Driver)) {
	case "", "none", "file", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("store.driver: unknown driver %q", cfg.Store.Driver)
	}
	if _, err := ParseDurationField("store.busy_timeout", cfg.Store.BusyTimeout); err != nil {
		return err
	}

	for _, f := range []struct{ path, raw string }{
		{"refresh.safety_buffer", cfg.Refresh.SafetyBuffer},
		{"refresh.tolerance", cfg.Refresh.Tolerance},
		{"refresh.budget", cfg.Refresh.Budget},
		{"refresh.catchup_interval", cfg.Refresh.CatchupInterval},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}

	if d := cfg.Delivery; d != nil {
		if _, err := ParseDurationField("delivery.retry_base", d.RetryBase); err != nil {
			return err
		}
		if _, err := ParseDurationField("delivery.retry_max_delay", d.RetryMaxDelay); err != nil {
			return err
		}
		if tg := d.Telegram; tg != nil && tg.Enabled {
			if strings.TrimSpace(tg.Token) == "" {
				return fmt.Errorf("delivery.telegram.token is required when enabled")
			}
			if tg.ChatID == 0 {
				return fmt.Errorf("delivery.telegram.chat_id is required when enabled")
			}
		}
	}

	return nil
}
