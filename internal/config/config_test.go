package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.yaml", `
logging:
  level: DEBUG
  console: true
store:
  driver: sqlite
  path: ./test.db
notifications:
  time_of_day: "08:30"
  horizon: "720h"
  timezone: "UTC"
refresh:
  tolerance: "60s"
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Fatalf("Level = %q", cfg.Logging.Level)
	}
	if cfg.Notifications.TimeOfDay != "08:30" {
		t.Fatalf("TimeOfDay = %q", cfg.Notifications.TimeOfDay)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Fatalf("Driver = %q", cfg.Store.Driver)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get() did not return committed config")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.yaml", `
logging:
  console: true
store:
  driver: file
  path: ./events.json
notifications:
  time_of_day: "09:00"
bogus_section:
  x: 1
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Store:         StoreConfig{Driver: "file", Path: "./events.json"},
			Notifications: NotificationsConfig{TimeOfDay: "09:00", Horizon: "720h"},
		}
	}

	if err := Validate(base()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad time of day", func(c *Config) { c.Notifications.TimeOfDay = "25:00" }},
		{"bad horizon", func(c *Config) { c.Notifications.Horizon = "soon" }},
		{"bad timezone", func(c *Config) { c.Notifications.Timezone = "Mars/Olympus" }},
		{"bad driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"bad tolerance", func(c *Config) { c.Refresh.Tolerance = "-5s" }},
		{"telegram enabled without token", func(c *Config) {
			c.Delivery = &DeliveryConfig{Telegram: &TelegramConfig{Enabled: true, ChatID: 1}}
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
