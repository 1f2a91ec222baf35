package config

type Config struct {
	Logging       LoggingConfig       `json:"logging"`
	Store         StoreConfig         `json:"store"`
	Notifications NotificationsConfig `json:"notifications"`
	Delivery      *DeliveryConfig     `json:"delivery,omitempty"`
	Refresh       RefreshConfig       `json:"refresh,omitempty"`
	Export        *ExportConfig       `json:"export,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StoreConfig selects the event/reminder persistence backend.
//
// Example:
//
//	"store": { "driver": "sqlite", "path": "./birthdayd.db" }
type StoreConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// NotificationsConfig holds the user-facing planning settings.
//
// TimeOfDay is "HH:MM" with no date component; it is read by both the
// planner (trigger instants) and the refresh coordinator (wake instants).
type NotificationsConfig struct {
	TimeOfDay string `json:"time_of_day"`         // default "09:00"
	Horizon   string `json:"horizon,omitempty"`   // Go duration string, default "720h" (30 days)
	Timezone  string `json:"timezone,omitempty"`  // IANA TZ; empty means Local
}

// DeliveryConfig controls the reminder delivery pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s").
// If Telegram is omitted or disabled, delivery degrades to a silent no-op:
// reminders are still planned and reconciled, nothing is sent.
type DeliveryConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`

	Workers       int    `json:"workers,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`
}

// RefreshConfig controls the background-refresh coordinator.
//
// Defaults (when fields are omitted/zero):
//   - safety_buffer: "60s" (wake slightly before the notification time)
//   - tolerance: "60s" (debounce window for rescheduling)
//   - budget: "30s" (execution budget per wake-up)
//   - catchup_interval: "1h" (periodic safety-net reconciliation; "0s" disables)
type RefreshConfig struct {
	SafetyBuffer    string `json:"safety_buffer,omitempty"`
	Tolerance       string `json:"tolerance,omitempty"`
	Budget          string `json:"budget,omitempty"`
	CatchupInterval string `json:"catchup_interval,omitempty"`
}

type ExportConfig struct {
	ICS *ICSExportConfig `json:"ics,omitempty"`
}

// ICSExportConfig enables writing upcoming occurrences as an iCalendar file
// after each reconciliation run.
type ICSExportConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}
