package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "15m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Reminders RemindersConfig `json:"reminders"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Notify    NotifyConfig    `json:"notify"`
	Telegram  TelegramConfig  `json:"telegram"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the persistence primitive.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/plannerbot.db", "busy_timeout": "5s" }
//
// driver is one of "file" (default; path is a directory), "sqlite" (path is
// a database file) or "memory".
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// RemindersConfig controls the reminder scheduler.
//
// Lead times are pointers so an explicit 0 ("remind at the deadline") is
// distinguishable from an omitted field.
//
// Defaults:
//   - task_lead_minutes: 30
//   - session_lead_minutes: 15
//   - sweep_schedule: "@every 15m"
//   - sweep_grace: "1m"
//   - store_key: "scheduled_reminders"
//   - settings_key: "notification_settings"
type RemindersConfig struct {
	TaskLeadMinutes    *int   `json:"task_lead_minutes,omitempty"`
	SessionLeadMinutes *int   `json:"session_lead_minutes,omitempty"`
	SweepSchedule      string `json:"sweep_schedule,omitempty"`
	SweepGrace         string `json:"sweep_grace,omitempty"`
	StoreKey           string `json:"store_key,omitempty"`
	SettingsKey        string `json:"settings_key,omitempty"`
}

// SchedulerConfig controls the trigger service that fires one-shot
// notifications and the sweep job.
type SchedulerConfig struct {
	Timezone   string `json:"timezone,omitempty"`
	JobTimeout string `json:"job_timeout,omitempty"`
}

// NotifyConfig selects the notification platform: "telegram" or "memory".
// The memory driver writes each fired reminder to the log.
type NotifyConfig struct {
	Driver string `json:"driver"`
}

type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
	// ThreadID targets a forum topic; 0 for the main chat.
	ThreadID    int    `json:"thread_id,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}
