package app

import (
	"strings"
	"time"

	"plannerbot/internal/config"
	"plannerbot/internal/notify/telegram"
	"plannerbot/internal/reminder"
	"plannerbot/internal/trigger"
	logx "plannerbot/pkg/logx"
)

// DefaultSweepSchedule runs the stale-record sweep when
// reminders.sweep_schedule is omitted.
const DefaultSweepSchedule = "@every 15m"

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// MapReminderConfig converts the reminders section.
func MapReminderConfig(cfg *config.Config) (reminder.Config, error) {
	rc := cfg.Reminders
	out := reminder.DefaultConfig()
	if rc.TaskLeadMinutes != nil {
		out.TaskLeadMinutes = *rc.TaskLeadMinutes
	}
	if rc.SessionLeadMinutes != nil {
		out.SessionLeadMinutes = *rc.SessionLeadMinutes
	}
	if k := strings.TrimSpace(rc.StoreKey); k != "" {
		out.StoreKey = k
	}
	if k := strings.TrimSpace(rc.SettingsKey); k != "" {
		out.SettingsKey = k
	}
	grace, err := config.ParseDurationOrDefault("reminders.sweep_grace", rc.SweepGrace, reminder.DefaultSweepGrace)
	if err != nil {
		return reminder.Config{}, err
	}
	out.SweepGrace = grace
	return out, nil
}

// sweepSchedule returns the cron spec for the sweep job; "off" disables it.
func sweepSchedule(cfg *config.Config) string {
	s := strings.TrimSpace(cfg.Reminders.SweepSchedule)
	if s == "" {
		return DefaultSweepSchedule
	}
	return s
}

func mapTriggerConfig(cfg *config.Config) (trigger.Config, error) {
	timeout, err := config.ParseDurationField("scheduler.job_timeout", cfg.Scheduler.JobTimeout)
	if err != nil {
		return trigger.Config{}, err
	}
	return trigger.Config{
		Timezone:   strings.TrimSpace(cfg.Scheduler.Timezone),
		JobTimeout: timeout,
	}, nil
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	tc := cfg.Telegram
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", tc.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	send, err := config.ParseDurationOrDefault("telegram.send_timeout", tc.SendTimeout, 15*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:       strings.TrimSpace(tc.Token),
		ChatID:      tc.ChatID,
		ThreadID:    tc.ThreadID,
		PollTimeout: poll,
		SendTimeout: send,
		RatePerSec:  tc.RatePerSec,
	}, nil
}

// Validate runs the checks config.Validate cannot do without the
// component packages.
func Validate(cfg *config.Config) error {
	if s := sweepSchedule(cfg); !strings.EqualFold(s, "off") {
		if err := trigger.ValidateSpec(s); err != nil {
			return err
		}
	}
	if _, err := MapReminderConfig(cfg); err != nil {
		return err
	}
	if _, err := mapTriggerConfig(cfg); err != nil {
		return err
	}
	if _, err := MapStorageConfig(cfg); err != nil {
		return err
	}
	_, err := mapTelegramConfig(cfg)
	return err
}
