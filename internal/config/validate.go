package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks values that decoding alone cannot. It reports every
// problem found, not just the first.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string) {
		_, err := ParseDurationField(path, raw)
		add(err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "memory", "mem":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add(errors.New("storage.path is required when storage.driver=sqlite"))
		}
	default:
		add(fmt.Errorf("storage.driver: unknown %q", cfg.Storage.Driver))
	}
	dur("storage.busy_timeout", cfg.Storage.BusyTimeout)

	if v := cfg.Reminders.TaskLeadMinutes; v != nil && *v < 0 {
		add(errors.New("reminders.task_lead_minutes must be >= 0"))
	}
	if v := cfg.Reminders.SessionLeadMinutes; v != nil && *v < 0 {
		add(errors.New("reminders.session_lead_minutes must be >= 0"))
	}
	dur("reminders.sweep_grace", cfg.Reminders.SweepGrace)

	dur("scheduler.job_timeout", cfg.Scheduler.JobTimeout)
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err))
		}
	}

	switch NotifyDriver(cfg) {
	case "memory":
	case "telegram":
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			add(errors.New("telegram.token is required when notify.driver=telegram"))
		}
	default:
		add(fmt.Errorf("notify.driver: unknown %q", cfg.Notify.Driver))
	}
	dur("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	dur("telegram.send_timeout", cfg.Telegram.SendTimeout)
	if cfg.Telegram.RatePerSec < 0 {
		add(errors.New("telegram.rate_per_sec must be >= 0"))
	}

	return errors.Join(errs...)
}

// NotifyDriver returns the normalized notify.driver; empty means telegram.
func NotifyDriver(cfg *Config) string {
	d := strings.ToLower(strings.TrimSpace(cfg.Notify.Driver))
	if d == "" {
		return "telegram"
	}
	return d
}
