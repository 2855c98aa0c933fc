package config

import (
	"strings"

	logx "plannerbot/pkg/logx"
)

// SummarizeConfigChange returns the names of changed sections and
// log-safe fields describing the new values. Tokens are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}

	or, nr := oldCfg.Reminders, newCfg.Reminders
	if intPtrVal(or.TaskLeadMinutes) != intPtrVal(nr.TaskLeadMinutes) ||
		intPtrVal(or.SessionLeadMinutes) != intPtrVal(nr.SessionLeadMinutes) ||
		strings.TrimSpace(or.SweepSchedule) != strings.TrimSpace(nr.SweepSchedule) ||
		strings.TrimSpace(or.SweepGrace) != strings.TrimSpace(nr.SweepGrace) ||
		or.StoreKey != nr.StoreKey || or.SettingsKey != nr.SettingsKey {
		changed = append(changed, "reminders")
		attrs = append(attrs,
			logx.Int("reminders.task_lead_minutes", intPtrVal(nr.TaskLeadMinutes)),
			logx.Int("reminders.session_lead_minutes", intPtrVal(nr.SessionLeadMinutes)),
			logx.String("reminders.sweep_schedule", strings.TrimSpace(nr.SweepSchedule)),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.String("scheduler.job_timeout", strings.TrimSpace(newCfg.Scheduler.JobTimeout)),
		)
	}

	if NotifyDriver(oldCfg) != NotifyDriver(newCfg) {
		changed = append(changed, "notify")
		attrs = append(attrs, logx.String("notify.driver", NotifyDriver(newCfg)))
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.ChatID != nt.ChatID || ot.ThreadID != nt.ThreadID || ot.RatePerSec != nt.RatePerSec ||
		strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) ||
		strings.TrimSpace(ot.SendTimeout) != strings.TrimSpace(nt.SendTimeout) ||
		ot.Token != nt.Token {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(nt.Token) != ""),
			logx.Bool("telegram.chat_set", nt.ChatID != 0),
			logx.Int("telegram.thread_id", nt.ThreadID),
		)
	}

	return changed, attrs
}

// RestartRequired reports sections whose changes only take effect after a
// restart.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		switch s {
		case "storage", "notify", "telegram":
			out = append(out, s)
		}
	}
	return out
}

func intPtrVal(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
