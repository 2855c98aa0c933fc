package reminder

import (
	"context"
	"encoding/json"
	"fmt"

	logx "plannerbot/pkg/logx"
)

// Settings are the user's notification preferences.
type Settings struct {
	Enabled           bool `json:"enabled"`
	TaskReminders     bool `json:"task_reminders"`
	ScheduleReminders bool `json:"schedule_reminders"`
	CustomReminders   bool `json:"custom_reminders"`
	SoundEnabled      bool `json:"sound_enabled"`
	BadgeEnabled      bool `json:"badge_enabled"`
}

// SettingsPatch is a partial update; nil fields are left unchanged.
type SettingsPatch struct {
	Enabled           *bool `json:"enabled,omitempty"`
	TaskReminders     *bool `json:"task_reminders,omitempty"`
	ScheduleReminders *bool `json:"schedule_reminders,omitempty"`
	CustomReminders   *bool `json:"custom_reminders,omitempty"`
	SoundEnabled      *bool `json:"sound_enabled,omitempty"`
	BadgeEnabled      *bool `json:"badge_enabled,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		Enabled:           true,
		TaskReminders:     true,
		ScheduleReminders: true,
		CustomReminders:   true,
		SoundEnabled:      true,
		BadgeEnabled:      true,
	}
}

func (st Settings) allows(k Kind) bool {
	if !st.Enabled {
		return false
	}
	switch k {
	case KindTask:
		return st.TaskReminders
	case KindSession:
		return st.ScheduleReminders
	default:
		return st.CustomReminders
	}
}

func (p SettingsPatch) apply(st Settings) Settings {
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&st.Enabled, p.Enabled)
	set(&st.TaskReminders, p.TaskReminders)
	set(&st.ScheduleReminders, p.ScheduleReminders)
	set(&st.CustomReminders, p.CustomReminders)
	set(&st.SoundEnabled, p.SoundEnabled)
	set(&st.BadgeEnabled, p.BadgeEnabled)
	return st
}

// Settings returns the stored preferences. Fields missing from the stored
// value, or a missing value, default to true.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	key := s.config().SettingsKey
	st := DefaultSettings()
	b, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.Error("load settings failed", logx.Err(err))
		return st, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || len(b) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(b, &st); err != nil {
		s.log.Error("decode settings failed", logx.Err(err))
		return DefaultSettings(), fmt.Errorf("decode %s: %w", key, err)
	}
	return st, nil
}

// UpdateSettings merges patch into the stored preferences and returns the
// result.
func (s *Service) UpdateSettings(ctx context.Context, patch SettingsPatch) (Settings, error) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	cur, err := s.Settings(ctx)
	if err != nil {
		return cur, err
	}
	next := patch.apply(cur)
	b, err := json.Marshal(next)
	if err != nil {
		return cur, err
	}
	key := s.config().SettingsKey
	if err := s.store.Set(ctx, key, b); err != nil {
		s.log.Error("save settings failed", logx.Err(err))
		return cur, fmt.Errorf("save %s: %w", key, err)
	}
	if next != cur {
		s.log.Info("notification settings updated",
			logx.Bool("enabled", next.Enabled),
			logx.Bool("task", next.TaskReminders),
			logx.Bool("schedule", next.ScheduleReminders),
			logx.Bool("custom", next.CustomReminders),
		)
	}
	return next, nil
}
