package reminder

import (
	"errors"
	"sync"
	"time"

	"plannerbot/internal/notify"
	"plannerbot/internal/storage"
	logx "plannerbot/pkg/logx"
)

// Kind selects how a reminder's text and trigger are derived.
type Kind string

const (
	KindTask    Kind = "task"
	KindSession Kind = "session"
	KindCustom  Kind = "custom"
)

// UseDefaultLead selects the configured lead time for the reminder's kind.
const UseDefaultLead = -1

const (
	DefaultStoreKey           = "scheduled_reminders"
	DefaultSettingsKey        = "notification_settings"
	DefaultTaskLeadMinutes    = 30
	DefaultSessionLeadMinutes = 15
	DefaultSweepGrace         = time.Minute
)

var (
	ErrPermissionDenied = notify.ErrPermissionDenied
	ErrPastTrigger      = notify.ErrPastTrigger
	ErrNotFound         = errors.New("reminder not found")
	ErrDisabled         = errors.New("reminders of this kind are disabled")
	ErrInvalidLead      = errors.New("lead minutes must not be negative")
	ErrInvalidTime      = errors.New("target time is not set")
)

// Reminder is the persisted record of one scheduled notification.
//
// For task and session reminders Title is the subject's title and Body the
// derived notification text. For custom reminders both are the caller's,
// TargetTime equals TriggerTime and LeadMinutes is zero.
type Reminder struct {
	ID           string            `json:"id"`
	Kind         Kind              `json:"kind"`
	SubjectRefID string            `json:"subject_ref_id,omitempty"`
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	Description  string            `json:"description,omitempty"`
	TargetTime   time.Time         `json:"target_time"`
	LeadMinutes  int               `json:"lead_minutes"`
	TriggerTime  time.Time         `json:"trigger_time"`
	ScheduledAt  time.Time         `json:"scheduled_at"`
	Data         map[string]string `json:"data,omitempty"`
}

// TaskReminder asks for a reminder LeadMinutes before a task is due.
type TaskReminder struct {
	TaskID      string
	Title       string
	DueDate     time.Time
	LeadMinutes int
	Description string
}

// SessionReminder asks for a reminder LeadMinutes before a session starts.
type SessionReminder struct {
	SessionID   string
	Title       string
	Start       time.Time
	LeadMinutes int
}

// CustomReminder fires at TriggerTime with caller-supplied text.
type CustomReminder struct {
	Title       string
	Body        string
	TriggerTime time.Time
	Data        map[string]string
}

type Config struct {
	StoreKey           string
	SettingsKey        string
	TaskLeadMinutes    int
	SessionLeadMinutes int
	// SweepGrace is how long past its trigger time a record is kept before
	// Sweep drops it.
	SweepGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.StoreKey == "" {
		c.StoreKey = DefaultStoreKey
	}
	if c.SettingsKey == "" {
		c.SettingsKey = DefaultSettingsKey
	}
	if c.TaskLeadMinutes < 0 {
		c.TaskLeadMinutes = DefaultTaskLeadMinutes
	}
	if c.SessionLeadMinutes < 0 {
		c.SessionLeadMinutes = DefaultSessionLeadMinutes
	}
	if c.SweepGrace <= 0 {
		c.SweepGrace = DefaultSweepGrace
	}
	return c
}

// DefaultConfig returns the stock lead times and storage keys.
func DefaultConfig() Config {
	return Config{
		TaskLeadMinutes:    DefaultTaskLeadMinutes,
		SessionLeadMinutes: DefaultSessionLeadMinutes,
	}.withDefaults()
}

type Service struct {
	// mu serializes every read-modify-write of the stored list.
	mu         sync.Mutex
	settingsMu sync.Mutex

	cfgMu sync.RWMutex
	cfg   Config

	platform notify.Platform
	store    storage.Store
	log      logx.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
