package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	logx "plannerbot/pkg/logx"

	"github.com/robfig/cron/v3"
)

var (
	ErrNameRequired = errors.New("trigger name required")
	ErrTimeRequired = errors.New("trigger time required")
)

// Config controls the trigger service.
type Config struct {
	// Timezone is an IANA name (e.g. "Asia/Jakarta"); empty means Local.
	Timezone string
	// JobTimeout applies to jobs registered with timeout 0. 0 disables it.
	JobTimeout time.Duration
}

// Job is the unit of work run by a trigger.
type Job func(ctx context.Context) error

type cronDef struct {
	name    string
	spec    string
	timeout time.Duration
	job     Job
	entryID cron.EntryID
}

type onceDef struct {
	at      time.Time
	timeout time.Duration
	job     Job
	ver     uint64
	timer   *time.Timer
}

// Entry describes a registered trigger.
type Entry struct {
	Name string
	Kind string // "cron" or "once"
	Spec string // cron spec; empty for once
	Next time.Time
}

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron
	defs   []cronDef

	// one-shot definitions survive Stop/Start; timers are runtime only.
	tmu        sync.Mutex
	once       map[string]*onceDef
	onceSeq    uint64
	running    bool
	jobTimeout time.Duration
	runCtx     context.Context
	cancel     context.CancelFunc
	jobs       sync.WaitGroup
}
