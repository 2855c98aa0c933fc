// Package telegram delivers reminders as Telegram messages.
//
// The platform keeps its pending queue as one-shot triggers in process
// memory, so it implements notify.Restorer: the reminder service re-arms
// stored reminders after a restart.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"plannerbot/internal/eventbus"
	"plannerbot/internal/notify"
	"plannerbot/internal/trigger"
	logx "plannerbot/pkg/logx"
	"plannerbot/pkg/tgui"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

const (
	telegramTextLimit = 4000
	headerLimit       = 256
)

// Config configures the Telegram platform.
type Config struct {
	Token       string
	ChatID      int64 // chat that receives reminders
	ThreadID    int   // forum topic; 0 for none
	PollTimeout time.Duration
	RatePerSec  int
	SendTimeout time.Duration
	// Offline skips the getMe call at startup (tests, config validation).
	Offline bool
}

// Timers is the subset of trigger.Service the platform needs.
type Timers interface {
	AddOnce(name string, at time.Time, timeout time.Duration, job trigger.Job) error
	Remove(name string) bool
}

type Platform struct {
	cfg     Config
	log     logx.Logger
	bot     *tele.Bot
	timers  Timers
	bus     eventbus.Bus
	limiter *rate.Limiter

	mu      sync.Mutex
	pending map[string]time.Time
	granted bool

	menuMu   sync.Mutex
	menuHash uint64

	runMu   sync.Mutex
	running bool
	stop    context.CancelFunc
}

func New(cfg Config, timers Timers, bus eventbus.Bus, log logx.Logger) (*Platform, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if timers == nil {
		return nil, errors.New("telegram platform needs a trigger service")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Poller:  &tele.LongPoller{Timeout: cfg.PollTimeout},
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Platform{
		cfg:     cfg,
		log:     log,
		bot:     b,
		timers:  timers,
		bus:     bus,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		pending: map[string]time.Time{},
	}, nil
}

// Handle registers a bot command handler (e.g. "/remind").
func (p *Platform) Handle(endpoint string, h tele.HandlerFunc) {
	p.bot.Handle(endpoint, h)
}

// ChatID returns the chat that receives reminders.
func (p *Platform) ChatID() int64 { return p.cfg.ChatID }

// Start begins long polling for commands. It returns immediately.
func (p *Platform) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.running {
		return
	}
	p.running = true
	ctx, p.stop = context.WithCancel(ctx)

	go func() {
		p.log.Info("polling started")
		p.bot.Start()
		p.log.Info("polling stopped")
	}()
	go func() {
		<-ctx.Done()
		p.bot.Stop()
	}()
}

func (p *Platform) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	if p.stop != nil {
		p.stop()
	}
}

func timerName(id string) string { return "notify:" + id }

func (p *Platform) Schedule(ctx context.Context, payload notify.Payload, at time.Time) (string, error) {
	id := uuid.NewString()
	if err := p.arm(ctx, id, payload, at); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Platform) Restore(ctx context.Context, id string, payload notify.Payload, at time.Time) error {
	return p.arm(ctx, id, payload, at)
}

func (p *Platform) arm(ctx context.Context, id string, payload notify.Payload, at time.Time) error {
	_ = ctx
	if ok, _ := p.PermissionGranted(ctx); !ok {
		return notify.ErrPermissionDenied
	}
	if !at.After(time.Now()) {
		return notify.ErrPastTrigger
	}
	if err := p.timers.AddOnce(timerName(id), at, p.cfg.SendTimeout, func(c context.Context) error {
		return p.deliver(c, id, payload)
	}); err != nil {
		return err
	}
	p.mu.Lock()
	p.pending[id] = at
	p.mu.Unlock()
	return nil
}

func (p *Platform) Cancel(ctx context.Context, id string) error {
	_ = ctx
	p.timers.Remove(timerName(id))
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
	return nil
}

// RequestPermission checks that the bot can reach the configured chat.
func (p *Platform) RequestPermission(ctx context.Context) (bool, error) {
	_ = ctx
	if p.cfg.ChatID == 0 {
		p.setGranted(false)
		return false, nil
	}
	if _, err := p.bot.ChatByID(p.cfg.ChatID); err != nil {
		p.setGranted(false)
		return false, err
	}
	p.setGranted(true)
	return true, nil
}

func (p *Platform) PermissionGranted(ctx context.Context) (bool, error) {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted, nil
}

// Grant records the user's answer from the chat (/start, /stop).
func (p *Platform) Grant(granted bool) {
	p.setGranted(granted && p.cfg.ChatID != 0)
}

func (p *Platform) setGranted(v bool) {
	p.mu.Lock()
	p.granted = v
	p.mu.Unlock()
}

// PendingCount reports armed notifications.
func (p *Platform) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Platform) deliver(ctx context.Context, id string, payload notify.Payload) error {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	opt := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		DisableNotification:   !payload.Sound,
		ThreadID:              p.cfg.ThreadID,
	}
	if _, err := p.bot.Send(&tele.Chat{ID: p.cfg.ChatID}, FormatPayload(payload), opt); err != nil {
		return err
	}
	p.log.Debug("reminder delivered", logx.String("id", id))
	if p.bus != nil {
		p.bus.Publish(eventbus.Event{Type: notify.EventFired, Data: notify.Fired{ID: id, At: time.Now()}})
	}
	return nil
}

// FormatPayload renders a payload as Telegram HTML. Title and subtitle are
// capped at headerLimit runes and the body gets what is left, so the
// visible text stays within Telegram's message limit.
func FormatPayload(p notify.Payload) string {
	title := tgui.TruncRunes(strings.TrimSpace(p.Title), headerLimit)
	sub := tgui.TruncRunes(strings.TrimSpace(p.Subtitle), headerLimit)
	budget := telegramTextLimit
	var head, tail tgui.H
	if title != "" {
		head = tgui.B(title)
		budget -= utf8.RuneCountInString(title) + 1
	}
	if sub != "" {
		tail = tgui.I(sub)
		budget -= utf8.RuneCountInString(sub) + 1
	}
	body := tgui.Esc(tgui.TruncRunes(p.Body, budget))
	return tgui.JoinH("\n", head, body, tail).String()
}
