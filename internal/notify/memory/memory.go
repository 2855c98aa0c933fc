// Package memory is an in-process notification platform.
//
// Without timers it only records pending notifications; tests (and the
// dry-run driver) fire them explicitly with Fire or FireDue. With timers it
// delivers each notification at its trigger time through a callback.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"plannerbot/internal/eventbus"
	"plannerbot/internal/notify"
	"plannerbot/internal/trigger"
	logx "plannerbot/pkg/logx"

	"github.com/google/uuid"
)

// Timers is the subset of trigger.Service used to deliver on time.
type Timers interface {
	AddOnce(name string, at time.Time, timeout time.Duration, job trigger.Job) error
	Remove(name string) bool
}

// DeliverFunc shows a fired notification to the user.
type DeliverFunc func(ctx context.Context, id string, p notify.Payload) error

// Pending is a notification waiting to fire.
type Pending struct {
	ID      string
	Payload notify.Payload
	At      time.Time
}

type Platform struct {
	mu      sync.Mutex
	pending map[string]Pending
	granted bool
	grant   bool // answer given by RequestPermission
	failErr error

	timers  Timers
	deliver DeliverFunc
	bus     eventbus.Bus
	now     func() time.Time
	log     logx.Logger
}

type Option func(*Platform)

// WithTimers delivers notifications at their trigger time via deliver.
func WithTimers(t Timers, deliver DeliverFunc) Option {
	return func(p *Platform) {
		p.timers = t
		p.deliver = deliver
	}
}

// WithBus publishes notify.EventFired for every delivered notification.
func WithBus(b eventbus.Bus) Option { return func(p *Platform) { p.bus = b } }

func WithClock(now func() time.Time) Option { return func(p *Platform) { p.now = now } }

func WithLogger(l logx.Logger) Option { return func(p *Platform) { p.log = l } }

// WithPermission sets the initial permission state. RequestPermission grants
// unless WithDeniedRequests is also given.
func WithPermission(granted bool) Option { return func(p *Platform) { p.granted = granted } }

// WithDeniedRequests makes RequestPermission answer "denied".
func WithDeniedRequests() Option { return func(p *Platform) { p.grant = false } }

func New(opts ...Option) *Platform {
	p := &Platform{
		pending: map[string]Pending{},
		granted: true,
		grant:   true,
		now:     time.Now,
		log:     logx.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func timerName(id string) string { return "notify:" + id }

func (p *Platform) Schedule(ctx context.Context, payload notify.Payload, at time.Time) (string, error) {
	id := uuid.NewString()
	if err := p.add(ctx, id, payload, at); err != nil {
		return "", err
	}
	return id, nil
}

// Restore re-arms a notification under a known id.
func (p *Platform) Restore(ctx context.Context, id string, payload notify.Payload, at time.Time) error {
	return p.add(ctx, id, payload, at)
}

func (p *Platform) add(ctx context.Context, id string, payload notify.Payload, at time.Time) error {
	p.mu.Lock()
	if p.failErr != nil {
		err := p.failErr
		p.failErr = nil
		p.mu.Unlock()
		return err
	}
	if !p.granted {
		p.mu.Unlock()
		return notify.ErrPermissionDenied
	}
	if !at.After(p.now()) {
		p.mu.Unlock()
		return notify.ErrPastTrigger
	}
	p.pending[id] = Pending{ID: id, Payload: payload, At: at}
	timers := p.timers
	p.mu.Unlock()

	if timers != nil {
		if err := timers.AddOnce(timerName(id), at, 0, func(c context.Context) error {
			_, err := p.fire(c, id)
			return err
		}); err != nil {
			p.mu.Lock()
			delete(p.pending, id)
			p.mu.Unlock()
			return err
		}
	}
	_ = ctx
	return nil
}

func (p *Platform) Cancel(ctx context.Context, id string) error {
	_ = ctx
	p.mu.Lock()
	delete(p.pending, id)
	timers := p.timers
	p.mu.Unlock()
	if timers != nil {
		timers.Remove(timerName(id))
	}
	return nil
}

func (p *Platform) RequestPermission(ctx context.Context) (bool, error) {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.grant {
		p.granted = true
	}
	return p.granted, nil
}

func (p *Platform) PermissionGranted(ctx context.Context) (bool, error) {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted, nil
}

// SetPermission flips the permission state (user toggled it in settings).
func (p *Platform) SetPermission(granted bool) {
	p.mu.Lock()
	p.granted = granted
	p.mu.Unlock()
}

// FailNextSchedule makes the next Schedule or Restore return err.
func (p *Platform) FailNextSchedule(err error) {
	p.mu.Lock()
	p.failErr = err
	p.mu.Unlock()
}

// Pending returns pending notifications ordered by trigger time.
func (p *Platform) Pending() []Pending {
	p.mu.Lock()
	out := make([]Pending, 0, len(p.pending))
	for _, n := range p.pending {
		out = append(out, n)
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].ID < out[j].ID
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

// Get returns the pending notification id.
func (p *Platform) Get(id string) (Pending, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.pending[id]
	return n, ok
}

// Fire delivers id now. It reports false if id is not pending.
func (p *Platform) Fire(ctx context.Context, id string) bool {
	p.mu.Lock()
	timers := p.timers
	p.mu.Unlock()
	if timers != nil {
		timers.Remove(timerName(id))
	}
	ok, err := p.fire(ctx, id)
	if err != nil {
		p.log.Warn("deliver failed", logx.String("id", id), logx.Err(err))
	}
	return ok
}

// FireDue delivers every notification due at or before now and returns
// their ids in trigger order.
func (p *Platform) FireDue(ctx context.Context, now time.Time) []string {
	var ids []string
	for _, n := range p.Pending() {
		if n.At.After(now) {
			break
		}
		if p.Fire(ctx, n.ID) {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

func (p *Platform) fire(ctx context.Context, id string) (bool, error) {
	p.mu.Lock()
	n, ok := p.pending[id]
	if ok {
		delete(p.pending, id)
	}
	deliver := p.deliver
	bus := p.bus
	p.mu.Unlock()
	if !ok {
		return false, nil
	}

	var err error
	if deliver != nil {
		err = deliver(ctx, id, n.Payload)
	}
	if bus != nil {
		bus.Publish(eventbus.Event{Type: notify.EventFired, Data: notify.Fired{ID: id, At: p.now()}})
	}
	return true, err
}
