package trigger

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	logx "plannerbot/pkg/logx"

	"github.com/robfig/cron/v3"
)

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:        cfg,
		log:        log,
		parser:     newParser(),
		once:       map[string]*onceDef{},
		jobTimeout: cfg.JobTimeout,
	}
}

// newParser accepts both 5-field and 6-field (with seconds) cron specs plus
// descriptors like "@every 15m".
func newParser() cron.Parser {
	return cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// ValidateSpec reports whether spec parses as a cron schedule.
func ValidateSpec(spec string) error {
	if _, err := newParser().Parse(strings.TrimSpace(spec)); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Apply updates the config. A timezone change restarts cron with the new
// location and re-registers every entry.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg
	s.tmu.Lock()
	s.jobTimeout = cfg.JobTimeout
	s.tmu.Unlock()
	if s.c != nil && oldTZ != strings.TrimSpace(cfg.Timezone) {
		<-s.c.Stop().Done()
		s.startCronLocked()
		s.log.Info("service restarted", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.defs)))
	}
}

// Location returns the trigger timezone.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc != nil {
		return s.loc
	}
	return s.loadLocationLocked()
}

// Start begins cron triggering and arms pending one-shot timers.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}

	s.tmu.Lock()
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.tmu.Unlock()

	s.startCronLocked()
	n := s.armOnceTimers()
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.defs)), logx.Int("pending_once", n))
}

func (s *Service) startCronLocked() {
	s.loc = s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for i := range s.defs {
		if err := s.addCronLocked(&s.defs[i]); err != nil {
			s.log.Error("schedule register failed", logx.String("name", s.defs[i].name), logx.Err(err))
		}
	}
	s.c.Start()
}

// Stop halts triggering and waits (bounded by ctx) for running jobs.
// One-shot definitions are kept and re-armed by the next Start.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}

	s.tmu.Lock()
	s.running = false
	for _, d := range s.once {
		if d.timer != nil {
			d.timer.Stop()
			d.timer = nil
		}
	}
	cancel := s.cancel
	s.tmu.Unlock()

	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("stop timed out waiting for jobs", logx.Err(ctx.Err()))
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("service stopped")
}

// AddCron registers (or replaces) a cron entry under name.
func (s *Service) AddCron(name, spec string, timeout time.Duration, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	spec = strings.TrimSpace(spec)
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCronLocked(name)
	s.defs = append(s.defs, cronDef{name: name, spec: spec, timeout: timeout, job: job})
	if s.c == nil {
		return nil
	}
	d := &s.defs[len(s.defs)-1]
	if err := s.addCronLocked(d); err != nil {
		return err
	}
	if next := s.previewNextRunsLocked(spec, 3); next != "" {
		s.log.Debug("schedule registered", logx.String("name", name), logx.String("spec", spec), logx.String("next", next))
	}
	return nil
}

func (s *Service) addCronLocked(d *cronDef) error {
	name, timeout, job := d.name, d.timeout, d.job
	id, err := s.c.AddJob(d.spec, cron.FuncJob(func() {
		s.run(name, timeout, job)
	}))
	if err != nil {
		return err
	}
	d.entryID = id
	return nil
}

// AddOnce registers (or replaces) a one-shot job under name. A time in the
// past fires immediately once the service is running.
func (s *Service) AddOnce(name string, at time.Time, timeout time.Duration, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	if at.IsZero() {
		return ErrTimeRequired
	}

	s.mu.Lock()
	s.removeCronLocked(name)
	s.mu.Unlock()

	s.tmu.Lock()
	defer s.tmu.Unlock()
	if old, ok := s.once[name]; ok && old.timer != nil {
		old.timer.Stop()
	}
	s.onceSeq++
	d := &onceDef{at: at, timeout: timeout, job: job, ver: s.onceSeq}
	s.once[name] = d
	if s.running {
		s.armLocked(name, d)
	}
	return nil
}

// armOnceTimers arms every stored one-shot definition.
func (s *Service) armOnceTimers() int {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	for name, d := range s.once {
		s.armLocked(name, d)
	}
	return len(s.once)
}

// armLocked starts d's timer. Call with s.tmu held.
func (s *Service) armLocked(name string, d *onceDef) {
	if d.timer != nil {
		d.timer.Stop()
	}
	delay := time.Until(d.at)
	if delay < 0 {
		delay = 0
	}
	ver := d.ver
	d.timer = time.AfterFunc(delay, func() {
		// Ignore callbacks from replaced or removed definitions.
		s.tmu.Lock()
		cur, ok := s.once[name]
		if !ok || cur.ver != ver {
			s.tmu.Unlock()
			return
		}
		delete(s.once, name)
		s.tmu.Unlock()

		s.run(name, cur.timeout, cur.job)
	})
}

// Remove unregisters every trigger named name. It reports whether anything
// was removed; removing an unknown name is a no-op.
func (s *Service) Remove(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	s.mu.Lock()
	removed := s.removeCronLocked(name)
	s.mu.Unlock()

	s.tmu.Lock()
	if d, ok := s.once[name]; ok {
		if d.timer != nil {
			d.timer.Stop()
		}
		delete(s.once, name)
		removed = true
	}
	s.tmu.Unlock()

	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

// removeCronLocked drops cron defs named name. Call with s.mu held.
func (s *Service) removeCronLocked(name string) bool {
	removed := false
	n := 0
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
	return removed
}

// OnceAt reports when the one-shot job name is due.
func (s *Service) OnceAt(name string) (time.Time, bool) {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	d, ok := s.once[strings.TrimSpace(name)]
	if !ok {
		return time.Time{}, false
	}
	return d.at, true
}

// Entries lists registered triggers with their next fire time.
func (s *Service) Entries() []Entry {
	s.mu.Lock()
	out := make([]Entry, 0, len(s.defs))
	for _, d := range s.defs {
		e := Entry{Name: d.name, Kind: "cron", Spec: d.spec}
		if s.c != nil && d.entryID != 0 {
			e.Next = s.c.Entry(d.entryID).Next
		}
		out = append(out, e)
	}
	s.mu.Unlock()

	s.tmu.Lock()
	for name, d := range s.once {
		out = append(out, Entry{Name: name, Kind: "once", Next: d.at})
	}
	s.tmu.Unlock()
	return out
}

func (s *Service) run(name string, timeout time.Duration, job Job) {
	s.tmu.Lock()
	if !s.running || job == nil {
		s.tmu.Unlock()
		return
	}
	base := s.runCtx
	if timeout <= 0 {
		timeout = s.jobTimeout
	}
	s.jobs.Add(1)
	s.tmu.Unlock()
	defer s.jobs.Done()

	ctx := base
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(base, timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", logx.String("name", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	if err := job(ctx); err != nil {
		s.log.Warn("job failed", logx.String("name", name), logx.Duration("took", time.Since(start)), logx.Err(err))
		return
	}
	s.log.Debug("job done", logx.String("name", name), logx.Duration("took", time.Since(start)))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// previewNextRunsLocked returns upcoming run times for spec when debug
// logging is on. Call with s.mu held.
func (s *Service) previewNextRunsLocked(spec string, n int) string {
	if !s.log.Enabled(logx.LevelDebug) || n <= 0 {
		return ""
	}
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return ""
	}
	loc := s.loc
	if loc == nil {
		loc = time.Local
	}
	t := time.Now().In(loc)
	var b strings.Builder
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}
