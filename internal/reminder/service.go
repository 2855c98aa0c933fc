package reminder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"plannerbot/internal/notify"
	"plannerbot/internal/storage"
	logx "plannerbot/pkg/logx"
)

func New(cfg Config, platform notify.Platform, store storage.Store, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:      cfg.withDefaults(),
		platform: platform,
		store:    store,
		log:      log,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Apply swaps lead-time defaults and sweep grace. Changing the store key
// points the service at a different list; existing records are not moved.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.cfgMu.Lock()
	old := s.cfg
	s.cfg = cfg
	s.cfgMu.Unlock()
	if old != cfg {
		s.log.Info("reminder config applied",
			logx.Int("task_lead", cfg.TaskLeadMinutes),
			logx.Int("session_lead", cfg.SessionLeadMinutes),
			logx.Duration("sweep_grace", cfg.SweepGrace),
		)
	}
}

func (s *Service) config() Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// ScheduleTaskReminder schedules a reminder LeadMinutes before r.DueDate
// and returns its id.
func (s *Service) ScheduleTaskReminder(ctx context.Context, r TaskReminder) (string, error) {
	lead, err := resolveLead(r.LeadMinutes, s.config().TaskLeadMinutes)
	if err != nil {
		return s.reject(KindTask, r.TaskID, err)
	}
	if r.DueDate.IsZero() {
		return s.reject(KindTask, r.TaskID, ErrInvalidTime)
	}
	return s.schedule(ctx, Reminder{
		Kind:         KindTask,
		SubjectRefID: r.TaskID,
		Title:        r.Title,
		Description:  r.Description,
		TargetTime:   r.DueDate,
		LeadMinutes:  lead,
	})
}

// ScheduleSessionReminder schedules a reminder LeadMinutes before r.Start
// and returns its id.
func (s *Service) ScheduleSessionReminder(ctx context.Context, r SessionReminder) (string, error) {
	lead, err := resolveLead(r.LeadMinutes, s.config().SessionLeadMinutes)
	if err != nil {
		return s.reject(KindSession, r.SessionID, err)
	}
	if r.Start.IsZero() {
		return s.reject(KindSession, r.SessionID, ErrInvalidTime)
	}
	return s.schedule(ctx, Reminder{
		Kind:         KindSession,
		SubjectRefID: r.SessionID,
		Title:        r.Title,
		TargetTime:   r.Start,
		LeadMinutes:  lead,
	})
}

// ScheduleCustomReminder schedules r.Title/r.Body at r.TriggerTime and
// returns its id. r.Data is passed through to the notification.
func (s *Service) ScheduleCustomReminder(ctx context.Context, r CustomReminder) (string, error) {
	if r.TriggerTime.IsZero() {
		return s.reject(KindCustom, "", ErrInvalidTime)
	}
	return s.schedule(ctx, Reminder{
		Kind:       KindCustom,
		Title:      r.Title,
		Body:       r.Body,
		TargetTime: r.TriggerTime,
		Data:       cloneData(r.Data),
	})
}

func resolveLead(lead, def int) (int, error) {
	if lead == UseDefaultLead {
		return def, nil
	}
	if lead < 0 {
		return 0, ErrInvalidLead
	}
	return lead, nil
}

const maxLeadMinutes = math.MaxInt64 / int64(time.Minute)

func (s *Service) reject(kind Kind, ref string, err error) (string, error) {
	s.log.Warn("reminder not scheduled",
		logx.String("kind", string(kind)),
		logx.String("ref", ref),
		logx.Err(err),
	)
	return "", err
}

// admit runs the checks every new reminder must pass and builds its payload.
func (s *Service) admit(ctx context.Context, rec *Reminder) (notify.Payload, error) {
	st, err := s.Settings(ctx)
	if err != nil {
		return notify.Payload{}, err
	}
	if !st.allows(rec.Kind) {
		return notify.Payload{}, ErrDisabled
	}
	ok, err := s.platform.PermissionGranted(ctx)
	if err != nil {
		return notify.Payload{}, fmt.Errorf("permission check: %w", err)
	}
	if !ok {
		return notify.Payload{}, ErrPermissionDenied
	}
	now := s.now()
	// a lead this long would wrap the duration; it lands before any now
	if int64(rec.LeadMinutes) > maxLeadMinutes {
		return notify.Payload{}, ErrPastTrigger
	}
	rec.TriggerTime = rec.TargetTime.Add(-time.Duration(rec.LeadMinutes) * time.Minute)
	if !rec.TriggerTime.After(now) {
		return notify.Payload{}, ErrPastTrigger
	}
	rec.ScheduledAt = now
	if rec.Kind != KindCustom {
		rec.Body = bodyFor(*rec)
	}
	return payloadFor(*rec, st), nil
}

func (s *Service) schedule(ctx context.Context, rec Reminder) (string, error) {
	payload, err := s.admit(ctx, &rec)
	if err != nil {
		return s.reject(rec.Kind, rec.SubjectRefID, err)
	}
	id, err := s.platform.Schedule(ctx, payload, rec.TriggerTime)
	if err != nil {
		return s.reject(rec.Kind, rec.SubjectRefID, err)
	}
	rec.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load(ctx)
	if err == nil {
		err = s.save(ctx, append(list, rec))
	}
	if err != nil {
		s.log.Error("persist reminder failed", logx.String("id", id), logx.Err(err))
		s.compensate(ctx, id)
		return "", err
	}
	s.log.Info("reminder scheduled",
		logx.String("id", id),
		logx.String("kind", string(rec.Kind)),
		logx.String("ref", rec.SubjectRefID),
		logx.Time("trigger", rec.TriggerTime),
	)
	return id, nil
}

// compensate withdraws a platform notification whose record was not saved.
func (s *Service) compensate(ctx context.Context, id string) {
	if err := s.platform.Cancel(context.WithoutCancel(ctx), id); err != nil {
		s.log.Error("withdraw unsaved notification failed", logx.String("id", id), logx.Err(err))
	}
}

// Cancel removes the platform notification and the stored record for id.
// Unknown ids are a no-op.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		s.log.Error("cancel: load failed", logx.String("id", id), logx.Err(err))
		return err
	}
	if err := s.platform.Cancel(ctx, id); err != nil {
		s.log.Error("cancel: platform failed", logx.String("id", id), logx.Err(err))
		return fmt.Errorf("cancel %s: %w", id, err)
	}
	i := indexOf(list, id)
	if i < 0 {
		s.log.Debug("cancel: no stored record", logx.String("id", id))
		return nil
	}
	list = append(list[:i:i], list[i+1:]...)
	if err := s.save(ctx, list); err != nil {
		s.log.Error("cancel: save failed", logx.String("id", id), logx.Err(err))
		return err
	}
	s.log.Info("reminder cancelled", logx.String("id", id))
	return nil
}

// CancelFor cancels every reminder about subjectRefID. A failed platform
// cancel is logged, its record kept, and the batch continues; the joined
// failures are returned.
func (s *Service) CancelFor(ctx context.Context, subjectRefID string) error {
	if subjectRefID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		s.log.Error("cancel for subject: load failed", logx.String("ref", subjectRefID), logx.Err(err))
		return err
	}
	var errs []error
	kept, dropped := without(list, func(r Reminder) bool {
		if r.SubjectRefID != subjectRefID {
			return false
		}
		if err := s.platform.Cancel(ctx, r.ID); err != nil {
			s.log.Warn("cancel for subject: platform failed", logx.String("id", r.ID), logx.Err(err))
			errs = append(errs, fmt.Errorf("cancel %s: %w", r.ID, err))
			return false
		}
		return true
	})
	if len(dropped) > 0 {
		if err := s.save(ctx, kept); err != nil {
			s.log.Error("cancel for subject: save failed", logx.String("ref", subjectRefID), logx.Err(err))
			errs = append(errs, err)
		}
	}
	s.log.Info("reminders cancelled for subject",
		logx.String("ref", subjectRefID),
		logx.Int("cancelled", len(dropped)),
		logx.Int("failed", len(errs)),
	)
	return errors.Join(errs...)
}

// Reschedule moves reminder id to basis: the new target time for task and
// session reminders, the new trigger time for custom ones. The replacement
// keeps the kind, title, description, lead and data, gets a new id, and is
// appended to the list. The old reminder stays untouched if the new one is
// rejected.
func (s *Service) Reschedule(ctx context.Context, id string, basis time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		s.log.Error("reschedule: load failed", logx.String("id", id), logx.Err(err))
		return "", err
	}
	i := indexOf(list, id)
	if i < 0 {
		s.log.Warn("reschedule: reminder not found", logx.String("id", id))
		return "", ErrNotFound
	}
	old := list[i]
	if basis.IsZero() {
		return s.reject(old.Kind, old.SubjectRefID, ErrInvalidTime)
	}

	next := old
	next.ID = ""
	next.TargetTime = basis
	next.Data = cloneData(old.Data)
	payload, err := s.admit(ctx, &next)
	if err != nil {
		return s.reject(old.Kind, old.SubjectRefID, err)
	}
	newID, err := s.platform.Schedule(ctx, payload, next.TriggerTime)
	if err != nil {
		return s.reject(old.Kind, old.SubjectRefID, err)
	}
	next.ID = newID

	list = append(list[:i:i], list[i+1:]...)
	if err := s.save(ctx, append(list, next)); err != nil {
		s.log.Error("reschedule: save failed", logx.String("id", id), logx.Err(err))
		s.compensate(ctx, newID)
		return "", err
	}
	if err := s.platform.Cancel(ctx, id); err != nil {
		s.log.Warn("reschedule: old notification not withdrawn", logx.String("id", id), logx.Err(err))
	}
	s.log.Info("reminder rescheduled",
		logx.String("old_id", id),
		logx.String("id", newID),
		logx.Time("trigger", next.TriggerTime),
	)
	return newID, nil
}

// ListFor returns the stored reminders about subjectRefID in insertion order.
func (s *Service) ListFor(ctx context.Context, subjectRefID string) ([]Reminder, error) {
	if subjectRefID == "" {
		return nil, nil
	}
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Reminder
	for _, r := range list {
		if r.SubjectRefID == subjectRefID {
			out = append(out, r)
		}
	}
	return out, nil
}

// List returns every stored reminder in insertion order.
func (s *Service) List(ctx context.Context) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load(ctx)
	if err != nil {
		s.log.Error("list: load failed", logx.Err(err))
		return nil, err
	}
	return list, nil
}

// CountActive counts stored reminders whose trigger time is still ahead.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	list, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	n := 0
	for _, r := range list {
		if r.TriggerTime.After(now) {
			n++
		}
	}
	return n, nil
}

// RequestPermission asks the platform for permission to notify.
func (s *Service) RequestPermission(ctx context.Context) (bool, error) {
	ok, err := s.platform.RequestPermission(ctx)
	if err != nil {
		s.log.Warn("permission request failed", logx.Err(err))
		return false, err
	}
	s.log.Info("permission requested", logx.Bool("granted", ok))
	return ok, nil
}

func cloneData(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
