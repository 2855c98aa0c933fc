package reminder

import (
	"context"
	"errors"

	"plannerbot/internal/eventbus"
	"plannerbot/internal/notify"
	logx "plannerbot/pkg/logx"
)

// HandleFired drops the record of a delivered notification. Unknown ids
// are ignored.
func (s *Service) HandleFired(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		s.log.Error("fired: load failed", logx.String("id", id), logx.Err(err))
		return err
	}
	i := indexOf(list, id)
	if i < 0 {
		return nil
	}
	list = append(list[:i:i], list[i+1:]...)
	if err := s.save(ctx, list); err != nil {
		s.log.Error("fired: save failed", logx.String("id", id), logx.Err(err))
		return err
	}
	s.log.Debug("fired reminder removed", logx.String("id", id))
	return nil
}

// Listen removes records as platforms report deliveries on bus. It blocks
// until ctx is done.
func (s *Service) Listen(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(64, notify.EventFired)
	defer unsub()
	return s.Consume(ctx, ch)
}

// Consume is Listen over a subscription the caller already holds, so no
// delivery is missed between subscribing and consuming. It returns when ctx
// is done or ch is closed.
func (s *Service) Consume(ctx context.Context, ch <-chan eventbus.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			f, ok := ev.Data.(notify.Fired)
			if !ok || f.ID == "" {
				continue
			}
			if err := s.HandleFired(ctx, f.ID); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn("fired event not applied", logx.String("id", f.ID), logx.Err(err))
			}
		}
	}
}

// Sweep drops records whose trigger time passed more than the configured
// grace ago, covering deliveries that were never reported. It returns the
// number of records removed.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.config().SweepGrace)

	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load(ctx)
	if err != nil {
		s.log.Error("sweep: load failed", logx.Err(err))
		return 0, err
	}
	kept, dropped := without(list, func(r Reminder) bool { return r.TriggerTime.Before(cutoff) })
	if len(dropped) == 0 {
		return 0, nil
	}
	if err := s.save(ctx, kept); err != nil {
		s.log.Error("sweep: save failed", logx.Err(err))
		return 0, err
	}
	s.log.Info("stale reminders swept", logx.Int("removed", len(dropped)), logx.Int("kept", len(kept)))
	return len(dropped), nil
}

// Restore re-arms future reminders on platforms that lose their queue on
// restart. Past records are left for Sweep. It returns the number re-armed.
func (s *Service) Restore(ctx context.Context) (int, error) {
	r, ok := s.platform.(notify.Restorer)
	if !ok {
		return 0, nil
	}
	list, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	st, err := s.Settings(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	var errs []error
	n := 0
	for _, rec := range list {
		if !rec.TriggerTime.After(now) {
			continue
		}
		if err := r.Restore(ctx, rec.ID, payloadFor(rec, st), rec.TriggerTime); err != nil {
			s.log.Warn("restore failed", logx.String("id", rec.ID), logx.Err(err))
			errs = append(errs, err)
			continue
		}
		n++
	}
	s.log.Info("reminders restored", logx.Int("restored", n), logx.Int("failed", len(errs)))
	return n, errors.Join(errs...)
}
