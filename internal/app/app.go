package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"plannerbot/internal/bot"
	"plannerbot/internal/config"
	"plannerbot/internal/eventbus"
	"plannerbot/internal/notify"
	"plannerbot/internal/notify/memory"
	"plannerbot/internal/notify/telegram"
	"plannerbot/internal/reminder"
	"plannerbot/internal/runtime/supervisor"
	"plannerbot/internal/storage"
	"plannerbot/internal/trigger"
	logx "plannerbot/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

const sweepJob = "reminders.sweep"

type App struct {
	cfgm *config.ConfigManager

	log   logx.Logger
	base  logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	trig  *trigger.Service

	platform notify.Platform
	tg       *telegram.Platform // nil unless notify.driver is telegram

	rem  *reminder.Service
	cmds *bot.Commands

	sup *supervisor.Supervisor

	sweepMu   sync.Mutex
	sweepSpec string
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	logs, base := logx.NewService(mapLoggingConfig(cfg))
	a := &App{
		cfgm: cfgm,
		log:  base.With(logx.String("comp", "app")),
		base: base,
		logs: logs,
		bus:  eventbus.New(),
	}
	if err := a.build(cfg); err != nil {
		if a.store != nil {
			_ = a.store.Close()
		}
		logs.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) comp(name string) logx.Logger { return a.base.With(logx.String("comp", name)) }

func (a *App) build(cfg *config.Config) error {
	sc, err := MapStorageConfig(cfg)
	if err != nil {
		return err
	}
	if a.store, err = storage.Open(sc, a.comp("storage")); err != nil {
		return err
	}

	tc, err := mapTriggerConfig(cfg)
	if err != nil {
		return err
	}
	a.trig = trigger.New(tc, a.comp("trigger"))

	switch driver := config.NotifyDriver(cfg); driver {
	case "telegram":
		tgc, err := mapTelegramConfig(cfg)
		if err != nil {
			return err
		}
		if a.tg, err = telegram.New(tgc, a.trig, a.bus, a.comp("telegram")); err != nil {
			return err
		}
		a.platform = a.tg
	case "memory":
		mlog := a.comp("notify")
		a.platform = memory.New(
			memory.WithTimers(a.trig, logDelivery(mlog)),
			memory.WithBus(a.bus),
			memory.WithLogger(mlog),
		)
	default:
		return fmt.Errorf("notify.driver: unknown %q", driver)
	}

	rc, err := MapReminderConfig(cfg)
	if err != nil {
		return err
	}
	a.rem = reminder.New(rc, a.platform, a.store, a.comp("reminder"))
	a.cmds = bot.New(a.rem, a.comp("bot"), bot.WithLocation(a.trig.Location))
	return nil
}

// logDelivery is the memory driver's delivery: the reminder goes to the log.
func logDelivery(log logx.Logger) memory.DeliverFunc {
	return func(_ context.Context, id string, p notify.Payload) error {
		log.Info("reminder delivered",
			logx.String("id", id),
			logx.String("title", p.Title),
			logx.String("body", p.Body),
		)
		return nil
	}
}

// Reminders exposes the reminder service.
func (a *App) Reminders() *reminder.Service { return a.rem }

// Done is closed when the app stops running, either through Stop or
// because a background loop failed.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the failure that ended the app, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.comp("supervisor")))
	run := a.sup.Context()

	a.cfgm.SetLogger(a.comp("config"))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return Validate(cfg) })

	if a.tg != nil {
		if err := a.cmds.Register(run, a.tg); err != nil {
			a.log.Warn("command menu not published", logx.Err(err))
		}
	}
	if ok, err := a.rem.RequestPermission(run); err != nil {
		a.log.Warn("permission request failed", logx.Err(err))
	} else if !ok {
		a.log.Warn("notifications not permitted; new reminders will be rejected until /start")
	}

	// subscribe before any timer can fire so no delivery goes unseen
	fired, unsubFired := a.bus.Subscribe(64, notify.EventFired)
	a.sup.Go0("reminders.unsubscribe", func(c context.Context) {
		<-c.Done()
		unsubFired()
	})
	a.sup.GoRestart("reminders.listen", time.Second, 30*time.Second, func(c context.Context) error {
		return a.rem.Consume(c, fired)
	})

	a.trig.Start(run)
	if n, err := a.rem.Restore(run); err != nil {
		a.log.Warn("some reminders were not restored", logx.Int("restored", n), logx.Err(err))
	} else if n > 0 {
		a.log.Info("reminders restored", logx.Int("count", n))
	}
	if _, err := a.rem.Sweep(run); err != nil {
		a.log.Warn("startup sweep failed", logx.Err(err))
	}
	if err := a.applySweep(sweepSchedule(a.cfgm.Get())); err != nil {
		return err
	}

	if a.tg != nil {
		a.tg.Start(run)
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				// coalesce bursts
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						drained = true
					}
				}
				a.reload(last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started",
		logx.String("notify", config.NotifyDriver(a.cfgm.Get())),
		logx.String("tz", a.trig.Location().String()),
	)
	return nil
}

// applySweep (re)registers the stale-record sweep; "off" removes it.
func (a *App) applySweep(spec string) error {
	a.sweepMu.Lock()
	defer a.sweepMu.Unlock()

	if strings.EqualFold(spec, "off") {
		if a.sweepSpec != "" {
			a.trig.Remove(sweepJob)
			a.log.Info("reminder sweep disabled")
		}
		a.sweepSpec = ""
		return nil
	}
	if spec == a.sweepSpec {
		return nil
	}
	err := a.trig.AddCron(sweepJob, spec, 0, func(ctx context.Context) error {
		_, err := a.rem.Sweep(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("reminders.sweep_schedule: %w", err)
	}
	a.sweepSpec = spec
	return nil
}

func (a *App) reload(last, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(last, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLoggingConfig(next))
	if tc, err := mapTriggerConfig(next); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		a.trig.Apply(tc)
	}
	if rc, err := MapReminderConfig(next); err != nil {
		a.log.Warn("invalid reminders config; keeping previous", logx.Err(err))
	} else {
		a.rem.Apply(rc)
	}
	if err := a.applySweep(sweepSchedule(next)); err != nil {
		a.log.Warn("sweep schedule not applied", logx.Err(err))
	}
	if rs := config.RestartRequired(sections); len(rs) > 0 {
		a.log.Warn("restart required for changes to take effect", logx.Strs("sections", rs))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop shuts components down in dependency order. Each step is bounded so
// one stuck component cannot hold up the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.sup.Cancel()

	var errs []error
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			limit = min(limit, time.Until(dl))
		}
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("telegram", 2*time.Second, func(context.Context) error {
		if a.tg != nil {
			a.tg.Stop()
		}
		return nil
	})
	step("trigger", 3*time.Second, func(c context.Context) error { a.trig.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	a.logs.Close()
	return errors.Join(errs...)
}
