package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"plannerbot/internal/eventbus"
	"plannerbot/internal/notify"
	"plannerbot/internal/trigger"
	logx "plannerbot/pkg/logx"
)

func TestScheduleRejectsPastAndDenied(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	p := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if _, err := p.Schedule(ctx, notify.Payload{Title: "x"}, now); !errors.Is(err, notify.ErrPastTrigger) {
		t.Fatalf("Schedule(now) err = %v, want ErrPastTrigger", err)
	}
	p.SetPermission(false)
	if _, err := p.Schedule(ctx, notify.Payload{Title: "x"}, now.Add(time.Minute)); !errors.Is(err, notify.ErrPermissionDenied) {
		t.Fatalf("Schedule without permission err = %v, want ErrPermissionDenied", err)
	}
	if len(p.Pending()) != 0 {
		t.Fatal("rejected schedules must not be pending")
	}
}

func TestFireDueDeliversInOrderAndPublishes(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8, notify.EventFired)
	defer unsub()

	p := New(WithClock(func() time.Time { return now }), WithBus(bus))
	ctx := context.Background()
	late, _ := p.Schedule(ctx, notify.Payload{Title: "late"}, now.Add(2*time.Hour))
	early, _ := p.Schedule(ctx, notify.Payload{Title: "early"}, now.Add(30*time.Minute))
	mid, _ := p.Schedule(ctx, notify.Payload{Title: "mid"}, now.Add(time.Hour))

	fired := p.FireDue(ctx, now.Add(time.Hour))
	if len(fired) != 2 || fired[0] != early || fired[1] != mid {
		t.Fatalf("FireDue = %v, want [%s %s]", fired, early, mid)
	}
	if _, ok := p.Get(late); !ok {
		t.Fatal("late notification should still be pending")
	}
	for _, want := range fired {
		e := <-events
		if got := e.Data.(notify.Fired).ID; got != want {
			t.Fatalf("fired event id = %s, want %s", got, want)
		}
	}
	if p.Fire(ctx, early) {
		t.Fatal("firing an already delivered id should report false")
	}
}

func TestCancelUnknownIsNoop(t *testing.T) {
	t.Parallel()
	p := New()
	if err := p.Cancel(context.Background(), "missing"); err != nil {
		t.Fatalf("Cancel(missing) = %v", err)
	}
}

func TestRequestPermission(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := New(WithPermission(false))
	if ok, _ := p.PermissionGranted(ctx); ok {
		t.Fatal("expected permission to start denied")
	}
	if ok, _ := p.RequestPermission(ctx); !ok {
		t.Fatal("RequestPermission should grant by default")
	}

	denied := New(WithPermission(false), WithDeniedRequests())
	if ok, _ := denied.RequestPermission(ctx); ok {
		t.Fatal("RequestPermission should stay denied")
	}
}

func TestTimersDeliverOnTime(t *testing.T) {
	t.Parallel()
	trig := trigger.New(trigger.Config{}, logx.Nop())
	trig.Start(context.Background())
	defer trig.Stop(context.Background())

	got := make(chan notify.Payload, 1)
	p := New(WithTimers(trig, func(ctx context.Context, id string, pl notify.Payload) error {
		got <- pl
		return nil
	}))
	id, err := p.Schedule(context.Background(), notify.Payload{Title: "Task Reminder"}, time.Now().Add(20*time.Millisecond))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	select {
	case pl := <-got:
		if pl.Title != "Task Reminder" {
			t.Fatalf("delivered payload = %+v", pl)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}
	if _, ok := p.Get(id); ok {
		t.Fatal("delivered notification still pending")
	}
}
