package trigger

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "plannerbot/pkg/logx"
)

func startService(t *testing.T) *Service {
	t.Helper()
	s := New(Config{Timezone: "UTC"}, logx.Nop())
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func TestAddOnceFires(t *testing.T) {
	t.Parallel()
	s := startService(t)
	done := make(chan struct{})
	if err := s.AddOnce("notify:a", time.Now().Add(20*time.Millisecond), 0, func(ctx context.Context) error {
		close(done)
		return nil
	}); err != nil {
		t.Fatalf("AddOnce: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot job did not fire")
	}
	if _, ok := s.OnceAt("notify:a"); ok {
		t.Fatal("fired job should be forgotten")
	}
}

func TestRemovePreventsFiring(t *testing.T) {
	t.Parallel()
	s := startService(t)
	var ran atomic.Bool
	_ = s.AddOnce("notify:b", time.Now().Add(50*time.Millisecond), 0, func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	if !s.Remove("notify:b") {
		t.Fatal("Remove should report removal")
	}
	if s.Remove("notify:b") {
		t.Fatal("second Remove should be a no-op")
	}
	time.Sleep(120 * time.Millisecond)
	if ran.Load() {
		t.Fatal("removed job ran")
	}
}

func TestAddOnceReplacesSameName(t *testing.T) {
	t.Parallel()
	s := startService(t)
	var first, second atomic.Int32
	_ = s.AddOnce("notify:c", time.Now().Add(30*time.Millisecond), 0, func(ctx context.Context) error {
		first.Add(1)
		return nil
	})
	done := make(chan struct{})
	_ = s.AddOnce("notify:c", time.Now().Add(60*time.Millisecond), 0, func(ctx context.Context) error {
		second.Add(1)
		close(done)
		return nil
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement job did not fire")
	}
	time.Sleep(50 * time.Millisecond)
	if first.Load() != 0 || second.Load() != 1 {
		t.Fatalf("first=%d second=%d, want 0 and 1", first.Load(), second.Load())
	}
}

func TestOnceDefinedBeforeStartIsArmedOnStart(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	done := make(chan struct{})
	_ = s.AddOnce("early", time.Now().Add(-time.Minute), 0, func(ctx context.Context) error {
		close(done)
		return nil
	})
	select {
	case <-done:
		t.Fatal("job ran before Start")
	case <-time.After(30 * time.Millisecond):
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("past-due job did not fire after Start")
	}
}

func TestJobTimeoutCancelsContext(t *testing.T) {
	t.Parallel()
	s := startService(t)
	errCh := make(chan error, 1)
	_ = s.AddOnce("slow", time.Now(), 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		errCh <- ctx.Err()
		return ctx.Err()
	})
	select {
	case err := <-errCh:
		if err != context.DeadlineExceeded {
			t.Fatalf("ctx.Err() = %v, want DeadlineExceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job context was not cancelled")
	}
}

func TestAddCronValidatesAndListsEntries(t *testing.T) {
	t.Parallel()
	s := startService(t)
	if err := s.AddCron("reminders.sweep", "not a spec", 0, nil); err == nil {
		t.Fatal("expected invalid spec error")
	}
	if err := s.AddCron("reminders.sweep", "@every 15m", 0, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("AddCron: %v", err)
	}
	entries := s.Entries()
	if len(entries) != 1 || entries[0].Kind != "cron" || entries[0].Next.IsZero() {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if !entries[0].Next.After(time.Now()) {
		t.Fatalf("next run %v is not in the future", entries[0].Next)
	}
}

func TestValidateSpec(t *testing.T) {
	t.Parallel()
	for _, spec := range []string{"*/5 * * * *", "0 */10 * * * *", "@hourly", "@every 15m"} {
		if err := ValidateSpec(spec); err != nil {
			t.Fatalf("ValidateSpec(%q): %v", spec, err)
		}
	}
	if err := ValidateSpec("61 * * * *"); err == nil {
		t.Fatal("expected error for minute 61")
	}
}
