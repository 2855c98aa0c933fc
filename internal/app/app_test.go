package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"plannerbot/internal/config"
	"plannerbot/internal/reminder"
)

func TestSweepScheduleAndValidate(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Notify: config.NotifyConfig{Driver: "memory"}}
	if got := sweepSchedule(cfg); got != DefaultSweepSchedule {
		t.Fatalf("default sweep = %q", got)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate default: %v", err)
	}

	cfg.Reminders.SweepSchedule = "OFF"
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate off: %v", err)
	}
	cfg.Reminders.SweepSchedule = "every now and then"
	if err := Validate(cfg); err == nil {
		t.Fatal("bad sweep schedule accepted")
	}
}

func TestMapReminderConfig(t *testing.T) {
	t.Parallel()
	zero := 0
	cfg := &config.Config{Reminders: config.RemindersConfig{
		TaskLeadMinutes: &zero,
		SweepGrace:      "5m",
		StoreKey:        " planner ",
	}}
	rc, err := MapReminderConfig(cfg)
	if err != nil {
		t.Fatalf("MapReminderConfig: %v", err)
	}
	if rc.TaskLeadMinutes != 0 || rc.SessionLeadMinutes != reminder.DefaultSessionLeadMinutes {
		t.Fatalf("leads = %d/%d", rc.TaskLeadMinutes, rc.SessionLeadMinutes)
	}
	if rc.SweepGrace != 5*time.Minute || rc.StoreKey != "planner" || rc.SettingsKey != reminder.DefaultSettingsKey {
		t.Fatalf("config = %+v", rc)
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()
	sc, err := MapStorageConfig(&config.Config{Storage: config.StorageConfig{Driver: "SQLite", Path: "x.db"}})
	if err != nil || sc.Driver != "sqlite" || sc.BusyTimeout != time.Second {
		t.Fatalf("sqlite = %+v, %v", sc, err)
	}
	sc, err = MapStorageConfig(&config.Config{Storage: config.StorageConfig{Driver: "file", Path: "d", BusyTimeout: "bogus"}})
	if err != nil || sc.BusyTimeout != 0 {
		t.Fatalf("file ignores busy_timeout: %+v, %v", sc, err)
	}
}

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`logging:
  level: debug
  file:
    enabled: true
    path: %s
storage:
  driver: file
  path: %s
notify:
  driver: memory
%s`, filepath.Join(dir, "app.log"), filepath.Join(dir, "data"), extra)
	path := filepath.Join(dir, "plannerbot.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAppDeliversAndForgetsReminder(t *testing.T) {
	t.Parallel()
	a, err := New(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		stopCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		if err := a.Stop(stopCtx, StopAppStop); err != nil {
			t.Errorf("Stop: %v", err)
		}
	}()
	id, err := a.Reminders().ScheduleCustomReminder(ctx, reminder.CustomReminder{
		Title:       "Stretch",
		TriggerTime: time.Now().Add(300 * time.Millisecond),
	})
	if err != nil {
		t.Fatalf("ScheduleCustomReminder: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		list, err := a.Reminders().List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) == 0 {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("reminder %s still stored after delivery", id)
}

func TestAppSweepCanBeTurnedOff(t *testing.T) {
	t.Parallel()
	a, err := New(writeConfig(t, "reminders:\n  sweep_schedule: \"@every 1h\"\n"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		stopCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = a.Stop(stopCtx, StopAppStop)
	}()

	hasSweep := func() bool {
		for _, e := range a.trig.Entries() {
			if strings.EqualFold(e.Name, sweepJob) {
				return true
			}
		}
		return false
	}
	if !hasSweep() {
		t.Fatal("sweep job not registered")
	}
	if err := a.applySweep("off"); err != nil {
		t.Fatalf("applySweep off: %v", err)
	}
	if hasSweep() {
		t.Fatal("sweep job still registered")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	if _, err := New(writeConfig(t, "reminders:\n  sweep_schedule: \"whenever\"\n")); err == nil {
		t.Fatal("New accepted an invalid sweep schedule")
	}
	if _, err := New(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("New accepted a missing config file")
	}
}
