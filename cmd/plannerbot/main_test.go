package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"plannerbot/internal/notify/memory"
	"plannerbot/internal/reminder"
	"plannerbot/internal/storage"
	logx "plannerbot/pkg/logx"
)

const timetableYAML = `sessions:
  - id: calc-1
    day: 3
    title: Calculus
    start: "10:00"
    end: "11:30"
  - id: chem-1
    day: 3
    title: Chemistry
    start: "13:00"
    end: "14:00"
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTimetableCheck(t *testing.T) {
	t.Parallel()
	file := writeFile(t, t.TempDir(), "timetable.yaml", timetableYAML)

	tests := []struct {
		name     string
		args     []string
		conflict bool
		want     string
	}{
		{name: "overlap", args: []string{"--day", "wed", "--start", "11:00", "--end", "12:00"}, conflict: true, want: `Conflicts with "Calculus" (10:00 AM - 11:30 AM)`},
		{name: "touching", args: []string{"--day", "wed", "--start", "11:30", "--end", "13:00"}, want: "is free"},
		{name: "excluded", args: []string{"--day", "3", "--start", "10:30", "--end", "11:00", "--exclude", "calc-1"}, want: "is free"},
		{name: "other day", args: []string{"--day", "thu", "--start", "10:00", "--end", "11:00"}, want: "is free"},
		{name: "reversed", args: []string{"--day", "wed", "--start", "09:00", "--end", "08:00"}, conflict: true, want: "End time must be after start time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"timetable", "check", "--sessions", file}, tt.args...)
			out, err := execute(t, args...)
			if tt.conflict != errors.Is(err, errConflict) {
				t.Fatalf("err = %v, conflict want %v", err, tt.conflict)
			}
			if !strings.Contains(out, tt.want) {
				t.Fatalf("out = %q, want %q", out, tt.want)
			}
		})
	}
	if exitCode(errConflict) != 2 || exitCode(errors.New("x")) != 1 {
		t.Fatal("exit codes")
	}
}

func TestTimetableList(t *testing.T) {
	t.Parallel()
	file := writeFile(t, t.TempDir(), "timetable.yaml", timetableYAML)
	out, err := execute(t, "timetable", "list", "-s", file, "-d", "wed")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Index(out, "Calculus") > strings.Index(out, "Chemistry") || !strings.Contains(out, "calc-1") {
		t.Fatalf("out = %q", out)
	}
}

func TestValidateAndReminders(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	cfgPath := writeFile(t, dir, "plannerbot.yaml", fmt.Sprintf(
		"storage:\n  driver: file\n  path: %s\nnotify:\n  driver: memory\n", data))

	out, err := execute(t, "validate", "--config", cfgPath)
	if err != nil || !strings.Contains(out, "ok (notify=memory, storage=file)") {
		t.Fatalf("validate = %q, %v", out, err)
	}

	// seed the store the way the running bot would
	store, err := storage.Open(storage.Config{Driver: "file", Path: data}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	svc := reminder.New(reminder.DefaultConfig(), memory.New(), store, logx.Nop())
	if _, err := svc.ScheduleTaskReminder(context.Background(), reminder.TaskReminder{
		TaskID:      "essay",
		Title:       "Essay",
		DueDate:     time.Now().Add(24 * time.Hour),
		LeadMinutes: reminder.UseDefaultLead,
	}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	out, err = execute(t, "reminders", "count", "-c", cfgPath)
	if err != nil || strings.TrimSpace(out) != "1" {
		t.Fatalf("count = %q, %v", out, err)
	}
	out, err = execute(t, "reminders", "list", "-c", cfgPath, "--subject", "essay")
	if err != nil || !strings.Contains(out, "Essay") || !strings.Contains(out, "task") {
		t.Fatalf("list = %q, %v", out, err)
	}

	bad := writeFile(t, dir, "bad.yaml", "notify:\n  driver: sms\n")
	if _, err := execute(t, "validate", "--config", bad); err == nil {
		t.Fatal("validate accepted a bad config")
	}
}
