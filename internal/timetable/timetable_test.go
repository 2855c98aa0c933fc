package timetable

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clk(t *testing.T, s string) Clock {
	t.Helper()
	c, err := ParseClock(s)
	if err != nil {
		t.Fatalf("ParseClock(%q): %v", s, err)
	}
	return c
}

func TestParseClock(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "09:00", want: Clock{9, 0}},
		{in: "9:05", want: Clock{9, 5}},
		{in: "23:59", want: Clock{23, 59}},
		{in: "00:00", want: Clock{0, 0}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12:5", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "+9:00", wantErr: true},
		{in: "-1:00", wantErr: true},
		{in: "09:+5", wantErr: true},
		{in: " 9:00", want: Clock{9, 0}},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseClock(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormat12h(t *testing.T) {
	t.Parallel()
	tests := map[Clock]string{
		{0, 0}:   "12:00 AM",
		{9, 0}:   "9:00 AM",
		{11, 59}: "11:59 AM",
		{12, 0}:  "12:00 PM",
		{13, 30}: "1:30 PM",
		{23, 5}:  "11:05 PM",
	}
	for c, want := range tests {
		if got := c.Format12h(); got != want {
			t.Fatalf("%v.Format12h() = %q, want %q", c, got, want)
		}
	}
}

func TestParseDay(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Day{"0": Sunday, "6": Saturday, "mon": Monday, "Thursday": Thursday, "TUE": Tuesday} {
		got, err := ParseDay(in)
		if err != nil || got != want {
			t.Fatalf("ParseDay(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, in := range []string{"7", "-1", "t", "funday"} {
		if _, err := ParseDay(in); err == nil {
			t.Fatalf("ParseDay(%q) expected error", in)
		}
	}
}

func TestCheckConflict(t *testing.T) {
	t.Parallel()
	monday := []Session{
		{ID: "a", Day: Monday, Title: "Math", Start: clk(t, "09:00"), End: clk(t, "10:00")},
		{ID: "b", Day: Monday, Title: "Physics", Start: clk(t, "13:00"), End: clk(t, "14:30")},
	}
	tests := []struct {
		name        string
		start, end  string
		exclude     string
		wantHit     bool
		wantMessage string
	}{
		{name: "touching end boundary", start: "10:00", end: "11:00"},
		{name: "touching start boundary", start: "08:00", end: "09:00"},
		{name: "overlap", start: "09:30", end: "10:30", wantHit: true, wantMessage: `Conflicts with "Math" (9:00 AM - 10:00 AM)`},
		{name: "contained", start: "13:15", end: "13:45", wantHit: true, wantMessage: `Conflicts with "Physics" (1:00 PM - 2:30 PM)`},
		{name: "containing", start: "08:00", end: "15:00", wantHit: true, wantMessage: `Conflicts with "Math" (9:00 AM - 10:00 AM)`},
		{name: "equal endpoints", start: "09:00", end: "09:00", wantHit: true, wantMessage: MsgEndBeforeStart},
		{name: "end before start", start: "11:00", end: "10:00", wantHit: true, wantMessage: MsgEndBeforeStart},
		{name: "excluded self", start: "09:00", end: "10:00", exclude: "a"},
		{name: "unknown exclude", start: "09:30", end: "10:30", exclude: "zzz", wantHit: true, wantMessage: `Conflicts with "Math" (9:00 AM - 10:00 AM)`},
		{name: "free gap", start: "10:00", end: "13:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := CheckConflict(monday, clk(t, tt.start), clk(t, tt.end), tt.exclude)
			if v.HasConflict != tt.wantHit {
				t.Fatalf("HasConflict = %v, want %v (%q)", v.HasConflict, tt.wantHit, v.Message)
			}
			if v.Message != tt.wantMessage {
				t.Fatalf("Message = %q, want %q", v.Message, tt.wantMessage)
			}
		})
	}
}

func TestCheckConflictOrderIndependentVerdict(t *testing.T) {
	t.Parallel()
	a := Session{ID: "a", Title: "A", Start: clk(t, "09:00"), End: clk(t, "10:00")}
	b := Session{ID: "b", Title: "B", Start: clk(t, "09:30"), End: clk(t, "11:00")}
	fwd := CheckConflict([]Session{a, b}, clk(t, "09:45"), clk(t, "10:15"), "")
	rev := CheckConflict([]Session{b, a}, clk(t, "09:45"), clk(t, "10:15"), "")
	if !fwd.HasConflict || !rev.HasConflict {
		t.Fatalf("expected conflict both ways: %+v %+v", fwd, rev)
	}
	if fwd.With.ID != "a" || rev.With.ID != "b" {
		t.Fatalf("first match in input order: got %s and %s", fwd.With.ID, rev.With.ID)
	}
}

func TestCheckConflictEmpty(t *testing.T) {
	t.Parallel()
	if v := CheckConflict(nil, clk(t, "09:00"), clk(t, "10:00"), ""); v.HasConflict || v.Message != "" {
		t.Fatalf("empty timetable verdict = %+v", v)
	}
}

func TestCheckSlotFiltersDay(t *testing.T) {
	t.Parallel()
	all := []Session{
		{ID: "a", Day: Monday, Title: "Math", Start: clk(t, "09:00"), End: clk(t, "10:00")},
		{ID: "b", Day: Tuesday, Title: "Art", Start: clk(t, "09:00"), End: clk(t, "10:00")},
	}
	if v := CheckSlot(all, Wednesday, clk(t, "09:00"), clk(t, "10:00"), ""); v.HasConflict {
		t.Fatalf("Wednesday should be free: %+v", v)
	}
	if v := CheckSlot(all, Tuesday, clk(t, "09:30"), clk(t, "09:45"), ""); !v.HasConflict || v.With.ID != "b" {
		t.Fatalf("Tuesday verdict = %+v", v)
	}
}

func TestNextOccurrence(t *testing.T) {
	t.Parallel()
	loc := time.UTC
	// 2026-10-14 is a Wednesday.
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, loc)
	tests := []struct {
		name string
		day  Day
		at   string
		want time.Time
	}{
		{name: "later today", day: Wednesday, at: "11:00", want: time.Date(2026, 10, 14, 11, 0, 0, 0, loc)},
		{name: "now rolls a week", day: Wednesday, at: "10:00", want: time.Date(2026, 10, 21, 10, 0, 0, 0, loc)},
		{name: "earlier today rolls a week", day: Wednesday, at: "09:00", want: time.Date(2026, 10, 21, 9, 0, 0, 0, loc)},
		{name: "tomorrow", day: Thursday, at: "08:00", want: time.Date(2026, 10, 15, 8, 0, 0, 0, loc)},
		{name: "wraps to sunday", day: Sunday, at: "12:00", want: time.Date(2026, 10, 18, 12, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		if got := NextOccurrence(tt.day, clk(t, tt.at), now, loc); !got.Equal(tt.want) {
			t.Fatalf("%s: NextOccurrence = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLoadSessions(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte(`sessions:
  - id: math-1
    day: 1
    title: Math
    start: "09:00"
    end: "10:00"
  - id: art-2
    day: 2
    title: Art
    start: "13:00"
    end: "14:30"
`), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadSessions(good)
	if err != nil {
		t.Fatalf("LoadSessions: %v", err)
	}
	if len(got) != 2 || got[1].Title != "Art" || got[1].End != (Clock{14, 30}) || got[0].Day != Monday {
		t.Fatalf("sessions = %+v", got)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte(`sessions:
  - id: x
    day: 9
    title: Broken
    start: "10:00"
    end: "09:00"
`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSessions(bad); err == nil {
		t.Fatal("expected validation error")
	}
}
