package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"plannerbot/internal/reminder"
	"plannerbot/internal/timetable"
)

// Tokenize splits a command payload on whitespace, keeping quoted runs
// together and honoring backslash escapes:
//
//	"2025-06-10 09:00" 'Essay draft' plain\ word
func Tokenize(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		out   []string
		buf   strings.Builder
		quote byte
		esc   bool
		open  bool
	)
	flush := func() {
		if buf.Len() > 0 || open {
			out = append(out, buf.String())
			buf.Reset()
		}
		open = false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case esc:
			buf.WriteByte(ch)
			esc = false
		case ch == '\\':
			esc = true
		case quote != 0:
			if ch == quote {
				quote = 0
				continue
			}
			buf.WriteByte(ch)
		case ch == '"' || ch == '\'':
			quote = ch
			open = true
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			flush()
		default:
			buf.WriteByte(ch)
		}
	}
	flush()
	return out
}

var whenLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseWhen reads an absolute or relative time:
//
//	+45m, +2h30m       relative to now
//	14:30              next 14:30 in loc (today or tomorrow)
//	2025-06-10 09:00   wall time in loc
//	2025-06-10         09:00 that day
//	RFC 3339           as given
func ParseWhen(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}
	if s == "" {
		return time.Time{}, errors.New("time is empty")
	}
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		d, err := time.ParseDuration(rest)
		if err != nil || d <= 0 {
			return time.Time{}, fmt.Errorf("invalid offset %q", s)
		}
		return now.Add(d), nil
	}
	if c, err := timetable.ParseClock(s); err == nil {
		now = now.In(loc)
		y, m, d := now.Date()
		t := time.Date(y, m, d, c.Hour, c.Minute, 0, 0, loc)
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}
	for _, layout := range whenLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, loc)
		}
		if err != nil {
			continue
		}
		if layout == "2006-01-02" {
			t = t.Add(9 * time.Hour)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

// parseLead reads a lead time token. ok is false when tok is not a lead,
// so callers can treat it as the start of the title.
func parseLead(tok string) (lead int, ok bool, err error) {
	if strings.EqualFold(tok, "default") {
		return reminder.UseDefaultLead, true, nil
	}
	raw, _ := strings.CutSuffix(strings.ToLower(tok), "m")
	n, convErr := strconv.Atoi(raw)
	if convErr != nil {
		return 0, false, nil
	}
	if n < 0 {
		return 0, true, reminder.ErrInvalidLead
	}
	return n, true, nil
}

func parseSwitch(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", v)
}

// ParseSettingsPatch reads "name=on|off" pairs. Names: enabled, task,
// schedule, custom, sound, badge.
func ParseSettingsPatch(args []string) (reminder.SettingsPatch, error) {
	var p reminder.SettingsPatch
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			return p, fmt.Errorf("expected name=on|off, got %q", a)
		}
		b, err := parseSwitch(v)
		if err != nil {
			return p, fmt.Errorf("%s: %w", k, err)
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "enabled", "all":
			p.Enabled = &b
		case "task", "tasks":
			p.TaskReminders = &b
		case "schedule", "session", "sessions":
			p.ScheduleReminders = &b
		case "custom":
			p.CustomReminders = &b
		case "sound":
			p.SoundEnabled = &b
		case "badge":
			p.BadgeEnabled = &b
		default:
			return p, fmt.Errorf("unknown setting %q", k)
		}
	}
	return p, nil
}
