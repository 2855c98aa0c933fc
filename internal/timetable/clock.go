// Package timetable models the weekly study timetable: wall-clock slots on
// a day of the week, the overlap check used before a slot is saved, and the
// mapping from a weekly slot to its next absolute start time.
package timetable

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Day is a day of the week, 0 = Sunday .. 6 = Saturday.
type Day int

const (
	Sunday Day = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

func (d Day) Valid() bool { return d >= Sunday && d <= Saturday }

func (d Day) String() string {
	if !d.Valid() {
		return "Day(" + strconv.Itoa(int(d)) + ")"
	}
	return time.Weekday(d).String()
}

// ParseDay accepts 0-6 or an English day name ("mon", "Monday").
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		d := Day(n)
		if !d.Valid() {
			return 0, fmt.Errorf("day %d out of range 0-6", n)
		}
		return d, nil
	}
	ls := strings.ToLower(s)
	if len(ls) >= 3 {
		for d := Sunday; d <= Saturday; d++ {
			if strings.HasPrefix(strings.ToLower(d.String()), ls) {
				return d, nil
			}
		}
	}
	return 0, fmt.Errorf("invalid day %q", s)
}

// Clock is a wall-clock time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

func digits(s string) bool {
	if s == "" || len(s) > 2 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseClock parses "HH:MM" (24h, one-digit hours allowed).
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return Clock{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	if !digits(h) {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	if len(m) != 2 || !digits(m) {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Format12h renders the clock as "9:00 AM".
func (c Clock) Format12h() string {
	ampm := "AM"
	if c.Hour >= 12 {
		ampm = "PM"
	}
	h := c.Hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, c.Minute, ampm)
}

func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
