package timetable

import (
	"errors"
	"fmt"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// NextOccurrence returns the first instant strictly after now at which a
// weekly slot starting at c on day begins, in loc (Local when nil).
func NextOccurrence(day Day, c Clock, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	delta := (int(day) - int(now.Weekday()) + 7) % 7
	y, m, d := now.Date()
	t := time.Date(y, m, d+delta, c.Hour, c.Minute, 0, 0, loc)
	if !t.After(now) {
		t = time.Date(y, m, d+delta+7, c.Hour, c.Minute, 0, 0, loc)
	}
	return t
}

type sessionFile struct {
	Sessions []Session `yaml:"sessions"`
}

// LoadSessions reads a YAML timetable:
//
//	sessions:
//	  - id: math-1
//	    day: 1
//	    title: Math
//	    start: "09:00"
//	    end: "10:00"
func LoadSessions(path string) ([]Session, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f sessionFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("timetable %s: %w", path, err)
	}
	var errs []error
	for i, s := range f.Sessions {
		if !s.Day.Valid() {
			errs = append(errs, fmt.Errorf("sessions[%d]: day %d out of range 0-6", i, s.Day))
		}
		if s.Start.Minutes() >= s.End.Minutes() {
			errs = append(errs, fmt.Errorf("sessions[%d] %q: %s", i, s.Title, MsgEndBeforeStart))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("timetable %s: %w", path, err)
	}
	return f.Sessions, nil
}
