package timetable

import "fmt"

// MsgEndBeforeStart is the verdict message for a slot whose end does not
// come after its start.
const MsgEndBeforeStart = "End time must be after start time"

// Session is one weekly timetable slot.
type Session struct {
	ID    string `yaml:"id" json:"id"`
	Day   Day    `yaml:"day" json:"day"`
	Title string `yaml:"title" json:"title"`
	Start Clock  `yaml:"start" json:"start"`
	End   Clock  `yaml:"end" json:"end"`
}

// Verdict is the result of CheckConflict. With is the conflicting session,
// nil for ordering violations and for no conflict.
type Verdict struct {
	HasConflict bool
	Message     string
	With        *Session
}

// CheckConflict reports whether the slot [start, end) overlaps any session
// in existing (all assumed to be on the same day), ignoring the session
// whose ID is excludeID. Slots that only touch at a boundary do not
// conflict. The first overlapping session in input order is reported.
//
// An excludeID that matches no session is ignored.
func CheckConflict(existing []Session, start, end Clock, excludeID string) Verdict {
	a0, a1 := start.Minutes(), end.Minutes()
	if a0 >= a1 {
		return Verdict{HasConflict: true, Message: MsgEndBeforeStart}
	}
	for i := range existing {
		s := existing[i]
		if excludeID != "" && s.ID == excludeID {
			continue
		}
		if a0 < s.End.Minutes() && s.Start.Minutes() < a1 {
			return Verdict{
				HasConflict: true,
				Message:     fmt.Sprintf("Conflicts with %q (%s - %s)", s.Title, s.Start.Format12h(), s.End.Format12h()),
				With:        &s,
			}
		}
	}
	return Verdict{}
}

// SessionsFor returns the sessions on day, in input order.
func SessionsFor(all []Session, day Day) []Session {
	var out []Session
	for _, s := range all {
		if s.Day == day {
			out = append(out, s)
		}
	}
	return out
}

// CheckSlot runs CheckConflict against the sessions of day.
func CheckSlot(all []Session, day Day, start, end Clock, excludeID string) Verdict {
	return CheckConflict(SessionsFor(all, day), start, end, excludeID)
}
