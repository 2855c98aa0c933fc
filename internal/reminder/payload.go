package reminder

import (
	"fmt"
	"time"

	"plannerbot/internal/notify"
)

const (
	taskTitle        = "Task Reminder"
	taskSubtitle     = "Check your pending tasks"
	sessionTitle     = "Session Starting Soon"
	sessionSubtitle  = "Get ready for your study session"
	dataTypeTask     = "task-reminder"
	dataTypeSession  = "schedule-reminder"
	dataTypeCustom   = "custom-reminder"
	dataKeyType      = "type"
	dataKeyTaskID    = "task_id"
	dataKeyDueDate   = "due_date"
	dataKeySessionID = "session_id"
	dataKeySessionAt = "session_time"
	dataKeyTriggerAt = "trigger_time"
)

func bodyFor(r Reminder) string {
	switch r.Kind {
	case KindTask:
		return fmt.Sprintf("%s is due in %d minutes", r.Title, r.LeadMinutes)
	case KindSession:
		return fmt.Sprintf("%s starts in %d minutes", r.Title, r.LeadMinutes)
	default:
		return r.Body
	}
}

// payloadFor renders the notification for a stored record.
func payloadFor(r Reminder, st Settings) notify.Payload {
	p := notify.Payload{Body: r.Body, Sound: st.SoundEnabled}
	if st.BadgeEnabled {
		p.Badge = 1
	}
	switch r.Kind {
	case KindTask:
		p.Title = taskTitle
		p.Subtitle = r.Description
		if p.Subtitle == "" {
			p.Subtitle = taskSubtitle
		}
		p.Data = map[string]string{
			dataKeyType:    dataTypeTask,
			dataKeyTaskID:  r.SubjectRefID,
			dataKeyDueDate: r.TargetTime.UTC().Format(time.RFC3339),
		}
	case KindSession:
		p.Title = sessionTitle
		p.Subtitle = sessionSubtitle
		p.Data = map[string]string{
			dataKeyType:      dataTypeSession,
			dataKeySessionID: r.SubjectRefID,
			dataKeySessionAt: r.TargetTime.UTC().Format(time.RFC3339),
		}
	default:
		p.Title = r.Title
		p.Data = map[string]string{
			dataKeyType:      dataTypeCustom,
			dataKeyTriggerAt: r.TriggerTime.UTC().Format(time.RFC3339),
		}
		// caller data wins, type included
		for k, v := range r.Data {
			p.Data[k] = v
		}
	}
	return p
}
