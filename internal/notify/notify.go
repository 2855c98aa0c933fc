// Package notify defines the notification platform the reminder service
// schedules against: fire a payload at an absolute time, cancel it by id,
// and report whether the user allowed notifications.
package notify

import (
	"context"
	"errors"
	"time"
)

// EventFired is published on the event bus when a platform delivers a
// notification. Event.Data is a Fired.
const EventFired = "reminder.fired"

var (
	ErrPermissionDenied = errors.New("notifications not permitted")
	ErrPastTrigger      = errors.New("trigger time is not in the future")
)

// Payload is what the user sees when the notification fires.
type Payload struct {
	Title    string
	Subtitle string
	Body     string
	Data     map[string]string
	Sound    bool
	Badge    int
}

// Fired reports a delivered notification.
type Fired struct {
	ID string
	At time.Time
}

// Platform is the host notification primitive.
//
// Schedule returns an opaque id unique among pending notifications. Cancel
// of an unknown or already delivered id is a no-op.
type Platform interface {
	Schedule(ctx context.Context, p Payload, at time.Time) (id string, err error)
	Cancel(ctx context.Context, id string) error
	RequestPermission(ctx context.Context) (granted bool, err error)
	PermissionGranted(ctx context.Context) (bool, error)
}

// Restorer is implemented by platforms whose pending queue does not survive
// a process restart. Restore re-arms a notification under its original id.
type Restorer interface {
	Restore(ctx context.Context, id string, p Payload, at time.Time) error
}
