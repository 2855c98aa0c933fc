// Package trigger fires jobs at absolute times (one-shot timers) and on cron
// schedules.
//
// The notification platforms use one-shot timers to deliver a reminder at its
// trigger time; the app uses cron entries for periodic reminder sweeps.
// Jobs run on their own goroutine with a timeout and are tracked so Stop can
// wait for them.
package trigger
