// Package reminder schedules task, session and custom reminders on a
// notification platform and keeps the list of pending reminders in a
// storage key.
//
// The stored list is the only record of what is pending: every call reads
// it, changes it and writes it back under one lock. Records of delivered
// notifications are dropped when the platform reports the delivery
// (Listen/HandleFired) and, failing that, by a periodic Sweep.
//
// Expected failures (no permission, trigger in the past, unknown id, kind
// switched off in settings) return an empty id with a sentinel error and
// are logged; storage failures are returned wrapped.
package reminder
