// ABOUTME: Time helpers for the sync engine's wire formats and day boundaries
// ABOUTME: Snapshot and aggregator payloads carry timestamps as epoch milliseconds

package timeutil

import "time"

// ToMillis converts t to epoch milliseconds.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts epoch milliseconds to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ToMillisPtr converts an optional time to optional epoch milliseconds.
func ToMillisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// FromMillisPtr converts optional epoch milliseconds to an optional UTC time.
func FromMillisPtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}

// StartOfToday returns midnight (00:00:00) of the current day in local time.
func StartOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// OrDistantPast returns t when set, otherwise the zero time. Comparisons
// against the zero time treat never-synced records as infinitely stale.
func OrDistantPast(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
