package utils

import "time"

// SessionStatus is the state of the retail FX week.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "OPEN"
	SessionClosed SessionStatus = "CLOSED"
)

// The FX week runs from Sunday 22:00 UTC to Friday 22:00 UTC.
const sessionBoundaryHour = 22

// GetSessionStatus returns the FX session status at t.
func GetSessionStatus(t time.Time) SessionStatus {
	now := t.UTC()

	switch now.Weekday() {
	case time.Saturday:
		return SessionClosed
	case time.Sunday:
		if now.Hour() < sessionBoundaryHour {
			return SessionClosed
		}
	case time.Friday:
		if now.Hour() >= sessionBoundaryHour {
			return SessionClosed
		}
	}
	return SessionOpen
}

// IsSessionOpen returns true if the FX market is open at t.
func IsSessionOpen(t time.Time) bool {
	return GetSessionStatus(t) == SessionOpen
}

// NextSessionOpen returns the next weekly open at or after t.
func NextSessionOpen(t time.Time) time.Time {
	now := t.UTC()
	if IsSessionOpen(now) {
		return now
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), sessionBoundaryHour, 0, 0, 0, time.UTC)
	for next.Weekday() != time.Sunday || next.Before(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
