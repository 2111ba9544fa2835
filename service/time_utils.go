package service

import (
	"time"
)

// Clock returns the current time. Services hold one so tests can pin "now".
type Clock func() time.Time

// systemClock is the default clock, always in UTC
func systemClock() time.Time {
	return time.Now().UTC()
}

// StuckPaymentCutoff returns the receive time before which a payment still
// awaiting its credit is considered stuck
func StuckPaymentCutoff(now time.Time, age time.Duration) time.Time {
	return now.Add(-age)
}
