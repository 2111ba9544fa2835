package models

import (
	"time"
)

// Status is the lifecycle state of a tournament or competition
type Status string

const (
	StatusUpcoming           Status = "upcoming"
	StatusRegistrationOpen   Status = "registration_open"
	StatusRegistrationClosed Status = "registration_closed"
	StatusLive               Status = "live"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

// IsValid reports whether the status is a known lifecycle state
func (s Status) IsValid() bool {
	switch s {
	case StatusUpcoming, StatusRegistrationOpen, StatusRegistrationClosed, StatusLive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether time can no longer move the status
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AcceptsEntries reports whether new entries may be created
func (s Status) AcceptsEntries() bool {
	return s == StatusRegistrationOpen
}

// Schedule holds the timestamps a lifecycle status is derived from
type Schedule struct {
	RegistrationOpensAt  time.Time
	RegistrationClosesAt time.Time
	StartsAt             time.Time
	EndsAt               time.Time
}

// DeriveStatus computes the lifecycle status at now from the schedule alone.
// A stored cancelled or completed status is never overwritten.
func DeriveStatus(now time.Time, schedule Schedule, stored Status) Status {
	if stored.IsTerminal() {
		return stored
	}

	switch {
	case !now.Before(schedule.EndsAt):
		return StatusCompleted
	case !now.Before(schedule.StartsAt):
		return StatusLive
	case !now.Before(schedule.RegistrationClosesAt):
		return StatusRegistrationClosed
	case !now.Before(schedule.RegistrationOpensAt):
		return StatusRegistrationOpen
	default:
		return StatusUpcoming
	}
}
