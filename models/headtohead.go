package models

import (
	"time"
)

// HeadToHeadMaxPlayers is the fixed capacity of a head-to-head instance
const HeadToHeadMaxPlayers = 2

// InstanceStatus is the membership lifecycle of a head-to-head instance
type InstanceStatus string

const (
	InstanceStatusPending   InstanceStatus = "pending"
	InstanceStatusOpen      InstanceStatus = "open"
	InstanceStatusFull      InstanceStatus = "full"
	InstanceStatusCancelled InstanceStatus = "cancelled"
)

// HeadToHeadInstance is a two-player sub-unit of a head-to-head competition
type HeadToHeadInstance struct {
	ID             int64          `db:"id"`
	CompetitionID  int64          `db:"competition_id"`
	CreatedBy      int64          `db:"created_by"`
	MaxPlayers     int            `db:"max_players"`
	CurrentPlayers int            `db:"current_players"`
	Status         InstanceStatus `db:"status"`
	CreatedAt      time.Time      `db:"created_at"`
	ActivatedAt    *time.Time     `db:"activated_at"`
	FilledAt       *time.Time     `db:"filled_at"`
	CancelledAt    *time.Time     `db:"cancelled_at"`
}

// SpotsRemaining returns how many players can still join
func (i *HeadToHeadInstance) SpotsRemaining() int {
	if i.Status == InstanceStatusCancelled || i.CurrentPlayers >= i.MaxPlayers {
		return 0
	}
	return i.MaxPlayers - i.CurrentPlayers
}

// IsJoinable reports whether another player may join right now
func (i *HeadToHeadInstance) IsJoinable() bool {
	return i.Status == InstanceStatusOpen && i.CurrentPlayers < i.MaxPlayers
}

// CanActivate reports whether the instance may move to open
func (i *HeadToHeadInstance) CanActivate() bool {
	return i.Status == InstanceStatusPending
}

// CanCancel reports whether the instance may be cancelled
func (i *HeadToHeadInstance) CanCancel() bool {
	return i.Status == InstanceStatusPending || i.Status == InstanceStatusOpen
}

// AddPlayer increments the player count and flips to full at capacity.
// Callers must hold the instance row lock and have checked IsJoinable.
func (i *HeadToHeadInstance) AddPlayer(now time.Time) {
	i.CurrentPlayers++
	if i.CurrentPlayers >= i.MaxPlayers {
		i.Status = InstanceStatusFull
		i.FilledAt = &now
	}
}

// IsVisible reports whether the instance appears on the matchmaking board
func (i *HeadToHeadInstance) IsVisible() bool {
	return i.Status == InstanceStatusOpen
}
