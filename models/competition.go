package models

import (
	"time"
)

// CompetitionKind distinguishes capacity-bounded pools from head-to-head contests
type CompetitionKind string

const (
	CompetitionKindPool       CompetitionKind = "pool"
	CompetitionKindHeadToHead CompetitionKind = "head_to_head"
)

// Tournament is a real-world golf tournament that competitions are built around
type Tournament struct {
	ID                   int64     `db:"id"`
	Name                 string    `db:"name"`
	RegistrationOpensAt  time.Time `db:"registration_opens_at"`
	RegistrationClosesAt time.Time `db:"registration_closes_at"`
	StartsAt             time.Time `db:"starts_at"`
	EndsAt               time.Time `db:"ends_at"`
	Status               Status    `db:"status"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

// Schedule returns the tournament's lifecycle timestamps
func (t *Tournament) Schedule() Schedule {
	return Schedule{
		RegistrationOpensAt:  t.RegistrationOpensAt,
		RegistrationClosesAt: t.RegistrationClosesAt,
		StartsAt:             t.StartsAt,
		EndsAt:               t.EndsAt,
	}
}

// CurrentStatus derives the tournament status at now
func (t *Tournament) CurrentStatus(now time.Time) Status {
	return DeriveStatus(now, t.Schedule(), t.Status)
}

// Competition is a paid contest scoped to one or more rounds of a tournament.
// Its timestamps cover only the rounds it plays, so a final-round competition
// keeps registration open while earlier rounds are played.
type Competition struct {
	ID                   int64           `db:"id"`
	TournamentID         int64           `db:"tournament_id"`
	Name                 string          `db:"name"`
	Kind                 CompetitionKind `db:"kind"`
	EntryFee             int64           `db:"entry_fee"`
	Capacity             int             `db:"capacity"`
	PicksRequired        int             `db:"picks_required"`
	RegistrationOpensAt  time.Time       `db:"registration_opens_at"`
	RegistrationClosesAt time.Time       `db:"registration_closes_at"`
	StartsAt             time.Time       `db:"starts_at"`
	EndsAt               time.Time       `db:"ends_at"`
	Status               Status          `db:"status"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

// Schedule returns the competition's lifecycle timestamps
func (c *Competition) Schedule() Schedule {
	return Schedule{
		RegistrationOpensAt:  c.RegistrationOpensAt,
		RegistrationClosesAt: c.RegistrationClosesAt,
		StartsAt:             c.StartsAt,
		EndsAt:               c.EndsAt,
	}
}

// CurrentStatus derives the competition status at now
func (c *Competition) CurrentStatus(now time.Time) Status {
	return DeriveStatus(now, c.Schedule(), c.Status)
}

// IsHeadToHead reports whether entries go through head-to-head instances
func (c *Competition) IsHeadToHead() bool {
	return c.Kind == CompetitionKindHeadToHead
}

// StatusChange records a persisted status transition made by the reconciliation sweep
type StatusChange struct {
	Subject string // "tournament" or "competition"
	ID      int64
	From    Status
	To      Status
}
