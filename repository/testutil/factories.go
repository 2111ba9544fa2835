package testutil

import (
	"context"
	"testing"
	"time"

	"fantasygolf/database"
	"fantasygolf/models"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

// OpenSchedule returns a schedule whose registration window contains now
func OpenSchedule(now time.Time) models.Schedule {
	return models.Schedule{
		RegistrationOpensAt:  now.Add(-24 * time.Hour),
		RegistrationClosesAt: now.Add(24 * time.Hour),
		StartsAt:             now.Add(48 * time.Hour),
		EndsAt:               now.Add(96 * time.Hour),
	}
}

// ClosedSchedule returns a schedule whose registration closed an hour ago
func ClosedSchedule(now time.Time) models.Schedule {
	return models.Schedule{
		RegistrationOpensAt:  now.Add(-48 * time.Hour),
		RegistrationClosesAt: now.Add(-time.Hour),
		StartsAt:             now.Add(24 * time.Hour),
		EndsAt:               now.Add(72 * time.Hour),
	}
}

// CreateTestCompetition builds an unsaved pool competition open for registration
func CreateTestCompetition(entryFee int64, capacity int) *models.Competition {
	s := OpenSchedule(time.Now())
	return &models.Competition{
		Name:                 "Final Round Pool",
		Kind:                 models.CompetitionKindPool,
		EntryFee:             entryFee,
		Capacity:             capacity,
		RegistrationOpensAt:  s.RegistrationOpensAt,
		RegistrationClosesAt: s.RegistrationClosesAt,
		StartsAt:             s.StartsAt,
		EndsAt:               s.EndsAt,
		Status:               models.StatusRegistrationOpen,
	}
}

// CreateTestHeadToHeadCompetition builds an unsaved head-to-head competition open for registration
func CreateTestHeadToHeadCompetition(entryFee int64) *models.Competition {
	c := CreateTestCompetition(entryFee, 10000)
	c.Name = "Head to Head"
	c.Kind = models.CompetitionKindHeadToHead
	return c
}

// SeedCompetition stores a tournament covering c's schedule, then c itself, then
// its roster. Competition metadata is read-only to the application, so tests
// write it directly.
func SeedCompetition(t *testing.T, db *database.DB, c *models.Competition, roster ...int64) *models.Competition {
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var tournamentID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO tournaments (name, registration_opens_at, registration_closes_at, starts_at, ends_at, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, c.Name+" Tournament", c.RegistrationOpensAt, c.RegistrationClosesAt, c.StartsAt, c.EndsAt, c.Status).Scan(&tournamentID)
		if err != nil {
			return err
		}
		c.TournamentID = tournamentID

		err = tx.QueryRow(ctx, `
			INSERT INTO competitions (tournament_id, name, kind, entry_fee, capacity, picks_required,
				registration_opens_at, registration_closes_at, starts_at, ends_at, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at, updated_at
		`, c.TournamentID, c.Name, c.Kind, c.EntryFee, c.Capacity, c.PicksRequired,
			c.RegistrationOpensAt, c.RegistrationClosesAt, c.StartsAt, c.EndsAt, c.Status,
		).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return err
		}

		for _, golferID := range roster {
			if _, err := tx.Exec(ctx,
				`INSERT INTO competition_golfers (competition_id, golfer_id) VALUES ($1, $2)`,
				c.ID, golferID); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	return c
}

// SetCompetitionSchedule rewrites a seeded competition's timestamps and stored status
func SetCompetitionSchedule(t *testing.T, db *database.DB, competitionID int64, s models.Schedule, status models.Status) {
	_, err := db.Exec(context.Background(), `
		UPDATE competitions
		SET registration_opens_at = $2, registration_closes_at = $3, starts_at = $4, ends_at = $5, status = $6
		WHERE id = $1
	`, competitionID, s.RegistrationOpensAt, s.RegistrationClosesAt, s.StartsAt, s.EndsAt, status)
	require.NoError(t, err)
}

// FundWallet credits a wallet directly through the ledger tables
func FundWallet(t *testing.T, db *database.DB, userID, amount int64) {
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var walletID, balance int64
		err := tx.QueryRow(ctx, `
			INSERT INTO wallets (user_id, balance) VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + EXCLUDED.balance
			RETURNING id, balance
		`, userID, amount).Scan(&walletID, &balance)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO ledger_transactions (wallet_id, delta, resulting_balance, reason, metadata)
			VALUES ($1, $2, $3, $4, '{}'::jsonb)
		`, walletID, amount, balance, models.LedgerReasonAdminGrant)
		return err
	})
	require.NoError(t, err)
}
