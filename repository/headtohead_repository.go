package repository

import (
	"context"
	"errors"
	"fmt"

	"fantasygolf/database"
	"fantasygolf/models"

	"github.com/jackc/pgx/v5"
)

// HeadToHeadRepository implements the HeadToHeadRepository interface
type HeadToHeadRepository struct {
	q queryable
}

// NewHeadToHeadRepository creates a new head-to-head repository
func NewHeadToHeadRepository(db *database.DB) *HeadToHeadRepository {
	return &HeadToHeadRepository{q: db.Pool}
}

// newHeadToHeadRepositoryWithTx creates a new head-to-head repository with a transaction
func newHeadToHeadRepositoryWithTx(tx queryable) *HeadToHeadRepository {
	return &HeadToHeadRepository{q: tx}
}

const instanceColumns = `
	id, competition_id, created_by, max_players, current_players, status,
	created_at, activated_at, filled_at, cancelled_at`

func scanInstance(row pgx.Row) (*models.HeadToHeadInstance, error) {
	var i models.HeadToHeadInstance
	err := row.Scan(
		&i.ID,
		&i.CompetitionID,
		&i.CreatedBy,
		&i.MaxPlayers,
		&i.CurrentPlayers,
		&i.Status,
		&i.CreatedAt,
		&i.ActivatedAt,
		&i.FilledAt,
		&i.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *HeadToHeadRepository) getOne(ctx context.Context, query string, args ...any) (*models.HeadToHeadInstance, error) {
	instance, err := scanInstance(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get head-to-head instance: %w", err)
	}
	return instance, nil
}

func (r *HeadToHeadRepository) list(ctx context.Context, query string, args ...any) ([]*models.HeadToHeadInstance, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list head-to-head instances: %w", err)
	}
	defer rows.Close()

	var instances []*models.HeadToHeadInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan head-to-head instance: %w", err)
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

// Create inserts an instance
func (r *HeadToHeadRepository) Create(ctx context.Context, instance *models.HeadToHeadInstance) error {
	if instance.MaxPlayers == 0 {
		instance.MaxPlayers = models.HeadToHeadMaxPlayers
	}

	query := `
		INSERT INTO head_to_head_instances (competition_id, created_by, max_players, current_players, status, activated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		instance.CompetitionID,
		instance.CreatedBy,
		instance.MaxPlayers,
		instance.CurrentPlayers,
		instance.Status,
		instance.ActivatedAt,
	).Scan(&instance.ID, &instance.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create head-to-head instance for competition %d: %w", instance.CompetitionID, err)
	}
	return nil
}

// GetByID retrieves an instance by id
func (r *HeadToHeadRepository) GetByID(ctx context.Context, id int64) (*models.HeadToHeadInstance, error) {
	return r.getOne(ctx, `SELECT `+instanceColumns+` FROM head_to_head_instances WHERE id = $1`, id)
}

// LockByID retrieves an instance holding its row lock. Concurrent joiners queue here,
// so the capacity check that follows always sees the latest player count.
func (r *HeadToHeadRepository) LockByID(ctx context.Context, id int64) (*models.HeadToHeadInstance, error) {
	return r.getOne(ctx, `SELECT `+instanceColumns+` FROM head_to_head_instances WHERE id = $1 FOR UPDATE`, id)
}

// LockOldestOpen locks the oldest open instance of a competition that the user did not create
func (r *HeadToHeadRepository) LockOldestOpen(ctx context.Context, competitionID int64, excludeUserID int64) (*models.HeadToHeadInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM head_to_head_instances
		WHERE competition_id = $1
		  AND status = 'open'
		  AND current_players < max_players
		  AND created_by <> $2
		ORDER BY created_at, id
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`
	return r.getOne(ctx, query, competitionID, excludeUserID)
}

// Update persists status, player count and lifecycle timestamps
func (r *HeadToHeadRepository) Update(ctx context.Context, instance *models.HeadToHeadInstance) error {
	query := `
		UPDATE head_to_head_instances
		SET current_players = $2,
		    status = $3,
		    activated_at = $4,
		    filled_at = $5,
		    cancelled_at = $6
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query,
		instance.ID,
		instance.CurrentPlayers,
		instance.Status,
		instance.ActivatedAt,
		instance.FilledAt,
		instance.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update head-to-head instance %d: %w", instance.ID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("head-to-head instance %d not found", instance.ID)
	}
	return nil
}

// ListOpen returns the open instances of a competition, oldest first
func (r *HeadToHeadRepository) ListOpen(ctx context.Context, competitionID int64, limit int) ([]*models.HeadToHeadInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM head_to_head_instances
		WHERE competition_id = $1 AND status = 'open'
		ORDER BY created_at, id
		LIMIT $2
	`
	return r.list(ctx, query, competitionID, limit)
}

// ListStale returns pending or open instances whose competition no longer accepts entries
func (r *HeadToHeadRepository) ListStale(ctx context.Context) ([]*models.HeadToHeadInstance, error) {
	query := `
		SELECT i.id, i.competition_id, i.created_by, i.max_players, i.current_players, i.status,
		       i.created_at, i.activated_at, i.filled_at, i.cancelled_at
		FROM head_to_head_instances i
		JOIN competitions c ON c.id = i.competition_id
		WHERE i.status IN ('pending', 'open')
		  AND c.status IN ('registration_closed', 'live', 'completed', 'cancelled')
		ORDER BY i.id
	`
	return r.list(ctx, query)
}
