package repository

import (
	"context"
	"errors"
	"fmt"

	"fantasygolf/database"
	"fantasygolf/models"

	"github.com/jackc/pgx/v5"
)

// CompetitionRepository implements the CompetitionRepository interface
type CompetitionRepository struct {
	q queryable
}

// NewCompetitionRepository creates a new competition repository
func NewCompetitionRepository(db *database.DB) *CompetitionRepository {
	return &CompetitionRepository{q: db.Pool}
}

// newCompetitionRepositoryWithTx creates a new competition repository with a transaction
func newCompetitionRepositoryWithTx(tx queryable) *CompetitionRepository {
	return &CompetitionRepository{q: tx}
}

const competitionColumns = `
	id, tournament_id, name, kind, entry_fee, capacity, picks_required,
	registration_opens_at, registration_closes_at, starts_at, ends_at,
	status, created_at, updated_at`

func scanCompetition(row pgx.Row) (*models.Competition, error) {
	var c models.Competition
	err := row.Scan(
		&c.ID,
		&c.TournamentID,
		&c.Name,
		&c.Kind,
		&c.EntryFee,
		&c.Capacity,
		&c.PicksRequired,
		&c.RegistrationOpensAt,
		&c.RegistrationClosesAt,
		&c.StartsAt,
		&c.EndsAt,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CompetitionRepository) getOne(ctx context.Context, query string, id int64) (*models.Competition, error) {
	competition, err := scanCompetition(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get competition %d: %w", id, err)
	}
	return competition, nil
}

// GetByID retrieves a competition by id
func (r *CompetitionRepository) GetByID(ctx context.Context, id int64) (*models.Competition, error) {
	return r.getOne(ctx, `SELECT `+competitionColumns+` FROM competitions WHERE id = $1`, id)
}

// LockByID retrieves a competition holding its row lock
func (r *CompetitionRepository) LockByID(ctx context.Context, id int64) (*models.Competition, error) {
	return r.getOne(ctx, `SELECT `+competitionColumns+` FROM competitions WHERE id = $1 FOR UPDATE`, id)
}

// ListNonTerminal returns competitions that are not completed or cancelled
func (r *CompetitionRepository) ListNonTerminal(ctx context.Context) ([]*models.Competition, error) {
	query := `
		SELECT ` + competitionColumns + `
		FROM competitions
		WHERE status NOT IN ('completed', 'cancelled')
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitions: %w", err)
	}
	defer rows.Close()

	var competitions []*models.Competition
	for rows.Next() {
		competition, err := scanCompetition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan competition: %w", err)
		}
		competitions = append(competitions, competition)
	}
	return competitions, rows.Err()
}

// UpdateStatus persists a derived status. Terminal statuses are never overwritten.
func (r *CompetitionRepository) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	query := `
		UPDATE competitions
		SET status = $2
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled')
	`

	if _, err := r.q.Exec(ctx, query, id, status); err != nil {
		return fmt.Errorf("failed to update status of competition %d: %w", id, err)
	}
	return nil
}

// MissingFromRoster returns the golfer ids that are not on the competition roster
func (r *CompetitionRepository) MissingFromRoster(ctx context.Context, competitionID int64, golferIDs []int64) ([]int64, error) {
	if len(golferIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT g.golfer_id
		FROM unnest($2::BIGINT[]) AS g(golfer_id)
		WHERE NOT EXISTS (
			SELECT 1 FROM competition_golfers cg
			WHERE cg.competition_id = $1 AND cg.golfer_id = g.golfer_id
		)
		ORDER BY g.golfer_id
	`

	rows, err := r.q.Query(ctx, query, competitionID, golferIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check roster of competition %d: %w", competitionID, err)
	}
	defer rows.Close()

	var missing []int64
	for rows.Next() {
		var golferID int64
		if err := rows.Scan(&golferID); err != nil {
			return nil, fmt.Errorf("failed to scan golfer id: %w", err)
		}
		missing = append(missing, golferID)
	}
	return missing, rows.Err()
}
