package repository

import (
	"context"
	"errors"
	"fmt"

	"fantasygolf/database"
	"fantasygolf/models"

	"github.com/jackc/pgx/v5"
)

// TournamentRepository implements the TournamentRepository interface
type TournamentRepository struct {
	q queryable
}

// NewTournamentRepository creates a new tournament repository
func NewTournamentRepository(db *database.DB) *TournamentRepository {
	return &TournamentRepository{q: db.Pool}
}

// newTournamentRepositoryWithTx creates a new tournament repository with a transaction
func newTournamentRepositoryWithTx(tx queryable) *TournamentRepository {
	return &TournamentRepository{q: tx}
}

const tournamentColumns = `
	id, name, registration_opens_at, registration_closes_at, starts_at, ends_at,
	status, created_at, updated_at`

func scanTournament(row pgx.Row) (*models.Tournament, error) {
	var t models.Tournament
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.RegistrationOpensAt,
		&t.RegistrationClosesAt,
		&t.StartsAt,
		&t.EndsAt,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TournamentRepository) getOne(ctx context.Context, query string, id int64) (*models.Tournament, error) {
	tournament, err := scanTournament(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	return tournament, nil
}

// GetByID retrieves a tournament by id
func (r *TournamentRepository) GetByID(ctx context.Context, id int64) (*models.Tournament, error) {
	return r.getOne(ctx, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1`, id)
}

// LockByID retrieves a tournament holding its row lock
func (r *TournamentRepository) LockByID(ctx context.Context, id int64) (*models.Tournament, error) {
	return r.getOne(ctx, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1 FOR UPDATE`, id)
}

// ListNonTerminal returns tournaments that are not completed or cancelled
func (r *TournamentRepository) ListNonTerminal(ctx context.Context) ([]*models.Tournament, error) {
	query := `
		SELECT ` + tournamentColumns + `
		FROM tournaments
		WHERE status NOT IN ('completed', 'cancelled')
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	var tournaments []*models.Tournament
	for rows.Next() {
		tournament, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", err)
		}
		tournaments = append(tournaments, tournament)
	}
	return tournaments, rows.Err()
}

// UpdateStatus persists a derived status. Terminal statuses are never overwritten.
func (r *TournamentRepository) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	query := `
		UPDATE tournaments
		SET status = $2
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled')
	`

	if _, err := r.q.Exec(ctx, query, id, status); err != nil {
		return fmt.Errorf("failed to update status of tournament %d: %w", id, err)
	}
	return nil
}
