package repository

import (
	"context"
	"errors"
	"fmt"

	"fantasygolf/database"
	"fantasygolf/models"

	"github.com/jackc/pgx/v5"
)

// WithdrawalRepository implements the WithdrawalRepository interface
type WithdrawalRepository struct {
	q queryable
}

// NewWithdrawalRepository creates a new withdrawal repository
func NewWithdrawalRepository(db *database.DB) *WithdrawalRepository {
	return &WithdrawalRepository{q: db.Pool}
}

// newWithdrawalRepositoryWithTx creates a new withdrawal repository with a transaction
func newWithdrawalRepositoryWithTx(tx queryable) *WithdrawalRepository {
	return &WithdrawalRepository{q: tx}
}

const withdrawalColumns = `id, user_id, amount, status, debit_transaction_id, reviewed_by, note, created_at, updated_at`

func scanWithdrawal(row pgx.Row) (*models.WithdrawalRequest, error) {
	var w models.WithdrawalRequest
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Amount,
		&w.Status,
		&w.DebitTransactionID,
		&w.ReviewedBy,
		&w.Note,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create inserts a withdrawal request
func (r *WithdrawalRepository) Create(ctx context.Context, request *models.WithdrawalRequest) error {
	query := `
		INSERT INTO withdrawal_requests (user_id, amount, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query, request.UserID, request.Amount, request.Status).
		Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal request for user %d: %w", request.UserID, err)
	}
	return nil
}

func (r *WithdrawalRepository) getOne(ctx context.Context, query string, id int64) (*models.WithdrawalRequest, error) {
	request, err := scanWithdrawal(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal request %d: %w", id, err)
	}
	return request, nil
}

// GetByID retrieves a withdrawal request by id
func (r *WithdrawalRepository) GetByID(ctx context.Context, id int64) (*models.WithdrawalRequest, error) {
	return r.getOne(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id)
}

// LockByID retrieves a withdrawal request holding its row lock
func (r *WithdrawalRepository) LockByID(ctx context.Context, id int64) (*models.WithdrawalRequest, error) {
	return r.getOne(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`, id)
}

// Update persists status, reviewer, note and debit link
func (r *WithdrawalRepository) Update(ctx context.Context, request *models.WithdrawalRequest) error {
	query := `
		UPDATE withdrawal_requests
		SET status = $2,
		    debit_transaction_id = $3,
		    reviewed_by = $4,
		    note = $5
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		request.ID,
		request.Status,
		request.DebitTransactionID,
		request.ReviewedBy,
		request.Note,
	).Scan(&request.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("withdrawal request %d not found", request.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update withdrawal request %d: %w", request.ID, err)
	}
	return nil
}

func (r *WithdrawalRepository) list(ctx context.Context, query string, args ...any) ([]*models.WithdrawalRequest, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.WithdrawalRequest
	for rows.Next() {
		request, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

// ListByUser returns a user's withdrawal requests, newest first
func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.WithdrawalRequest, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawal_requests
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	return r.list(ctx, query, userID, limit)
}

// ListByStatus returns requests in status, oldest first
func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit int) ([]*models.WithdrawalRequest, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawal_requests
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2
	`
	return r.list(ctx, query, status, limit)
}
