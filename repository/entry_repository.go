package repository

import (
	"context"
	"errors"
	"fmt"

	"fantasygolf/database"
	"fantasygolf/models"

	"github.com/jackc/pgx/v5"
)

// activeEntryConstraint is the partial unique index allowing one live entry per user and target
const activeEntryConstraint = "entries_active_user_target_key"

// EntryRepository implements the EntryRepository interface
type EntryRepository struct {
	q queryable
}

// NewEntryRepository creates a new entry repository
func NewEntryRepository(db *database.DB) *EntryRepository {
	return &EntryRepository{q: db.Pool}
}

// newEntryRepositoryWithTx creates a new entry repository with a transaction
func newEntryRepositoryWithTx(tx queryable) *EntryRepository {
	return &EntryRepository{q: tx}
}

const entryColumns = `id, user_id, target_kind, target_id, entry_fee_paid, status, debit_transaction_id, created_at, updated_at`

func scanEntry(row pgx.Row) (*models.Entry, error) {
	var e models.Entry
	var kind string
	var targetID int64
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&kind,
		&targetID,
		&e.EntryFeePaid,
		&e.Status,
		&e.DebitTransactionID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Target, err = models.ParseEntryTarget(kind, targetID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EntryRepository) collect(rows pgx.Rows) ([]*models.Entry, error) {
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Create inserts an entry
func (r *EntryRepository) Create(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO entries (user_id, target_kind, target_id, entry_fee_paid, status, debit_transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		entry.UserID,
		string(entry.Target.Kind()),
		entry.Target.ID(),
		entry.EntryFeePaid,
		entry.Status,
		entry.DebitTransactionID,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if database.IsUniqueViolation(err, activeEntryConstraint) {
		return models.ErrDuplicateEntry
	}
	if err != nil {
		return fmt.Errorf("failed to create entry for user %d on %s: %w", entry.UserID, entry.Target, err)
	}
	return nil
}

func (r *EntryRepository) getOne(ctx context.Context, query string, args ...any) (*models.Entry, error) {
	entry, err := scanEntry(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

// GetByID retrieves an entry with its golfer selections
func (r *EntryRepository) GetByID(ctx context.Context, id int64) (*models.Entry, error) {
	entry, err := r.getOne(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1`, id)
	if err != nil || entry == nil {
		return entry, err
	}
	entry.Selections, err = r.selections(ctx, id)
	return entry, err
}

// LockByID retrieves an entry holding its row lock
func (r *EntryRepository) LockByID(ctx context.Context, id int64) (*models.Entry, error) {
	return r.getOne(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1 FOR UPDATE`, id)
}

// GetActiveByUserAndTarget returns the user's non-cancelled entry for target
func (r *EntryRepository) GetActiveByUserAndTarget(ctx context.Context, userID int64, target models.EntryTarget) (*models.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE user_id = $1 AND target_kind = $2 AND target_id = $3 AND status <> 'cancelled'
	`
	return r.getOne(ctx, query, userID, string(target.Kind()), target.ID())
}

// CountActiveByTarget counts non-cancelled entries for target
func (r *EntryRepository) CountActiveByTarget(ctx context.Context, target models.EntryTarget) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM entries
		WHERE target_kind = $1 AND target_id = $2 AND status <> 'cancelled'
	`

	var count int
	if err := r.q.QueryRow(ctx, query, string(target.Kind()), target.ID()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries for %s: %w", target, err)
	}
	return count, nil
}

// ListActiveByTarget returns the non-cancelled entries for target
func (r *EntryRepository) ListActiveByTarget(ctx context.Context, target models.EntryTarget) ([]*models.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE target_kind = $1 AND target_id = $2 AND status <> 'cancelled'
		ORDER BY created_at, id
	`

	rows, err := r.q.Query(ctx, query, string(target.Kind()), target.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for %s: %w", target, err)
	}
	return r.collect(rows)
}

// ListByUser returns the user's entries, newest first
func (r *EntryRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for user %d: %w", userID, err)
	}
	return r.collect(rows)
}

// UpdateStatus changes an entry's status
func (r *EntryRepository) UpdateStatus(ctx context.Context, id int64, status models.EntryStatus) error {
	result, err := r.q.Exec(ctx, `UPDATE entries SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update status of entry %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("entry %d not found", id)
	}
	return nil
}

// ReplaceSelections stores the golfer lineup for an entry
func (r *EntryRepository) ReplaceSelections(ctx context.Context, entryID int64, golferIDs []int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM entry_selections WHERE entry_id = $1`, entryID); err != nil {
		return fmt.Errorf("failed to clear selections of entry %d: %w", entryID, err)
	}

	query := `
		INSERT INTO entry_selections (entry_id, golfer_id)
		SELECT $1, golfer_id FROM unnest($2::BIGINT[]) AS golfer_id
	`
	if _, err := r.q.Exec(ctx, query, entryID, golferIDs); err != nil {
		return fmt.Errorf("failed to store selections of entry %d: %w", entryID, err)
	}
	return nil
}

func (r *EntryRepository) selections(ctx context.Context, entryID int64) ([]int64, error) {
	rows, err := r.q.Query(ctx, `SELECT golfer_id FROM entry_selections WHERE entry_id = $1 ORDER BY golfer_id`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get selections of entry %d: %w", entryID, err)
	}
	defer rows.Close()

	var golferIDs []int64
	for rows.Next() {
		var golferID int64
		if err := rows.Scan(&golferID); err != nil {
			return nil, fmt.Errorf("failed to scan selection: %w", err)
		}
		golferIDs = append(golferIDs, golferID)
	}
	return golferIDs, rows.Err()
}
