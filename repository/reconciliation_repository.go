package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fantasygolf/database"
	"fantasygolf/models"

	"github.com/jackc/pgx/v5"
)

// ReconciliationRepository implements the ReconciliationRepository interface
type ReconciliationRepository struct {
	q queryable
}

// NewReconciliationRepository creates a new reconciliation repository
func NewReconciliationRepository(db *database.DB) *ReconciliationRepository {
	return &ReconciliationRepository{q: db.Pool}
}

// newReconciliationRepositoryWithTx creates a new reconciliation repository with a transaction
func newReconciliationRepositoryWithTx(tx queryable) *ReconciliationRepository {
	return &ReconciliationRepository{q: tx}
}

const issueColumns = `id, kind, reference, user_id, amount, detail, created_at, resolved_at, resolved_by`

func scanIssue(row pgx.Row) (*models.ReconciliationIssue, error) {
	var issue models.ReconciliationIssue
	var detail []byte
	err := row.Scan(
		&issue.ID,
		&issue.Kind,
		&issue.Reference,
		&issue.UserID,
		&issue.Amount,
		&detail,
		&issue.CreatedAt,
		&issue.ResolvedAt,
		&issue.ResolvedBy,
	)
	if err != nil {
		return nil, err
	}
	if len(detail) > 0 {
		if err := json.Unmarshal(detail, &issue.Detail); err != nil {
			return nil, fmt.Errorf("failed to decode issue detail: %w", err)
		}
	}
	return &issue, nil
}

// Create records an issue, reusing the open issue with the same kind and reference
func (r *ReconciliationRepository) Create(ctx context.Context, issue *models.ReconciliationIssue) error {
	detail := issue.Detail
	if detail == nil {
		detail = map[string]any{}
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to encode issue detail: %w", err)
	}

	query := `
		INSERT INTO reconciliation_issues (kind, reference, user_id, amount, detail)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, reference) WHERE resolved_at IS NULL DO NOTHING
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query, issue.Kind, issue.Reference, issue.UserID, issue.Amount, detailJSON).
		Scan(&issue.ID, &issue.CreatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to create reconciliation issue %s/%s: %w", issue.Kind, issue.Reference, err)
	}

	existing, err := scanIssue(r.q.QueryRow(ctx,
		`SELECT `+issueColumns+` FROM reconciliation_issues WHERE kind = $1 AND reference = $2 AND resolved_at IS NULL`,
		issue.Kind, issue.Reference))
	if err != nil {
		return fmt.Errorf("failed to load open reconciliation issue %s/%s: %w", issue.Kind, issue.Reference, err)
	}
	*issue = *existing
	return nil
}

// GetByID retrieves an issue by id
func (r *ReconciliationRepository) GetByID(ctx context.Context, id int64) (*models.ReconciliationIssue, error) {
	issue, err := scanIssue(r.q.QueryRow(ctx, `SELECT `+issueColumns+` FROM reconciliation_issues WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation issue %d: %w", id, err)
	}
	return issue, nil
}

// ListOpen returns unresolved issues, oldest first
func (r *ReconciliationRepository) ListOpen(ctx context.Context, limit int) ([]*models.ReconciliationIssue, error) {
	query := `
		SELECT ` + issueColumns + `
		FROM reconciliation_issues
		WHERE resolved_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciliation issues: %w", err)
	}
	defer rows.Close()

	var issues []*models.ReconciliationIssue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// Resolve closes an open issue
func (r *ReconciliationRepository) Resolve(ctx context.Context, id int64, resolvedBy int64) (bool, error) {
	query := `
		UPDATE reconciliation_issues
		SET resolved_at = NOW(), resolved_by = $2
		WHERE id = $1 AND resolved_at IS NULL
	`

	result, err := r.q.Exec(ctx, query, id, resolvedBy)
	if err != nil {
		return false, fmt.Errorf("failed to resolve reconciliation issue %d: %w", id, err)
	}
	return result.RowsAffected() == 1, nil
}
