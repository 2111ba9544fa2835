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

// LedgerRepository implements the LedgerRepository interface
type LedgerRepository struct {
	q queryable
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool}
}

// newLedgerRepositoryWithTx creates a new ledger repository with a transaction
func newLedgerRepositoryWithTx(tx queryable) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

const ledgerColumns = `id, wallet_id, delta, reason, resulting_balance, reference, metadata, created_at`

func scanLedgerTransaction(row pgx.Row) (*models.LedgerTransaction, error) {
	var tx models.LedgerTransaction
	var metadataJSON []byte
	err := row.Scan(
		&tx.ID,
		&tx.WalletID,
		&tx.Delta,
		&tx.Reason,
		&tx.ResultingBalance,
		&tx.Reference,
		&metadataJSON,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &tx.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ledger metadata: %w", err)
		}
	}
	return &tx, nil
}

// Append records a ledger transaction
func (r *LedgerRepository) Append(ctx context.Context, tx *models.LedgerTransaction) error {
	metadata := tx.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger metadata: %w", err)
	}

	query := `
		INSERT INTO ledger_transactions
		(wallet_id, delta, reason, resulting_balance, reference, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		tx.WalletID,
		tx.Delta,
		tx.Reason,
		tx.ResultingBalance,
		tx.Reference,
		metadataJSON,
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append ledger transaction for wallet %d: %w", tx.WalletID, err)
	}

	return nil
}

// GetByReference returns the transaction carrying reference, or nil
func (r *LedgerRepository) GetByReference(ctx context.Context, reference string) (*models.LedgerTransaction, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_transactions WHERE reference = $1`

	tx, err := scanLedgerTransaction(r.q.QueryRow(ctx, query, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger transaction by reference %q: %w", reference, err)
	}
	return tx, nil
}

// ListByWallet returns the most recent transactions for a wallet
func (r *LedgerRepository) ListByWallet(ctx context.Context, walletID int64, limit int) ([]*models.LedgerTransaction, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger transactions for wallet %d: %w", walletID, err)
	}
	defer rows.Close()

	var txs []*models.LedgerTransaction
	for rows.Next() {
		tx, err := scanLedgerTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	return txs, rows.Err()
}

// SumByWallet returns the sum of deltas and number of transactions for a wallet
func (r *LedgerRepository) SumByWallet(ctx context.Context, walletID int64) (int64, int64, error) {
	query := `
		SELECT COALESCE(SUM(delta), 0)::BIGINT, COUNT(*)
		FROM ledger_transactions
		WHERE wallet_id = $1
	`

	var sum, count int64
	if err := r.q.QueryRow(ctx, query, walletID).Scan(&sum, &count); err != nil {
		return 0, 0, fmt.Errorf("failed to sum ledger for wallet %d: %w", walletID, err)
	}
	return sum, count, nil
}
