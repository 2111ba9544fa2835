package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fantasygolf/database"
	"fantasygolf/models"

	"github.com/jackc/pgx/v5"
)

// PaymentRepository implements the PaymentRepository interface
type PaymentRepository struct {
	q queryable
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *database.DB) *PaymentRepository {
	return &PaymentRepository{q: db.Pool}
}

// newPaymentRepositoryWithTx creates a new payment repository with a transaction
func newPaymentRepositoryWithTx(tx queryable) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

const paymentColumns = `id, provider, provider_payment_id, user_id, amount, status, ledger_transaction_id, created_at, updated_at`

func scanPayment(row pgx.Row) (*models.ExternalPayment, error) {
	var p models.ExternalPayment
	err := row.Scan(
		&p.ID,
		&p.Provider,
		&p.ProviderPaymentID,
		&p.UserID,
		&p.Amount,
		&p.Status,
		&p.LedgerTransactionID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertIfAbsent stores the payment unless the provider payment id was seen before
func (r *PaymentRepository) InsertIfAbsent(ctx context.Context, payment *models.ExternalPayment) (bool, error) {
	if payment.Status == "" {
		payment.Status = models.PaymentStatusReceived
	}

	query := `
		INSERT INTO external_payments (provider, provider_payment_id, user_id, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT external_payments_provider_payment_key DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		payment.Provider,
		payment.ProviderPaymentID,
		payment.UserID,
		payment.Amount,
		payment.Status,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert payment %s/%s: %w", payment.Provider, payment.ProviderPaymentID, err)
	}
	return true, nil
}

// Get retrieves a payment by provider and provider payment id
func (r *PaymentRepository) Get(ctx context.Context, provider, providerPaymentID string) (*models.ExternalPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM external_payments WHERE provider = $1 AND provider_payment_id = $2`

	payment, err := scanPayment(r.q.QueryRow(ctx, query, provider, providerPaymentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment %s/%s: %w", provider, providerPaymentID, err)
	}
	return payment, nil
}

// MarkCompleted links the payment to its ledger credit
func (r *PaymentRepository) MarkCompleted(ctx context.Context, paymentID int64, ledgerTransactionID int64) error {
	query := `
		UPDATE external_payments
		SET status = 'completed', ledger_transaction_id = $2
		WHERE id = $1 AND status = 'received'
	`

	result, err := r.q.Exec(ctx, query, paymentID, ledgerTransactionID)
	if err != nil {
		return fmt.Errorf("failed to complete payment %d: %w", paymentID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment %d is not awaiting credit", paymentID)
	}
	return nil
}

// MarkCreditFailed flags a received payment whose credit did not happen
func (r *PaymentRepository) MarkCreditFailed(ctx context.Context, paymentID int64) (bool, error) {
	query := `
		UPDATE external_payments
		SET status = 'credit_failed'
		WHERE id = $1 AND status = 'received'
	`

	result, err := r.q.Exec(ctx, query, paymentID)
	if err != nil {
		return false, fmt.Errorf("failed to flag payment %d: %w", paymentID, err)
	}
	return result.RowsAffected() == 1, nil
}

// ListStuck returns payments still awaiting their credit that were received before olderThan
func (r *PaymentRepository) ListStuck(ctx context.Context, olderThan time.Time) ([]*models.ExternalPayment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM external_payments
		WHERE status = 'received' AND created_at < $1
		ORDER BY created_at
	`

	rows, err := r.q.Query(ctx, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.ExternalPayment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}
