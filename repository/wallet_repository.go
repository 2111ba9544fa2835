package repository

import (
	"context"
	"errors"
	"fmt"

	"fantasygolf/database"
	"fantasygolf/models"

	"github.com/jackc/pgx/v5"
)

// WalletRepository implements the WalletRepository interface
type WalletRepository struct {
	q queryable
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *database.DB) *WalletRepository {
	return &WalletRepository{q: db.Pool}
}

// newWalletRepositoryWithTx creates a new wallet repository with a transaction
func newWalletRepositoryWithTx(tx queryable) *WalletRepository {
	return &WalletRepository{q: tx}
}

const walletColumns = `id, user_id, balance, created_at, updated_at`

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var wallet models.Wallet
	err := row.Scan(
		&wallet.ID,
		&wallet.UserID,
		&wallet.Balance,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetByUserID retrieves a wallet by user id
func (r *WalletRepository) GetByUserID(ctx context.Context, userID int64) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`

	wallet, err := scanWallet(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet for user %d: %w", userID, err)
	}
	return wallet, nil
}

// ensure creates an empty wallet for the user unless one exists.
// Concurrent first uses race on the unique user_id and the loser does nothing.
func (r *WalletRepository) ensure(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO wallets (user_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to create wallet for user %d: %w", userID, err)
	}
	return nil
}

// GetOrCreate returns the user's wallet, creating it on first use
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID int64) (*models.Wallet, error) {
	wallet, err := r.GetByUserID(ctx, userID)
	if err != nil || wallet != nil {
		return wallet, err
	}

	if err := r.ensure(ctx, userID); err != nil {
		return nil, err
	}

	wallet, err = r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, fmt.Errorf("wallet for user %d missing after create", userID)
	}
	return wallet, nil
}

// LockByUserID returns the user's wallet holding its row lock until the transaction ends
func (r *WalletRepository) LockByUserID(ctx context.Context, userID int64) (*models.Wallet, error) {
	if err := r.ensure(ctx, userID); err != nil {
		return nil, err
	}

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`

	wallet, err := scanWallet(r.q.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet for user %d: %w", userID, err)
	}
	return wallet, nil
}

// AddBalance adds to a wallet's balance atomically and returns the new balance
func (r *WalletRepository) AddBalance(ctx context.Context, walletID int64, amount int64) (int64, error) {
	query := `
		UPDATE wallets
		SET balance = balance + $2
		WHERE id = $1
		RETURNING balance
	`

	var balance int64
	err := r.q.QueryRow(ctx, query, walletID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("wallet %d not found", walletID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to add balance to wallet %d: %w", walletID, err)
	}
	return balance, nil
}

// DeductBalance deducts from a wallet's balance atomically, failing if insufficient funds
func (r *WalletRepository) DeductBalance(ctx context.Context, walletID int64, amount int64) (int64, error) {
	query := `
		UPDATE wallets
		SET balance = balance - $2
		WHERE id = $1 AND balance >= $2
		RETURNING balance
	`

	var balance int64
	err := r.q.QueryRow(ctx, query, walletID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the wallet is missing or the balance is too low
		var current int64
		checkErr := r.q.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1`, walletID).Scan(&current)
		if errors.Is(checkErr, pgx.ErrNoRows) {
			return 0, fmt.Errorf("wallet %d not found", walletID)
		}
		if checkErr != nil {
			return 0, fmt.Errorf("failed to check balance of wallet %d: %w", walletID, checkErr)
		}
		return 0, &models.InsufficientFundsError{Balance: current, Required: amount}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to deduct balance from wallet %d: %w", walletID, err)
	}
	return balance, nil
}
