package repository

import (
	"context"
	"testing"

	"fantasygolf/models"
	"fantasygolf/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewWalletRepository(testDB.DB)
	ctx := context.Background()

	t.Run("missing wallet returns nil", func(t *testing.T) {
		wallet, err := repo.GetByUserID(ctx, 404)
		require.NoError(t, err)
		assert.Nil(t, wallet)
	})

	t.Run("get or create is idempotent", func(t *testing.T) {
		first, err := repo.GetOrCreate(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(0), first.Balance)

		second, err := repo.GetOrCreate(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("add and deduct", func(t *testing.T) {
		wallet, err := repo.GetOrCreate(ctx, 2)
		require.NoError(t, err)

		balance, err := repo.AddBalance(ctx, wallet.ID, 5000)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), balance)

		balance, err = repo.DeductBalance(ctx, wallet.ID, 2000)
		require.NoError(t, err)
		assert.Equal(t, int64(3000), balance)
	})

	t.Run("deduct beyond balance leaves wallet unchanged", func(t *testing.T) {
		wallet, err := repo.GetOrCreate(ctx, 3)
		require.NoError(t, err)
		_, err = repo.AddBalance(ctx, wallet.ID, 1000)
		require.NoError(t, err)

		_, err = repo.DeductBalance(ctx, wallet.ID, 1001)
		require.Error(t, err)

		var insufficient *models.InsufficientFundsError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, int64(1000), insufficient.Balance)
		assert.Equal(t, int64(1001), insufficient.Required)

		after, err := repo.GetByUserID(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), after.Balance)
	})
}

func TestLedgerRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	wallets := NewWalletRepository(testDB.DB)
	ledger := NewLedgerRepository(testDB.DB)
	ctx := context.Background()

	wallet, err := wallets.GetOrCreate(ctx, 10)
	require.NoError(t, err)

	reference := "topup:demo:abc"
	credit := &models.LedgerTransaction{
		WalletID:         wallet.ID,
		Delta:            2500,
		Reason:           models.LedgerReasonTopup,
		ResultingBalance: 2500,
		Reference:        &reference,
		Metadata:         map[string]any{"provider": "demo"},
	}
	require.NoError(t, ledger.Append(ctx, credit))
	assert.NotZero(t, credit.ID)

	t.Run("reference lookup", func(t *testing.T) {
		found, err := ledger.GetByReference(ctx, reference)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, credit.ID, found.ID)
		assert.Equal(t, "demo", found.Metadata["provider"])

		missing, err := ledger.GetByReference(ctx, "topup:demo:other")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("reference is unique", func(t *testing.T) {
		dup := &models.LedgerTransaction{
			WalletID:         wallet.ID,
			Delta:            2500,
			Reason:           models.LedgerReasonTopup,
			ResultingBalance: 5000,
			Reference:        &reference,
		}
		assert.Error(t, ledger.Append(ctx, dup))
	})

	t.Run("sum and history", func(t *testing.T) {
		debit := &models.LedgerTransaction{
			WalletID:         wallet.ID,
			Delta:            -500,
			Reason:           models.LedgerReasonEntryDebit,
			ResultingBalance: 2000,
		}
		require.NoError(t, ledger.Append(ctx, debit))

		sum, count, err := ledger.SumByWallet(ctx, wallet.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2000), sum)
		assert.Equal(t, int64(2), count)

		history, err := ledger.ListByWallet(ctx, wallet.ID, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, debit.ID, history[0].ID)
	})
}

func TestPaymentRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewPaymentRepository(testDB.DB)
	ctx := context.Background()

	payment := &models.ExternalPayment{
		Provider:          models.PaymentProviderDemo,
		ProviderPaymentID: "pay_1",
		UserID:            7,
		Amount:            1500,
		Status:            models.PaymentStatusReceived,
	}

	inserted, err := repo.InsertIfAbsent(ctx, payment)
	require.NoError(t, err)
	assert.True(t, inserted)

	replay := *payment
	replay.ID = 0
	inserted, err = repo.InsertIfAbsent(ctx, &replay)
	require.NoError(t, err)
	assert.False(t, inserted)

	stored, err := repo.Get(ctx, models.PaymentProviderDemo, "pay_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.PaymentStatusReceived, stored.Status)

	marked, err := repo.MarkCreditFailed(ctx, stored.ID)
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = repo.MarkCreditFailed(ctx, stored.ID)
	require.NoError(t, err)
	assert.False(t, marked)
}
