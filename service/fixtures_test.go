package service

import (
	"testing"
	"time"

	"fantasygolf/models"

	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2026, time.April, 9, 12, 0, 0, 0, time.UTC)

func fixedClock(now time.Time) Clock {
	return func() time.Time { return now }
}

// newMockUoW returns a unit of work whose transaction calls always succeed and a
// factory that hands it out for every Create
func newMockUoW(t *testing.T) (*MockUnitOfWork, *MockUnitOfWorkFactory) {
	t.Helper()
	uow := NewMockUnitOfWork()
	uow.On("Begin", mock.Anything).Return(nil).Maybe()
	uow.On("Commit").Return(nil).Maybe()
	uow.On("Rollback").Return(nil).Maybe()

	factory := new(MockUnitOfWorkFactory)
	factory.On("Create").Return(uow)
	return uow, factory
}

func openPool(id, fee int64, capacity int) *models.Competition {
	return &models.Competition{
		ID:                   id,
		TournamentID:         1,
		Name:                 "Sunday pool",
		Kind:                 models.CompetitionKindPool,
		EntryFee:             fee,
		Capacity:             capacity,
		PicksRequired:        2,
		RegistrationOpensAt:  testNow.Add(-48 * time.Hour),
		RegistrationClosesAt: testNow.Add(24 * time.Hour),
		StartsAt:             testNow.Add(25 * time.Hour),
		EndsAt:               testNow.Add(96 * time.Hour),
		Status:               models.StatusRegistrationOpen,
	}
}

func closedPool(id, fee int64) *models.Competition {
	c := openPool(id, fee, 10)
	c.RegistrationClosesAt = testNow.Add(-time.Hour)
	c.StartsAt = testNow.Add(time.Hour)
	return c
}

func openHeadToHead(id, fee int64) *models.Competition {
	c := openPool(id, fee, 0)
	c.Kind = models.CompetitionKindHeadToHead
	return c
}

// expectDebit wires the wallet and ledger mocks for a successful debit from a
// wallet holding balance
func expectDebit(uow *MockUnitOfWork, userID, walletID, balance, amount, txID int64) {
	uow.Wallets.On("LockByUserID", mock.Anything, userID).
		Return(&models.Wallet{ID: walletID, UserID: userID, Balance: balance}, nil)
	uow.Wallets.On("DeductBalance", mock.Anything, walletID, amount).Return(balance-amount, nil)
	uow.Ledger.On("Append", mock.Anything, mock.MatchedBy(func(tx *models.LedgerTransaction) bool {
		return tx.Delta == -amount
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.LedgerTransaction).ID = txID
	}).Return(nil)
}

// expectCredit wires the ledger mocks for a successful credit carrying reference.
// The wallet lock must already be expected.
func expectCredit(uow *MockUnitOfWork, walletID, amount, resulting, txID int64, reference any) {
	uow.Ledger.On("GetByReference", mock.Anything, reference).Return(nil, nil)
	uow.Wallets.On("AddBalance", mock.Anything, walletID, amount).Return(resulting, nil)
	uow.Ledger.On("Append", mock.Anything, mock.MatchedBy(func(tx *models.LedgerTransaction) bool {
		return tx.Delta == amount
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.LedgerTransaction).ID = txID
	}).Return(nil)
}

