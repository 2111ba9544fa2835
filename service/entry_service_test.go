package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fantasygolf/events"
	"fantasygolf/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestEntryService(factory UnitOfWorkFactory) *entryService {
	svc := NewEntryService(factory).(*entryService)
	svc.now = fixedClock(testNow)
	return svc
}

func TestEntryService_Enter(t *testing.T) {
	ctx := context.Background()
	target := models.CompetitionTarget(5)

	t.Run("debits fee and creates entry", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Competitions.On("LockByID", ctx, int64(5)).Return(openPool(5, 500, 10), nil)
		uow.Entries.On("GetActiveByUserAndTarget", ctx, int64(1), target).Return(nil, nil)
		uow.Entries.On("CountActiveByTarget", ctx, target).Return(3, nil)
		expectDebit(uow, 1, 10, 1000, 500, 99)
		uow.Entries.On("Create", ctx, mock.AnythingOfType("*models.Entry")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.Entry).ID = 42
			}).Return(nil)
		svc := newTestEntryService(factory)

		result, err := svc.Enter(ctx, 1, 5, 500, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(42), result.Entry.ID)
		assert.Equal(t, int64(500), result.NewBalance)
		assert.Equal(t, int64(500), result.Entry.EntryFeePaid)
		assert.Equal(t, models.EntryStatusPendingLineup, result.Entry.Status)
		require.NotNil(t, result.Entry.DebitTransactionID)
		assert.Equal(t, int64(99), *result.Entry.DebitTransactionID)
		assert.Equal(t, 1, uow.SavepointCalls)

		created := uow.Recorded().OfType(events.EventTypeEntryCreated)
		require.Len(t, created, 1)
		assert.Equal(t, int64(42), created[0].(events.EntryCreatedEvent).EntryID)
		uow.AssertCalled(t, "Commit")
	})

	t.Run("free entry skips the debit", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Competitions.On("LockByID", ctx, int64(5)).Return(openPool(5, 0, 10), nil)
		uow.Entries.On("GetActiveByUserAndTarget", ctx, int64(1), target).Return(nil, nil)
		uow.Entries.On("CountActiveByTarget", ctx, target).Return(0, nil)
		uow.Wallets.On("GetOrCreate", ctx, int64(1)).Return(&models.Wallet{ID: 10, UserID: 1, Balance: 300}, nil)
		uow.Entries.On("Create", ctx, mock.Anything).Return(nil)
		svc := newTestEntryService(factory)

		result, err := svc.Enter(ctx, 1, 5, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(300), result.NewBalance)
		assert.Nil(t, result.Entry.DebitTransactionID)
		uow.Wallets.AssertNotCalled(t, "LockByUserID", mock.Anything, mock.Anything)
		assert.Empty(t, uow.Recorded().OfType(events.EventTypeBalanceChange))
	})

	t.Run("registration closed rejects before any debit", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Competitions.On("LockByID", ctx, int64(5)).Return(closedPool(5, 500), nil)
		svc := newTestEntryService(factory)

		_, err := svc.Enter(ctx, 1, 5, 500, nil)
		assert.ErrorIs(t, err, models.ErrRegistrationClosed)
		uow.Wallets.AssertNotCalled(t, "LockByUserID", mock.Anything, mock.Anything)
		uow.AssertNotCalled(t, "Commit")
	})

	t.Run("unknown competition", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Competitions.On("LockByID", ctx, int64(5)).Return(nil, nil)
		svc := newTestEntryService(factory)

		_, err := svc.Enter(ctx, 1, 5, 500, nil)
		assert.ErrorIs(t, err, models.ErrCompetitionNotFound)
	})

	t.Run("head-to-head competition is entered through matchmaking", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Competitions.On("LockByID", ctx, int64(5)).Return(openHeadToHead(5, 500), nil)
		svc := newTestEntryService(factory)

		_, err := svc.Enter(ctx, 1, 5, 500, nil)
		assert.ErrorIs(t, err, models.ErrIsHeadToHead)
	})

	t.Run("declared fee must match", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Competitions.On("LockByID", ctx, int64(5)).Return(openPool(5, 500, 10), nil)
		svc := newTestEntryService(factory)

		_, err := svc.Enter(ctx, 1, 5, 400, nil)
		var validation *models.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "entryFee", validation.Field)
	})

	t.Run("duplicate entry", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Competitions.On("LockByID", ctx, int64(5)).Return(openPool(5, 500, 10), nil)
		uow.Entries.On("GetActiveByUserAndTarget", ctx, int64(1), target).Return(&models.Entry{ID: 7, UserID: 1, Target: target}, nil)
		svc := newTestEntryService(factory)

		_, err := svc.Enter(ctx, 1, 5, 500, nil)
		assert.ErrorIs(t, err, models.ErrDuplicateEntry)
		uow.Wallets.AssertNotCalled(t, "LockByUserID", mock.Anything, mock.Anything)
	})

	t.Run("competition at capacity", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Competitions.On("LockByID", ctx, int64(5)).Return(openPool(5, 500, 10), nil)
		uow.Entries.On("GetActiveByUserAndTarget", ctx, int64(1), target).Return(nil, nil)
		uow.Entries.On("CountActiveByTarget", ctx, target).Return(10, nil)
		svc := newTestEntryService(factory)

		_, err := svc.Enter(ctx, 1, 5, 500, nil)
		assert.ErrorIs(t, err, models.ErrCompetitionFull)
	})

	t.Run("insufficient funds creates nothing", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Competitions.On("LockByID", ctx, int64(5)).Return(openPool(5, 500, 10), nil)
		uow.Entries.On("GetActiveByUserAndTarget", ctx, int64(1), target).Return(nil, nil)
		uow.Entries.On("CountActiveByTarget", ctx, target).Return(0, nil)
		uow.Wallets.On("LockByUserID", ctx, int64(1)).Return(&models.Wallet{ID: 10, UserID: 1, Balance: 499}, nil)
		svc := newTestEntryService(factory)

		_, err := svc.Enter(ctx, 1, 5, 500, nil)
		assert.True(t, models.IsInsufficientFunds(err))
		uow.Entries.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		uow.AssertNotCalled(t, "Commit")
	})

	t.Run("failed insert refunds the fee in the same transaction", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		insertErr := errors.New("check constraint violated")
		uow.Competitions.On("LockByID", ctx, int64(5)).Return(openPool(5, 500, 10), nil)
		uow.Entries.On("GetActiveByUserAndTarget", ctx, int64(1), target).Return(nil, nil)
		uow.Entries.On("CountActiveByTarget", ctx, target).Return(0, nil)
		expectDebit(uow, 1, 10, 1000, 500, 99)
		uow.Entries.On("Create", ctx, mock.Anything).Return(insertErr)
		expectCredit(uow, 10, 500, 1000, 100, mock.MatchedBy(func(ref string) bool {
			return strings.HasPrefix(ref, "refund:attempt:")
		}))
		svc := newTestEntryService(factory)

		_, err := svc.Enter(ctx, 1, 5, 500, nil)
		assert.ErrorIs(t, err, insertErr)

		changes := uow.Recorded().OfType(events.EventTypeBalanceChange)
		require.Len(t, changes, 2)
		assert.Equal(t, int64(-500), changes[0].(events.BalanceChangeEvent).Delta)
		assert.Equal(t, int64(500), changes[1].(events.BalanceChangeEvent).Delta)
		assert.Empty(t, uow.Recorded().OfType(events.EventTypeEntryCreated))
		uow.AssertNumberOfCalls(t, "Commit", 1)
	})

	t.Run("golfers outside the field are rejected before any debit", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Competitions.On("LockByID", ctx, int64(5)).Return(openPool(5, 500, 10), nil)
		uow.Competitions.On("MissingFromRoster", ctx, int64(5), []int64{11, 99}).Return([]int64{99}, nil)
		svc := newTestEntryService(factory)

		_, err := svc.Enter(ctx, 1, 5, 500, []int64{11, 99})
		var validation *models.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "golferSelections", validation.Field)
		uow.Wallets.AssertNotCalled(t, "LockByUserID", mock.Anything, mock.Anything)
	})

	t.Run("lineup stored with the entry", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		picks := []int64{11, 12}
		uow.Competitions.On("LockByID", ctx, int64(5)).Return(openPool(5, 500, 10), nil)
		uow.Competitions.On("MissingFromRoster", ctx, int64(5), picks).Return([]int64{}, nil)
		uow.Entries.On("GetActiveByUserAndTarget", ctx, int64(1), target).Return(nil, nil)
		uow.Entries.On("CountActiveByTarget", ctx, target).Return(0, nil)
		expectDebit(uow, 1, 10, 1000, 500, 99)
		uow.Entries.On("Create", ctx, mock.Anything).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.Entry).ID = 42
			}).Return(nil)
		uow.Entries.On("ReplaceSelections", ctx, int64(42), picks).Return(nil)
		uow.Entries.On("UpdateStatus", ctx, int64(42), models.EntryStatusSubmitted).Return(nil)
		svc := newTestEntryService(factory)

		result, err := svc.Enter(ctx, 1, 5, 500, picks)
		require.NoError(t, err)
		assert.Equal(t, models.EntryStatusSubmitted, result.Entry.Status)
		assert.Equal(t, picks, result.Entry.Selections)
		assert.Equal(t, 1, uow.SavepointCalls)
		uow.AssertNumberOfCalls(t, "Commit", 1)

		created := uow.Recorded().OfType(events.EventTypeEntryCreated)
		require.Len(t, created, 1)
		assert.Equal(t, models.EntryStatusSubmitted, created[0].(events.EntryCreatedEvent).Status)
	})

	t.Run("failed lineup rolls back the entry and refunds in the same transaction", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		picks := []int64{11, 12}
		lineupErr := errors.New("connection reset")
		uow.Competitions.On("LockByID", ctx, int64(5)).Return(openPool(5, 500, 10), nil)
		uow.Competitions.On("MissingFromRoster", ctx, int64(5), picks).Return([]int64{}, nil)
		uow.Entries.On("GetActiveByUserAndTarget", ctx, int64(1), target).Return(nil, nil)
		uow.Entries.On("CountActiveByTarget", ctx, target).Return(0, nil)
		expectDebit(uow, 1, 10, 1000, 500, 99)
		uow.Entries.On("Create", ctx, mock.Anything).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.Entry).ID = 42
			}).Return(nil)
		uow.Entries.On("ReplaceSelections", ctx, int64(42), picks).Return(lineupErr)
		expectCredit(uow, 10, 500, 1000, 100, mock.MatchedBy(func(ref string) bool {
			return strings.HasPrefix(ref, "refund:attempt:")
		}))
		svc := newTestEntryService(factory)

		result, err := svc.Enter(ctx, 1, 5, 500, picks)
		require.ErrorIs(t, err, lineupErr)
		assert.Nil(t, result)
		assert.Equal(t, 1, uow.SavepointCalls)
		uow.AssertNumberOfCalls(t, "Commit", 1)
		factory.AssertNumberOfCalls(t, "Create", 1)
		uow.Entries.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)

		changes := uow.Recorded().OfType(events.EventTypeBalanceChange)
		require.Len(t, changes, 2)
		assert.Equal(t, int64(-500), changes[0].(events.BalanceChangeEvent).Delta)
		assert.Equal(t, int64(500), changes[1].(events.BalanceChangeEvent).Delta)
		assert.Empty(t, uow.Recorded().OfType(events.EventTypeEntryCreated))
	})
}

func TestEntryService_Cancel(t *testing.T) {
	ctx := context.Background()
	target := models.CompetitionTarget(5)

	t.Run("refunds a pool entry while registration is open", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Entries.On("LockByID", ctx, int64(42)).
			Return(&models.Entry{ID: 42, UserID: 1, Target: target, EntryFeePaid: 500, Status: models.EntryStatusSubmitted}, nil)
		uow.Competitions.On("GetByID", ctx, int64(5)).Return(openPool(5, 500, 10), nil)
		uow.Entries.On("UpdateStatus", ctx, int64(42), models.EntryStatusCancelled).Return(nil)
		uow.Wallets.On("LockByUserID", ctx, int64(1)).Return(&models.Wallet{ID: 10, UserID: 1, Balance: 500}, nil)
		expectCredit(uow, 10, 500, 1000, 101, "entry-cancel:42")
		svc := newTestEntryService(factory)

		result, err := svc.Cancel(ctx, 1, 42)
		require.NoError(t, err)
		assert.Equal(t, models.EntryStatusCancelled, result.Entry.Status)
		assert.Equal(t, int64(1000), result.NewBalance)
		uow.AssertCalled(t, "Commit")
	})

	t.Run("another user's entry is not found", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Entries.On("LockByID", ctx, int64(42)).
			Return(&models.Entry{ID: 42, UserID: 2, Target: target, Status: models.EntryStatusSubmitted}, nil)
		svc := newTestEntryService(factory)

		_, err := svc.Cancel(ctx, 1, 42)
		assert.ErrorIs(t, err, models.ErrEntryNotFound)
	})

	t.Run("head-to-head entry cannot be cancelled directly", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Entries.On("LockByID", ctx, int64(42)).
			Return(&models.Entry{ID: 42, UserID: 1, Target: models.InstanceTarget(3), Status: models.EntryStatusPendingLineup}, nil)
		svc := newTestEntryService(factory)

		_, err := svc.Cancel(ctx, 1, 42)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("already cancelled", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Entries.On("LockByID", ctx, int64(42)).
			Return(&models.Entry{ID: 42, UserID: 1, Target: target, Status: models.EntryStatusCancelled}, nil)
		svc := newTestEntryService(factory)

		_, err := svc.Cancel(ctx, 1, 42)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("registration closed", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Entries.On("LockByID", ctx, int64(42)).
			Return(&models.Entry{ID: 42, UserID: 1, Target: target, EntryFeePaid: 500, Status: models.EntryStatusSubmitted}, nil)
		uow.Competitions.On("GetByID", ctx, int64(5)).Return(closedPool(5, 500), nil)
		svc := newTestEntryService(factory)

		_, err := svc.Cancel(ctx, 1, 42)
		assert.ErrorIs(t, err, models.ErrRegistrationClosed)
		uow.Entries.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestEntryService_SubmitLineup(t *testing.T) {
	ctx := context.Background()

	t.Run("head-to-head entry resolves competition through its instance", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		picks := []int64{11, 12}
		uow.Entries.On("LockByID", ctx, int64(42)).
			Return(&models.Entry{ID: 42, UserID: 1, Target: models.InstanceTarget(3), Status: models.EntryStatusPendingLineup}, nil)
		uow.HeadToHead.On("GetByID", ctx, int64(3)).Return(&models.HeadToHeadInstance{ID: 3, CompetitionID: 5}, nil)
		uow.Competitions.On("GetByID", ctx, int64(5)).Return(openHeadToHead(5, 500), nil)
		uow.Competitions.On("MissingFromRoster", ctx, int64(5), picks).Return(nil, nil)
		uow.Entries.On("ReplaceSelections", ctx, int64(42), picks).Return(nil)
		uow.Entries.On("UpdateStatus", ctx, int64(42), models.EntryStatusSubmitted).Return(nil)
		svc := newTestEntryService(factory)

		entry, err := svc.SubmitLineup(ctx, 1, 42, picks)
		require.NoError(t, err)
		assert.Equal(t, models.EntryStatusSubmitted, entry.Status)
	})

	t.Run("wrong number of picks", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Entries.On("LockByID", ctx, int64(42)).
			Return(&models.Entry{ID: 42, UserID: 1, Target: models.CompetitionTarget(5), Status: models.EntryStatusPendingLineup}, nil)
		uow.Competitions.On("GetByID", ctx, int64(5)).Return(openPool(5, 500, 10), nil)
		svc := newTestEntryService(factory)

		_, err := svc.SubmitLineup(ctx, 1, 42, []int64{11})
		var validation *models.ValidationError
		assert.ErrorAs(t, err, &validation)
		uow.Entries.AssertNotCalled(t, "ReplaceSelections", mock.Anything, mock.Anything, mock.Anything)
	})
}
