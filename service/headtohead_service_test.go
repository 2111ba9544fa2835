package service

import (
	"context"
	"testing"

	"fantasygolf/events"
	"fantasygolf/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestHeadToHeadService(factory UnitOfWorkFactory, autoActivate bool) *headToHeadService {
	svc := NewHeadToHeadService(factory, autoActivate).(*headToHeadService)
	svc.now = fixedClock(testNow)
	return svc
}

func testInstance(id, competitionID, createdBy int64, status models.InstanceStatus, players int) *models.HeadToHeadInstance {
	return &models.HeadToHeadInstance{
		ID:             id,
		CompetitionID:  competitionID,
		CreatedBy:      createdBy,
		MaxPlayers:     models.HeadToHeadMaxPlayers,
		CurrentPlayers: players,
		Status:         status,
		CreatedAt:      testNow,
	}
}

func TestHeadToHeadService_Join(t *testing.T) {
	ctx := context.Background()

	t.Run("second player fills the instance", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.HeadToHead.On("LockByID", ctx, int64(3)).Return(testInstance(3, 5, 1, models.InstanceStatusOpen, 1), nil)
		uow.Competitions.On("GetByID", ctx, int64(5)).Return(openHeadToHead(5, 500), nil)
		uow.Entries.On("GetActiveByUserAndTarget", ctx, int64(2), models.InstanceTarget(3)).Return(nil, nil)
		expectDebit(uow, 2, 20, 800, 500, 31)
		uow.Entries.On("Create", ctx, mock.Anything).Return(nil)
		uow.HeadToHead.On("Update", ctx, mock.MatchedBy(func(i *models.HeadToHeadInstance) bool {
			return i.Status == models.InstanceStatusFull && i.CurrentPlayers == 2 && i.FilledAt != nil
		})).Return(nil)
		svc := newTestHeadToHeadService(factory, false)

		result, err := svc.Join(ctx, 2, 3)
		require.NoError(t, err)
		assert.Equal(t, models.InstanceStatusFull, result.Instance.Status)
		assert.Equal(t, 0, result.Instance.SpotsRemaining())
		assert.Equal(t, int64(300), result.NewBalance)
		assert.False(t, result.Created)

		changes := uow.Recorded().OfType(events.EventTypeInstanceStateChange)
		require.Len(t, changes, 1)
		change := changes[0].(events.InstanceStateChangeEvent)
		assert.Equal(t, models.InstanceStatusOpen, change.OldStatus)
		assert.Equal(t, models.InstanceStatusFull, change.NewStatus)
		uow.AssertCalled(t, "Commit")
	})

	t.Run("full instance", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.HeadToHead.On("LockByID", ctx, int64(3)).Return(testInstance(3, 5, 1, models.InstanceStatusFull, 2), nil)
		uow.Competitions.On("GetByID", ctx, int64(5)).Return(openHeadToHead(5, 500), nil)
		uow.Entries.On("GetActiveByUserAndTarget", ctx, int64(2), models.InstanceTarget(3)).Return(nil, nil)
		svc := newTestHeadToHeadService(factory, false)

		_, err := svc.Join(ctx, 2, 3)
		assert.ErrorIs(t, err, models.ErrInstanceFull)
		uow.Wallets.AssertNotCalled(t, "LockByUserID", mock.Anything, mock.Anything)
	})

	t.Run("pending instance is not open", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.HeadToHead.On("LockByID", ctx, int64(3)).Return(testInstance(3, 5, 1, models.InstanceStatusPending, 1), nil)
		uow.Competitions.On("GetByID", ctx, int64(5)).Return(openHeadToHead(5, 500), nil)
		uow.Entries.On("GetActiveByUserAndTarget", ctx, int64(2), models.InstanceTarget(3)).Return(nil, nil)
		svc := newTestHeadToHeadService(factory, false)

		_, err := svc.Join(ctx, 2, 3)
		assert.ErrorIs(t, err, models.ErrInstanceNotOpen)
	})

	t.Run("cancelled instance is not open", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.HeadToHead.On("LockByID", ctx, int64(3)).Return(testInstance(3, 5, 1, models.InstanceStatusCancelled, 1), nil)
		uow.Competitions.On("GetByID", ctx, int64(5)).Return(openHeadToHead(5, 500), nil)
		uow.Entries.On("GetActiveByUserAndTarget", ctx, int64(2), models.InstanceTarget(3)).Return(nil, nil)
		svc := newTestHeadToHeadService(factory, false)

		_, err := svc.Join(ctx, 2, 3)
		assert.ErrorIs(t, err, models.ErrInstanceNotOpen)
	})

	t.Run("creator cannot join their own instance", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.HeadToHead.On("LockByID", ctx, int64(3)).Return(testInstance(3, 5, 1, models.InstanceStatusOpen, 1), nil)
		uow.Competitions.On("GetByID", ctx, int64(5)).Return(openHeadToHead(5, 500), nil)
		svc := newTestHeadToHeadService(factory, false)

		_, err := svc.Join(ctx, 1, 3)
		assert.ErrorIs(t, err, models.ErrAlreadyInInstance)
	})

	t.Run("competition closed", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		closed := openHeadToHead(5, 500)
		closed.RegistrationClosesAt = testNow.Add(-1)
		uow.HeadToHead.On("LockByID", ctx, int64(3)).Return(testInstance(3, 5, 1, models.InstanceStatusOpen, 1), nil)
		uow.Competitions.On("GetByID", ctx, int64(5)).Return(closed, nil)
		uow.Entries.On("GetActiveByUserAndTarget", ctx, int64(2), models.InstanceTarget(3)).Return(nil, nil)
		svc := newTestHeadToHeadService(factory, false)

		_, err := svc.Join(ctx, 2, 3)
		assert.ErrorIs(t, err, models.ErrRegistrationClosed)
	})

	t.Run("unknown instance", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.HeadToHead.On("LockByID", ctx, int64(3)).Return(nil, nil)
		svc := newTestHeadToHeadService(factory, false)

		_, err := svc.Join(ctx, 2, 3)
		assert.ErrorIs(t, err, models.ErrInstanceNotFound)
	})
}

func TestHeadToHeadService_QuickMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending instance when none is open", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Competitions.On("GetByID", ctx, int64(5)).Return(openHeadToHead(5, 500), nil)
		uow.HeadToHead.On("LockOldestOpen", ctx, int64(5), int64(1)).Return(nil, nil)
		uow.HeadToHead.On("Create", ctx, mock.Anything).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.HeadToHeadInstance).ID = 3
			}).Return(nil)
		expectDebit(uow, 1, 10, 500, 500, 30)
		uow.Entries.On("Create", ctx, mock.MatchedBy(func(e *models.Entry) bool {
			id, ok := e.Target.InstanceID()
			return ok && id == 3
		})).Return(nil)
		svc := newTestHeadToHeadService(factory, false)

		result, err := svc.QuickMatch(ctx, 1, 5)
		require.NoError(t, err)
		assert.True(t, result.Created)
		assert.Equal(t, models.InstanceStatusPending, result.Instance.Status)
		assert.Equal(t, 1, result.Instance.CurrentPlayers)
		assert.Equal(t, int64(0), result.NewBalance)
		assert.False(t, result.Instance.IsVisible())
	})

	t.Run("auto activation opens the new instance", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		created := testInstance(3, 5, 1, models.InstanceStatusPending, 1)
		uow.Competitions.On("GetByID", ctx, int64(5)).Return(openHeadToHead(5, 500), nil)
		uow.HeadToHead.On("LockOldestOpen", ctx, int64(5), int64(1)).Return(nil, nil)
		uow.HeadToHead.On("Create", ctx, mock.Anything).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.HeadToHeadInstance).ID = 3
			}).Return(nil)
		expectDebit(uow, 1, 10, 500, 500, 30)
		uow.Entries.On("Create", ctx, mock.Anything).Return(nil)
		uow.HeadToHead.On("LockByID", ctx, int64(3)).Return(created, nil)
		uow.HeadToHead.On("Update", ctx, mock.MatchedBy(func(i *models.HeadToHeadInstance) bool {
			return i.Status == models.InstanceStatusOpen && i.ActivatedAt != nil
		})).Return(nil)
		svc := newTestHeadToHeadService(factory, true)

		result, err := svc.QuickMatch(ctx, 1, 5)
		require.NoError(t, err)
		assert.Equal(t, models.InstanceStatusOpen, result.Instance.Status)
		assert.True(t, result.Instance.IsVisible())
	})

	t.Run("joins the oldest open instance", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Competitions.On("GetByID", ctx, int64(5)).Return(openHeadToHead(5, 500), nil)
		uow.HeadToHead.On("LockOldestOpen", ctx, int64(5), int64(2)).Return(testInstance(3, 5, 1, models.InstanceStatusOpen, 1), nil)
		uow.Entries.On("GetActiveByUserAndTarget", ctx, int64(2), models.InstanceTarget(3)).Return(nil, nil)
		expectDebit(uow, 2, 20, 600, 500, 31)
		uow.Entries.On("Create", ctx, mock.Anything).Return(nil)
		uow.HeadToHead.On("Update", ctx, mock.Anything).Return(nil)
		svc := newTestHeadToHeadService(factory, true)

		result, err := svc.QuickMatch(ctx, 2, 5)
		require.NoError(t, err)
		assert.False(t, result.Created)
		assert.Equal(t, models.InstanceStatusFull, result.Instance.Status)
		uow.HeadToHead.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("pool competition is rejected", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Competitions.On("GetByID", ctx, int64(5)).Return(openPool(5, 500, 10), nil)
		svc := newTestHeadToHeadService(factory, false)

		_, err := svc.QuickMatch(ctx, 1, 5)
		assert.ErrorIs(t, err, models.ErrNotHeadToHead)
	})

	t.Run("insufficient funds creates no instance", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Competitions.On("GetByID", ctx, int64(5)).Return(openHeadToHead(5, 500), nil)
		uow.HeadToHead.On("LockOldestOpen", ctx, int64(5), int64(1)).Return(nil, nil)
		uow.HeadToHead.On("Create", ctx, mock.Anything).Return(nil)
		uow.Wallets.On("LockByUserID", ctx, int64(1)).Return(&models.Wallet{ID: 10, UserID: 1, Balance: 100}, nil)
		svc := newTestHeadToHeadService(factory, false)

		_, err := svc.QuickMatch(ctx, 1, 5)
		assert.True(t, models.IsInsufficientFunds(err))
		uow.AssertNotCalled(t, "Commit")
	})
}

func TestHeadToHeadService_Activate(t *testing.T) {
	ctx := context.Background()

	t.Run("already open is returned unchanged", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		open := testInstance(3, 5, 1, models.InstanceStatusOpen, 1)
		uow.HeadToHead.On("LockByID", ctx, int64(3)).Return(open, nil)
		svc := newTestHeadToHeadService(factory, false)

		got, err := svc.Activate(ctx, 3)
		require.NoError(t, err)
		assert.Same(t, open, got)
		uow.HeadToHead.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		assert.Empty(t, uow.Recorded().Events())
	})

	t.Run("full instance cannot be activated", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.HeadToHead.On("LockByID", ctx, int64(3)).Return(testInstance(3, 5, 1, models.InstanceStatusFull, 2), nil)
		svc := newTestHeadToHeadService(factory, false)

		_, err := svc.Activate(ctx, 3)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})
}

func TestHeadToHeadService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("only the creator or an admin may cancel", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.HeadToHead.On("LockByID", ctx, int64(3)).Return(testInstance(3, 5, 1, models.InstanceStatusOpen, 1), nil)
		svc := newTestHeadToHeadService(factory, false)

		_, err := svc.Cancel(ctx, 2, false, 3)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("full instance cannot be cancelled", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.HeadToHead.On("LockByID", ctx, int64(3)).Return(testInstance(3, 5, 1, models.InstanceStatusFull, 2), nil)
		svc := newTestHeadToHeadService(factory, false)

		_, err := svc.Cancel(ctx, 1, false, 3)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("admin cancel refunds the entrant", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		entry := &models.Entry{ID: 40, UserID: 1, Target: models.InstanceTarget(3), EntryFeePaid: 500, Status: models.EntryStatusPendingLineup}
		uow.HeadToHead.On("LockByID", ctx, int64(3)).Return(testInstance(3, 5, 1, models.InstanceStatusOpen, 1), nil)
		uow.Entries.On("ListActiveByTarget", ctx, models.InstanceTarget(3)).Return([]*models.Entry{entry}, nil)
		uow.Entries.On("UpdateStatus", ctx, int64(40), models.EntryStatusCancelled).Return(nil)
		uow.Wallets.On("LockByUserID", ctx, int64(1)).Return(&models.Wallet{ID: 10, UserID: 1}, nil)
		expectCredit(uow, 10, 500, 500, 50, "refund:instance:3:entry:40")
		uow.HeadToHead.On("Update", ctx, mock.MatchedBy(func(i *models.HeadToHeadInstance) bool {
			return i.Status == models.InstanceStatusCancelled && i.CancelledAt != nil
		})).Return(nil)
		svc := newTestHeadToHeadService(factory, false)

		got, err := svc.Cancel(ctx, 99, true, 3)
		require.NoError(t, err)
		assert.Equal(t, models.InstanceStatusCancelled, got.Status)
		assert.Equal(t, models.EntryStatusCancelled, entry.Status)
		assert.Len(t, uow.Recorded().OfType(events.EventTypeEntryCancelled), 1)
		uow.AssertCalled(t, "Commit")
	})
}

func TestHeadToHeadService_ExpireStale(t *testing.T) {
	ctx := context.Background()
	uow, factory := newMockUoW(t)
	uow.HeadToHead.On("ListStale", ctx).Return([]*models.HeadToHeadInstance{
		testInstance(3, 5, 1, models.InstanceStatusPending, 1),
		testInstance(4, 5, 2, models.InstanceStatusOpen, 1),
	}, nil)
	// 3 is still cancellable, 4 filled after it was listed
	uow.HeadToHead.On("LockByID", ctx, int64(3)).Return(testInstance(3, 5, 1, models.InstanceStatusPending, 1), nil)
	uow.HeadToHead.On("LockByID", ctx, int64(4)).Return(testInstance(4, 5, 2, models.InstanceStatusFull, 2), nil)
	uow.Entries.On("ListActiveByTarget", ctx, models.InstanceTarget(3)).Return([]*models.Entry{}, nil)
	uow.HeadToHead.On("Update", ctx, mock.Anything).Return(nil)
	svc := newTestHeadToHeadService(factory, false)

	expired, err := svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	uow.HeadToHead.AssertNumberOfCalls(t, "Update", 1)
}
