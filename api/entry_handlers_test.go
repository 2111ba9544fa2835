package api

import (
	"errors"
	"net/http"
	"testing"

	"fantasygolf/models"
	"fantasygolf/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEnterCompetition(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ts := newTestServer(t)
		entry := &models.Entry{ID: 55, UserID: 3, Target: models.CompetitionTarget(7), EntryFeePaid: 1000, Status: models.EntryStatusSubmitted, Selections: []int64{11, 12}}
		ts.entries.On("Enter", mock.Anything, int64(3), int64(7), int64(1000), []int64{11, 12}).
			Return(&service.EntryResult{Entry: entry, NewBalance: 4000}, nil).Once()

		rec := ts.do(t, http.MethodPost, "/competitions/7/enter", map[string]any{"entryFee": 1000, "golferSelections": []int64{11, 12}}, 3, false)
		require.Equal(t, http.StatusCreated, rec.Code)

		body := decodeBody[entryResponse](t, rec)
		assert.Equal(t, int64(55), body.EntryID)
		assert.Equal(t, int64(4000), body.NewBalance)
		assert.Equal(t, "competition", body.Entry.TargetKind)
		assert.Equal(t, int64(7), body.Entry.TargetID)
	})

	t.Run("free entry without picks", func(t *testing.T) {
		ts := newTestServer(t)
		entry := &models.Entry{ID: 56, UserID: 3, Target: models.CompetitionTarget(7), Status: models.EntryStatusPendingLineup}
		ts.entries.On("Enter", mock.Anything, int64(3), int64(7), int64(0), []int64(nil)).
			Return(&service.EntryResult{Entry: entry, NewBalance: 0}, nil).Once()

		rec := ts.do(t, http.MethodPost, "/competitions/7/enter", map[string]any{"entryFee": 0}, 3, false)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("fee is required", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/competitions/7/enter", map[string]any{}, 3, false)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeBody[ErrorResponse](t, rec).Details, "EntryFee")
	})

	t.Run("bad competition id", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/competitions/abc/enter", map[string]any{"entryFee": 0}, 3, false)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		ts := newTestServer(t)
		ts.entries.On("Enter", mock.Anything, int64(3), int64(7), int64(1000), []int64(nil)).
			Return(nil, &models.InsufficientFundsError{Balance: 300, Required: 1000}).Once()

		rec := ts.do(t, http.MethodPost, "/competitions/7/enter", map[string]any{"entryFee": 1000}, 3, false)
		require.Equal(t, http.StatusPaymentRequired, rec.Code)

		body := decodeBody[ErrorResponse](t, rec)
		assert.Equal(t, CodeInsufficientFunds, body.Code)
		assert.Equal(t, float64(300), body.Details["balance"])
		assert.Equal(t, float64(1000), body.Details["required"])
	})

	t.Run("registration closed", func(t *testing.T) {
		ts := newTestServer(t)
		ts.entries.On("Enter", mock.Anything, int64(3), int64(7), int64(1000), []int64(nil)).
			Return(nil, models.ErrRegistrationClosed).Once()

		rec := ts.do(t, http.MethodPost, "/competitions/7/enter", map[string]any{"entryFee": 1000}, 3, false)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, CodeRegistrationClosed, decodeBody[ErrorResponse](t, rec).Code)
	})

	t.Run("duplicate", func(t *testing.T) {
		ts := newTestServer(t)
		ts.entries.On("Enter", mock.Anything, int64(3), int64(7), int64(1000), []int64(nil)).
			Return(nil, models.ErrDuplicateEntry).Once()

		rec := ts.do(t, http.MethodPost, "/competitions/7/enter", map[string]any{"entryFee": 1000}, 3, false)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, CodeDuplicateEntry, decodeBody[ErrorResponse](t, rec).Code)
	})

	t.Run("escalated refund failure", func(t *testing.T) {
		ts := newTestServer(t)
		ts.entries.On("Enter", mock.Anything, int64(3), int64(7), int64(1000), []int64(nil)).
			Return(nil, &models.ReconciliationRequiredError{IssueID: 9, Kind: models.ReconciliationRefundFailed, Cause: errors.New("boom")}).Once()

		rec := ts.do(t, http.MethodPost, "/competitions/7/enter", map[string]any{"entryFee": 1000}, 3, false)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, CodeReconciliationRequired, decodeBody[ErrorResponse](t, rec).Code)
	})
}

func TestSubmitLineup(t *testing.T) {
	ts := newTestServer(t)
	entry := &models.Entry{ID: 55, UserID: 3, Target: models.CompetitionTarget(7), Status: models.EntryStatusSubmitted, Selections: []int64{4, 5}}
	ts.entries.On("SubmitLineup", mock.Anything, int64(3), int64(55), []int64{4, 5}).Return(entry, nil).Once()

	rec := ts.do(t, http.MethodPost, "/entries/55/lineup", lineupRequest{GolferSelections: []int64{4, 5}}, 3, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "submitted", decodeBody[entryView](t, rec).Status)

	rec = ts.do(t, http.MethodPost, "/entries/55/lineup", lineupRequest{GolferSelections: []int64{4, -1}}, 3, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelEntry(t *testing.T) {
	ts := newTestServer(t)
	entry := &models.Entry{ID: 55, UserID: 3, Target: models.CompetitionTarget(7), EntryFeePaid: 1000, Status: models.EntryStatusCancelled}
	ts.entries.On("Cancel", mock.Anything, int64(3), int64(55)).Return(&service.EntryResult{Entry: entry, NewBalance: 5000}, nil).Once()
	ts.entries.On("Cancel", mock.Anything, int64(4), int64(55)).Return(nil, models.ErrForbidden).Once()

	rec := ts.do(t, http.MethodDelete, "/entries/55", nil, 3, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(5000), decodeBody[entryResponse](t, rec).NewBalance)

	rec = ts.do(t, http.MethodDelete, "/entries/55", nil, 4, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
