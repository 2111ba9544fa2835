package api

import (
	"net/http"
	"testing"

	"fantasygolf/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRequestWithdrawal(t *testing.T) {
	ts := newTestServer(t)
	ts.withdrawals.On("Request", mock.Anything, int64(3), int64(2500)).
		Return(&models.WithdrawalRequest{ID: 8, UserID: 3, Amount: 2500, Status: models.WithdrawalStatusPending}, nil).Once()
	ts.withdrawals.On("Request", mock.Anything, int64(3), int64(99999)).
		Return(nil, &models.InsufficientFundsError{Balance: 2500, Required: 99999}).Once()

	rec := ts.do(t, http.MethodPost, "/withdrawals/request", withdrawalRequestBody{Amount: 2500}, 3, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody[withdrawalView](t, rec)
	assert.Equal(t, int64(8), body.RequestID)
	assert.Equal(t, "pending", body.Status)

	rec = ts.do(t, http.MethodPost, "/withdrawals/request", withdrawalRequestBody{Amount: 99999}, 3, false)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = ts.do(t, http.MethodPost, "/withdrawals/request", withdrawalRequestBody{Amount: -5}, 3, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWithdrawalReview(t *testing.T) {
	ts := newTestServer(t)
	approved := &models.WithdrawalRequest{ID: 8, UserID: 3, Amount: 2500, Status: models.WithdrawalStatusApproved, ReviewedBy: ptr(int64(1))}
	paid := &models.WithdrawalRequest{ID: 8, UserID: 3, Amount: 2500, Status: models.WithdrawalStatusPaid, ReviewedBy: ptr(int64(1)), Note: ptr("sent")}

	ts.withdrawals.On("Approve", mock.Anything, int64(1), int64(8), "").Return(approved, nil).Once()
	ts.withdrawals.On("MarkPaid", mock.Anything, int64(1), int64(8), "sent").Return(paid, nil).Once()
	ts.withdrawals.On("Reject", mock.Anything, int64(1), int64(8), "too late").Return(nil, models.ErrInvalidTransition).Once()

	rec := ts.do(t, http.MethodPost, "/admin/withdrawals/8/approve", nil, 1, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decodeBody[withdrawalView](t, rec).Status)

	rec = ts.do(t, http.MethodPost, "/admin/withdrawals/8/pay", reviewRequest{Note: "sent"}, 1, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[withdrawalView](t, rec)
	assert.Equal(t, "paid", body.Status)
	require.NotNil(t, body.Note)
	assert.Equal(t, "sent", *body.Note)

	rec = ts.do(t, http.MethodPost, "/admin/withdrawals/8/reject", reviewRequest{Note: "too late"}, 1, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/admin/withdrawals/8/approve", nil, 3, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOwnerWithdrawals(t *testing.T) {
	ts := newTestServer(t)
	cancelled := &models.WithdrawalRequest{ID: 8, UserID: 3, Amount: 2500, Status: models.WithdrawalStatusCancelled}
	ts.withdrawals.On("Cancel", mock.Anything, int64(3), int64(8)).Return(cancelled, nil).Once()
	ts.withdrawals.On("ListByUser", mock.Anything, int64(3), 10).Return([]*models.WithdrawalRequest{cancelled}, nil).Once()
	ts.withdrawals.On("ListPending", mock.Anything, maxListLimit).Return([]*models.WithdrawalRequest{}, nil).Once()

	rec := ts.do(t, http.MethodPost, "/withdrawals/8/cancel", nil, 3, false)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/withdrawals?limit=10", nil, 3, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]withdrawalView](t, rec), 1)

	rec = ts.do(t, http.MethodGet, "/admin/withdrawals?limit=5000", nil, 1, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]withdrawalView](t, rec))
}

func TestReconciliationIssues(t *testing.T) {
	ts := newTestServer(t)
	userID := int64(3)
	issue := &models.ReconciliationIssue{ID: 17, Kind: models.ReconciliationRefundFailed, Reference: "refund:entry:42", UserID: &userID, Amount: 1000}
	ts.reconciliation.On("ListOpen", mock.Anything, defaultListLimit).Return([]*models.ReconciliationIssue{issue}, nil).Once()
	ts.reconciliation.On("Resolve", mock.Anything, int64(1), int64(17)).Return(issue, nil).Once()
	ts.reconciliation.On("Resolve", mock.Anything, int64(1), int64(18)).Return(nil, models.ErrIssueNotFound).Once()

	rec := ts.do(t, http.MethodGet, "/admin/reconciliation/issues", nil, 1, true)
	require.Equal(t, http.StatusOK, rec.Code)
	issues := decodeBody[[]issueView](t, rec)
	require.Len(t, issues, 1)
	assert.Equal(t, "refund:entry:42", issues[0].Reference)

	rec = ts.do(t, http.MethodPost, "/admin/reconciliation/issues/17/resolve", nil, 1, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/admin/reconciliation/issues/18/resolve", nil, 1, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
