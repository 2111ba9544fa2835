package api

import (
	"context"
	"net/http"

	"fantasygolf/models"
)

type withdrawalRequestBody struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type reviewRequest struct {
	Note string `json:"note" validate:"omitempty,max=500"`
}

// RequestWithdrawal records a pending withdrawal for the caller
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequestBody
	if !h.decode(w, r, &req, false) {
		return
	}

	request, err := h.services.Withdrawals.Request(r.Context(), identity(r).UserID, req.Amount)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newWithdrawalView(request))
}

// ListWithdrawals returns the caller's withdrawal requests
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	requests, err := h.services.Withdrawals.ListByUser(r.Context(), identity(r).UserID, listLimit(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapViews(requests, newWithdrawalView))
}

// CancelWithdrawal lets the owner withdraw a pending request
func (h *Handler) CancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	request, err := h.services.Withdrawals.Cancel(r.Context(), identity(r).UserID, requestID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newWithdrawalView(request))
}

// ListPendingWithdrawals returns the review queue
func (h *Handler) ListPendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	requests, err := h.services.Withdrawals.ListPending(r.Context(), listLimit(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapViews(requests, newWithdrawalView))
}

func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.reviewWithdrawal(w, r, h.services.Withdrawals.Approve)
}

func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.reviewWithdrawal(w, r, h.services.Withdrawals.Reject)
}

func (h *Handler) PayWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.reviewWithdrawal(w, r, h.services.Withdrawals.MarkPaid)
}

type reviewFunc func(ctx context.Context, adminID, requestID int64, note string) (*models.WithdrawalRequest, error)

func (h *Handler) reviewWithdrawal(w http.ResponseWriter, r *http.Request, review reviewFunc) {
	requestID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req reviewRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	request, err := review(r.Context(), identity(r).UserID, requestID, req.Note)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newWithdrawalView(request))
}
