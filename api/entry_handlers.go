package api

import (
	"net/http"
)

type enterRequest struct {
	EntryFee         *int64  `json:"entryFee" validate:"required,gte=0"`
	GolferSelections []int64 `json:"golferSelections" validate:"omitempty,max=20,dive,gt=0"`
}

type lineupRequest struct {
	GolferSelections []int64 `json:"golferSelections" validate:"required,min=1,max=20,dive,gt=0"`
}

type entryResponse struct {
	EntryID    int64     `json:"entryId"`
	NewBalance int64     `json:"newBalance"`
	Entry      entryView `json:"entry"`
}

// EnterCompetition pays the entry fee and creates an entry in a pool competition
func (h *Handler) EnterCompetition(w http.ResponseWriter, r *http.Request) {
	competitionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req enterRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	result, err := h.services.Entries.Enter(r.Context(), identity(r).UserID, competitionID, *req.EntryFee, req.GolferSelections)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, entryResponse{
		EntryID:    result.Entry.ID,
		NewBalance: result.NewBalance,
		Entry:      newEntryView(result.Entry),
	})
}

// ListEntries returns the caller's entries
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.services.Entries.ListByUser(r.Context(), identity(r).UserID, listLimit(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapViews(entries, newEntryView))
}

// SubmitLineup stores golfer picks for one of the caller's entries
func (h *Handler) SubmitLineup(w http.ResponseWriter, r *http.Request) {
	entryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req lineupRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	entry, err := h.services.Entries.SubmitLineup(r.Context(), identity(r).UserID, entryID, req.GolferSelections)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEntryView(entry))
}

// CancelEntry cancels one of the caller's pool entries and refunds the fee
func (h *Handler) CancelEntry(w http.ResponseWriter, r *http.Request) {
	entryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.services.Entries.Cancel(r.Context(), identity(r).UserID, entryID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entryResponse{
		EntryID:    result.Entry.ID,
		NewBalance: result.NewBalance,
		Entry:      newEntryView(result.Entry),
	})
}
