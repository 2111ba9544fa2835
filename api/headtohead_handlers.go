package api

import (
	"net/http"
	"strconv"

	"fantasygolf/service"
)

type createInstanceRequest struct {
	CompetitionID int64 `json:"competitionId" validate:"required,gt=0"`
	// NewInstance skips matchmaking and always opens a fresh instance
	NewInstance bool `json:"newInstance"`
}

type instanceResponse struct {
	InstanceID     int64  `json:"instanceId"`
	Status         string `json:"status"`
	SpotsRemaining int    `json:"spotsRemaining"`
	EntryID        int64  `json:"entryId,omitempty"`
	NewBalance     int64  `json:"newBalance"`
	Created        bool   `json:"created"`
}

func newInstanceResponse(result *service.InstanceResult) instanceResponse {
	resp := instanceResponse{
		InstanceID:     result.Instance.ID,
		Status:         string(result.Instance.Status),
		SpotsRemaining: result.Instance.SpotsRemaining(),
		NewBalance:     result.NewBalance,
		Created:        result.Created,
	}
	if result.Entry != nil {
		resp.EntryID = result.Entry.ID
	}
	return resp
}

// CreateHeadToHead matches the caller into an open instance or creates a pending one
func (h *Handler) CreateHeadToHead(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	var (
		result *service.InstanceResult
		err    error
	)
	if req.NewInstance {
		result, err = h.services.HeadToHead.Create(r.Context(), identity(r).UserID, req.CompetitionID)
	} else {
		result, err = h.services.HeadToHead.QuickMatch(r.Context(), identity(r).UserID, req.CompetitionID)
	}
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, newInstanceResponse(result))
}

// JoinHeadToHead takes the remaining slot of an open instance
func (h *Handler) JoinHeadToHead(w http.ResponseWriter, r *http.Request) {
	instanceID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.services.HeadToHead.Join(r.Context(), identity(r).UserID, instanceID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInstanceResponse(result))
}

// ActivateHeadToHead advertises a pending instance on the board
func (h *Handler) ActivateHeadToHead(w http.ResponseWriter, r *http.Request) {
	instanceID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	instance, err := h.services.HeadToHead.Activate(r.Context(), instanceID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInstanceView(instance))
}

// CancelHeadToHead cancels an unfilled instance and refunds its entrant
func (h *Handler) CancelHeadToHead(w http.ResponseWriter, r *http.Request) {
	instanceID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	caller := identity(r)
	instance, err := h.services.HeadToHead.Cancel(r.Context(), caller.UserID, caller.IsAdmin, instanceID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInstanceView(instance))
}

// HeadToHeadBoard lists the open instances of a competition
func (h *Handler) HeadToHeadBoard(w http.ResponseWriter, r *http.Request) {
	competitionID, err := strconv.ParseInt(r.URL.Query().Get("competitionId"), 10, 64)
	if err != nil || competitionID <= 0 {
		sendError(w, http.StatusBadRequest, CodeValidation, "competitionId query parameter is required", nil)
		return
	}

	instances, err := h.services.HeadToHead.ListOpen(r.Context(), competitionID, listLimit(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapViews(instances, newInstanceView))
}
