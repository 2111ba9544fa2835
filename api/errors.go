package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"fantasygolf/models"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeValidation             = "validation_failed"
	CodeInsufficientFunds      = "insufficient_funds"
	CodeRegistrationClosed     = "registration_closed"
	CodeDuplicateEntry         = "duplicate_entry"
	CodeCompetitionFull        = "competition_full"
	CodeInstanceFull           = "instance_full"
	CodeInstanceNotOpen        = "instance_not_open"
	CodeAlreadyInInstance      = "already_in_instance"
	CodeInvalidTransition      = "invalid_transition"
	CodeReferenceConflict      = "reference_conflict"
	CodeNotFound               = "not_found"
	CodeForbidden              = "forbidden"
	CodeUnauthorized           = "unauthorized"
	CodeReconciliationRequired = "reconciliation_required"
	CodeInternal               = "internal_error"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("Failed to encode response body")
	}
}

func sendError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

// sendValidationErrors reports struct tag failures field by field
func sendValidationErrors(w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		sendError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
	sendError(w, http.StatusBadRequest, CodeValidation, "invalid request", details)
}

// statusFor maps a domain error to its HTTP status and error code
func statusFor(err error) (int, string) {
	var insufficient *models.InsufficientFundsError
	var validation *models.ValidationError
	var reconciliation *models.ReconciliationRequiredError

	switch {
	case errors.As(err, &reconciliation):
		return http.StatusInternalServerError, CodeReconciliationRequired
	case errors.As(err, &insufficient):
		return http.StatusPaymentRequired, CodeInsufficientFunds
	case errors.As(err, &validation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, models.ErrRegistrationClosed):
		return http.StatusBadRequest, CodeRegistrationClosed
	case errors.Is(err, models.ErrDuplicateEntry):
		return http.StatusBadRequest, CodeDuplicateEntry
	case errors.Is(err, models.ErrAlreadyInInstance):
		return http.StatusBadRequest, CodeAlreadyInInstance
	case errors.Is(err, models.ErrNotHeadToHead), errors.Is(err, models.ErrIsHeadToHead):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, models.ErrCompetitionFull):
		return http.StatusConflict, CodeCompetitionFull
	case errors.Is(err, models.ErrInstanceFull):
		return http.StatusConflict, CodeInstanceFull
	case errors.Is(err, models.ErrInstanceNotOpen):
		return http.StatusConflict, CodeInstanceNotOpen
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict, CodeInvalidTransition
	case errors.Is(err, models.ErrReferenceConflict):
		return http.StatusConflict, CodeReferenceConflict
	case errors.Is(err, models.ErrCompetitionNotFound),
		errors.Is(err, models.ErrInstanceNotFound),
		errors.Is(err, models.ErrEntryNotFound),
		errors.Is(err, models.ErrWithdrawalNotFound),
		errors.Is(err, models.ErrIssueNotFound),
		errors.Is(err, models.ErrWalletNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	}
	return http.StatusInternalServerError, CodeInternal
}

// sendServiceError writes the response for an error returned by a service
func sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	var details map[string]any
	message := err.Error()

	var insufficient *models.InsufficientFundsError
	var validation *models.ValidationError
	var reconciliation *models.ReconciliationRequiredError
	switch {
	case errors.As(err, &reconciliation):
		message = "the operation could not be completed and has been referred to support"
		details = map[string]any{"issueId": reconciliation.IssueID}
	case errors.As(err, &insufficient):
		message = "insufficient balance"
		details = map[string]any{
			"balance":  insufficient.Balance,
			"required": insufficient.Required,
		}
	case errors.As(err, &validation):
		message = validation.Message
		if validation.Field != "" {
			details = map[string]any{validation.Field: validation.Message}
		}
	case code == CodeInternal:
		message = "internal server error"
	}

	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"code":   code,
		}).WithError(err).Error("Request failed")
	}

	sendError(w, status, code, message, details)
}
