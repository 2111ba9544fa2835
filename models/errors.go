package models

import (
	"errors"
	"fmt"
)

// Expected business outcomes. Callers match them with errors.Is.
var (
	ErrRegistrationClosed  = errors.New("registration is closed")
	ErrDuplicateEntry      = errors.New("user already has an entry")
	ErrCompetitionFull     = errors.New("competition is full")
	ErrInstanceFull        = errors.New("instance no longer available")
	ErrInstanceNotOpen     = errors.New("instance is not open for joining")
	ErrAlreadyInInstance   = errors.New("user is already in this instance")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrForbidden           = errors.New("not allowed")
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrInstanceNotFound    = errors.New("instance not found")
	ErrEntryNotFound       = errors.New("entry not found")
	ErrWithdrawalNotFound  = errors.New("withdrawal request not found")
	ErrIssueNotFound       = errors.New("reconciliation issue not found")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrNotHeadToHead       = errors.New("competition is not a head-to-head competition")
	ErrIsHeadToHead        = errors.New("head-to-head competitions are entered through matchmaking")
	ErrReferenceConflict   = errors.New("reference already used for a different transaction")
)

// InsufficientFundsError is returned when a debit exceeds the wallet balance.
// It leaves the wallet unchanged.
type InsufficientFundsError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: have %d available, need %d", e.Balance, e.Required)
}

// Shortfall is how much more the user needs
func (e *InsufficientFundsError) Shortfall() int64 {
	return e.Required - e.Balance
}

// IsInsufficientFunds reports whether err carries an InsufficientFundsError
func IsInsufficientFunds(err error) bool {
	var target *InsufficientFundsError
	return errors.As(err, &target)
}

// ValidationError rejects bad input before any mutation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ReconciliationRequiredError reports a money inconsistency that could not be
// repaired automatically and was escalated for an operator
type ReconciliationRequiredError struct {
	IssueID int64
	Kind    ReconciliationKind
	Cause   error
}

func (e *ReconciliationRequiredError) Error() string {
	return fmt.Sprintf("reconciliation required (%s, issue %d): %v", e.Kind, e.IssueID, e.Cause)
}

func (e *ReconciliationRequiredError) Unwrap() error {
	return e.Cause
}
