package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithdrawalRequest_Transitions(t *testing.T) {
	tests := []struct {
		from    WithdrawalStatus
		to      WithdrawalStatus
		allowed bool
		debits  bool
	}{
		{WithdrawalStatusPending, WithdrawalStatusApproved, true, true},
		{WithdrawalStatusPending, WithdrawalStatusPaid, true, true},
		{WithdrawalStatusPending, WithdrawalStatusRejected, true, false},
		{WithdrawalStatusPending, WithdrawalStatusCancelled, true, false},
		{WithdrawalStatusApproved, WithdrawalStatusPaid, true, false},
		{WithdrawalStatusApproved, WithdrawalStatusRejected, false, false},
		{WithdrawalStatusApproved, WithdrawalStatusCancelled, false, false},
		{WithdrawalStatusPaid, WithdrawalStatusRejected, false, false},
		{WithdrawalStatusRejected, WithdrawalStatusApproved, false, false},
		{WithdrawalStatusCancelled, WithdrawalStatusPending, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			request := &WithdrawalRequest{Status: tt.from}
			assert.Equal(t, tt.allowed, request.CanTransitionTo(tt.to))
			assert.Equal(t, tt.debits, request.RequiresDebit(tt.to))
		})
	}
}

func TestWithdrawalRequest_AlreadyDebitedNeverDebitsAgain(t *testing.T) {
	txID := int64(12)
	request := &WithdrawalRequest{Status: WithdrawalStatusPending, DebitTransactionID: &txID}
	assert.False(t, request.RequiresDebit(WithdrawalStatusApproved))
}

func TestWithdrawalRequest_IsFinal(t *testing.T) {
	assert.False(t, (&WithdrawalRequest{Status: WithdrawalStatusPending}).IsFinal())
	assert.False(t, (&WithdrawalRequest{Status: WithdrawalStatusApproved}).IsFinal())
	assert.True(t, (&WithdrawalRequest{Status: WithdrawalStatusPaid}).IsFinal())
	assert.True(t, (&WithdrawalRequest{Status: WithdrawalStatusRejected}).IsFinal())
	assert.True(t, (&WithdrawalRequest{Status: WithdrawalStatusCancelled}).IsFinal())
}
