package api

import (
	"time"

	"fantasygolf/models"
)

type transactionView struct {
	ID               int64     `json:"id"`
	Delta            int64     `json:"delta"`
	Reason           string    `json:"reason"`
	ResultingBalance int64     `json:"resultingBalance"`
	Reference        string    `json:"reference,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func newTransactionView(tx *models.LedgerTransaction) transactionView {
	view := transactionView{
		ID:               tx.ID,
		Delta:            tx.Delta,
		Reason:           string(tx.Reason),
		ResultingBalance: tx.ResultingBalance,
		CreatedAt:        tx.CreatedAt,
	}
	if tx.Reference != nil {
		view.Reference = *tx.Reference
	}
	return view
}

type walletView struct {
	WalletID       int64             `json:"walletId"`
	Balance        int64             `json:"balance"`
	BalanceDisplay string            `json:"balanceDisplay"`
	Transactions   []transactionView `json:"transactions"`
}

type entryView struct {
	ID           int64     `json:"id"`
	TargetKind   string    `json:"targetKind"`
	TargetID     int64     `json:"targetId"`
	EntryFeePaid int64     `json:"entryFeePaid"`
	Status       string    `json:"status"`
	Selections   []int64   `json:"golferSelections,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newEntryView(e *models.Entry) entryView {
	return entryView{
		ID:           e.ID,
		TargetKind:   string(e.Target.Kind()),
		TargetID:     e.Target.ID(),
		EntryFeePaid: e.EntryFeePaid,
		Status:       string(e.Status),
		Selections:   e.Selections,
		CreatedAt:    e.CreatedAt,
	}
}

type instanceView struct {
	InstanceID     int64     `json:"instanceId"`
	CompetitionID  int64     `json:"competitionId"`
	Status         string    `json:"status"`
	CurrentPlayers int       `json:"currentPlayers"`
	MaxPlayers     int       `json:"maxPlayers"`
	SpotsRemaining int       `json:"spotsRemaining"`
	CreatedAt      time.Time `json:"createdAt"`
}

func newInstanceView(i *models.HeadToHeadInstance) instanceView {
	return instanceView{
		InstanceID:     i.ID,
		CompetitionID:  i.CompetitionID,
		Status:         string(i.Status),
		CurrentPlayers: i.CurrentPlayers,
		MaxPlayers:     i.MaxPlayers,
		SpotsRemaining: i.SpotsRemaining(),
		CreatedAt:      i.CreatedAt,
	}
}

type withdrawalView struct {
	RequestID  int64     `json:"requestId"`
	UserID     int64     `json:"userId"`
	Amount     int64     `json:"amount"`
	Status     string    `json:"status"`
	ReviewedBy *int64    `json:"reviewedBy,omitempty"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func newWithdrawalView(w *models.WithdrawalRequest) withdrawalView {
	return withdrawalView{
		RequestID:  w.ID,
		UserID:     w.UserID,
		Amount:     w.Amount,
		Status:     string(w.Status),
		ReviewedBy: w.ReviewedBy,
		Note:       w.Note,
		CreatedAt:  w.CreatedAt,
		UpdatedAt:  w.UpdatedAt,
	}
}

type issueView struct {
	ID         int64          `json:"id"`
	Kind       string         `json:"kind"`
	Reference  string         `json:"reference"`
	UserID     *int64         `json:"userId,omitempty"`
	Amount     int64          `json:"amount"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	ResolvedAt *time.Time     `json:"resolvedAt,omitempty"`
	ResolvedBy *int64         `json:"resolvedBy,omitempty"`
}

func newIssueView(i *models.ReconciliationIssue) issueView {
	return issueView{
		ID:         i.ID,
		Kind:       string(i.Kind),
		Reference:  i.Reference,
		UserID:     i.UserID,
		Amount:     i.Amount,
		Detail:     i.Detail,
		CreatedAt:  i.CreatedAt,
		ResolvedAt: i.ResolvedAt,
		ResolvedBy: i.ResolvedBy,
	}
}

func mapViews[T any, V any](items []T, view func(T) V) []V {
	out := make([]V, 0, len(items))
	for _, item := range items {
		out = append(out, view(item))
	}
	return out
}
