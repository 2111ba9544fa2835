package observability

// Metric name prefixes
const (
	MetricPrefix = "fantasygolf"
)

// Metric names
const (
	// Ledger metrics
	LedgerTransactionsTotal = MetricPrefix + ".ledger.transactions_total"
	LedgerVolumeTotal       = MetricPrefix + ".ledger.volume_total"

	// Payment metrics
	PaymentsIngestedTotal = MetricPrefix + ".payments.ingested_total"

	// Entry metrics
	EntriesCreatedTotal   = MetricPrefix + ".entries.created_total"
	EntriesCancelledTotal = MetricPrefix + ".entries.cancelled_total"

	// Head-to-head metrics
	InstanceTransitionsTotal = MetricPrefix + ".headtohead.transitions_total"

	// Withdrawal metrics
	WithdrawalTransitionsTotal = MetricPrefix + ".withdrawals.transitions_total"

	// Reconciliation metrics
	StatusChangesTotal          = MetricPrefix + ".status.changes_total"
	ReconciliationRequiredTotal = MetricPrefix + ".reconciliation.required_total"
	SweepRunsTotal              = MetricPrefix + ".sweep.runs_total"
	SweepDuration               = MetricPrefix + ".sweep.duration"
)

// Label keys
const (
	LabelReason     = "reason"
	LabelProvider   = "provider"
	LabelReplay     = "replay"
	LabelTargetKind = "target_kind"
	LabelStatus     = "status"
	LabelSubject    = "subject"
	LabelKind       = "kind"
	LabelOutcome    = "outcome"
)

// Sweep outcomes
const (
	SweepOutcomeCompleted = "completed"
	SweepOutcomeSkipped   = "skipped"
	SweepOutcomeFailed    = "failed"
)
