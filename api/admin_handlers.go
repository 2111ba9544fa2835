package api

import (
	"net/http"
)

// ReconcileStatus runs the lifecycle reconciliation sweep on demand
func (h *Handler) ReconcileStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.services.Status.Reconcile(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	changes := make([]map[string]any, 0, len(report.StatusChanges))
	for _, change := range report.StatusChanges {
		changes = append(changes, map[string]any{
			"subject":   change.Subject,
			"id":        change.ID,
			"oldStatus": change.From,
			"newStatus": change.To,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"skipped":             report.Skipped,
		"tournamentsChecked":  report.TournamentsChecked,
		"competitionsChecked": report.CompetitionsChecked,
		"statusChanges":       changes,
		"instancesExpired":    report.InstancesExpired,
		"stuckPayments":       report.StuckPayments,
		"durationMs":          report.Duration.Milliseconds(),
	})
}

// ListReconciliationIssues returns open escalations
func (h *Handler) ListReconciliationIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := h.services.Reconciliation.ListOpen(r.Context(), listLimit(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapViews(issues, newIssueView))
}

// ResolveReconciliationIssue closes an escalation after an operator fixed it
func (h *Handler) ResolveReconciliationIssue(w http.ResponseWriter, r *http.Request) {
	issueID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	issue, err := h.services.Reconciliation.Resolve(r.Context(), identity(r).UserID, issueID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newIssueView(issue))
}
