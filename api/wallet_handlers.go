package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"fantasygolf/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	walletHistoryLimit = 20
	signatureHeader    = "X-Signature"
)

type topupRequest struct {
	Amount            int64  `json:"amount" validate:"required,gt=0"`
	ProviderPaymentID string `json:"providerPaymentId" validate:"required,max=128"`
	Provider          string `json:"provider" validate:"required,max=64"`
}

type topupResponse struct {
	NewBalance       int64 `json:"newBalance"`
	AlreadyProcessed bool  `json:"alreadyProcessed,omitempty"`
}

type webhookPaymentRequest struct {
	ProviderPaymentID string `json:"providerPaymentId" validate:"required,max=128"`
	Amount            int64  `json:"amount" validate:"required,gt=0"`
	UserID            int64  `json:"userId" validate:"required,gt=0"`
}

type grantRequest struct {
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Reference string `json:"reference" validate:"omitempty,max=128"`
	Note      string `json:"note" validate:"omitempty,max=500"`
}

// GetWallet returns the caller's balance and recent transactions
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := identity(r).UserID

	wallet, err := h.services.Ledger.GetWallet(r.Context(), userID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	history, err := h.services.Ledger.History(r.Context(), userID, walletHistoryLimit)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, walletView{
		WalletID:       wallet.ID,
		Balance:        wallet.Balance,
		BalanceDisplay: models.FormatAmount(wallet.Balance),
		Transactions:   mapViews(history, newTransactionView),
	})
}

// Topup ingests a demo payment for the caller. Real providers report
// payments through the signed webhook.
func (h *Handler) Topup(w http.ResponseWriter, r *http.Request) {
	var req topupRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	if req.Provider != models.PaymentProviderDemo || !h.options.DemoPaymentsEnabled {
		sendError(w, http.StatusForbidden, CodeForbidden, "top-ups from this provider must arrive through the payment webhook", nil)
		return
	}

	result, err := h.services.Payments.Ingest(r.Context(), models.PaymentEvent{
		Provider:          req.Provider,
		ProviderPaymentID: req.ProviderPaymentID,
		Amount:            req.Amount,
		UserID:            identity(r).UserID,
	})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, topupResponse{
		NewBalance:       result.NewBalance,
		AlreadyProcessed: result.AlreadyProcessed,
	})
}

// PaymentWebhook ingests a provider payment notification signed with the shared secret
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if provider == "" || provider == models.PaymentProviderDemo {
		sendError(w, http.StatusBadRequest, CodeValidation, "unknown payment provider", nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		sendError(w, http.StatusBadRequest, CodeValidation, "invalid request body", nil)
		return
	}

	if !h.validSignature(body, r.Header.Get(signatureHeader)) {
		log.WithField("provider", provider).Warn("Rejected payment webhook with bad signature")
		sendError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid signature", nil)
		return
	}

	var req webhookPaymentRequest
	r.Body = io.NopCloser(bytes.NewReader(body))
	if !h.decode(w, r, &req, false) {
		return
	}

	result, err := h.services.Payments.Ingest(r.Context(), models.PaymentEvent{
		Provider:          provider,
		ProviderPaymentID: req.ProviderPaymentID,
		Amount:            req.Amount,
		UserID:            req.UserID,
	})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, topupResponse{
		NewBalance:       result.NewBalance,
		AlreadyProcessed: result.AlreadyProcessed,
	})
}

// validSignature checks a hex HMAC-SHA256 of body under the webhook secret
func (h *Handler) validSignature(body []byte, signature string) bool {
	if h.options.WebhookSecret == "" || signature == "" {
		return false
	}
	given, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}
	return hmac.Equal(given, SignPayload(h.options.WebhookSecret, body))
}

// SignPayload computes the webhook signature for body
func SignPayload(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// GrantWallet credits a user's wallet with an administrative grant
func (h *Handler) GrantWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	var req grantRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	reference := req.Reference
	if reference == "" {
		reference = uuid.NewString()
	}

	adminID := identity(r).UserID
	log.WithFields(log.Fields{
		"adminId": adminID,
		"userId":  userID,
		"amount":  req.Amount,
		"note":    req.Note,
	}).Info("Admin wallet grant")

	metadata := map[string]any{"granted_by": adminID}
	if req.Note != "" {
		metadata["note"] = req.Note
	}

	tx, err := h.services.Ledger.Credit(r.Context(), userID, req.Amount, models.LedgerReasonAdminGrant, "grant:"+reference, metadata)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newTransactionView(tx))
}

// ReconcileWallet compares a wallet's balance with the sum of its ledger
func (h *Handler) ReconcileWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	result, err := h.services.Ledger.Reconcile(r.Context(), userID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"walletId":         result.WalletID,
		"userId":           result.UserID,
		"balance":          result.Balance,
		"ledgerSum":        result.LedgerSum,
		"transactionCount": result.TransactionCount,
		"consistent":       result.Consistent(),
		"difference":       result.Difference(),
	})
}
