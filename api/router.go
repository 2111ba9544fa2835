package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"fantasygolf/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 50
	maxListLimit     = 200
)

// Services are the core operations the HTTP layer exposes
type Services struct {
	Ledger         service.LedgerService
	Payments       service.PaymentService
	Entries        service.EntryService
	HeadToHead     service.HeadToHeadService
	Withdrawals    service.WithdrawalService
	Status         service.StatusService
	Reconciliation service.ReconciliationService
}

// Options configures the router
type Options struct {
	JWTSecret           string
	AllowedOrigins      []string
	RequestTimeout      time.Duration
	DemoPaymentsEnabled bool
	WebhookSecret       string
}

// Handler serves the HTTP API
type Handler struct {
	services  Services
	options   Options
	validator *validator.Validate
}

func NewHandler(services Services, options Options) *Handler {
	return &Handler{
		services:  services,
		options:   options,
		validator: validator.New(),
	}
}

// NewRouter builds the chi router with every route mounted
func NewRouter(services Services, options Options) http.Handler {
	h := NewHandler(services, options)
	auth := NewAuthenticator(options.JWTSecret)

	timeout := options.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   options.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Post("/webhooks/payments/{provider}", h.PaymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/wallet", h.GetWallet)
		r.Post("/wallet/topup", h.Topup)

		r.Post("/competitions/{id}/enter", h.EnterCompetition)
		r.Get("/entries", h.ListEntries)
		r.Post("/entries/{id}/lineup", h.SubmitLineup)
		r.Delete("/entries/{id}", h.CancelEntry)

		r.Route("/headtohead", func(r chi.Router) {
			r.Get("/board", h.HeadToHeadBoard)
			r.Post("/create", h.CreateHeadToHead)
			r.Post("/{id}/join", h.JoinHeadToHead)
			r.With(RequireAdmin).Post("/{id}/activate", h.ActivateHeadToHead)
			r.Post("/{id}/cancel", h.CancelHeadToHead)
		})

		r.Route("/withdrawals", func(r chi.Router) {
			r.Get("/", h.ListWithdrawals)
			r.Post("/request", h.RequestWithdrawal)
			r.Post("/{id}/cancel", h.CancelWithdrawal)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)

			r.Post("/status/reconcile", h.ReconcileStatus)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/withdrawals", h.ListPendingWithdrawals)
				r.Post("/withdrawals/{id}/approve", h.ApproveWithdrawal)
				r.Post("/withdrawals/{id}/reject", h.RejectWithdrawal)
				r.Post("/withdrawals/{id}/pay", h.PayWithdrawal)

				r.Post("/wallets/{userId}/grant", h.GrantWallet)
				r.Get("/wallets/{userId}/reconcile", h.ReconcileWallet)

				r.Get("/reconciliation/issues", h.ListReconciliationIssues)
				r.Post("/reconciliation/issues/{id}/resolve", h.ResolveReconciliationIssue)
			})
		})
	})

	return r
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			sendError(w, http.StatusBadRequest, CodeValidation, "invalid request body", nil)
			return false
		}
	}

	if err := h.validator.Struct(dst); err != nil {
		sendValidationErrors(w, err)
		return false
	}
	return true
}

func identity(r *http.Request) Identity {
	id, _ := IdentityFromContext(r.Context())
	return id
}

// pathID parses a positive int64 path parameter
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		sendError(w, http.StatusBadRequest, CodeValidation, "invalid "+name, nil)
		return 0, false
	}
	return id, true
}

// listLimit reads the optional limit query parameter
func listLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
