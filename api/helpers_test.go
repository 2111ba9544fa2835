package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fantasygolf/service"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testServer struct {
	router         http.Handler
	auth           *Authenticator
	ledger         *service.MockLedgerService
	payments       *service.MockPaymentService
	entries        *service.MockEntryService
	headToHead     *service.MockHeadToHeadService
	withdrawals    *service.MockWithdrawalService
	status         *service.MockStatusService
	reconciliation *service.MockReconciliationService
}

func newTestServer(t *testing.T, configure ...func(*Options)) *testServer {
	t.Helper()

	ts := &testServer{
		auth:           NewAuthenticator(testSecret),
		ledger:         new(service.MockLedgerService),
		payments:       new(service.MockPaymentService),
		entries:        new(service.MockEntryService),
		headToHead:     new(service.MockHeadToHeadService),
		withdrawals:    new(service.MockWithdrawalService),
		status:         new(service.MockStatusService),
		reconciliation: new(service.MockReconciliationService),
	}

	options := Options{
		JWTSecret:           testSecret,
		AllowedOrigins:      []string{"*"},
		RequestTimeout:      5 * time.Second,
		DemoPaymentsEnabled: true,
		WebhookSecret:       "hook-secret",
	}
	for _, fn := range configure {
		fn(&options)
	}

	ts.router = NewRouter(Services{
		Ledger:         ts.ledger,
		Payments:       ts.payments,
		Entries:        ts.entries,
		HeadToHead:     ts.headToHead,
		Withdrawals:    ts.withdrawals,
		Status:         ts.status,
		Reconciliation: ts.reconciliation,
	}, options)

	t.Cleanup(func() {
		ts.ledger.AssertExpectations(t)
		ts.payments.AssertExpectations(t)
		ts.entries.AssertExpectations(t)
		ts.headToHead.AssertExpectations(t)
		ts.withdrawals.AssertExpectations(t)
		ts.status.AssertExpectations(t)
		ts.reconciliation.AssertExpectations(t)
	})
	return ts
}

func (ts *testServer) token(t *testing.T, userID int64, admin bool) string {
	t.Helper()
	token, err := ts.auth.IssueToken(userID, admin)
	require.NoError(t, err)
	return token
}

// do sends a request as userID; userID 0 sends no Authorization header
func (ts *testServer) do(t *testing.T, method, path string, body any, userID int64, admin bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+ts.token(t, userID, admin))
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func ptr[T any](v T) *T {
	return &v
}
