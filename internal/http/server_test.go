package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rewards/internal/cache"
	"rewards/internal/core"
	"rewards/internal/ledger"
	"rewards/internal/ledger/memory"
	"rewards/internal/log"
	"rewards/internal/services"
)

var testClock = core.FixedClock{T: time.Date(2023, 6, 15, 9, 0, 0, 0, time.UTC)}

type failingLedger struct{ err error }

func (f failingLedger) ListCustomerTransactions(context.Context, int64, core.DateRange) ([]core.Transaction, error) {
	return nil, f.err
}

func (f failingLedger) ListTransactions(context.Context, core.DateRange) ([]core.Transaction, error) {
	return nil, f.err
}

func (f failingLedger) Ping(context.Context) error { return f.err }

type stubPublisher struct{ published []core.Transaction }

func (p *stubPublisher) PublishTransactionRecorded(_ context.Context, tx core.Transaction) (string, error) {
	p.published = append(p.published, tx)
	return "msg-1", nil
}

func newTestServer(t *testing.T, deps Deps, opts Options) *Server {
	t.Helper()
	srv := NewServer(":0", deps, opts, log.Discard())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func memoryDeps(store *memory.Store, publisher services.TransactionPublisher) Deps {
	rewards := services.NewRewardService(store, testClock, services.DefaultRewardConfig(), log.Discard())
	return Deps{
		Rewards:      rewards,
		Transactions: services.NewTransactionService(store, publisher, log.Discard()),
		Pinger:       store,
		Backend:      "memory",
	}
}

func decimalOf(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func customerOneStore() *memory.Store {
	return memory.New([]core.Transaction{
		{ID: 1, CustomerID: 1, Amount: decimalOf("120"), Date: core.NewDate(2023, 1, 15)},
		{ID: 2, CustomerID: 1, Amount: decimalOf("80"), Date: core.NewDate(2023, 2, 20)},
		{ID: 3, CustomerID: 1, Amount: decimalOf("200"), Date: core.NewDate(2023, 3, 10)},
	})
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestCustomerPoints(t *testing.T) {
	srv := newTestServer(t, memoryDeps(customerOneStore(), nil), Options{})

	rec := do(t, srv, http.MethodGet, "/rewards/points/1?startDate=2023-01-01&endDate=2023-03-31", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"monthlyPoints":{"JANUARY":90,"FEBRUARY":30,"MARCH":250},"totalPoints":370}`, rec.Body.String())
}

func TestCustomerPoints_DefaultWindow(t *testing.T) {
	srv := newTestServer(t, memoryDeps(customerOneStore(), nil), Options{})

	// Today is 2023-06-15, so the default window starts on 2023-03-15.
	rec := do(t, srv, http.MethodGet, "/rewards/points/1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"monthlyPoints":{},"totalPoints":0}`, rec.Body.String())
}

func TestCustomerPoints_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantBody   string
	}{
		{"non numeric id", "/rewards/points/abc", http.StatusBadRequest, `{"error":"invalid customer id"}`},
		{"zero id", "/rewards/points/0", http.StatusBadRequest, `{"error":"invalid customer id"}`},
		{"bad start date", "/rewards/points/1?startDate=2023-13-01", http.StatusBadRequest, `{"error":"invalid startDate: expected YYYY-MM-DD"}`},
		{"start after end", "/rewards/points/1?startDate=2023-03-31&endDate=2023-01-01", http.StatusBadRequest, `{"error":"start date must be earlier than the end date."}`},
		{"range too long", "/rewards/points/1?startDate=2023-01-01&endDate=2023-05-01", http.StatusBadRequest, `{"error":"Date range should not exceed three months."}`},
	}

	srv := newTestServer(t, memoryDeps(customerOneStore(), nil), Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestAllCustomersPoints(t *testing.T) {
	srv := newTestServer(t, memoryDeps(memory.New(ledger.DefaultSeed()), nil), Options{})

	rec := do(t, srv, http.MethodGet, "/rewards/allcustomers?startDate=2023-01-01&endDate=2023-03-31", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"1":{"monthlyPoints":{"JANUARY":90,"FEBRUARY":30},"totalPoints":120},"2":{"monthlyPoints":{"MARCH":250},"totalPoints":250}}`,
		rec.Body.String())
}

func TestAllCustomersPoints_Validation(t *testing.T) {
	srv := newTestServer(t, memoryDeps(memory.New(ledger.DefaultSeed()), nil), Options{})

	rec := do(t, srv, http.MethodGet, "/rewards/allcustomers?startDate=2023-01-01&endDate=2023-04-02", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Date range should not exceed three months."}`, rec.Body.String())
}

func TestRewards_LedgerFailure(t *testing.T) {
	source := failingLedger{err: errors.New("connection refused")}
	deps := Deps{
		Rewards: services.NewRewardService(source, testClock, services.DefaultRewardConfig(), log.Discard()),
		Pinger:  source,
	}
	srv := newTestServer(t, deps, Options{})

	for _, target := range []string{"/rewards/points/1", "/rewards/allcustomers"} {
		rec := do(t, srv, http.MethodGet, target, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code, target)
		assert.JSONEq(t, `{"status":"failed","error":"internal server error"}`, rec.Body.String(), target)
		assert.NotContains(t, rec.Body.String(), "connection refused", target)
	}
}

func TestRecordTransaction_Direct(t *testing.T) {
	store := memory.New(ledger.DefaultSeed())
	srv := newTestServer(t, memoryDeps(store, nil), Options{})

	rec := do(t, srv, http.MethodPost, "/rewards/transactions", `{"customerId": 2, "amount": 120.5, "date": "2023-03-20"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":4,"customerId":2,"amount":"120.50","date":"2023-03-20"}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/rewards/points/2?startDate=2023-03-01&endDate=2023-03-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"monthlyPoints":{"MARCH":341},"totalPoints":341}`, rec.Body.String())
}

func TestRecordTransaction_Queued(t *testing.T) {
	store := memory.New(nil)
	publisher := &stubPublisher{}
	srv := newTestServer(t, memoryDeps(store, publisher), Options{})

	rec := do(t, srv, http.MethodPost, "/rewards/transactions", `{"customerId": 1, "amount": "80", "date": "2023-02-20"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"queued","messageId":"msg-1"}`, rec.Body.String())
	assert.Len(t, publisher.published, 1)
	assert.Equal(t, 0, store.Len(), "queued purchases are stored by the worker")
}

func TestRecordTransaction_FormBody(t *testing.T) {
	srv := newTestServer(t, memoryDeps(memory.New(nil), nil), Options{})

	req := httptest.NewRequest(http.MethodPost, "/rewards/transactions", strings.NewReader("customerId=3&amount=51&date=2023-01-01"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRecordTransaction_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"malformed json", `{"customerId":`, http.StatusBadRequest, `{"error":"invalid request body"}`},
		{"missing customer", `{"amount":"10","date":"2023-01-01"}`, http.StatusBadRequest, `{"error":"customerId must be a positive integer"}`},
		{"negative customer", `{"customerId":-1,"amount":"10","date":"2023-01-01"}`, http.StatusBadRequest, `{"error":"customerId must be a positive integer"}`},
		{"bad amount", `{"customerId":1,"amount":"ten","date":"2023-01-01"}`, http.StatusBadRequest, `{"error":"amount must be a decimal number"}`},
		{"amount below cent", `{"customerId":1,"amount":"99.995","date":"2023-01-01"}`, http.StatusBadRequest, `{"error":"amount must have at most two decimal places"}`},
		{"bad date", `{"customerId":1,"amount":"10","date":"01-01-2023"}`, http.StatusBadRequest, `{"error":"date must use the YYYY-MM-DD format"}`},
	}

	srv := newTestServer(t, memoryDeps(memory.New(nil), nil), Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/rewards/transactions", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestRecordTransaction_ReadOnlyBackend(t *testing.T) {
	source := memory.New(nil)
	deps := Deps{
		Rewards: services.NewRewardService(source, testClock, services.DefaultRewardConfig(), log.Discard()),
		Pinger:  source,
	}

	srv := newTestServer(t, deps, Options{})
	rec := do(t, srv, http.MethodPost, "/rewards/transactions", `{"customerId":1,"amount":"10","date":"2023-01-01"}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	deps.Transactions = services.NewTransactionService(nil, nil, log.Discard())
	srv = newTestServer(t, deps, Options{})
	rec = do(t, srv, http.MethodPost, "/rewards/transactions", `{"customerId":1,"amount":"10","date":"2023-01-01"}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	// A read-only recorder is turned away before the body is parsed.
	recorder := &readOnlyRecorder{}
	deps.Transactions = recorder
	srv = newTestServer(t, deps, Options{})
	rec = do(t, srv, http.MethodPost, "/rewards/transactions", `{"customerId":`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.JSONEq(t, `{"error":"recording transactions is not supported by this backend"}`, rec.Body.String())
	assert.Zero(t, recorder.calls)
}

type readOnlyRecorder struct {
	calls int
}

func (r *readOnlyRecorder) Record(context.Context, services.RecordInput) (services.RecordOutcome, error) {
	r.calls++
	return services.RecordOutcome{}, ledger.ErrUnsupported
}

func (r *readOnlyRecorder) Writable() bool { return false }

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, memoryDeps(memory.New(nil), nil), Options{})

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = do(t, srv, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)
	assert.Contains(t, rec.Body.String(), `"backend":"memory"`)
}

func TestReady_LedgerDown(t *testing.T) {
	source := failingLedger{err: errors.New("dial tcp: refused")}
	deps := Deps{
		Rewards: services.NewRewardService(source, testClock, services.DefaultRewardConfig(), log.Discard()),
		Pinger:  source,
	}
	srv := newTestServer(t, deps, Options{ReadyTimeout: time.Second})

	rec := do(t, srv, http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"not_ready"`)
	assert.Contains(t, rec.Body.String(), "dial tcp: refused")
}

func TestMetrics(t *testing.T) {
	deps := memoryDeps(memory.New(ledger.DefaultSeed()), nil)
	deps.CacheStats = func() cache.Stats { return cache.Stats{Hits: 5, Misses: 2} }
	srv := newTestServer(t, deps, Options{})

	do(t, srv, http.MethodGet, "/rewards/points/1?startDate=2023-01-01", "")
	do(t, srv, http.MethodGet, "/rewards/points/x", "")

	rec := do(t, srv, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	for _, want := range []string{
		"reward_lookups_total 1\n",
		"reward_validation_errors_total 1\n",
		"http_requests_total 2\n",
		"http_client_errors_total 1\n",
		"ledger_cache_hits_total 5\n",
		"ledger_cache_misses_total 2\n",
	} {
		assert.Contains(t, body, want)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, memoryDeps(memory.New(nil), nil), Options{RateLimitPerMinute: 1})

	rec := do(t, srv, http.MethodGet, "/rewards/allcustomers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/rewards/allcustomers", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Probes are not rate limited.
	rec = do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouting(t *testing.T) {
	srv := newTestServer(t, memoryDeps(memory.New(nil), nil), Options{})

	rec := do(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())

	rec = do(t, srv, http.MethodDelete, "/rewards/allcustomers", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, srv, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
