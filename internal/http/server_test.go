package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/services"
	"ledger/internal/storage"
)

func newTestServer(t *testing.T, opts Options) (*Server, *services.LedgerService) {
	t.Helper()
	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), storage.DefaultOptions())
	require.NoError(t, err)

	svc := services.NewLedgerService(store, nil, nil)
	t.Cleanup(func() { _ = svc.Close() })

	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	}
	srv := NewServer(":0", svc, svc.Reports(), nil, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, svc
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req_abc")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, "req_abc", rr.Header().Get(RequestIDHeader))
}

func TestAccountAndTransactionFlow(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/accounts", `{"name":"Checking","type":"bank","initialBalance":1000}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	acct := decode[core.Account](t, rr)
	assert.Equal(t, int64(100000), acct.CurrentBalance.Cents)

	body := `{"accountId":` + itoa(acct.ID) + `,"type":"income","amount":"300","category":"salary","date":"2025-03-01"}`
	rr = do(t, srv, http.MethodPost, "/api/transactions", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	txn := decode[core.Transaction](t, rr)
	assert.Equal(t, "Checking", txn.AccountName)

	rr = do(t, srv, http.MethodGet, "/api/accounts/"+itoa(acct.ID), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(130000), decode[core.Account](t, rr).CurrentBalance.Cents)

	body = `{"accountId":` + itoa(acct.ID) + `,"type":"expense","amount":150.5,"category":"food","date":"2025-03-09"}`
	rr = do(t, srv, http.MethodPut, "/api/transactions/"+itoa(txn.ID), body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/api/transactions?accountId="+itoa(acct.ID)+"&month=3&year=2025", "")
	require.Equal(t, http.StatusOK, rr.Code)
	txns := decode[[]core.Transaction](t, rr)
	require.Len(t, txns, 1)
	assert.Equal(t, core.Expense, txns[0].Kind)

	rr = do(t, srv, http.MethodGet, "/api/reports/monthly", "")
	require.Equal(t, http.StatusOK, rr.Code)
	mb := decode[core.MonthlyBalance](t, rr)
	assert.Equal(t, core.Period{Year: 2025, Month: 3}, mb.Period, "defaults to the current month")
	assert.Equal(t, int64(15050), mb.Expenses.Cents)

	rr = do(t, srv, http.MethodDelete, "/api/transactions/"+itoa(txn.ID), "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = do(t, srv, http.MethodDelete, "/api/accounts/"+itoa(acct.ID), "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/accounts", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]core.Account](t, rr))
}

func TestErrorMapping(t *testing.T) {
	srv, svc := newTestServer(t, Options{})
	ctx := context.Background()

	acct, err := svc.CreateAccount(ctx, core.AccountInput{Name: "Busy"})
	require.NoError(t, err)
	_, err = svc.CreateTransaction(ctx, core.TransactionInput{AccountID: acct.ID, Kind: core.Expense, Amount: core.NewMoney(100), Category: "food", Date: core.NewDate(2025, 3, 1)})
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"blank name", http.MethodPost, "/api/accounts", `{"name":"  "}`, http.StatusUnprocessableEntity},
		{"bad amount", http.MethodPost, "/api/transactions", `{"accountId":1,"type":"expense","amount":"abc","category":"x","date":"2025-03-01"}`, http.StatusUnprocessableEntity},
		{"bad date", http.MethodPost, "/api/transactions", `{"accountId":1,"type":"expense","amount":1,"category":"x","date":"2025-02-30"}`, http.StatusUnprocessableEntity},
		{"wrong field type", http.MethodPost, "/api/accounts", `{"name":42}`, http.StatusUnprocessableEntity},
		{"unknown field", http.MethodPost, "/api/accounts", `{"nome":"x"}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/accounts", `{"name":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/accounts", ``, http.StatusBadRequest},
		{"missing account", http.MethodPost, "/api/transactions", `{"accountId":999,"type":"expense","amount":1,"category":"x","date":"2025-03-01"}`, http.StatusNotFound},
		{"missing transaction", http.MethodDelete, "/api/transactions/999", ``, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/accounts/abc", ``, http.StatusUnprocessableEntity},
		{"account in use", http.MethodDelete, "/api/accounts/" + itoa(acct.ID), ``, http.StatusConflict},
		{"bad month", http.MethodGet, "/api/reports/monthly?month=13", ``, http.StatusUnprocessableEntity},
		{"non-numeric year", http.MethodGet, "/api/reports/fixed-variable?year=twenty", ``, http.StatusUnprocessableEntity},
		{"bad filter", http.MethodGet, "/api/transactions?accountId=x", ``, http.StatusUnprocessableEntity},
		{"no salary", http.MethodGet, "/api/reports/salary", ``, http.StatusUnprocessableEntity},
		{"bad class", http.MethodPut, "/api/expense-categories/gym", `{"type":"sometimes"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode[errorBody](t, rr).Error)
		})
	}
}

func TestReportsAndCategories(t *testing.T) {
	srv, svc := newTestServer(t, Options{})
	ctx := context.Background()

	acct, err := svc.CreateAccount(ctx, core.AccountInput{Name: "Main"})
	require.NoError(t, err)
	for _, in := range []core.TransactionInput{
		{AccountID: acct.ID, Kind: core.Expense, Amount: core.NewMoney(150000), Category: "rent", Date: core.NewDate(2025, 3, 1)},
		{AccountID: acct.ID, Kind: core.Expense, Amount: core.NewMoney(5000), Category: "gym", Date: core.NewDate(2025, 3, 2)},
	} {
		_, err := svc.CreateTransaction(ctx, in)
		require.NoError(t, err)
	}

	rr := do(t, srv, http.MethodGet, "/api/reports/fixed-variable?year=2025&month=3", "")
	require.Equal(t, http.StatusOK, rr.Code)
	split := decode[core.FixedVariableSplit](t, rr)
	assert.Equal(t, int64(150000), split.Fixed.Total.Cents)
	assert.Equal(t, int64(5000), split.Variable.Total.Cents)

	rr = do(t, srv, http.MethodPut, "/api/expense-categories/gym", `{"type":"fixed"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/api/reports/fixed-variable?year=2025&month=3", "")
	require.Equal(t, http.StatusOK, rr.Code)
	split = decode[core.FixedVariableSplit](t, rr)
	assert.Equal(t, int64(155000), split.Fixed.Total.Cents)

	rr = do(t, srv, http.MethodGet, "/api/reports/salary?salary=2500&year=2025&month=3", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	analysis := decode[core.SalaryAnalysis](t, rr)
	assert.Equal(t, int64(250000), analysis.Salary.Cents)
	assert.Equal(t, "62", analysis.FixedPercentage.String())

	rr = do(t, srv, http.MethodGet, "/api/expense-categories", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.ExpenseCategory](t, rr), 17)

	rr = do(t, srv, http.MethodGet, "/api/reports/cache", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "fixed_variable")
}

func TestWriteRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, Options{WritesPerMinute: 2})

	for i := 0; i < 2; i++ {
		rr := do(t, srv, http.MethodPost, "/api/accounts", `{"name":"A`+itoa(int64(i))+`"}`)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/api/accounts", `{"name":"C"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded, try again later"}`, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/api/accounts", "")
	assert.Equal(t, http.StatusOK, rr.Code, "reads are not limited")
	assert.Equal(t, int64(1), srv.SecurityStats().RateLimitHits)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "203.0.113.7:1234", "", "203.0.113.7"},
		{"untrusted peer ignores header", "203.0.113.7:1234", "198.51.100.1", "203.0.113.7"},
		{"trusted proxy", "10.0.0.2:80", "198.51.100.1, 10.0.0.2", "198.51.100.1"},
		{"trusted proxy with junk header", "127.0.0.1:80", "not-an-ip", "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}

func TestSuspiciousRequestsAreCounted(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/.env", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, int64(1), srv.SecurityStats().SuspiciousRequests)
}

func TestParsePeriod(t *testing.T) {
	now := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)

	p, err := parsePeriod(map[string][]string{}, now)
	require.NoError(t, err)
	assert.Equal(t, core.Period{Year: 2024, Month: 11}, p)

	p, err = parsePeriod(map[string][]string{"month": {"2"}}, now)
	require.NoError(t, err)
	assert.Equal(t, core.Period{Year: 2024, Month: 2}, p)

	_, err = parsePeriod(map[string][]string{"month": {"0"}}, now)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "food", sanitizeInput("  fo\x00od\x07 "))
	assert.Equal(t, "a\tb", sanitizeInput("a\tb"))
}

func TestShutdownTwice(t *testing.T) {
	srv, _ := newTestServer(t, Options{WritesPerMinute: 5})
	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Header("X-Ledger", "yes").Write(rr)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "yes", rr.Header().Get("X-Ledger"))
	assert.Empty(t, rr.Header().Get("Content-Type"), "no body, no content type")
	assert.Zero(t, rr.Body.Len())

	rr = httptest.NewRecorder()
	ErrorResponse(http.StatusConflict, "in use").Header("Retry-After", "5").Write(rr)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "5", rr.Header().Get("Retry-After"))
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"in use"}`, rr.Body.String())
}
