// Package http exposes the ledger commands as a small JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
)

// Ledger is the command surface the server dispatches to.
// *services.LedgerService implements it.
type Ledger interface {
	ListAccounts(ctx context.Context) ([]core.Account, error)
	GetAccount(ctx context.Context, id int64) (core.Account, error)
	CreateAccount(ctx context.Context, in core.AccountInput) (core.Account, error)
	UpdateAccount(ctx context.Context, id int64, in core.AccountInput) (core.Account, error)
	DeleteAccount(ctx context.Context, id int64) error

	ListTransactions(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error

	ListExpenseCategories(ctx context.Context) ([]core.ExpenseCategory, error)
	ClassifyCategory(ctx context.Context, category string, class core.Classification) error

	MonthlyBalance(ctx context.Context, p core.Period) (core.MonthlyBalance, error)
	FixedVsVariable(ctx context.Context, p core.Period) (core.FixedVariableSplit, error)
	SalaryAnalysis(ctx context.Context, p core.Period, salary core.Money) (core.SalaryAnalysis, error)

	Ping(ctx context.Context) error
}

// CacheStatter is implemented by services that expose cache usage.
type CacheStatter interface {
	CacheStats() map[string]cache.Stats
}

// Options tunes the server.
type Options struct {
	// WritesPerMinute limits mutating requests per client; zero disables it.
	WritesPerMinute int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	// Now is the clock used for default report months.
	Now func() time.Time
}

// DefaultOptions returns the server defaults.
func DefaultOptions() Options {
	return Options{
		WritesPerMinute: 120,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    15 * time.Second,
		Now:             time.Now,
	}
}

// Server is the ledger's HTTP server.
type Server struct {
	http.Server

	ledger   Ledger
	stats    CacheStatter
	logger   *log.Logger
	limiter  *writeLimiter
	security securityMetrics
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// stats may be nil.
func NewServer(addr string, ledger Ledger, stats CacheStatter, logger *log.Logger, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		ledger: ledger,
		stats:  stats,
		logger: logger.WithComponent(log.ComponentHTTP),
		now:    opts.Now,
	}
	if opts.WritesPerMinute > 0 {
		s.limiter = newWriteLimiter(opts.WritesPerMinute, time.Minute)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("PUT /api/accounts/{id}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/expense-categories", s.handleListCategories)
	mux.HandleFunc("PUT /api/expense-categories/{category}", s.handleClassifyCategory)

	mux.HandleFunc("GET /api/reports/monthly", s.handleMonthlyBalance)
	mux.HandleFunc("GET /api/reports/fixed-variable", s.handleFixedVsVariable)
	mux.HandleFunc("GET /api/reports/salary", s.handleSalaryAnalysis)
	mux.HandleFunc("GET /api/reports/cache", s.handleCacheStats)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// middleware wraps h in the request chain, outermost first.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.withRateLimit(h)
	h = s.withSecurityHeaders(h)
	h = s.withRequestLogging(h)
	h = withRecover(h)
	h = log.RequestIDMiddleware(requestIDFromContext)(h)
	h = withRequestID(h)
	return log.Middleware(s.logger)(h)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.ledger.Ping(ctx); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
