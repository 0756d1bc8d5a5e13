package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
)

// LedgerService is the command surface used by the HTTP bridge and the CLI.
// Every committed mutation invalidates the affected cached reports and
// publishes a change event; publishing is best effort.
type LedgerService struct {
	store     LedgerStore
	reports   *ReportService
	publisher Publisher
}

// NewLedgerService wires the store, report cache and optional publisher.
// publisher may be nil.
func NewLedgerService(store LedgerStore, reports *ReportService, publisher Publisher) *LedgerService {
	if reports == nil {
		reports = NewReportService(store, ReportOptions{})
	}
	return &LedgerService{
		store:     store,
		reports:   reports,
		publisher: publisher,
	}
}

// Reports returns the cached report service.
func (s *LedgerService) Reports() *ReportService {
	return s.reports
}

func (s *LedgerService) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return s.store.ListAccounts(ctx)
}

func (s *LedgerService) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	return s.store.GetAccount(ctx, id)
}

// CreateAccount opens an account and returns it as stored.
func (s *LedgerService) CreateAccount(ctx context.Context, in core.AccountInput) (core.Account, error) {
	id, err := s.store.CreateAccount(ctx, in)
	if err != nil {
		return core.Account{}, err
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EntityAccount, amqp.ActionCreated, id, id))
	return s.store.GetAccount(ctx, id)
}

// UpdateAccount renames or retypes an account and returns it as stored.
func (s *LedgerService) UpdateAccount(ctx context.Context, id int64, in core.AccountInput) (core.Account, error) {
	if err := s.store.UpdateAccount(ctx, id, in); err != nil {
		return core.Account{}, err
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EntityAccount, amqp.ActionUpdated, id, id))
	return s.store.GetAccount(ctx, id)
}

// DeleteAccount removes an account according to the store's delete policy.
func (s *LedgerService) DeleteAccount(ctx context.Context, id int64) error {
	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return err
	}
	// A cascade may have removed transactions from any month.
	s.reports.InvalidateAll()
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EntityAccount, amqp.ActionDeleted, id, id))
	return nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, filter)
}

func (s *LedgerService) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// CreateTransaction records a transaction and returns it as stored.
func (s *LedgerService) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	id, err := s.store.CreateTransaction(ctx, in)
	if err != nil {
		return core.Transaction{}, err
	}
	s.reports.InvalidatePeriods(core.PeriodOf(in.Date))
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EntityTransaction, amqp.ActionCreated, id, in.AccountID))
	return s.store.GetTransaction(ctx, id)
}

// UpdateTransaction edits a transaction and returns it as stored. Reports
// for both the old and the new month are invalidated.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error) {
	old, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.UpdateTransaction(ctx, id, in); err != nil {
		return core.Transaction{}, err
	}
	s.reports.InvalidatePeriods(core.PeriodOf(old.Date), core.PeriodOf(in.Date))
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EntityTransaction, amqp.ActionUpdated, id, old.AccountID, in.AccountID))
	return s.store.GetTransaction(ctx, id)
}

// DeleteTransaction removes a transaction.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	old, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.reports.InvalidatePeriods(core.PeriodOf(old.Date))
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EntityTransaction, amqp.ActionDeleted, id, old.AccountID))
	return nil
}

func (s *LedgerService) ListExpenseCategories(ctx context.Context) ([]core.ExpenseCategory, error) {
	return s.store.ListExpenseCategories(ctx)
}

// ClassifyCategory sets a category's classification. Every cached split
// may depend on it.
func (s *LedgerService) ClassifyCategory(ctx context.Context, category string, class core.Classification) error {
	if err := s.store.UpsertExpenseCategory(ctx, category, class); err != nil {
		return err
	}
	s.reports.InvalidateAll()

	event := amqp.NewLedgerEvent(amqp.EntityExpenseCategory, amqp.ActionUpdated, 0)
	event.Key = category
	s.publish(ctx, event)
	return nil
}

func (s *LedgerService) MonthlyBalance(ctx context.Context, p core.Period) (core.MonthlyBalance, error) {
	return s.reports.MonthlyBalance(ctx, p)
}

func (s *LedgerService) FixedVsVariable(ctx context.Context, p core.Period) (core.FixedVariableSplit, error) {
	return s.reports.FixedVsVariable(ctx, p)
}

func (s *LedgerService) SalaryAnalysis(ctx context.Context, p core.Period, salary core.Money) (core.SalaryAnalysis, error) {
	return s.reports.SalaryAnalysis(ctx, p, salary)
}

// Ping checks the store is reachable.
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *LedgerService) publish(ctx context.Context, event *amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, event); err != nil {
		// The mutation is committed; a lost event is only logged.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEvent, event.Type(),
			"id", event.ID,
			log.FieldError, err)
	}
}

// Close closes the publisher and the store.
func (s *LedgerService) Close() error {
	var errs []error

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
