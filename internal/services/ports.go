// Package services composes the ledger store with report caching and
// change-event publishing.
package services

import (
	"context"

	"ledger/internal/amqp"
	"ledger/internal/core"
)

// AccountStore is the account side of the ledger store.
type AccountStore interface {
	ListAccounts(ctx context.Context) ([]core.Account, error)
	GetAccount(ctx context.Context, id int64) (core.Account, error)
	CreateAccount(ctx context.Context, in core.AccountInput) (int64, error)
	UpdateAccount(ctx context.Context, id int64, in core.AccountInput) error
	DeleteAccount(ctx context.Context, id int64) error
}

// TransactionStore is the transaction side of the ledger store.
type TransactionStore interface {
	ListTransactions(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	CreateTransaction(ctx context.Context, in core.TransactionInput) (int64, error)
	UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) error
	DeleteTransaction(ctx context.Context, id int64) error
}

// CategoryStore manages expense category metadata.
type CategoryStore interface {
	ListExpenseCategories(ctx context.Context) ([]core.ExpenseCategory, error)
	UpsertExpenseCategory(ctx context.Context, category string, class core.Classification) error
}

// ReportStore computes the monthly aggregations.
type ReportStore interface {
	MonthlyBalance(ctx context.Context, p core.Period) (core.MonthlyBalance, error)
	FixedVsVariable(ctx context.Context, p core.Period) (core.FixedVariableSplit, error)
}

// LedgerStore is everything the services need from storage.
type LedgerStore interface {
	AccountStore
	TransactionStore
	CategoryStore
	ReportStore
	Ping(ctx context.Context) error
	Close() error
}

// Publisher delivers change events. *amqp.Client satisfies it.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
	Close() error
}
