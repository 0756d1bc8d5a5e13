// Package storage is the ledger's SQLite persistence layer: schema
// management, the account/transaction store with its derived balances, and
// the read-only monthly aggregations.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ledger/internal/core"

	_ "modernc.org/sqlite"
)

// Options tunes a Store.
type Options struct {
	DeletePolicy core.AccountDeletePolicy
}

// DefaultOptions blocks account deletion while transactions reference it.
func DefaultOptions() Options {
	return Options{DeletePolicy: core.DeleteBlock}
}

// Store is the open handle on a ledger database. It is safe for use by one
// process; all writes go through a single connection.
type Store struct {
	db     *sql.DB
	path   string
	policy core.AccountDeletePolicy
}

// Open opens (creating if needed) the database at dbPath, applies the schema
// and seeds default category metadata. Any failure is an initialization fault.
func Open(ctx context.Context, dbPath string, opts Options) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: database path is empty", core.ErrInitialization)
	}
	if opts.DeletePolicy == "" {
		opts.DeletePolicy = core.DeleteBlock
	}
	if !opts.DeletePolicy.IsValid() {
		return nil, fmt.Errorf("%w: unknown account delete policy %q", core.ErrInitialization, opts.DeletePolicy)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create db directory: %w", core.ErrInitialization, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %w", core.ErrInitialization, err)
	}

	// Single writer: one connection serialises every operation
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", core.ErrInitialization, err)
	}

	s := &Store{db: db, path: dbPath, policy: opts.DeletePolicy}

	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := s.EnsureDefaultCategories(ctx); err != nil {
		db.Close()
		return nil, err
	}

	slog.InfoContext(ctx, "Ledger store opened", "db_path", dbPath, "delete_policy", string(opts.DeletePolicy))
	return s, nil
}

// Reset deletes the database file at dbPath and opens a fresh, seeded one.
func Reset(ctx context.Context, dbPath string, opts Options) (*Store, error) {
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: remove %s: %w", core.ErrInitialization, dbPath+suffix, err)
		}
	}
	slog.WarnContext(ctx, "Ledger database removed", "db_path", dbPath)
	return Open(ctx, dbPath, opts)
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates the ledger relations if absent. It never drops or
// alters existing data and may be called any number of times.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := RunMigrations(s.path); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInitialization, err)
	}
	slog.DebugContext(ctx, "Ledger schema ensured", "db_path", s.path)
	return nil
}

// EnsureDefaultCategories seeds the built-in category metadata when the
// relation is empty. It returns the number of rows inserted.
func (s *Store) EnsureDefaultCategories(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expense_categories`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count expense categories: %w", core.ErrInitialization, err)
	}
	if count > 0 {
		return 0, nil
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := timestamp(time.Now())
		for _, c := range core.DefaultExpenseCategories() {
			res, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO expense_categories (category, type, created_at) VALUES (?, ?, ?)`,
				c.Category, string(c.Classification), now)
			if err != nil {
				return fmt.Errorf("insert category %q: %w", c.Category, err)
			}
			n, _ := res.RowsAffected()
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: seed expense categories: %w", core.ErrInitialization, err)
	}

	slog.InfoContext(ctx, "Seeded default expense categories", "count", inserted)
	return inserted, nil
}

// withTx runs fn inside one SQL transaction. Domain errors raised by fn roll
// back and pass through unchanged; any other failure rolls back and is
// reported as a consistency fault.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", core.ErrConsistency, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		if core.IsDomainError(err) {
			return err
		}
		return fmt.Errorf("%w: %w", core.ErrConsistency, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transaction: %w", core.ErrConsistency, err)
	}
	return nil
}

// adjustBalance adds delta to an account's current balance and reports
// whether the account row exists. A sum that would leave int64 cents is
// refused with a validation error so SQLite never widens the column to REAL.
func adjustBalance(ctx context.Context, tx *sql.Tx, accountID int64, delta core.Money) (bool, error) {
	var cur int64
	err := tx.QueryRowContext(ctx,
		`SELECT current_balance_cents FROM accounts WHERE id = ?`, accountID).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read balance of account %d: %w", accountID, err)
	}

	next, ok := core.NewMoney(cur).CheckedAdd(delta)
	if !ok {
		return true, fmt.Errorf("%w: %w: account %d", core.ErrValidation, core.ErrBalanceOverflow, accountID)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET current_balance_cents = ? WHERE id = ?`,
		next.Cents, accountID); err != nil {
		return true, fmt.Errorf("adjust balance of account %d: %w", accountID, err)
	}
	return true, nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTimestamp accepts both RFC 3339 (written by the store) and SQLite's
// CURRENT_TIMESTAMP layout.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
