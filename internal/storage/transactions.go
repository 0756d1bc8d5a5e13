package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ledger/internal/core"
)

const transactionSelect = `
	SELECT t.id, t.account_id, COALESCE(a.name, ''), t.type, t.amount_cents,
	       t.category, COALESCE(t.description, ''), t.date, t.created_at
	FROM transactions t
	LEFT JOIN accounts a ON a.id = t.account_id`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		kind      string
		date      string
		createdAt string
	)
	if err := row.Scan(&t.ID, &t.AccountID, &t.AccountName, &kind, &t.Amount.Cents,
		&t.Category, &t.Description, &date, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d has malformed date %q", t.ID, date)
	}
	t.Kind = core.Kind(kind)
	t.Date = d
	t.CreatedAt = parseTimestamp(createdAt)
	return t, nil
}

// ListTransactions returns transactions newest first, optionally narrowed to
// one account and/or one calendar month.
func (s *Store) ListTransactions(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, error) {
	period, hasPeriod, err := filter.Period()
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.AccountID != nil {
		where = append(where, "t.account_id = ?")
		args = append(args, *filter.AccountID)
	}
	if hasPeriod {
		where = append(where, "t.date >= ? AND t.date <= ?")
		args = append(args, period.Start().String(), period.Last().String())
	}

	query := transactionSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.date DESC, t.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// GetTransaction returns one transaction.
func (s *Store) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return getTransaction(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTransaction(ctx context.Context, q queryRower, id int64) (core.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("%w: transaction %d", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// CreateTransaction records a transaction and applies its contribution to
// the owning account's balance as one unit.
func (s *Store) CreateTransaction(ctx context.Context, in core.TransactionInput) (int64, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireAccount(ctx, tx, in.AccountID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (account_id, type, amount_cents, category, description, date, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			in.AccountID, string(in.Kind), in.Amount.Cents, in.Category, nullString(in.Description),
			in.Date.String(), timestamp(time.Now()))
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		if _, err := adjustBalance(ctx, tx, in.AccountID, in.Kind.Signed(in.Amount)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", id,
		"account_id", in.AccountID,
		"type", string(in.Kind),
		"amount", in.Amount.String(),
		"category", in.Category,
		"date", in.Date.String())
	return id, nil
}

// UpdateTransaction replaces a transaction's fields. The old contribution is
// reversed on the original account before the new one is applied to the
// (possibly different) new account, so kind, amount and account may all
// change at once.
func (s *Store) UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) error {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return err
	}

	var old core.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if old, err = getTransaction(ctx, tx, id); err != nil {
			return err
		}
		if err := requireAccount(ctx, tx, in.AccountID); err != nil {
			return err
		}

		// The original account may be gone under the orphan policy; then there is nothing to reverse.
		if _, err := adjustBalance(ctx, tx, old.AccountID, old.Kind.Signed(old.Amount).Neg()); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions
			 SET account_id = ?, type = ?, amount_cents = ?, category = ?, description = ?, date = ?
			 WHERE id = ?`,
			in.AccountID, string(in.Kind), in.Amount.Cents, in.Category, nullString(in.Description),
			in.Date.String(), id); err != nil {
			return fmt.Errorf("update transaction %d: %w", id, err)
		}

		if _, err := adjustBalance(ctx, tx, in.AccountID, in.Kind.Signed(in.Amount)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction updated",
		"id", id,
		"old_account_id", old.AccountID,
		"account_id", in.AccountID,
		"old_amount", old.Kind.Signed(old.Amount).String(),
		"amount", in.Kind.Signed(in.Amount).String())
	return nil
}

// DeleteTransaction reverses a transaction's contribution and removes it.
func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	var old core.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if old, err = getTransaction(ctx, tx, id); err != nil {
			return err
		}
		if _, err := adjustBalance(ctx, tx, old.AccountID, old.Kind.Signed(old.Amount).Neg()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete transaction %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id, "account_id", old.AccountID)
	return nil
}

func requireAccount(ctx context.Context, tx *sql.Tx, id int64) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: account %d", core.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("lookup account %d: %w", id, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
