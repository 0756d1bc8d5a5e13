package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledger/internal/core"
)

const accountColumns = `id, name, type, initial_balance_cents, current_balance_cents, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a         core.Account
		typ       string
		createdAt string
	)
	if err := row.Scan(&a.ID, &a.Name, &typ, &a.InitialBalance.Cents, &a.CurrentBalance.Cents, &createdAt); err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	a.CreatedAt = parseTimestamp(createdAt)
	return a, nil
}

// ListAccounts returns every account ordered by name.
func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []core.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetAccount returns one account.
func (s *Store) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("%w: account %d", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %d: %w", id, err)
	}
	return a, nil
}

// CreateAccount inserts an account whose current balance starts at its
// initial balance and returns the new id.
func (s *Store) CreateAccount(ctx context.Context, in core.AccountInput) (int64, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, type, initial_balance_cents, current_balance_cents, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		in.Name, string(in.Type), in.InitialBalance.Cents, in.InitialBalance.Cents, timestamp(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account created",
		"id", id,
		"type", string(in.Type),
		"initial_balance", in.InitialBalance.String())
	return id, nil
}

// UpdateAccount renames or retypes an account. The balance is untouched.
func (s *Store) UpdateAccount(ctx context.Context, id int64, in core.AccountInput) error {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET name = ?, type = ? WHERE id = ?`, in.Name, string(in.Type), id)
	if err != nil {
		return fmt.Errorf("update account %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: account %d", core.ErrNotFound, id)
	}
	return nil
}

// DeleteAccount removes an account. Transactions still referencing it are
// handled according to the store's delete policy.
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	var removedTxns int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: account %d", core.ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("lookup account %d: %w", id, err)
		}

		switch s.policy {
		case core.DeleteBlock:
			var count int64
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = ?`, id).Scan(&count); err != nil {
				return fmt.Errorf("count transactions of account %d: %w", id, err)
			}
			if count > 0 {
				return fmt.Errorf("%w: account %d still has %d transactions", core.ErrConflict, id, count)
			}
		case core.DeleteCascade:
			res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE account_id = ?`, id)
			if err != nil {
				return fmt.Errorf("delete transactions of account %d: %w", id, err)
			}
			removedTxns, _ = res.RowsAffected()
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete account %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Account deleted",
		"id", id,
		"policy", string(s.policy),
		"transactions_removed", removedTxns)
	return nil
}

// AccountTransactionCount reports how many transactions reference an account.
func (s *Store) AccountTransactionCount(ctx context.Context, id int64) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = ?`, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("count transactions of account %d: %w", id, err)
	}
	return count, nil
}
