package storage

import (
	"context"
	"fmt"

	"ledger/internal/core"
)

// MonthlyBalance totals income and expenses for one calendar month across
// all accounts, with a per (category, kind) breakdown. Categories without
// metadata classify as variable.
func (s *Store) MonthlyBalance(ctx context.Context, p core.Period) (core.MonthlyBalance, error) {
	if err := p.Validate(); err != nil {
		return core.MonthlyBalance{}, err
	}
	first, last := p.Start().String(), p.Last().String()

	mb := core.MonthlyBalance{Period: p, ByCategory: []core.CategoryTotal{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents END), 0),
		       COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents END), 0)
		FROM transactions
		WHERE date >= ? AND date <= ?`, first, last).Scan(&mb.Income.Cents, &mb.Expenses.Cents)
	if err != nil {
		return core.MonthlyBalance{}, fmt.Errorf("monthly totals %s: %w", p, err)
	}
	mb.Balance = mb.Income.Sub(mb.Expenses)

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.category, t.type, SUM(t.amount_cents) AS total,
		       COALESCE(MAX(ec.type), 'variable') AS expense_type
		FROM transactions t
		LEFT JOIN expense_categories ec ON ec.category = t.category
		WHERE t.date >= ? AND t.date <= ?
		GROUP BY t.category, t.type
		ORDER BY total DESC, t.category ASC, t.type ASC`, first, last)
	if err != nil {
		return core.MonthlyBalance{}, fmt.Errorf("monthly breakdown %s: %w", p, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ct          core.CategoryTotal
			kind, class string
		)
		if err := rows.Scan(&ct.Category, &kind, &ct.Total.Cents, &class); err != nil {
			return core.MonthlyBalance{}, fmt.Errorf("scan monthly breakdown: %w", err)
		}
		ct.Kind = core.Kind(kind)
		ct.Classification = core.Classification(class)
		mb.ByCategory = append(mb.ByCategory, ct)
	}
	if err := rows.Err(); err != nil {
		return core.MonthlyBalance{}, fmt.Errorf("monthly breakdown %s: %w", p, err)
	}
	return mb, nil
}

// FixedVsVariable groups a month's expenses by category and splits them by
// classification; unclassified categories land in the variable group.
func (s *Store) FixedVsVariable(ctx context.Context, p core.Period) (core.FixedVariableSplit, error) {
	if err := p.Validate(); err != nil {
		return core.FixedVariableSplit{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.category, SUM(t.amount_cents) AS total,
		       COALESCE(MAX(ec.type), 'variable') AS expense_type
		FROM transactions t
		LEFT JOIN expense_categories ec ON ec.category = t.category
		WHERE t.type = 'expense' AND t.date >= ? AND t.date <= ?
		GROUP BY t.category
		ORDER BY total DESC, t.category ASC`, p.Start().String(), p.Last().String())
	if err != nil {
		return core.FixedVariableSplit{}, fmt.Errorf("fixed/variable split %s: %w", p, err)
	}
	defer rows.Close()

	split := core.FixedVariableSplit{
		Period:   p,
		Fixed:    core.ExpenseGroup{Expenses: []core.CategoryAmount{}},
		Variable: core.ExpenseGroup{Expenses: []core.CategoryAmount{}},
	}
	for rows.Next() {
		var (
			ca    core.CategoryAmount
			class string
		)
		if err := rows.Scan(&ca.Category, &ca.Total.Cents, &class); err != nil {
			return core.FixedVariableSplit{}, fmt.Errorf("scan fixed/variable split: %w", err)
		}
		group := &split.Variable
		if core.Classification(class) == core.Fixed {
			group = &split.Fixed
		}
		group.Expenses = append(group.Expenses, ca)
		group.Total = group.Total.Add(ca.Total)
	}
	if err := rows.Err(); err != nil {
		return core.FixedVariableSplit{}, fmt.Errorf("fixed/variable split %s: %w", p, err)
	}
	return split, nil
}
