package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func TestMonthlyBalance_MonthBoundaries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, core.DeleteBlock)
	acct := mustAccount(t, s, "Checking", 0)

	mustTxn(t, s, acct, core.Expense, 1000, "food", core.NewDate(2025, 2, 28))
	mustTxn(t, s, acct, core.Expense, 2000, "food", core.NewDate(2025, 3, 31))
	mustTxn(t, s, acct, core.Expense, 4000, "food", core.NewDate(2025, 4, 1))

	mar, err := s.MonthlyBalance(ctx, core.Period{Year: 2025, Month: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), mar.Expenses.Cents)

	apr, err := s.MonthlyBalance(ctx, core.Period{Year: 2025, Month: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(4000), apr.Expenses.Cents)

	month, year := 3, 2025
	txns, err := s.ListTransactions(ctx, core.TransactionFilter{Month: &month, Year: &year})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "2025-03-31", txns[0].Date.String())
}

func TestMonthlyBalance_LastRepresentableMonth(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, core.DeleteBlock)
	acct := mustAccount(t, s, "Checking", 0)

	mustTxn(t, s, acct, core.Expense, 1500, "rent", core.NewDate(9999, 12, 15))
	mustTxn(t, s, acct, core.Income, 500, "salary", core.NewDate(9999, 12, 31))
	mustTxn(t, s, acct, core.Expense, 700, "rent", core.NewDate(9999, 11, 30))

	dec := core.Period{Year: 9999, Month: 12}
	mb, err := s.MonthlyBalance(ctx, dec)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), mb.Expenses.Cents)
	assert.Equal(t, int64(500), mb.Income.Cents)

	split, err := s.FixedVsVariable(ctx, dec)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), split.Fixed.Total.Cents)

	month, year := 12, 9999
	txns, err := s.ListTransactions(ctx, core.TransactionFilter{Month: &month, Year: &year})
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestMonthlyBalance_EmptyMonth(t *testing.T) {
	s := newTestStore(t, core.DeleteBlock)

	mb, err := s.MonthlyBalance(context.Background(), core.Period{Year: 2030, Month: 1})
	require.NoError(t, err)
	assert.True(t, mb.Income.IsZero())
	assert.True(t, mb.Expenses.IsZero())
	assert.True(t, mb.Balance.IsZero())
	assert.NotNil(t, mb.ByCategory)
	assert.Empty(t, mb.ByCategory)
}

func TestMonthlyBalance_InvalidPeriod(t *testing.T) {
	s := newTestStore(t, core.DeleteBlock)

	_, err := s.MonthlyBalance(context.Background(), core.Period{Year: 2025, Month: 13})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = s.FixedVsVariable(context.Background(), core.Period{Year: 2025, Month: 0})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestMonthlyBalance_Breakdown(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, core.DeleteBlock)
	a := mustAccount(t, s, "A", 0)
	b := mustAccount(t, s, "B", 0)

	mustTxn(t, s, a, core.Income, 300000, "salary", core.NewDate(2025, 5, 1))
	mustTxn(t, s, a, core.Expense, 120000, "rent", core.NewDate(2025, 5, 2))
	mustTxn(t, s, b, core.Expense, 3000, "food", core.NewDate(2025, 5, 3))
	mustTxn(t, s, a, core.Expense, 4500, "food", core.NewDate(2025, 5, 20))
	mustTxn(t, s, b, core.Expense, 999, "mystery", core.NewDate(2025, 5, 21))

	mb, err := s.MonthlyBalance(ctx, core.Period{Year: 2025, Month: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(300000), mb.Income.Cents)
	assert.Equal(t, int64(128499), mb.Expenses.Cents)
	assert.Equal(t, int64(171501), mb.Balance.Cents)

	require.Len(t, mb.ByCategory, 4)
	assert.Equal(t, core.CategoryTotal{Category: "salary", Kind: core.Income, Total: core.NewMoney(300000), Classification: core.Variable}, mb.ByCategory[0])
	assert.Equal(t, core.CategoryTotal{Category: "rent", Kind: core.Expense, Total: core.NewMoney(120000), Classification: core.Fixed}, mb.ByCategory[1])
	assert.Equal(t, core.CategoryTotal{Category: "food", Kind: core.Expense, Total: core.NewMoney(7500), Classification: core.Variable}, mb.ByCategory[2], "food summed across accounts")
	assert.Equal(t, core.CategoryTotal{Category: "mystery", Kind: core.Expense, Total: core.NewMoney(999), Classification: core.Variable}, mb.ByCategory[3])

	var sum core.Money
	for _, ct := range mb.ByCategory {
		if ct.Kind == core.Expense {
			sum = sum.Add(ct.Total)
		}
	}
	assert.Equal(t, mb.Expenses, sum)
}

func TestFixedVsVariable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, core.DeleteBlock)
	acct := mustAccount(t, s, "Checking", 0)

	mustTxn(t, s, acct, core.Expense, 120000, "rent", core.NewDate(2025, 3, 1))
	mustTxn(t, s, acct, core.Expense, 5000, "internet", core.NewDate(2025, 3, 4))
	mustTxn(t, s, acct, core.Expense, 2000, "groceries", core.NewDate(2025, 3, 5))
	mustTxn(t, s, acct, core.Expense, 1500, "groceries", core.NewDate(2025, 3, 15))
	mustTxn(t, s, acct, core.Expense, 8000, "food", core.NewDate(2025, 3, 9))
	mustTxn(t, s, acct, core.Income, 500000, "salary", core.NewDate(2025, 3, 1))
	mustTxn(t, s, acct, core.Expense, 7000, "rent", core.NewDate(2025, 4, 1))

	split, err := s.FixedVsVariable(ctx, core.Period{Year: 2025, Month: 3})
	require.NoError(t, err)

	assert.Equal(t, []core.CategoryAmount{
		{Category: "rent", Total: core.NewMoney(120000)},
		{Category: "internet", Total: core.NewMoney(5000)},
	}, split.Fixed.Expenses)
	assert.Equal(t, int64(125000), split.Fixed.Total.Cents)

	assert.Equal(t, []core.CategoryAmount{
		{Category: "food", Total: core.NewMoney(8000)},
		{Category: "groceries", Total: core.NewMoney(3500)},
	}, split.Variable.Expenses, "unclassified groceries counts as variable")
	assert.Equal(t, int64(11500), split.Variable.Total.Cents)

	mb, err := s.MonthlyBalance(ctx, core.Period{Year: 2025, Month: 3})
	require.NoError(t, err)
	assert.Equal(t, mb.Expenses, split.Fixed.Total.Add(split.Variable.Total))
}

func TestFixedVsVariable_FollowsReclassification(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, core.DeleteBlock)
	acct := mustAccount(t, s, "Checking", 0)
	mustTxn(t, s, acct, core.Expense, 4000, "gym", core.NewDate(2025, 6, 1))

	split, err := s.FixedVsVariable(ctx, core.Period{Year: 2025, Month: 6})
	require.NoError(t, err)
	assert.Equal(t, int64(4000), split.Variable.Total.Cents)

	require.NoError(t, s.UpsertExpenseCategory(ctx, "gym", core.Fixed))

	split, err = s.FixedVsVariable(ctx, core.Period{Year: 2025, Month: 6})
	require.NoError(t, err)
	assert.Equal(t, int64(4000), split.Fixed.Total.Cents)
	assert.True(t, split.Variable.Total.IsZero())
	assert.Empty(t, split.Variable.Expenses)
}
