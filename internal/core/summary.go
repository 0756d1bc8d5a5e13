package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Category string `json:"category"`
	Total    Money  `json:"total"`
}

// CategoryTotal is one (category, kind) row of a monthly breakdown.
type CategoryTotal struct {
	Category       string         `json:"category"`
	Kind           Kind           `json:"type"`
	Total          Money          `json:"total"`
	Classification Classification `json:"expenseType"`
}

// MonthlyBalance summarises one calendar month across all accounts.
type MonthlyBalance struct {
	Period     Period          `json:"period"`
	Income     Money           `json:"income"`
	Expenses   Money           `json:"expenses"`
	Balance    Money           `json:"balance"`
	ByCategory []CategoryTotal `json:"byCategory"`
}

// ExpenseGroup is one side of a fixed/variable split.
type ExpenseGroup struct {
	Expenses []CategoryAmount `json:"expenses"`
	Total    Money            `json:"total"`
}

// FixedVariableSplit partitions a month's expenses by classification.
type FixedVariableSplit struct {
	Period   Period       `json:"period"`
	Fixed    ExpenseGroup `json:"fixed"`
	Variable ExpenseGroup `json:"variable"`
}

// Advice flags raised by a salary analysis.
const (
	AdviceOverspending   = "overspending"
	AdviceHighFixed      = "high_fixed"
	AdviceHealthySavings = "healthy_savings"
)

var (
	overspendingThreshold = decimal.NewFromInt(90)
	highFixedThreshold    = decimal.NewFromInt(50)
	healthySavingsFloor   = decimal.NewFromInt(20)
)

// SalaryAnalysis measures a month's spending against a monthly salary.
// Percentages are of salary, rounded to two places.
type SalaryAnalysis struct {
	Period              Period          `json:"period"`
	Salary              Money           `json:"salary"`
	FixedTotal          Money           `json:"fixedTotal"`
	VariableTotal       Money           `json:"variableTotal"`
	TotalExpenses       Money           `json:"totalExpenses"`
	FixedPercentage     decimal.Decimal `json:"fixedPercentage"`
	VariablePercentage  decimal.Decimal `json:"variablePercentage"`
	TotalPercentage     decimal.Decimal `json:"totalPercentage"`
	Remaining           Money           `json:"remaining"`
	RemainingPercentage decimal.Decimal `json:"remainingPercentage"`
	Advice              []string        `json:"advice"`
}

// AnalyzeSalary derives a SalaryAnalysis from a month's split and its total
// expenses. Salary must be positive.
func AnalyzeSalary(split FixedVariableSplit, totalExpenses, salary Money) (SalaryAnalysis, error) {
	if salary.Cents <= 0 {
		return SalaryAnalysis{}, fmt.Errorf("%w: %w: salary must be positive", ErrValidation, ErrInvalidAmount)
	}

	remaining := salary.Sub(totalExpenses)
	a := SalaryAnalysis{
		Period:              split.Period,
		Salary:              salary,
		FixedTotal:          split.Fixed.Total,
		VariableTotal:       split.Variable.Total,
		TotalExpenses:       totalExpenses,
		FixedPercentage:     Percent(split.Fixed.Total, salary),
		VariablePercentage:  Percent(split.Variable.Total, salary),
		TotalPercentage:     Percent(totalExpenses, salary),
		Remaining:           remaining,
		RemainingPercentage: Percent(remaining, salary),
		Advice:              []string{},
	}

	if exceedsShare(totalExpenses, salary, overspendingThreshold) {
		a.Advice = append(a.Advice, AdviceOverspending)
	}
	if exceedsShare(split.Fixed.Total, salary, highFixedThreshold) {
		a.Advice = append(a.Advice, AdviceHighFixed)
	}
	if exceedsShare(remaining, salary, healthySavingsFloor) {
		a.Advice = append(a.Advice, AdviceHealthySavings)
	}
	return a, nil
}

// exceedsShare reports whether part is more than pct percent of whole,
// compared exactly rather than on the rounded percentage. whole must be positive.
func exceedsShare(part, whole Money, pct decimal.Decimal) bool {
	lhs := decimal.NewFromInt(part.Cents).Mul(decimal.NewFromInt(100))
	return lhs.GreaterThan(pct.Mul(decimal.NewFromInt(whole.Cents)))
}
