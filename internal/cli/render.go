package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ledger/internal/core"
)

// RenderMonthlyBalance writes the month's totals and category breakdown.
func RenderMonthlyBalance(w io.Writer, mb core.MonthlyBalance) error {
	var b strings.Builder
	b.WriteString(FormatTitle("Monthly balance " + mb.Period.String()))
	b.WriteString("\n")

	balance := mb.Balance.String()
	if mb.Balance.IsNegative() {
		balance = ExpenseStyle.Render(balance)
	} else {
		balance = IncomeStyle.Render(balance)
	}
	fmt.Fprintf(&b, "Income    %s\nExpenses  %s\nBalance   %s\n\n",
		IncomeStyle.Render(mb.Income.String()),
		ExpenseStyle.Render(mb.Expenses.String()),
		balance)

	if len(mb.ByCategory) == 0 {
		b.WriteString(SubtleStyle.Render("No transactions this month."))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	rows := make([][]string, 0, len(mb.ByCategory))
	for _, row := range mb.ByCategory {
		class := ""
		if row.Kind == core.Expense {
			class = string(row.Classification)
		}
		rows = append(rows, []string{row.Category, string(row.Kind), class, row.Total.String()})
	}
	writeTable(&b, HeaderStyle.Render, []string{"Category", "Type", "Class", "Total"}, rows)

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderSplit writes the fixed and variable expense groups.
func RenderSplit(w io.Writer, split core.FixedVariableSplit) error {
	var b strings.Builder
	b.WriteString(FormatTitle("Fixed vs variable " + split.Period.String()))
	b.WriteString("\n")

	for _, g := range []struct {
		name  string
		group core.ExpenseGroup
	}{
		{"Fixed", split.Fixed},
		{"Variable", split.Variable},
	} {
		fmt.Fprintf(&b, "%s  %s\n", BoldStyle.Render(g.name), ExpenseStyle.Render(g.group.Total.String()))
		for _, e := range g.group.Expenses {
			fmt.Fprintf(&b, "  %-20s %12s\n", e.Category, e.Total)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderSalaryAnalysis writes spending as a share of salary plus advice.
func RenderSalaryAnalysis(w io.Writer, a core.SalaryAnalysis) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Salary     %s\n", a.Salary)
	fmt.Fprintf(&b, "Fixed      %s (%s%%)\n", a.FixedTotal, a.FixedPercentage.StringFixed(2))
	fmt.Fprintf(&b, "Variable   %s (%s%%)\n", a.VariableTotal, a.VariablePercentage.StringFixed(2))
	fmt.Fprintf(&b, "Remaining  %s (%s%%)\n", a.Remaining, a.RemainingPercentage.StringFixed(2))
	for _, advice := range a.Advice {
		b.WriteString(adviceLine(advice))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, BoxStyle.Render(strings.TrimRight(b.String(), "\n"))+"\n")
	return err
}

func adviceLine(advice string) string {
	switch advice {
	case core.AdviceOverspending:
		return ExpenseStyle.Render("Spending is above 90% of salary.")
	case core.AdviceHighFixed:
		return WarningStyle.Render("Fixed costs exceed half of salary.")
	case core.AdviceHealthySavings:
		return SuccessStyle.Render("Saving at least 20% of salary.")
	default:
		return advice
	}
}

// RenderCategories writes the expense category classifications.
func RenderCategories(w io.Writer, cats []core.ExpenseCategory) error {
	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, []string{c.Category, string(c.Classification)})
	}
	var b strings.Builder
	writeTable(&b, HeaderStyle.Render, []string{"Category", "Class"}, rows)
	_, err := io.WriteString(w, b.String())
	return err
}

// writeTable lays out columns two spaces apart. Widths are measured with
// lipgloss.Width so ANSI sequences in styled header cells take no space.
func writeTable(b *strings.Builder, style func(...string) string, header []string, rows [][]string) {
	styled := make([]string, len(header))
	widths := make([]int, len(header))
	for i, h := range header {
		styled[i] = style(h)
		widths[i] = lipgloss.Width(styled[i])
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	writeRow := func(cells []string) {
		for i, cell := range cells {
			b.WriteString(cell)
			if i < len(cells)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}
		b.WriteString("\n")
	}
	writeRow(styled)
	for _, row := range rows {
		writeRow(row)
	}
}
