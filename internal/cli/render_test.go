package cli

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func TestRenderMonthlyBalance(t *testing.T) {
	var buf bytes.Buffer
	err := RenderMonthlyBalance(&buf, core.MonthlyBalance{
		Period:   core.Period{Year: 2025, Month: 3},
		Income:   core.NewMoney(300000),
		Expenses: core.NewMoney(50000),
		Balance:  core.NewMoney(250000),
		ByCategory: []core.CategoryTotal{
			{Category: "salary", Kind: core.Income, Total: core.NewMoney(300000)},
			{Category: "rent", Kind: core.Expense, Total: core.NewMoney(50000), Classification: core.Fixed},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "2025-03")
	assert.Contains(t, out, "3000.00")
	assert.Contains(t, out, "2500.00")
	assert.Contains(t, out, "rent")
	assert.Contains(t, out, "fixed")
}

func TestRenderMonthlyBalance_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderMonthlyBalance(&buf, core.MonthlyBalance{Period: core.Period{Year: 2025, Month: 1}, ByCategory: []core.CategoryTotal{}}))
	assert.Contains(t, buf.String(), "No transactions this month.")
}

func TestRenderSplit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderSplit(&buf, core.FixedVariableSplit{
		Period:   core.Period{Year: 2025, Month: 3},
		Fixed:    core.ExpenseGroup{Expenses: []core.CategoryAmount{{Category: "rent", Total: core.NewMoney(90000)}}, Total: core.NewMoney(90000)},
		Variable: core.ExpenseGroup{Expenses: []core.CategoryAmount{}, Total: core.Money{}},
	}))

	out := buf.String()
	assert.Contains(t, out, "Fixed")
	assert.Contains(t, out, "900.00")
	assert.Contains(t, out, "Variable")
}

func TestRenderSalaryAnalysis(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderSalaryAnalysis(&buf, core.SalaryAnalysis{
		Salary:          core.NewMoney(250000),
		FixedTotal:      core.NewMoney(150000),
		FixedPercentage: decimal.NewFromInt(60),
		Advice:          []string{core.AdviceHighFixed},
	}))

	out := buf.String()
	assert.Contains(t, out, "2500.00")
	assert.Contains(t, out, "60.00%")
	assert.Contains(t, out, "Fixed costs exceed half of salary.")
}

func TestRenderCategories(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderCategories(&buf, []core.ExpenseCategory{
		{Category: "rent", Classification: core.Fixed},
		{Category: "food", Classification: core.Variable},
	}))
	assert.Contains(t, buf.String(), "rent")
	assert.Contains(t, buf.String(), "variable")
}

var ansiSeq = regexp.MustCompile("\x1b\\[[0-9;]*m")

func TestWriteTable_StyledHeaderAligns(t *testing.T) {
	colour := func(strs ...string) string {
		return "\x1b[1;38;5;86m" + strings.Join(strs, "") + "\x1b[0m"
	}
	var b strings.Builder
	writeTable(&b, colour, []string{"Category", "Class"}, [][]string{
		{"rent", "fixed"},
		{"entertainment", "variable"},
	})

	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "\x1b[", "header keeps its styling")

	col := func(line, cell string) int {
		return strings.Index(ansiSeq.ReplaceAllString(line, ""), cell)
	}
	assert.Equal(t, col(lines[1], "fixed"), col(lines[0], "Class"))
	assert.Equal(t, col(lines[2], "variable"), col(lines[0], "Class"))
	assert.Equal(t, len("entertainment")+2, col(lines[0], "Class"))
}
