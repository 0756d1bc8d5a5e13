package cli

import "github.com/charmbracelet/lipgloss"

var (
	PrimaryColor = lipgloss.Color("#4ECDC4")
	IncomeColor  = lipgloss.Color("#95E1D3")
	ExpenseColor = lipgloss.Color("#FF6B6B")
	WarningColor = lipgloss.Color("#FFE66D")
	SubtleColor  = lipgloss.Color("#666666")

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	IncomeStyle  = lipgloss.NewStyle().Foreground(IncomeColor)
	ExpenseStyle = lipgloss.NewStyle().Foreground(ExpenseColor)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ExpenseColor).Bold(true)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)
	SuccessStyle = lipgloss.NewStyle().Foreground(PrimaryColor)
	BoldStyle    = lipgloss.NewStyle().Bold(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(0, 1)
)

// FormatTitle renders a section title.
func FormatTitle(s string) string {
	return TitleStyle.Render(s)
}
