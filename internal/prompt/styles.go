package prompt

import "github.com/charmbracelet/lipgloss"

var (
	colorCyan   = lipgloss.Color("6")
	colorGreen  = lipgloss.Color("2")
	colorYellow = lipgloss.Color("3")
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	hintStyle     = lipgloss.NewStyle().Faint(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	disabledStyle = lipgloss.NewStyle().Faint(true)
	footerStyle   = lipgloss.NewStyle().Foreground(colorYellow)
	doneStyle     = lipgloss.NewStyle().Foreground(colorGreen)
)

const (
	cursorMark = "❯ "
	noCursor   = "  "
	checkedBox = "[x] "
	emptyBox   = "[ ] "
	ellipsis   = "…"
)
