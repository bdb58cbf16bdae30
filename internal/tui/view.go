package tui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/cellgrid/cellgrid/internal/sheet"
	"github.com/cellgrid/cellgrid/internal/value"
)

// Grid geometry. Chrome is the non-grid lines: title, formula bar,
// header, status, help, and their separators.
const (
	cellWidth   = 11
	colGap      = 1
	rowLabelW   = 5
	chromeRows  = 6
	defaultRows = 20
	defaultCols = 6
)

// Styles for the workbook viewer
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	cursorStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("15")).
			Bold(true)

	flashStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")) // yellow

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")) // red

	formulaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")) // green

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // gray

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// gridRows returns how many sheet rows fit the current height.
func (m *Model) gridRows() int {
	if m.height == 0 {
		return defaultRows
	}
	return max(m.height-chromeRows, 1)
}

// gridCols returns how many sheet columns fit the current width.
func (m *Model) gridCols() int {
	if m.width == 0 {
		return defaultCols
	}
	return max((m.width-rowLabelW)/(cellWidth+colGap), 1)
}

// renderView renders the entire view.
func (m *Model) renderView() string {
	var b strings.Builder

	// Title
	b.WriteString(titleStyle.Render("cellgrid"))
	if m.title != "" {
		b.WriteString("  " + m.title)
	}
	b.WriteString("\n")

	// Formula bar
	b.WriteString(m.renderFormulaBar())
	b.WriteString("\n\n")

	// Column header
	b.WriteString(strings.Repeat(" ", rowLabelW))
	for col := m.left; col < m.left+m.gridCols(); col++ {
		b.WriteString(headerStyle.Render(pad(sheet.ColName(col), cellWidth, true)))
		b.WriteString(strings.Repeat(" ", colGap))
	}
	b.WriteString("\n")

	// Grid rows
	for row := m.top; row < m.top+m.gridRows(); row++ {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%*d ", rowLabelW-1, row+1)))
		for col := m.left; col < m.left+m.gridCols(); col++ {
			b.WriteString(m.renderCell(sheet.Coord{Row: row, Col: col}))
			b.WriteString(strings.Repeat(" ", colGap))
		}
		b.WriteString("\n")
	}

	// Status line
	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	// Help footer
	if m.showHelp {
		b.WriteString(m.help.View(m.keys))
	} else {
		b.WriteString(helpStyle.Render("↑↓←→:navigate  enter:edit  x:clear  r:recalculate  q:quit  ?:help"))
	}

	return b.String()
}

// renderFormulaBar shows the cursor cell's raw input, or the edit
// field while editing.
func (m *Model) renderFormulaBar() string {
	label := formulaStyle.Render(m.cursor.A1() + ":")
	if m.editing {
		return label + " " + m.input.View()
	}
	cv, ok := m.eng.Cell(m.cursor)
	if !ok {
		return label + " " + helpStyle.Render("(empty)")
	}
	return label + " " + cv.Raw
}

// renderCell renders one fixed-width grid cell with its display value.
func (m *Model) renderCell(c sheet.Coord) string {
	cv, ok := m.eng.Cell(c)

	text := ""
	number := false
	isErr := false
	if ok && cv.Value != nil {
		text = cv.Value.Display()
		_, number = cv.Value.(value.Number)
		_, isErr = value.IsError(cv.Value)
	}
	cell := pad(truncate(text, cellWidth), cellWidth, number)

	switch {
	case c == m.cursor:
		return cursorStyle.Render(cell)
	case isErr:
		return errorStyle.Render(cell)
	default:
		if _, changed := m.flash[c]; changed {
			return flashStyle.Render(cell)
		}
		return cell
	}
}

// renderStatus summarizes the sheet and the last recompute pass.
func (m *Model) renderStatus() string {
	used := "empty"
	if r, ok := m.eng.UsedRange(); ok {
		used = r.A1()
	}
	s := fmt.Sprintf("%d cells  range %s", m.eng.CellCount(), used)
	if stats := m.eng.LastPassStats(); stats.Seq > 0 {
		s += fmt.Sprintf("  pass %d: %d evaluated, %d changed in %s",
			stats.Seq, stats.CellsEvaluated, stats.Changed, stats.Elapsed.Round(time.Microsecond))
	}
	return statusStyle.Render(s)
}

// pad fixes s to width runes, right-aligning when rightAlign is set.
func pad(s string, width int, rightAlign bool) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	fill := strings.Repeat(" ", width-n)
	if rightAlign {
		return fill + s
	}
	return s + fill
}

// truncate shortens a string to the given rune length, preserving UTF-8.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 1 {
		return "…"
	}
	return string(runes[:maxLen-1]) + "…"
}
