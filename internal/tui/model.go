// Package tui is the interactive workbook viewer: a grid over the used
// range with an editable formula bar, updating live as recompute
// passes settle.
package tui

import (
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cellgrid/cellgrid/internal/engine"
	"github.com/cellgrid/cellgrid/internal/sheet"
)

// Model is the bubbletea model for the workbook viewer.
type Model struct {
	eng   *engine.Engine
	title string

	cursor sheet.Coord
	top    int // first visible row
	left   int // first visible column
	width  int
	height int

	editing bool
	input   textinput.Model

	// flash marks the cells settled by the most recent edit, so the
	// ripple of a change is visible.
	flash map[sheet.Coord]struct{}

	dirty bool

	keys     KeyMap
	help     help.Model
	showHelp bool

	changes   chan []engine.Change
	subID     engine.SubscriptionID
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a viewer over eng. The title is shown in the header,
// typically the database path.
func New(eng *engine.Engine, title string) *Model {
	ti := textinput.New()
	ti.Prompt = ""

	m := &Model{
		eng:     eng,
		title:   title,
		input:   ti,
		flash:   make(map[sheet.Coord]struct{}),
		keys:    DefaultKeyMap(),
		help:    help.New(),
		changes: make(chan []engine.Change, 16),
		done:    make(chan struct{}),
	}
	m.subID = eng.Subscribe(func(batch []engine.Change) {
		// Runs inside the engine's writer section; drop the batch
		// rather than block a pass.
		select {
		case m.changes <- batch:
		default:
		}
	})
	return m
}

// Dirty reports whether the viewer mutated the workbook.
func (m *Model) Dirty() bool { return m.dirty }

// Init starts listening for recompute batches.
func (m *Model) Init() tea.Cmd {
	return m.listenForChanges()
}

// changeMsg carries one settled recompute batch.
type changeMsg []engine.Change

// listenForChanges returns a command that waits for the next batch.
func (m *Model) listenForChanges() tea.Cmd {
	// Capture channels to avoid a race with model mutations.
	changes, done := m.changes, m.done
	return func() tea.Msg {
		select {
		case batch := <-changes:
			return changeMsg(batch)
		case <-done:
			return nil
		}
	}
}

// stop detaches from the engine. Idempotent.
func (m *Model) stop() {
	m.closeOnce.Do(func() {
		_ = m.eng.Unsubscribe(m.subID)
		close(m.done)
	})
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ensureVisible()
		return m, nil

	case changeMsg:
		for _, ch := range msg {
			m.flash[ch.Coord] = struct{}{}
		}
		return m, m.listenForChanges()

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateNavigation(msg)
	}

	return m, nil
}

// updateEditing handles keys while the formula bar has focus.
func (m *Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.editing = false
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Commit):
		raw := m.input.Value()
		m.editing = false
		m.input.Blur()
		clear(m.flash)
		if err := m.eng.Input(m.cursor, raw); err == nil {
			m.dirty = true
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// updateNavigation handles keys in grid mode.
func (m *Model) updateNavigation(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, m.keys.Up):
		m.move(-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.move(1, 0)
	case key.Matches(msg, m.keys.Left):
		m.move(0, -1)
	case key.Matches(msg, m.keys.Right):
		m.move(0, 1)
	case key.Matches(msg, m.keys.PageUp):
		m.move(-m.gridRows(), 0)
	case key.Matches(msg, m.keys.PageDown):
		m.move(m.gridRows(), 0)
	case key.Matches(msg, m.keys.Home):
		m.cursor = sheet.Coord{}
		m.top, m.left = 0, 0

	case key.Matches(msg, m.keys.Edit):
		cv, _ := m.eng.Cell(m.cursor)
		m.editing = true
		m.input.SetValue(cv.Raw)
		m.input.CursorEnd()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Clear):
		clear(m.flash)
		if err := m.eng.Clear(m.cursor); err == nil {
			m.dirty = true
		}

	case key.Matches(msg, m.keys.Recalc):
		clear(m.flash)
		m.eng.RecalculateAll()
		m.dirty = true
	}

	return m, nil
}

// move shifts the cursor by (dr, dc), clamped to the grid, and keeps
// it visible.
func (m *Model) move(dr, dc int) {
	m.cursor.Row = min(max(m.cursor.Row+dr, 0), sheet.MaxRows-1)
	m.cursor.Col = min(max(m.cursor.Col+dc, 0), sheet.MaxCols-1)
	m.ensureVisible()
}

// ensureVisible scrolls the viewport so the cursor stays on screen.
func (m *Model) ensureVisible() {
	rows, cols := m.gridRows(), m.gridCols()
	if m.cursor.Row < m.top {
		m.top = m.cursor.Row
	}
	if m.cursor.Row >= m.top+rows {
		m.top = m.cursor.Row - rows + 1
	}
	if m.cursor.Col < m.left {
		m.left = m.cursor.Col
	}
	if m.cursor.Col >= m.left+cols {
		m.left = m.cursor.Col - cols + 1
	}
}

// View renders the viewer.
func (m *Model) View() string {
	return m.renderView()
}
