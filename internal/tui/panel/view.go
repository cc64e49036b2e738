// Package panel renders a search session: spinner while searching, the
// result list, an opened shabad or the error. It only reads snapshots; the
// app turns keys into session events.
package panel

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/altinukshini/pankti/internal/model"
	"github.com/altinukshini/pankti/internal/search"
	"github.com/altinukshini/pankti/internal/session"
	"github.com/altinukshini/pankti/internal/ui"
)

// rowsPerLine is how many screen rows one result line takes.
const rowsPerLine = 2

// chrome is the title and hint rows above the viewport.
const chrome = 3

type Model struct {
	snap    session.Snapshot
	spinner spinner.Model
	vp      viewport.Model

	cursor        int
	resultsCursor int

	progressDone  int
	progressTotal int

	width   int
	height  int
	active  bool
	ready   bool
	pending bool
}

func New() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ui.ColorPrimary)
	return Model{spinner: s}
}

// Spin marks a request as pending and restarts the spinner. Extra tick
// chains are dropped by the spinner.
func (m *Model) Spin() tea.Cmd {
	m.pending = true
	return m.spinner.Tick
}

// Settle clears the pending mark once the request has returned.
func (m *Model) Settle() {
	m.pending = false
	m.refresh()
}

// Open shows a new session and starts the spinner.
func (m *Model) Open(snap session.Snapshot) tea.Cmd {
	m.active = true
	m.pending = true
	m.cursor, m.resultsCursor = 0, 0
	m.progressDone, m.progressTotal = 0, 0
	m.snap = snap
	m.refresh()
	return m.spinner.Tick
}

func (m *Model) Deactivate() {
	m.active = false
	m.pending = false
	m.snap = session.Snapshot{}
}

func (m Model) IsActive() bool { return m.active }

func (m Model) Snapshot() session.Snapshot { return m.snap }

// SetSnapshot replaces the rendered state. Leaving a passage restores the
// cursor the result list had when the passage was opened.
func (m *Model) SetSnapshot(snap session.Snapshot) {
	prev := m.snap.State
	switch {
	case snap.ID != m.snap.ID:
		m.cursor, m.resultsCursor = 0, 0
	case prev == session.StateResults && snap.State != session.StateResults:
		m.resultsCursor = m.cursor
		m.cursor = 0
	case prev != session.StateResults && snap.State == session.StateResults:
		m.cursor = m.resultsCursor
	}
	m.snap = snap
	if !snap.Busy {
		m.progressDone, m.progressTotal = 0, 0
	}
	m.clampCursor()
	m.refresh()
}

// SetProgress records how far an insert-all has got.
func (m *Model) SetProgress(completed, total int) {
	m.progressDone, m.progressTotal = completed, total
	m.refresh()
}

// Cursor is the index of the selected line in the visible sequence.
func (m Model) Cursor() int { return m.cursor }

func (m Model) SelectedLine() (model.LineMatch, bool) {
	lines := m.snap.Lines()
	if !m.browsing() || m.cursor < 0 || m.cursor >= len(lines) {
		return model.LineMatch{}, false
	}
	return lines[m.cursor], true
}

// browsing reports whether a line list is on screen.
func (m Model) browsing() bool {
	return m.snap.State == session.StateResults || m.snap.State == session.StatePassage
}

func (m *Model) clampCursor() {
	n := len(m.snap.Lines())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.active || !m.spinning() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case tea.KeyMsg:
		if !m.browsing() {
			return m, nil
		}
		n := len(m.snap.Lines())
		page := m.visibleLines()
		switch {
		case key.Matches(msg, ui.Keys.Down):
			if m.cursor < n-1 {
				m.cursor++
			}
		case key.Matches(msg, ui.Keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, ui.Keys.PageDown):
			m.cursor = min(m.cursor+page, n-1)
		case key.Matches(msg, ui.Keys.PageUp):
			m.cursor = max(m.cursor-page, 0)
		}
		m.clampCursor()
		m.refresh()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h := max(msg.Height-chrome, 1)
		if !m.ready {
			m.vp = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = h
		}
		m.refresh()
	}
	return m, nil
}

// spinning reports whether the session is waiting on the search server.
func (m Model) spinning() bool {
	return m.snap.State == session.StateSearching || m.snap.State == session.StateIdle ||
		m.snap.Busy || m.pending
}

func (m Model) visibleLines() int {
	if !m.ready {
		return 1
	}
	return max(m.vp.Height/rowsPerLine, 1)
}

// refresh re-renders the list into the viewport and keeps the cursor on
// screen.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.vp.SetContent(m.renderLines())

	top := m.cursor * rowsPerLine
	bottom := top + rowsPerLine
	switch {
	case top < m.vp.YOffset:
		m.vp.SetYOffset(top)
	case bottom > m.vp.YOffset+m.vp.Height:
		m.vp.SetYOffset(bottom - m.vp.Height)
	}
}

func (m Model) renderLines() string {
	if !m.browsing() {
		return ""
	}
	lines := m.snap.Lines()
	if len(lines) == 0 {
		return "  " + ui.StyleMuted.Render("No matches found")
	}

	mark := func(s string) string { return s }
	if hl := m.highlighter(); hl != nil {
		mark = func(s string) string {
			return hl.Apply(s, func(w string) string { return ui.StyleMatch.Render(w) })
		}
	}

	var b strings.Builder
	for i, l := range lines {
		marker := "  "
		if i == m.cursor {
			marker = lipgloss.NewStyle().Foreground(ui.ColorPrimary).Render("> ")
		}
		first := marker + ui.StyleGurmukhi.Render(mark(l.Punjabi))
		second := "    " + ui.StyleTranslit.Render(mark(l.Translit))
		if l.Attributes != "" {
			second += "  " + ui.StyleAttrs.Render(l.Attributes)
		}
		if i == m.cursor {
			hl := ui.StyleSelected.Width(m.width)
			first, second = hl.Render(first), hl.Render(second)
		}
		b.WriteString(first + "\n" + second)
		if i < len(lines)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// highlighter marks query words in result lines. First-letter queries are
// not words, so they are left alone.
func (m Model) highlighter() *search.Highlighter {
	if m.snap.State != session.StateResults || m.snap.Mode == model.ModeFirstEachWord {
		return nil
	}
	return search.New(m.snap.Query)
}

func (m Model) title() string {
	bold := lipgloss.NewStyle().Bold(true).Foreground(ui.ColorPrimary)
	switch m.snap.State {
	case session.StatePassage:
		return bold.Render(fmt.Sprintf("Shabad %s", m.snap.Passage.ID)) +
			ui.StyleMuted.Render(fmt.Sprintf("  %d lines", m.snap.Passage.Len()))
	case session.StateResults:
		return bold.Render(m.snap.Mode.Label()) + "  " + m.snap.Query +
			ui.StyleMuted.Render(fmt.Sprintf("  %d matches", m.snap.Results.Len()))
	default:
		return bold.Render(m.snap.Mode.Label()) + "  " + m.snap.Query
	}
}

func (m Model) hints() string {
	switch m.snap.State {
	case session.StatePassage:
		return "A: Insert Shabad  enter: insert line  y: copy  b: back  esc: close"
	case session.StateResults:
		return "enter: insert  v: view shabad  A: insert all  y: copy  esc: close"
	case session.StateError:
		if m.snap.Results.Query != "" {
			return "b: back to results  esc: close"
		}
		return "esc: close"
	default:
		return "esc: cancel"
	}
}

func (m Model) View() string {
	if !m.active {
		return ""
	}

	var b strings.Builder
	b.WriteString(" " + m.title() + "\n")

	status := m.hints()
	switch {
	case m.progressTotal > 0:
		status = fmt.Sprintf("%s Inserting %d/%d", m.spinner.View(), m.progressDone, m.progressTotal)
	case (m.snap.Busy || m.pending) && m.browsing():
		status = m.spinner.View() + " Working..."
	}
	b.WriteString(" " + ui.StyleMuted.Render(status) + "\n\n")

	switch m.snap.State {
	case session.StateIdle, session.StateSearching:
		b.WriteString("  " + m.spinner.View() + " Searching...")
	case session.StateError:
		b.WriteString("  " + ui.StyleFailure.Render("Error searching: "+m.snap.Err))
	case session.StateResults, session.StatePassage:
		if m.ready {
			b.WriteString(m.vp.View())
		} else {
			b.WriteString(m.renderLines())
		}
	}
	return b.String()
}
