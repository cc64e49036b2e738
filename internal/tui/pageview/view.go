// Package pageview lists the blocks of an outline page. The selected block
// is where a search session is anchored.
package pageview

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/altinukshini/pankti/internal/page"
	"github.com/altinukshini/pankti/internal/ui"
)

// BlocksLoadedMsg replaces the listed blocks. The selection stays on the
// same block when it still exists.
type BlocksLoadedMsg struct {
	Blocks []page.Block
}

// titleRows is the height of the list's filter bar, which is always
// rendered because filtering is enabled.
const titleRows = 2

// --- Custom delegate (avoids DefaultDelegate ANSI corruption during filtering) ---

type blockDelegate struct{}

func (d blockDelegate) Height() int                              { return 1 }
func (d blockDelegate) Spacing() int                             { return 0 }
func (d blockDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d blockDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	bi, ok := item.(blockItem)
	if !ok {
		return
	}

	indent := strings.Repeat("  ", bi.block.Depth)
	text := firstLine(bi.block.Content())
	if text == "" {
		text = ui.StyleMuted.Render("(empty)")
	}
	line := fmt.Sprintf(" %s%s %s", indent, ui.StyleMuted.Render("•"), text)

	if index == m.Index() {
		line = lipgloss.NewStyle().Background(ui.ColorHighlight).Width(m.Width()).Render(line)
	}
	fmt.Fprint(w, line)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

// --- Item ---

type blockItem struct {
	block page.Block
}

func (b blockItem) FilterValue() string {
	return b.block.Content()
}

// --- Model ---

type Model struct {
	list   list.Model
	width  int
	height int
}

func New() Model {
	l := list.New(nil, blockDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowFilter(true)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(true)
	// t, f and w start searches; filtering moves to "/".
	l.KeyMap.Filter = ui.Keys.Filter
	l.KeyMap.NextPage = key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "next page"))
	l.KeyMap.PrevPage = key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "prev page"))
	l.DisableQuitKeybindings()

	return Model{list: l}
}

// SelectedBlock is the block under the cursor.
func (m Model) SelectedBlock() (page.Block, bool) {
	if item, ok := m.list.SelectedItem().(blockItem); ok {
		return item.block, true
	}
	return page.Block{}, false
}

// CursorRow is the screen row of the selected block relative to the top of
// the view, or -1 when nothing is selected.
func (m Model) CursorRow() int {
	if m.list.SelectedItem() == nil {
		return -1
	}
	return m.list.Cursor() + titleRows
}

func (m Model) Len() int {
	return len(m.list.Items())
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case BlocksLoadedMsg:
		prev, hadPrev := m.SelectedBlock()
		items := make([]list.Item, len(msg.Blocks))
		sel := 0
		for i, b := range msg.Blocks {
			items[i] = blockItem{block: b}
			if hadPrev && b.ID == prev.ID {
				sel = i
			}
		}
		cmd := m.list.SetItems(items)
		m.list.Select(sel)
		return m, cmd

	case tea.KeyMsg:
		// SetSize with zero items can disable the filter binding.
		if msg.String() == "/" && !m.IsFiltering() && len(m.list.Items()) > 0 {
			m.list.KeyMap.Filter.SetEnabled(true)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return "\n  " + ui.StyleMuted.Render("Page has no blocks.")
	}
	return m.list.View()
}

func (m Model) IsFiltering() bool {
	return m.list.FilterState() == list.Filtering
}
