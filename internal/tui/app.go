package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/altinukshini/pankti/internal/config"
	"github.com/altinukshini/pankti/internal/model"
	"github.com/altinukshini/pankti/internal/page"
	"github.com/altinukshini/pankti/internal/session"
	"github.com/altinukshini/pankti/internal/tui/confirm"
	"github.com/altinukshini/pankti/internal/tui/pageview"
	"github.com/altinukshini/pankti/internal/tui/panel"
	"github.com/altinukshini/pankti/internal/ui"
)

const (
	actionSearch    = "search"
	actionInsert    = "insert"
	actionInsertAll = "insert-all"
	actionPassage   = "view shabad"
	actionBack      = "back"
)

// insertProgress is written by the session while an insert-all runs and
// read on spinner ticks.
type insertProgress struct {
	completed atomic.Int64
	total     atomic.Int64
}

func (p *insertProgress) set(completed, total int) {
	p.total.Store(int64(total))
	p.completed.Store(int64(completed))
}

func (p *insertProgress) get() (int, int) {
	return int(p.completed.Load()), int(p.total.Load())
}

type App struct {
	cfg      config.Config
	page     *page.Page
	provider session.Provider
	logger   zerolog.Logger
	server   string

	// Views
	pageView      pageview.Model
	panel         panel.Model
	confirmDialog confirm.Model

	// Active search session, nil when the panel is closed.
	session   *session.Controller
	progress  *insertProgress
	anchorRow int
	// State the panel showed when the insert-all dialog opened.
	insertAllShown session.State

	// State
	width    int
	height   int
	status   string
	showHelp bool
}

func NewApp(cfg config.Config, pg *page.Page, provider session.Provider, logger zerolog.Logger) App {
	return App{
		cfg:      cfg,
		page:     pg,
		provider: provider,
		logger:   logger.With().Str("component", "tui").Logger(),
		server:   cfg.ServerURL,
		pageView: pageview.New(),
		panel:    panel.New(),
		progress: &insertProgress{},
		status:   fmt.Sprintf("Opened %s (%d blocks)", pg.Name(), pg.Len()),
	}
}

func (a App) Init() tea.Cmd {
	return a.loadBlocks()
}

func (a App) loadBlocks() tea.Cmd {
	pg := a.page
	return func() tea.Msg {
		return pageview.BlocksLoadedMsg{Blocks: pg.Blocks()}
	}
}

// invoke closes any open session and starts a new one anchored at the
// selected block.
func (a *App) invoke(mode model.Mode) tea.Cmd {
	blk, ok := a.pageView.SelectedBlock()
	if !ok || strings.TrimSpace(blk.Content()) == "" {
		return nil
	}
	a.closeSession()

	row := a.pageView.CursorRow()
	host := newPageHost(a.page, session.Position{Row: row, Col: 2 * blk.Depth}, row >= 0)
	prog := &insertProgress{}
	ctrl := session.New(host, a.provider,
		session.WithTimeout(a.cfg.Timeout),
		session.WithLogger(a.logger),
		session.WithInsertProgress(prog.set),
	)
	a.session = ctrl
	a.progress = prog
	a.anchorRow = row

	spin := a.panel.Open(ctrl.Snapshot())
	a.propagateSize()
	a.status = fmt.Sprintf("%s: searching...", mode.Label())
	a.logger.Debug().Str("session_id", ctrl.ID()).Str("block", blk.ID.String()).Msg("opening search panel")

	ref := blk.ID
	return tea.Batch(spin, func() tea.Msg {
		err := ctrl.Invoke(context.Background(), ref, mode)
		return ui.SessionUpdatedMsg{
			SessionID: ctrl.ID(),
			Action:    actionSearch,
			Err:       err,
			Skipped:   errors.Is(err, session.ErrInvocationSkipped),
		}
	})
}

// dispatch sends ev to the open session off the update loop.
func (a *App) dispatch(action string, ev session.Event, refresh bool) tea.Cmd {
	ctrl := a.session
	if ctrl == nil {
		return nil
	}
	spin := a.panel.Spin()
	return tea.Batch(spin, func() tea.Msg {
		err := ctrl.Dispatch(context.Background(), ev)
		return ui.SessionUpdatedMsg{SessionID: ctrl.ID(), Action: action, Err: err, Refresh: refresh}
	})
}

func (a *App) closeSession() {
	if a.session == nil {
		return
	}
	_ = a.session.Dispatch(context.Background(), session.Close{})
	a.session = nil
	a.panel.Deactivate()
	a.propagateSize()
}

var clipboardWrite = clipboard.WriteAll

func copyCloze(l model.LineMatch) tea.Cmd {
	text := model.FormatCloze(l)
	return func() tea.Msg {
		return ui.ClipboardMsg{Text: text, Err: clipboardWrite(text)}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// Handle confirm dialog result (arrives AFTER dialog deactivates itself)
	if result, ok := msg.(confirm.ResultMsg); ok {
		if result.Confirmed && a.session != nil && result.SessionID == a.session.ID() {
			switch result.Action {
			case actionInsertAll:
				a.status = fmt.Sprintf("Inserting %d lines...", len(a.panel.Snapshot().Lines()))
				cmds = append(cmds, a.dispatch(actionInsertAll, session.InsertAll{Shown: a.insertAllShown}, true))
			}
		}
		return &a, tea.Batch(cmds...)
	}

	// Handle confirmation dialog input (key events while dialog is showing)
	if a.confirmDialog.IsActive() {
		if _, ok := msg.(tea.KeyMsg); ok {
			var cmd tea.Cmd
			a.confirmDialog, cmd = a.confirmDialog.Update(msg)
			return &a, cmd
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.propagateSize()
		return &a, nil

	case pageview.BlocksLoadedMsg:
		var cmd tea.Cmd
		a.pageView, cmd = a.pageView.Update(msg)
		return &a, cmd

	case ui.SessionUpdatedMsg:
		return a.handleSessionUpdated(msg)

	case ui.ClipboardMsg:
		if msg.Err != nil {
			a.status = fmt.Sprintf("Copy failed: %v", msg.Err)
		} else {
			a.status = "Copied cloze text to clipboard"
		}
		return &a, nil

	case spinner.TickMsg:
		if a.session != nil {
			snap := a.session.Snapshot()
			a.panel.SetSnapshot(snap)
			if done, total := a.progress.get(); snap.Busy && total > 0 {
				a.panel.SetProgress(done, total)
			}
		}
		var cmd tea.Cmd
		a.panel, cmd = a.panel.Update(msg)
		return &a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return &a, nil
}

func (a App) handleSessionUpdated(msg ui.SessionUpdatedMsg) (tea.Model, tea.Cmd) {
	if a.session == nil || msg.SessionID != a.session.ID() {
		// Reply for a session that was closed or replaced.
		return &a, nil
	}

	if msg.Skipped {
		a.closeSession()
		return &a, nil
	}

	a.panel.Settle()
	snap := a.session.Snapshot()
	a.panel.SetSnapshot(snap)

	var cmds []tea.Cmd
	if msg.Refresh {
		cmds = append(cmds, a.loadBlocks())
	}

	switch {
	case errors.Is(msg.Err, session.ErrClosed):
	case errors.Is(msg.Err, session.ErrBusy):
		a.status = "Still working on the previous request"
	case msg.Err != nil:
		a.logger.Warn().Err(msg.Err).Str("action", msg.Action).Msg("session action failed")
		a.status = fmt.Sprintf("%s failed: %v", msg.Action, msg.Err)
	default:
		a.status = a.successStatus(msg.Action, snap)
	}
	return &a, tea.Batch(cmds...)
}

func (a App) successStatus(action string, snap session.Snapshot) string {
	switch action {
	case actionSearch:
		return fmt.Sprintf("%d matches for %q", snap.Results.Len(), snap.Query)
	case actionPassage:
		return fmt.Sprintf("Shabad %s: %d lines", snap.Passage.ID, snap.Passage.Len())
	case actionInsert:
		return fmt.Sprintf("Inserted line under block (%d this session)", snap.Inserted)
	case actionInsertAll:
		return fmt.Sprintf("Inserted lines under block (%d this session)", snap.Inserted)
	case actionBack:
		return fmt.Sprintf("%d matches for %q", snap.Results.Len(), snap.Query)
	}
	return ""
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.showHelp {
		a.showHelp = false
		return &a, nil
	}

	// While filtering the page, every key belongs to the filter input.
	if !a.panel.IsActive() && a.pageView.IsFiltering() {
		var cmd tea.Cmd
		a.pageView, cmd = a.pageView.Update(msg)
		return &a, cmd
	}

	switch {
	case key.Matches(msg, ui.Keys.Quit):
		a.closeSession()
		return &a, tea.Quit
	case key.Matches(msg, ui.Keys.Help):
		a.showHelp = true
		return &a, nil
	case key.Matches(msg, ui.Keys.SearchText):
		return &a, a.invoke(model.ModeText)
	case key.Matches(msg, ui.Keys.SearchFuzzy):
		return &a, a.invoke(model.ModeFuzzy)
	case key.Matches(msg, ui.Keys.SearchFirstLetter):
		return &a, a.invoke(model.ModeFirstEachWord)
	}

	if !a.panel.IsActive() {
		var cmd tea.Cmd
		a.pageView, cmd = a.pageView.Update(msg)
		return &a, cmd
	}
	return a.handlePanelKey(msg)
}

func (a App) handlePanelKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := a.panel.Snapshot()

	switch {
	case key.Matches(msg, ui.Keys.Close):
		a.closeSession()
		a.status = "Search closed"
		return &a, nil

	case key.Matches(msg, ui.Keys.Insert):
		l, ok := a.panel.SelectedLine()
		if !ok {
			return &a, nil
		}
		ev := session.SelectLine{Index: a.panel.Cursor(), Shown: snap.State, Line: l}
		return &a, a.dispatch(actionInsert, ev, true)

	case key.Matches(msg, ui.Keys.ViewPassage):
		l, ok := a.panel.SelectedLine()
		if !ok || snap.State != session.StateResults {
			return &a, nil
		}
		a.status = fmt.Sprintf("Loading shabad %s...", l.ShabadID)
		return &a, a.dispatch(actionPassage, session.ViewPassage{ShabadID: l.ShabadID}, false)

	case key.Matches(msg, ui.Keys.InsertAll):
		n := len(snap.Lines())
		if n > 1 {
			what := "result"
			if snap.State == session.StatePassage {
				what = "shabad"
			}
			a.confirmDialog = confirm.New(
				"Insert all",
				fmt.Sprintf("Insert all %d %s lines under the current block?", n, what),
				actionInsertAll,
				snap.ID,
			)
			a.insertAllShown = snap.State
			return &a, nil
		}
		return &a, a.dispatch(actionInsertAll, session.InsertAll{Shown: snap.State}, true)

	case key.Matches(msg, ui.Keys.Back):
		if snap.State != session.StatePassage && snap.State != session.StateError {
			return &a, nil
		}
		return &a, a.dispatch(actionBack, session.Back{}, false)

	case key.Matches(msg, ui.Keys.Copy):
		if l, ok := a.panel.SelectedLine(); ok {
			return &a, copyCloze(l)
		}
		return &a, nil
	}

	var cmd tea.Cmd
	a.panel, cmd = a.panel.Update(msg)
	return &a, cmd
}

// panelOffset keeps the panel next to the anchor block without pushing it
// off screen.
func (a App) panelOffset(contentH int) int {
	if !a.panel.IsActive() {
		return 0
	}
	if a.anchorRow < 0 {
		return 0
	}
	return min(a.anchorRow, contentH/3)
}

func (a App) contentHeight() int {
	// header(1) + status(1) + pane borders(2)
	return max(a.height-4, 1)
}

func (a App) paneWidths() (int, int) {
	if !a.panel.IsActive() {
		return max(a.width-2, 1), 0
	}
	leftW := a.width * 45 / 100
	rightW := max(a.width-leftW-4, 1)
	return leftW, rightW
}

func (a *App) propagateSize() {
	contentH := a.contentHeight()
	leftW, rightW := a.paneWidths()

	a.pageView, _ = a.pageView.Update(
		tea.WindowSizeMsg{Width: leftW, Height: contentH})
	if rightW > 0 {
		a.panel, _ = a.panel.Update(
			tea.WindowSizeMsg{Width: rightW, Height: max(contentH-a.panelOffset(contentH), 1)})
	}
}

// --- View ---

func (a App) View() string {
	header := RenderHeader(a.page.Name(), a.server, a.width)
	contentH := a.contentHeight()
	leftW, rightW := a.paneWidths()

	var content string
	switch {
	case a.showHelp:
		content = a.renderHelp()
	case a.confirmDialog.IsActive():
		content = a.confirmDialog.View()
	case a.panel.IsActive():
		offset := a.panelOffset(contentH)
		left := ui.StylePane.Width(leftW).Height(contentH).Render(a.pageView.View())
		right := ui.StylePaneFocused.Width(rightW).Height(contentH - offset).
			MarginTop(offset).Render(a.panel.View())
		content = lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	default:
		content = ui.StylePaneFocused.Width(leftW).Height(contentH).Render(a.pageView.View())
	}

	statusBar := RenderStatusBar(a.status, a.contextHints(), a.width)

	// header(1) + statusbar(1) = 2 lines of chrome.
	maxContentLines := a.height - 2
	if maxContentLines > 0 {
		lines := strings.Split(content, "\n")
		if len(lines) > maxContentLines {
			lines = lines[:maxContentLines]
			content = strings.Join(lines, "\n")
		}
	}

	return header + "\n" + content + "\n" + statusBar
}

func (a App) contextHints() string {
	switch {
	case a.showHelp:
		return "any key: close help"
	case a.confirmDialog.IsActive():
		return "y/n: confirm  tab: toggle  esc: cancel"
	case a.panel.IsActive():
		return "j/k:navigate  enter:insert  v:view  A:insert all  b:back  y:copy  esc:close"
	case a.pageView.IsFiltering():
		return "enter:apply filter  esc:cancel"
	}
	return "t:text  f:fuzzy  w:first letter  /:filter  ?:help  q:quit"
}

func (a App) renderHelp() string {
	bold := lipgloss.NewStyle().Bold(true)
	key := lipgloss.NewStyle().Foreground(ui.ColorPrimary).Bold(true).Width(14)
	desc := lipgloss.NewStyle().Foreground(lipgloss.Color("#D1D5DB"))

	row := func(k, d string) string {
		return "  " + key.Render(k) + desc.Render(d) + "\n"
	}

	var b strings.Builder
	b.WriteString("\n" + bold.Render("  Page") + "\n\n")
	b.WriteString(row("j / k", "Move between blocks"))
	b.WriteString(row("/", "Filter blocks"))
	b.WriteString(row("t", model.ModeText.Label()))
	b.WriteString(row("f", model.ModeFuzzy.Label()))
	b.WriteString(row("w", model.ModeFirstEachWord.Label()))
	b.WriteString(row("q", "Quit"))

	b.WriteString("\n" + bold.Render("  Search panel") + "\n\n")
	b.WriteString(row("j / k", "Move between lines"))
	b.WriteString(row("enter / a", "Insert line under the block"))
	b.WriteString(row("v", "View the whole shabad"))
	b.WriteString(row("A", "Insert every listed line"))
	b.WriteString(row("b / bksp", "Back to results"))
	b.WriteString(row("y", "Copy line as cloze text"))
	b.WriteString(row("esc", "Close panel"))

	return b.String()
}
