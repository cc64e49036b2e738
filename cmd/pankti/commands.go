package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cli/go-gh/v2/pkg/tableprinter"
	"github.com/cli/go-gh/v2/pkg/term"
	"github.com/urfave/cli/v3"

	"github.com/altinukshini/pankti/internal/model"
	"github.com/altinukshini/pankti/internal/page"
	"github.com/altinukshini/pankti/internal/tui"
)

type TuiCmd struct {
	env *Env
}

func NewTuiCmd(env *Env) *TuiCmd {
	return &TuiCmd{env: env}
}

// Register adds the tui command. It is also the root action.
func (cmd *TuiCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "tui",
		Usage:     "Open a page in the interactive view",
		UsageText: "pankti tui <page.md>",
		Description: `Lists the blocks of the page. Select a block and press t, f or w to
search its text; chosen lines are inserted as child blocks and the page is
saved after every insertion.`,
		Action: cmd.run,
	})
	return app
}

func (cmd *TuiCmd) run(ctx context.Context, c *cli.Command) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("usage: pankti [tui] <page.md>")
	}

	pg, err := page.Load(path)
	if err != nil {
		return err
	}
	cmd.env.Logger.Info().Str("page", path).Int("blocks", pg.Len()).Msg("page opened")

	app := tui.NewApp(cmd.env.Config, pg, cmd.env.Provider, cmd.env.Logger)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// outputFlags are shared by the one-shot commands.
type outputFlags struct {
	json  bool
	cloze bool
}

func (o *outputFlags) cliFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "print lines as JSON",
			Destination: &o.json,
		},
		&cli.BoolFlag{
			Name:        "cloze",
			Usage:       "print each line as the text that would be inserted",
			Destination: &o.cloze,
		},
	}
}

type SearchCmd struct {
	env *Env

	// flags
	mode string
	out  outputFlags
}

func NewSearchCmd(env *Env) *SearchCmd {
	return &SearchCmd{env: env}
}

func (cmd *SearchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "search",
		Usage:     "Search the server once and print the matches",
		UsageText: "pankti search [--mode text|fuzzy|first_each_word] [--json|--cloze] <query...>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "mode",
				Aliases:     []string{"m"},
				Usage:       "search mode (defaults to default_mode from config)",
				Destination: &cmd.mode,
			},
		}, cmd.out.cliFlags()...),
		Action: cmd.run,
	})
	return app
}

func (cmd *SearchCmd) run(ctx context.Context, c *cli.Command) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("search: query is required")
	}

	mode := cmd.env.Config.DefaultMode
	if cmd.mode != "" {
		m, err := model.ParseMode(cmd.mode)
		if err != nil {
			return err
		}
		mode = m
	}

	rs, err := cmd.env.Provider.Search(ctx, query, mode)
	if err != nil {
		return err
	}
	if len(rs.Lines) == 0 && !cmd.out.json {
		fmt.Fprintln(os.Stderr, "No matches found")
		return nil
	}
	return writeLines(c.Root().Writer, rs.Lines, cmd.out)
}

type PassageCmd struct {
	env *Env

	// flags
	out outputFlags
}

func NewPassageCmd(env *Env) *PassageCmd {
	return &PassageCmd{env: env}
}

func (cmd *PassageCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "passage",
		Aliases:   []string{"shabad"},
		Usage:     "Print every line of a shabad",
		UsageText: "pankti passage [--json|--cloze] <shabad-id>",
		Flags:     cmd.out.cliFlags(),
		Action:    cmd.run,
	})
	return app
}

func (cmd *PassageCmd) run(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("passage: shabad id is required")
	}

	p, err := cmd.env.Provider.Passage(ctx, id)
	if err != nil {
		return err
	}
	return writeLines(c.Root().Writer, p.Lines, cmd.out)
}

// writeLines prints lines in the requested format. Tables are sized to the
// terminal when stdout is one.
func writeLines(w io.Writer, lines []model.LineMatch, out outputFlags) error {
	switch {
	case out.json:
		if lines == nil {
			lines = []model.LineMatch{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(lines)
	case out.cloze:
		for _, l := range lines {
			if _, err := fmt.Fprintln(w, model.FormatCloze(l)); err != nil {
				return err
			}
		}
		return nil
	}

	t := term.FromEnv()
	isTTY := w == os.Stdout && t.IsTerminalOutput()
	width := 0
	if isTTY {
		if cols, _, err := t.Size(); err == nil {
			width = cols
		}
	}
	return writeTable(w, isTTY, width, lines)
}

func writeTable(w io.Writer, isTTY bool, width int, lines []model.LineMatch) error {
	tp := tableprinter.New(w, isTTY, width)
	tp.AddHeader([]string{"#", "GURMUKHI", "TRANSLITERATION", "SOURCE", "SHABAD"})
	for i, l := range lines {
		tp.AddField(fmt.Sprintf("%d", i+1))
		tp.AddField(l.Punjabi)
		tp.AddField(l.Translit)
		tp.AddField(l.Attributes)
		tp.AddField(l.ShabadID)
		tp.EndRow()
	}
	return tp.Render()
}
