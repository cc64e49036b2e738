package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/altinukshini/pankti/internal/config"
	"github.com/altinukshini/pankti/internal/gurbani"
	"github.com/altinukshini/pankti/internal/logging"
	"github.com/altinukshini/pankti/internal/session"
)

var version = "dev"

func init() {
	if version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
}

// Flags holds the global flags shared by every command.
type Flags struct {
	ConfigPath string
	LogLevel   string
	LogFile    string
	Server     string
}

// Env is what Before builds for the commands.
type Env struct {
	Config   config.Config
	Logger   zerolog.Logger
	Provider session.Provider
}

func main() {
	var (
		flags     = &Flags{}
		env       = &Env{}
		logCloser func()
	)

	app := &cli.Command{
		Name:      "pankti",
		Usage:     "Search Gurbani and insert lines into outline pages",
		UsageText: "pankti [global options] [command] [command options]",
		Description: `pankti talks to a Gurbani search server and inserts matching lines
into a Logseq style markdown page as cloze blocks.

Run 'pankti <page.md>' to open the page in the interactive view.
Run 'pankti search <query>' for a one-shot search.`,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("PANKTI_CONFIG"),
				Value:       config.DefaultPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("PANKTI_LOG_LEVEL"),
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <state-dir>/pankti/pankti.log)",
				Sources:     cli.EnvVars("PANKTI_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "server",
				Usage:       "search server base URL",
				Sources:     cli.EnvVars("PANKTI_SERVER"),
				Destination: &flags.Server,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			if flags.Server != "" {
				cfg.ServerURL = flags.Server
			}
			if flags.LogLevel != "" {
				cfg.LogLevel = flags.LogLevel
			}
			if flags.LogFile != "" {
				cfg.LogFile = flags.LogFile
			}
			if err := cfg.Validate(); err != nil {
				return ctx, fmt.Errorf("invalid config: %w", err)
			}

			logger, closer, err := logging.New(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			logCloser = closer

			client, err := gurbani.NewClient(cfg.ServerURL, cfg.Timeout,
				gurbani.WithLogger(logger.With().Str("component", "gurbani").Logger()))
			if err != nil {
				return ctx, fmt.Errorf("create search client: %w", err)
			}

			var provider session.Provider = client
			if cfg.PassageCacheSize > 0 {
				cached, err := gurbani.NewCachedProvider(client, cfg.PassageCacheSize)
				if err != nil {
					return ctx, fmt.Errorf("create passage cache: %w", err)
				}
				provider = cached
			}

			*env = Env{Config: *cfg, Logger: logger, Provider: provider}
			logger.Debug().Str("server", cfg.ServerURL).Str("version", version).Msg("pankti starting")
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	tuiCmd := NewTuiCmd(env)
	app = tuiCmd.Register(app)
	app = NewSearchCmd(env).Register(app)
	app = NewPassageCmd(env).Register(app)
	app.Action = tuiCmd.run

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
