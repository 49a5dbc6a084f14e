package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/kvault/internal"
	"github.com/starford/kvault/internal/render"
	pkgconfig "github.com/starford/kvault/pkg/config"
)

const appName = "kvault"

// loadApp resolves the configuration from the global flags and wires the
// application.
func loadApp(cmd *cli.Command) (*internal.App, error) {
	configPath := cmd.String("config")
	if configPath == "" {
		configPath = pkgconfig.DefaultPath(appName)
	}

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(pkgconfig.ExpandTilde(configPath), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if roots := cmd.StringSlice("root"); len(roots) > 0 {
		cfg.Corpus.Paths = roots
	}
	if cmd.IsSet("log-level") {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cmd.String("log-level"), err)
		}
		cfg.App.LogLevel = lvl
	}

	app, err := internal.New(internal.WithConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("app init error: %w", err)
	}
	return app, nil
}

func main() {
	cmd := &cli.Command{
		Name:  appName,
		Usage: "Personal knowledge corpus with plain and ranked search across multiple roots",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "Path to config file (TOML or YAML)",
				DefaultText: "$XDG_CONFIG_HOME/kvault/config.toml",
				Sources:     cli.EnvVars("KVAULT_CONFIG"),
			},
			&cli.StringSliceFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Corpus root, repeatable; overrides corpus.paths",
				Sources: cli.EnvVars("KVAULT_ROOTS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Set logging level (debug, info, warn, error)",
				Sources: cli.EnvVars("KVAULT_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			searchCommand(),
			listCommand(),
			addCommand(),
			getCommand(),
			indexCommand(),
			initCommand(),
			serveCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		render.Auto().Error(err)
		stop()
		os.Exit(1)
	}
}
