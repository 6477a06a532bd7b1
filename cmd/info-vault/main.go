package main

// @title           info-vault API
// @version         1.0
// @description     Document ingestion API. Uploaded and connector-sourced documents are stored, parsed and fanned out to index backends.

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/thewatergategroups/info-vault/internal/config"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("info-vault exited", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "info-vault",
		Usage:   "Document ingestion service",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Aliases: []string{"e"},
				Usage:   "Path to a .env file (default: ./.env when present)",
				EnvVars: []string{"ENV_FILE"},
			},
		},
		// Without a subcommand the mode comes from RUN_MODE.
		Action: func(c *cli.Context) error {
			return run(c, "")
		},
		Commands: []*cli.Command{
			{
				Name:   config.ModeAPI,
				Usage:  "Serve the HTTP API (upload, documents, OAuth, health)",
				Action: func(c *cli.Context) error { return run(c, config.ModeAPI) },
			},
			{
				Name:   config.ModeWorker,
				Usage:  "Consume document notifications and feed index backends",
				Action: func(c *cli.Context) error { return run(c, config.ModeWorker) },
			},
			{
				Name:   config.ModeConnectors,
				Usage:  "Run Gmail and Drive sweeps against the ingestion API",
				Action: func(c *cli.Context) error { return run(c, config.ModeConnectors) },
			},
			{
				Name:   config.ModeAll,
				Usage:  "Run every component in one process",
				Action: func(c *cli.Context) error { return run(c, config.ModeAll) },
			},
		},
	}
}

func run(c *cli.Context, mode string) error {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return err
	}
	if mode != "" {
		cfg.RunMode = mode
	}

	logger := newLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("info-vault starting", "version", version, "mode", cfg.RunMode)

	coord, err := build(c.Context, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start %s mode: %w", cfg.RunMode, err)
	}
	return coord.Run(c.Context)
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
