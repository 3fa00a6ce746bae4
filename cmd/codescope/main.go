package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/dshills/codescope/internal/config"
	"github.com/dshills/codescope/internal/mcp"
	"github.com/dshills/codescope/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.VersionPrinter = func(cmd *cli.Command) {
		fmt.Fprintf(cmd.Root().Writer, "codescope %s\n", version)
		fmt.Fprintf(cmd.Root().Writer, "Build Time: %s\n", buildTime)
		fmt.Fprintf(cmd.Root().Writer, "Build Mode: %s\n", storage.BuildMode)
		fmt.Fprintf(cmd.Root().Writer, "SQLite Driver: %s\n", storage.DriverName)
		fmt.Fprintf(cmd.Root().Writer, "Vector Extension: %v\n", storage.VectorExtensionAvailable)
	}

	cmd := &cli.Command{
		Name:    "codescope",
		Usage:   "Codebase indexer & semantic search for AI coding agents",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log at debug level",
			},
			&cli.StringFlag{
				Name:    "provider",
				Usage:   "Embedding provider: local, openai or jina",
				Sources: cli.EnvVars("CODESCOPE_PROVIDER"),
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Embedding model name",
			},
			&cli.StringFlag{
				Name:      "global-config",
				Usage:     "Path to the global config file",
				TakesFile: true,
				Sources:   cli.EnvVars("CODESCOPE_GLOBAL_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			indexCommand(),
			reindexFileCommand(),
			searchCommand(),
			statusCommand(),
			sessionCommand(),
			watchCommand(),
			serveCommand(),
			initCommand(),
			configCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("codescope error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// globalPath returns --global-config or ~/.codescope/config.yaml.
func globalPath(cmd *cli.Command) (string, error) {
	if p := cmd.String("global-config"); p != "" {
		return p, nil
	}
	return config.DefaultGlobalPath()
}

// resolve builds the effective config for root and the logger it asks for.
// Logs go to stderr; stdout carries command output and the MCP protocol.
func resolve(cmd *cli.Command, root string, nResults int) (*config.Config, *slog.Logger, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%s is not a directory", abs)
	}

	gp, err := globalPath(cmd)
	if err != nil {
		return nil, nil, err
	}

	o := config.Overrides{
		Provider: cmd.String("provider"),
		Model:    cmd.String("model"),
		NResults: nResults,
	}
	if cmd.Bool("verbose") {
		level := slog.LevelDebug
		o.LogLevel = &level
	}

	cfg, err := config.Resolve(abs, gp, o)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the MCP server on stdio",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Default project root",
				Value: ".",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := resolve(cmd, cmd.String("path"), 0)
			if err != nil {
				return err
			}
			gp, err := globalPath(cmd)
			if err != nil {
				return err
			}

			logger.Info("codescope MCP server starting",
				slog.String("version", version),
				slog.String("build_mode", storage.BuildMode),
				slog.String("driver", storage.DriverName),
				slog.Bool("vector_extension", storage.VectorExtensionAvailable))

			srv, err := mcp.NewServer(mcp.Options{
				Root:       cfg.Root,
				GlobalPath: gp,
				Overrides: config.Overrides{
					Provider: cmd.String("provider"),
					Model:    cmd.String("model"),
				},
				Logger: logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			if err := srv.Serve(ctx); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("server stopped")
			return nil
		},
	}
}
