// Command peerquote asks the peers listed in the on-chain directory for a
// price on a token pair and reports the best one. It loads configuration,
// validates it, wires dependencies, sets up signal handling, and runs either
// a single query or the API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/peerquote/internal/app"
	"github.com/alanyoungcy/peerquote/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file (empty for defaults and env only)")
	mode := flag.String("mode", "", "override mode: query or server")
	side := flag.String("side", "", "override query side: buy or sell")
	kind := flag.String("kind", "", "override query kind: quote or order")
	amount := flag.String("amount", "", "override query amount, in whole tokens")
	of := flag.String("of", "", "override the token bought or sold")
	forToken := flag.String("for", "", "override the token paid or received")
	flag.Parse()

	// Logs go to stderr so query output on stdout stays clean.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Command-line flags win over the file and the environment.
	override(&cfg.Mode, *mode)
	override(&cfg.Query.Side, *side)
	override(&cfg.Query.Kind, *kind)
	override(&cfg.Query.Amount, *amount)
	override(&cfg.Query.Of, *of)
	override(&cfg.Query.For, *forToken)

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("peerquote starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	// Create the application.
	application := app.New(cfg, logger)

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	// Run the application.
	err = application.Run(ctx)
	stop()
	application.Close()
	if err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("peerquote stopped")
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
