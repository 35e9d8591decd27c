// Command ments serves the blog, the admin back office and the newsletter
// dispatcher.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/eringen/ments"
	"github.com/eringen/ments/views"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("ments", flag.ContinueOnError)
	addr := fs.StringP("addr", "a", "", "listen address (overrides MENTS_ADDR)")
	envFile := fs.String("env-file", ".env", "dotenv file to load when present")
	showVersion := fs.BoolP("version", "v", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Printf("ments %s\n", version)
		return nil
	}

	// Load .env if present (development)
	_ = godotenv.Load(*envFile)

	cfg, err := ments.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := ments.New(cfg, views.New(cfg), ments.WithLogger(logger))
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("closing app", "error", err)
		}
	}()

	logger.Info("starting ments", "version", version, "db", cfg.DatabasePath, "async_newsletter", cfg.NewsletterAsync)
	return app.Start(ctx)
}

func newLogger(cfg ments.SiteConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
