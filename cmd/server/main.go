// The API server for the listing site.
//
// It serves the public browse/filter routes, comments and favorites, and
// the staff dashboard with its re-import trigger.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/run"
	"github.com/sethvargo/go-envconfig"
	_ "modernc.org/sqlite"

	"github.com/CharlT24/social-immo/internal/api"
	"github.com/CharlT24/social-immo/internal/feed"
	"github.com/CharlT24/social-immo/internal/logger"
	"github.com/CharlT24/social-immo/internal/migrations"
	immoqlite "github.com/CharlT24/social-immo/internal/sqlite"
)

type config struct {
	Database   string `env:"DATABASE, required"`
	Port       int    `env:"PORT, default=4444"`
	FeedSource string `env:"FEED_SOURCE, default=export.xml"`

	HTTPSCookies   bool   `env:"HTTPS_COOKIES, default=false"`
	CookieHashKey  string `env:"COOKIE_HASH_KEY"`
	CookieBlockKey string `env:"COOKIE_BLOCK_KEY"`
	CorsHeader     string `env:"CORS_HEADER, default=http://localhost:3000"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	// Determine which logger format to use
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if cfg.LoggerFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	l := slog.New(logger.NewContextHandler(handler))
	slog.SetDefault(l)

	if err := serve(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config) error {
	// Connect to the sqlite db; cascades need foreign keys switched on
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Database)
	dbx, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("error opening database: %s", err)
	}
	defer dbx.Close()

	// Migrate, always
	if err := migrations.Run(dbx); err != nil {
		return fmt.Errorf("error migrating: %s", err)
	}

	repo := immoqlite.New(dbx)
	importer := feed.NewImporter(repo)
	srvr := api.NewServer(api.ServerConfig{
		Port:           cfg.Port,
		CookieHashKey:  []byte(cfg.CookieHashKey),
		CookieBlockKey: []byte(cfg.CookieBlockKey),
		HttpsCookies:   cfg.HTTPSCookies,
		CorsHeader:     cfg.CorsHeader,
		FeedSource:     cfg.FeedSource,
	}, repo, importer)

	var g run.Group
	g.Add(func() error {
		slog.Info("serving", "port", cfg.Port)
		if err := srvr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}

		return nil
	}, func(error) {
		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srvr.Shutdown(downCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}
	})
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	sigErr := &run.SignalError{}
	if err := g.Run(); err != nil && !errors.As(err, &sigErr) {
		return fmt.Errorf("error running: %s", err)
	}

	return nil
}
