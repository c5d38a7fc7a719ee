// One-shot batch import of the Ubiflow XML export.
//
// Usage: import [source], where source is a file path or http(s) URL. It
// falls back to the FEED_SOURCE env var, then to export.xml.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-envconfig"
	_ "modernc.org/sqlite"

	"github.com/CharlT24/social-immo/internal/feed"
	"github.com/CharlT24/social-immo/internal/logger"
	"github.com/CharlT24/social-immo/internal/migrations"
	immoqlite "github.com/CharlT24/social-immo/internal/sqlite"
)

type config struct {
	Database   string `env:"DATABASE, required"`
	FeedSource string `env:"FEED_SOURCE, default=export.xml"`

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
	if len(os.Args) > 1 {
		cfg.FeedSource = os.Args[1]
	}

	// Determine which logger format to use
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if cfg.LoggerFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	l := slog.New(logger.NewContextHandler(handler))
	slog.SetDefault(l)

	if err := runImport(ctx, cfg); err != nil {
		slog.Error("error importing", "error", err)
		os.Exit(1)
	}
}

func runImport(ctx context.Context, cfg config) error {
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

	importer := feed.NewImporter(immoqlite.New(dbx))
	result, err := importer.Run(ctx, cfg.FeedSource)
	if err != nil {
		return err
	}

	fmt.Printf("import finished: %d created, %d updated, %d errors\n",
		result.Created, result.Updated, result.Errors)

	return nil
}
