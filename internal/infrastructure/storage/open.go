package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"NewsCollector/internal/config"
)

// Backend groups the item store and the monitoring log that share one database.
type Backend struct {
	Items Store
	Runs  RunLogStore
	db    *sql.DB
}

// Open connects the configured driver and prepares its schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Backend, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverSQLite
	}

	switch driver {
	case DriverMemory:
		logger.Info("using in-memory storage")
		return &Backend{Items: NewMemoryStore(), Runs: NewMemoryRunLog()}, nil
	case DriverSQLite:
		return openSQLite(ctx, cfg.DSN, logger)
	case DriverPostgres:
		return openPostgres(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openSQLite(ctx context.Context, path string, logger *slog.Logger) (*Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one connection keeps the pragmas and serializes writers inside the process
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	backend, err := newSQLBackend(ctx, db, DriverSQLite)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("opened sqlite storage", "path", path)
	return backend, nil
}

func openPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Backend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	backend, err := newSQLBackend(ctx, db, DriverPostgres)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("opened postgres storage")
	return backend, nil
}

func newSQLBackend(ctx context.Context, db *sql.DB, driver string) (*Backend, error) {
	items, err := NewSQLStore(ctx, db, driver)
	if err != nil {
		return nil, err
	}
	runs, err := NewSQLRunLog(db, driver)
	if err != nil {
		return nil, err
	}
	return &Backend{Items: items, Runs: runs, db: db}, nil
}

// Close releases the database handle.
func (b *Backend) Close() error {
	if b == nil {
		return nil
	}
	if err := b.Items.Close(); err != nil {
		return err
	}
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
