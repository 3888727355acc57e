package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// fixed width so text ordering matches time ordering
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

type dialect struct {
	driver string
}

func newDialect(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
		return dialect{driver: driver}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

func (d dialect) builder() sq.StatementBuilderType {
	if d.driver == DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

func (d dialect) schema() []string {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.driver == DriverPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS collected_items (
            id TEXT PRIMARY KEY,
            source_url TEXT NOT NULL,
            source_type TEXT NOT NULL,
            collected_at TEXT NOT NULL,
            title TEXT NOT NULL DEFAULT '',
            link TEXT NOT NULL DEFAULT '',
            published_at TEXT,
            summary TEXT NOT NULL DEFAULT '',
            content TEXT NOT NULL DEFAULT '',
            author TEXT NOT NULL DEFAULT '',
            categories TEXT NOT NULL DEFAULT '[]',
            tags TEXT NOT NULL DEFAULT '[]',
            relevance_score DOUBLE PRECISION,
            processing_status TEXT NOT NULL,
            extra_data TEXT NOT NULL DEFAULT '{}'
        )`,
		`CREATE INDEX IF NOT EXISTS idx_collected_items_order ON collected_items(collected_at DESC, id)`,
		`CREATE INDEX IF NOT EXISTS idx_collected_items_status ON collected_items(processing_status)`,
		`CREATE TABLE IF NOT EXISTS monitoring_logs (
            id ` + serial + `,
            task_name TEXT NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT,
            status TEXT NOT NULL,
            items_processed INTEGER NOT NULL DEFAULT 0,
            items_succeeded INTEGER NOT NULL DEFAULT 0,
            items_failed INTEGER NOT NULL DEFAULT 0,
            error_message TEXT,
            details TEXT
        )`,
		`CREATE INDEX IF NOT EXISTS idx_monitoring_logs_start ON monitoring_logs(start_time DESC)`,
	}
}

// listContains matches rows whose JSON array column holds value.
func (d dialect) listContains(column, value string) sq.Sqlizer {
	if d.driver == DriverPostgres {
		encoded, _ := json.Marshal([]string{value})
		return sq.Expr(column+"::jsonb @> ?::jsonb", string(encoded))
	}
	return sq.Expr("EXISTS (SELECT 1 FROM json_each("+column+") WHERE json_each.value = ?)", value)
}

// extraEquals compares the text form of one scalar extra_data value.
// Booleans read as true/false and numbers as their decimal text, matching
// domain.ScalarString; objects, arrays and null never match.
func (d dialect) extraEquals(key, value string) sq.Sqlizer {
	if d.driver == DriverPostgres {
		return sq.Expr(`(CASE WHEN jsonb_typeof(extra_data::jsonb -> ?::text) IN ('string', 'number', 'boolean')
            THEN extra_data::jsonb ->> ?::text END) = ?`, key, key, value)
	}
	path := "$." + strconv.Quote(key)
	return sq.Expr(`(CASE json_type(extra_data, ?)
            WHEN 'true' THEN 'true'
            WHEN 'false' THEN 'false'
            WHEN 'integer' THEN CAST(json_extract(extra_data, ?) AS TEXT)
            WHEN 'real' THEN CAST(json_extract(extra_data, ?) AS TEXT)
            WHEN 'text' THEN json_extract(extra_data, ?)
        END) = ?`, path, path, path, path, value)
}

func (d dialect) where(filter Filter) sq.And {
	conds := sq.And{}
	for _, c := range filter {
		switch c.kind {
		case condContains:
			conds = append(conds, d.listContains(c.Field, c.Value.(string)))
		case condExtra:
			conds = append(conds, d.extraEquals(c.Key, c.Value.(string)))
		case condNever:
			conds = append(conds, sq.Expr("1 = 0"))
		default:
			conds = append(conds, sq.Eq{c.Field: c.Value})
		}
	}
	return conds
}

func (d dialect) initSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range d.schema() {
		if err := retryOnBusy(ctx, func() error {
			_, err := db.ExecContext(ctx, stmt)
			return err
		}); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}
