package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsCollector/internal/domain"
)

const runLogTable = "monitoring_logs"

var runLogColumns = []string{
	"id", "task_name", "start_time", "end_time", "status",
	"items_processed", "items_succeeded", "items_failed", "error_message", "details",
}

// RunLogStore records the start and end of task runs.
type RunLogStore interface {
	LogStart(ctx context.Context, task string) (int64, error)
	LogEnd(ctx context.Context, id int64, outcome domain.RunOutcome) error
	Recent(ctx context.Context, limit int) ([]domain.RunLog, error)
}

// SQLRunLog keeps monitoring entries in the monitoring_logs table.
type SQLRunLog struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

var _ RunLogStore = (*SQLRunLog)(nil)

// NewSQLRunLog expects the schema created by NewSQLStore on the same database.
func NewSQLRunLog(db *sql.DB, driver string) (*SQLRunLog, error) {
	d, err := newDialect(driver)
	if err != nil {
		return nil, err
	}
	return &SQLRunLog{db: db, sb: d.builder(), now: time.Now}, nil
}

func (r *SQLRunLog) LogStart(ctx context.Context, task string) (int64, error) {
	query, args, err := r.sb.Insert(runLogTable).
		Columns("task_name", "start_time", "status").
		Values(task, formatTime(r.now()), string(domain.RunStarted)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := retryOnBusy(ctx, func() error {
		return r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}); err != nil {
		return 0, fmt.Errorf("log start %s: %w", task, err)
	}
	return id, nil
}

func (r *SQLRunLog) LogEnd(ctx context.Context, id int64, outcome domain.RunOutcome) error {
	builder := r.sb.Update(runLogTable).
		Set("end_time", formatTime(r.now())).
		Set("status", string(outcome.Status)).
		Set("items_processed", outcome.Processed).
		Set("items_succeeded", outcome.Succeeded).
		Set("items_failed", outcome.Failed).
		Where(sq.Eq{"id": id})
	if outcome.ErrorMessage != "" {
		builder = builder.Set("error_message", outcome.ErrorMessage)
	}
	if outcome.Details != nil {
		encoded, err := json.Marshal(outcome.Details)
		if err != nil {
			return fmt.Errorf("encode run details: %w", err)
		}
		builder = builder.Set("details", string(encoded))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}

	var res sql.Result
	if err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = r.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return fmt.Errorf("log end %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRunLog) Recent(ctx context.Context, limit int) ([]domain.RunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	query, args, err := r.sb.Select(runLogColumns...).
		From(runLogTable).
		OrderBy("start_time DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var logs []domain.RunLog
	for rows.Next() {
		var (
			entry            domain.RunLog
			start, status    string
			end, msg, detail sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.TaskName, &start, &end, &status,
			&entry.ItemsProcessed, &entry.ItemsSucceeded, &entry.ItemsFailed, &msg, &detail); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if entry.StartTime, err = parseTime(start); err != nil {
			return nil, err
		}
		if end.Valid {
			t, err := parseTime(end.String)
			if err != nil {
				return nil, err
			}
			entry.EndTime = &t
		}
		entry.Status = domain.ParseRunStatus(status)
		entry.ErrorMessage = msg.String
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("decode run details: %w", err)
			}
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// MemoryRunLog is the in-process RunLogStore.
type MemoryRunLog struct {
	mu     sync.Mutex
	nextID int64
	logs   map[int64]domain.RunLog
	now    func() time.Time
}

var _ RunLogStore = (*MemoryRunLog)(nil)

func NewMemoryRunLog() *MemoryRunLog {
	return &MemoryRunLog{logs: map[int64]domain.RunLog{}, now: time.Now}
}

func (m *MemoryRunLog) LogStart(ctx context.Context, task string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.logs[m.nextID] = domain.RunLog{
		ID:        m.nextID,
		TaskName:  task,
		StartTime: m.now().UTC(),
		Status:    domain.RunStarted,
	}
	return m.nextID, nil
}

func (m *MemoryRunLog) LogEnd(ctx context.Context, id int64, outcome domain.RunOutcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.logs[id]
	if !ok {
		return ErrNotFound
	}
	end := m.now().UTC()
	entry.EndTime = &end
	entry.Status = outcome.Status
	entry.ItemsProcessed = outcome.Processed
	entry.ItemsSucceeded = outcome.Succeeded
	entry.ItemsFailed = outcome.Failed
	if outcome.ErrorMessage != "" {
		entry.ErrorMessage = outcome.ErrorMessage
	}
	if outcome.Details != nil {
		entry.Details = maps.Clone(outcome.Details)
	}
	m.logs[id] = entry
	return nil
}

func (m *MemoryRunLog) Recent(ctx context.Context, limit int) ([]domain.RunLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	m.mu.Lock()
	logs := make([]domain.RunLog, 0, len(m.logs))
	for _, entry := range m.logs {
		if entry.Details != nil {
			entry.Details = maps.Clone(entry.Details)
		}
		logs = append(logs, entry)
	}
	m.mu.Unlock()

	sort.Slice(logs, func(i, j int) bool {
		if !logs[i].StartTime.Equal(logs[j].StartTime) {
			return logs[i].StartTime.After(logs[j].StartTime)
		}
		return logs[i].ID > logs[j].ID
	})
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
