package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsCollector/internal/domain"
)

const itemsTable = "collected_items"

var itemColumns = []string{
	domain.FieldID,
	domain.FieldSourceURL,
	domain.FieldSourceType,
	domain.FieldCollectedAt,
	domain.FieldTitle,
	domain.FieldLink,
	domain.FieldPublishedAt,
	domain.FieldSummary,
	domain.FieldContent,
	domain.FieldAuthor,
	domain.FieldCategories,
	domain.FieldTags,
	domain.FieldRelevanceScore,
	domain.FieldProcessingStatus,
	domain.FieldExtraData,
}

// SQLStore persists collected items in SQLite or PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	sb      sq.StatementBuilderType
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open database and makes sure the schema exists.
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	d, err := newDialect(driver)
	if err != nil {
		return nil, err
	}
	if err := d.initSchema(ctx, db); err != nil {
		return nil, err
	}
	return &SQLStore{db: db, dialect: d, sb: d.builder()}, nil
}

func (s *SQLStore) insertQuery(item domain.CollectedItem) (string, []any, error) {
	values, err := encodeItem(item)
	if err != nil {
		return "", nil, err
	}
	return s.sb.Insert(itemsTable).
		Columns(itemColumns...).
		Values(values...).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
}

func (s *SQLStore) Insert(ctx context.Context, item domain.CollectedItem) error {
	query, args, err := s.insertQuery(item)
	if err != nil {
		return err
	}

	var res sql.Result
	if err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert item rows affected: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *SQLStore) InsertMany(ctx context.Context, items []domain.CollectedItem) ([]domain.CollectedItem, error) {
	var accepted []domain.CollectedItem
	err := retryOnBusy(ctx, func() error {
		accepted = accepted[:0]
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin bulk insert: %w", err)
		}

		for _, item := range items {
			query, args, err := s.insertQuery(item)
			if err != nil {
				_ = tx.Rollback()
				return err
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("bulk insert %s: %w", item.ID, err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 1 {
				accepted = append(accepted, item.Clone())
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit bulk insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (domain.CollectedItem, error) {
	query, args, err := s.sb.Select(itemColumns...).
		From(itemsTable).
		Where(sq.Eq{domain.FieldID: id}).
		ToSql()
	if err != nil {
		return domain.CollectedItem{}, err
	}

	item, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CollectedItem{}, ErrNotFound
	}
	if err != nil {
		return domain.CollectedItem{}, fmt.Errorf("get item %s: %w", id, err)
	}
	return item, nil
}

func (s *SQLStore) List(ctx context.Context, filter Filter, limit, offset int) ([]domain.CollectedItem, error) {
	if limit < 0 {
		limit = math.MaxInt32
	}
	if offset < 0 {
		offset = 0
	}

	builder := s.sb.Select(itemColumns...).
		From(itemsTable).
		OrderBy("collected_at DESC", "id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset))
	if len(filter) > 0 {
		builder = builder.Where(s.dialect.where(filter))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []domain.CollectedItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return items, nil
}

func (s *SQLStore) Update(ctx context.Context, id string, patch domain.Patch) (domain.CollectedItem, error) {
	if len(patch) == 0 {
		return s.Get(ctx, id)
	}

	builder := s.sb.Update(itemsTable).Where(sq.Eq{domain.FieldID: id})
	for _, field := range patch.Fields() {
		value, err := encodeField(field, patch[field])
		if err != nil {
			return domain.CollectedItem{}, err
		}
		builder = builder.Set(field, value)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return domain.CollectedItem{}, err
	}

	var res sql.Result
	if err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return domain.CollectedItem{}, fmt.Errorf("update item %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.CollectedItem{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	query, args, err := s.sb.Delete(itemsTable).Where(sq.Eq{domain.FieldID: id}).ToSql()
	if err != nil {
		return err
	}

	var res sql.Result
	if err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ScanTitles(ctx context.Context, fn func(title string) bool) error {
	query, args, err := s.sb.Select(domain.FieldTitle).
		From(itemsTable).
		Where(sq.NotEq{domain.FieldTitle: ""}).
		ToSql()
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("scan titles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return fmt.Errorf("scan title: %w", err)
		}
		if !fn(title) {
			return nil
		}
	}
	return rows.Err()
}

// Close is a no-op; the database handle belongs to the Backend.
func (s *SQLStore) Close() error {
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func encodeItem(item domain.CollectedItem) ([]any, error) {
	categories, err := json.Marshal(nonNil(item.Categories))
	if err != nil {
		return nil, fmt.Errorf("encode categories: %w", err)
	}
	tags, err := json.Marshal(nonNil(item.Tags))
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	extra, err := encodeExtra(item.ExtraData)
	if err != nil {
		return nil, err
	}

	var published any
	if item.PublishedAt != nil {
		published = formatTime(*item.PublishedAt)
	}
	var score any
	if item.RelevanceScore != nil {
		score = *item.RelevanceScore
	}

	return []any{
		item.ID,
		item.SourceURL,
		string(item.SourceType),
		formatTime(item.CollectedAt),
		item.Title,
		item.Link,
		published,
		item.Summary,
		item.Content,
		item.Author,
		string(categories),
		string(tags),
		score,
		string(item.ProcessingStatus),
		extra,
	}, nil
}

func encodeField(field string, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return formatTime(v), nil
	case domain.SourceType:
		return string(v), nil
	case domain.ProcessingStatus:
		return string(v), nil
	case []string:
		encoded, err := json.Marshal(nonNil(v))
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", field, err)
		}
		return string(encoded), nil
	case map[string]any:
		return encodeExtra(v)
	default:
		return v, nil
	}
}

func encodeExtra(extra map[string]any) (string, error) {
	if extra == nil {
		return "{}", nil
	}
	encoded, err := json.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("encode extra_data: %w", err)
	}
	return string(encoded), nil
}

func scanItem(row rowScanner) (domain.CollectedItem, error) {
	var (
		item                    domain.CollectedItem
		sourceType, status      string
		collectedAt             string
		publishedAt             sql.NullString
		score                   sql.NullFloat64
		categories, tags, extra string
	)

	if err := row.Scan(
		&item.ID,
		&item.SourceURL,
		&sourceType,
		&collectedAt,
		&item.Title,
		&item.Link,
		&publishedAt,
		&item.Summary,
		&item.Content,
		&item.Author,
		&categories,
		&tags,
		&score,
		&status,
		&extra,
	); err != nil {
		return domain.CollectedItem{}, err
	}

	item.SourceType = domain.ParseSourceType(sourceType)
	item.ProcessingStatus = domain.ParseProcessingStatus(status)

	var err error
	if item.CollectedAt, err = parseTime(collectedAt); err != nil {
		return domain.CollectedItem{}, err
	}
	if publishedAt.Valid {
		t, err := parseTime(publishedAt.String)
		if err != nil {
			return domain.CollectedItem{}, err
		}
		item.PublishedAt = &t
	}
	if score.Valid {
		v := score.Float64
		item.RelevanceScore = &v
	}
	if err := json.Unmarshal([]byte(categories), &item.Categories); err != nil {
		return domain.CollectedItem{}, fmt.Errorf("decode categories: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
		return domain.CollectedItem{}, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(extra), &item.ExtraData); err != nil {
		return domain.CollectedItem{}, fmt.Errorf("decode extra_data: %w", err)
	}
	if len(item.ExtraData) == 0 {
		item.ExtraData = nil
	}
	item.Categories = nonNil(item.Categories)
	item.Tags = nonNil(item.Tags)
	return item, nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
