package storage

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsCollector/internal/domain"
	"NewsCollector/internal/ports"
	"NewsCollector/internal/similarity"
)

const defaultPageSize = 100

// Repository enforces identity and duplicate rules on top of a Store.
// Backend failures are logged and reported as nil, false or empty results.
type Repository struct {
	store     Store
	logger    *slog.Logger
	threshold float64
	now       func() time.Time
}

var _ ports.ItemRepository = (*Repository)(nil)

// NewRepository wires a store. A threshold outside (0,1] falls back to similarity.DefaultThreshold.
func NewRepository(store Store, threshold float64, logger *slog.Logger) *Repository {
	if threshold <= 0 || threshold > 1 {
		threshold = similarity.DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		store:     store,
		logger:    logger.With("component", "repository"),
		threshold: threshold,
		now:       time.Now,
	}
}

// Save persists a new item unless it duplicates a stored title or id.
func (r *Repository) Save(ctx context.Context, item domain.CollectedItem, opts domain.SaveOptions) *domain.CollectedItem {
	item = item.Clone()
	if strings.TrimSpace(item.SourceURL) == "" {
		r.logger.Warn("rejecting item without source_url", "id", item.ID, "title", item.Title)
		return nil
	}
	r.prepare(&item)

	if !opts.SkipDuplicateCheck {
		if strings.TrimSpace(item.Title) == "" {
			r.logger.Warn("item has no title, skipping duplicate check", "id", item.ID)
		} else {
			threshold := opts.Threshold
			if threshold <= 0 {
				threshold = r.threshold
			}
			match, err := r.findSimilarTitle(ctx, item.Title, threshold)
			if err != nil {
				r.logger.Error("duplicate check failed", "id", item.ID, "error", err)
				return nil
			}
			if match != "" {
				r.logger.Info("duplicate title rejected", "title", item.Title, "existing", match, "threshold", threshold)
				return nil
			}
		}
	}

	if err := r.store.Insert(ctx, item); err != nil {
		if errors.Is(err, ErrConflict) {
			r.logger.Warn("item id already stored", "id", item.ID)
			return nil
		}
		r.logger.Error("save item failed", "id", item.ID, "error", err)
		return nil
	}

	r.logger.Debug("item saved", "id", item.ID, "title", item.Title)
	return &item
}

// SaveBulk stores every item whose id is new to the batch and to the store.
// Title similarity is not checked.
func (r *Repository) SaveBulk(ctx context.Context, items []domain.CollectedItem) []domain.CollectedItem {
	seen := make(map[string]struct{}, len(items))
	batch := make([]domain.CollectedItem, 0, len(items))
	for _, item := range items {
		item = item.Clone()
		if strings.TrimSpace(item.SourceURL) == "" {
			r.logger.Warn("bulk save skipped item without source_url", "id", item.ID)
			continue
		}
		r.prepare(&item)
		if _, dup := seen[item.ID]; dup {
			r.logger.Debug("bulk save skipped repeated id", "id", item.ID)
			continue
		}
		seen[item.ID] = struct{}{}
		batch = append(batch, item)
	}
	if len(batch) == 0 {
		return []domain.CollectedItem{}
	}

	accepted, err := r.store.InsertMany(ctx, batch)
	if err != nil {
		r.logger.Error("bulk save failed", "items", len(batch), "error", err)
		return []domain.CollectedItem{}
	}
	if skipped := len(batch) - len(accepted); skipped > 0 {
		r.logger.Info("bulk save skipped stored ids", "skipped", skipped)
	}
	return accepted
}

// GetByID returns nil when the item does not exist.
func (r *Repository) GetByID(ctx context.Context, id string) *domain.CollectedItem {
	item, err := r.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Error("get item failed", "id", id, "error", err)
		}
		return nil
	}
	return &item
}

// GetAll pages through items, newest first.
func (r *Repository) GetAll(ctx context.Context, limit, skip int) []domain.CollectedItem {
	return r.list(ctx, nil, limit, skip)
}

// Find filters by exact field values. Unknown keys are ignored and logged;
// a known key with an unusable value makes the result empty.
func (r *Repository) Find(ctx context.Context, query map[string]any, limit, skip int) []domain.CollectedItem {
	filter, ignored := BuildFilter(query)
	if len(ignored) > 0 {
		r.logger.Warn("find ignores unsupported query keys", "keys", ignored)
	}
	if bad := filter.Unmatchable(); len(bad) > 0 {
		r.logger.Warn("find query values have unsupported types, nothing can match", "keys", bad)
		return []domain.CollectedItem{}
	}
	return r.list(ctx, filter, limit, skip)
}

func (r *Repository) list(ctx context.Context, filter Filter, limit, skip int) []domain.CollectedItem {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if skip < 0 {
		skip = 0
	}
	items, err := r.store.List(ctx, filter, limit, skip)
	if err != nil {
		r.logger.Error("list items failed", "error", err)
		return []domain.CollectedItem{}
	}
	return items
}

// Update applies the recognized fields and returns the stored result, or nil if id is unknown.
func (r *Repository) Update(ctx context.Context, id string, fields map[string]any) *domain.CollectedItem {
	patch, dropped := domain.ParsePatch(fields)
	if len(dropped) > 0 {
		r.logger.Debug("update dropped fields", "id", id, "fields", dropped)
	}

	item, err := r.store.Update(ctx, id, patch)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Error("update item failed", "id", id, "error", err)
		}
		return nil
	}
	return &item
}

// Delete reports whether a record was removed.
func (r *Repository) Delete(ctx context.Context, id string) bool {
	if err := r.store.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Error("delete item failed", "id", id, "error", err)
		}
		return false
	}
	return true
}

// CheckTitleExists scans stored titles for one at least threshold-similar to title.
func (r *Repository) CheckTitleExists(ctx context.Context, title string, threshold float64) bool {
	if strings.TrimSpace(title) == "" {
		return false
	}
	if threshold <= 0 {
		threshold = r.threshold
	}
	match, err := r.findSimilarTitle(ctx, title, threshold)
	if err != nil {
		r.logger.Error("title scan failed", "error", err)
		return false
	}
	return match != ""
}

func (r *Repository) findSimilarTitle(ctx context.Context, title string, threshold float64) (string, error) {
	var match string
	err := r.store.ScanTitles(ctx, func(existing string) bool {
		if similarity.IsDuplicate(title, existing, threshold) {
			match = existing
			return false
		}
		return true
	})
	return match, err
}

func (r *Repository) prepare(item *domain.CollectedItem) {
	if strings.TrimSpace(item.ID) == "" {
		item.ID = uuid.NewString()
	}
	item.Normalize(r.now().UTC())
}
