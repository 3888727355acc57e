package storage

import (
	"context"
	"sort"
	"sync"

	"NewsCollector/internal/domain"
)

// MemoryStore keeps items in a map; intended for tests and ephemeral runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]domain.CollectedItem
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]domain.CollectedItem{}}
}

func (m *MemoryStore) Insert(ctx context.Context, item domain.CollectedItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[item.ID]; exists {
		return ErrConflict
	}
	m.items[item.ID] = item.Clone()
	return nil
}

func (m *MemoryStore) InsertMany(ctx context.Context, items []domain.CollectedItem) ([]domain.CollectedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	accepted := make([]domain.CollectedItem, 0, len(items))
	for _, item := range items {
		if _, exists := m.items[item.ID]; exists {
			continue
		}
		m.items[item.ID] = item.Clone()
		accepted = append(accepted, item.Clone())
	}
	return accepted, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (domain.CollectedItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.CollectedItem{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return domain.CollectedItem{}, ErrNotFound
	}
	return item.Clone(), nil
}

func (m *MemoryStore) List(ctx context.Context, filter Filter, limit, offset int) ([]domain.CollectedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	matched := make([]domain.CollectedItem, 0, len(m.items))
	for _, item := range m.items {
		if filter.Matches(item) {
			matched = append(matched, item)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CollectedAt.Equal(b.CollectedAt) {
			return a.CollectedAt.After(b.CollectedAt)
		}
		return a.ID < b.ID
	})

	if offset >= len(matched) {
		return []domain.CollectedItem{}, nil
	}
	end := len(matched)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}

	page := make([]domain.CollectedItem, 0, end-offset)
	for _, item := range matched[offset:end] {
		page = append(page, item.Clone())
	}
	return page, nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, patch domain.Patch) (domain.CollectedItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.CollectedItem{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return domain.CollectedItem{}, ErrNotFound
	}
	item = item.Clone()
	patch.Apply(&item)
	m.items[id] = item
	return item.Clone(), nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryStore) ScanTitles(ctx context.Context, fn func(title string) bool) error {
	m.mu.RLock()
	titles := make([]string, 0, len(m.items))
	for _, item := range m.items {
		if item.Title != "" {
			titles = append(titles, item.Title)
		}
	}
	m.mu.RUnlock()

	for _, title := range titles {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(title) {
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
