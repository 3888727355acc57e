package storage

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"

	"NewsCollector/internal/domain"
)

var (
	// ErrConflict is returned when an item id is already stored.
	ErrConflict = errors.New("item id already exists")
	// ErrNotFound is returned when no record matches an id.
	ErrNotFound = errors.New("record not found")
)

// Store is the primitive persistence contract shared by the memory and SQL backends.
// Implementations must make Insert atomic with respect to id uniqueness and
// return items ordered by collected_at descending, then id ascending.
type Store interface {
	Insert(ctx context.Context, item domain.CollectedItem) error
	InsertMany(ctx context.Context, items []domain.CollectedItem) ([]domain.CollectedItem, error)
	Get(ctx context.Context, id string) (domain.CollectedItem, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]domain.CollectedItem, error)
	Update(ctx context.Context, id string, patch domain.Patch) (domain.CollectedItem, error)
	Delete(ctx context.Context, id string) error
	// ScanTitles calls fn for every non-empty stored title until fn returns false.
	ScanTitles(ctx context.Context, fn func(title string) bool) error
	Close() error
}

type conditionKind int

const (
	condEquals conditionKind = iota
	condContains
	condExtra
	// condNever marks a known key whose value has no usable type; it matches nothing.
	condNever
)

// Condition is one exact-match criterion of a Filter.
type Condition struct {
	Field string
	Key   string
	Value any
	kind  conditionKind
}

// Filter is a conjunction of conditions.
type Filter []Condition

const extraPrefix = domain.FieldExtraData + "."

var equalityFields = []string{
	domain.FieldID,
	domain.FieldSourceURL,
	domain.FieldSourceType,
	domain.FieldTitle,
	domain.FieldLink,
	domain.FieldAuthor,
	domain.FieldSummary,
	domain.FieldContent,
	domain.FieldProcessingStatus,
	domain.FieldRelevanceScore,
}

// BuildFilter turns a field → value query into a Filter.
// Supported keys are the scalar item fields (exact match), categories and tags
// (list contains the value) and extra_data.<key> (text forms are equal).
// Strings, booleans and numbers given for text fields compare by their text form.
// A supported key with a value of any other type yields a condition that matches
// nothing, so the query narrows instead of widening. Unknown keys are returned in ignored.
func BuildFilter(query map[string]any) (Filter, []string) {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		filter  Filter
		ignored []string
	)
	for _, key := range keys {
		cond, known := buildCondition(key, query[key])
		if !known {
			ignored = append(ignored, key)
			continue
		}
		filter = append(filter, cond)
	}
	return filter, ignored
}

// Unmatchable lists the keys whose values can never match a stored item.
func (f Filter) Unmatchable() []string {
	var keys []string
	for _, c := range f {
		if c.kind == condNever {
			keys = append(keys, c.Field)
		}
	}
	return keys
}

func buildCondition(key string, raw any) (Condition, bool) {
	switch {
	case key == domain.FieldCategories || key == domain.FieldTags:
		s, ok := domain.ScalarString(raw)
		if !ok {
			return never(key), true
		}
		return Condition{Field: key, Value: s, kind: condContains}, true
	case strings.HasPrefix(key, extraPrefix):
		name := strings.TrimPrefix(key, extraPrefix)
		if name == "" {
			return Condition{}, false
		}
		s, ok := domain.ScalarString(raw)
		if !ok {
			return never(key), true
		}
		return Condition{Field: domain.FieldExtraData, Key: name, Value: s, kind: condExtra}, true
	case slices.Contains(equalityFields, key):
		value, ok := equalityValue(key, raw)
		if !ok {
			return never(key), true
		}
		return Condition{Field: key, Value: value, kind: condEquals}, true
	default:
		return Condition{}, false
	}
}

func never(key string) Condition {
	return Condition{Field: key, kind: condNever}
}

func equalityValue(field string, raw any) (any, bool) {
	switch field {
	case domain.FieldSourceType:
		switch v := raw.(type) {
		case domain.SourceType:
			return string(domain.ParseSourceType(string(v))), true
		case string:
			return string(domain.ParseSourceType(v)), true
		}
		return nil, false
	case domain.FieldProcessingStatus:
		switch v := raw.(type) {
		case domain.ProcessingStatus:
			return string(domain.ParseProcessingStatus(string(v))), true
		case string:
			return string(domain.ParseProcessingStatus(v)), true
		}
		return nil, false
	case domain.FieldRelevanceScore:
		return domain.CoerceFloat(raw)
	default:
		return domain.ScalarString(raw)
	}
}

// Matches evaluates the filter against an in-memory item.
func (f Filter) Matches(item domain.CollectedItem) bool {
	for _, c := range f {
		if !c.matches(item) {
			return false
		}
	}
	return true
}

func (c Condition) matches(item domain.CollectedItem) bool {
	switch c.kind {
	case condContains:
		list := item.Categories
		if c.Field == domain.FieldTags {
			list = item.Tags
		}
		return slices.Contains(list, c.Value.(string))
	case condExtra:
		stored, ok := domain.ScalarString(item.ExtraData[c.Key])
		return ok && stored == c.Value
	case condNever:
		return false
	default:
		return scalarField(item, c.Field) == c.Value
	}
}

func scalarField(item domain.CollectedItem, field string) any {
	switch field {
	case domain.FieldID:
		return item.ID
	case domain.FieldSourceURL:
		return item.SourceURL
	case domain.FieldSourceType:
		return string(item.SourceType)
	case domain.FieldTitle:
		return item.Title
	case domain.FieldLink:
		return item.Link
	case domain.FieldAuthor:
		return item.Author
	case domain.FieldSummary:
		return item.Summary
	case domain.FieldContent:
		return item.Content
	case domain.FieldProcessingStatus:
		return string(item.ProcessingStatus)
	case domain.FieldRelevanceScore:
		if item.RelevanceScore == nil {
			return nil
		}
		return *item.RelevanceScore
	default:
		return nil
	}
}
