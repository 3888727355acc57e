package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Item field names shared by patches, queries and storage columns.
const (
	FieldID               = "id"
	FieldSourceURL        = "source_url"
	FieldSourceType       = "source_type"
	FieldCollectedAt      = "collected_at"
	FieldTitle            = "title"
	FieldLink             = "link"
	FieldPublishedAt      = "published_at"
	FieldSummary          = "summary"
	FieldContent          = "content"
	FieldAuthor           = "author"
	FieldCategories       = "categories"
	FieldTags             = "tags"
	FieldRelevanceScore   = "relevance_score"
	FieldProcessingStatus = "processing_status"
	FieldExtraData        = "extra_data"
)

// Patch is a validated set of partial field updates keyed by field name.
// Values are already coerced to the Go type of the field; nil clears an optional field.
type Patch map[string]any

// ParsePatch keeps the recognized, well-typed fields and reports the names it dropped.
// The id is immutable and is always dropped.
func ParsePatch(fields map[string]any) (Patch, []string) {
	patch := Patch{}
	var dropped []string

	for name, raw := range fields {
		value, ok := coerceField(name, raw)
		if !ok {
			dropped = append(dropped, name)
			continue
		}
		patch[name] = value
	}

	sort.Strings(dropped)
	return patch, dropped
}

// Fields returns the patched field names in stable order.
func (p Patch) Fields() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply writes the patch onto item.
func (p Patch) Apply(item *CollectedItem) {
	for name, value := range p {
		switch name {
		case FieldSourceURL:
			item.SourceURL = value.(string)
		case FieldSourceType:
			item.SourceType = value.(SourceType)
		case FieldCollectedAt:
			item.CollectedAt = value.(time.Time)
		case FieldTitle:
			item.Title = value.(string)
		case FieldLink:
			item.Link = value.(string)
		case FieldPublishedAt:
			if value == nil {
				item.PublishedAt = nil
			} else {
				t := value.(time.Time)
				item.PublishedAt = &t
			}
		case FieldSummary:
			item.Summary = value.(string)
		case FieldContent:
			item.Content = value.(string)
		case FieldAuthor:
			item.Author = value.(string)
		case FieldCategories:
			item.Categories = cloneStrings(value.([]string))
		case FieldTags:
			item.Tags = cloneStrings(value.([]string))
		case FieldRelevanceScore:
			if value == nil {
				item.RelevanceScore = nil
			} else {
				s := value.(float64)
				item.RelevanceScore = &s
			}
		case FieldProcessingStatus:
			item.ProcessingStatus = value.(ProcessingStatus)
		case FieldExtraData:
			item.ExtraData = maps.Clone(value.(map[string]any))
		}
	}
}

func coerceField(name string, raw any) (any, bool) {
	switch name {
	case FieldSourceURL:
		s, ok := ScalarString(raw)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, false
		}
		return s, true
	case FieldTitle, FieldLink, FieldSummary, FieldContent, FieldAuthor:
		if raw == nil {
			return "", true
		}
		s, ok := ScalarString(raw)
		return s, ok
	case FieldSourceType:
		switch v := raw.(type) {
		case SourceType:
			return ParseSourceType(string(v)), true
		case string:
			return ParseSourceType(v), true
		}
		return nil, false
	case FieldProcessingStatus:
		switch v := raw.(type) {
		case ProcessingStatus:
			return ParseProcessingStatus(string(v)), true
		case string:
			return ParseProcessingStatus(v), true
		}
		return nil, false
	case FieldCollectedAt:
		t, ok := coerceTime(raw)
		if !ok || raw == nil {
			return nil, false
		}
		return t, true
	case FieldPublishedAt:
		if raw == nil {
			return nil, true
		}
		t, ok := coerceTime(raw)
		if !ok {
			return nil, false
		}
		return t, true
	case FieldCategories, FieldTags:
		list, ok := coerceStrings(raw)
		return list, ok
	case FieldRelevanceScore:
		if raw == nil {
			return nil, true
		}
		f, ok := CoerceFloat(raw)
		return f, ok
	case FieldExtraData:
		if raw == nil {
			return map[string]any{}, true
		}
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, false
		}
		return maps.Clone(m), true
	default:
		return nil, false
	}
}

func coerceTime(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return v.UTC(), true
	case string:
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	default:
		return time.Time{}, false
	}
}

func coerceStrings(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case nil:
		return []string{}, true
	case string:
		return []string{v}, true
	case []string:
		return cloneStrings(v), true
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// ScalarString renders strings, booleans and numbers as text. Other values are rejected.
func ScalarString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

// CoerceFloat accepts the numeric shapes that arrive from Go callers, JSON and CLI input.
func CoerceFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String renders a patch for logs.
func (p Patch) String() string {
	parts := make([]string, 0, len(p))
	for _, name := range p.Fields() {
		parts = append(parts, fmt.Sprintf("%s=%v", name, p[name]))
	}
	return strings.Join(parts, " ")
}
