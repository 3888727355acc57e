package domain

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"time"
)

// SourceType tells where a collected item came from.
type SourceType string

const (
	SourceRSS      SourceType = "rss"
	SourceCrawling SourceType = "crawling"
	SourceAPI      SourceType = "api"
	SourceUnknown  SourceType = "unknown"
)

// ParseSourceType maps a raw value to a known SourceType, degrading to SourceUnknown.
func ParseSourceType(value string) SourceType {
	switch t := SourceType(strings.ToLower(strings.TrimSpace(value))); t {
	case SourceRSS, SourceCrawling, SourceAPI, SourceUnknown:
		return t
	default:
		return SourceUnknown
	}
}

// UnmarshalJSON never fails on an unrecognized value.
func (t *SourceType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*t = SourceUnknown
		return nil
	}
	*t = ParseSourceType(raw)
	return nil
}

// ProcessingStatus enumerates pipeline milestones of a collected item.
type ProcessingStatus string

const (
	StatusPending     ProcessingStatus = "pending"
	StatusRaw         ProcessingStatus = "raw"
	StatusFiltered    ProcessingStatus = "filtered"
	StatusSummarizing ProcessingStatus = "summarizing"
	StatusSummarized  ProcessingStatus = "summarized"
	StatusAnalyzing   ProcessingStatus = "analyzing"
	StatusAnalyzed    ProcessingStatus = "analyzed"
	StatusPublishing  ProcessingStatus = "publishing"
	StatusPublished   ProcessingStatus = "published"
	StatusError       ProcessingStatus = "error"
	StatusSkipped     ProcessingStatus = "skipped"
)

var processingStatuses = []ProcessingStatus{
	StatusPending,
	StatusRaw,
	StatusFiltered,
	StatusSummarizing,
	StatusSummarized,
	StatusAnalyzing,
	StatusAnalyzed,
	StatusPublishing,
	StatusPublished,
	StatusError,
	StatusSkipped,
}

// AllProcessingStatuses returns the ordered list of known statuses.
func AllProcessingStatuses() []ProcessingStatus {
	return slices.Clone(processingStatuses)
}

// ParseProcessingStatus maps a raw value to a known status, degrading to StatusError.
func ParseProcessingStatus(value string) ProcessingStatus {
	normalized := ProcessingStatus(strings.ToLower(strings.TrimSpace(value)))
	if slices.Contains(processingStatuses, normalized) {
		return normalized
	}
	return StatusError
}

// UnmarshalJSON never fails on an unrecognized value.
func (s *ProcessingStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = StatusError
		return nil
	}
	*s = ParseProcessingStatus(raw)
	return nil
}

// CollectedItem is a news item gathered from a feed or a crawled page.
type CollectedItem struct {
	ID               string           `json:"id"`
	SourceURL        string           `json:"source_url"`
	SourceType       SourceType       `json:"source_type"`
	CollectedAt      time.Time        `json:"collected_at"`
	Title            string           `json:"title,omitempty"`
	Link             string           `json:"link,omitempty"`
	PublishedAt      *time.Time       `json:"published_at,omitempty"`
	Summary          string           `json:"summary,omitempty"`
	Content          string           `json:"content,omitempty"`
	Author           string           `json:"author,omitempty"`
	Categories       []string         `json:"categories"`
	Tags             []string         `json:"tags"`
	RelevanceScore   *float64         `json:"relevance_score,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	ExtraData        map[string]any   `json:"extra_data,omitempty"`
}

// Clone returns a deep copy so callers never share slices or maps with a store.
func (i CollectedItem) Clone() CollectedItem {
	out := i
	if i.PublishedAt != nil {
		p := *i.PublishedAt
		out.PublishedAt = &p
	}
	if i.RelevanceScore != nil {
		s := *i.RelevanceScore
		out.RelevanceScore = &s
	}
	out.Categories = cloneStrings(i.Categories)
	out.Tags = cloneStrings(i.Tags)
	if i.ExtraData != nil {
		out.ExtraData = maps.Clone(i.ExtraData)
	}
	return out
}

// Normalize fills creation defaults and coerces timestamps to UTC.
func (i *CollectedItem) Normalize(now time.Time) {
	if i.CollectedAt.IsZero() {
		i.CollectedAt = now
	}
	i.CollectedAt = i.CollectedAt.UTC()
	if i.PublishedAt != nil {
		p := i.PublishedAt.UTC()
		i.PublishedAt = &p
	}
	if i.SourceType == "" {
		i.SourceType = SourceUnknown
	} else {
		i.SourceType = ParseSourceType(string(i.SourceType))
	}
	if i.ProcessingStatus == "" {
		i.ProcessingStatus = StatusRaw
	} else {
		i.ProcessingStatus = ParseProcessingStatus(string(i.ProcessingStatus))
	}
	if i.Categories == nil {
		i.Categories = []string{}
	}
	if i.Tags == nil {
		i.Tags = []string{}
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}

// SaveOptions tune duplicate checking for a single save.
// The zero value checks duplicates with the repository default threshold.
type SaveOptions struct {
	SkipDuplicateCheck bool
	Threshold          float64
}
