package ports

import (
	"context"
	"time"

	"NewsCollector/internal/config"
	"NewsCollector/internal/domain"
)

// EntryFetcher pulls raw entries from a single configured source.
type EntryFetcher interface {
	FetchEntries(ctx context.Context, source config.SourceConfig) ([]domain.RawEntry, error)
}

// ItemRepository persists collected items and rejects duplicates.
// Save returns nil when the item was rejected or could not be stored.
type ItemRepository interface {
	Save(ctx context.Context, item domain.CollectedItem, opts domain.SaveOptions) *domain.CollectedItem
}

// MonitoringLog records the lifecycle of a task run.
type MonitoringLog interface {
	LogStart(ctx context.Context, task string) (int64, error)
	LogEnd(ctx context.Context, id int64, outcome domain.RunOutcome) error
}

// Scorer estimates how relevant an item is to the collector's topic.
type Scorer interface {
	Score(item domain.CollectedItem) float64
}

// Notifier streams run reports to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when tasks execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
