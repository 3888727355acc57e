package parser

import (
	"context"
	"fmt"
	"log/slog"

	"NewsCollector/internal/config"
	"NewsCollector/internal/domain"
	"NewsCollector/internal/ports"
	"NewsCollector/internal/scanner"
)

// StrategySource implements EntryFetcher via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	logger   *slog.Logger
}

var _ ports.EntryFetcher = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry.
func NewStrategySource(reg *scanner.Registry, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		logger:   log,
	}
}

// FetchEntries resolves the scanner for the source kind and runs it.
func (s *StrategySource) FetchEntries(ctx context.Context, source config.SourceConfig) ([]domain.RawEntry, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(source.Kind)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", source.Name, err)
	}

	s.debug("scan source", "source", source.Name, "kind", source.Kind, "url", source.URL)
	entries, err := strategy.Scan(ctx, scanner.Request{
		SourceName: source.Name,
		URL:        source.URL,
		Category:   source.Category,
		Options:    source.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("scan source %s: %w", source.Name, err)
	}

	s.debug("source produced entries", "source", source.Name, "count", len(entries))
	return entries, nil
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
