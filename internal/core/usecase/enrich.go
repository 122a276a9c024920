package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
	"github.com/gek007/ai-news-aggregator/internal/core/ports"
)

// EnrichmentStage augments new items whose source kind has an enricher
// configured. Failures are isolated per item; a failed item stays at new and
// retries on the next run with no extra bookkeeping.
type EnrichmentStage struct {
	items     ports.ItemStore
	enrichers map[domain.SourceKind]ports.Enricher
	workers   int
	timeout   time.Duration
	logger    *slog.Logger
}

func NewEnrichmentStage(
	items ports.ItemStore,
	enrichers []ports.Enricher,
	workers int,
	timeout time.Duration,
	logger *slog.Logger,
) *EnrichmentStage {
	byKind := make(map[domain.SourceKind]ports.Enricher, len(enrichers))
	for _, e := range enrichers {
		byKind[e.Kind()] = e
	}
	if workers < 1 {
		workers = 1
	}
	return &EnrichmentStage{
		items:     items,
		enrichers: byKind,
		workers:   workers,
		timeout:   timeout,
		logger:    logger,
	}
}

// Run enriches all eligible items through a bounded worker pool and returns
// the number of items advanced to enriched.
func (s *EnrichmentStage) Run(ctx context.Context, sources []domain.Source, report *domain.RunReport) (int, error) {
	pending, err := s.items.ListByProcessingStates(ctx, domain.ProcessingNew)
	if err != nil {
		return 0, domain.WrapError(domain.ErrStorageUnavailable, "list new items", err)
	}

	kindBySource := make(map[int64]domain.SourceKind, len(sources))
	for _, source := range sources {
		kindBySource[source.ID] = source.Kind
	}

	type enrichOutcome struct {
		enriched bool
		failure  *domain.ItemFailure
	}

	outcomes := make(chan enrichOutcome, len(pending))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for _, item := range pending {
		enricher, ok := s.enrichers[kindBySource[item.SourceID]]
		if !ok {
			// No enrichment for this source kind; summarization will pick
			// the item up directly from new.
			outcomes <- enrichOutcome{}
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(item domain.Item) {
			defer wg.Done()
			defer func() { <-sem }()

			enriched, err := s.enrichItem(ctx, enricher, item)
			if err != nil {
				outcomes <- enrichOutcome{failure: &domain.ItemFailure{
					Stage:  domain.StageEnrichment,
					ItemID: item.ID,
					URL:    item.URL,
					Cause:  err.Error(),
				}}
				return
			}
			outcomes <- enrichOutcome{enriched: enriched}
		}(item)
	}
	wg.Wait()
	close(outcomes)

	enriched := 0
	for outcome := range outcomes {
		if outcome.failure != nil {
			report.Failures = append(report.Failures, *outcome.failure)
			continue
		}
		if outcome.enriched {
			enriched++
		}
	}
	return enriched, nil
}

func (s *EnrichmentStage) enrichItem(ctx context.Context, enricher ports.Enricher, item domain.Item) (bool, error) {
	// A prior run may have stored content without committing the state
	// transition; advance without another external call.
	if item.HasContent() {
		if err := s.items.SaveEnrichment(ctx, item.ID, *item.Content); err != nil {
			return false, domain.WrapError(domain.ErrEnrichmentFailure, "advance pre-enriched item", err)
		}
		return true, nil
	}

	enrichCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content, err := enricher.Enrich(enrichCtx, &item)
	if err != nil {
		s.logger.Warn("enrichment failed", "item", item.ID, "url", item.URL, "error", err)
		return false, domain.WrapError(domain.ErrEnrichmentFailure, "enrich item", err)
	}
	if content == "" {
		return false, domain.WrapError(domain.ErrEnrichmentFailure, "enrich item", errEmptyContent)
	}
	if err := s.items.SaveEnrichment(ctx, item.ID, content); err != nil {
		return false, domain.WrapError(domain.ErrEnrichmentFailure, "save enrichment", err)
	}
	return true, nil
}

var errEmptyContent = errors.New("empty content")
