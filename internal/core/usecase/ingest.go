package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
	"github.com/gek007/ai-news-aggregator/internal/core/ports"
)

// IngestCoordinator consumes raw items from source fetchers, deduplicates by
// normalized URL, and upserts into the item store.
type IngestCoordinator struct {
	items        ports.ItemStore
	fetchers     map[domain.SourceKind]ports.SourceFetcher
	fetchTimeout time.Duration
	logger       *slog.Logger
}

func NewIngestCoordinator(
	items ports.ItemStore,
	fetchers []ports.SourceFetcher,
	fetchTimeout time.Duration,
	logger *slog.Logger,
) *IngestCoordinator {
	byKind := make(map[domain.SourceKind]ports.SourceFetcher, len(fetchers))
	for _, f := range fetchers {
		byKind[f.Kind()] = f
	}
	return &IngestCoordinator{
		items:        items,
		fetchers:     byKind,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

type sourceOutcome struct {
	result   domain.IngestResult
	failures []domain.ItemFailure
	fatal    error
}

// IngestAll fetches every source concurrently, one worker per source, and
// funnels all writes through the atomic upsert. Item store failures are
// run-fatal; fetch and parse failures are folded into the report.
func (c *IngestCoordinator) IngestAll(
	ctx context.Context,
	sources []domain.Source,
	since time.Time,
	report *domain.RunReport,
) (domain.IngestResult, error) {
	outcomes := make(chan sourceOutcome, len(sources))
	var wg sync.WaitGroup

	for _, source := range sources {
		wg.Add(1)
		go func(source domain.Source) {
			defer wg.Done()
			outcomes <- c.ingestSource(ctx, source, since)
		}(source)
	}
	wg.Wait()
	close(outcomes)

	var total domain.IngestResult
	var fatal error
	for outcome := range outcomes {
		total.Add(outcome.result)
		report.Failures = append(report.Failures, outcome.failures...)
		if outcome.fatal != nil && fatal == nil {
			fatal = outcome.fatal
		}
	}
	return total, fatal
}

func (c *IngestCoordinator) ingestSource(ctx context.Context, source domain.Source, since time.Time) sourceOutcome {
	fetcher, ok := c.fetchers[source.Kind]
	if !ok {
		return sourceOutcome{failures: []domain.ItemFailure{{
			Stage: domain.StageIngestion,
			URL:   source.URL,
			Cause: fmt.Sprintf("no fetcher for source kind %q", source.Kind),
		}}}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	rawItems, err := fetcher.Fetch(fetchCtx, source, since)
	if err != nil {
		c.logger.Warn("source fetch failed", "source", source.Name, "error", err)
		return sourceOutcome{failures: []domain.ItemFailure{{
			Stage: domain.StageIngestion,
			URL:   source.URL,
			Cause: domain.WrapError(domain.ErrTransientFetch, "fetch source", err).Error(),
		}}}
	}

	return c.ingest(ctx, source, rawItems)
}

// Ingest deduplicates and upserts one source's raw items. Unparsable items
// are skipped and recorded, never raised.
func (c *IngestCoordinator) Ingest(ctx context.Context, source domain.Source, rawItems []domain.RawItem) (domain.IngestResult, []domain.ItemFailure, error) {
	outcome := c.ingest(ctx, source, rawItems)
	return outcome.result, outcome.failures, outcome.fatal
}

func (c *IngestCoordinator) ingest(ctx context.Context, source domain.Source, rawItems []domain.RawItem) sourceOutcome {
	var outcome sourceOutcome
	for _, raw := range rawItems {
		normalized, err := domain.NormalizeURL(raw.URL)
		if err == nil && raw.Title == "" {
			err = domain.WrapError(domain.ErrMalformedSourceItem, "validate raw item", errMissingTitle)
		}
		if err != nil {
			outcome.result.Skipped++
			outcome.failures = append(outcome.failures, domain.ItemFailure{
				Stage: domain.StageIngestion,
				URL:   raw.URL,
				Cause: err.Error(),
			})
			continue
		}
		raw.URL = normalized

		created, err := c.items.Upsert(ctx, source.ID, raw)
		if err != nil {
			outcome.fatal = domain.WrapError(domain.ErrStorageUnavailable, "upsert item", err)
			return outcome
		}
		if created {
			outcome.result.Created++
		} else {
			outcome.result.Updated++
		}
	}
	c.logger.Info("source ingested",
		"source", source.Name,
		"created", outcome.result.Created,
		"updated", outcome.result.Updated,
		"skipped", outcome.result.Skipped,
	)
	return outcome
}

var errMissingTitle = fmt.Errorf("raw item without title")
