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

// RetryPolicy bounds within-run summarization retries.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	out := p
	def := DefaultRetryPolicy()
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = def.InitialBackoff
	}
	if out.MaxBackoff < out.InitialBackoff {
		out.MaxBackoff = out.InitialBackoff
	}
	if out.Multiplier < 1.0 {
		out.Multiplier = def.Multiplier
	}
	return out
}

// SummarizationStage produces summaries for enriched items, and for new
// items whose source kind carries no enrichment. Transient collaborator
// errors are retried within the run with exponential backoff; permanent
// errors set the summarization-failed flag without advancing state.
type SummarizationStage struct {
	items           ports.ItemStore
	summarizer      ports.Summarizer
	enrichableKinds map[domain.SourceKind]bool
	policy          RetryPolicy
	workers         int
	timeout         time.Duration
	style           string
	maxSentences    int
	logger          *slog.Logger
}

func NewSummarizationStage(
	items ports.ItemStore,
	summarizer ports.Summarizer,
	enrichableKinds []domain.SourceKind,
	policy RetryPolicy,
	workers int,
	timeout time.Duration,
	style string,
	maxSentences int,
	logger *slog.Logger,
) *SummarizationStage {
	kinds := make(map[domain.SourceKind]bool, len(enrichableKinds))
	for _, kind := range enrichableKinds {
		kinds[kind] = true
	}
	if workers < 1 {
		workers = 1
	}
	return &SummarizationStage{
		items:           items,
		summarizer:      summarizer,
		enrichableKinds: kinds,
		policy:          policy.normalize(),
		workers:         workers,
		timeout:         timeout,
		style:           style,
		maxSentences:    maxSentences,
		logger:          logger,
	}
}

// Run summarizes all eligible items and returns how many advanced to
// summarized.
func (s *SummarizationStage) Run(ctx context.Context, sources []domain.Source, report *domain.RunReport) (int, error) {
	candidates, err := s.items.ListByProcessingStates(ctx, domain.ProcessingNew, domain.ProcessingEnriched)
	if err != nil {
		return 0, domain.WrapError(domain.ErrStorageUnavailable, "list summarizable items", err)
	}

	kindBySource := make(map[int64]domain.SourceKind, len(sources))
	for _, source := range sources {
		kindBySource[source.ID] = source.Kind
	}

	type summarizeOutcome struct {
		summarized bool
		failures   []domain.ItemFailure
	}

	outcomes := make(chan summarizeOutcome, len(candidates))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for _, item := range candidates {
		if !s.eligible(item, kindBySource[item.SourceID]) {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(item domain.Item) {
			defer wg.Done()
			defer func() { <-sem }()

			summarized, failures := s.summarizeItem(ctx, item)
			outcomes <- summarizeOutcome{summarized: summarized, failures: failures}
		}(item)
	}
	wg.Wait()
	close(outcomes)

	summarized := 0
	for outcome := range outcomes {
		report.Failures = append(report.Failures, outcome.failures...)
		if outcome.summarized {
			summarized++
		}
	}
	return summarized, nil
}

func (s *SummarizationStage) eligible(item domain.Item, kind domain.SourceKind) bool {
	if item.HasSummary() || item.SummarizationFailed {
		return false
	}
	if !item.HasContent() {
		// Nothing to summarize yet; enrichment retries next run.
		return false
	}
	// A new item is only ripe when its kind has no enrichment stage.
	if item.ProcessingState == domain.ProcessingNew && s.enrichableKinds[kind] {
		return false
	}
	return true
}

func (s *SummarizationStage) summarizeItem(ctx context.Context, item domain.Item) (bool, []domain.ItemFailure) {
	var failures []domain.ItemFailure
	backoff := s.policy.InitialBackoff

	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		summary, err := s.summarizeOnce(ctx, item)
		if err == nil {
			if saveErr := s.items.SaveSummary(ctx, item.ID, summary); saveErr != nil {
				failures = append(failures, failureFor(item, domain.StageSummarization, saveErr))
				return false, failures
			}
			return true, failures
		}

		failures = append(failures, failureFor(item, domain.StageSummarization, err))

		if domain.IsKind(err, domain.ErrPermanentSummarization) {
			if flagErr := s.items.MarkSummarizationFailed(ctx, item.ID); flagErr != nil {
				failures = append(failures, failureFor(item, domain.StageSummarization, flagErr))
			}
			return false, failures
		}
		if attempt == s.policy.MaxAttempts {
			break
		}

		s.logger.Warn("summarization retry",
			"item", item.ID,
			"attempt", attempt,
			"max_attempts", s.policy.MaxAttempts,
			"backoff", backoff,
			"error", err,
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, failures
		case <-timer.C:
		}
		backoff = time.Duration(float64(backoff) * s.policy.Multiplier)
		if backoff > s.policy.MaxBackoff {
			backoff = s.policy.MaxBackoff
		}
	}
	return false, failures
}

func (s *SummarizationStage) summarizeOnce(ctx context.Context, item domain.Item) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := item.Title + "\n\n" + *item.Content
	summary, err := s.summarizer.Summarize(callCtx, input, s.style, s.maxSentences)
	if err != nil {
		return "", err
	}
	if summary == "" {
		return "", domain.WrapError(domain.ErrPermanentSummarization, "summarize item", errEmptySummary)
	}
	return summary, nil
}

func failureFor(item domain.Item, stage domain.PipelineStage, err error) domain.ItemFailure {
	return domain.ItemFailure{
		Stage:  stage,
		ItemID: item.ID,
		URL:    item.URL,
		Cause:  err.Error(),
	}
}

var errEmptySummary = errors.New("summarizer returned empty summary")
