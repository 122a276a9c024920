package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
	"github.com/gek007/ai-news-aggregator/internal/core/ports"
)

// Pipeline sequences the stages of one bounded run. Stages execute in strict
// order over the full eligible item set; per-item failures never abort the
// run, only infrastructure errors move it to the failed phase. A failed run
// is never retried here; the next scheduled invocation is the retry.
type Pipeline struct {
	sources  ports.SourceStore
	items    ports.ItemStore
	profiles ports.ProfileStore
	events   ports.EventPublisher

	ingestor   *IngestCoordinator
	enrichment *EnrichmentStage
	summarizer *SummarizationStage
	assembler  *DigestAssembler

	profile          domain.UserProfile
	ranking          RankingConfig
	recoveryInterval time.Duration
	logger           *slog.Logger

	now func() time.Time
}

type PipelineDeps struct {
	Sources  ports.SourceStore
	Items    ports.ItemStore
	Profiles ports.ProfileStore
	Events   ports.EventPublisher

	Ingestor   *IngestCoordinator
	Enrichment *EnrichmentStage
	Summarizer *SummarizationStage
	Assembler  *DigestAssembler

	Profile          domain.UserProfile
	Ranking          RankingConfig
	RecoveryInterval time.Duration
	Logger           *slog.Logger
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		sources:          deps.Sources,
		items:            deps.Items,
		profiles:         deps.Profiles,
		events:           deps.Events,
		ingestor:         deps.Ingestor,
		enrichment:       deps.Enrichment,
		summarizer:       deps.Summarizer,
		assembler:        deps.Assembler,
		profile:          deps.Profile,
		ranking:          deps.Ranking,
		recoveryInterval: deps.RecoveryInterval,
		logger:           deps.Logger,
		now:              time.Now,
	}
}

// Run executes ingestion, enrichment, summarization, ranking, and delivery
// for one window, returning the aggregated report. The report is returned
// alongside the error on failed runs so partial counts survive.
func (p *Pipeline) Run(ctx context.Context, window time.Duration, limit int) (*domain.RunReport, error) {
	started := p.now().UTC()
	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Phase:     domain.PhaseIngesting,
	}
	windowStart := started.Add(-window)

	sources, err := p.sources.ListSources(ctx)
	if err != nil {
		return p.fail(ctx, report, domain.WrapError(domain.ErrStorageUnavailable, "list sources", err))
	}
	if err := p.profiles.UpsertProfile(ctx, p.profile); err != nil {
		return p.fail(ctx, report, domain.WrapError(domain.ErrStorageUnavailable, "upsert profile", err))
	}

	p.logger.Info("run started", "run_id", report.RunID, "window", window, "limit", limit, "sources", len(sources))

	report.Ingested, err = p.ingestor.IngestAll(ctx, sources, windowStart, report)
	if err != nil {
		return p.fail(ctx, report, err)
	}

	report.Phase = domain.PhaseEnriching
	report.Enriched, err = p.enrichment.Run(ctx, sources, report)
	if err != nil {
		return p.fail(ctx, report, err)
	}

	report.Phase = domain.PhaseSummarizing
	report.Summarized, err = p.summarizer.Run(ctx, sources, report)
	if err != nil {
		return p.fail(ctx, report, err)
	}

	report.Phase = domain.PhaseRanking
	reclaimed, err := p.items.ReclaimStuckSending(ctx, started.Add(-p.recoveryInterval))
	if err != nil {
		return p.fail(ctx, report, domain.WrapError(domain.ErrStorageUnavailable, "reclaim stuck deliveries", err))
	}
	if reclaimed > 0 {
		p.logger.Warn("reclaimed stuck deliveries", "count", reclaimed)
	}

	summarized, err := p.items.ListSummarized(ctx, windowStart)
	if err != nil {
		return p.fail(ctx, report, domain.WrapError(domain.ErrStorageUnavailable, "list summarized items", err))
	}

	sourcesByID := make(map[int64]domain.Source, len(sources))
	for _, source := range sources {
		sourcesByID[source.ID] = source
	}
	ranked := Rank(summarized, sourcesByID, p.profile, p.ranking, started)
	report.Ranked = len(ranked)

	report.Phase = domain.PhaseDelivering
	digest := p.assembler.Assemble(ranked, windowStart, limit, p.profile.Email, started)
	report.Delivered, err = p.assembler.Deliver(ctx, digest, report)
	if err != nil {
		return p.fail(ctx, report, err)
	}

	report.Phase = domain.PhaseDone
	report.FinishedAt = p.now().UTC()
	p.logger.Info("run completed",
		"run_id", report.RunID,
		"created", report.Ingested.Created,
		"updated", report.Ingested.Updated,
		"enriched", report.Enriched,
		"summarized", report.Summarized,
		"ranked", report.Ranked,
		"delivered", report.Delivered,
		"failures", len(report.Failures),
	)
	p.publish(ctx, report)
	return report, nil
}

func (p *Pipeline) fail(ctx context.Context, report *domain.RunReport, err error) (*domain.RunReport, error) {
	report.Phase = domain.PhaseFailed
	report.FinishedAt = p.now().UTC()
	p.logger.Error("run failed", "run_id", report.RunID, "error", err)
	p.publish(ctx, report)
	return report, err
}

func (p *Pipeline) publish(ctx context.Context, report *domain.RunReport) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishRunCompleted(ctx, *report); err != nil {
		p.logger.Warn("run report publish failed", "run_id", report.RunID, "error", err)
	}
}
