package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gek007/ai-news-aggregator/internal/config"
	"github.com/gek007/ai-news-aggregator/internal/core/domain"
	"github.com/gek007/ai-news-aggregator/internal/core/ports"
	"github.com/gek007/ai-news-aggregator/internal/core/usecase"
	"github.com/gek007/ai-news-aggregator/internal/infrastructure/delivery/smtp"
	"github.com/gek007/ai-news-aggregator/internal/infrastructure/enricher/fulltext"
	"github.com/gek007/ai-news-aggregator/internal/infrastructure/enricher/transcript"
	"github.com/gek007/ai-news-aggregator/internal/infrastructure/events/nats"
	"github.com/gek007/ai-news-aggregator/internal/infrastructure/fetcher/page"
	"github.com/gek007/ai-news-aggregator/internal/infrastructure/fetcher/rss"
	"github.com/gek007/ai-news-aggregator/internal/infrastructure/fetcher/youtube"
	"github.com/gek007/ai-news-aggregator/internal/infrastructure/llm/openai"
	"github.com/gek007/ai-news-aggregator/internal/infrastructure/repository/postgres"
	"github.com/gek007/ai-news-aggregator/internal/infrastructure/resilience"
)

// App wires configuration, storage, collaborators, and pipeline stages into
// a runnable aggregator.
type App struct {
	Config   config.Config
	Profile  domain.UserProfile
	Pipeline ports.PipelineRunner

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	file, err := config.LoadFile(cfg.PipelineConfigPath)
	if err != nil {
		return nil, err
	}
	profile, err := config.LoadProfile(cfg.PipelineConfigPath, file.Profile)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	items := postgres.NewItemRepository(db)
	sources := postgres.NewSourceRepository(db)
	profiles := postgres.NewProfileRepository(db)

	for _, source := range file.Sources {
		if _, err := sources.UpsertSource(ctx, source); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("register source %q: %w", source.Name, err)
		}
	}

	publisher, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event publisher: %w", err)
	}

	sender, err := smtp.NewSender(smtp.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		publisher.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init digest sender: %w", err)
	}

	fetchTimeout := time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	enrichTimeout := time.Duration(cfg.EnrichTimeoutSecs) * time.Second
	summaryTimeout := time.Duration(cfg.SummaryTimeoutSecs) * time.Second

	fetchers := []ports.SourceFetcher{
		rss.New(fetchTimeout),
		youtube.New(fetchTimeout),
		page.New(fetchTimeout),
	}
	enrichers := []ports.Enricher{
		fulltext.New(domain.KindFeed, enrichTimeout),
		fulltext.New(domain.KindPage, enrichTimeout),
		transcript.New(enrichTimeout, cfg.TranscriptLanguage),
	}
	enrichableKinds := []domain.SourceKind{domain.KindFeed, domain.KindPage, domain.KindVideoChannel}

	summarizer := openai.NewSummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.SummaryRequestsPerSecond)

	policy := usecase.DefaultRetryPolicy()
	if cfg.MaxStageAttempts > 0 {
		policy.MaxAttempts = cfg.MaxStageAttempts
	}

	ingestor := usecase.NewIngestCoordinator(items, fetchers, fetchTimeout, logger)
	enrichment := usecase.NewEnrichmentStage(items, enrichers, cfg.WorkerCount, enrichTimeout, logger)
	summarization := usecase.NewSummarizationStage(
		items,
		summarizer,
		enrichableKinds,
		policy,
		cfg.WorkerCount,
		summaryTimeout,
		profile.SummaryStyle,
		profile.SummaryLength,
		logger,
	)
	assembler := usecase.NewDigestAssembler(items, sender, logger)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Sources:  sources,
		Items:    items,
		Profiles: profiles,
		Events:   publisher,

		Ingestor:   ingestor,
		Enrichment: enrichment,
		Summarizer: summarization,
		Assembler:  assembler,

		Profile: profile,
		Ranking: usecase.RankingConfig{
			TopicWeight:   file.Ranking.TopicWeight,
			RecencyWeight: file.Ranking.RecencyWeight,
			HalfLife:      file.Ranking.HalfLife(),
		},
		RecoveryInterval: time.Duration(cfg.ReclaimAfterMinutes) * time.Minute,
		Logger:           logger,
	})

	return &App{
		Config:   cfg,
		Profile:  profile,
		Pipeline: pipeline,

		closeFn: func() {
			publisher.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
