package ports

import (
	"context"
	"time"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
)

// PipelineRunner is the inbound contract for one bounded pipeline run.
type PipelineRunner interface {
	Run(ctx context.Context, window time.Duration, limit int) (*domain.RunReport, error)
}
