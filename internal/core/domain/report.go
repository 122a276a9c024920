package domain

import "time"

type RunPhase string

const (
	PhaseIngesting   RunPhase = "ingesting"
	PhaseEnriching   RunPhase = "enriching"
	PhaseSummarizing RunPhase = "summarizing"
	PhaseRanking     RunPhase = "ranking"
	PhaseDelivering  RunPhase = "delivering"
	PhaseDone        RunPhase = "done"
	PhaseFailed      RunPhase = "failed"
)

type PipelineStage string

const (
	StageIngestion     PipelineStage = "ingestion"
	StageEnrichment    PipelineStage = "enrichment"
	StageSummarization PipelineStage = "summarization"
	StageRanking       PipelineStage = "ranking"
	StageDelivery      PipelineStage = "delivery"
)

// ItemFailure records one item-scoped failure with its cause. Failures are
// reported, never silently dropped.
type ItemFailure struct {
	Stage  PipelineStage `json:"stage"`
	ItemID int64         `json:"item_id,omitempty"`
	URL    string        `json:"url,omitempty"`
	Cause  string        `json:"cause"`
}

// IngestResult is the per-source outcome of the ingestion coordinator.
type IngestResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

func (r *IngestResult) Add(other IngestResult) {
	r.Created += other.Created
	r.Updated += other.Updated
	r.Skipped += other.Skipped
}

// RunReport aggregates one pipeline run. It is transient; persisting it is
// the caller's choice.
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Phase      RunPhase  `json:"phase"`

	Ingested   IngestResult `json:"ingested"`
	Enriched   int          `json:"enriched"`
	Summarized int          `json:"summarized"`
	Ranked     int          `json:"ranked"`
	Delivered  int          `json:"delivered"`

	Failures []ItemFailure `json:"failures,omitempty"`
}

func (r *RunReport) RecordFailure(stage PipelineStage, itemID int64, url string, err error) {
	r.Failures = append(r.Failures, ItemFailure{
		Stage:  stage,
		ItemID: itemID,
		URL:    url,
		Cause:  err.Error(),
	})
}

// FailureCount returns the number of recorded failures for one stage.
func (r *RunReport) FailureCount(stage PipelineStage) int {
	n := 0
	for _, f := range r.Failures {
		if f.Stage == stage {
			n++
		}
	}
	return n
}

// RankedItem pairs an item with its deterministic score for one run.
type RankedItem struct {
	Item  Item    `json:"item"`
	Score float64 `json:"score"`
}

// Digest is the ranked, window-bounded, limit-bounded selection of unsent
// items assembled for one delivery.
type Digest struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Recipient   string       `json:"recipient"`
	Items       []RankedItem `json:"items"`
}
