package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
)

type PipelineMetrics struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runInFlight     prometheus.Gauge
	stageItemsTotal *prometheus.CounterVec
	digestSize      prometheus.Histogram
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agg",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total pipeline runs by final status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agg",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "End-to-end pipeline run duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "status"},
	)
	runInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agg",
			Subsystem: "pipeline",
			Name:      "runs_in_flight",
			Help:      "Number of pipeline runs currently executing.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	stageItemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agg",
			Subsystem: "pipeline",
			Name:      "stage_items_total",
			Help:      "Items handled per stage by outcome.",
		},
		[]string{"service", "stage", "outcome"},
	)
	digestSize := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "agg",
			Subsystem: "pipeline",
			Name:      "digest_size",
			Help:      "Number of stories delivered per digest.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15, 20, 30},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(runsTotal, runDuration, runInFlight, stageItemsTotal, digestSize)

	return &PipelineMetrics{
		registry:        registry,
		runsTotal:       runsTotal,
		runDuration:     runDuration,
		runInFlight:     runInFlight,
		stageItemsTotal: stageItemsTotal,
		digestSize:      digestSize,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StartRun() {
	m.runInFlight.Inc()
}

// FinishRun records the run outcome and per-stage tallies from the report.
func (m *PipelineMetrics) FinishRun(service string, report *domain.RunReport, duration time.Duration, err error) {
	m.runInFlight.Dec()

	status := "completed"
	if err != nil {
		status = "failed"
	}
	m.runsTotal.WithLabelValues(service, status).Inc()
	m.runDuration.WithLabelValues(service, status).Observe(duration.Seconds())

	if report == nil {
		return
	}
	m.stageItemsTotal.WithLabelValues(service, string(domain.StageIngestion), "created").Add(float64(report.Ingested.Created))
	m.stageItemsTotal.WithLabelValues(service, string(domain.StageIngestion), "updated").Add(float64(report.Ingested.Updated))
	m.stageItemsTotal.WithLabelValues(service, string(domain.StageIngestion), "skipped").Add(float64(report.Ingested.Skipped))
	m.stageItemsTotal.WithLabelValues(service, string(domain.StageEnrichment), "success").Add(float64(report.Enriched))
	m.stageItemsTotal.WithLabelValues(service, string(domain.StageSummarization), "success").Add(float64(report.Summarized))
	m.stageItemsTotal.WithLabelValues(service, string(domain.StageDelivery), "success").Add(float64(report.Delivered))
	for _, failure := range report.Failures {
		m.stageItemsTotal.WithLabelValues(service, string(failure.Stage), "failure").Inc()
	}
	m.digestSize.Observe(float64(report.Delivered))
}
