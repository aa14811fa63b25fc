// Package telemetry provides OpenTelemetry instrumentation for the triage
// service. It exports Prometheus metrics and provides tracing capabilities.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "smax-ai"

// Prediction outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeSpam     = "spam"
	OutcomeFallback = "fallback"
)

// Metrics holds all triage Prometheus metrics
type Metrics struct {
	// Prediction metrics
	PredictionsTotal   *prometheus.CounterVec
	ModerationFlagged  prometheus.Counter
	PredictionDuration prometheus.Histogram
	Confidence         prometheus.Histogram

	// Training metrics
	TrainingsTotal   *prometheus.CounterVec
	TrainingDuration prometheus.Histogram
	CorpusSize       prometheus.Gauge

	// Ingestion metrics
	FilesIngested   prometheus.Counter
	RecordsIngested prometheus.Counter
}

// Provider wraps telemetry providers. A nil *Provider is a valid no-op
// receiver, so components can run without instrumentation in tests.
type Provider struct {
	Tracer  trace.Tracer
	Metrics *Metrics
}

// NewProvider initializes telemetry with Prometheus metrics. Metrics are
// registered on the default registry, so construct at most one Provider
// per process.
func NewProvider() *Provider {
	return &Provider{
		Tracer:  otel.Tracer(serviceName),
		Metrics: initMetrics(),
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

func initMetrics() *Metrics {
	m := &Metrics{}
	initPredictionMetrics(m)
	initTrainingMetrics(m)
	initIngestionMetrics(m)
	return m
}

func initPredictionMetrics(m *Metrics) {
	m.PredictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smax_predictions_total",
		Help: "Total predictions served by outcome (ok, spam, fallback)",
	}, []string{"outcome"})

	m.ModerationFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smax_moderation_flagged_total",
		Help: "Total predictions flagged for manual moderation",
	})

	m.PredictionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "smax_prediction_duration_seconds",
		Help:    "Time to serve a single prediction",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	})

	m.Confidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "smax_prediction_confidence",
		Help:    "Distribution of model confidence for non-spam predictions",
		Buckets: []float64{0.05, 0.1, 0.15, 0.2, 0.25, 0.3, 0.4, 0.5, 0.7, 0.9, 1.0},
	})
}

func initTrainingMetrics(m *Metrics) {
	m.TrainingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smax_trainings_total",
		Help: "Total training runs by result (success, failure)",
	}, []string{"result"})

	m.TrainingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "smax_training_duration_seconds",
		Help:    "Duration of a full training pass",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	m.CorpusSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smax_corpus_records",
		Help: "Current number of records in the training corpus",
	})
}

func initIngestionMetrics(m *Metrics) {
	m.FilesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smax_files_ingested_total",
		Help: "Total source files processed by ingestion",
	})

	m.RecordsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smax_records_ingested_total",
		Help: "Total records accepted into the corpus",
	})
}

// RecordPrediction records metrics for a single served prediction
func (p *Provider) RecordPrediction(ctx context.Context, outcome string, confidence float64, moderated bool, duration time.Duration) {
	if p == nil {
		return
	}
	p.Metrics.PredictionsTotal.WithLabelValues(outcome).Inc()
	p.Metrics.PredictionDuration.Observe(duration.Seconds())
	if outcome != OutcomeSpam {
		p.Metrics.Confidence.Observe(confidence)
	}
	if moderated {
		p.Metrics.ModerationFlagged.Inc()
	}
}

// RecordTraining records the outcome and duration of one training pass
func (p *Provider) RecordTraining(ctx context.Context, success bool, duration time.Duration) {
	if p == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	p.Metrics.TrainingsTotal.WithLabelValues(result).Inc()
	p.Metrics.TrainingDuration.Observe(duration.Seconds())
}

// RecordIngestion records one ingestion pass
func (p *Provider) RecordIngestion(ctx context.Context, files, records int) {
	if p == nil {
		return
	}
	p.Metrics.FilesIngested.Add(float64(files))
	p.Metrics.RecordsIngested.Add(float64(records))
}

// SetCorpusSize sets the current corpus gauge
func (p *Provider) SetCorpusSize(size int) {
	if p == nil {
		return
	}
	p.Metrics.CorpusSize.Set(float64(size))
}

// StartSpan starts a new trace span.
// The caller is responsible for ending the span with span.End().
//
//nolint:spancheck // Caller is responsible for ending the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if p == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	ctx, span := p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span
}
