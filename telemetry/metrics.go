// Package telemetry provides Prometheus metrics, OpenTelemetry tracing setup,
// and correlation-id aware logging helpers for the trivia engine.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	QuestionsFetched *prometheus.CounterVec // by source
	FetchRejections  *prometheus.CounterVec // by reason
	FetchExhausted   prometheus.Counter
	GamesStarted     prometheus.Counter
	GamesResolved    *prometheus.CounterVec // by outcome: correct|incorrect|timeout
	ShinyGranted     prometheus.Counter
	ToxicGranted     prometheus.Counter
	SchedulerTicks   prometheus.Counter
	AnswersSubmitted prometheus.Counter

	// Histograms (seconds)
	FetchDuration prometheus.Observer
	AnswerLatency prometheus.Observer

	// Gauges
	QueueDepthGauge     prometheus.Gauge
	ActiveChannelsGauge prometheus.Gauge
	TrippedSourcesGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		QuestionsFetched = promauto.NewCounterVec(prometheus.CounterOpts{Name: "trivia_questions_fetched_total", Help: "Questions fetched and approved, by source"}, []string{"source"})
		FetchRejections = promauto.NewCounterVec(prometheus.CounterOpts{Name: "trivia_fetch_rejections_total", Help: "Draws rejected during fetch, by reason"}, []string{"reason"})
		FetchExhausted = promauto.NewCounter(prometheus.CounterOpts{Name: "trivia_fetch_exhausted_total", Help: "Fetch calls that exhausted their retry budget"})
		GamesStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "trivia_games_started_total", Help: "Game instances started"})
		GamesResolved = promauto.NewCounterVec(prometheus.CounterOpts{Name: "trivia_games_resolved_total", Help: "Game instances resolved, by outcome"}, []string{"outcome"})
		ShinyGranted = promauto.NewCounter(prometheus.CounterOpts{Name: "trivia_shiny_granted_total", Help: "Shiny statuses granted"})
		ToxicGranted = promauto.NewCounter(prometheus.CounterOpts{Name: "trivia_toxic_granted_total", Help: "Toxic statuses granted"})
		SchedulerTicks = promauto.NewCounter(prometheus.CounterOpts{Name: "trivia_scheduler_ticks_total", Help: "Scheduler tick executions"})
		AnswersSubmitted = promauto.NewCounter(prometheus.CounterOpts{Name: "trivia_answers_submitted_total", Help: "Answer submissions received"})
		FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "trivia_fetch_duration_seconds", Help: "End-to-end question fetch duration", Buckets: prometheus.DefBuckets})
		AnswerLatency = promauto.NewHistogram(prometheus.HistogramOpts{Name: "trivia_answer_latency_seconds", Help: "Time from prompt to first resolving answer", Buckets: prometheus.DefBuckets})
		QueueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "trivia_queue_depth", Help: "Pending game entries across all channels"})
		ActiveChannelsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "trivia_active_channels", Help: "Channels with a running game instance"})
		TrippedSourcesGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "trivia_sources_tripped", Help: "Providers currently excluded by the instability breaker"})
	})
}

// The nil checks below let engine packages record metrics unconditionally;
// tests that never call Init simply record nothing.

// CountFetchSuccess records an approved draw for a source.
func CountFetchSuccess(source string) {
	if QuestionsFetched != nil {
		QuestionsFetched.WithLabelValues(source).Inc()
	}
}

// CountFetchReject records a rejected draw by reason.
func CountFetchReject(reason string) {
	if FetchRejections != nil {
		FetchRejections.WithLabelValues(reason).Inc()
	}
}

// CountGameResolved records a resolved instance by outcome.
func CountGameResolved(outcome string) {
	if GamesResolved != nil {
		GamesResolved.WithLabelValues(outcome).Inc()
	}
}

// ObserveFetchDuration records one fetch call's duration.
func ObserveFetchDuration(d time.Duration) {
	if FetchDuration != nil {
		FetchDuration.Observe(d.Seconds())
	}
}

// ObserveAnswerLatency records time from prompt to resolution.
func ObserveAnswerLatency(d time.Duration) {
	if AnswerLatency != nil {
		AnswerLatency.Observe(d.Seconds())
	}
}

// SetQueueDepth records the total pending entry count.
func SetQueueDepth(n int) {
	if QueueDepthGauge != nil {
		QueueDepthGauge.Set(float64(n))
	}
}

// SetActiveChannels records how many channels are mid-game.
func SetActiveChannels(n int) {
	if ActiveChannelsGauge != nil {
		ActiveChannelsGauge.Set(float64(n))
	}
}

// SetTrippedSources records the breaker-excluded provider count.
func SetTrippedSources(n int) {
	if TrippedSourcesGauge != nil {
		TrippedSourcesGauge.Set(float64(n))
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
