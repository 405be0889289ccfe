// Package telemetry holds the process-wide Prometheus collectors.
// They register on the default registry, served by the health server at /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicedesk_queries_total",
		Help: "Queries handled, by resolved intent and outcome",
	}, []string{"intent", "status"})

	QueryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicedesk_query_latency_seconds",
		Help:    "End-to-end query latency",
		Buckets: prometheus.DefBuckets,
	})

	StageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicedesk_stage_latency_seconds",
		Help:    "Latency of one pipeline stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicedesk_rate_limited_total",
		Help: "Queries answered from the session cache during cooldown",
	})

	VoiceFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicedesk_tts_voice_fallback_total",
		Help: "Replies synthesized with the default voice because the language had none",
	}, []string{"language"})

	// Providers
	ProviderErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicedesk_provider_errors_total",
		Help: "Failed calls to hosted services",
	}, []string{"provider", "class"})

	ProviderRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicedesk_provider_retries_total",
		Help: "Retried calls to hosted services",
	}, []string{"provider"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voicedesk_breaker_state",
		Help: "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
	}, []string{"provider"})
)
