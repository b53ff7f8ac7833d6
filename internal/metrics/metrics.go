// Package metrics exposes Prometheus metrics for the graph pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scilab-ai/scilab/backend/pkg/ai"
	"github.com/scilab-ai/scilab/backend/pkg/community"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	llmRequests     prometheus.Counter
	llmTokens       *prometheus.CounterVec
	llmDuration     prometheus.Histogram
	chunkFailures   prometheus.Counter
	communityBuilds prometheus.Counter
	buildDuration   prometheus.Histogram
	communities     prometheus.Gauge
	ingests         *prometheus.CounterVec
	ingestDuration  prometheus.Histogram
	chats           *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		llmRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scilab_llm_requests_total",
			Help: "Total number of LLM requests",
		}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scilab_llm_tokens_total",
			Help: "LLM tokens by direction",
		}, []string{"direction"}),
		llmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scilab_llm_request_duration_seconds",
			Help:    "LLM request latency",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		chunkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scilab_extract_chunk_failures_total",
			Help: "Chunks whose extraction call failed",
		}),
		communityBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scilab_community_builds_total",
			Help: "Completed community builds",
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scilab_community_build_duration_seconds",
			Help:    "Community build latency",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		communities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scilab_communities",
			Help: "Communities with a summary in the current snapshot",
		}),
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scilab_ingests_total",
			Help: "Document ingestions by outcome",
		}, []string{"status"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scilab_ingest_duration_seconds",
			Help:    "Document ingestion latency",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		chats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scilab_chats_total",
			Help: "Chat requests by outcome",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.llmRequests, m.llmTokens, m.llmDuration,
		m.chunkFailures,
		m.communityBuilds, m.buildDuration, m.communities,
		m.ingests, m.ingestDuration,
		m.chats,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveLLM records one model call delta.
func (m *Metrics) ObserveLLM(delta ai.ModelMetrics) {
	if m == nil {
		return
	}
	m.llmRequests.Add(float64(delta.Requests))
	m.llmTokens.WithLabelValues("input").Add(float64(delta.InputTokens))
	m.llmTokens.WithLabelValues("output").Add(float64(delta.OutputTokens))
	m.llmDuration.Observe(float64(delta.DurationMs) / 1000)
}

func (m *Metrics) ChunkFailed() {
	if m == nil {
		return
	}
	m.chunkFailures.Inc()
}

func (m *Metrics) CommunitiesBuilt(stats community.Stats, took time.Duration) {
	if m == nil {
		return
	}
	m.communityBuilds.Inc()
	m.buildDuration.Observe(took.Seconds())
	m.communities.Set(float64(stats.Communities))
}

func (m *Metrics) Ingested(took time.Duration) {
	if m == nil {
		return
	}
	m.ingests.WithLabelValues("success").Inc()
	m.ingestDuration.Observe(took.Seconds())
}

func (m *Metrics) IngestFailed() {
	if m == nil {
		return
	}
	m.ingests.WithLabelValues("error").Inc()
}

func (m *Metrics) Chat(ok bool) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	m.chats.WithLabelValues(status).Inc()
}
