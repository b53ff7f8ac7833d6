package ai

import (
	"math"
	"sync"
)

// MetricsRecorder accumulates ModelMetrics across requests. Adapters embed it.
type MetricsRecorder struct {
	mu      sync.Mutex
	metrics ModelMetrics
	observe func(ModelMetrics)
}

// OnRecord registers a callback invoked with the delta of every request.
func (m *MetricsRecorder) OnRecord(fn func(ModelMetrics)) {
	m.mu.Lock()
	m.observe = fn
	m.mu.Unlock()
}

// Record adds a single request's usage to the running totals.
func (m *MetricsRecorder) Record(delta ModelMetrics) {
	delta.Requests = 1

	m.mu.Lock()
	m.metrics.Requests++
	m.metrics.InputTokens += delta.InputTokens
	m.metrics.OutputTokens += delta.OutputTokens
	m.metrics.TotalTokens += delta.TotalTokens
	m.metrics.DurationMs += delta.DurationMs

	if m.metrics.DurationMs > 0 {
		tokensPerSecond := (float64(m.metrics.TotalTokens) * 1000.0) / float64(m.metrics.DurationMs)
		m.metrics.TokenPerSecond = float32(math.Round(tokensPerSecond*100) / 100)
	}
	observe := m.observe
	m.mu.Unlock()

	if observe != nil {
		observe(delta)
	}
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (m *MetricsRecorder) ResetMetrics() {
	m.mu.Lock()
	m.metrics = ModelMetrics{}
	m.mu.Unlock()
}

// GetMetrics returns the accumulated metrics since the last reset.
func (m *MetricsRecorder) GetMetrics() ModelMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}
