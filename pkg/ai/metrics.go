package ai

import (
	"sync"
	"time"
)

// MetricsRecorder accumulates ModelMetrics for an adapter. Safe for concurrent use.
type MetricsRecorder struct {
	mu      sync.Mutex
	metrics ModelMetrics
}

// Record adds one request. inputTokens and outputTokens may be estimates.
func (r *MetricsRecorder) Record(inputTokens, outputTokens int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := &r.metrics
	m.Requests++
	m.InputTokens += inputTokens
	m.OutputTokens += outputTokens
	m.TotalTokens += inputTokens + outputTokens
	m.DurationMs += duration.Milliseconds()
	m.WallClockMs += duration.Milliseconds()
	if m.DurationMs > 0 {
		m.TokenPerSecond = float32(m.OutputTokens) / (float32(m.DurationMs) / 1000)
	}
}

func (r *MetricsRecorder) ResetMetrics() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = ModelMetrics{}
}

func (r *MetricsRecorder) GetMetrics() ModelMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}
