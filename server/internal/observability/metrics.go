package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects search request counters and stage durations.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64

	stages   map[string]*StageMetrics
	degraded map[string]int64

	durations    []time.Duration
	maxDurations int
}

// StageMetrics represents metrics for one pipeline stage.
type StageMetrics struct {
	executionCount atomic.Int64
	totalDuration  atomic.Int64 // milliseconds
}

// NewMetrics creates a new metrics collector keeping the last maxDurations
// request durations.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		stages:       make(map[string]*StageMetrics),
		degraded:     make(map[string]int64),
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// RecordRequest records a search request and its total duration.
func (m *Metrics) RecordRequest(duration time.Duration) {
	m.requestTotal.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
}

// RecordFailure records a request that returned an error.
func (m *Metrics) RecordFailure() {
	m.requestFailed.Add(1)
}

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(stage string, duration time.Duration) {
	sm := m.stage(stage)
	sm.executionCount.Add(1)
	sm.totalDuration.Add(duration.Milliseconds())
}

// RecordDegraded records a stage that fell back.
func (m *Metrics) RecordDegraded(reason string) {
	m.mu.Lock()
	m.degraded[reason]++
	m.mu.Unlock()
}

func (m *Metrics) stage(name string) *StageMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	sm, ok := m.stages[name]
	if !ok {
		sm = &StageMetrics{}
		m.stages[name] = sm
	}
	return sm
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)

	m.mu.Lock()
	m.stages = make(map[string]*StageMetrics)
	m.degraded = make(map[string]int64)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	stages := make(map[string]*StageSnapshot, len(m.stages))
	for name, sm := range m.stages {
		count := sm.executionCount.Load()
		total := sm.totalDuration.Load()
		var avg int64
		if count > 0 {
			avg = total / count
		}
		stages[name] = &StageSnapshot{ExecutionCount: count, TotalDuration: total, AverageDuration: avg}
	}

	degraded := make(map[string]int64, len(m.degraded))
	for reason, n := range m.degraded {
		degraded[reason] = n
	}

	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		Stages:        stages,
		Degraded:      degraded,
		P50Duration:   percentile(m.durations, 0.5),
		P95Duration:   percentile(m.durations, 0.95),
	}
}

func percentile(durations []time.Duration, p float64) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64                     `json:"request_total"`
	RequestFailed int64                     `json:"request_failed"`
	Stages        map[string]*StageSnapshot `json:"stages"`
	Degraded      map[string]int64          `json:"degraded"`
	P50Duration   time.Duration             `json:"p50_duration"`
	P95Duration   time.Duration             `json:"p95_duration"`
}

// StageSnapshot represents metrics for one stage, durations in milliseconds.
type StageSnapshot struct {
	ExecutionCount  int64 `json:"execution_count"`
	TotalDuration   int64 `json:"total_duration_ms"`
	AverageDuration int64 `json:"average_duration_ms"`
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed) / float64(s.RequestTotal) * 100.0
}
