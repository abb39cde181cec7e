package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	ticksProcessed    atomic.Uint64
	staleDropped      atomic.Uint64
	ordersFilled      atomic.Uint64
	simulatedFills    atomic.Uint64
	backendErrors     atomic.Uint64
	reconnectAttempts atomic.Uint64
	simulatedEntries  atomic.Uint64
	pnlFlashes        atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeClients atomic.Int32
	feedSimulated atomic.Int32 // 1 = simulated, 0 = live or idle
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordTick records a processed tick with its handling latency.
func (m *Metrics) RecordTick(latencyNs int64) {
	m.ticksProcessed.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordStaleDropped records an event dropped because its subscription was replaced.
func (m *Metrics) RecordStaleDropped() {
	m.staleDropped.Add(1)
}

// RecordOrderFilled records a filled order. simulated marks the local fallback path.
func (m *Metrics) RecordOrderFilled(simulated bool) {
	m.ordersFilled.Add(1)
	if simulated {
		m.simulatedFills.Add(1)
	}
}

// RecordBackendError records a failed trading backend call.
func (m *Metrics) RecordBackendError() {
	m.backendErrors.Add(1)
}

// RecordReconnectAttempt records a feed reconnect attempt.
func (m *Metrics) RecordReconnectAttempt() {
	m.reconnectAttempts.Add(1)
}

// RecordPnlFlash records an emitted PnL change flash.
func (m *Metrics) RecordPnlFlash() {
	m.pnlFlashes.Add(1)
}

// SetFeedSimulated sets the simulated-mode gauge.
func (m *Metrics) SetFeedSimulated(simulated bool) {
	if simulated {
		if m.feedSimulated.Swap(1) == 0 {
			m.simulatedEntries.Add(1)
		}
	} else {
		m.feedSimulated.Store(0)
	}
}

// IncrementClients increments connected browser clients by 1.
func (m *Metrics) IncrementClients() {
	m.activeClients.Add(1)
}

// DecrementClients decrements connected browser clients by 1.
func (m *Metrics) DecrementClients() {
	m.activeClients.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	TicksProcessed    uint64    `json:"ticks_processed"`
	StaleDropped      uint64    `json:"stale_dropped"`
	OrdersFilled      uint64    `json:"orders_filled"`
	SimulatedFills    uint64    `json:"simulated_fills"`
	BackendErrors     uint64    `json:"backend_errors"`
	ReconnectAttempts uint64    `json:"reconnect_attempts"`
	SimulatedEntries  uint64    `json:"simulated_entries"`
	PnlFlashes        uint64    `json:"pnl_flashes"`
	AvgTickLatencyNs  int64     `json:"avg_tick_latency_ns"`
	ActiveClients     int32     `json:"active_clients"`
	FeedSimulated     bool      `json:"feed_simulated"`
	Timestamp         time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		TicksProcessed:    m.ticksProcessed.Load(),
		StaleDropped:      m.staleDropped.Load(),
		OrdersFilled:      m.ordersFilled.Load(),
		SimulatedFills:    m.simulatedFills.Load(),
		BackendErrors:     m.backendErrors.Load(),
		ReconnectAttempts: m.reconnectAttempts.Load(),
		SimulatedEntries:  m.simulatedEntries.Load(),
		PnlFlashes:        m.pnlFlashes.Load(),
		AvgTickLatencyNs:  avgLatency,
		ActiveClients:     m.activeClients.Load(),
		FeedSimulated:     m.feedSimulated.Load() == 1,
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.ticksProcessed.Store(0)
	m.staleDropped.Store(0)
	m.ordersFilled.Store(0)
	m.simulatedFills.Store(0)
	m.backendErrors.Store(0)
	m.reconnectAttempts.Store(0)
	m.simulatedEntries.Store(0)
	m.pnlFlashes.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeClients.Store(0)
	m.feedSimulated.Store(0)
}
