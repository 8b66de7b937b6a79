package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters and latency stats for the server.
type Metrics struct {
	sessionsOpened  uint64
	sessionsClosed  uint64
	sessionsEvicted uint64
	authFailures    uint64
	protocolErrors  uint64
	broadcasts      uint64
	outboundDropped uint64

	orderSubmitLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	SessionsOpened     uint64
	SessionsClosed     uint64
	SessionsEvicted    uint64
	AuthFailures       uint64
	ProtocolErrors     uint64
	Broadcasts         uint64
	OutboundDropped    uint64
	OrderSubmitLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncSessionOpened records a session entering Active.
func (m *Metrics) IncSessionOpened() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.sessionsOpened, 1)
}

// IncSessionClosed records a session teardown.
func (m *Metrics) IncSessionClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.sessionsClosed, 1)
}

// IncSessionEvicted records a duplicate-identity eviction.
func (m *Metrics) IncSessionEvicted() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.sessionsEvicted, 1)
}

// IncAuthFailure records a rejected handshake.
func (m *Metrics) IncAuthFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.authFailures, 1)
}

// IncProtocolError records a dropped malformed message.
func (m *Metrics) IncProtocolError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.protocolErrors, 1)
}

// IncBroadcast records one trade-status fan-out.
func (m *Metrics) IncBroadcast() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.broadcasts, 1)
}

// IncOutboundDropped records an outbound message lost to a full queue or a
// gone session.
func (m *Metrics) IncOutboundDropped() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.outboundDropped, 1)
}

// ObserveOrderSubmit measures one serialized gateway submission.
func (m *Metrics) ObserveOrderSubmit(d time.Duration) {
	if m == nil {
		return
	}
	m.orderSubmitLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		SessionsOpened:     atomic.LoadUint64(&m.sessionsOpened),
		SessionsClosed:     atomic.LoadUint64(&m.sessionsClosed),
		SessionsEvicted:    atomic.LoadUint64(&m.sessionsEvicted),
		AuthFailures:       atomic.LoadUint64(&m.authFailures),
		ProtocolErrors:     atomic.LoadUint64(&m.protocolErrors),
		Broadcasts:         atomic.LoadUint64(&m.broadcasts),
		OutboundDropped:    atomic.LoadUint64(&m.outboundDropped),
		OrderSubmitLatency: m.orderSubmitLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
