package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID indexes an in-process counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginDisabled
	MetricLoginUnverified
	MetricLoginSecondFactorRequired
	MetricSecondFactorSuccess
	MetricSecondFactorFailure
	MetricRateLimitHit
	MetricSessionCreated
	MetricSessionRegenerated
	MetricLogout
	MetricLogoutOthers
	MetricTwoFactorEnabled
	MetricTwoFactorConfirmed
	MetricTwoFactorDisabled
	MetricPasswordResetRequest
	MetricPasswordResetPreview
	MetricPasswordResetPreviewRepeat
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricPasswordChanged
	MetricPasswordRehashed
	MetricRegistration
	MetricEmailVerificationSent
	MetricEmailVerificationSuccess
	MetricAuthorizationDenied
	MetricAntiForgeryMismatch
	MetricNotificationFailure
	MetricRequestLatency
	metricIDCount
)

// LatencyBounds are the inclusive upper bounds of the request latency
// buckets. A final overflow bucket catches everything slower.
var LatencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const latencyBucketCount = len(LatencyBounds) + 1

// counter sits alone on its cache line so hot counters do not share one.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics holds one counter per MetricID and the request latency histogram.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	counting bool
	timing   bool
	counters [metricIDCount]counter
	latency  [latencyBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		counting: cfg.Enabled,
		timing:   cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.counting
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d for MetricRequestLatency. Other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.timing || id != MetricRequestLatency {
		return
	}
	m.latency[latencyBucket(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot reads every counter once. Reads are individually atomic but the
// snapshot is not a consistent cut.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}

	for id := range metricIDCount {
		if id != MetricRequestLatency {
			s.Counters[id] = m.counters[id].Load()
		}
	}
	if m.timing {
		hist := make([]uint64, latencyBucketCount)
		for i := range hist {
			hist[i] = m.latency[i].Load()
		}
		s.Histograms[MetricRequestLatency] = hist
	}
	return s
}

func latencyBucket(d time.Duration) int {
	for i, bound := range LatencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(LatencyBounds)
}
