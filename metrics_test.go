package authcore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledRecordsNothing(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})
	m.Inc(MetricLogout)
	m.Observe(MetricRequestLatency, time.Millisecond)

	if got := m.Value(MetricLogout); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled metrics must snapshot empty, got %+v", snap)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLogout)
	if nilMetrics.Enabled() || nilMetrics.Value(MetricLogout) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}

func TestMetricsParallelIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 16
	const each = 5000

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				m.Inc(MetricSecondFactorFailure)
			}
		}()
	}
	wg.Wait()

	if got, want := m.Value(MetricSecondFactorFailure), uint64(workers*each); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
	if got := m.Value(metricIDCount); got != 0 {
		t.Fatalf("out-of-range id must read 0, got %d", got)
	}
}

func TestLatencyBucket(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{5*time.Millisecond + time.Microsecond, 1},
		{25 * time.Millisecond, 2},
		{99 * time.Millisecond, 4},
		{500 * time.Millisecond, 6},
		{2 * time.Second, len(LatencyBounds)},
	}
	for _, tc := range cases {
		if got := latencyBucket(tc.d); got != tc.want {
			t.Fatalf("latencyBucket(%s) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestMetricsSnapshotHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricRequestLatency, 3*time.Millisecond)
	m.Observe(MetricRequestLatency, 3*time.Millisecond)
	m.Observe(MetricRequestLatency, time.Second)
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	hist := snap.Histograms[MetricRequestLatency]
	if len(hist) != latencyBucketCount {
		t.Fatalf("expected %d buckets, got %d", latencyBucketCount, len(hist))
	}
	if hist[0] != 2 || hist[latencyBucketCount-1] != 1 {
		t.Fatalf("unexpected buckets %v", hist)
	}
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("counters must not carry a histogram")
	}
	if _, ok := snap.Counters[MetricRequestLatency]; ok {
		t.Fatal("latency must not appear as a counter")
	}
}

func TestEngineCountsLoginOutcomes(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.seed(t, "ana@example.com", "P1-password", "user")
	ctx := context.Background()

	f.login(t, "ana@example.com", "P1-password")
	if _, err := f.engine.Login(ctx, LoginInput{Email: "ana@example.com", Password: "nope"}); err == nil {
		t.Fatal("expected failure")
	}

	snap := f.engine.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 || snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("unexpected login counters %v", snap.Counters)
	}
	if snap.Counters[MetricSessionCreated] == 0 {
		t.Fatal("expected a created session to be counted")
	}
}
