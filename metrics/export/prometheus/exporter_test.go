package prometheus

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/httpapi"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewFromSource(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters:   map[authcore.MetricID]uint64{},
		Histograms: map[authcore.MetricID][]uint64{},
	}})
	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output, got:\n%s", got)
	}
}

func TestRenderCountersAndHistogram(t *testing.T) {
	exp := NewFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricLoginSuccess:        7,
				authcore.MetricAntiForgeryMismatch: 1,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricRequestLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"authcore_login_success_total 7",
		"authcore_anti_forgery_mismatch_total 1",
		"authcore_login_failure_total 0",
		`authcore_request_latency_seconds_bucket{le="0.005"} 1`,
		`authcore_request_latency_seconds_bucket{le="+Inf"} 36`,
		"authcore_request_latency_seconds_count 36",
		"authcore_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderSkipsHistogramWhenLatencyDisabled(t *testing.T) {
	exp := NewFromSource(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters:   map[authcore.MetricID]uint64{authcore.MetricLogout: 1},
		Histograms: map[authcore.MetricID][]uint64{},
	}})
	if out := exp.Render(); strings.Contains(out, "_bucket") {
		t.Fatalf("unexpected histogram in:\n%s", out)
	}
}

// TestHandlerServesEngineCounters mounts the exporter on the router and
// checks that a real request moves the counters.
func TestHandlerServesEngineCounters(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := authcore.DefaultConfig()
	cfg.Session.CookieSecure = false
	cfg.CSRF.Key = bytes.Repeat([]byte{'c'}, 32)
	cfg.TOTP.EncryptionKey = bytes.Repeat([]byte{'t'}, 32)
	cfg.EmailVerification.SigningKey = bytes.Repeat([]byte{'e'}, 32)
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(memory.NewAccounts()).
		WithResetTokenStore(memory.NewResetTokens()).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	srv := httptest.NewServer(httpapi.NewRouter(engine, httpapi.Options{Metrics: New(engine).Handler()}))
	t.Cleanup(srv.Close)

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/login", strings.NewReader(`{}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 419 {
		t.Fatalf("expected 419, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("content type %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "authcore_anti_forgery_mismatch_total 1") {
		t.Fatalf("mismatch not counted:\n%s", body)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewFromSource(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{
			authcore.MetricLoginSuccess:   1000,
			authcore.MetricLoginFailure:   40,
			authcore.MetricSessionCreated: 800,
		},
		Histograms: map[authcore.MetricID][]uint64{
			authcore.MetricRequestLatency: {10, 20, 30, 40, 50, 60, 70, 80},
		},
	}})
	b.ReportAllocs()
	for b.Loop() {
		_ = exp.Render()
	}
}
