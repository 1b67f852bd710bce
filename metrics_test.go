package tanglr

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %d counters", len(snap.Counters))
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricRefreshSuccess)
	m.Observe(MetricRequestLatency, time.Millisecond)
	if m.Enabled() || m.LatencyEnabled() || m.Value(MetricRefreshSuccess) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRefreshQueued)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRefreshQueued); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		5 * time.Second,
		30 * time.Second,
	}
	for _, d := range observations {
		m.Observe(MetricRequestLatency, d)
	}
	// Only the request latency metric carries a histogram.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricRequestLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if _, ok := m.Snapshot().Histograms[MetricLoginSuccess]; ok {
		t.Fatal("unexpected histogram for a counter metric")
	}
}

func TestMetricsHistogramRequiresLatencyFlag(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricRequestLatency, time.Millisecond)

	if _, ok := m.Snapshot().Histograms[MetricRequestLatency]; ok {
		t.Fatal("histogram reported while latency histograms are disabled")
	}
}

func TestClientRecordsRequestLatency(t *testing.T) {
	api := newFakeAPI(t)
	c := loggedInClient(t, api, func(cfg *Config) { cfg.Metrics.EnableLatencyHistograms = true })

	if _, err := c.GetAllPosts(t.Context()); err != nil {
		t.Fatalf("GetAllPosts: %v", err)
	}

	var total uint64
	for _, v := range c.MetricsSnapshot().Histograms[MetricRequestLatency] {
		total += v
	}
	// login plus one feed request
	if total != 2 {
		t.Fatalf("expected 2 latency samples, got %d", total)
	}
}
