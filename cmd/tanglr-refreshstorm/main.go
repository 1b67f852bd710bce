// Command tanglr-refreshstorm drives waves of concurrent requests whose access
// token has just been rejected, against an in-process fake API, and reports
// how many refresh exchanges each wave cost. Clients share one Redis session.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	tanglr "github.com/artyultra/tanglr-client"
	"github.com/artyultra/tanglr-client/metrics/export/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		clients    = flag.Int("clients", 4, "number of clients sharing the session")
		callers    = flag.Int("callers", 64, "concurrent requests per client per wave")
		waves      = flag.Int("waves", 20, "number of token rejection waves")
		refreshLag = flag.Duration("refresh-latency", 20*time.Millisecond, "simulated refresh endpoint latency")
		redisAddr  = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix     = flag.String("prefix", "tanglr-storm", "session key prefix")
		showProm   = flag.Bool("prometheus", false, "print the first client's metrics in Prometheus text format")
	)
	flag.Parse()

	if *clients <= 0 || *callers <= 0 || *waves <= 0 {
		fmt.Fprintln(os.Stderr, "clients, callers, and waves must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		rdb     redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = rdb.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	api := newStormAPI(*refreshLag)
	defer api.server.Close()

	fleet := make([]*tanglr.Client, *clients)
	for i := range fleet {
		cfg := tanglr.DefaultConfig()
		cfg.API.BaseURL = api.server.URL
		cfg.Storage.Backend = tanglr.StorageRedis
		cfg.Storage.RedisPrefix = *prefix
		cfg.Metrics.Enabled = true
		cfg.Metrics.EnableLatencyHistograms = true
		cfg.Audit.Enabled = false

		c, err := tanglr.New().WithConfig(cfg).WithRedis(rdb).Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "build client: %v\n", err)
			os.Exit(1)
		}
		defer c.Close()
		fleet[i] = c
	}

	if _, err := fleet[0].Login(ctx, "storm", "storm-password"); err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}

	var (
		latencies = make([]time.Duration, 0, *waves**clients**callers)
		failures  int64
		perWave   = make([]int64, 0, *waves)
		mu        sync.Mutex
	)

	start := time.Now()
	for range *waves {
		api.rejectAll()
		before := api.refreshes.Load()

		var wg sync.WaitGroup
		for _, c := range fleet {
			for range *callers {
				wg.Add(1)
				go func(c *tanglr.Client) {
					defer wg.Done()
					t0 := time.Now()
					_, err := c.GetAllPosts(ctx)
					d := time.Since(t0)
					if err != nil {
						atomic.AddInt64(&failures, 1)
					}
					mu.Lock()
					latencies = append(latencies, d)
					mu.Unlock()
				}(c)
			}
		}
		wg.Wait()
		perWave = append(perWave, api.refreshes.Load()-before)
	}
	total := time.Since(start)

	fmt.Println("---- results ----")
	printStats("requests", computeStats(total, latencies, failures))
	printRefreshes(perWave, *clients)

	if *showProm {
		fmt.Println("---- client 0 metrics ----")
		fmt.Print(prometheus.NewPrometheusExporter(fleet[0]).Render())
	}
}

// stormAPI accepts every access token minted since the last rejectAll, so
// every caller of a wave sees a 401 and needs a refresh.
type stormAPI struct {
	server    *httptest.Server
	latency   time.Duration
	issued    atomic.Int64
	refreshes atomic.Int64

	mu    sync.Mutex
	valid map[string]struct{}
}

func newStormAPI(latency time.Duration) *stormAPI {
	a := &stormAPI{latency: latency, valid: map[string]struct{}{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tanglr.LoginResponse{
			User:         tanglr.User{ID: "storm-user", Username: "storm"},
			Token:        a.mint(),
			RefreshToken: "storm-refresh",
		})
	})
	mux.HandleFunc("POST /v1/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		a.refreshes.Add(1)
		time.Sleep(a.latency)
		writeJSON(w, http.StatusOK, map[string]string{"access_token": a.mint()})
	})
	mux.HandleFunc("GET /v1/posts", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		_, ok := a.valid[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		a.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized: missing or invalid token"})
			return
		}
		writeJSON(w, http.StatusOK, []tanglr.PostDisplay{})
	})
	a.server = httptest.NewServer(mux)
	return a
}

func (a *stormAPI) mint() string {
	token := fmt.Sprintf("storm-access-%d", a.issued.Add(1))
	a.mu.Lock()
	a.valid[token] = struct{}{}
	a.mu.Unlock()
	return token
}

func (a *stormAPI) rejectAll() {
	a.mu.Lock()
	clear(a.valid)
	a.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func printRefreshes(perWave []int64, clients int) {
	var sum, peak int64
	for _, n := range perWave {
		sum += n
		peak = max(peak, n)
	}
	fmt.Printf("refreshes: total=%d waves=%d max/wave=%d bound/wave=%d\n", sum, len(perWave), peak, clients)
}
