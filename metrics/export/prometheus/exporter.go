package prometheus

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"

	tanglr "github.com/artyultra/tanglr-client"
	"github.com/artyultra/tanglr-client/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() tanglr.MetricsSnapshot
	AuditDropped() uint64
}

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// PrometheusExporter renders client metrics in Prometheus text format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter returns an exporter reading from client.
func NewPrometheusExporter(client *tanglr.Client) *PrometheusExporter {
	return &PrometheusExporter{source: client}
}

func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the current metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = p.WriteTo(w)
	})
}

// Render returns the current metrics, or "" when metrics are disabled and no
// audit events were dropped.
func (p *PrometheusExporter) Render() string {
	var b strings.Builder
	_, _ = p.WriteTo(&b)
	return b.String()
}

// WriteTo writes one scrape of the current metrics to w.
func (p *PrometheusExporter) WriteTo(w io.Writer) (int64, error) {
	if p == nil || p.source == nil {
		return 0, nil
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return 0, nil
	}

	cw := &countingWriter{w: bufio.NewWriter(w)}
	for _, def := range internaldefs.CounterDefs {
		cw.counter(def.Name, def.Help, snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		buckets := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))
		cw.histogram(def.Name, def.Help, buckets)
	}
	cw.counter("tanglr_audit_dropped_total", "Audit events dropped on a full buffer.", dropped)

	if cw.err == nil {
		cw.err = cw.w.Flush()
	}
	return cw.n, cw.err
}

// countingWriter stops writing after the first error.
type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countingWriter) printf(format string, args ...any) {
	if c.err != nil {
		return
	}
	n, err := fmt.Fprintf(c.w, format, args...)
	c.n += int64(n)
	c.err = err
}

func (c *countingWriter) header(name, help, kind string) {
	c.printf("# HELP %s %s\n# TYPE %s %s\n", name, escapeHelp(help), name, kind)
}

func (c *countingWriter) counter(name, help string, value uint64) {
	c.header(name, help, "counter")
	c.printf("%s %d\n", name, value)
}

func (c *countingWriter) histogram(name, help string, cumulative [8]uint64) {
	c.header(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		c.printf("%s_bucket{le=%q} %d\n", name, le, cumulative[i])
	}
	c.printf("%s_count %d\n", name, cumulative[len(cumulative)-1])
	// Snapshots carry bucket counts only.
	c.printf("%s_sum 0\n", name)
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}
