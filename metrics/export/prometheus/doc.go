// Package prometheus renders Tanglr client metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] reads a [tanglr.Client] and exposes an [http.Handler].
// Counters are named tanglr_*_total; the request latency histogram is
// tanglr_request_latency_seconds. Nothing is registered globally; callers
// mount the Handler themselves.
package prometheus
