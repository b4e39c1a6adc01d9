// Package metrics exposes Prometheus counters and histograms for the Proxy
// Engine, Port Switcher, and Health Prober.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_requests_total",
			Help: "Total proxied HTTP requests, partitioned by domain and outcome.",
		},
		[]string{"domain", "outcome"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proxy_request_duration_seconds",
			Help:    "Duration of proxied HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"domain"},
	)

	portSwitchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "port_switches_total",
			Help: "Total port switch attempts, partitioned by service and result.",
		},
		[]string{"service", "result"},
	)

	healthProbeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "health_probe_duration_seconds",
			Help:    "Duration of a complete health probe (including retries) in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	circuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state per service: 0=closed, 1=half-open, 2=open.",
		},
		[]string{"service"},
	)
)

// Register registers all collectors with the default Prometheus registry.
// Safe to call once at startup.
func Register() {
	prometheus.MustRegister(
		requestsTotal,
		requestDuration,
		portSwitchesTotal,
		healthProbeDuration,
		circuitBreakerState,
	)
}

// RecordRequest records the outcome of one proxied request.
func RecordRequest(domain, outcome string, seconds float64) {
	requestsTotal.WithLabelValues(domain, outcome).Inc()
	requestDuration.WithLabelValues(domain).Observe(seconds)
}

// RecordPortSwitch records the result of an UpdateServicePort attempt.
// result is one of "success", "not_found", "invalid_port", "health_check_failed".
func RecordPortSwitch(service, result string) {
	portSwitchesTotal.WithLabelValues(service, result).Inc()
}

// RecordHealthProbe records how long a complete probe (across all retries)
// took for a service.
func RecordHealthProbe(service string, seconds float64) {
	healthProbeDuration.WithLabelValues(service).Observe(seconds)
}

// SetCircuitBreakerState records a service's current breaker state as a
// gauge value (0=closed, 1=half-open, 2=open), matching gobreaker's State
// ordering.
func SetCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// Handler returns the HTTP handler serving the metrics in the Prometheus
// exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
