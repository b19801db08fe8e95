package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	settlementMetricsOnce sync.Once
	settlementRegistry    *SettlementMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record API activity per ledger module.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "zizy",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "zizy",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "zizy",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "zizy",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" or "quota_exceeded".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// SettlementMetrics wraps collectors tracking cross-chain settlement health.
type SettlementMetrics struct {
	latency      *prometheus.HistogramVec
	dispatched   *prometheus.CounterVec
	errors       *prometheus.CounterVec
	pending      prometheus.Gauge
	volume       *prometheus.GaugeVec
	pauseEngaged prometheus.Gauge
}

// Settlement exposes the metrics registry for settlementd.
func Settlement() *SettlementMetrics {
	settlementMetricsOnce.Do(func() {
		settlementRegistry = &SettlementMetrics{
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "zizy",
				Subsystem: "settlement",
				Name:      "dispatch_latency_seconds",
				Help:      "Latency between claim and successful dispatch.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"chain"}),
			dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "zizy",
				Subsystem: "settlement",
				Name:      "dispatched_total",
				Help:      "Count of settled jobs per destination chain.",
			}, []string{"chain"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "zizy",
				Subsystem: "settlement",
				Name:      "errors_total",
				Help:      "Count of dispatch failures segmented by chain and reason.",
			}, []string{"chain", "reason"}),
			pending: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "zizy",
				Subsystem: "settlement",
				Name:      "pending_jobs",
				Help:      "Jobs waiting for dispatch after the last poll.",
			}),
			volume: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "zizy",
				Subsystem: "settlement",
				Name:      "settled_amount",
				Help:      "Cumulative settled amount per chain in base units.",
			}, []string{"chain"}),
			pauseEngaged: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "zizy",
				Subsystem: "settlement",
				Name:      "pause_engaged",
				Help:      "Indicates whether the settlement processor is paused (1) or not (0).",
			}),
		}
		prometheus.MustRegister(
			settlementRegistry.latency,
			settlementRegistry.dispatched,
			settlementRegistry.errors,
			settlementRegistry.pending,
			settlementRegistry.volume,
			settlementRegistry.pauseEngaged,
		)
	})
	return settlementRegistry
}

// ObserveDispatch records a successful dispatch.
func (m *SettlementMetrics) ObserveDispatch(chain string, amount *big.Int, d time.Duration) {
	if m == nil {
		return
	}
	label := labelChain(chain)
	m.dispatched.WithLabelValues(label).Inc()
	m.latency.WithLabelValues(label).Observe(d.Seconds())
	m.volume.WithLabelValues(label).Add(bigToFloat(amount))
}

// RecordError increments the error counter for the supplied reason.
func (m *SettlementMetrics) RecordError(chain, reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.errors.WithLabelValues(labelChain(chain), reason).Inc()
}

// SetPending publishes the backlog size.
func (m *SettlementMetrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

// SetPause toggles the pause_engaged gauge.
func (m *SettlementMetrics) SetPause(engaged bool) {
	if m == nil {
		return
	}
	if engaged {
		m.pauseEngaged.Set(1)
		return
	}
	m.pauseEngaged.Set(0)
}

func labelChain(chain string) string {
	trimmed := strings.TrimSpace(chain)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
