package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	published   *prometheus.CounterVec
	dropped     prometheus.Counter
	subscribers prometheus.Gauge
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking the event bus.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "zizy",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Count of committed events segmented by module.",
			}, []string{"module"}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "zizy",
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Events not delivered to a slow subscriber.",
			}),
			subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "zizy",
				Subsystem: "events",
				Name:      "subscribers",
				Help:      "Active event bus subscribers.",
			}),
		}
		prometheus.MustRegister(eventRegistry.published, eventRegistry.dropped, eventRegistry.subscribers)
	})
	return eventRegistry
}

// RecordPublished counts an event by the module prefix of its type.
func (m *eventMetrics) RecordPublished(eventType string) {
	if m == nil {
		return
	}
	module := eventType
	if idx := strings.IndexByte(eventType, '.'); idx > 0 {
		module = eventType[:idx]
	}
	if module == "" {
		module = "unknown"
	}
	m.published.WithLabelValues(module).Inc()
}

func (m *eventMetrics) RecordDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *eventMetrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}
