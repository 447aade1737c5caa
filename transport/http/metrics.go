package http

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentpolicylayer/apl-go/protocol"
)

// metrics holds the Prometheus collectors exposed at /metrics, registered
// against a private registry rather than the global default so multiple
// Server instances in one process (as in tests) never collide.
type metrics struct {
	registry      *prometheus.Registry
	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter
	uptimeSeconds prometheus.GaugeFunc
	eventsTotal   *prometheus.CounterVec
	decisionsTotal *prometheus.CounterVec

	mu           sync.Mutex
	latencySumMS float64
	latencyCount float64
	latencyAvg   prometheus.Gauge
}

func newMetrics(startedAt time.Time) *metrics {
	reg := prometheus.NewRegistry()

	m := &metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apl_requests_total",
			Help: "Total number of /evaluate requests handled.",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apl_errors_total",
			Help: "Total number of /evaluate requests that failed to decode or dispatch.",
		}),
		latencyAvg: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "apl_latency_ms_avg",
			Help: "Running average evaluation latency in milliseconds.",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apl_events_total",
			Help: "Total number of events evaluated, by event type.",
		}, []string{"event_type"}),
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apl_decisions_total",
			Help: "Total number of composed decisions returned, by decision.",
		}, []string{"decision"}),
	}
	m.uptimeSeconds = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "apl_uptime_seconds",
		Help: "Seconds since the server process started.",
	}, func() float64 { return time.Since(startedAt).Seconds() })

	reg.MustRegister(m.requestsTotal, m.errorsTotal, m.latencyAvg, m.eventsTotal, m.decisionsTotal, m.uptimeSeconds)
	return m
}

func (m *metrics) recordError() {
	m.errorsTotal.Inc()
}

// recordEvaluation updates every counter an /evaluate call contributes to.
func (m *metrics) recordEvaluation(eventType protocol.EventType, composed protocol.Decision, latencyMS float64) {
	m.requestsTotal.Inc()
	m.eventsTotal.WithLabelValues(string(eventType)).Inc()
	m.decisionsTotal.WithLabelValues(string(composed)).Inc()

	m.mu.Lock()
	m.latencySumMS += latencyMS
	m.latencyCount++
	m.latencyAvg.Set(m.latencySumMS / m.latencyCount)
	m.mu.Unlock()
}
