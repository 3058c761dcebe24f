package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meetup"

// Contact submission outcomes.
const (
	OutcomeAccepted    = "accepted"
	OutcomeRateLimited = "rate_limited"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
)

// Collector owns the Prometheus registry for the site backend.
type Collector struct {
	registry         *prometheus.Registry
	submissions      *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	limiterFallbacks prometheus.Counter
}

// NewCollector creates a collector on a private registry. Go runtime and
// process collectors are registered alongside the site metrics.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contact",
			Name:      "submissions_total",
			Help:      "Contact submissions by outcome.",
		}, []string{"outcome"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contact",
			Name:      "notifications_total",
			Help:      "Notification dispatch attempts by result.",
		}, []string{"result"}),
		dispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "contact",
			Name:      "notification_duration_seconds",
			Help:      "Latency of notification provider calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		limiterFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "redis_fallbacks_total",
			Help:      "Times the shared limiter failed and checks moved to the local limiter.",
		}),
	}
	registry.MustRegister(
		c.submissions,
		c.dispatches,
		c.dispatchDuration,
		c.limiterFallbacks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// RecordSubmission counts a contact request by outcome.
func (c *Collector) RecordSubmission(outcome string) {
	if c == nil {
		return
	}
	c.submissions.WithLabelValues(outcome).Inc()
}

// RecordDispatch counts a notification result. Skipped dispatches carry no latency.
func (c *Collector) RecordDispatch(result string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.dispatches.WithLabelValues(result).Inc()
	if elapsed > 0 {
		c.dispatchDuration.Observe(elapsed.Seconds())
	}
}

// RecordLimiterFallback counts a switch from Redis to the local limiter.
func (c *Collector) RecordLimiterFallback() {
	if c == nil {
		return
	}
	c.limiterFallbacks.Inc()
}

// Handler returns the Prometheus exposition handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
