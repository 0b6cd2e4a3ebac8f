package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the service's Prometheus series. Each collector has its own
// registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	ScoresTotal      *prometheus.CounterVec
	ScoreWarnings    *prometheus.CounterVec
	RejectedTotal    *prometheus.CounterVec
	AnalysesTotal    prometheus.Counter
	AnalysisDuration prometheus.Histogram
	InsightsTotal    *prometheus.CounterVec
}

func NewCollector(serviceName string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		ScoresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "assessment",
			Name:      "scores_total",
			Help:      "Scored responses by instrument and severity label.",
		}, []string{"instrument", "severity"}),

		ScoreWarnings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "assessment",
			Name:      "unscorable_totals_total",
			Help:      "Totals that matched no severity range. Alert if non-zero.",
		}, []string{"instrument"}),

		RejectedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "assessment",
			Name:      "rejected_total",
			Help:      "Responses rejected before scoring, by reason.",
		}, []string{"instrument", "reason"}),

		AnalysesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "trends",
			Name:      "analyses_total",
			Help:      "Trend analyses run.",
		}),

		AnalysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "trends",
			Name:      "analysis_duration_seconds",
			Help:      "Time spent loading samples and evaluating trends and insights.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),

		InsightsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "trends",
			Name:      "insights_total",
			Help:      "Insights emitted by rule and category.",
		}, []string{"rule", "category"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Collector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collector's registry in the Prometheus text format.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by the matched route
// so path parameters do not explode cardinality.
func (m *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.InFlightGauge.Inc()
			defer m.InFlightGauge.Dec()

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// ObserveScore counts a successfully scored response.
func (m *Collector) ObserveScore(instrumentID, severity string, warned bool) {
	m.ScoresTotal.WithLabelValues(instrumentID, severity).Inc()
	if warned {
		m.ScoreWarnings.WithLabelValues(instrumentID).Inc()
	}
}

// ObserveRejected counts a response that failed validation. Unknown
// instrument ids come from callers and are folded into one label value.
func (m *Collector) ObserveRejected(instrumentID, reason string) {
	if reason == "unknown_instrument" {
		instrumentID = "unknown"
	}
	m.RejectedTotal.WithLabelValues(instrumentID, reason).Inc()
}

// ObserveAnalysis records one trend analysis run.
func (m *Collector) ObserveAnalysis(d time.Duration) {
	m.AnalysesTotal.Inc()
	m.AnalysisDuration.Observe(d.Seconds())
}

// ObserveInsight counts an emitted insight.
func (m *Collector) ObserveInsight(rule, category string) {
	m.InsightsTotal.WithLabelValues(rule, category).Inc()
}

// Nop satisfies the recorder interfaces without recording anything.
type Nop struct{}

func (Nop) ObserveScore(string, string, bool) {}
func (Nop) ObserveRejected(string, string)    {}
func (Nop) ObserveAnalysis(time.Duration)     {}
func (Nop) ObserveInsight(string, string)     {}
