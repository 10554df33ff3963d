package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	productMutations *prometheus.CounterVec
	productLoads     *prometheus.CounterVec
	authAttempts     *prometheus.CounterVec
}

// NewMetrics initialises the registry and the application collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockeasy_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockeasy_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockeasy_product_mutations_total",
		Help: "Product create, update and delete calls by table and outcome.",
	}, []string{"table", "op", "result"})
	loads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockeasy_product_loads_total",
		Help: "Full table reloads by table and outcome.",
	}, []string{"table", "result"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockeasy_auth_attempts_total",
		Help: "Sign-in attempts by outcome.",
	}, []string{"result"})
	registry.MustRegister(requests, duration, mutations, loads, attempts)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		productMutations: mutations,
		productLoads:     loads,
		authAttempts:     attempts,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveProductMutation counts one product write against table.
func (m *Metrics) ObserveProductMutation(table, op string, err error) {
	if m == nil {
		return
	}
	m.productMutations.WithLabelValues(table, op, result(err)).Inc()
}

// ObserveProductLoad counts one full reload of table.
func (m *Metrics) ObserveProductLoad(table string, err error) {
	if m == nil {
		return
	}
	m.productLoads.WithLabelValues(table, result(err)).Inc()
}

// ObserveAuthAttempt counts a sign-in attempt. outcome is "success",
// "invalid" or "error".
func (m *Metrics) ObserveAuthAttempt(outcome string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(outcome).Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
