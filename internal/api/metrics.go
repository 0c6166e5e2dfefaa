package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatched = "unmatched"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esgqa_http_requests_total",
			Help: "Total number of HTTP requests, including WebSocket upgrades.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "esgqa_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds. WebSocket upgrades are excluded.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "esgqa_http_requests_in_flight",
			Help: "Requests currently being served, including open WebSocket sessions.",
		},
	)

	wsSessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "esgqa_ws_session_duration_seconds",
			Help:    "Lifetime of WebSocket sessions in seconds.",
			Buckets: []float64{1, 10, 60, 300, 1800, 3600},
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpRequestsInFlight, wsSessionDuration)
}

// metricsMiddleware records request count and duration by chi route pattern.
// A WebSocket upgrade holds its request open for the whole session, so it is
// counted with status 101 and timed as a session instead of a request.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		upgrade := websocket.IsWebSocketUpgrade(r)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start).Seconds()
		path := routePattern(r)
		status := ww.Status()

		switch {
		case upgrade && status == 0:
			// The upgrader writes 101 on the hijacked conn, bypassing ww.
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(http.StatusSwitchingProtocols)).Inc()
			wsSessionDuration.Observe(elapsed)
			return
		case status == 0:
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(elapsed)
	})
}

// routePattern extracts the matched chi route pattern, falling back to "unmatched".
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unmatched
}

// metricsHandler returns the Prometheus metrics handler.
func metricsHandler() http.Handler {
	return promhttp.Handler()
}
