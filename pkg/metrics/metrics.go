// Package metrics holds the prometheus collectors of each service.
//
// Collectors are registered on the registerer passed to the constructor so
// tests can use a fresh prometheus.NewRegistry per case.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway tracks the realtime relay.
type Gateway struct {
	// OnlineUsers is the size of the local presence table.
	OnlineUsers prometheus.Gauge

	// Events counts inbound realtime events. Labels: event
	Events *prometheus.CounterVec

	// Deliveries counts relay pushes. Labels: kind (receive|typing|notification),
	// outcome (delivered|offline|dropped)
	Deliveries *prometheus.CounterVec
}

func NewGateway(reg prometheus.Registerer) *Gateway {
	f := promauto.With(reg)
	return &Gateway{
		OnlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Name: "lionsphere_gateway_online_users",
			Help: "Number of users with a live connection on this gateway",
		}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lionsphere_gateway_events_total",
			Help: "Inbound realtime events by name",
		}, []string{"event"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lionsphere_gateway_deliveries_total",
			Help: "Relay push attempts by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}

// API tracks HTTP traffic.
type API struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewAPI(reg prometheus.Registerer) *API {
	f := promauto.With(reg)
	return &API{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lionsphere_api_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lionsphere_api_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"route"}),
	}
}

// Instrument wraps next, labelling samples with route.
func (m *API) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		m.Requests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		m.Duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Messaging tracks the notification worker.
type Messaging struct {
	// Processed counts triggers. Labels: result (created|duplicate|self|invalid|error)
	Processed *prometheus.CounterVec
}

func NewMessaging(reg prometheus.Registerer) *Messaging {
	f := promauto.With(reg)
	return &Messaging{
		Processed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lionsphere_messaging_notifications_processed_total",
			Help: "Notification triggers processed by result",
		}, []string{"result"}),
	}
}
