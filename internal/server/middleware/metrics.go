package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/prometheus/client_golang/prometheus"
)

// ServerMetrics holds the per-operation request collectors.
type ServerMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewServerMetrics creates and registers the request collectors. A nil registry leaves them unregistered.
func NewServerMetrics(registry prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cratescout",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of handled requests by operation and status code",
		}, []string{"operation", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cratescout",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency by operation",
			// a filter call can legitimately wait for the full aggregate timeout
			Buckets: []float64{.005, .025, .1, .25, 1, 2.5, 10, 30, 60},
		}, []string{"operation"}),
	}

	if registry != nil {
		registry.MustRegister(m.requests, m.duration)
	}
	return m
}

// Metrics returns a middleware that counts requests and observes their latency.
func Metrics(m *ServerMetrics) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			operation := "unknown"
			if tr, ok := transport.FromServerContext(ctx); ok {
				operation = tr.Operation()
			}

			start := time.Now()
			reply, err := handler(ctx, req)

			m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
			m.requests.WithLabelValues(operation, strconv.Itoa(extractHTTPStatus(err))).Inc()

			return reply, err
		}
	}
}
