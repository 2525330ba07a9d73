package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

var (
	metricsOnce sync.Once
	metricsInst *httpMetrics
)

func getMetrics() *httpMetrics {
	metricsOnce.Do(func() {
		metricsInst = &httpMetrics{
			requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "fxpulse_http_requests_total",
				Help: "HTTP requests by route, method and status",
			}, []string{"route", "method", "status"}),
			duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "fxpulse_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			}, []string{"route", "method", "class"}),
			inFlight: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "fxpulse_http_in_flight_requests",
				Help: "Current number of in-flight HTTP requests",
			}, []string{"route", "method"}),
		}
	})
	return metricsInst
}

// Metrics records request counts and latency labelled by the route template,
// not the raw URL, to keep cardinality bounded.
func Metrics() echo.MiddlewareFunc {
	m := getMetrics()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route, method := routeLabel(c), c.Request().Method
			m.inFlight.WithLabelValues(route, method).Inc()
			defer m.inFlight.WithLabelValues(route, method).Dec()

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			m.duration.WithLabelValues(route, method, statusClass(status)).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

func routeLabel(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
