package dashboard

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

func (s *Server) initMetrics() {
	s.metricsOnce.Do(func() {
		s.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meaux",
			Subsystem: "dashboard",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"})

		s.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meaux",
			Subsystem: "dashboard",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"})

		s.rateLimitHits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meaux",
			Subsystem: "dashboard",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route"})

		s.wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meaux",
			Subsystem: "dashboard",
			Name:      "websocket_clients",
			Help:      "Currently connected status-stream clients",
		})

		s.broadcastTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meaux",
			Subsystem: "dashboard",
			Name:      "status_broadcasts_total",
			Help:      "Number of status updates pushed to the stream",
		})

		collectors := []prometheus.Collector{s.requestTotal, s.requestLatency, s.rateLimitHits, s.wsClients, s.broadcastTotal}
		for _, collector := range collectors {
			if err := prometheus.Register(collector); err != nil {
				if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
					switch v := are.ExistingCollector.(type) {
					case *prometheus.CounterVec:
						if collector == s.requestTotal {
							s.requestTotal = v
						} else if collector == s.rateLimitHits {
							s.rateLimitHits = v
						}
					case *prometheus.HistogramVec:
						s.requestLatency = v
					case prometheus.Gauge:
						s.wsClients = v
					case prometheus.Counter:
						s.broadcastTotal = v
					}
				}
			}
		}
		s.metricsInitialized = true
	})
}

func (s *Server) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	if !s.metricsInitialized {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	s.requestTotal.With(labels).Inc()
	s.requestLatency.With(labels).Observe(duration.Seconds())
}

func (s *Server) recordRateLimitHit(route string) {
	if !s.metricsInitialized {
		return
	}
	s.rateLimitHits.With(prometheus.Labels{"route": route}).Inc()
}
