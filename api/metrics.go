package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exposed on /metrics. Each server gets its own
// registry so several servers can coexist in one process.
type Metrics struct {
	registry       *prometheus.Registry
	requestsTotal  *prometheus.CounterVec
	datasetRecords prometheus.Gauge
}

// NewMetrics creates and registers the API collectors.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oppfeed_api_requests_total",
		Help: "HTTP requests served, by route and status code.",
	}, []string{"route", "code"})

	m.datasetRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oppfeed_dataset_records",
		Help: "Records in the latest dataset as of the last read.",
	})

	m.registry.MustRegister(m.requestsTotal, m.datasetRecords)

	return m
}

// Middleware counts every request once it has been handled.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
