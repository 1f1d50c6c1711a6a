// internal/server/metrics.go
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AdviceRequests  *prometheus.CounterVec
	AdviceDuration  prometheus.Histogram
	FoodChecks      prometheus.Counter
	ToolCalls       *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. Each server gets its own
// registry so several can coexist in one process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthara_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		}, []string{"method", "route", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthara_http_request_duration_seconds",
			Help:    "Duration of HTTP request handling",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		AdviceRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthara_advice_requests_total",
			Help: "Advice requests by outcome",
		}, []string{"outcome"}),

		AdviceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthara_advice_duration_seconds",
			Help:    "Time spent waiting for the advice service",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),

		FoodChecks: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthara_food_checks_total",
			Help: "Total number of foods checked for compatibility",
		}),

		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthara_tool_calls_total",
			Help: "MCP tool calls by tool name",
		}, []string{"tool"}),
	}
}
