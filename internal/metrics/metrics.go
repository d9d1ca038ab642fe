// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crispbridge_http_requests_total",
			Help: "Number of HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crispbridge_http_latency_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	Webhooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crispbridge_webhooks_total",
			Help: "Inbound webhooks by outcome",
		},
		[]string{"result"},
	)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crispbridge_cache_lookups_total",
			Help: "Cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)
	CacheErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crispbridge_cache_errors_total",
			Help: "Cache store failures by operation",
		},
		[]string{"cache", "op"},
	)
	TokenVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crispbridge_token_verifications_total",
			Help: "Remote token verifications by result",
		},
		[]string{"result"},
	)
	RemoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crispbridge_remote_call_seconds",
			Help:    "Latency of Crisp API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "status"},
	)
	SettingsSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crispbridge_settings_saves_total",
			Help: "Settings save attempts by outcome",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequests,
		HTTPLatency,
		Webhooks,
		CacheLookups,
		CacheErrors,
		TokenVerifications,
		RemoteLatency,
		SettingsSaves,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
