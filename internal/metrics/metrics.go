// Package metrics holds the Prometheus collectors of the service. They are
// registered on the controller-runtime registry so the ops listener can serve
// them alongside the Go runtime collectors it already carries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

var factory = promauto.With(ctrlmetrics.Registry)

var (
	// CallbacksTotal counts router callbacks by response status code.
	CallbacksTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ddns_callbacks_total",
		Help: "Total number of update callbacks by HTTP status code",
	}, []string{"code"})

	// CacheLookups counts cache lookups by result (hit, stale, miss).
	CacheLookups = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ddns_cache_lookups_total",
		Help: "Total number of cache lookups by result",
	}, []string{"result"})

	// ProviderRequests counts HTTP requests sent to the provider console.
	ProviderRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ddns_provider_requests_total",
		Help: "Total number of provider console requests by method and result",
	}, []string{"method", "result"})

	// ProviderRequestDuration tracks provider console round trips.
	ProviderRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ddns_provider_request_duration_seconds",
		Help:    "Histogram of provider console request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	// RecordUpdates counts record updates pushed to the provider by outcome.
	RecordUpdates = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ddns_record_updates_total",
		Help: "Total number of record updates pushed to the provider",
	}, []string{"result"})

	// CacheEntries reports the number of records in the cache snapshot.
	CacheEntries = factory.NewGauge(prometheus.GaugeOpts{
		Name: "ddns_cache_entries",
		Help: "Number of records held in the cache snapshot",
	})
)
