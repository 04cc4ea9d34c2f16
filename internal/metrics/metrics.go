// Package metrics exposes Prometheus instrumentation for the batch
// provisioning pipeline on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)
)

var (
	TasksCreated = factory.NewCounter(prometheus.CounterOpts{
		Name: "moemail_batch_tasks_created_total",
		Help: "Batch tasks accepted by the create endpoint",
	})

	TasksFinished = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "moemail_batch_tasks_finished_total",
		Help: "Batch tasks reaching a terminal status",
	}, []string{"status"})

	ChunksProcessed = factory.NewCounter(prometheus.CounterOpts{
		Name: "moemail_batch_chunks_processed_total",
		Help: "Chunk advance invocations that ran generation work",
	})

	AddressesCreated = factory.NewCounter(prometheus.CounterOpts{
		Name: "moemail_addresses_created_total",
		Help: "Addresses persisted to durable storage",
	})

	CollisionsDiscarded = factory.NewCounter(prometheus.CounterOpts{
		Name: "moemail_address_collisions_total",
		Help: "Generated candidates discarded because the address was taken",
	})

	ChunkDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "moemail_batch_chunk_duration_seconds",
		Help:    "Wall time of a single chunk advance",
		Buckets: prometheus.DefBuckets,
	})
)

// Handler serves the private registry on /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
