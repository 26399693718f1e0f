package vfs

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vfs_operations_total",
			Help: "Storage operations by operation, projection and result.",
		},
		[]string{"op", "projection", "result"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vfs_operation_duration_seconds",
			Help:    "Duration of storage operations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "projection"},
	)

	definitionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vfs_property_definition_cache_hits_total",
		Help: "Property definition lookups served from the cache.",
	})

	definitionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vfs_property_definition_cache_misses_total",
		Help: "Property definition lookups that went to storage.",
	})
)

func observe(op string, p Projection, start time.Time, err error) {
	operationsTotal.WithLabelValues(op, p.String(), resultLabel(err)).Inc()
	operationDuration.WithLabelValues(op, p.String()).Observe(time.Since(start).Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorage):
		return "storage_error"
	default:
		return "rejected"
	}
}
