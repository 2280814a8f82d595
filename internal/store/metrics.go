package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backendOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qna_backend_operations_total",
		Help: "Storage backend calls by backend, operation and result.",
	}, []string{"backend", "operation", "result"})

	backendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qna_backend_operation_duration_seconds",
		Help:    "Storage backend call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "operation"})

	storeFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qna_store_fallbacks_total",
		Help: "Engine operations answered by a backend other than the primary.",
	}, []string{"operation"})
)

func observe(backend, op string, start time.Time, err error) {
	backendOperations.WithLabelValues(backend, op, resultLabel(err)).Inc()
	backendDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
