package services

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Platform operation labels
const (
	opToken          = "token"
	opListAudience   = "list_audiences"
	opCreateAudience = "create_audience"
	opPatchContacts  = "patch_contactlist"

	statusTransportError = "transport_error"
)

var (
	// Platform calls partitioned by operation and response status
	platformRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_requests_total",
			Help: "Total number of requests issued to the advertising platform",
		},
		[]string{"operation", "status"},
	)

	platformRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "platform_request_duration_seconds",
			Help:    "Advertising platform request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func statusLabel(status int) string {
	return strconv.Itoa(status)
}
