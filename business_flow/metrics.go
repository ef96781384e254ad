package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync outcome labels
const (
	outcomeSucceeded = "succeeded"
	outcomeNoop      = "noop"
	outcomeRetryable = "retryable"
	outcomePermanent = "permanent"
)

var (
	// Sync calls partitioned by operation kind and outcome
	audienceSyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audience_syncs_total",
			Help: "Total number of audience sync calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Identifiers carried by successfully applied amendments
	audienceSyncIdentifiersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audience_sync_identifiers_total",
			Help: "Total number of user identifiers sent in applied amendments",
		},
		[]string{"operation"},
	)

	// Resolutions partitioned by how the audience id was obtained
	audienceResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audience_resolutions_total",
			Help: "Total number of audience name resolutions by path",
		},
		[]string{"path"},
	)

	audienceSyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audience_sync_duration_seconds",
			Help:    "End to end audience sync latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)
