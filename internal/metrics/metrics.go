package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Arbitration counters, labeled by request class (static, dynamic, bypass)
	InterceptedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intercepted_requests_total",
			Help: "Total number of intercepted requests",
		},
		[]string{"class"},
	)

	Responses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intercepted_responses_total",
			Help: "Total number of responses by class and source",
		},
		[]string{"class", "source"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of region lookups that hit",
		},
		[]string{"class"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of region lookups that missed",
		},
		[]string{"class"},
	)

	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_writes_total",
			Help: "Total number of responses written back to the region",
		},
		[]string{"class"},
	)

	// Store level hits and failures (l1, l2)
	StoreHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_hits_total",
			Help: "Total number of hits per store level",
		},
		[]string{"level"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Total number of store errors by level and kind",
		},
		[]string{"level", "kind"},
	)

	// Network
	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_errors_total",
			Help: "Total number of failed network fetches",
		},
		[]string{"class", "kind"}, // kind: timeout, network
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Duration of network fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"class"},
	)

	// Lifecycle
	Provisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisions_total",
			Help: "Total number of provisioning passes by result",
		},
		[]string{"result"},
	)

	ProvisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "provision_duration_seconds",
			Help:    "Duration of provisioning passes",
			Buckets: prometheus.DefBuckets,
		},
	)

	RegionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regions_evicted_total",
			Help: "Total number of stale regions deleted",
		},
	)

	ActiveVersion = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_version_info",
			Help: "Set to 1 for the version currently in control",
		},
		[]string{"version"},
	)

	// Clients
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connected_clients",
			Help: "Number of clients subscribed to the event stream",
		},
	)

	ClientMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_messages_total",
			Help: "Total number of client messages by direction and type",
		},
		[]string{"direction", "type"},
	)

	// L1 capacity metrics only (L1 is in-memory)
	CacheCapacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_capacity_bytes",
			Help: "L1 cache capacity in bytes",
		},
		[]string{"level"},
	)

	CacheKeys = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_keys",
			Help: "Number of entries held per store level",
		},
		[]string{"level"},
	)
)

// RecordRequest records an intercepted request
func RecordRequest(class string) {
	InterceptedRequests.WithLabelValues(class).Inc()
}

// RecordResponse records where the answer to a request came from
func RecordResponse(class, source string) {
	Responses.WithLabelValues(class, source).Inc()
}

// RecordCacheHit records a region hit
func RecordCacheHit(class string) {
	CacheHits.WithLabelValues(class).Inc()
}

// RecordCacheMiss records a region miss
func RecordCacheMiss(class string) {
	CacheMisses.WithLabelValues(class).Inc()
}

// RecordCacheWrite records a write-back into the region
func RecordCacheWrite(class string) {
	CacheWrites.WithLabelValues(class).Inc()
}

// RecordStoreHit records a hit served by a given store level
func RecordStoreHit(level string) {
	StoreHits.WithLabelValues(level).Inc()
}

// RecordCacheError records a store error with level and kind (decode, encode, upstream)
func RecordCacheError(level, kind string) {
	StoreErrors.WithLabelValues(level, kind).Inc()
}

// RecordFetchError records a failed network fetch
func RecordFetchError(class, kind string) {
	FetchErrors.WithLabelValues(class, kind).Inc()
}

// TimeFetch returns a timer function for measuring a network fetch
func TimeFetch(class string) func() {
	timer := prometheus.NewTimer(FetchDuration.WithLabelValues(class))
	return func() {
		timer.ObserveDuration()
	}
}

// RecordProvision records the result and duration of a provisioning pass
func RecordProvision(success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	Provisions.WithLabelValues(result).Inc()
	ProvisionDuration.Observe(duration.Seconds())
}

// RecordRegionsEvicted records deleted regions
func RecordRegionsEvicted(count int) {
	RegionsEvicted.Add(float64(count))
}

// SetActiveVersion marks version as the only active one
func SetActiveVersion(version string) {
	ActiveVersion.Reset()
	ActiveVersion.WithLabelValues(version).Set(1)
}

// SetConnectedClients updates the subscribed client count
func SetConnectedClients(count int) {
	ConnectedClients.Set(float64(count))
}

// RecordClientMessage records a message received from ("in") or sent to ("out") clients
func RecordClientMessage(direction, msgType string) {
	ClientMessages.WithLabelValues(direction, msgType).Inc()
}

// UpdateL1CacheCapacity updates L1 cache capacity metrics only
func UpdateL1CacheCapacity(capacity int64) {
	CacheCapacity.WithLabelValues("l1").Set(float64(capacity))
}

// UpdateCacheKeys updates the number of keys held by a store level
func UpdateCacheKeys(level string, count int64) {
	CacheKeys.WithLabelValues(level).Set(float64(count))
}
