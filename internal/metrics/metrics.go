package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scheduler metrics
var (
	SchedulerMaxPermits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "footage_indexer_scheduler_max_permits",
			Help: "Current permit ceiling of the indexing scheduler",
		},
	)

	SchedulerInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "footage_indexer_scheduler_in_flight",
			Help: "Number of per-video pipeline invocations currently running",
		},
	)

	SchedulerOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footage_indexer_scheduler_outcomes_total",
			Help: "Per-video outcomes by kind (success, failure, skipped)",
		},
		[]string{"kind"},
	)

	SchedulerBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "footage_indexer_scheduler_batch_duration_seconds",
			Help:    "Wall time of video processing batches",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
	)
)

// Synchronizer metrics
var (
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footage_indexer_sync_runs_total",
			Help: "Total synchronizer runs by mode (incremental, force)",
		},
		[]string{"mode"},
	)

	SyncRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footage_indexer_sync_rows_total",
			Help: "Rows written to the catalog by kind (video, clip, vector)",
		},
		[]string{"kind"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "footage_indexer_sync_duration_seconds",
			Help:    "Synchronizer run duration in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30},
		},
	)
)

// Orphan recovery metrics
var (
	OrphansMarked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "footage_indexer_orphans_marked_total",
			Help: "Videos marked orphaned because their file vanished",
		},
	)

	OrphansRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "footage_indexer_orphans_recovered_total",
			Help: "Orphaned videos re-associated with a reappeared file",
		},
	)

	OrphansPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "footage_indexer_orphans_purged_total",
			Help: "Orphaned videos removed after retention expiry",
		},
	)
)

// Path rebase metrics
var (
	RebaseRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "footage_indexer_rebase_runs_total",
			Help: "Folder path rebase operations performed",
		},
	)

	RebaseRowsRewritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footage_indexer_rebase_rows_rewritten_total",
			Help: "Rows whose stored paths were rewritten by kind (video, clip)",
		},
		[]string{"kind"},
	)
)

// Scanner metrics
var (
	ScannerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "footage_indexer_scanner_runs_total",
			Help: "Total folder scan runs",
		},
	)

	ScannerFilesDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "footage_indexer_scanner_files_discovered_total",
			Help: "Newly discovered video files inserted as pending",
		},
	)

	ScannerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "footage_indexer_scanner_errors_total",
			Help: "Total scanner errors",
		},
	)
)

// Filesystem retry metrics (flaky or ejected volumes)
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footage_indexer_fs_retry_attempts_total",
			Help: "Filesystem operations retried after a transient error",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footage_indexer_fs_retry_failures_total",
			Help: "Filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footage_indexer_fs_stale_errors_total",
			Help: "Stale file handle errors observed per operation",
		},
		[]string{"operation"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footage_indexer_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "footage_indexer_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "footage_indexer_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"result"},
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "footage_indexer_db_rows_affected",
			Help:    "Rows affected per write operation",
			Buckets: []float64{1, 10, 100, 1000, 10000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "footage_indexer_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Runtime metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "footage_indexer_memory_usage_ratio",
			Help: "Heap in use as a fraction of the configured memory budget",
		},
	)
)

// HTTP metrics for the operator API
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footage_indexer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "footage_indexer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
