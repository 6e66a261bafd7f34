package metrics

// InitializeMetrics pre-populates expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, kind := range []string{"success", "failure", "skipped"} {
		SchedulerOutcomes.WithLabelValues(kind)
	}

	for _, mode := range []string{"incremental", "force"} {
		SyncRunsTotal.WithLabelValues(mode)
	}
	for _, kind := range []string{"video", "clip", "vector"} {
		SyncRowsTotal.WithLabelValues(kind)
	}

	for _, kind := range []string{"video", "clip"} {
		RebaseRowsRewritten.WithLabelValues(kind)
	}

	for _, op := range []string{"stat", "open", "readdir"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}

	for _, op := range []string{"initialize_schema", "upsert_video", "upsert_clip", "upsert_vector",
		"mark_orphaned", "recover_video", "cleanup_orphans", "rebase_paths",
		"sync_meta", "remove_folder_data", "search"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, result := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(result)
	}
}
