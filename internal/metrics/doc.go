// Package metrics declares the Prometheus collectors for the footage
// indexer: scheduler concurrency, synchronizer throughput, orphan
// lifecycle transitions, path rebases, scanner activity, database and
// HTTP instrumentation.
//
// Collectors are registered via promauto at package load; InitializeMetrics
// pre-populates common label combinations so every series is exported
// from the first scrape.
package metrics
