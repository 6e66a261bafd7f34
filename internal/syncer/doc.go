// Package syncer propagates folder-store rows into the shared catalog.
//
// Each watched folder keeps its own authoritative store; the catalog is
// a derived search projection spanning all of them. The synchronizer
// bridges the two with a per-folder insertion-order cursor: incremental
// runs copy only rows inserted since the last run, while force runs
// re-upsert everything active to pick up in-place field mutations.
package syncer
