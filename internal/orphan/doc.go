// Package orphan handles videos whose backing file has vanished.
//
// A vanished file's record is marked orphaned rather than deleted, so
// that when a file with the same content digest reappears under a new
// path its analyzed clips can be reclaimed instead of recomputed.
// Orphans that never reappear are purged after a retention window.
package orphan
