// Package scheduler drives concurrent per-video indexing under a
// resource-aware permit ceiling. Videos wait for permits in strict
// arrival order, failures stay isolated to their own outcome, and the
// ceiling can be resized while a batch is running.
package scheduler
