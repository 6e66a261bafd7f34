// Package scanner keeps a watched folder's store consistent with what
// is actually on disk. There is no filesystem event watching; scans run
// on an interval or on demand, diffing the directory tree against the
// stored paths. New files are inserted pending and handed to the
// scheduler, vanished files are marked orphaned, and the shared catalog
// is synchronized after each pass.
package scanner
