// Command orphanctl provides a CLI utility for inspecting and
// maintaining orphaned videos in a folder store.
//
// It supports the following operations:
//   - status: Show the watched folder record and orphan count
//   - list: List orphaned videos, most recently orphaned first
//   - match: Fingerprint a file on disk and show which orphans share
//     its content digest (the candidates for recovery)
//   - purge: Delete orphans older than the retention window
//
// Usage:
//
//	orphanctl <command>
//
// Environment:
//
//	FOLDER    Watched folder path; selects which store to open.
//	DATA_DIR  Data directory holding the per-folder stores
//	          (default: /data).
//
// The tool operates directly on the folder store and never touches the
// catalog; a force sync after recovery or purge brings the catalog back
// in step.
package main
