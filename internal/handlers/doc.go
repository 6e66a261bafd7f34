// Package handlers provides HTTP request handlers for the operator API.
//
// It includes handlers for:
//   - Health and readiness checks
//   - Build version information
//   - Scheduler concurrency inspection and mode changes
//   - Catalog stats and full-text search
//   - Manual sync and scan triggers
package handlers
