// Package resources maps live system conditions to a recommended
// indexing concurrency.
//
// The planner (InitialConcurrency, ComputeConcurrency) is pure
// arithmetic over a Snapshot; the Sampler is the side-effecting half
// that reads the Go runtime and carries operator-supplied power,
// thermal, and user-activity signals.
package resources
