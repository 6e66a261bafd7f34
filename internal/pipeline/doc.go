// Package pipeline is the built-in per-video processor handed to the
// scheduler. It probes container metadata with ffprobe, walks the video
// through its stored pipeline stages, and reclaims orphaned identities
// by content hash before doing any work.
package pipeline
