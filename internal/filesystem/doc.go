// Package filesystem wraps basic filesystem operations with retry
// logic for stale NFS file handles (ESTALE). Watched footage folders
// often live on network mounts or external drives, where a handle can
// go stale mid-scan; only that error class is retried, with exponential
// backoff, and every other error fails immediately.
package filesystem
