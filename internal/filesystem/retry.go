package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"footage-indexer/internal/logging"
	"footage-indexer/internal/metrics"
)

// RetryConfig configures retry behavior for filesystem operations on
// flaky volumes (NFS mounts, external drives mid-eject).
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for stale-handle retry.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isStaleError reports whether err is an NFS stale file handle (ESTALE).
func isStaleError(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ESTALE
}

// withRetry runs op until it succeeds, fails with a non-stale error, or
// exhausts the configured attempts. Only ESTALE is retried; everything
// else fails immediately.
func withRetry[T any](name, path string, config RetryConfig, op func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		v, err := op()
		if err == nil {
			if attempt > 0 {
				logging.Info("%s succeeded on retry %d for %s", name, attempt, path)
			}
			return v, nil
		}
		lastErr = err

		if !isStaleError(err) {
			return zero, err
		}
		metrics.FilesystemStaleErrors.WithLabelValues(name).Inc()

		if attempt < config.MaxRetries {
			metrics.FilesystemRetryAttempts.WithLabelValues(name).Inc()
			logging.Debug("%s stale file handle for %s, retrying in %v (attempt %d/%d)",
				name, path, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("%s failed after %d retries for %s: %v", name, config.MaxRetries, path, lastErr)
	metrics.FilesystemRetryFailures.WithLabelValues(name).Inc()
	return zero, lastErr
}

// StatWithRetry performs os.Stat, retrying stale file handle errors.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	return withRetry("stat", path, config, func() (os.FileInfo, error) {
		return os.Stat(path)
	})
}

// OpenWithRetry performs os.Open, retrying stale file handle errors.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	return withRetry("open", path, config, func() (*os.File, error) {
		return os.Open(path)
	})
}

// ReadDirWithRetry performs os.ReadDir, retrying stale file handle
// errors. Used by the scanner when walking network-mounted folders.
func ReadDirWithRetry(path string, config RetryConfig) ([]os.DirEntry, error) {
	return withRetry("readdir", path, config, func() ([]os.DirEntry, error) {
		return os.ReadDir(path)
	})
}
