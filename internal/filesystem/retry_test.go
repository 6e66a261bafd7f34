package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func TestIsStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "bare ESTALE", err: syscall.ESTALE, want: true},
		{name: "wrapped ESTALE", err: &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT", err: &os.PathError{Op: "stat", Path: "/x", Err: syscall.ENOENT}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isStaleError(tt.err); got != tt.want {
				t.Errorf("isStaleError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWithRetryStopsOnNonStale(t *testing.T) {
	calls := 0
	_, err := withRetry("stat", "/x", fastConfig(), func() (int, error) {
		calls++
		return 0, &os.PathError{Op: "stat", Path: "/x", Err: syscall.ENOENT}
	})
	if err == nil {
		t.Fatal("want error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want no retries on non-stale error", calls)
	}
}

func TestWithRetryRecoversFromStale(t *testing.T) {
	calls := 0
	v, err := withRetry("stat", "/x", fastConfig(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if v != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls, want ok after 3", v, calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	stale := &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}
	_, err := withRetry("open", "/x", fastConfig(), func() (int, error) {
		calls++
		return 0, stale
	})
	if !errors.Is(err, syscall.ESTALE) {
		t.Errorf("err = %v, want final stale error surfaced", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want initial try plus 3 retries", calls)
	}
}

func TestStatAndOpenWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mov")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size() = %d, want 4", info.Size())
	}

	f, err := OpenWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	f.Close()

	if _, err := StatWithRetry(filepath.Join(dir, "missing.mov"), DefaultRetryConfig()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("StatWithRetry(missing) err = %v, want not-exist", err)
	}

	entries, err := ReadDirWithRetry(dir, DefaultRetryConfig())
	if err != nil || len(entries) != 1 {
		t.Errorf("ReadDirWithRetry() = %v, %v, want single entry", entries, err)
	}
}
