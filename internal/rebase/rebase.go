package rebase

import (
	"context"
	"fmt"
	"strings"

	"footage-indexer/internal/database"
	"footage-indexer/internal/logging"
	"footage-indexer/internal/metrics"
)

// Result reports one rebase pass.
type Result struct {
	OldPath       string `json:"oldPath"`
	NewPath       string `json:"newPath"`
	RebasedVideos int64  `json:"rebasedVideos"`
	RebasedClips  int64  `json:"rebasedClips"`
	DidRebase     bool   `json:"didRebase"`
}

func normalize(p string) string {
	return strings.TrimRight(p, "/")
}

// DetectMismatch compares the stored folder path against newPath after
// trailing-separator normalization. It returns the stored path and true
// when they differ, and "" and false when they match or no folder row
// exists yet.
func DetectMismatch(ctx context.Context, folder *database.FolderStore, newPath string) (string, bool, error) {
	wf, err := folder.WatchedFolder(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to read folder row: %w", err)
	}
	if wf == nil {
		return "", false, nil
	}

	stored := normalize(wf.FolderPath)
	if stored == normalize(newPath) {
		return "", false, nil
	}
	return stored, true, nil
}

// Rebase rewrites the folder row and every stored absolute path rooted
// under oldPath to newPath. SRT paths kept in an app-managed directory
// outside the folder are left untouched.
func Rebase(ctx context.Context, folder *database.FolderStore, oldPath, newPath string) (Result, error) {
	oldPath = normalize(oldPath)
	newPath = normalize(newPath)

	videos, clips, err := folder.RebasePaths(ctx, oldPath, newPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to rebase %s to %s: %w", oldPath, newPath, err)
	}

	metrics.RebaseRunsTotal.Inc()
	metrics.RebaseRowsRewritten.WithLabelValues("video").Add(float64(videos))
	metrics.RebaseRowsRewritten.WithLabelValues("clip").Add(float64(clips))
	logging.Info("Rebased %s to %s: %d videos, %d clips rewritten", oldPath, newPath, videos, clips)

	return Result{
		OldPath:       oldPath,
		NewPath:       newPath,
		RebasedVideos: videos,
		RebasedClips:  clips,
		DidRebase:     true,
	}, nil
}

// RebaseIfNeeded detects a path mismatch and performs the rewrite only
// when one exists. A matching path returns a zero-count result with
// DidRebase false.
func RebaseIfNeeded(ctx context.Context, folder *database.FolderStore, newPath string) (Result, error) {
	stored, mismatch, err := DetectMismatch(ctx, folder, newPath)
	if err != nil {
		return Result{}, err
	}
	if !mismatch {
		return Result{NewPath: normalize(newPath)}, nil
	}
	return Rebase(ctx, folder, stored, newPath)
}
