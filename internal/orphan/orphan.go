package orphan

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"footage-indexer/internal/database"
	"footage-indexer/internal/logging"
	"footage-indexer/internal/metrics"
)

// RecoveryResult reports a successful identity reclaim.
type RecoveryResult struct {
	RecoveredVideoID int64 `json:"recoveredVideoId"`
	ClipCount        int   `json:"clipCount"`
}

// MarkOrphaned flags the video at path as orphaned and, when a catalog
// is supplied, removes its search projection. The folder-store record
// and its clips are preserved for recovery. Returns the number of
// videos marked: 0 when no video exists at that path (not an error).
func MarkOrphaned(ctx context.Context, path, folderPath string, folder *database.FolderStore, catalog *database.CatalogStore) (int, error) {
	v, err := folder.VideoByPath(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("failed to look up %s: %w", path, err)
	}
	if v == nil {
		return 0, nil
	}
	// Re-marking would reset orphaned_at and keep the row inside the
	// retention window forever.
	if v.State().Kind == database.StateOrphaned {
		return 0, nil
	}

	if err := folder.MarkVideoOrphaned(ctx, v.ID, time.Now()); err != nil {
		return 0, fmt.Errorf("failed to mark video %d orphaned: %w", v.ID, err)
	}

	// Projection removal comes before any later sync, whose
	// non-orphaned filter then keeps the row from being re-derived.
	if catalog != nil {
		if err := catalog.DeleteVideoProjection(ctx, folderPath, v.ID); err != nil {
			return 0, fmt.Errorf("failed to remove catalog projection for video %d: %w", v.ID, err)
		}
	}

	metrics.OrphansMarked.Inc()
	logging.Info("Marked %s orphaned (video %d)", path, v.ID)
	return 1, nil
}

// MarkOrphanedBatch applies MarkOrphaned to each path and returns the
// total number of videos marked.
func MarkOrphanedBatch(ctx context.Context, paths []string, folderPath string, folder *database.FolderStore, catalog *database.CatalogStore) (int, error) {
	var marked int
	for _, p := range paths {
		n, err := MarkOrphaned(ctx, p, folderPath, folder, catalog)
		if err != nil {
			return marked, err
		}
		marked += n
	}
	return marked, nil
}

// AttemptRecovery reclaims an orphaned video's identity for a file that
// reappeared under a new path with matching content. The most recently
// orphaned match wins. On success the orphan is rewritten to the new
// location with its already-analyzed clips intact, and the placeholder
// record created by discovery is deleted. Returns nil when no orphan
// shares the hash.
func AttemptRecovery(ctx context.Context, fileHash, newVideoPath string, pendingVideoID int64, folder *database.FolderStore) (*RecoveryResult, error) {
	if fileHash == "" {
		return nil, nil
	}

	candidates, err := folder.OrphansByHash(ctx, fileHash)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphans for hash %s: %w", fileHash, err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	winner := candidates[0]
	clipCount, err := folder.RecoverOrphan(ctx, winner.ID, pendingVideoID, newVideoPath, filepath.Base(newVideoPath))
	if err != nil {
		return nil, fmt.Errorf("failed to recover video %d: %w", winner.ID, err)
	}

	metrics.OrphansRecovered.Inc()
	logging.Info("Recovered video %d at %s, reusing %d analyzed clips", winner.ID, newVideoPath, clipCount)
	return &RecoveryResult{RecoveredVideoID: winner.ID, ClipCount: clipCount}, nil
}

// CleanupExpired purges orphaned videos older than retentionDays,
// cascading their clips. Returns the removed count.
func CleanupExpired(ctx context.Context, retentionDays int, folder *database.FolderStore) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed, err := folder.CleanupExpiredOrphans(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired orphans: %w", err)
	}
	if removed > 0 {
		metrics.OrphansPurged.Add(float64(removed))
		logging.Info("Purged %d orphans older than %d days", removed, retentionDays)
	}
	return removed, nil
}
