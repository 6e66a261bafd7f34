package syncer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"footage-indexer/internal/database"
	"footage-indexer/internal/logging"
	"footage-indexer/internal/metrics"
)

// Result reports rows actually written to the catalog by one sync run.
type Result struct {
	SyncedVideos  int `json:"syncedVideos"`
	SyncedClips   int `json:"syncedClips"`
	SyncedVectors int `json:"syncedVectors"`
}

// Sync propagates folder-store rows into the catalog. Incremental runs
// select only rows inserted after the folder's recorded cursor; force
// runs re-upsert every active row, picking up field mutations (a
// late-computed embedding, a recovered video's rewritten path) that the
// cursor would never see. The cursor advances to the current maximum
// insertion order either way, even when zero rows qualify.
//
// Concurrent calls for the same folder must be serialized by the
// caller; the cursor read-then-advance is not atomic across calls.
func Sync(ctx context.Context, folderPath string, folder *database.FolderStore, catalog *database.CatalogStore, force bool) (Result, error) {
	start := time.Now()
	mode := "incremental"
	if force {
		mode = "force"
	}

	var videoCursor, clipCursor int64
	meta, err := catalog.GetSyncMeta(ctx, folderPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read sync cursor for %s: %w", folderPath, err)
	}
	if meta != nil && !force {
		videoCursor = meta.LastSyncedVideoRowID
		clipCursor = meta.LastSyncedClipRowID
	}

	videos, clips, err := selectRows(ctx, folder, videoCursor, clipCursor, force)
	if err != nil {
		return Result{}, err
	}

	maxVideoRow, err := folder.MaxVideoRowID(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read video cursor bound: %w", err)
	}
	maxClipRow, err := folder.MaxClipRowID(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read clip cursor bound: %w", err)
	}

	tx, err := catalog.BeginBatch()
	if err != nil {
		return Result{}, err
	}

	var res Result
	res, err = writeRows(ctx, tx, catalog, folderPath, folder, videos, clips)
	if err == nil {
		// Cursors never regress, even if trailing rows were purged
		// between runs.
		next := &database.SyncMeta{
			FolderPath:           folderPath,
			LastSyncedVideoRowID: maxVideoRow,
			LastSyncedClipRowID:  maxClipRow,
		}
		if meta != nil {
			next.LastSyncedVideoRowID = max(next.LastSyncedVideoRowID, meta.LastSyncedVideoRowID)
			next.LastSyncedClipRowID = max(next.LastSyncedClipRowID, meta.LastSyncedClipRowID)
		}
		err = catalog.SaveSyncMeta(ctx, tx, next)
	}
	if endErr := catalog.EndBatch(tx, err); endErr != nil {
		return Result{}, fmt.Errorf("sync of %s failed: %w", folderPath, endErr)
	}

	metrics.SyncRunsTotal.WithLabelValues(mode).Inc()
	metrics.SyncRowsTotal.WithLabelValues("video").Add(float64(res.SyncedVideos))
	metrics.SyncRowsTotal.WithLabelValues("clip").Add(float64(res.SyncedClips))
	metrics.SyncRowsTotal.WithLabelValues("vector").Add(float64(res.SyncedVectors))
	metrics.SyncDuration.Observe(time.Since(start).Seconds())

	if res.SyncedVideos > 0 || res.SyncedClips > 0 {
		logging.Info("Synced %s: %d videos, %d clips, %d vectors (%s, %v)",
			folderPath, res.SyncedVideos, res.SyncedClips, res.SyncedVectors, mode, time.Since(start).Round(time.Millisecond))
	} else {
		logging.Debug("Sync of %s wrote no rows (%s)", folderPath, mode)
	}
	return res, nil
}

func selectRows(ctx context.Context, folder *database.FolderStore, videoCursor, clipCursor int64, force bool) ([]database.Video, []database.Clip, error) {
	if force {
		videos, err := folder.AllActiveVideos(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to select videos for force sync: %w", err)
		}
		clips, err := folder.AllActiveClips(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to select clips for force sync: %w", err)
		}
		return videos, clips, nil
	}

	videos, err := folder.VideosSinceRow(ctx, videoCursor)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to select videos after cursor %d: %w", videoCursor, err)
	}
	clips, err := folder.ClipsSinceRow(ctx, clipCursor)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to select clips after cursor %d: %w", clipCursor, err)
	}
	return videos, clips, nil
}

func writeRows(ctx context.Context, tx *sql.Tx, catalog *database.CatalogStore, folderPath string, folder *database.FolderStore, videos []database.Video, clips []database.Clip) (Result, error) {
	var res Result

	for i := range videos {
		if err := catalog.UpsertVideo(ctx, tx, folderPath, &videos[i]); err != nil {
			return res, fmt.Errorf("failed to sync video %d: %w", videos[i].ID, err)
		}
		res.SyncedVideos++
	}

	for i := range clips {
		c := &clips[i]
		if err := catalog.UpsertClip(ctx, tx, folderPath, c, ConvertTagsForFTS(c.Tags)); err != nil {
			return res, fmt.Errorf("failed to sync clip %d: %w", c.ID, err)
		}
		res.SyncedClips++

		vec, err := folder.VectorForClip(ctx, c.ID)
		if err != nil {
			return res, fmt.Errorf("failed to read vector for clip %d: %w", c.ID, err)
		}
		if vec == nil {
			continue
		}
		if err := catalog.UpsertVector(ctx, tx, folderPath, vec); err != nil {
			return res, fmt.Errorf("failed to sync vector for clip %d: %w", c.ID, err)
		}
		res.SyncedVectors++
	}

	return res, nil
}

// RemoveFolderData deletes every catalog row scoped to folderPath,
// including its sync cursor. Used on folder removal.
func RemoveFolderData(ctx context.Context, folderPath string, catalog *database.CatalogStore) error {
	if err := catalog.RemoveFolderData(ctx, folderPath); err != nil {
		return fmt.Errorf("failed to remove catalog data for %s: %w", folderPath, err)
	}
	logging.Info("Removed catalog data for %s", folderPath)
	return nil
}

// ConvertTagsForFTS flattens a JSON array of tag strings into a single
// space-delimited string for full-text indexing. Nil maps to nil;
// values that are not a JSON string array pass through unchanged.
func ConvertTagsForFTS(raw *string) *string {
	if raw == nil {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(*raw), &tags); err != nil {
		return raw
	}
	flat := strings.Join(tags, " ")
	return &flat
}
