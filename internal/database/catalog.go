package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"footage-indexer/internal/logging"
	"footage-indexer/internal/metrics"
)

// CatalogStore is the shared search projection spanning every watched
// folder. Its rows are entirely derived: the synchronizer writes them,
// orphan recovery and folder removal delete them.
type CatalogStore struct {
	*db
}

// OpenCatalogStore opens (creating if necessary) the catalog at dbPath
// and initializes its schema.
func OpenCatalogStore(ctx context.Context, dbPath string) (*CatalogStore, error) {
	if !fts5Enabled {
		return nil, errors.New("catalog search requires FTS5; rebuild with -tags sqlite_fts5")
	}

	d, err := openSQLite(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	s := &CatalogStore{db: d}
	if err := s.initialize(ctx); err != nil {
		if closeErr := d.close(); closeErr != nil {
			logging.Error("failed to close catalog after init failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	logging.Info("Catalog store ready at %s", dbPath)
	return s, nil
}

func (s *CatalogStore) initialize(ctx context.Context) error {
	start := time.Now()
	schema := `
	CREATE TABLE IF NOT EXISTS global_videos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_folder TEXT NOT NULL,
		source_video_id INTEGER NOT NULL,
		file_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_hash TEXT NOT NULL DEFAULT '',
		index_status TEXT NOT NULL,
		srt_path TEXT,
		synced_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		UNIQUE(source_folder, source_video_id)
	);

	CREATE INDEX IF NOT EXISTS idx_global_videos_folder ON global_videos(source_folder);

	CREATE TABLE IF NOT EXISTS global_clips (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_folder TEXT NOT NULL,
		source_clip_id INTEGER NOT NULL,
		source_video_id INTEGER NOT NULL,
		start_time REAL NOT NULL,
		end_time REAL NOT NULL,
		title TEXT,
		summary TEXT,
		transcript TEXT,
		tags_flat TEXT,
		thumbnail_path TEXT,
		synced_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		UNIQUE(source_folder, source_clip_id)
	);

	CREATE INDEX IF NOT EXISTS idx_global_clips_folder ON global_clips(source_folder);
	CREATE INDEX IF NOT EXISTS idx_global_clips_video ON global_clips(source_folder, source_video_id);

	CREATE TABLE IF NOT EXISTS global_clip_vectors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_folder TEXT NOT NULL,
		source_clip_id INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		dims INTEGER NOT NULL,
		UNIQUE(source_folder, source_clip_id)
	);

	CREATE TABLE IF NOT EXISTS sync_meta (
		folder_path TEXT PRIMARY KEY,
		last_synced_video_rowid INTEGER NOT NULL DEFAULT 0,
		last_synced_clip_rowid INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Full-text search over clip text
	CREATE VIRTUAL TABLE IF NOT EXISTS clips_fts USING fts5(
		title,
		summary,
		transcript,
		tags_flat,
		content='global_clips',
		content_rowid='id'
	);

	CREATE TRIGGER IF NOT EXISTS global_clips_ai AFTER INSERT ON global_clips BEGIN
		INSERT INTO clips_fts(rowid, title, summary, transcript, tags_flat)
		VALUES (new.id, new.title, new.summary, new.transcript, new.tags_flat);
	END;

	CREATE TRIGGER IF NOT EXISTS global_clips_ad AFTER DELETE ON global_clips BEGIN
		INSERT INTO clips_fts(clips_fts, rowid, title, summary, transcript, tags_flat)
		VALUES('delete', old.id, old.title, old.summary, old.transcript, old.tags_flat);
	END;

	CREATE TRIGGER IF NOT EXISTS global_clips_au AFTER UPDATE ON global_clips BEGIN
		INSERT INTO clips_fts(clips_fts, rowid, title, summary, transcript, tags_flat)
		VALUES('delete', old.id, old.title, old.summary, old.transcript, old.tags_flat);
		INSERT INTO clips_fts(rowid, title, summary, transcript, tags_flat)
		VALUES (new.id, new.title, new.summary, new.transcript, new.tags_flat);
	END;
	`

	_, err := s.sql.ExecContext(ctx, schema)
	recordQuery("initialize_schema", start, err)
	return err
}

// Close closes the catalog store.
func (s *CatalogStore) Close() error {
	return s.close()
}

// BeginBatch starts a write transaction; pair with EndBatch.
func (s *CatalogStore) BeginBatch() (*sql.Tx, error) { return s.beginBatch() }

// EndBatch commits or rolls back a transaction started by BeginBatch.
func (s *CatalogStore) EndBatch(tx *sql.Tx, err error) error { return s.endBatch(tx, err) }

// GetSyncMeta returns the cursor row for a folder, nil when the folder
// has never been synced.
func (s *CatalogStore) GetSyncMeta(ctx context.Context, folderPath string) (*SyncMeta, error) {
	var m SyncMeta
	var syncedAt int64

	err := s.sql.QueryRowContext(ctx, `
		SELECT folder_path, last_synced_video_rowid, last_synced_clip_rowid, last_synced_at
		FROM sync_meta WHERE folder_path = ?
	`, folderPath).Scan(&m.FolderPath, &m.LastSyncedVideoRowID, &m.LastSyncedClipRowID, &syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.LastSyncedAt = time.Unix(syncedAt, 0).UTC()
	return &m, nil
}

// SaveSyncMeta writes the cursor row within a transaction, refreshing
// last_synced_at.
func (s *CatalogStore) SaveSyncMeta(ctx context.Context, tx *sql.Tx, m *SyncMeta) error {
	start := time.Now()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_meta (folder_path, last_synced_video_rowid, last_synced_clip_rowid, last_synced_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(folder_path) DO UPDATE SET
			last_synced_video_rowid = excluded.last_synced_video_rowid,
			last_synced_clip_rowid = excluded.last_synced_clip_rowid,
			last_synced_at = strftime('%s', 'now')
	`, m.FolderPath, m.LastSyncedVideoRowID, m.LastSyncedClipRowID)
	recordQuery("sync_meta", start, err)
	return err
}

// UpsertVideo projects a folder-store video into the catalog within a
// transaction, keyed by (sourceFolder, sourceVideoId).
func (s *CatalogStore) UpsertVideo(ctx context.Context, tx *sql.Tx, folderPath string, v *Video) error {
	start := time.Now()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO global_videos (source_folder, source_video_id, file_path, file_name, file_hash, index_status, srt_path, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(source_folder, source_video_id) DO UPDATE SET
			file_path = excluded.file_path,
			file_name = excluded.file_name,
			file_hash = excluded.file_hash,
			index_status = excluded.index_status,
			srt_path = excluded.srt_path,
			synced_at = strftime('%s', 'now')
	`, folderPath, v.ID, v.FilePath, v.FileName, v.FileHash, v.Status, v.SRTPath)
	recordQuery("upsert_video", start, err)
	return err
}

// UpsertClip projects a folder-store clip into the catalog within a
// transaction. tagsFlat is the FTS-ready flattening of the clip's tags.
func (s *CatalogStore) UpsertClip(ctx context.Context, tx *sql.Tx, folderPath string, c *Clip, tagsFlat *string) error {
	start := time.Now()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO global_clips (source_folder, source_clip_id, source_video_id, start_time, end_time, title, summary, transcript, tags_flat, thumbnail_path, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(source_folder, source_clip_id) DO UPDATE SET
			source_video_id = excluded.source_video_id,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			title = excluded.title,
			summary = excluded.summary,
			transcript = excluded.transcript,
			tags_flat = excluded.tags_flat,
			thumbnail_path = excluded.thumbnail_path,
			synced_at = strftime('%s', 'now')
	`, folderPath, c.ID, c.VideoID, c.StartTime, c.EndTime, c.Title, c.Summary, c.Transcript, tagsFlat, c.ThumbnailPath)
	recordQuery("upsert_clip", start, err)
	return err
}

// UpsertVector projects a clip embedding into the catalog within a
// transaction.
func (s *CatalogStore) UpsertVector(ctx context.Context, tx *sql.Tx, folderPath string, vec *ClipVector) error {
	start := time.Now()
	blob := EncodeVector(vec.Embedding)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO global_clip_vectors (source_folder, source_clip_id, embedding, dims)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_folder, source_clip_id) DO UPDATE SET
			embedding = excluded.embedding,
			dims = excluded.dims
	`, folderPath, vec.ClipID, blob, len(vec.Embedding))
	recordQuery("upsert_vector", start, err)
	return err
}

// DeleteVideoProjection removes one video's catalog rows: the video,
// its clips, and their vectors. Used when a folder-store video is
// marked orphaned.
func (s *CatalogStore) DeleteVideoProjection(ctx context.Context, folderPath string, videoID int64) error {
	tx, err := s.beginBatch()
	if err != nil {
		return err
	}
	err = s.deleteVideoProjectionTx(ctx, tx, folderPath, videoID)
	return s.endBatch(tx, err)
}

func (s *CatalogStore) deleteVideoProjectionTx(ctx context.Context, tx *sql.Tx, folderPath string, videoID int64) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM global_clip_vectors
		WHERE source_folder = ? AND source_clip_id IN (
			SELECT source_clip_id FROM global_clips WHERE source_folder = ? AND source_video_id = ?
		)
	`, folderPath, folderPath, videoID); err != nil {
		return fmt.Errorf("failed to delete clip vectors: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM global_clips WHERE source_folder = ? AND source_video_id = ?
	`, folderPath, videoID); err != nil {
		return fmt.Errorf("failed to delete clips: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM global_videos WHERE source_folder = ? AND source_video_id = ?
	`, folderPath, videoID); err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	return nil
}

// RemoveFolderData deletes every catalog row scoped to folderPath:
// videos, clips, vectors, and the sync cursor.
func (s *CatalogStore) RemoveFolderData(ctx context.Context, folderPath string) error {
	start := time.Now()
	tx, err := s.beginBatch()
	if err != nil {
		return err
	}

	err = func() error {
		for _, table := range []string{"global_clip_vectors", "global_clips", "global_videos"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE source_folder = ?`, folderPath); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_meta WHERE folder_path = ?`, folderPath); err != nil {
			return fmt.Errorf("failed to clear sync_meta: %w", err)
		}
		return nil
	}()
	recordQuery("remove_folder_data", start, err)
	return s.endBatch(tx, err)
}

// CountVideos returns the catalog video count, optionally scoped to a
// folder ("" counts everything).
func (s *CatalogStore) CountVideos(ctx context.Context, folderPath string) (int, error) {
	return s.countScoped(ctx, "global_videos", folderPath)
}

// CountClips returns the catalog clip count, optionally scoped to a
// folder.
func (s *CatalogStore) CountClips(ctx context.Context, folderPath string) (int, error) {
	return s.countScoped(ctx, "global_clips", folderPath)
}

// CountVectors returns the catalog vector count, optionally scoped to
// a folder.
func (s *CatalogStore) CountVectors(ctx context.Context, folderPath string) (int, error) {
	return s.countScoped(ctx, "global_clip_vectors", folderPath)
}

func (s *CatalogStore) countScoped(ctx context.Context, table, folderPath string) (int, error) {
	var n int
	var err error
	if folderPath == "" {
		err = s.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
	} else {
		err = s.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE source_folder = ?`, folderPath).Scan(&n)
	}
	return n, err
}

// GetVideo returns a projected video by its natural key, nil when
// absent.
func (s *CatalogStore) GetVideo(ctx context.Context, key VideoKey) (*GlobalVideo, error) {
	var gv GlobalVideo
	var srt sql.NullString

	err := s.sql.QueryRowContext(ctx, `
		SELECT source_folder, source_video_id, file_path, file_name, file_hash, index_status, srt_path
		FROM global_videos WHERE source_folder = ? AND source_video_id = ?
	`, key.SourceFolder, key.SourceVideoID).Scan(
		&gv.Key.SourceFolder, &gv.Key.SourceVideoID, &gv.FilePath, &gv.FileName, &gv.FileHash, &gv.Status, &srt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	gv.SRTPath = nullString(srt)
	return &gv, nil
}

// Search runs a full-text query over clip text and returns up to limit
// hits joined with their video's file path.
func (s *CatalogStore) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("search", start, err) }()

	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.sql.QueryContext(ctx, `
		SELECT c.source_folder, c.source_clip_id, c.source_video_id,
			COALESCE(v.file_path, ''), c.start_time, c.end_time,
			COALESCE(c.title, ''),
			snippet(clips_fts, 1, '[', ']', '…', 12)
		FROM clips_fts
		JOIN global_clips c ON c.id = clips_fts.rowid
		LEFT JOIN global_videos v
			ON v.source_folder = c.source_folder AND v.source_video_id = c.source_video_id
		WHERE clips_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err = rows.Scan(&h.Key.SourceFolder, &h.Key.SourceClipID, &h.SourceVideoID,
			&h.FilePath, &h.StartTime, &h.EndTime, &h.Title, &h.Snippet); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	err = rows.Err()
	return hits, err
}

// Stats summarizes the catalog for the operator API.
func (s *CatalogStore) Stats(ctx context.Context) (CatalogStats, error) {
	var st CatalogStats
	var lastSynced int64

	err := s.sql.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sync_meta),
			(SELECT COUNT(*) FROM global_videos),
			(SELECT COUNT(*) FROM global_clips),
			(SELECT COUNT(*) FROM global_clip_vectors),
			COALESCE((SELECT MAX(last_synced_at) FROM sync_meta), 0)
	`).Scan(&st.Folders, &st.Videos, &st.Clips, &st.Vectors, &lastSynced)
	if err != nil {
		return st, err
	}

	if lastSynced > 0 {
		st.LastSyncedAt = time.Unix(lastSynced, 0).UTC()
	}

	// Surface connection pool pressure alongside logical counts.
	metrics.DBConnectionsOpen.Set(float64(s.sql.Stats().OpenConnections))
	return st, nil
}
