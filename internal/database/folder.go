package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"footage-indexer/internal/logging"
	"footage-indexer/internal/metrics"
)

// FolderStore is the authoritative per-watched-folder store holding raw
// scan and analysis results.
type FolderStore struct {
	*db
}

// OpenFolderStore opens (creating if necessary) the folder store at
// dbPath and initializes its schema.
func OpenFolderStore(ctx context.Context, dbPath string) (*FolderStore, error) {
	d, err := openSQLite(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	s := &FolderStore{db: d}
	if err := s.initialize(ctx); err != nil {
		if closeErr := d.close(); closeErr != nil {
			logging.Error("failed to close folder store after init failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize folder store schema: %w", err)
	}

	logging.Debug("Folder store ready at %s", dbPath)
	return s, nil
}

func (s *FolderStore) initialize(ctx context.Context) error {
	start := time.Now()
	schema := `
	-- Single-row folder identity
	CREATE TABLE IF NOT EXISTS watched_folder (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		folder_path TEXT NOT NULL,
		is_available INTEGER NOT NULL DEFAULT 1,
		last_seen_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		file_count INTEGER NOT NULL DEFAULT 0,
		indexed_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS videos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path TEXT NOT NULL UNIQUE,
		file_name TEXT NOT NULL,
		file_hash TEXT NOT NULL DEFAULT '',
		index_status TEXT NOT NULL DEFAULT 'pending',
		orphaned_at INTEGER,
		srt_path TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_videos_status ON videos(index_status);
	CREATE INDEX IF NOT EXISTS idx_videos_hash ON videos(file_hash);

	CREATE TABLE IF NOT EXISTS clips (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		video_id INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		start_time REAL NOT NULL,
		end_time REAL NOT NULL,
		title TEXT,
		summary TEXT,
		transcript TEXT,
		tags TEXT,
		thumbnail_path TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		CHECK (start_time < end_time)
	);

	CREATE INDEX IF NOT EXISTS idx_clips_video ON clips(video_id);

	CREATE TABLE IF NOT EXISTS clip_vectors (
		clip_id INTEGER PRIMARY KEY REFERENCES clips(id) ON DELETE CASCADE,
		embedding BLOB NOT NULL,
		dims INTEGER NOT NULL
	);
	`

	_, err := s.sql.ExecContext(ctx, schema)
	recordQuery("initialize_schema", start, err)
	return err
}

// Close closes the folder store.
func (s *FolderStore) Close() error {
	return s.close()
}

// BeginBatch starts a write transaction; pair with EndBatch.
func (s *FolderStore) BeginBatch() (*sql.Tx, error) { return s.beginBatch() }

// EndBatch commits or rolls back a transaction started by BeginBatch.
func (s *FolderStore) EndBatch(tx *sql.Tx, err error) error { return s.endBatch(tx, err) }

// EnsureWatchedFolder creates the single folder row if it does not
// exist, otherwise refreshes availability and last-seen.
func (s *FolderStore) EnsureWatchedFolder(ctx context.Context, folderPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	folderPath = strings.TrimRight(folderPath, "/")
	_, err := s.sql.ExecContext(ctx, `
		INSERT INTO watched_folder (id, folder_path) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET
			is_available = 1,
			last_seen_at = strftime('%s', 'now')
	`, folderPath)
	return err
}

// WatchedFolder returns the folder row, or nil when none exists yet.
func (s *FolderStore) WatchedFolder(ctx context.Context) (*WatchedFolder, error) {
	var wf WatchedFolder
	var available int
	var lastSeen int64

	err := s.sql.QueryRowContext(ctx, `
		SELECT folder_path, is_available, last_seen_at, file_count, indexed_count
		FROM watched_folder WHERE id = 1
	`).Scan(&wf.FolderPath, &available, &lastSeen, &wf.FileCount, &wf.IndexedCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	wf.IsAvailable = available != 0
	wf.LastSeenAt = time.Unix(lastSeen, 0).UTC()
	return &wf, nil
}

// SetFolderAvailable records whether the folder's volume is currently
// reachable.
func (s *FolderStore) SetFolderAvailable(ctx context.Context, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := 0
	if available {
		v = 1
	}
	_, err := s.sql.ExecContext(ctx, `
		UPDATE watched_folder SET is_available = ?, last_seen_at = strftime('%s', 'now') WHERE id = 1
	`, v)
	return err
}

// UpdateFolderCounts refreshes the scan counters on the folder row.
func (s *FolderStore) UpdateFolderCounts(ctx context.Context, fileCount, indexedCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.sql.ExecContext(ctx, `
		UPDATE watched_folder SET file_count = ?, indexed_count = ? WHERE id = 1
	`, fileCount, indexedCount)
	return err
}

const videoColumns = `id, rowid, file_path, file_name, file_hash, index_status, orphaned_at, srt_path, created_at, updated_at`

func scanVideo(row interface{ Scan(...any) error }) (*Video, error) {
	var v Video
	var orphanedAt sql.NullInt64
	var srtPath sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&v.ID, &v.RowID, &v.FilePath, &v.FileName, &v.FileHash,
		&v.Status, &orphanedAt, &srtPath, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	v.OrphanedAt = nullTime(orphanedAt)
	v.SRTPath = nullString(srtPath)
	v.CreatedAt = time.Unix(createdAt, 0).UTC()
	v.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &v, nil
}

// InsertVideo records a newly discovered file as pending and returns
// its id.
func (s *FolderStore) InsertVideo(ctx context.Context, filePath, fileName, fileHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.sql.ExecContext(ctx, `
		INSERT INTO videos (file_path, file_name, file_hash, index_status)
		VALUES (?, ?, ?, 'pending')
	`, filePath, fileName, fileHash)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// VideoByPath looks a video up by its exact current path. Absence is
// reported as a nil video, not an error.
func (s *FolderStore) VideoByPath(ctx context.Context, filePath string) (*Video, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	v, err := scanVideo(s.sql.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE file_path = ?`, filePath))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// VideoByID fetches a video by id, nil when absent.
func (s *FolderStore) VideoByID(ctx context.Context, id int64) (*Video, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	v, err := scanVideo(s.sql.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// SetVideoStatus advances a video through its pipeline stages.
func (s *FolderStore) SetVideoStatus(ctx context.Context, id int64, status IndexStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.sql.ExecContext(ctx, `
		UPDATE videos SET index_status = ?, updated_at = strftime('%s', 'now') WHERE id = ?
	`, status, id)
	return err
}

// SetVideoSRTPath records where a video's subtitle file was written.
func (s *FolderStore) SetVideoSRTPath(ctx context.Context, id int64, srtPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.sql.ExecContext(ctx, `
		UPDATE videos SET srt_path = ?, updated_at = strftime('%s', 'now') WHERE id = ?
	`, srtPath, id)
	return err
}

// MarkVideoOrphaned flips a video to orphaned and stamps orphaned_at.
// The video row and its clips are preserved for possible recovery.
func (s *FolderStore) MarkVideoOrphaned(ctx context.Context, id int64, when time.Time) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.sql.ExecContext(ctx, `
		UPDATE videos SET index_status = 'orphaned', orphaned_at = ?, updated_at = strftime('%s', 'now')
		WHERE id = ?
	`, when.Unix(), id)
	recordQuery("mark_orphaned", start, err)
	return err
}

// OrphansByHash returns orphaned videos sharing the content digest,
// most recently orphaned first (rowid breaks ties, newest first).
func (s *FolderStore) OrphansByHash(ctx context.Context, fileHash string) ([]Video, error) {
	rows, err := s.sql.QueryContext(ctx, `
		SELECT `+videoColumns+` FROM videos
		WHERE index_status = 'orphaned' AND file_hash = ?
		ORDER BY orphaned_at DESC, rowid DESC
	`, fileHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// RecoverOrphan rewrites an orphaned video to its new location,
// restores completed status, and deletes the placeholder pending record
// (cascading any clips it accrued), all in one transaction. It returns
// the orphan's clip count.
func (s *FolderStore) RecoverOrphan(ctx context.Context, orphanID, pendingID int64, newPath, newName string) (int, error) {
	start := time.Now()
	tx, err := s.beginBatch()
	if err != nil {
		return 0, err
	}

	clipCount, err := s.recoverOrphanTx(ctx, tx, orphanID, pendingID, newPath, newName)
	recordQuery("recover_video", start, err)
	if endErr := s.endBatch(tx, err); endErr != nil {
		return 0, endErr
	}
	return clipCount, nil
}

func (s *FolderStore) recoverOrphanTx(ctx context.Context, tx *sql.Tx, orphanID, pendingID int64, newPath, newName string) (int, error) {
	// The placeholder must go first or its file_path would collide
	// with the rewritten orphan.
	if pendingID != 0 && pendingID != orphanID {
		if _, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, pendingID); err != nil {
			return 0, fmt.Errorf("failed to delete placeholder video %d: %w", pendingID, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE videos
		SET file_path = ?, file_name = ?, index_status = 'completed', orphaned_at = NULL,
			updated_at = strftime('%s', 'now')
		WHERE id = ? AND index_status = 'orphaned'
	`, newPath, newName, orphanID)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("video %d is not orphaned", orphanID)
	}

	var clipCount int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM clips WHERE video_id = ?`, orphanID).Scan(&clipCount); err != nil {
		return 0, err
	}
	return clipCount, nil
}

// DeleteVideo removes a video and cascades its clips and vectors.
func (s *FolderStore) DeleteVideo(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.sql.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	return err
}

// CleanupExpiredOrphans deletes orphaned videos whose orphaned_at is
// before cutoff, cascading their clips. Returns the removed count.
func (s *FolderStore) CleanupExpiredOrphans(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.sql.ExecContext(ctx, `
		DELETE FROM videos WHERE index_status = 'orphaned' AND orphaned_at < ?
	`, cutoff.Unix())
	recordQuery("cleanup_orphans", start, err)
	if err != nil {
		return 0, err
	}

	removed, err := res.RowsAffected()
	if err == nil && removed > 0 {
		metrics.DBRowsAffected.WithLabelValues("cleanup_orphans").Observe(float64(removed))
	}
	return removed, err
}

// CountClips returns the number of clips owned by a video.
func (s *FolderStore) CountClips(ctx context.Context, videoID int64) (int, error) {
	var n int
	err := s.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM clips WHERE video_id = ?`, videoID).Scan(&n)
	return n, err
}

// InsertClip stores an analyzed clip and returns its id.
func (s *FolderStore) InsertClip(ctx context.Context, c *Clip) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.sql.ExecContext(ctx, `
		INSERT INTO clips (video_id, start_time, end_time, title, summary, transcript, tags, thumbnail_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.VideoID, c.StartTime, c.EndTime, c.Title, c.Summary, c.Transcript, c.Tags, c.ThumbnailPath)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpsertVector stores or replaces a clip's embedding.
func (s *FolderStore) UpsertVector(ctx context.Context, clipID int64, embedding []float32) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	blob := EncodeVector(embedding)
	_, err := s.sql.ExecContext(ctx, `
		INSERT INTO clip_vectors (clip_id, embedding, dims) VALUES (?, ?, ?)
		ON CONFLICT(clip_id) DO UPDATE SET embedding = excluded.embedding, dims = excluded.dims
	`, clipID, blob, len(embedding))
	recordQuery("upsert_vector", start, err)
	return err
}

// VectorForClip returns a clip's embedding, nil when none is stored.
func (s *FolderStore) VectorForClip(ctx context.Context, clipID int64) (*ClipVector, error) {
	var blob []byte
	err := s.sql.QueryRowContext(ctx, `SELECT embedding FROM clip_vectors WHERE clip_id = ?`, clipID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ClipVector{ClipID: clipID, Embedding: DecodeVector(blob)}, nil
}

// VideosSinceRow returns non-orphaned videos whose insertion order is
// after the cursor, oldest first.
func (s *FolderStore) VideosSinceRow(ctx context.Context, afterRowID int64) ([]Video, error) {
	return s.queryVideos(ctx, `
		SELECT `+videoColumns+` FROM videos
		WHERE rowid > ? AND index_status != 'orphaned'
		ORDER BY rowid
	`, afterRowID)
}

// AllActiveVideos returns every non-orphaned video in insertion order.
func (s *FolderStore) AllActiveVideos(ctx context.Context) ([]Video, error) {
	return s.queryVideos(ctx, `
		SELECT `+videoColumns+` FROM videos
		WHERE index_status != 'orphaned'
		ORDER BY rowid
	`)
}

// AllOrphanedVideos returns every orphaned video, most recently
// orphaned first.
func (s *FolderStore) AllOrphanedVideos(ctx context.Context) ([]Video, error) {
	return s.queryVideos(ctx, `
		SELECT `+videoColumns+` FROM videos
		WHERE index_status = 'orphaned'
		ORDER BY orphaned_at DESC, rowid DESC
	`)
}

// VideosByStatus lists videos in a given pipeline stage.
func (s *FolderStore) VideosByStatus(ctx context.Context, status IndexStatus) ([]Video, error) {
	return s.queryVideos(ctx, `
		SELECT `+videoColumns+` FROM videos WHERE index_status = ? ORDER BY rowid
	`, status)
}

// AllVideoPaths returns every stored file path mapped to its video id,
// including orphaned rows.
func (s *FolderStore) AllVideoPaths(ctx context.Context) (map[string]int64, error) {
	rows, err := s.sql.QueryContext(ctx, `SELECT file_path, id FROM videos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var p string
		var id int64
		if err := rows.Scan(&p, &id); err != nil {
			return nil, err
		}
		out[p] = id
	}
	return out, rows.Err()
}

func (s *FolderStore) queryVideos(ctx context.Context, query string, args ...any) ([]Video, error) {
	rows, err := s.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

const clipColumns = `c.id, c.rowid, c.video_id, c.start_time, c.end_time, c.title, c.summary, c.transcript, c.tags, c.thumbnail_path, c.created_at`

func scanClip(row interface{ Scan(...any) error }) (*Clip, error) {
	var c Clip
	var title, summary, transcript, tags, thumb sql.NullString
	var createdAt int64

	err := row.Scan(&c.ID, &c.RowID, &c.VideoID, &c.StartTime, &c.EndTime,
		&title, &summary, &transcript, &tags, &thumb, &createdAt)
	if err != nil {
		return nil, err
	}

	c.Title = nullString(title)
	c.Summary = nullString(summary)
	c.Transcript = nullString(transcript)
	c.Tags = nullString(tags)
	c.ThumbnailPath = nullString(thumb)
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &c, nil
}

// ClipsSinceRow returns clips whose insertion order is after the
// cursor, excluding clips whose parent video is orphaned.
func (s *FolderStore) ClipsSinceRow(ctx context.Context, afterRowID int64) ([]Clip, error) {
	return s.queryClips(ctx, `
		SELECT `+clipColumns+` FROM clips c
		JOIN videos v ON v.id = c.video_id
		WHERE c.rowid > ? AND v.index_status != 'orphaned'
		ORDER BY c.rowid
	`, afterRowID)
}

// AllActiveClips returns every clip of a non-orphaned video in
// insertion order.
func (s *FolderStore) AllActiveClips(ctx context.Context) ([]Clip, error) {
	return s.queryClips(ctx, `
		SELECT `+clipColumns+` FROM clips c
		JOIN videos v ON v.id = c.video_id
		WHERE v.index_status != 'orphaned'
		ORDER BY c.rowid
	`)
}

// ClipsForVideo returns a video's clips in insertion order.
func (s *FolderStore) ClipsForVideo(ctx context.Context, videoID int64) ([]Clip, error) {
	return s.queryClips(ctx, `
		SELECT `+clipColumns+` FROM clips c WHERE c.video_id = ? ORDER BY c.rowid
	`, videoID)
}

func (s *FolderStore) queryClips(ctx context.Context, query string, args ...any) ([]Clip, error) {
	rows, err := s.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// MaxVideoRowID returns the highest video insertion order, 0 for an
// empty table.
func (s *FolderStore) MaxVideoRowID(ctx context.Context) (int64, error) {
	var n sql.NullInt64
	err := s.sql.QueryRowContext(ctx, `SELECT MAX(rowid) FROM videos`).Scan(&n)
	return n.Int64, err
}

// MaxClipRowID returns the highest clip insertion order, 0 for an empty
// table.
func (s *FolderStore) MaxClipRowID(ctx context.Context) (int64, error) {
	var n sql.NullInt64
	err := s.sql.QueryRowContext(ctx, `SELECT MAX(rowid) FROM clips`).Scan(&n)
	return n.Int64, err
}

// RebasePaths rewrites the folder row and every stored path rooted
// under oldPath to newPath in a single transaction. Returns the number
// of video and clip rows rewritten.
func (s *FolderStore) RebasePaths(ctx context.Context, oldPath, newPath string) (videos, clips int64, err error) {
	start := time.Now()
	tx, err := s.beginBatch()
	if err != nil {
		return 0, 0, err
	}

	videos, clips, err = s.rebasePathsTx(ctx, tx, oldPath, newPath)
	recordQuery("rebase_paths", start, err)
	if endErr := s.endBatch(tx, err); endErr != nil {
		return 0, 0, endErr
	}
	return videos, clips, nil
}

func (s *FolderStore) rebasePathsTx(ctx context.Context, tx *sql.Tx, oldPath, newPath string) (int64, int64, error) {
	if _, err := tx.ExecContext(ctx, `UPDATE watched_folder SET folder_path = ? WHERE id = 1`, newPath); err != nil {
		return 0, 0, fmt.Errorf("failed to update folder path: %w", err)
	}

	// substr/length are evaluated in SQLite so multibyte paths keep
	// character semantics consistent on both sides of the rewrite.
	res, err := tx.ExecContext(ctx, `
		UPDATE videos
		SET file_path = ?2 || substr(file_path, length(?1) + 1),
			srt_path = CASE
				WHEN srt_path IS NOT NULL AND substr(srt_path, 1, length(?1) + 1) = ?1 || '/'
				THEN ?2 || substr(srt_path, length(?1) + 1)
				ELSE srt_path
			END,
			updated_at = strftime('%s', 'now')
		WHERE substr(file_path, 1, length(?1) + 1) = ?1 || '/'
	`, oldPath, newPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to rebase video paths: %w", err)
	}
	videos, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `
		UPDATE clips
		SET thumbnail_path = ?2 || substr(thumbnail_path, length(?1) + 1)
		WHERE thumbnail_path IS NOT NULL
			AND substr(thumbnail_path, 1, length(?1) + 1) = ?1 || '/'
	`, oldPath, newPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to rebase clip thumbnail paths: %w", err)
	}
	clips, _ := res.RowsAffected()

	return videos, clips, nil
}
