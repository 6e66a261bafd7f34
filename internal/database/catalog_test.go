package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func newTestCatalogStore(t *testing.T) *CatalogStore {
	t.Helper()
	s, err := OpenCatalogStore(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("OpenCatalogStore() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func inBatch(t *testing.T, s *CatalogStore, fn func(tx *sql.Tx) error) {
	t.Helper()
	tx, err := s.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch() error = %v", err)
	}
	if err := s.EndBatch(tx, fn(tx)); err != nil {
		t.Fatalf("batch error = %v", err)
	}
}

func strptr(v string) *string { return &v }

func TestSyncMetaRoundTrip(t *testing.T) {
	s := newTestCatalogStore(t)
	ctx := context.Background()

	m, err := s.GetSyncMeta(ctx, "/volumes/footage")
	if err != nil {
		t.Fatalf("GetSyncMeta() error = %v", err)
	}
	if m != nil {
		t.Fatalf("GetSyncMeta() = %+v, want nil for never-synced folder", m)
	}

	inBatch(t, s, func(tx *sql.Tx) error {
		return s.SaveSyncMeta(ctx, tx, &SyncMeta{
			FolderPath:           "/volumes/footage",
			LastSyncedVideoRowID: 12,
			LastSyncedClipRowID:  40,
		})
	})

	m, err = s.GetSyncMeta(ctx, "/volumes/footage")
	if err != nil || m == nil {
		t.Fatalf("GetSyncMeta() = %v, %v", m, err)
	}
	if m.LastSyncedVideoRowID != 12 || m.LastSyncedClipRowID != 40 {
		t.Errorf("cursors = %d/%d, want 12/40", m.LastSyncedVideoRowID, m.LastSyncedClipRowID)
	}
	if m.LastSyncedAt.IsZero() {
		t.Error("LastSyncedAt is zero, want stamped")
	}

	// Repeated saves replace the row rather than accumulating.
	inBatch(t, s, func(tx *sql.Tx) error {
		return s.SaveSyncMeta(ctx, tx, &SyncMeta{
			FolderPath:           "/volumes/footage",
			LastSyncedVideoRowID: 30,
			LastSyncedClipRowID:  90,
		})
	})

	m, _ = s.GetSyncMeta(ctx, "/volumes/footage")
	if m.LastSyncedVideoRowID != 30 || m.LastSyncedClipRowID != 90 {
		t.Errorf("cursors after update = %d/%d, want 30/90", m.LastSyncedVideoRowID, m.LastSyncedClipRowID)
	}
}

func TestUpsertVideoIdempotent(t *testing.T) {
	s := newTestCatalogStore(t)
	ctx := context.Background()

	v := &Video{ID: 7, FilePath: "/f/a.mov", FileName: "a.mov", FileHash: "h", Status: StatusCompleted}
	inBatch(t, s, func(tx *sql.Tx) error {
		return s.UpsertVideo(ctx, tx, "/f", v)
	})

	v.FilePath = "/f/a-renamed.mov"
	inBatch(t, s, func(tx *sql.Tx) error {
		return s.UpsertVideo(ctx, tx, "/f", v)
	})

	n, err := s.CountVideos(ctx, "/f")
	if err != nil {
		t.Fatalf("CountVideos() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CountVideos() = %d, want upsert to keep single row", n)
	}

	gv, err := s.GetVideo(ctx, VideoKey{SourceFolder: "/f", SourceVideoID: 7})
	if err != nil || gv == nil {
		t.Fatalf("GetVideo() = %v, %v", gv, err)
	}
	if gv.FilePath != "/f/a-renamed.mov" {
		t.Errorf("FilePath = %q, want refreshed on conflict", gv.FilePath)
	}
}

func TestDeleteVideoProjection(t *testing.T) {
	s := newTestCatalogStore(t)
	ctx := context.Background()

	inBatch(t, s, func(tx *sql.Tx) error {
		if err := s.UpsertVideo(ctx, tx, "/f", &Video{ID: 1, FilePath: "/f/a.mov", FileName: "a.mov", Status: StatusCompleted}); err != nil {
			return err
		}
		if err := s.UpsertVideo(ctx, tx, "/f", &Video{ID: 2, FilePath: "/f/b.mov", FileName: "b.mov", Status: StatusCompleted}); err != nil {
			return err
		}
		for clipID, videoID := range map[int64]int64{10: 1, 11: 1, 20: 2} {
			if err := s.UpsertClip(ctx, tx, "/f", &Clip{ID: clipID, VideoID: videoID, StartTime: 0, EndTime: 1}, nil); err != nil {
				return err
			}
			if err := s.UpsertVector(ctx, tx, "/f", &ClipVector{ClipID: clipID, Embedding: []float32{1, 2}}); err != nil {
				return err
			}
		}
		return nil
	})

	if err := s.DeleteVideoProjection(ctx, "/f", 1); err != nil {
		t.Fatalf("DeleteVideoProjection() error = %v", err)
	}

	if n, _ := s.CountVideos(ctx, "/f"); n != 1 {
		t.Errorf("videos = %d, want 1", n)
	}
	if n, _ := s.CountClips(ctx, "/f"); n != 1 {
		t.Errorf("clips = %d, want 1", n)
	}
	if n, _ := s.CountVectors(ctx, "/f"); n != 1 {
		t.Errorf("vectors = %d, want 1", n)
	}
}

func TestRemoveFolderData(t *testing.T) {
	s := newTestCatalogStore(t)
	ctx := context.Background()

	for _, folder := range []string{"/f1", "/f2"} {
		inBatch(t, s, func(tx *sql.Tx) error {
			if err := s.UpsertVideo(ctx, tx, folder, &Video{ID: 1, FilePath: folder + "/a.mov", FileName: "a.mov", Status: StatusCompleted}); err != nil {
				return err
			}
			if err := s.UpsertClip(ctx, tx, folder, &Clip{ID: 1, VideoID: 1, StartTime: 0, EndTime: 1}, nil); err != nil {
				return err
			}
			return s.SaveSyncMeta(ctx, tx, &SyncMeta{FolderPath: folder, LastSyncedVideoRowID: 1, LastSyncedClipRowID: 1})
		})
	}

	if err := s.RemoveFolderData(ctx, "/f1"); err != nil {
		t.Fatalf("RemoveFolderData() error = %v", err)
	}

	if n, _ := s.CountVideos(ctx, "/f1"); n != 0 {
		t.Errorf("/f1 videos = %d, want 0", n)
	}
	if m, _ := s.GetSyncMeta(ctx, "/f1"); m != nil {
		t.Errorf("/f1 sync meta = %+v, want removed", m)
	}
	if n, _ := s.CountVideos(ctx, "/f2"); n != 1 {
		t.Errorf("/f2 videos = %d, want untouched", n)
	}
	if m, _ := s.GetSyncMeta(ctx, "/f2"); m == nil {
		t.Error("/f2 sync meta removed, want untouched")
	}
}

func TestSearch(t *testing.T) {
	s := newTestCatalogStore(t)
	ctx := context.Background()

	inBatch(t, s, func(tx *sql.Tx) error {
		if err := s.UpsertVideo(ctx, tx, "/f", &Video{ID: 1, FilePath: "/f/interview.mov", FileName: "interview.mov", Status: StatusCompleted}); err != nil {
			return err
		}
		if err := s.UpsertClip(ctx, tx, "/f", &Clip{
			ID: 1, VideoID: 1, StartTime: 0, EndTime: 30,
			Title:   strptr("Opening question"),
			Summary: strptr("Director discusses lighting the warehouse scene"),
		}, strptr("interview warehouse lighting")); err != nil {
			return err
		}
		return s.UpsertClip(ctx, tx, "/f", &Clip{
			ID: 2, VideoID: 1, StartTime: 30, EndTime: 60,
			Title:   strptr("B-roll"),
			Summary: strptr("Drone footage over the coastline"),
		}, strptr("drone coastline"))
	})

	hits, err := s.Search(ctx, "warehouse", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Search(warehouse) hits = %d, want 1", len(hits))
	}
	if hits[0].Key.SourceClipID != 1 {
		t.Errorf("hit clip = %d, want 1", hits[0].Key.SourceClipID)
	}
	if hits[0].FilePath != "/f/interview.mov" {
		t.Errorf("hit path = %q, want joined video path", hits[0].FilePath)
	}
	if hits[0].Snippet == "" {
		t.Error("snippet empty, want highlighted match")
	}

	// Updates must keep the FTS index in step with the clip row.
	inBatch(t, s, func(tx *sql.Tx) error {
		return s.UpsertClip(ctx, tx, "/f", &Clip{
			ID: 2, VideoID: 1, StartTime: 30, EndTime: 60,
			Title:   strptr("B-roll"),
			Summary: strptr("Mountain ridge at sunrise"),
		}, strptr("mountain sunrise"))
	})

	if hits, _ := s.Search(ctx, "coastline", 10); len(hits) != 0 {
		t.Errorf("Search(coastline) hits = %d, want stale text unindexed", len(hits))
	}
	if hits, _ := s.Search(ctx, "sunrise", 10); len(hits) != 1 {
		t.Errorf("Search(sunrise) hits = %d, want 1", len(hits))
	}
}

func TestStats(t *testing.T) {
	s := newTestCatalogStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Folders != 0 || st.Videos != 0 || !st.LastSyncedAt.IsZero() {
		t.Errorf("empty Stats() = %+v, want zeros", st)
	}

	inBatch(t, s, func(tx *sql.Tx) error {
		if err := s.UpsertVideo(ctx, tx, "/f", &Video{ID: 1, FilePath: "/f/a.mov", FileName: "a.mov", Status: StatusCompleted}); err != nil {
			return err
		}
		if err := s.UpsertClip(ctx, tx, "/f", &Clip{ID: 1, VideoID: 1, StartTime: 0, EndTime: 1}, nil); err != nil {
			return err
		}
		return s.SaveSyncMeta(ctx, tx, &SyncMeta{FolderPath: "/f", LastSyncedVideoRowID: 1, LastSyncedClipRowID: 1})
	})

	st, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Folders != 1 || st.Videos != 1 || st.Clips != 1 {
		t.Errorf("Stats() = %+v, want 1 folder/video/clip", st)
	}
	if st.LastSyncedAt.IsZero() {
		t.Error("LastSyncedAt zero after sync meta write")
	}
}
