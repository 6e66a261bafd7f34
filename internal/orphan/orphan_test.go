package orphan

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"footage-indexer/internal/database"
)

func newTestStores(t *testing.T) (*database.FolderStore, *database.CatalogStore) {
	t.Helper()
	dir := t.TempDir()

	folder, err := database.OpenFolderStore(context.Background(), filepath.Join(dir, "folder.db"))
	if err != nil {
		t.Fatalf("OpenFolderStore() error = %v", err)
	}
	t.Cleanup(func() { folder.Close() })

	catalog, err := database.OpenCatalogStore(context.Background(), filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("OpenCatalogStore() error = %v", err)
	}
	t.Cleanup(func() { catalog.Close() })

	return folder, catalog
}

func seedVideo(t *testing.T, folder *database.FolderStore, path, hash string, clips int) int64 {
	t.Helper()
	ctx := context.Background()

	id, err := folder.InsertVideo(ctx, path, filepath.Base(path), hash)
	if err != nil {
		t.Fatalf("InsertVideo(%s) error = %v", path, err)
	}
	for i := 0; i < clips; i++ {
		if _, err := folder.InsertClip(ctx, &database.Clip{
			VideoID: id, StartTime: float64(i), EndTime: float64(i) + 1,
		}); err != nil {
			t.Fatalf("InsertClip() error = %v", err)
		}
	}
	if err := folder.SetVideoStatus(ctx, id, database.StatusCompleted); err != nil {
		t.Fatalf("SetVideoStatus() error = %v", err)
	}
	return id
}

func projectVideo(t *testing.T, catalog *database.CatalogStore, folderPath string, folder *database.FolderStore, videoID int64) {
	t.Helper()
	ctx := context.Background()

	v, err := folder.VideoByID(ctx, videoID)
	if err != nil || v == nil {
		t.Fatalf("VideoByID() = %v, %v", v, err)
	}
	clips, err := folder.ClipsForVideo(ctx, videoID)
	if err != nil {
		t.Fatalf("ClipsForVideo() error = %v", err)
	}

	tx, err := catalog.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch() error = %v", err)
	}
	err = func(tx *sql.Tx) error {
		if err := catalog.UpsertVideo(ctx, tx, folderPath, v); err != nil {
			return err
		}
		for i := range clips {
			if err := catalog.UpsertClip(ctx, tx, folderPath, &clips[i], nil); err != nil {
				return err
			}
		}
		return nil
	}(tx)
	if err := catalog.EndBatch(tx, err); err != nil {
		t.Fatalf("projection batch error = %v", err)
	}
}

func TestMarkOrphanedUnknownPathIsNoop(t *testing.T) {
	folder, catalog := newTestStores(t)

	n, err := MarkOrphaned(context.Background(), "/f/nope.mov", "/f", folder, catalog)
	if err != nil {
		t.Fatalf("MarkOrphaned() error = %v", err)
	}
	if n != 0 {
		t.Errorf("marked = %d, want 0 for unknown path", n)
	}
}

func TestMarkOrphanedRemovesProjection(t *testing.T) {
	folder, catalog := newTestStores(t)
	ctx := context.Background()
	const fp = "/f"

	id := seedVideo(t, folder, "/f/a.mov", "h1", 2)
	projectVideo(t, catalog, fp, folder, id)

	n, err := MarkOrphaned(ctx, "/f/a.mov", fp, folder, catalog)
	if err != nil {
		t.Fatalf("MarkOrphaned() error = %v", err)
	}
	if n != 1 {
		t.Errorf("marked = %d, want 1", n)
	}

	v, _ := folder.VideoByID(ctx, id)
	if v.Status != database.StatusOrphaned || v.OrphanedAt == nil {
		t.Errorf("video = %+v, want orphaned with timestamp", v)
	}
	if c, _ := folder.CountClips(ctx, id); c != 2 {
		t.Errorf("folder clips = %d, want preserved", c)
	}

	if gv, _ := catalog.GetVideo(ctx, database.VideoKey{SourceFolder: fp, SourceVideoID: id}); gv != nil {
		t.Error("catalog projection still present, want removed")
	}
	if c, _ := catalog.CountClips(ctx, fp); c != 0 {
		t.Errorf("catalog clips = %d, want 0", c)
	}
}

func TestMarkOrphanedAlreadyOrphanedKeepsTimestamp(t *testing.T) {
	folder, catalog := newTestStores(t)
	ctx := context.Background()

	id := seedVideo(t, folder, "/f/a.mov", "hash-a", 1)
	orphanedAt := time.Now().AddDate(0, 0, -40).Truncate(time.Second)
	if err := folder.MarkVideoOrphaned(ctx, id, orphanedAt); err != nil {
		t.Fatalf("MarkVideoOrphaned() error = %v", err)
	}

	// A repeated mark must not restart the retention clock.
	n, err := MarkOrphaned(ctx, "/f/a.mov", "/f", folder, catalog)
	if err != nil {
		t.Fatalf("MarkOrphaned() error = %v", err)
	}
	if n != 0 {
		t.Errorf("marked = %d, want 0 for already-orphaned video", n)
	}

	v, err := folder.VideoByID(ctx, id)
	if err != nil || v == nil {
		t.Fatalf("VideoByID() = %v, %v", v, err)
	}
	if v.OrphanedAt == nil || !v.OrphanedAt.Equal(orphanedAt) {
		t.Errorf("OrphanedAt = %v, want unchanged %v", v.OrphanedAt, orphanedAt)
	}

	removed, err := CleanupExpired(ctx, 30, folder)
	if err != nil {
		t.Fatalf("CleanupExpired() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("CleanupExpired() removed = %d, want 1", removed)
	}
}

func TestMarkOrphanedBatch(t *testing.T) {
	folder, catalog := newTestStores(t)

	seedVideo(t, folder, "/f/a.mov", "h1", 0)
	seedVideo(t, folder, "/f/b.mov", "h2", 0)

	n, err := MarkOrphanedBatch(context.Background(),
		[]string{"/f/a.mov", "/f/unknown.mov", "/f/b.mov"}, "/f", folder, catalog)
	if err != nil {
		t.Fatalf("MarkOrphanedBatch() error = %v", err)
	}
	if n != 2 {
		t.Errorf("marked = %d, want 2 with unknown path skipped", n)
	}
}

func TestRecoveryRoundTrip(t *testing.T) {
	folder, catalog := newTestStores(t)
	ctx := context.Background()
	const fp = "/f"

	orig := seedVideo(t, folder, "/f/shoot/a.mov", "hash-a", 2)
	if _, err := MarkOrphaned(ctx, "/f/shoot/a.mov", fp, folder, catalog); err != nil {
		t.Fatalf("MarkOrphaned() error = %v", err)
	}

	// Discovery finds the moved file first and inserts a placeholder.
	pending, err := folder.InsertVideo(ctx, "/f/archive/a.mov", "a.mov", "hash-a")
	if err != nil {
		t.Fatalf("InsertVideo(placeholder) error = %v", err)
	}

	res, err := AttemptRecovery(ctx, "hash-a", "/f/archive/a.mov", pending, folder)
	if err != nil {
		t.Fatalf("AttemptRecovery() error = %v", err)
	}
	if res == nil {
		t.Fatal("AttemptRecovery() = nil, want recovery")
	}
	if res.RecoveredVideoID != orig || res.ClipCount != 2 {
		t.Errorf("result = %+v, want video %d with 2 clips", res, orig)
	}

	v, _ := folder.VideoByID(ctx, orig)
	if v.Status != database.StatusCompleted || v.OrphanedAt != nil {
		t.Errorf("recovered video = %+v, want completed with orphanedAt cleared", v)
	}
	if v.FilePath != "/f/archive/a.mov" {
		t.Errorf("FilePath = %q, want new location", v.FilePath)
	}
	if c, _ := folder.CountClips(ctx, orig); c != 2 {
		t.Errorf("clips = %d, want analysis reused", c)
	}
	if p, _ := folder.VideoByID(ctx, pending); p != nil {
		t.Error("placeholder still present, want deleted")
	}
}

func TestRecoveryPrefersMostRecentOrphan(t *testing.T) {
	folder, _ := newTestStores(t)
	ctx := context.Background()

	older := seedVideo(t, folder, "/f/v1.mov", "same", 0)
	newer := seedVideo(t, folder, "/f/v2.mov", "same", 0)

	now := time.Now()
	if err := folder.MarkVideoOrphaned(ctx, older, now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := folder.MarkVideoOrphaned(ctx, newer, now); err != nil {
		t.Fatal(err)
	}

	pending, err := folder.InsertVideo(ctx, "/f/v3.mov", "v3.mov", "same")
	if err != nil {
		t.Fatal(err)
	}

	res, err := AttemptRecovery(ctx, "same", "/f/v3.mov", pending, folder)
	if err != nil || res == nil {
		t.Fatalf("AttemptRecovery() = %v, %v", res, err)
	}
	if res.RecoveredVideoID != newer {
		t.Errorf("recovered video = %d, want most recently orphaned %d", res.RecoveredVideoID, newer)
	}
}

func TestRecoveryNoMatch(t *testing.T) {
	folder, _ := newTestStores(t)

	res, err := AttemptRecovery(context.Background(), "unseen-hash", "/f/x.mov", 0, folder)
	if err != nil {
		t.Fatalf("AttemptRecovery() error = %v", err)
	}
	if res != nil {
		t.Errorf("AttemptRecovery() = %+v, want nil without a hash match", res)
	}
}

func TestCleanupExpired(t *testing.T) {
	folder, _ := newTestStores(t)
	ctx := context.Background()

	old := seedVideo(t, folder, "/f/old.mov", "h1", 1)
	recent := seedVideo(t, folder, "/f/recent.mov", "h2", 1)

	now := time.Now()
	if err := folder.MarkVideoOrphaned(ctx, old, now.AddDate(0, 0, -40)); err != nil {
		t.Fatal(err)
	}
	if err := folder.MarkVideoOrphaned(ctx, recent, now.AddDate(0, 0, -10)); err != nil {
		t.Fatal(err)
	}

	removed, err := CleanupExpired(ctx, 30, folder)
	if err != nil {
		t.Fatalf("CleanupExpired() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if v, _ := folder.VideoByID(ctx, old); v != nil {
		t.Error("expired orphan still present")
	}
	if v, _ := folder.VideoByID(ctx, recent); v == nil {
		t.Error("recent orphan purged, want retained")
	}

	// Repeated cleanups leave retained orphans alone.
	removed, err = CleanupExpired(ctx, 30, folder)
	if err != nil || removed != 0 {
		t.Errorf("second CleanupExpired() = %d, %v, want 0, nil", removed, err)
	}
}
