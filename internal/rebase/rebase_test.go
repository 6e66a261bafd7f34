package rebase

import (
	"context"
	"path/filepath"
	"testing"

	"footage-indexer/internal/database"
)

func newTestFolderStore(t *testing.T) *database.FolderStore {
	t.Helper()
	s, err := database.OpenFolderStore(context.Background(), filepath.Join(t.TempDir(), "folder.db"))
	if err != nil {
		t.Fatalf("OpenFolderStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDetectMismatch(t *testing.T) {
	s := newTestFolderStore(t)
	ctx := context.Background()

	// No folder row yet.
	if stored, mismatch, err := DetectMismatch(ctx, s, "/mnt/a"); err != nil || mismatch || stored != "" {
		t.Errorf("DetectMismatch() = %q, %v, %v, want no mismatch without a row", stored, mismatch, err)
	}

	if err := s.EnsureWatchedFolder(ctx, "/volumes/footage"); err != nil {
		t.Fatalf("EnsureWatchedFolder() error = %v", err)
	}

	// Trailing separators never count as a difference.
	if _, mismatch, err := DetectMismatch(ctx, s, "/volumes/footage/"); err != nil || mismatch {
		t.Errorf("DetectMismatch(same with slash) mismatch = %v, %v, want false", mismatch, err)
	}

	stored, mismatch, err := DetectMismatch(ctx, s, "/mnt/footage")
	if err != nil {
		t.Fatalf("DetectMismatch() error = %v", err)
	}
	if !mismatch || stored != "/volumes/footage" {
		t.Errorf("DetectMismatch() = %q, %v, want stored path and true", stored, mismatch)
	}
}

func TestRebaseIfNeededNoop(t *testing.T) {
	s := newTestFolderStore(t)
	ctx := context.Background()

	if err := s.EnsureWatchedFolder(ctx, "/volumes/footage"); err != nil {
		t.Fatalf("EnsureWatchedFolder() error = %v", err)
	}
	if _, err := s.InsertVideo(ctx, "/volumes/footage/a.mov", "a.mov", "h"); err != nil {
		t.Fatalf("InsertVideo() error = %v", err)
	}

	res, err := RebaseIfNeeded(ctx, s, "/volumes/footage/")
	if err != nil {
		t.Fatalf("RebaseIfNeeded() error = %v", err)
	}
	if res.DidRebase || res.RebasedVideos != 0 || res.RebasedClips != 0 {
		t.Errorf("RebaseIfNeeded() = %+v, want no-op on matching path", res)
	}

	v, _ := s.VideoByPath(ctx, "/volumes/footage/a.mov")
	if v == nil {
		t.Error("video path changed by a no-op rebase")
	}
}

func TestRebaseIfNeededRewrites(t *testing.T) {
	s := newTestFolderStore(t)
	ctx := context.Background()

	if err := s.EnsureWatchedFolder(ctx, "/volumes/footage"); err != nil {
		t.Fatalf("EnsureWatchedFolder() error = %v", err)
	}

	v1, err := s.InsertVideo(ctx, "/volumes/footage/day1/a.mov", "a.mov", "h1")
	if err != nil {
		t.Fatalf("InsertVideo() error = %v", err)
	}
	if err := s.SetVideoSRTPath(ctx, v1, "/volumes/footage/day1/a.srt"); err != nil {
		t.Fatalf("SetVideoSRTPath() error = %v", err)
	}

	v2, err := s.InsertVideo(ctx, "/volumes/footage/b.mov", "b.mov", "h2")
	if err != nil {
		t.Fatalf("InsertVideo() error = %v", err)
	}
	external := "/app-support/srt/b.srt"
	if err := s.SetVideoSRTPath(ctx, v2, external); err != nil {
		t.Fatalf("SetVideoSRTPath() error = %v", err)
	}

	thumb := "/volumes/footage/.thumbs/a.jpg"
	if _, err := s.InsertClip(ctx, &database.Clip{VideoID: v1, StartTime: 0, EndTime: 1, ThumbnailPath: &thumb}); err != nil {
		t.Fatalf("InsertClip() error = %v", err)
	}

	res, err := RebaseIfNeeded(ctx, s, "/mnt/relocated/")
	if err != nil {
		t.Fatalf("RebaseIfNeeded() error = %v", err)
	}
	if !res.DidRebase {
		t.Fatal("DidRebase = false, want rewrite")
	}
	if res.OldPath != "/volumes/footage" || res.NewPath != "/mnt/relocated" {
		t.Errorf("paths = %q -> %q, want normalized old and new", res.OldPath, res.NewPath)
	}
	if res.RebasedVideos != 2 || res.RebasedClips != 1 {
		t.Errorf("counts = %d videos, %d clips, want 2 and 1", res.RebasedVideos, res.RebasedClips)
	}

	got1, _ := s.VideoByID(ctx, v1)
	if got1.FilePath != "/mnt/relocated/day1/a.mov" {
		t.Errorf("v1 path = %q", got1.FilePath)
	}
	if got1.SRTPath == nil || *got1.SRTPath != "/mnt/relocated/day1/a.srt" {
		t.Errorf("v1 srt = %v, want rewritten under new root", got1.SRTPath)
	}

	got2, _ := s.VideoByID(ctx, v2)
	if got2.SRTPath == nil || *got2.SRTPath != external {
		t.Errorf("v2 srt = %v, want app-external path untouched", got2.SRTPath)
	}

	clips, _ := s.ClipsForVideo(ctx, v1)
	if len(clips) != 1 || clips[0].ThumbnailPath == nil || *clips[0].ThumbnailPath != "/mnt/relocated/.thumbs/a.jpg" {
		t.Errorf("clip thumbnail = %+v, want rewritten", clips)
	}

	wf, _ := s.WatchedFolder(ctx)
	if wf.FolderPath != "/mnt/relocated" {
		t.Errorf("folder path = %q, want /mnt/relocated", wf.FolderPath)
	}
}
