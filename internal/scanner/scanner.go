package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"footage-indexer/internal/database"
	"footage-indexer/internal/filesystem"
	"footage-indexer/internal/logging"
	"footage-indexer/internal/mediatypes"
	"footage-indexer/internal/metrics"
	"footage-indexer/internal/orphan"
	"footage-indexer/internal/rebase"
	"footage-indexer/internal/scheduler"
	"footage-indexer/internal/syncer"
)

const (
	defaultScanInterval    = 5 * time.Minute
	defaultCleanupInterval = 12 * time.Hour
	defaultRetentionDays   = 30
)

// Config tunes one folder's scanner.
type Config struct {
	FolderPath      string
	ScanInterval    time.Duration
	CleanupInterval time.Duration
	RetentionDays   int
	SkipSTT         bool
	Retry           filesystem.RetryConfig
}

func (c *Config) applyDefaults() {
	c.FolderPath = strings.TrimRight(c.FolderPath, "/")
	if c.ScanInterval <= 0 {
		c.ScanInterval = defaultScanInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = defaultCleanupInterval
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = defaultRetentionDays
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry = filesystem.DefaultRetryConfig()
	}
}

// Stats is a point-in-time view of one scanner.
type Stats struct {
	FolderPath      string    `json:"folderPath"`
	IsScanning      bool      `json:"isScanning"`
	LastScanAt      time.Time `json:"lastScanAt,omitempty"`
	FilesDiscovered int64     `json:"filesDiscovered"`
	OrphansMarked   int64     `json:"orphansMarked"`
}

// Scanner keeps one watched folder's store in step with the filesystem:
// new files become pending videos, vanished files become orphans, and
// pending work is handed to the scheduler with a catalog sync after.
type Scanner struct {
	cfg     Config
	folder  *database.FolderStore
	catalog *database.CatalogStore
	sched   *scheduler.Scheduler

	stopChan chan struct{}
	stopOnce sync.Once

	scanMu     sync.Mutex
	isScanning bool
	lastScan   time.Time

	filesDiscovered atomic.Int64
	orphansMarked   atomic.Int64
}

// New creates a scanner for one watched folder.
func New(folder *database.FolderStore, catalog *database.CatalogStore, sched *scheduler.Scheduler, cfg Config) *Scanner {
	cfg.applyDefaults()
	return &Scanner{
		cfg:      cfg,
		folder:   folder,
		catalog:  catalog,
		sched:    sched,
		stopChan: make(chan struct{}),
	}
}

// Open prepares the folder store for this mount point: stored paths are
// rebased if the folder moved since last run, and the folder row is
// created or refreshed.
func (s *Scanner) Open(ctx context.Context) error {
	res, err := rebase.RebaseIfNeeded(ctx, s.folder, s.cfg.FolderPath)
	if err != nil {
		return err
	}
	if res.DidRebase {
		logging.Info("Folder moved since last run: %s -> %s", res.OldPath, res.NewPath)
	}
	return s.folder.EnsureWatchedFolder(ctx, s.cfg.FolderPath)
}

// Start launches the periodic scan and orphan cleanup loops.
func (s *Scanner) Start(ctx context.Context) {
	go s.scanLoop(ctx)
	go s.cleanupLoop(ctx)
}

// Stop halts the periodic loops. Safe to call more than once.
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *Scanner) scanLoop(ctx context.Context) {
	// First pass immediately so a fresh daemon indexes without waiting
	// a full interval.
	if err := s.Scan(ctx); err != nil {
		logging.Error("Initial scan of %s failed: %v", s.cfg.FolderPath, err)
	}

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Scan(ctx); err != nil {
				logging.Error("Scan of %s failed: %v", s.cfg.FolderPath, err)
			}
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scanner) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := orphan.CleanupExpired(ctx, s.cfg.RetentionDays, s.folder); err != nil {
				logging.Error("Orphan cleanup for %s failed: %v", s.cfg.FolderPath, err)
			}
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stats reports the scanner's current state.
func (s *Scanner) Stats() Stats {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	return Stats{
		FolderPath:      s.cfg.FolderPath,
		IsScanning:      s.isScanning,
		LastScanAt:      s.lastScan,
		FilesDiscovered: s.filesDiscovered.Load(),
		OrphansMarked:   s.orphansMarked.Load(),
	}
}

// Scan performs one full pass: discover new files, mark vanished ones
// orphaned, process pending videos, and sync the catalog. Concurrent
// calls are collapsed; a scan already in progress makes Scan a no-op.
func (s *Scanner) Scan(ctx context.Context) error {
	s.scanMu.Lock()
	if s.isScanning {
		s.scanMu.Unlock()
		logging.Debug("Scan of %s already in progress, skipping", s.cfg.FolderPath)
		return nil
	}
	s.isScanning = true
	s.scanMu.Unlock()

	defer func() {
		s.scanMu.Lock()
		s.isScanning = false
		s.lastScan = time.Now()
		s.scanMu.Unlock()
	}()

	metrics.ScannerRunsTotal.Inc()
	start := time.Now()

	if _, err := filesystem.StatWithRetry(s.cfg.FolderPath, s.cfg.Retry); err != nil {
		metrics.ScannerErrors.Inc()
		if setErr := s.folder.SetFolderAvailable(ctx, false); setErr != nil {
			logging.Error("Failed to mark %s unavailable: %v", s.cfg.FolderPath, setErr)
		}
		logging.Warn("Folder %s is unreachable, skipping scan: %v", s.cfg.FolderPath, err)
		return nil
	}
	if err := s.folder.SetFolderAvailable(ctx, true); err != nil {
		return err
	}

	onDisk, err := s.walk(s.cfg.FolderPath)
	if err != nil {
		metrics.ScannerErrors.Inc()
		return err
	}

	known, err := s.folder.AllVideoPaths(ctx)
	if err != nil {
		return err
	}

	discovered, err := s.discover(ctx, onDisk, known)
	if err != nil {
		return err
	}

	marked, err := s.markVanished(ctx, onDisk, known)
	if err != nil {
		return err
	}

	if err := s.processPending(ctx); err != nil {
		return err
	}

	completed, err := s.folder.VideosByStatus(ctx, database.StatusCompleted)
	if err != nil {
		return err
	}
	if err := s.folder.UpdateFolderCounts(ctx, len(onDisk), len(completed)); err != nil {
		return err
	}

	logging.Info("Scan of %s done in %v: %d files on disk, %d new, %d orphaned",
		s.cfg.FolderPath, time.Since(start).Round(time.Millisecond), len(onDisk), discovered, marked)
	return nil
}

// walk lists every footage file under root. A map keyed by path makes
// the vanished-file diff cheap.
func (s *Scanner) walk(root string) (map[string]bool, error) {
	onDisk := make(map[string]bool)
	var visit func(dir string) error
	visit = func(dir string) error {
		entries, err := filesystem.ReadDirWithRetry(dir, s.cfg.Retry)
		if err != nil {
			return err
		}
		for _, e := range entries {
			name := e.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			full := filepath.Join(dir, name)
			if e.IsDir() {
				if err := visit(full); err != nil {
					return err
				}
				continue
			}
			if mediatypes.IsVideoPath(full) {
				onDisk[full] = true
			}
		}
		return nil
	}
	if err := visit(root); err != nil {
		return nil, err
	}
	return onDisk, nil
}

// discover inserts pending records for files not yet known, hashing
// each and attaching a same-basename SRT sidecar when one exists.
func (s *Scanner) discover(ctx context.Context, onDisk map[string]bool, known map[string]int64) (int, error) {
	var discovered int
	for path := range onDisk {
		if _, ok := known[path]; ok {
			continue
		}

		hash, err := HashFile(path, s.cfg.Retry)
		if err != nil {
			metrics.ScannerErrors.Inc()
			logging.Warn("Failed to hash %s, skipping this pass: %v", path, err)
			continue
		}

		id, err := s.folder.InsertVideo(ctx, path, filepath.Base(path), hash)
		if err != nil {
			return discovered, err
		}

		if srt := sidecarSRT(path); srt != "" {
			if err := s.folder.SetVideoSRTPath(ctx, id, srt); err != nil {
				return discovered, err
			}
		}

		discovered++
		s.filesDiscovered.Add(1)
		metrics.ScannerFilesDiscovered.Inc()
		logging.Debug("Discovered %s (video %d)", path, id)
	}
	return discovered, nil
}

func (s *Scanner) markVanished(ctx context.Context, onDisk map[string]bool, known map[string]int64) (int, error) {
	var vanished []string
	for path := range known {
		if !onDisk[path] {
			vanished = append(vanished, path)
		}
	}
	if len(vanished) == 0 {
		return 0, nil
	}

	marked, err := orphan.MarkOrphanedBatch(ctx, vanished, s.cfg.FolderPath, s.folder, s.catalog)
	if err != nil {
		return marked, err
	}
	s.orphansMarked.Add(int64(marked))
	return marked, nil
}

// processPending runs the pipeline over pending videos and then syncs
// the catalog, forcing a full pass when recovery reclaimed an identity
// the incremental cursor would miss.
func (s *Scanner) processPending(ctx context.Context) error {
	pending, err := s.folder.VideosByStatus(ctx, database.StatusPending)
	if err != nil {
		return err
	}

	force := false
	if len(pending) > 0 {
		paths := make([]string, len(pending))
		for i, v := range pending {
			paths[i] = v.FilePath
		}
		res := s.sched.ProcessVideos(ctx, paths, s.cfg.FolderPath, s.folder, s.catalog, scheduler.BatchOptions{
			SkipSTT:  s.cfg.SkipSTT,
			SkipSync: true,
		})
		force = res.NeedsForceSync
	}

	_, err = syncer.Sync(ctx, s.cfg.FolderPath, s.folder, s.catalog, force)
	return err
}

// sidecarSRT returns the path of a same-basename .srt next to the
// video, or "" when none exists.
func sidecarSRT(videoPath string) string {
	base := strings.TrimSuffix(videoPath, filepath.Ext(videoPath))
	for _, ext := range []string{".srt", ".SRT"} {
		p := base + ext
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
