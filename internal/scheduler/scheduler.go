package scheduler

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"footage-indexer/internal/database"
	"footage-indexer/internal/logging"
	"footage-indexer/internal/metrics"
	"footage-indexer/internal/resources"
	"footage-indexer/internal/semaphore"
)

// skippedCancelled is the reserved message carried by outcomes of
// videos that never ran because the batch was cancelled.
const skippedCancelled = "cancelled"

// ProcessRequest is the per-video unit of work handed to the pipeline.
type ProcessRequest struct {
	VideoPath  string
	FolderPath string
	Folder     *database.FolderStore
	Catalog    *database.CatalogStore
	SkipSTT    bool
	SkipSync   bool
}

// ProcessResult is what the pipeline reports for one video.
type ProcessResult struct {
	VideoID           int64
	ClipsCreated      int
	ClipsAnalyzed     int
	ClipsEmbedded     int
	STTSkippedNoAudio bool
	// RequiresForceSync is set when orphan recovery reclaimed an
	// identity, leaving a row behind the sync cursor.
	RequiresForceSync bool
}

// Pipeline runs the full analysis of a single video.
type Pipeline interface {
	Process(ctx context.Context, req ProcessRequest) (ProcessResult, error)
}

// OutcomeKind classifies a VideoOutcome.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
	OutcomeSkipped OutcomeKind = "skipped"
)

// VideoOutcome records how one video in a batch fared.
type VideoOutcome struct {
	Kind              OutcomeKind `json:"kind"`
	VideoPath         string      `json:"videoPath"`
	ClipsCreated      int         `json:"clipsCreated,omitempty"`
	ClipsAnalyzed     int         `json:"clipsAnalyzed,omitempty"`
	ClipsEmbedded     int         `json:"clipsEmbedded,omitempty"`
	STTSkippedNoAudio bool        `json:"sttSkippedNoAudio,omitempty"`
	Message           string      `json:"message,omitempty"`
}

// BatchResult aggregates a processVideos call.
type BatchResult struct {
	BatchID  string         `json:"batchId"`
	Outcomes []VideoOutcome `json:"outcomes"`
	// NeedsForceSync asks the caller to run a forced full sync:
	// recovery reclaimed at least one identity while the batch ran
	// with sync skipped, so the incremental cursor would miss it.
	NeedsForceSync bool          `json:"needsForceSync"`
	Duration       time.Duration `json:"duration"`
}

// ConcurrencyInfo is a point-in-time snapshot of the permit gate.
type ConcurrencyInfo struct {
	Max       int `json:"max"`
	Available int `json:"available"`
	Waiting   int `json:"waiting"`
}

// BatchOptions tunes one ProcessVideos call.
type BatchOptions struct {
	SkipSTT  bool
	SkipSync bool
	// OnProgress is invoked after each video finishes with the
	// completed and total counts.
	OnProgress func(done, total int)
	// OnComplete is invoked once when the whole batch is done.
	OnComplete func(BatchResult)
}

// Scheduler bounds how many per-video pipeline invocations run at once.
// The bound is a FIFO semaphore sized by the resource planner and
// resizable at runtime.
type Scheduler struct {
	sem      *semaphore.Semaphore
	pipeline Pipeline

	modeMu sync.Mutex
	mode   resources.Mode
}

// New creates a scheduler sized via InitialConcurrency for mode.
func New(pipeline Pipeline, mode resources.Mode) *Scheduler {
	return NewWithConcurrency(pipeline, mode, resources.InitialConcurrency(mode, runtime.NumCPU()))
}

// NewWithConcurrency creates a scheduler with an explicit permit
// ceiling, floored at 1.
func NewWithConcurrency(pipeline Pipeline, mode resources.Mode, concurrency int) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	metrics.SchedulerMaxPermits.Set(float64(concurrency))
	return &Scheduler{
		sem:      semaphore.New(concurrency),
		pipeline: pipeline,
		mode:     mode,
	}
}

// ConcurrencyInfo reports the current state of the permit gate.
func (s *Scheduler) ConcurrencyInfo() ConcurrencyInfo {
	return ConcurrencyInfo{
		Max:       s.sem.MaxPermits(),
		Available: s.sem.Available(),
		Waiting:   s.sem.Waiting(),
	}
}

// UpdateMode recomputes the permit ceiling for mode on fresh cores and
// applies it. Raising wakes waiters immediately; lowering lets the
// in-flight count drain down.
func (s *Scheduler) UpdateMode(mode resources.Mode) {
	s.modeMu.Lock()
	s.mode = mode
	s.modeMu.Unlock()
	s.Resize(resources.InitialConcurrency(mode, runtime.NumCPU()))
}

// Mode returns the current planning mode.
func (s *Scheduler) Mode() resources.Mode {
	s.modeMu.Lock()
	defer s.modeMu.Unlock()
	return s.mode
}

// Apply resizes the ceiling from a live resource snapshot.
func (s *Scheduler) Apply(snap resources.Snapshot) {
	s.Resize(resources.ComputeConcurrency(snap, s.Mode()))
}

// Resize sets the permit ceiling directly, floored at 1.
func (s *Scheduler) Resize(n int) {
	if n < 1 {
		n = 1
	}
	if n == s.sem.MaxPermits() {
		return
	}
	logging.Info("Scheduler concurrency %d -> %d", s.sem.MaxPermits(), n)
	s.sem.SetMaxPermits(n)
	metrics.SchedulerMaxPermits.Set(float64(n))
}

// Shutdown unblocks every queued waiter so a stopping batch drains
// promptly. Teardown only; it does not replace paced releases.
func (s *Scheduler) Shutdown() {
	s.sem.ReleaseAll()
}

// ProcessVideos runs the pipeline for each path, at most ceiling-many
// at a time, in permit FIFO order. A single video's failure is recorded
// in its outcome and never aborts the batch; cancellation turns
// not-yet-started videos into skipped outcomes. An empty path list does
// nothing and invokes no callbacks.
func (s *Scheduler) ProcessVideos(ctx context.Context, paths []string, folderPath string, folder *database.FolderStore, catalog *database.CatalogStore, opts BatchOptions) BatchResult {
	if len(paths) == 0 {
		return BatchResult{}
	}

	start := time.Now()
	batchID := uuid.NewString()
	logging.Info("Batch %s: processing %d videos from %s", batchID, len(paths), folderPath)

	var (
		mu             sync.Mutex
		outcomes       = make([]VideoOutcome, len(paths))
		needsForceSync atomic.Bool
		done           atomic.Int64
	)

	record := func(i int, o VideoOutcome) {
		mu.Lock()
		outcomes[i] = o
		mu.Unlock()

		metrics.SchedulerOutcomes.WithLabelValues(string(o.Kind)).Inc()
		n := int(done.Add(1))
		if opts.OnProgress != nil {
			opts.OnProgress(n, len(paths))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := s.sem.Acquire(gctx); err != nil {
				record(i, VideoOutcome{Kind: OutcomeSkipped, VideoPath: path, Message: skippedCancelled})
				return nil
			}
			defer s.sem.Release()

			metrics.SchedulerInFlight.Inc()
			defer metrics.SchedulerInFlight.Dec()

			res, err := s.pipeline.Process(gctx, ProcessRequest{
				VideoPath:  path,
				FolderPath: folderPath,
				Folder:     folder,
				Catalog:    catalog,
				SkipSTT:    opts.SkipSTT,
				SkipSync:   opts.SkipSync,
			})
			if err != nil {
				if gctx.Err() != nil {
					record(i, VideoOutcome{Kind: OutcomeSkipped, VideoPath: path, Message: skippedCancelled})
					return nil
				}
				logging.Error("Batch %s: %s failed: %v", batchID, path, err)
				record(i, VideoOutcome{Kind: OutcomeFailure, VideoPath: path, Message: err.Error()})
				return nil
			}

			if res.RequiresForceSync {
				needsForceSync.Store(true)
			}
			record(i, VideoOutcome{
				Kind:              OutcomeSuccess,
				VideoPath:         path,
				ClipsCreated:      res.ClipsCreated,
				ClipsAnalyzed:     res.ClipsAnalyzed,
				ClipsEmbedded:     res.ClipsEmbedded,
				STTSkippedNoAudio: res.STTSkippedNoAudio,
			})
			return nil
		})
	}
	// Worker closures convert every failure into an outcome and return
	// nil, so a non-nil Wait means a worker broke that contract.
	if err := g.Wait(); err != nil {
		logging.Error("Batch %s: unexpected worker error: %v", batchID, err)
	}

	result := BatchResult{
		BatchID:        batchID,
		Outcomes:       outcomes,
		NeedsForceSync: needsForceSync.Load() && opts.SkipSync,
		Duration:       time.Since(start),
	}
	metrics.SchedulerBatchDuration.Observe(result.Duration.Seconds())
	logging.Info("Batch %s: done in %v (%d success, %d failure, %d skipped)",
		batchID, result.Duration.Round(time.Millisecond),
		result.Count(OutcomeSuccess), result.Count(OutcomeFailure), result.Count(OutcomeSkipped))

	if opts.OnComplete != nil {
		opts.OnComplete(result)
	}
	return result
}

// Count returns how many outcomes have the given kind.
func (r BatchResult) Count(kind OutcomeKind) int {
	var n int
	for _, o := range r.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}
