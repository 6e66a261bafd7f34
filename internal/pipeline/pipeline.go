package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"footage-indexer/internal/database"
	"footage-indexer/internal/logging"
	"footage-indexer/internal/orphan"
	"footage-indexer/internal/scheduler"
	"footage-indexer/internal/syncer"
)

// Pipeline is the built-in per-video processor: a metadata probe plus
// orphan-recovery bookkeeping. The heavyweight analysis stages (scene
// detection, speech-to-text models, embeddings) run as external
// collaborators that enrich clips after the fact; this pipeline takes a
// video from pending to completed with one full-length clip so the
// catalog is searchable immediately.
type Pipeline struct {
	probeTimeout time.Duration
}

// New creates the built-in pipeline.
func New() *Pipeline {
	return &Pipeline{probeTimeout: 30 * time.Second}
}

// Process satisfies the scheduler's per-video contract.
func (p *Pipeline) Process(ctx context.Context, req scheduler.ProcessRequest) (scheduler.ProcessResult, error) {
	v, err := req.Folder.VideoByPath(ctx, req.VideoPath)
	if err != nil {
		return scheduler.ProcessResult{}, err
	}
	if v == nil {
		return scheduler.ProcessResult{}, fmt.Errorf("no video record for %s", req.VideoPath)
	}

	// A matching orphan means this "new" file is a known one that
	// moved; reclaim its identity and analysis instead of reprobing.
	rec, err := orphan.AttemptRecovery(ctx, v.FileHash, v.FilePath, v.ID, req.Folder)
	if err != nil {
		return scheduler.ProcessResult{}, err
	}
	if rec != nil {
		res := scheduler.ProcessResult{
			VideoID:           rec.RecoveredVideoID,
			ClipsCreated:      rec.ClipCount,
			RequiresForceSync: true,
		}
		return res, p.maybeSync(ctx, req, true)
	}

	res, err := p.index(ctx, req, v)
	if err != nil {
		if setErr := req.Folder.SetVideoStatus(ctx, v.ID, database.StatusFailed); setErr != nil {
			logging.Error("Failed to mark video %d failed: %v", v.ID, setErr)
		}
		return scheduler.ProcessResult{}, err
	}
	return res, p.maybeSync(ctx, req, false)
}

func (p *Pipeline) index(ctx context.Context, req scheduler.ProcessRequest, v *database.Video) (scheduler.ProcessResult, error) {
	if err := req.Folder.SetVideoStatus(ctx, v.ID, database.StatusProbing); err != nil {
		return scheduler.ProcessResult{}, err
	}

	info, err := Probe(ctx, v.FilePath, p.probeTimeout)
	if err != nil {
		return scheduler.ProcessResult{}, fmt.Errorf("probe of %s failed: %w", v.FilePath, err)
	}

	if err := req.Folder.SetVideoStatus(ctx, v.ID, database.StatusAnalyzing); err != nil {
		return scheduler.ProcessResult{}, err
	}

	res := scheduler.ProcessResult{VideoID: v.ID}
	if req.SkipSTT || !info.HasAudio {
		res.STTSkippedNoAudio = !info.HasAudio
	}

	// One full-length clip anchors the video in the catalog until the
	// analysis collaborators split and enrich it.
	existing, err := req.Folder.CountClips(ctx, v.ID)
	if err != nil {
		return scheduler.ProcessResult{}, err
	}
	if existing == 0 {
		end := info.Duration
		if end <= 0 {
			end = 0.001
		}
		title := v.FileName
		if _, err := req.Folder.InsertClip(ctx, &database.Clip{
			VideoID:   v.ID,
			StartTime: 0,
			EndTime:   end,
			Title:     &title,
		}); err != nil {
			return scheduler.ProcessResult{}, err
		}
		res.ClipsCreated = 1
		res.ClipsAnalyzed = 1
	}

	if err := req.Folder.SetVideoStatus(ctx, v.ID, database.StatusCompleted); err != nil {
		return scheduler.ProcessResult{}, err
	}
	logging.Debug("Indexed %s: %.1fs %s %dx%d", v.FilePath, info.Duration, info.Codec, info.Width, info.Height)
	return res, nil
}

func (p *Pipeline) maybeSync(ctx context.Context, req scheduler.ProcessRequest, force bool) error {
	if req.SkipSync || req.Catalog == nil {
		return nil
	}
	_, err := syncer.Sync(ctx, req.FolderPath, req.Folder, req.Catalog, force)
	return err
}

// ProbeInfo is the metadata extracted from a footage file.
type ProbeInfo struct {
	Duration float64
	Codec    string
	Width    int
	Height   int
	HasAudio bool
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe runs ffprobe against path and parses the container metadata.
func Probe(ctx context.Context, path string, timeout time.Duration) (*ProbeInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &ProbeInfo{}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.Codec == "" {
				info.Codec = s.CodecName
				info.Width = s.Width
				info.Height = s.Height
			}
		case "audio":
			info.HasAudio = true
		}
	}
	return info, nil
}
