package database

import "time"

// IndexStatus is the stored pipeline stage of a video.
type IndexStatus string

const (
	StatusPending   IndexStatus = "pending"
	StatusProbing   IndexStatus = "probing"
	StatusAnalyzing IndexStatus = "analyzing"
	StatusEmbedding IndexStatus = "embedding"
	StatusCompleted IndexStatus = "completed"
	StatusFailed    IndexStatus = "failed"
	StatusOrphaned  IndexStatus = "orphaned"
)

// WatchedFolder is the single authoritative row describing the folder a
// folder store belongs to.
type WatchedFolder struct {
	FolderPath   string    `json:"folderPath"`
	IsAvailable  bool      `json:"isAvailable"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
	FileCount    int       `json:"fileCount"`
	IndexedCount int       `json:"indexedCount"`
}

// Video is a folder-store video record. RowID is the storage insertion
// order used by sync cursors; it is not part of the public identity.
type Video struct {
	ID         int64       `json:"id"`
	RowID      int64       `json:"-"`
	FilePath   string      `json:"filePath"`
	FileName   string      `json:"fileName"`
	FileHash   string      `json:"fileHash"`
	Status     IndexStatus `json:"indexStatus"`
	OrphanedAt *time.Time  `json:"orphanedAt,omitempty"`
	SRTPath    *string     `json:"srtPath,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Clip is a folder-store clip record, owned by exactly one Video.
type Clip struct {
	ID            int64     `json:"id"`
	RowID         int64     `json:"-"`
	VideoID       int64     `json:"videoId"`
	StartTime     float64   `json:"startTime"`
	EndTime       float64   `json:"endTime"`
	Title         *string   `json:"title,omitempty"`
	Summary       *string   `json:"summary,omitempty"`
	Transcript    *string   `json:"transcript,omitempty"`
	Tags          *string   `json:"tags,omitempty"` // JSON array of strings
	ThumbnailPath *string   `json:"thumbnailPath,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ClipVector is a clip's embedding, stored in a side table so vector
// writes do not churn the clip rows themselves.
type ClipVector struct {
	ClipID    int64
	Embedding []float32
}

// SyncMeta is the per-folder synchronization cursor in the catalog.
// The rowid cursors track folder-store insertion order and must never
// be reinterpreted as video or clip IDs.
type SyncMeta struct {
	FolderPath           string    `json:"folderPath"`
	LastSyncedVideoRowID int64     `json:"lastSyncedVideoRowId"`
	LastSyncedClipRowID  int64     `json:"lastSyncedClipRowId"`
	LastSyncedAt         time.Time `json:"lastSyncedAt"`
}

// VideoKey is the composite natural key of a catalog video. Keeping it
// a named type prevents accidental mismatched joins between folders.
type VideoKey struct {
	SourceFolder  string `json:"sourceFolder"`
	SourceVideoID int64  `json:"sourceVideoId"`
}

// ClipKey is the composite natural key of a catalog clip.
type ClipKey struct {
	SourceFolder string `json:"sourceFolder"`
	SourceClipID int64  `json:"sourceClipId"`
}

// GlobalVideo is the denormalized catalog projection of a folder-store
// video. It exists only for non-orphaned, synchronized rows.
type GlobalVideo struct {
	Key      VideoKey    `json:"key"`
	FilePath string      `json:"filePath"`
	FileName string      `json:"fileName"`
	FileHash string      `json:"fileHash"`
	Status   IndexStatus `json:"indexStatus"`
	SRTPath  *string     `json:"srtPath,omitempty"`
}

// GlobalClip is the denormalized catalog projection of a folder-store
// clip.
type GlobalClip struct {
	Key           ClipKey `json:"key"`
	SourceVideoID int64   `json:"sourceVideoId"`
	StartTime     float64 `json:"startTime"`
	EndTime       float64 `json:"endTime"`
	Title         *string `json:"title,omitempty"`
	Summary       *string `json:"summary,omitempty"`
	Transcript    *string `json:"transcript,omitempty"`
	Tags          *string `json:"tags,omitempty"`
	ThumbnailPath *string `json:"thumbnailPath,omitempty"`
}

// SearchHit is one catalog full-text search result.
type SearchHit struct {
	Key           ClipKey `json:"key"`
	SourceVideoID int64   `json:"sourceVideoId"`
	FilePath      string  `json:"filePath"`
	StartTime     float64 `json:"startTime"`
	EndTime       float64 `json:"endTime"`
	Title         string  `json:"title,omitempty"`
	Snippet       string  `json:"snippet,omitempty"`
}

// CatalogStats summarizes the catalog for the operator API.
type CatalogStats struct {
	Folders      int       `json:"folders"`
	Videos       int       `json:"videos"`
	Clips        int       `json:"clips"`
	Vectors      int       `json:"vectors"`
	LastSyncedAt time.Time `json:"lastSyncedAt,omitempty"`
}

// StateKind discriminates VideoState variants.
type StateKind int

const (
	// StateActive covers every non-orphaned index status.
	StateActive StateKind = iota
	// StateOrphaned marks a video whose backing file is missing.
	StateOrphaned
)

// VideoState is the domain view of a video's lifecycle standing. The
// stored representation (index_status string plus nullable orphaned_at)
// is translated to and from this form at the store boundary only.
type VideoState struct {
	Kind          StateKind
	OrphanedSince time.Time // set when Kind == StateOrphaned
}

// State derives the lifecycle standing from the stored columns.
func (v *Video) State() VideoState {
	if v.Status == StatusOrphaned {
		st := VideoState{Kind: StateOrphaned}
		if v.OrphanedAt != nil {
			st.OrphanedSince = *v.OrphanedAt
		}
		return st
	}
	return VideoState{Kind: StateActive}
}
