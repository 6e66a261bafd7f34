package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileType classifies a file found during a folder scan.
type FileType string

const (
	// FileTypeVideo is an indexable footage file.
	FileTypeVideo FileType = "video"
	// FileTypeSubtitle is a sidecar subtitle file.
	FileTypeSubtitle FileType = "subtitle"
	// FileTypeOther is anything the indexer ignores.
	FileTypeOther FileType = "other"
)

// VideoExtensions maps file extensions to whether they are indexable
// footage formats. Camera-native raw containers are included alongside
// the common delivery formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".avi":  true,
	".mxf":  true,
	".m4v":  true,
	".mpg":  true,
	".mpeg": true,
	".mts":  true,
	".webm": true,
	".braw": true,
	".r3d":  true,
}

// SubtitleExtensions maps file extensions to whether they are sidecar
// subtitle formats.
var SubtitleExtensions = map[string]bool{
	".srt": true,
	".vtt": true,
}

// MimeTypes maps video extensions to their MIME types.
var MimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mxf":  "application/mxf",
	".m4v":  "video/x-m4v",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
	".mts":  "video/mp2t",
	".webm": "video/webm",
}

// GetFileType returns the FileType for a given file extension. The
// extension should be lowercase and include the leading dot.
func GetFileType(ext string) FileType {
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	if SubtitleExtensions[ext] {
		return FileTypeSubtitle
	}
	return FileTypeOther
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsVideoPath reports whether path names an indexable footage file,
// matching the extension case-insensitively and skipping hidden files.
func IsVideoPath(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return VideoExtensions[strings.ToLower(filepath.Ext(base))]
}
