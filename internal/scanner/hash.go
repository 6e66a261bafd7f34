package scanner

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"footage-indexer/internal/filesystem"
)

// hashSampleBytes bounds how much leading content feeds the digest.
// Footage files run to hundreds of gigabytes; the file size plus the
// first few megabytes identifies a file across renames without reading
// it whole.
const hashSampleBytes = 4 << 20

// HashFile computes the content digest used for rename-safe identity:
// sha256 over the file size followed by up to hashSampleBytes of
// leading content.
func HashFile(path string, retry filesystem.RetryConfig) (string, error) {
	info, err := filesystem.StatWithRetry(path, retry)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s for hashing: %w", path, err)
	}

	f, err := filesystem.OpenWithRetry(path, retry)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], uint64(info.Size()))
	h.Write(size[:])

	if _, err := io.CopyN(h, f, hashSampleBytes); err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read %s for hashing: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
