package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"footage-indexer/internal/database"
	"footage-indexer/internal/filesystem"
	"footage-indexer/internal/orphan"
	"footage-indexer/internal/scanner"
	"footage-indexer/internal/startup"
)

const (
	// Default timeout for store operations
	defaultTimeout = 30 * time.Second
	// Default data directory path
	defaultDataDir = "/data"
	// Default orphan retention when purging
	defaultRetentionDays = 30
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	folderPath := os.Getenv("FOLDER")
	if folderPath == "" {
		fmt.Fprintln(os.Stderr, "Error: FOLDER is not set")
		printUsage()
		os.Exit(1)
	}
	folderPath = strings.TrimRight(folderPath, "/")

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	cfg := &startup.Config{FolderDataDir: filepath.Join(dataDir, "folders")}
	storePath := cfg.FolderStorePath(folderPath)

	store, err := database.OpenFolderStore(ctx, storePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open folder store: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATA_DIR and FOLDER are set correctly (store: %s)\n", storePath)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
		}
	}()

	ok := true
	switch command {
	case "status":
		ok = showStatus(ctx, store)
	case "list":
		ok = listOrphans(ctx, store)
	case "match":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: match requires a file path")
			os.Exit(1)
		}
		ok = matchFile(ctx, store, os.Args[2])
	case "purge":
		days := defaultRetentionDays
		if len(os.Args) >= 3 {
			days, err = strconv.Atoi(os.Args[2])
			if err != nil || days < 0 {
				fmt.Fprintf(os.Stderr, "Error: invalid retention days: %s\n", os.Args[2])
				os.Exit(1)
			}
		}
		ok = purgeExpired(ctx, store, days)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

// sanitizeCommand returns a safe representation of a command string for
// display. Any character outside [a-zA-Z0-9_-] becomes '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("Footage Indexer Orphan Management")
	fmt.Println("")
	fmt.Println("Usage: orphanctl <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  status        - Show watched folder state and orphan count")
	fmt.Println("  list          - List orphaned videos, newest first")
	fmt.Println("  match <file>  - Fingerprint a file and show matching orphans")
	fmt.Println("  purge [days]  - Delete orphans older than the retention window")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Println("  FOLDER   - Watched folder path (required)")
	fmt.Printf("  DATA_DIR - Path to data directory (default: %s)\n", defaultDataDir)
}

func showStatus(ctx context.Context, store *database.FolderStore) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	wf, err := store.WatchedFolder(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to read folder record: %v\n", err)
		return false
	}
	if wf == nil {
		fmt.Println("Status: store has no watched folder record yet")
		return true
	}

	orphans, err := store.AllOrphanedVideos(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to list orphans: %v\n", err)
		return false
	}

	fmt.Printf("Folder:    %s\n", wf.FolderPath)
	fmt.Printf("Available: %v\n", wf.IsAvailable)
	fmt.Printf("Files:     %d (%d indexed)\n", wf.FileCount, wf.IndexedCount)
	fmt.Printf("Orphans:   %d\n", len(orphans))
	return true
}

func listOrphans(ctx context.Context, store *database.FolderStore) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	orphans, err := store.AllOrphanedVideos(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to list orphans: %v\n", err)
		return false
	}
	if len(orphans) == 0 {
		fmt.Println("No orphaned videos.")
		return true
	}

	for _, v := range orphans {
		when := "unknown"
		if v.OrphanedAt != nil {
			when = v.OrphanedAt.Format(time.RFC3339)
		}
		fmt.Printf("%8d  %s  %s  %s\n", v.ID, when, shortHash(v.FileHash), v.FilePath)
	}
	return true
}

func matchFile(ctx context.Context, store *database.FolderStore, path string) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	hash, err := scanner.HashFile(path, filesystem.DefaultRetryConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to fingerprint %s: %v\n", path, err)
		return false
	}
	fmt.Printf("Fingerprint: %s\n", hash)

	orphans, err := store.OrphansByHash(ctx, hash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to query orphans: %v\n", err)
		return false
	}
	if len(orphans) == 0 {
		fmt.Println("No matching orphans; the file would be indexed as new.")
		return true
	}

	fmt.Printf("Matching orphans (%d), recovery would pick the first:\n", len(orphans))
	for _, v := range orphans {
		fmt.Printf("%8d  %s\n", v.ID, v.FilePath)
	}
	return true
}

func purgeExpired(ctx context.Context, store *database.FolderStore, days int) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	purged, err := orphan.CleanupExpired(ctx, days, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to purge orphans: %v\n", err)
		return false
	}
	fmt.Printf("Purged %d orphaned videos older than %d days.\n", purged, days)
	return true
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
