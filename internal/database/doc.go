// Package database provides the two SQLite stores of the footage
// indexer:
//
//   - FolderStore: one per watched folder, the authoritative record of
//     that folder's videos, clips, and embeddings.
//   - CatalogStore: the shared, denormalized search projection spanning
//     all folders, including full-text indexing and per-folder sync
//     cursors.
//
// Both stores use WAL mode, serialize their write paths, and expose
// BeginBatch/EndBatch transaction pairing for multi-row operations.
// Absent rows are reported as nil results rather than errors.
package database
