//go:build sqlite_fts5 || fts5

package database

// This file is compiled when building with the sqlite_fts5 tag, which
// compiles the FTS5 extension into mattn/go-sqlite3. The catalog's
// search table is an FTS5 virtual table, so the daemon and the test
// suite both need it.
//
// Build command:
//
//	CGO_ENABLED=1 go build -tags sqlite_fts5 ./...
//	CGO_ENABLED=1 go test -tags sqlite_fts5 ./...

const fts5Enabled = true
