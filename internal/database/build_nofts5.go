//go:build !sqlite_fts5 && !fts5

package database

// Compiled without the sqlite_fts5 tag the driver has no fts5 module
// and the catalog schema cannot be created. OpenCatalogStore surfaces
// that as a configuration error instead of a bare "no such module".

const fts5Enabled = false
