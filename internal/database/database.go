package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"footage-indexer/internal/logging"
	"footage-indexer/internal/metrics"
)

// Default timeout for single database operations
const defaultTimeout = 5 * time.Second

// db wraps a sqlite connection with the batching and metrics plumbing
// shared by the folder and catalog stores. All mutating operations go
// through a store's serialized write path (the write mutex); readers
// proceed concurrently under WAL.
type db struct {
	sql     *sql.DB
	path    string
	mu      sync.Mutex // serializes the write path
	txMu    sync.Mutex
	txStart time.Time
}

func openSQLite(ctx context.Context, dbPath string) (*db, error) {
	// WAL for concurrent readers; busy_timeout smooths over writer
	// contention between the scanner and the synchronizer.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_foreign_keys=on", dbPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	return &db{sql: conn, path: dbPath}, nil
}

func (d *db) close() error {
	return d.sql.Close()
}

// beginBatch starts a transaction for batch operations. The caller is
// responsible for calling endBatch when done.
func (d *db) beginBatch() (*sql.Tx, error) {
	d.mu.Lock()
	txStart := time.Now()

	// Background context: transaction lifetime is managed by endBatch,
	// a deferred cancel here would kill the transaction on return.
	tx, err := d.sql.BeginTx(context.Background(), nil)
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}

	d.txMu.Lock()
	d.txStart = txStart
	d.txMu.Unlock()

	return tx, nil
}

// endBatch commits the transaction, or rolls it back when err is
// non-nil.
func (d *db) endBatch(tx *sql.Tx, err error) error {
	d.txMu.Lock()
	duration := time.Since(d.txStart).Seconds()
	d.txMu.Unlock()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// recordQuery records database query metrics.
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// nullString maps a nullable TEXT column to *string.
func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// nullTime maps a nullable unix-seconds column to *time.Time.
func nullTime(ni sql.NullInt64) *time.Time {
	if !ni.Valid {
		return nil
	}
	t := time.Unix(ni.Int64, 0).UTC()
	return &t
}
