package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Round statuses recorded in check_rounds
const (
	RoundStatusStarted   = "STARTED"
	RoundStatusCompleted = "COMPLETED"
	RoundStatusCancelled = "CANCELLED"
)

// DB persists checker caches and the history of check rounds in SQLite.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// RoundEntry represents a record in the check_rounds table.
type RoundEntry struct {
	ID         int64
	Reason     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Resources  int
	Changed    int
}

// NewDB opens dataSourceName, creating its directory, and ensures the schema is set up.
func NewDB(dataSourceName string, logger zerolog.Logger) (*DB, error) {
	logger = logger.With().Str("component", "CacheStore").Logger()
	logger.Info().Str("db_path", dataSourceName).Msg("Initializing cache database connection")

	dbDir := filepath.Dir(dataSourceName)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache database directory %s: %w", dbDir, err)
	}

	dbInstance, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed for %s: %w", dataSourceName, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY between our own goroutines.
	dbInstance.SetMaxOpenConns(1)

	db := &DB{
		db:     dbInstance,
		logger: logger,
	}

	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logger.Info().Str("path", dataSourceName).Msg("Database initialized and schema verified")
	return db, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// InitSchema creates the tables if they don't already exist.
func (d *DB) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS last_checked (
		checker TEXT NOT NULL,
		cache_key TEXT NOT NULL,
		checked_at INTEGER NOT NULL,
		PRIMARY KEY (checker, cache_key)
	);
	CREATE TABLE IF NOT EXISTS check_rounds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reason TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		status TEXT NOT NULL,
		resources INTEGER NOT NULL DEFAULT 0,
		changed INTEGER NOT NULL DEFAULT 0
	);
	`
	if _, err := d.db.Exec(query); err != nil {
		d.logger.Error().Err(err).Msg("Failed to initialize schema")
		return err
	}
	d.logger.Debug().Msg("Schema initialized (last_checked, check_rounds)")
	return nil
}

// SaveCache replaces the stored entries of one checker with entries.
func (d *DB) SaveCache(ctx context.Context, checkerName string, entries map[string]time.Time) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cache save for %s: %w", checkerName, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM last_checked WHERE checker = ?`, checkerName); err != nil {
		return fmt.Errorf("failed to clear cache for %s: %w", checkerName, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO last_checked (checker, cache_key, checked_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare cache insert: %w", err)
	}
	defer stmt.Close()

	for key, checkedAt := range entries {
		if _, err := stmt.ExecContext(ctx, checkerName, key, checkedAt.UnixNano()); err != nil {
			return fmt.Errorf("failed to insert cache entry %s for %s: %w", key, checkerName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache for %s: %w", checkerName, err)
	}
	d.logger.Debug().Str("checker_name", checkerName).Int("entries", len(entries)).Msg("Cache saved")
	return nil
}

// LoadCache returns the stored entries of one checker.
func (d *DB) LoadCache(ctx context.Context, checkerName string) (map[string]time.Time, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT cache_key, checked_at FROM last_checked WHERE checker = ?`, checkerName)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache for %s: %w", checkerName, err)
	}
	defer rows.Close()

	entries := make(map[string]time.Time)
	for rows.Next() {
		var key string
		var nanos int64
		if err := rows.Scan(&key, &nanos); err != nil {
			return nil, fmt.Errorf("failed to scan cache row for %s: %w", checkerName, err)
		}
		entries[key] = time.Unix(0, nanos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache rows for %s: %w", checkerName, err)
	}
	return entries, nil
}

// RecordRoundStart inserts a STARTED round and returns its ID.
func (d *DB) RecordRoundStart(ctx context.Context, reason string, resources int, startTime time.Time) (int64, error) {
	query := `INSERT INTO check_rounds (reason, started_at, status, resources) VALUES (?, ?, ?, ?)`
	result, err := d.db.ExecContext(ctx, query, reason, startTime.UnixNano(), RoundStatusStarted, resources)
	if err != nil {
		return 0, fmt.Errorf("failed to insert round start record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// UpdateRoundCompletion records the end of a round.
func (d *DB) UpdateRoundCompletion(ctx context.Context, id int64, endTime time.Time, status string, changed int) error {
	query := `UPDATE check_rounds SET finished_at = ?, status = ?, changed = ? WHERE id = ?`
	res, err := d.db.ExecContext(ctx, query, endTime.UnixNano(), status, changed, id)
	if err != nil {
		return fmt.Errorf("failed to update round completion for ID %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("round %d not found", id)
	}
	return nil
}

// GetLastRound returns the most recent completed round, or sql.ErrNoRows.
func (d *DB) GetLastRound(ctx context.Context) (*RoundEntry, error) {
	query := `SELECT id, reason, started_at, finished_at, status, resources, changed
		FROM check_rounds WHERE status = ? ORDER BY started_at DESC, id DESC LIMIT 1`

	var entry RoundEntry
	var started int64
	var finished sql.NullInt64
	err := d.db.QueryRowContext(ctx, query, RoundStatusCompleted).Scan(
		&entry.ID, &entry.Reason, &started, &finished, &entry.Status, &entry.Resources, &entry.Changed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to query last round: %w", err)
	}

	entry.StartedAt = time.Unix(0, started)
	if finished.Valid {
		t := time.Unix(0, finished.Int64)
		entry.FinishedAt = &t
	}
	return &entry, nil
}
