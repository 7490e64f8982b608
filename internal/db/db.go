package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DB is the job history store. Postgres DSNs use lib/pq; anything else is
// treated as a SQLite path.
type DB struct {
	*sql.DB
	driver string
}

// New opens and migrates the database behind dsn.
func New(dsn string) (*DB, error) {
	driver, source := parseDSN(dsn)

	conn, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// A single connection keeps :memory: databases coherent and avoids SQLITE_BUSY.
		conn.SetMaxOpenConns(1)
	}

	db := &DB{DB: conn, driver: driver}
	if err := db.PingContext(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Driver returns "postgres" or "sqlite".
func (db *DB) Driver() string {
	return db.driver
}

func parseDSN(dsn string) (driver, source string) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite://")
	default:
		return "sqlite", dsn
	}
}

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS render_jobs (
		id UUID PRIMARY KEY,
		status TEXT NOT NULL,
		audio_count INTEGER NOT NULL,
		vibe TEXT NOT NULL,
		subtitle TEXT NOT NULL,
		video_url TEXT,
		thumbnail_url TEXT,
		video_bytes BIGINT,
		thumbnail_bytes BIGINT,
		error_label TEXT,
		error_details TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_render_jobs_created_at ON render_jobs(created_at);
`

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS render_jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		audio_count INTEGER NOT NULL,
		vibe TEXT NOT NULL,
		subtitle TEXT NOT NULL,
		video_url TEXT,
		thumbnail_url TEXT,
		video_bytes INTEGER,
		thumbnail_bytes INTEGER,
		error_label TEXT,
		error_details TEXT,
		created_at DATETIME NOT NULL,
		finished_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_render_jobs_created_at ON render_jobs(created_at);
`

func (db *DB) migrate(ctx context.Context) error {
	schema := sqliteSchema
	if db.driver == "postgres" {
		schema = postgresSchema
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

var placeholder = regexp.MustCompile(`\$\d+`)

// rebind rewrites $N placeholders for drivers that only take "?". Queries in
// this package use each placeholder once, in ascending order.
func (db *DB) rebind(query string) string {
	if db.driver == "postgres" {
		return query
	}
	return placeholder.ReplaceAllString(query, "?")
}
