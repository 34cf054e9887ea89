package dlq

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// FILTER-clause stats queries in GetStats rely on SQLite 3.30+ (bundled
// by mattn/go-sqlite3) and Postgres 9.4+. The two schemas below have the
// same columns; they differ in dialect-specific primary-key, timestamp,
// binary and default syntax.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id TEXT NOT NULL,
	operation TEXT NOT NULL,
	error_message TEXT NOT NULL,
	error_stack TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_retry_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	metadata BLOB,
	UNIQUE(entity_id, operation)
)`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id BIGSERIAL PRIMARY KEY,
	entity_id TEXT NOT NULL,
	operation TEXT NOT NULL,
	error_message TEXT NOT NULL,
	error_stack TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_retry_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	metadata BYTEA,
	UNIQUE(entity_id, operation)
)`

// OpenPostgres connects to Postgres via pgx's database/sql adapter and
// ensures the DLQ table exists. Grounded on the teacher's
// storage.NewPostgresStore connection-pool tuning.
func OpenPostgres(dsn string, logger *logrus.Logger) (*sql.DB, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init dlq schema: %w", err)
	}

	logger.WithField("backend", "postgres").Info("dlq store connected")
	return db.DB, nil
}

// OpenSQLite connects to a local SQLite file, creating its parent
// directory and enabling WAL mode for concurrent readers. Grounded on the
// teacher's storage.NewSQLiteStore, used for single-process deployments
// and tests where standing up Postgres is unnecessary.
func OpenSQLite(path string, logger *logrus.Logger) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create dlq database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init dlq schema: %w", err)
	}

	logger.WithField("backend", "sqlite").WithField("path", path).Info("dlq store connected")
	return db.DB, nil
}
