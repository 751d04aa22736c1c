package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// createTables creates the necessary tables
func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			xp INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 0,
			season INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (guild_id, user_id, season)
		)`,
		`CREATE TABLE IF NOT EXISTS user_archive (
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			xp INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 0,
			season INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (guild_id, user_id, season)
		)`,
		`CREATE TABLE IF NOT EXISTS voice_activity (
			user_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, guild_id)
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}
