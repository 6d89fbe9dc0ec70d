package state

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Database manages the SQLite database for analysis persistence
type Database struct {
	db     *sql.DB
	dbPath string
}

// NewDatabase creates a new database connection
func NewDatabase(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support concurrent writes well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	database := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := database.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// GetDB returns the underlying database connection
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// initSchema initializes the database schema
func (d *Database) initSchema() error {
	schema := `
	-- Loaded videos and their probed metadata
	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		duration REAL NOT NULL,
		frame_rate REAL NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		codec TEXT,
		metadata TEXT, -- JSON for the full probe result
		loaded_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Timeline markers per video
	CREATE TABLE IF NOT EXISTS markers (
		id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL,
		timestamp REAL NOT NULL,
		marker_type TEXT NOT NULL, -- 'anomaly', 'motion', 'manual', 'audio'
		label TEXT NOT NULL,
		description TEXT,
		confidence REAL,
		color TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (video_id) REFERENCES videos(id) ON DELETE CASCADE
	);

	-- Completed whole-video analysis runs
	CREATE TABLE IF NOT EXISTS analysis_runs (
		id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		frames_analyzed INTEGER DEFAULT 0,
		motion_frames INTEGER DEFAULT 0,
		anomaly_frames INTEGER DEFAULT 0,
		peak_motion REAL DEFAULT 0,
		average_motion REAL DEFAULT 0,
		anomaly_counts TEXT, -- JSON, count per anomaly type
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (video_id) REFERENCES videos(id) ON DELETE CASCADE
	);

	-- Indexes for performance
	CREATE INDEX IF NOT EXISTS idx_markers_video_timestamp ON markers(video_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_analysis_runs_video ON analysis_runs(video_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_videos_path ON videos(path);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// ensureDir ensures a directory exists
func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
