package state

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spectravision/core/internal/config"
	"github.com/spectravision/core/internal/logger"
)

// Manager persists loaded videos, timeline markers, and analysis runs
type Manager struct {
	db     *Database
	logger *logger.Logger
	mu     sync.RWMutex
}

// NewManager creates a new state manager
func NewManager(cfg *config.Config, log *logger.Logger) (*Manager, error) {
	dbPath := cfg.Analyzer.State.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(cfg.Analyzer.DataDir, "db", "spectravision.db")
	}

	if err := ensureDir(filepath.Dir(dbPath)); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return &Manager{
		db:     db,
		logger: log,
	}, nil
}

// Close closes the state manager and database
func (m *Manager) Close() error {
	return m.db.Close()
}

// GetDB returns the database connection
func (m *Manager) GetDB() *sql.DB {
	return m.db.GetDB()
}

// VideoState is a loaded video's persisted state
type VideoState struct {
	ID        string
	Path      string
	Duration  float64
	FrameRate float64
	Width     int
	Height    int
	Codec     string
	Metadata  map[string]interface{}
	LoadedAt  time.Time
}

// MarkerState is a timeline marker's persisted state
type MarkerState struct {
	ID          string
	VideoID     string
	Timestamp   float64
	MarkerType  string
	Label       string
	Description string
	Confidence  float64
	Color       string
}

// AnalysisRunState is one completed whole-video analysis run
type AnalysisRunState struct {
	ID             string
	VideoID        string
	StartedAt      time.Time
	CompletedAt    *time.Time
	FramesAnalyzed int
	MotionFrames   int
	AnomalyFrames  int
	PeakMotion     float64
	AverageMotion  float64
	AnomalyCounts  map[string]int
}

// RecoveredState represents the state recovered on startup
type RecoveredState struct {
	Videos  []VideoState
	Markers []MarkerState
}

// RecoverState loads persisted videos and their markers on startup
func (m *Manager) RecoverState(ctx context.Context) (*RecoveredState, error) {
	m.logger.Info("Recovering persisted analysis state")

	recovered := &RecoveredState{
		Videos:  make([]VideoState, 0),
		Markers: make([]MarkerState, 0),
	}

	videos, err := m.ListVideos(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover videos: %w", err)
	}
	recovered.Videos = videos

	for _, v := range videos {
		markers, err := m.ListMarkers(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to recover markers for %s: %w", v.ID, err)
		}
		recovered.Markers = append(recovered.Markers, markers...)
	}

	m.logger.Info("State recovery complete",
		"videos", len(recovered.Videos),
		"markers", len(recovered.Markers),
	)

	return recovered, nil
}
