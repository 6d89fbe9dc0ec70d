package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SaveAnalysisRun persists one completed whole-video analysis run
func (m *Manager) SaveAnalysisRun(ctx context.Context, run AnalysisRunState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	countsJSON, err := json.Marshal(run.AnomalyCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal anomaly counts: %w", err)
	}

	query := `
		INSERT INTO analysis_runs
			(id, video_id, started_at, completed_at, frames_analyzed, motion_frames,
			 anomaly_frames, peak_motion, average_motion, anomaly_counts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = m.db.GetDB().ExecContext(ctx, query,
		run.ID, run.VideoID, run.StartedAt, run.CompletedAt,
		run.FramesAnalyzed, run.MotionFrames, run.AnomalyFrames,
		run.PeakMotion, run.AverageMotion, string(countsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis run: %w", err)
	}

	return nil
}

// GetLatestAnalysisRun retrieves the most recent run for a video
func (m *Manager) GetLatestAnalysisRun(ctx context.Context, videoID string) (*AnalysisRunState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	query := `
		SELECT id, video_id, started_at, completed_at, frames_analyzed, motion_frames,
		       anomaly_frames, peak_motion, average_motion, anomaly_counts
		FROM analysis_runs
		WHERE video_id = ?
		ORDER BY started_at DESC
		LIMIT 1
	`

	var run AnalysisRunState
	var completedAt sql.NullTime
	var countsJSON sql.NullString
	err := m.db.GetDB().QueryRowContext(ctx, query, videoID).Scan(
		&run.ID, &run.VideoID, &run.StartedAt, &completedAt,
		&run.FramesAnalyzed, &run.MotionFrames, &run.AnomalyFrames,
		&run.PeakMotion, &run.AverageMotion, &countsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis run: %w", err)
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.AnomalyCounts = make(map[string]int)
	if countsJSON.Valid && countsJSON.String != "" {
		if err := json.Unmarshal([]byte(countsJSON.String), &run.AnomalyCounts); err != nil {
			run.AnomalyCounts = make(map[string]int)
		}
	}

	return &run, nil
}

// ListAnalysisRuns retrieves all runs for a video, newest first
func (m *Manager) ListAnalysisRuns(ctx context.Context, videoID string, limit int) ([]AnalysisRunState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, video_id, started_at, completed_at, frames_analyzed, motion_frames,
		       anomaly_frames, peak_motion, average_motion, anomaly_counts
		FROM analysis_runs
		WHERE video_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := m.db.GetDB().QueryContext(ctx, query, videoID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []AnalysisRunState
	for rows.Next() {
		var run AnalysisRunState
		var completedAt sql.NullTime
		var countsJSON sql.NullString
		if err := rows.Scan(
			&run.ID, &run.VideoID, &run.StartedAt, &completedAt,
			&run.FramesAnalyzed, &run.MotionFrames, &run.AnomalyFrames,
			&run.PeakMotion, &run.AverageMotion, &countsJSON,
		); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		run.AnomalyCounts = make(map[string]int)
		if countsJSON.Valid && countsJSON.String != "" {
			if err := json.Unmarshal([]byte(countsJSON.String), &run.AnomalyCounts); err != nil {
				run.AnomalyCounts = make(map[string]int)
			}
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
