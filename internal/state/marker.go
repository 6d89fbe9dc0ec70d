package state

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveMarker upserts one timeline marker
func (m *Manager) SaveMarker(ctx context.Context, marker MarkerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	query := `
		INSERT INTO markers (id, video_id, timestamp, marker_type, label, description, confidence, color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp = excluded.timestamp,
			marker_type = excluded.marker_type,
			label = excluded.label,
			description = excluded.description,
			confidence = excluded.confidence,
			color = excluded.color
	`

	_, err := m.db.GetDB().ExecContext(ctx, query,
		marker.ID, marker.VideoID, marker.Timestamp, marker.MarkerType,
		marker.Label, marker.Description, marker.Confidence, marker.Color,
	)
	if err != nil {
		return fmt.Errorf("failed to save marker: %w", err)
	}

	return nil
}

// SaveMarkers replaces a video's markers inside one transaction
func (m *Manager) SaveMarkers(ctx context.Context, videoID string, markers []MarkerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM markers WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("failed to clear markers: %w", err)
	}

	insert := `
		INSERT INTO markers (id, video_id, timestamp, marker_type, label, description, confidence, color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, marker := range markers {
		if _, err := tx.ExecContext(ctx, insert,
			marker.ID, videoID, marker.Timestamp, marker.MarkerType,
			marker.Label, marker.Description, marker.Confidence, marker.Color,
		); err != nil {
			return fmt.Errorf("failed to insert marker %s: %w", marker.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteMarker removes one marker
func (m *Manager) DeleteMarker(ctx context.Context, markerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.db.GetDB().ExecContext(ctx, `DELETE FROM markers WHERE id = ?`, markerID)
	if err != nil {
		return fmt.Errorf("failed to delete marker: %w", err)
	}
	return nil
}

// ListMarkers retrieves a video's markers ordered by timestamp
func (m *Manager) ListMarkers(ctx context.Context, videoID string) ([]MarkerState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	query := `
		SELECT id, video_id, timestamp, marker_type, label, description, confidence, color
		FROM markers
		WHERE video_id = ?
		ORDER BY timestamp ASC
	`

	rows, err := m.db.GetDB().QueryContext(ctx, query, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list markers: %w", err)
	}
	defer rows.Close()

	var markers []MarkerState
	for rows.Next() {
		var marker MarkerState
		var description, color sql.NullString
		var confidence sql.NullFloat64
		if err := rows.Scan(
			&marker.ID, &marker.VideoID, &marker.Timestamp, &marker.MarkerType,
			&marker.Label, &description, &confidence, &color,
		); err != nil {
			return nil, err
		}
		marker.Description = description.String
		marker.Confidence = confidence.Float64
		marker.Color = color.String
		markers = append(markers, marker)
	}

	return markers, rows.Err()
}
