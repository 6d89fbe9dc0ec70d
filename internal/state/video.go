package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SaveVideo upserts a video's probed metadata, keyed by path
func (m *Manager) SaveVideo(ctx context.Context, video VideoState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	metadataJSON, err := json.Marshal(video.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO videos (id, path, duration, frame_rate, width, height, codec, metadata, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			duration = excluded.duration,
			frame_rate = excluded.frame_rate,
			width = excluded.width,
			height = excluded.height,
			codec = excluded.codec,
			metadata = excluded.metadata,
			loaded_at = excluded.loaded_at
	`

	_, err = m.db.GetDB().ExecContext(ctx, query,
		video.ID, video.Path, video.Duration, video.FrameRate,
		video.Width, video.Height, video.Codec, string(metadataJSON), video.LoadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save video: %w", err)
	}

	return nil
}

// GetVideoByPath retrieves a video by its file path
func (m *Manager) GetVideoByPath(ctx context.Context, path string) (*VideoState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	query := `
		SELECT id, path, duration, frame_rate, width, height, codec, metadata, loaded_at
		FROM videos
		WHERE path = ?
	`

	var video VideoState
	var codec, metadataJSON sql.NullString
	var loadedAt sql.NullTime
	err := m.db.GetDB().QueryRowContext(ctx, query, path).Scan(
		&video.ID, &video.Path, &video.Duration, &video.FrameRate,
		&video.Width, &video.Height, &codec, &metadataJSON, &loadedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	video.Codec = codec.String
	if loadedAt.Valid {
		video.LoadedAt = loadedAt.Time
	}
	video.Metadata = parseMetadata(metadataJSON)

	return &video, nil
}

// ListVideos retrieves all persisted videos, most recently loaded first
func (m *Manager) ListVideos(ctx context.Context) ([]VideoState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	query := `
		SELECT id, path, duration, frame_rate, width, height, codec, metadata, loaded_at
		FROM videos
		ORDER BY loaded_at DESC
	`

	rows, err := m.db.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []VideoState
	for rows.Next() {
		var video VideoState
		var codec, metadataJSON sql.NullString
		var loadedAt sql.NullTime
		if err := rows.Scan(
			&video.ID, &video.Path, &video.Duration, &video.FrameRate,
			&video.Width, &video.Height, &codec, &metadataJSON, &loadedAt,
		); err != nil {
			return nil, err
		}
		video.Codec = codec.String
		if loadedAt.Valid {
			video.LoadedAt = loadedAt.Time
		}
		video.Metadata = parseMetadata(metadataJSON)
		videos = append(videos, video)
	}

	return videos, rows.Err()
}

// DeleteVideo removes a video and, via cascade, its markers and runs
func (m *Manager) DeleteVideo(ctx context.Context, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.db.GetDB().ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, videoID)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	return nil
}

func parseMetadata(metadataJSON sql.NullString) map[string]interface{} {
	if metadataJSON.Valid && metadataJSON.String != "" {
		var metadata map[string]interface{}
		if err := json.Unmarshal([]byte(metadataJSON.String), &metadata); err == nil {
			return metadata
		}
	}
	return make(map[string]interface{})
}
