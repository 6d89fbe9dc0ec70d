package frames

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spectravision/core/internal/decode"
	"github.com/spectravision/core/internal/logger"
)

// Extractor turns decode-gateway output into in-memory raster frames.
// Materialized image files are loaded and deleted immediately; only the
// raster survives.
type Extractor struct {
	logger  *logger.Logger
	gateway *decode.Gateway
}

// ExtractOptions selects frames for a batch extraction
type ExtractOptions struct {
	StartTime     float64 // seconds, 0 = file start
	EndTime       float64 // seconds, 0 = file end
	Interval      float64 // seconds between samples, 0 = one per frame
	MaxFrames     int     // 0 = unlimited
	KeyFramesOnly bool    // sample at scene changes instead of fixed rate
	Quality       int     // reserved for JPEG output, 0 = default
}

// NewExtractor creates a frame extractor backed by a decode gateway
func NewExtractor(gateway *decode.Gateway, log *logger.Logger) *Extractor {
	return &Extractor{
		logger:  log,
		gateway: gateway,
	}
}

// ExtractFrames extracts a batch of frames according to opts. The returned
// frames are ordered by timestamp and truncated to MaxFrames. Extraction
// failures propagate; this is the strict batch path.
func (e *Extractor) ExtractFrames(ctx context.Context, path string, meta *decode.Metadata, opts ExtractOptions) ([]*Frame, error) {
	if opts.KeyFramesOnly {
		return e.extractKeyFrames(ctx, path, meta, opts)
	}

	start := opts.StartTime
	end := opts.EndTime
	if end <= 0 || end > meta.Duration {
		end = meta.Duration
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 1 / meta.FrameRate
	}

	pattern := filepath.Join(e.gateway.ScratchDir(), fmt.Sprintf("seq_%d_%%05d.png", time.Now().UnixNano()))
	if err := e.gateway.ExtractFrames(ctx, path, pattern, decode.FrameRange{
		StartTime: start,
		EndTime:   end,
		Interval:  interval,
	}); err != nil {
		return nil, fmt.Errorf("batch extraction failed: %w", err)
	}

	produced, err := filepath.Glob(patternGlob(pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list produced frames: %w", err)
	}
	sort.Strings(produced)

	result := make([]*Frame, 0, len(produced))
	for i, file := range produced {
		if opts.MaxFrames > 0 && len(result) >= opts.MaxFrames {
			os.Remove(file)
			continue
		}

		timestamp := start + float64(i)*interval
		frame, err := e.loadFrame(file, timestamp, meta.FrameRate)
		if err != nil {
			// evict remaining temp files before propagating
			for _, rest := range produced[i:] {
				os.Remove(rest)
			}
			return nil, err
		}
		result = append(result, frame)
	}

	e.logger.Debug("Extracted frame batch",
		"path", path,
		"frames", len(result),
		"interval", interval,
	)

	return result, nil
}

// ExtractFrameAt extracts the single frame at the given timestamp
func (e *Extractor) ExtractFrameAt(ctx context.Context, path string, meta *decode.Metadata, timestamp float64) (*Frame, error) {
	file, err := e.gateway.ExtractFrame(ctx, path, timestamp)
	if err != nil {
		return nil, err
	}
	return e.loadFrame(file, timestamp, meta.FrameRate)
}

// ExtractThumbnails partitions the video duration into count equal
// intervals and extracts a scaled thumbnail per interval. A failed sample
// degrades to a blank raster of the requested dimensions instead of
// failing the batch; the result always has exactly count entries.
func (e *Extractor) ExtractThumbnails(ctx context.Context, path string, meta *decode.Metadata, count, width, height int) ([]*Frame, error) {
	if count <= 0 {
		return nil, fmt.Errorf("thumbnail count must be positive, got %d", count)
	}

	result := make([]*Frame, 0, count)
	interval := meta.Duration / float64(count)

	for i := 0; i < count; i++ {
		timestamp := (float64(i) + 0.5) * interval

		file, err := e.gateway.GenerateThumbnail(ctx, path, timestamp, width, height)
		if err != nil {
			e.logger.Warn("Thumbnail extraction failed, substituting blank frame",
				"path", path, "timestamp", timestamp, "error", err)
			result = append(result, NewFrame(IndexForTimestamp(timestamp, meta.FrameRate), timestamp, width, height))
			continue
		}

		frame, err := e.loadFrame(file, timestamp, meta.FrameRate)
		if err != nil {
			e.logger.Warn("Thumbnail failed to decode, substituting blank frame",
				"path", file, "error", err)
			result = append(result, NewFrame(IndexForTimestamp(timestamp, meta.FrameRate), timestamp, width, height))
			continue
		}
		result = append(result, frame)
	}

	return result, nil
}

// extractKeyFrames samples at scene-change timestamps
func (e *Extractor) extractKeyFrames(ctx context.Context, path string, meta *decode.Metadata, opts ExtractOptions) ([]*Frame, error) {
	changes, err := e.gateway.DetectSceneChanges(ctx, path, 0.3)
	if err != nil {
		return nil, fmt.Errorf("scene detection failed: %w", err)
	}

	end := opts.EndTime
	if end <= 0 {
		end = meta.Duration
	}

	result := make([]*Frame, 0, len(changes))
	for _, ts := range changes {
		if ts < opts.StartTime || ts > end {
			continue
		}
		if opts.MaxFrames > 0 && len(result) >= opts.MaxFrames {
			break
		}

		frame, err := e.ExtractFrameAt(ctx, path, meta, ts)
		if err != nil {
			return nil, err
		}
		frame.Keyframe = true
		result = append(result, frame)
	}

	return result, nil
}

// loadFrame loads a materialized image file into a raster frame and
// deletes the file.
func (e *Extractor) loadFrame(path string, timestamp, frameRate float64) (*Frame, error) {
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, &FrameLoadError{Path: path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &FrameLoadError{Path: path, Err: err}
	}

	return FromImage(img, IndexForTimestamp(timestamp, frameRate), timestamp), nil
}

// patternGlob converts a %05d-style output pattern into a glob
func patternGlob(pattern string) string {
	out := ""
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '%' {
			// consume the printf verb
			j := i + 1
			for j < len(pattern) && pattern[j] >= '0' && pattern[j] <= '9' {
				j++
			}
			if j < len(pattern) && pattern[j] == 'd' {
				out += "*"
				i = j
				continue
			}
		}
		out += string(pattern[i])
	}
	return out
}
