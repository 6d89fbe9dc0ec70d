package analyzer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/spectravision/core/internal/anomaly"
	"github.com/spectravision/core/internal/config"
	"github.com/spectravision/core/internal/decode"
	"github.com/spectravision/core/internal/enhance"
	"github.com/spectravision/core/internal/frames"
	"github.com/spectravision/core/internal/logger"
	"github.com/spectravision/core/internal/motion"
	"github.com/spectravision/core/internal/service"
	"github.com/spectravision/core/internal/state"
)

// Prober resolves a video file into its metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*decode.Metadata, error)
}

// FrameSource materializes raster frames from a video file.
type FrameSource interface {
	ExtractFrames(ctx context.Context, path string, meta *decode.Metadata, opts frames.ExtractOptions) ([]*frames.Frame, error)
	ExtractFrameAt(ctx context.Context, path string, meta *decode.Metadata, timestamp float64) (*frames.Frame, error)
	ExtractThumbnails(ctx context.Context, path string, meta *decode.Metadata, count, width, height int) ([]*frames.Frame, error)
}

// Exporter re-encodes a video with enhancement options baked in.
type Exporter interface {
	ConvertFormat(ctx context.Context, inputPath, outputPath string, opts decode.ExportOptions, totalDuration float64, progress func(float64)) error
}

// ExportSettings selects the output container and encoder for an export.
type ExportSettings struct {
	Format     string `json:"format"`
	VideoCodec string `json:"video_codec"`
	Quality    int    `json:"quality"`
}

// Analyzer owns playback state, the bounded frame and thumbnail caches,
// the timeline markers, and the whole-video analysis job. It is the
// single writer of all of them.
type Analyzer struct {
	*service.ServiceBase

	cfg      config.AnalyzerConfig
	prober   Prober
	source   FrameSource
	exporter Exporter

	motionDet  *motion.Detector
	anomalyDet *anomaly.Detector
	stateMgr   *state.Manager // optional persistence

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	loadState    string
	videoPath    string
	videoID      string
	meta         *decode.Metadata
	playback     PlaybackState
	enhancements enhance.Enhancements
	markers      []TimelineMarker
	cache        *frameCache
	thumbs       *frameCache

	// request version stamps; a completed request only commits if it is
	// still the newest of its kind (last writer wins)
	renderSeq   uint64
	analysisSeq uint64

	analysisCancel context.CancelFunc
	playbackCancel context.CancelFunc
}

// NewAnalyzer creates the orchestrator. stateMgr may be nil to disable
// persistence.
func NewAnalyzer(
	cfg config.AnalyzerConfig,
	prober Prober,
	source FrameSource,
	exporter Exporter,
	motionDet *motion.Detector,
	anomalyDet *anomaly.Detector,
	stateMgr *state.Manager,
	log *logger.Logger,
) *Analyzer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Analyzer{
		ServiceBase:  service.NewServiceBase("analyzer", log),
		cfg:          cfg,
		prober:       prober,
		source:       source,
		exporter:     exporter,
		motionDet:    motionDet,
		anomalyDet:   anomalyDet,
		stateMgr:     stateMgr,
		ctx:          ctx,
		cancel:       cancel,
		loadState:    StateUnloaded,
		enhancements: enhance.Neutral(),
		cache:        newFrameCache(cfg.Cache.MaxFrames),
		thumbs:       newFrameCache(cfg.Cache.MaxThumbnails),
	}
}

// Start satisfies the service contract; the analyzer has no background
// work until a video is loaded.
func (a *Analyzer) Start(ctx context.Context) error {
	a.LogInfo("Analyzer service started")
	return nil
}

// Stop disposes any loaded video and halts background work.
func (a *Analyzer) Stop(ctx context.Context) error {
	a.Dispose()
	a.cancel()
	a.LogInfo("Analyzer service stopped")
	return nil
}

// GetState returns the load state: unloaded, loading, or ready.
func (a *Analyzer) GetState() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadState
}

// GetMetadata returns the loaded video's metadata, nil when unloaded.
func (a *Analyzer) GetMetadata() *decode.Metadata {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.meta
}

// GetPlaybackState returns a copy of the playback descriptor.
func (a *Analyzer) GetPlaybackState() PlaybackState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playback
}

// GetEnhancements returns a copy of the active enhancement parameters.
func (a *Analyzer) GetEnhancements() enhance.Enhancements {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enhancements
}

// LoadVideo probes a video, fills the thumbnail cache, and initializes
// the detectors. Failure at any step leaves the prior state intact.
func (a *Analyzer) LoadVideo(ctx context.Context, path string) error {
	a.mu.Lock()
	prior := a.loadState
	a.loadState = StateLoading
	a.mu.Unlock()

	restore := func() {
		a.mu.Lock()
		a.loadState = prior
		a.mu.Unlock()
	}

	meta, err := a.prober.Probe(ctx, path)
	if err != nil {
		restore()
		return &LoadError{Path: path, Err: err}
	}

	thumbCount := a.cfg.Analyze.ThumbnailCount
	thumbnails, err := a.source.ExtractThumbnails(ctx, path, meta, thumbCount, 160, 90)
	if err != nil {
		restore()
		return &LoadError{Path: path, Err: err}
	}

	a.mu.Lock()
	a.stopPlaybackLocked()
	a.videoPath = path
	a.videoID = uuid.New().String()
	a.meta = meta
	a.playback = PlaybackState{Rate: 1, Volume: 1}
	a.markers = a.markers[:0]
	a.cache.Clear()
	a.thumbs.Clear()
	for _, t := range thumbnails {
		a.thumbs.Put(t.Index, t)
	}
	a.motionDet.Initialize(meta.Width, meta.Height)
	a.anomalyDet.Reset()
	a.loadState = StateReady
	videoID := a.videoID
	a.mu.Unlock()

	a.persistVideo(ctx, videoID, path, meta)

	a.LogInfo("Video loaded",
		"path", path,
		"duration", meta.Duration,
		"frame_rate", meta.FrameRate,
	)
	a.PublishEvent(service.EventTypeVideoLoaded, map[string]interface{}{
		"path":       path,
		"duration":   meta.Duration,
		"frame_rate": meta.FrameRate,
		"width":      meta.Width,
		"height":     meta.Height,
	})
	return nil
}

func (a *Analyzer) persistVideo(ctx context.Context, videoID, path string, meta *decode.Metadata) {
	if a.stateMgr == nil {
		return
	}
	err := a.stateMgr.SaveVideo(ctx, state.VideoState{
		ID:        videoID,
		Path:      path,
		Duration:  meta.Duration,
		FrameRate: meta.FrameRate,
		Width:     meta.Width,
		Height:    meta.Height,
		Codec:     meta.Codec,
		Metadata:  map[string]interface{}{"format": meta.Format, "bit_rate": meta.BitRate},
		LoadedAt:  time.Now(),
	})
	if err != nil {
		a.LogWarn("Failed to persist video", "path", path, "error", err)
	}
}

// Play starts the playback clock. Frames are rendered on demand via
// GetCurrentFrame; the clock publishes time updates until the end of
// the video, a pause, or a loop wrap.
func (a *Analyzer) Play() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loadState != StateReady {
		return fmt.Errorf("no video loaded")
	}
	if a.playback.Playing {
		return nil
	}
	a.playback.Playing = true

	ctx, cancel := context.WithCancel(a.ctx)
	a.playbackCancel = cancel
	go a.playbackClock(ctx)
	return nil
}

// Pause stops the playback clock.
func (a *Analyzer) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopPlaybackLocked()
}

func (a *Analyzer) stopPlaybackLocked() {
	if a.playbackCancel != nil {
		a.playbackCancel()
		a.playbackCancel = nil
	}
	a.playback.Playing = false
}

// playbackClock advances the current time at the playback rate and
// publishes time updates. It must be cancellable at any tick.
func (a *Analyzer) playbackClock(ctx context.Context) {
	const tick = 33 * time.Millisecond
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last).Seconds()
			last = now

			a.mu.Lock()
			if !a.playback.Playing || a.meta == nil {
				a.mu.Unlock()
				return
			}

			step := elapsed * a.playback.Rate
			if a.playback.ReversePlaying {
				step = -step
			}
			t := a.playback.CurrentTime + step
			duration := a.meta.Duration
			ended := false

			if a.playback.Loop {
				start, end := a.playback.LoopStart, a.playback.LoopEnd
				if end <= start {
					start, end = 0, duration
				}
				if t >= end {
					t = start
				} else if t < start {
					t = end
				}
			} else if t >= duration {
				t = duration
				ended = true
				a.stopPlaybackLocked()
			} else if t < 0 {
				t = 0
				ended = true
				a.stopPlaybackLocked()
			}

			a.playback.CurrentTime = t
			a.mu.Unlock()

			a.PublishEvent(service.EventTypeTimeUpdate, map[string]interface{}{"timestamp": t})
			if ended {
				a.PublishEvent(service.EventTypePlaybackEnded, nil)
				return
			}
		}
	}
}

// Seek moves the current time, clamped to [0, duration], and renders
// the frame there with the active enhancements. Overlapping seeks are
// version-stamped; only the newest commits its frame.
func (a *Analyzer) Seek(ctx context.Context, timestamp float64) error {
	a.mu.Lock()
	if a.loadState != StateReady {
		a.mu.Unlock()
		return fmt.Errorf("no video loaded")
	}
	if timestamp < 0 {
		timestamp = 0
	} else if timestamp > a.meta.Duration {
		timestamp = a.meta.Duration
	}
	a.playback.CurrentTime = timestamp
	a.playback.Seeking = true
	seq := atomic.AddUint64(&a.renderSeq, 1)
	path, meta, enh := a.videoPath, a.meta, a.enhancements
	a.mu.Unlock()

	a.PublishEvent(service.EventTypeSeek, map[string]interface{}{"timestamp": timestamp})

	frame, err := a.renderFrame(ctx, path, meta, timestamp, enh)

	a.mu.Lock()
	if atomic.LoadUint64(&a.renderSeq) != seq {
		// A newer seek superseded this one; its result is inert
		a.mu.Unlock()
		return nil
	}
	a.playback.Seeking = false
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.cache.Put(frame.Index, frame)
	a.mu.Unlock()

	a.PublishEvent(service.EventTypeFrameRendered, map[string]interface{}{
		"index":     frame.Index,
		"timestamp": frame.Timestamp,
	})
	return nil
}

// SeekToFrame seeks to a frame index at the video frame rate.
func (a *Analyzer) SeekToFrame(ctx context.Context, index int) error {
	a.mu.Lock()
	if a.loadState != StateReady {
		a.mu.Unlock()
		return fmt.Errorf("no video loaded")
	}
	fps := a.meta.FrameRate
	a.mu.Unlock()

	if fps <= 0 {
		return fmt.Errorf("invalid frame rate")
	}
	return a.Seek(ctx, float64(index)/fps)
}

// StepForward advances one frame at the current frame rate.
func (a *Analyzer) StepForward(ctx context.Context) error {
	return a.step(ctx, 1)
}

// StepBackward rewinds one frame at the current frame rate.
func (a *Analyzer) StepBackward(ctx context.Context) error {
	return a.step(ctx, -1)
}

func (a *Analyzer) step(ctx context.Context, direction int) error {
	a.mu.Lock()
	if a.loadState != StateReady {
		a.mu.Unlock()
		return fmt.Errorf("no video loaded")
	}
	fps := a.meta.FrameRate
	current := a.playback.CurrentTime
	a.mu.Unlock()

	if fps <= 0 {
		return fmt.Errorf("invalid frame rate")
	}
	return a.Seek(ctx, current+float64(direction)/fps)
}

// SetPlaybackRate clamps the rate to [0.25, 4].
func (a *Analyzer) SetPlaybackRate(rate float64) float64 {
	if rate < 0.25 {
		rate = 0.25
	} else if rate > 4 {
		rate = 4
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playback.Rate = rate
	return rate
}

// SetLoop enables or disables loop playback over [start, end].
func (a *Analyzer) SetLoop(enabled bool, start, end float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playback.Loop = enabled
	a.playback.LoopStart = start
	a.playback.LoopEnd = end
}

// SetVolume clamps to [0,1].
func (a *Analyzer) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playback.Volume = volume
}

// SetMuted toggles the muted flag.
func (a *Analyzer) SetMuted(muted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playback.Muted = muted
}

// GetCurrentFrame resolves the frame at the current time: from cache
// when present, rendered fresh (and cached) otherwise.
func (a *Analyzer) GetCurrentFrame(ctx context.Context) (*frames.Frame, error) {
	a.mu.Lock()
	if a.loadState != StateReady {
		a.mu.Unlock()
		return nil, fmt.Errorf("no video loaded")
	}
	timestamp := a.playback.CurrentTime
	index := frames.IndexForTimestamp(timestamp, a.meta.FrameRate)
	if cached, ok := a.cache.Get(index); ok {
		a.mu.Unlock()
		return cached, nil
	}
	path, meta, enh := a.videoPath, a.meta, a.enhancements
	a.mu.Unlock()

	frame, err := a.renderFrame(ctx, path, meta, timestamp, enh)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.cache.Put(frame.Index, frame)
	a.mu.Unlock()

	a.PublishEvent(service.EventTypeFrameRendered, map[string]interface{}{
		"index":     frame.Index,
		"timestamp": frame.Timestamp,
	})
	return frame, nil
}

// renderFrame extracts a raw frame and applies the enhancement pipeline.
func (a *Analyzer) renderFrame(ctx context.Context, path string, meta *decode.Metadata, timestamp float64, enh enhance.Enhancements) (*frames.Frame, error) {
	raw, err := a.source.ExtractFrameAt(ctx, path, meta, timestamp)
	if err != nil {
		return nil, err
	}
	if enh.IsNeutral() {
		return raw, nil
	}
	enhanced := enhance.Enhance(raw, enh)
	return enhanced, nil
}

// SetEnhancements merges a partial update and re-renders the current
// frame. Frames cached before this call keep their old rendering until
// evicted; only the current frame is replaced.
func (a *Analyzer) SetEnhancements(ctx context.Context, patch enhance.Patch) error {
	a.mu.Lock()
	a.enhancements = a.enhancements.Merge(patch)
	merged := a.enhancements
	ready := a.loadState == StateReady
	var path string
	var meta *decode.Metadata
	var timestamp float64
	if ready {
		path, meta, timestamp = a.videoPath, a.meta, a.playback.CurrentTime
	}
	a.mu.Unlock()

	a.PublishEvent(service.EventTypeEnhancementsChanged, map[string]interface{}{
		"enhancements": merged,
	})

	if !ready {
		return nil
	}

	frame, err := a.renderFrame(ctx, path, meta, timestamp, merged)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.cache.Put(frame.Index, frame)
	a.mu.Unlock()

	a.PublishEvent(service.EventTypeFrameRendered, map[string]interface{}{
		"index":     frame.Index,
		"timestamp": frame.Timestamp,
	})
	return nil
}

// GetThumbnails returns the thumbnail strip in timeline order.
func (a *Analyzer) GetThumbnails() []*frames.Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.thumbs.All()
}

// AddMarker inserts a marker, keeping the list sorted by timestamp.
// A missing ID is assigned.
func (a *Analyzer) AddMarker(marker TimelineMarker) TimelineMarker {
	if marker.ID == "" {
		marker.ID = uuid.New().String()
	}

	a.mu.Lock()
	a.markers = insertMarkerSorted(a.markers, marker)
	videoID := a.videoID
	a.mu.Unlock()

	a.persistMarker(videoID, marker)
	a.PublishEvent(service.EventTypeMarkerAdded, map[string]interface{}{
		"id":        marker.ID,
		"timestamp": marker.Timestamp,
		"type":      string(marker.Type),
	})
	return marker
}

// RemoveMarker deletes a marker by id.
func (a *Analyzer) RemoveMarker(id string) bool {
	a.mu.Lock()
	removed := false
	for i, m := range a.markers {
		if m.ID == id {
			a.markers = append(a.markers[:i], a.markers[i+1:]...)
			removed = true
			break
		}
	}
	a.mu.Unlock()

	if removed {
		if a.stateMgr != nil {
			if err := a.stateMgr.DeleteMarker(a.ctx, id); err != nil {
				a.LogWarn("Failed to delete persisted marker", "id", id, "error", err)
			}
		}
		a.PublishEvent(service.EventTypeMarkerRemoved, map[string]interface{}{"id": id})
	}
	return removed
}

// GetMarkers returns a copy of the marker list, sorted by timestamp.
func (a *Analyzer) GetMarkers() []TimelineMarker {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]TimelineMarker, len(a.markers))
	copy(out, a.markers)
	return out
}

func (a *Analyzer) persistMarker(videoID string, marker TimelineMarker) {
	if a.stateMgr == nil || videoID == "" {
		return
	}
	err := a.stateMgr.SaveMarker(a.ctx, state.MarkerState{
		ID:          marker.ID,
		VideoID:     videoID,
		Timestamp:   marker.Timestamp,
		MarkerType:  string(marker.Type),
		Label:       marker.Label,
		Description: marker.Description,
		Confidence:  marker.Confidence,
		Color:       marker.Color,
	})
	if err != nil {
		a.LogWarn("Failed to persist marker", "id", marker.ID, "error", err)
	}
}

// insertMarkerSorted inserts while preserving ascending timestamp order.
func insertMarkerSorted(markers []TimelineMarker, marker TimelineMarker) []TimelineMarker {
	i := sort.Search(len(markers), func(i int) bool {
		return markers[i].Timestamp > marker.Timestamp
	})
	markers = append(markers, TimelineMarker{})
	copy(markers[i+1:], markers[i:])
	markers[i] = marker
	return markers
}

// ExportVideo re-encodes the loaded video with the current enhancement
// parameters baked into the encoder filter chain.
func (a *Analyzer) ExportVideo(ctx context.Context, outputPath string, settings *ExportSettings) error {
	a.mu.Lock()
	if a.loadState != StateReady {
		a.mu.Unlock()
		return fmt.Errorf("no video loaded")
	}
	path, meta, enh := a.videoPath, a.meta, a.enhancements
	a.mu.Unlock()

	opts := exportOptions(enh)
	if settings != nil {
		opts.Format = settings.Format
		opts.VideoCodec = settings.VideoCodec
		opts.Quality = settings.Quality
	}

	err := a.exporter.ConvertFormat(ctx, path, outputPath, opts, meta.Duration, func(fraction float64) {
		a.LogDebug("Export progress", "fraction", fraction)
	})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	a.PublishEvent(service.EventTypeExportComplete, map[string]interface{}{"path": outputPath})
	return nil
}

// exportOptions maps playback enhancement parameters onto the encoder
// option set.
func exportOptions(e enhance.Enhancements) decode.ExportOptions {
	return decode.ExportOptions{
		Brightness:  e.Brightness,
		Contrast:    e.Contrast,
		Saturation:  e.Saturation,
		Gamma:       e.Gamma,
		Exposure:    e.Exposure,
		Highlights:  e.Highlights,
		Shadows:     e.Shadows,
		Temperature: e.Temperature,
		Tint:        e.Tint,
		Sharpness:   e.Sharpness,
		Denoise:     e.Denoise,
		Stabilize:   e.Stabilize,
	}
}

// Dispose halts playback and any analysis, clears both caches and the
// markers, and returns to the unloaded state.
func (a *Analyzer) Dispose() {
	a.mu.Lock()
	a.stopPlaybackLocked()
	if a.analysisCancel != nil {
		a.analysisCancel()
		a.analysisCancel = nil
	}
	hadVideo := a.loadState != StateUnloaded
	a.loadState = StateUnloaded
	a.videoPath = ""
	a.videoID = ""
	a.meta = nil
	a.playback = PlaybackState{}
	a.markers = nil
	a.cache.Clear()
	a.thumbs.Clear()
	a.mu.Unlock()

	if hadVideo {
		a.PublishEvent(service.EventTypeVideoDisposed, nil)
	}
}
