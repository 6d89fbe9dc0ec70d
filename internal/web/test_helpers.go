package web

import (
	"context"
	"testing"

	"github.com/spectravision/core/internal/analyzer"
	"github.com/spectravision/core/internal/config"
	"github.com/spectravision/core/internal/decode"
	"github.com/spectravision/core/internal/enhance"
	"github.com/spectravision/core/internal/frames"
	"github.com/spectravision/core/internal/logger"
)

// fakeAnalyzer satisfies AnalyzerService for handler tests.
type fakeAnalyzer struct {
	state    string
	meta     *decode.Metadata
	playback analyzer.PlaybackState
	enh      enhance.Enhancements
	markers  []analyzer.TimelineMarker
	frame    *frames.Frame
	analysis *analyzer.VideoAnalysisResult

	loadErr    error
	frameErr   error
	analyzeErr error
	exportErr  error

	loaded      []string
	disposed    bool
	playCalls   int
	pauseCalls  int
	seeks       []float64
	seekFrames  []int
	steps       []string
	rates       []float64
	patches     []enhance.Patch
	exports     []string
	removedIDs  []string
	addedMarker *analyzer.TimelineMarker
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		state: analyzer.StateUnloaded,
		enh:   enhance.Neutral(),
		playback: analyzer.PlaybackState{
			Rate:   1,
			Volume: 1,
		},
	}
}

func (f *fakeAnalyzer) GetState() string                         { return f.state }
func (f *fakeAnalyzer) GetMetadata() *decode.Metadata            { return f.meta }
func (f *fakeAnalyzer) GetPlaybackState() analyzer.PlaybackState { return f.playback }
func (f *fakeAnalyzer) GetEnhancements() enhance.Enhancements    { return f.enh }
func (f *fakeAnalyzer) GetThumbnails() []*frames.Frame           { return nil }
func (f *fakeAnalyzer) GetMarkers() []analyzer.TimelineMarker    { return f.markers }

func (f *fakeAnalyzer) GetCurrentFrame(ctx context.Context) (*frames.Frame, error) {
	if f.frameErr != nil {
		return nil, f.frameErr
	}
	return f.frame, nil
}

func (f *fakeAnalyzer) LoadVideo(ctx context.Context, path string) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = append(f.loaded, path)
	f.state = analyzer.StateReady
	return nil
}

func (f *fakeAnalyzer) Dispose() {
	f.disposed = true
	f.state = analyzer.StateUnloaded
}

func (f *fakeAnalyzer) Play() error {
	f.playCalls++
	f.playback.Playing = true
	return nil
}

func (f *fakeAnalyzer) Pause() {
	f.pauseCalls++
	f.playback.Playing = false
}

func (f *fakeAnalyzer) Seek(ctx context.Context, timestamp float64) error {
	f.seeks = append(f.seeks, timestamp)
	f.playback.CurrentTime = timestamp
	return nil
}

func (f *fakeAnalyzer) SeekToFrame(ctx context.Context, index int) error {
	f.seekFrames = append(f.seekFrames, index)
	return nil
}

func (f *fakeAnalyzer) StepForward(ctx context.Context) error {
	f.steps = append(f.steps, "forward")
	return nil
}

func (f *fakeAnalyzer) StepBackward(ctx context.Context) error {
	f.steps = append(f.steps, "backward")
	return nil
}

func (f *fakeAnalyzer) SetPlaybackRate(rate float64) float64 {
	if rate < 0.25 {
		rate = 0.25
	} else if rate > 4 {
		rate = 4
	}
	f.rates = append(f.rates, rate)
	f.playback.Rate = rate
	return rate
}

func (f *fakeAnalyzer) SetLoop(enabled bool, start, end float64) {
	f.playback.Loop = enabled
	f.playback.LoopStart = start
	f.playback.LoopEnd = end
}

func (f *fakeAnalyzer) SetVolume(volume float64) { f.playback.Volume = volume }
func (f *fakeAnalyzer) SetMuted(muted bool)      { f.playback.Muted = muted }

func (f *fakeAnalyzer) SetEnhancements(ctx context.Context, patch enhance.Patch) error {
	f.patches = append(f.patches, patch)
	f.enh = f.enh.Merge(patch)
	return nil
}

func (f *fakeAnalyzer) AddMarker(marker analyzer.TimelineMarker) analyzer.TimelineMarker {
	if marker.ID == "" {
		marker.ID = "marker-1"
	}
	f.addedMarker = &marker
	f.markers = append(f.markers, marker)
	return marker
}

func (f *fakeAnalyzer) RemoveMarker(id string) bool {
	for i, m := range f.markers {
		if m.ID == id {
			f.markers = append(f.markers[:i], f.markers[i+1:]...)
			f.removedIDs = append(f.removedIDs, id)
			return true
		}
	}
	return false
}

func (f *fakeAnalyzer) AnalyzeVideo(ctx context.Context, onProgress func(float64)) (*analyzer.VideoAnalysisResult, error) {
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return f.analysis, nil
}

func (f *fakeAnalyzer) ExportVideo(ctx context.Context, outputPath string, settings *analyzer.ExportSettings) error {
	if f.exportErr != nil {
		return f.exportErr
	}
	f.exports = append(f.exports, outputPath)
	return nil
}

func setupTestWebServer(t *testing.T) (*Server, *fakeAnalyzer) {
	t.Helper()

	cfg := &config.WebConfig{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    0,
	}
	server := NewServer(cfg, logger.NewNopLogger())
	fake := newFakeAnalyzer()
	server.SetAnalyzer(fake)
	server.setupRoutes()
	return server, fake
}
