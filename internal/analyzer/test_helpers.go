package analyzer

import (
	"context"
	"sync"
	"testing"

	"github.com/spectravision/core/internal/anomaly"
	"github.com/spectravision/core/internal/config"
	"github.com/spectravision/core/internal/decode"
	"github.com/spectravision/core/internal/frames"
	"github.com/spectravision/core/internal/logger"
	"github.com/spectravision/core/internal/motion"
)

func fptr(v float64) *float64 { return &v }

// solidFrame builds a frame filled with one gray value.
func solidFrame(index int, timestamp float64, width, height int, value uint8) *frames.Frame {
	pix := make([]uint8, width*height*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i] = value
		pix[i+1] = value
		pix[i+2] = value
		pix[i+3] = 255
	}
	return &frames.Frame{
		Index:     index,
		Timestamp: timestamp,
		Width:     width,
		Height:    height,
		Pix:       pix,
	}
}

// fillRect paints a gray value over a box in place.
func fillRect(f *frames.Frame, box frames.Rect, value uint8) {
	for y := box.Y; y < box.Y+box.Height && y < f.Height; y++ {
		for x := box.X; x < box.X+box.Width && x < f.Width; x++ {
			i := (y*f.Width + x) * 4
			f.Pix[i] = value
			f.Pix[i+1] = value
			f.Pix[i+2] = value
		}
	}
}

type exportCall struct {
	inputPath  string
	outputPath string
	opts       decode.ExportOptions
}

// fakeBackend satisfies Prober, FrameSource, and Exporter without
// touching ffmpeg. On-demand frames are solid gray; ExtractFrames
// returns a preloaded clip.
type fakeBackend struct {
	mu         sync.Mutex
	meta       *decode.Metadata
	clip       []*frames.Frame
	probeErr   error
	thumbErr   error
	frameValue uint8
	renders    int
	exports    []exportCall
}

func (f *fakeBackend) Probe(ctx context.Context, path string) (*decode.Metadata, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return f.meta, nil
}

func (f *fakeBackend) ExtractFrames(ctx context.Context, path string, meta *decode.Metadata, opts frames.ExtractOptions) ([]*frames.Frame, error) {
	out := f.clip
	if opts.MaxFrames > 0 && len(out) > opts.MaxFrames {
		out = out[:opts.MaxFrames]
	}
	return out, nil
}

func (f *fakeBackend) ExtractFrameAt(ctx context.Context, path string, meta *decode.Metadata, timestamp float64) (*frames.Frame, error) {
	f.mu.Lock()
	f.renders++
	value := f.frameValue
	f.mu.Unlock()
	index := frames.IndexForTimestamp(timestamp, meta.FrameRate)
	return solidFrame(index, timestamp, meta.Width, meta.Height, value), nil
}

func (f *fakeBackend) ExtractThumbnails(ctx context.Context, path string, meta *decode.Metadata, count, width, height int) ([]*frames.Frame, error) {
	if f.thumbErr != nil {
		return nil, f.thumbErr
	}
	out := make([]*frames.Frame, count)
	for i := range out {
		timestamp := (float64(i) + 0.5) * meta.Duration / float64(count)
		out[i] = solidFrame(i, timestamp, width, height, f.frameValue)
	}
	return out, nil
}

func (f *fakeBackend) ConvertFormat(ctx context.Context, inputPath, outputPath string, opts decode.ExportOptions, totalDuration float64, progress func(float64)) error {
	f.mu.Lock()
	f.exports = append(f.exports, exportCall{inputPath: inputPath, outputPath: outputPath, opts: opts})
	f.mu.Unlock()
	if progress != nil {
		progress(1)
	}
	return nil
}

func (f *fakeBackend) renderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renders
}

func (f *fakeBackend) exportCalls() []exportCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]exportCall, len(f.exports))
	copy(out, f.exports)
	return out
}

func newTestAnalyzer(t *testing.T) (*Analyzer, *fakeBackend) {
	t.Helper()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}

	backend := &fakeBackend{
		meta: &decode.Metadata{
			Duration:  10,
			FrameRate: 30,
			Width:     320,
			Height:    240,
			Codec:     "h264",
			Format:    "mp4",
		},
		frameValue: 100,
	}

	log := logger.NewNopLogger()
	a := NewAnalyzer(
		cfg.Analyzer,
		backend,
		backend,
		backend,
		motion.NewDetector(motion.Config{}, log),
		anomaly.NewDetector(0.6, log),
		nil,
		log,
	)
	return a, backend
}

// meanRGB averages the color channels of a frame, ignoring alpha.
func meanRGB(f *frames.Frame) float64 {
	var sum float64
	for i := 0; i < len(f.Pix); i += 4 {
		sum += float64(f.Pix[i]) + float64(f.Pix[i+1]) + float64(f.Pix[i+2])
	}
	return sum / float64(len(f.Pix)/4*3)
}
