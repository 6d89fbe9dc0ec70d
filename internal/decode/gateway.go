package decode

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spectravision/core/internal/logger"
)

// Gateway drives the external decode tools: metadata probing, frame and
// audio extraction, scene-change detection and re-encoding. All operations
// spawn one external process and complete when it exits. Each Gateway owns
// a private scratch directory for materialized frames; Cleanup reaps it.
type Gateway struct {
	logger     *logger.Logger
	tools      *Toolchain
	scratchDir string
	timeout    time.Duration
}

// FrameRange selects a sampling window for multi-frame extraction. Either
// FPS (fixed-rate) or Interval (one frame per Interval seconds) drives the
// sampling; FPS wins when both are set.
type FrameRange struct {
	StartTime float64 // seconds, 0 = file start
	EndTime   float64 // seconds, 0 = file end
	Interval  float64 // seconds between samples
	FPS       float64 // fixed output frame rate
}

// ExportOptions controls re-encoding. The enhancement fields mirror the
// playback enhancement parameters and are baked into a filter chain.
type ExportOptions struct {
	Format     string // container format, default mp4
	VideoCodec string // encoder, default libx264
	Quality    int    // CRF, default 23

	Brightness  float64 // [-100,100]
	Contrast    float64 // [-100,100]
	Saturation  float64 // [0,200], neutral 100
	Gamma       float64 // [0.1,3], neutral 1
	Exposure    float64 // stops [-2,2]
	Highlights  float64 // [-100,100]
	Shadows     float64 // [-100,100]
	Temperature float64 // [-100,100]
	Tint        float64 // [-100,100]
	Sharpness   float64 // [0,100]
	Denoise     float64 // [0,100]
	Stabilize   bool
}

// NewGateway creates a gateway with its own scratch directory under
// baseScratch (or the system temp dir when empty). A scratch creation
// failure is logged but not fatal; subsequent writes fail at point of use.
func NewGateway(tools *Toolchain, baseScratch string, timeout time.Duration, log *logger.Logger) *Gateway {
	if baseScratch == "" {
		baseScratch = os.TempDir()
	}
	scratch, err := os.MkdirTemp(baseScratch, "spectral-scratch-*")
	if err != nil {
		log.Warn("Failed to create scratch directory", "base", baseScratch, "error", err)
		scratch = filepath.Join(baseScratch, "spectral-scratch")
	}

	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	return &Gateway{
		logger:     log,
		tools:      tools,
		scratchDir: scratch,
		timeout:    timeout,
	}
}

// ScratchDir returns the gateway's private scratch directory
func (g *Gateway) ScratchDir() string {
	return g.scratchDir
}

// Cleanup removes the scratch directory and everything in it
func (g *Gateway) Cleanup() {
	if err := os.RemoveAll(g.scratchDir); err != nil {
		g.logger.Warn("Failed to remove scratch directory", "dir", g.scratchDir, "error", err)
	}
}

// Probe returns the metadata of a video file
func (g *Gateway) Probe(ctx context.Context, path string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := g.tools.BuildProbeCommand(ctx, args)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, newDecodeError("probe", stderr.String(), err)
	}

	meta, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return nil, newDecodeError("probe", stderr.String(), err)
	}

	g.logger.Debug("Probed video",
		"path", path,
		"duration", meta.Duration,
		"fps", meta.FrameRate,
		"resolution", fmt.Sprintf("%dx%d", meta.Width, meta.Height),
		"codec", meta.Codec,
	)

	return meta, nil
}

// ExtractFrame extracts exactly one frame at the given timestamp to a
// temporary image file in the scratch directory and returns its path.
func (g *Gateway) ExtractFrame(ctx context.Context, path string, timestamp float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out := filepath.Join(g.scratchDir, fmt.Sprintf("frame_%d.png", time.Now().UnixNano()))

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(timestamp),
		"-i", path,
		"-frames:v", "1",
		"-y",
		out,
	}

	cmd := g.tools.BuildCommand(ctx, args)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", newDecodeError("extract_frame", stderr.String(), err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", newDecodeError("extract_frame", stderr.String(), fmt.Errorf("no frame produced: %w", err))
	}

	return out, nil
}

// ExtractFrames extracts a frame sequence to numbered files matching
// outputPattern (e.g. "sample_%05d.png" under the scratch directory).
// Callers discover the produced files by globbing the pattern's directory.
func (g *Gateway) ExtractFrames(ctx context.Context, path, outputPattern string, r FrameRange) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
	}
	if r.StartTime > 0 {
		args = append(args, "-ss", formatSeconds(r.StartTime))
	}
	args = append(args, "-i", path)
	if r.EndTime > r.StartTime {
		args = append(args, "-t", formatSeconds(r.EndTime-r.StartTime))
	}

	switch {
	case r.FPS > 0:
		args = append(args, "-vf", fmt.Sprintf("fps=%g", r.FPS))
	case r.Interval > 0:
		args = append(args, "-vf", fmt.Sprintf("fps=1/%g", r.Interval))
	}

	args = append(args, "-y", outputPattern)

	cmd := g.tools.BuildCommand(ctx, args)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return newDecodeError("extract_frames", stderr.String(), err)
	}

	return nil
}

// GenerateThumbnail extracts a single scaled frame at the given timestamp
func (g *Gateway) GenerateThumbnail(ctx context.Context, path string, timestamp float64, width, height int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out := filepath.Join(g.scratchDir, fmt.Sprintf("thumb_%d.png", time.Now().UnixNano()))

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(timestamp),
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-y",
		out,
	}

	cmd := g.tools.BuildCommand(ctx, args)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", newDecodeError("thumbnail", stderr.String(), err)
	}

	return out, nil
}

// ExtractAudio extracts the audio track to outputPath; the container is
// inferred from the output extension.
func (g *Gateway) ExtractAudio(ctx context.Context, path, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-vn",
		"-y",
		outputPath,
	}

	cmd := g.tools.BuildCommand(ctx, args)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return newDecodeError("extract_audio", stderr.String(), err)
	}

	return nil
}

// DetectSceneChanges returns the timestamps (seconds) where the scene
// changes by more than threshold (0..1). Timestamps are parsed from the
// decoder's showinfo diagnostics on stderr.
func (g *Gateway) DetectSceneChanges(ctx context.Context, path string, threshold float64) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if threshold <= 0 {
		threshold = 0.3
	}

	args := []string{
		"-hide_banner",
		"-i", path,
		"-vf", fmt.Sprintf("select='gt(scene,%g)',showinfo", threshold),
		"-f", "null",
		"-",
	}

	cmd := g.tools.BuildCommand(ctx, args)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, newDecodeError("scene_detect", stderr.String(), err)
	}

	return parseSceneTimestamps(stderr.String()), nil
}

// ConvertFormat re-encodes a video with the enhancement parameters baked
// into the filter chain. The progress callback, if non-nil, receives the
// completed fraction parsed from the encoder's diagnostics; totalDuration
// of 0 disables progress reporting.
func (g *Gateway) ConvertFormat(ctx context.Context, inputPath, outputPath string, opts ExportOptions, totalDuration float64, progress func(float64)) error {
	args := []string{
		"-hide_banner",
		"-i", inputPath,
	}

	if chain := buildFilterChain(opts); chain != "" {
		args = append(args, "-vf", chain)
	}

	codec := opts.VideoCodec
	if codec == "" {
		codec = "libx264"
	}
	quality := opts.Quality
	if quality == 0 {
		quality = 23
	}
	format := opts.Format
	if format == "" {
		format = "mp4"
	}

	args = append(args,
		"-c:v", codec,
		"-preset", "medium",
		"-crf", fmt.Sprintf("%d", quality),
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-f", format,
		"-y",
		outputPath,
	)

	cmd := g.tools.BuildCommand(ctx, args)
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return newDecodeError("export", "", err)
	}

	if err := cmd.Start(); err != nil {
		return newDecodeError("export", "", err)
	}

	captured := watchProgress(stderrPipe, totalDuration, progress)

	if err := cmd.Wait(); err != nil {
		os.Remove(outputPath)
		return newDecodeError("export", captured, err)
	}

	g.logger.Info("Export complete", "input", inputPath, "output", outputPath)
	return nil
}

// buildFilterChain maps export options onto a decoder filter chain.
// Neutral parameters contribute no filter.
func buildFilterChain(opts ExportOptions) string {
	var filters []string

	if opts.Denoise > 0 {
		filters = append(filters, fmt.Sprintf("hqdn3d=%g", opts.Denoise/10))
	}
	if opts.Stabilize {
		filters = append(filters, "deshake")
	}

	eq := buildEqFilter(opts)
	if eq != "" {
		filters = append(filters, eq)
	}

	if opts.Exposure != 0 {
		filters = append(filters, fmt.Sprintf("exposure=exposure=%g", opts.Exposure))
	}
	if opts.Temperature != 0 {
		// neutral 6500K, ~30K per unit of the [-100,100] range
		filters = append(filters, fmt.Sprintf("colortemperature=temperature=%d", 6500+int(opts.Temperature*30)))
	}
	if opts.Tint != 0 {
		filters = append(filters, fmt.Sprintf("colorbalance=gm=%g", -opts.Tint/200))
	}
	if opts.Highlights != 0 || opts.Shadows != 0 {
		filters = append(filters, fmt.Sprintf("colorlevels=rimin=%g:gimin=%g:bimin=%g:rimax=%g:gimax=%g:bimax=%g",
			-opts.Shadows/500, -opts.Shadows/500, -opts.Shadows/500,
			1-opts.Highlights/500, 1-opts.Highlights/500, 1-opts.Highlights/500))
	}
	if opts.Sharpness > 0 {
		filters = append(filters, fmt.Sprintf("unsharp=5:5:%g", opts.Sharpness/100*1.5))
	}

	var chain string
	for i, f := range filters {
		if i > 0 {
			chain += ","
		}
		chain += f
	}
	return chain
}

// buildEqFilter emits the eq filter covering brightness, contrast,
// saturation and gamma, or "" when all four are neutral.
func buildEqFilter(opts ExportOptions) string {
	brightness := opts.Brightness / 100
	contrast := 1 + opts.Contrast/100
	saturation := opts.Saturation / 100
	if opts.Saturation == 0 {
		saturation = 1 // unset means neutral, not grayscale
	}
	gamma := opts.Gamma
	if gamma == 0 {
		gamma = 1
	}

	if brightness == 0 && contrast == 1 && saturation == 1 && gamma == 1 {
		return ""
	}

	return fmt.Sprintf("eq=brightness=%g:contrast=%g:saturation=%g:gamma=%g",
		brightness, contrast, saturation, gamma)
}

// formatSeconds renders a timestamp for a tool argument
func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}
