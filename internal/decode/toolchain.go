package decode

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/spectravision/core/internal/logger"
)

// Toolchain wraps the external decoder (ffmpeg) and prober (ffprobe)
// binaries. It detects their locations once at construction and builds
// context-aware commands against them.
type Toolchain struct {
	logger      *logger.Logger
	ffmpegPath  string
	ffprobePath string
	mu          sync.RWMutex
}

// NewToolchain locates the decode tools. Explicit paths win over PATH
// lookup; common install locations are tried as a fallback.
func NewToolchain(ffmpegPath, ffprobePath string, log *logger.Logger) (*Toolchain, error) {
	tc := &Toolchain{logger: log}

	resolved, err := detectTool(ffmpegPath, "ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	tc.ffmpegPath = resolved

	resolved, err = detectTool(ffprobePath, "ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}
	tc.ffprobePath = resolved

	log.Info("Decode toolchain initialized",
		"ffmpeg", tc.ffmpegPath,
		"ffprobe", tc.ffprobePath,
	)

	return tc, nil
}

// detectTool resolves a tool binary, preferring the configured path
func detectTool(configured, name string) (string, error) {
	paths := []string{configured, name, "/usr/bin/" + name, "/usr/local/bin/" + name}

	for _, path := range paths {
		if path == "" {
			continue
		}
		cmd := exec.Command(path, "-version")
		if err := cmd.Run(); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%s not found in PATH or common locations", name)
}

// BuildCommand builds a decoder command with the given arguments
func (t *Toolchain) BuildCommand(ctx context.Context, args []string) *exec.Cmd {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return exec.CommandContext(ctx, t.ffmpegPath, args...)
}

// BuildProbeCommand builds a prober command with the given arguments
func (t *Toolchain) BuildProbeCommand(ctx context.Context, args []string) *exec.Cmd {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return exec.CommandContext(ctx, t.ffprobePath, args...)
}

// Version returns the decoder version string
func (t *Toolchain) Version() (string, error) {
	cmd := exec.Command(t.ffmpegPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}

	return "unknown", nil
}
