package state

import (
	"testing"

	"github.com/spectravision/core/internal/config"
	"github.com/spectravision/core/internal/logger"
)

func setupTestManager(t *testing.T) *Manager {
	tmpDir := t.TempDir()

	cfg := &config.Config{}
	cfg.Analyzer.DataDir = tmpDir

	log, _ := logger.New(logger.Config{Level: "info", Format: "text"})

	mgr, err := NewManager(cfg, log)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	return mgr
}
