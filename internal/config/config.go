package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Log      LogConfig      `yaml:"log,omitempty"`
}

// AnalyzerConfig contains the video analysis configuration
type AnalyzerConfig struct {
	DataDir string        `yaml:"data_dir"`
	Decode  DecodeConfig  `yaml:"decode"`
	Cache   CacheConfig   `yaml:"cache"`
	Motion  MotionConfig  `yaml:"motion"`
	Anomaly AnomalyConfig `yaml:"anomaly"`
	Analyze AnalyzeConfig `yaml:"analyze"`
	Web     WebConfig     `yaml:"web"`
	State   StateConfig   `yaml:"state"`
}

// DecodeConfig contains external decode tool configuration
type DecodeConfig struct {
	FFmpegPath  string        `yaml:"ffmpeg_path"`
	FFprobePath string        `yaml:"ffprobe_path"`
	ScratchDir  string        `yaml:"scratch_dir"`
	Timeout     time.Duration `yaml:"timeout"`
}

// CacheConfig contains frame cache configuration
type CacheConfig struct {
	MaxFrames     int `yaml:"max_frames"`
	MaxThumbnails int `yaml:"max_thumbnails"`
}

// MotionConfig contains motion detector defaults
type MotionConfig struct {
	Algorithm   string  `yaml:"algorithm"`
	Sensitivity float64 `yaml:"sensitivity"`
	Threshold   float64 `yaml:"threshold"`
	MinArea     int     `yaml:"min_area"`
	MaxArea     int     `yaml:"max_area"`
	History     int     `yaml:"history"`
}

// AnomalyConfig contains anomaly detector defaults
type AnomalyConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// AnalyzeConfig contains full-video analysis configuration
type AnalyzeConfig struct {
	MaxSamples     int `yaml:"max_samples"`
	ThumbnailCount int `yaml:"thumbnail_count"`
}

// WebConfig contains HTTP control surface configuration
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// StateConfig contains persistence configuration
type StateConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file. An empty path loads
// defaults only.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration: %w", err)
		}
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Analyzer.DataDir == "" {
		c.Analyzer.DataDir = "./data"
	}

	if c.Analyzer.Decode.FFmpegPath == "" {
		c.Analyzer.Decode.FFmpegPath = "ffmpeg"
	}
	if c.Analyzer.Decode.FFprobePath == "" {
		c.Analyzer.Decode.FFprobePath = "ffprobe"
	}
	if c.Analyzer.Decode.Timeout == 0 {
		c.Analyzer.Decode.Timeout = 2 * time.Minute
	}

	if c.Analyzer.Cache.MaxFrames == 0 {
		c.Analyzer.Cache.MaxFrames = 100
	}
	if c.Analyzer.Cache.MaxThumbnails == 0 {
		c.Analyzer.Cache.MaxThumbnails = 200
	}

	if c.Analyzer.Motion.Algorithm == "" {
		c.Analyzer.Motion.Algorithm = "frame_diff"
	}
	if c.Analyzer.Motion.Sensitivity == 0 {
		c.Analyzer.Motion.Sensitivity = 0.5
	}
	if c.Analyzer.Motion.Threshold == 0 {
		c.Analyzer.Motion.Threshold = 25
	}
	if c.Analyzer.Motion.MinArea == 0 {
		c.Analyzer.Motion.MinArea = 64
	}
	if c.Analyzer.Motion.MaxArea == 0 {
		c.Analyzer.Motion.MaxArea = 1 << 20
	}
	if c.Analyzer.Motion.History == 0 {
		c.Analyzer.Motion.History = 30
	}

	if c.Analyzer.Anomaly.ConfidenceThreshold == 0 {
		c.Analyzer.Anomaly.ConfidenceThreshold = 0.6
	}

	if c.Analyzer.Analyze.MaxSamples == 0 {
		c.Analyzer.Analyze.MaxSamples = 1000
	}
	if c.Analyzer.Analyze.ThumbnailCount == 0 {
		c.Analyzer.Analyze.ThumbnailCount = 100
	}

	if c.Analyzer.Web.Host == "" {
		c.Analyzer.Web.Host = "127.0.0.1"
	}
	if c.Analyzer.Web.Port == 0 {
		c.Analyzer.Web.Port = 8750
	}

	if c.Analyzer.State.DBPath == "" {
		c.Analyzer.State.DBPath = filepath.Join(c.Analyzer.DataDir, "db", "spectral.db")
	}
}
