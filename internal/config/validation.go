package config

import (
	"fmt"
	"strings"
)

// Validate validates the configuration with detailed error messages
func (c *Config) Validate() error {
	var errors []string

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errors = append(errors, fmt.Sprintf("invalid log level: %s (must be: debug, info, warn, error, fatal)", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format: %s (must be: text or json)", c.Log.Format))
	}

	if c.Analyzer.DataDir == "" {
		errors = append(errors, "analyzer.data_dir is required")
	}

	validAlgorithms := map[string]bool{
		"frame_diff": true, "optical_flow": true, "background_subtraction": true,
	}
	if !validAlgorithms[c.Analyzer.Motion.Algorithm] {
		errors = append(errors, fmt.Sprintf("invalid motion algorithm: %s (must be: frame_diff, optical_flow, background_subtraction)", c.Analyzer.Motion.Algorithm))
	}
	if c.Analyzer.Motion.Threshold < 0 || c.Analyzer.Motion.Threshold > 255 {
		errors = append(errors, fmt.Sprintf("motion.threshold must be between 0 and 255, got: %.2f", c.Analyzer.Motion.Threshold))
	}
	if c.Analyzer.Motion.MinArea < 0 {
		errors = append(errors, fmt.Sprintf("motion.min_area must be >= 0, got: %d", c.Analyzer.Motion.MinArea))
	}
	if c.Analyzer.Motion.MaxArea < c.Analyzer.Motion.MinArea {
		errors = append(errors, fmt.Sprintf("motion.max_area must be >= min_area, got: %d < %d", c.Analyzer.Motion.MaxArea, c.Analyzer.Motion.MinArea))
	}

	if c.Analyzer.Anomaly.ConfidenceThreshold < 0 || c.Analyzer.Anomaly.ConfidenceThreshold > 1 {
		errors = append(errors, fmt.Sprintf("anomaly.confidence_threshold must be between 0 and 1, got: %.2f", c.Analyzer.Anomaly.ConfidenceThreshold))
	}

	if c.Analyzer.Cache.MaxFrames < 1 {
		errors = append(errors, fmt.Sprintf("cache.max_frames must be >= 1, got: %d", c.Analyzer.Cache.MaxFrames))
	}

	if c.Analyzer.Analyze.MaxSamples < 1 {
		errors = append(errors, fmt.Sprintf("analyze.max_samples must be >= 1, got: %d", c.Analyzer.Analyze.MaxSamples))
	}

	if c.Analyzer.Web.Enabled {
		if c.Analyzer.Web.Port < 1 || c.Analyzer.Web.Port > 65535 {
			errors = append(errors, fmt.Sprintf("web.port must be between 1 and 65535, got: %d", c.Analyzer.Web.Port))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}
