package analyzer

import (
	"fmt"
	"time"

	"github.com/spectravision/core/internal/frames"
	"github.com/spectravision/core/internal/motion"
)

// Load states of the analyzer.
const (
	StateUnloaded = "unloaded"
	StateLoading  = "loading"
	StateReady    = "ready"
)

// MarkerType classifies a timeline marker.
type MarkerType string

// Marker types.
const (
	MarkerAnomaly MarkerType = "anomaly"
	MarkerMotion  MarkerType = "motion"
	MarkerManual  MarkerType = "manual"
	MarkerAudio   MarkerType = "audio"
)

// TimelineMarker is one annotated point on the video timeline. The
// marker list is kept sorted ascending by timestamp at all times.
type TimelineMarker struct {
	ID          string     `json:"id"`
	Timestamp   float64    `json:"timestamp"`
	Type        MarkerType `json:"type"`
	Label       string     `json:"label"`
	Description string     `json:"description,omitempty"`
	Confidence  float64    `json:"confidence,omitempty"`
	Color       string     `json:"color,omitempty"`
}

// PlaybackState is the single mutable playback descriptor, owned by the
// Analyzer and mutated only through its playback operations.
type PlaybackState struct {
	Playing        bool    `json:"playing"`
	ReversePlaying bool    `json:"reverse_playing"`
	CurrentTime    float64 `json:"current_time"`
	Rate           float64 `json:"rate"` // 0.25..4
	Loop           bool    `json:"loop"`
	LoopStart      float64 `json:"loop_start"`
	LoopEnd        float64 `json:"loop_end"`
	Volume         float64 `json:"volume"`
	Muted          bool    `json:"muted"`
	Seeking        bool    `json:"seeking"` // transient, true while a seek renders
}

// VideoAnalysisResult aggregates one whole-video analysis pass.
type VideoAnalysisResult struct {
	VideoPath      string                       `json:"video_path"`
	FramesAnalyzed int                          `json:"frames_analyzed"`
	MotionFrames   int                          `json:"motion_frames"`
	AnomalyFrames  int                          `json:"anomaly_frames"`
	PeakMotion     float64                      `json:"peak_motion"`
	AverageMotion  float64                      `json:"average_motion"`
	AnomalyCounts  map[frames.AnomalyType]int   `json:"anomaly_counts"`
	MotionRegions  []motion.Region              `json:"motion_regions"`
	Anomalies      []frames.Anomaly             `json:"anomalies"`
	Markers        []TimelineMarker             `json:"markers"`
	Elapsed        time.Duration                `json:"elapsed"`
}

// LoadError is a failure to load a video; the analyzer's prior state is
// left intact.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load video %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
