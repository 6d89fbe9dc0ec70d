package analyzer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/spectravision/core/internal/frames"
	"github.com/spectravision/core/internal/motion"
	"github.com/spectravision/core/internal/service"
	"github.com/spectravision/core/internal/state"
)

const (
	// regions whose box centers sit within this distance across frames
	// are treated as the same moving object
	regionMergeDistance = 50.0

	// a merged region needs more than this many contributing frames to
	// earn a timeline marker
	sustainedMotionFrames = 5

	// intensity below this is sensor noise, not motion
	motionFrameThreshold = 0.01
)

// AnalyzeVideo samples the loaded video, runs motion and anomaly
// detection over every sampled frame, and generates timeline markers
// for the findings. Starting a new analysis cancels the previous one;
// only the newest run commits its markers.
func (a *Analyzer) AnalyzeVideo(ctx context.Context, onProgress func(float64)) (*VideoAnalysisResult, error) {
	a.mu.Lock()
	if a.loadState != StateReady {
		a.mu.Unlock()
		return nil, fmt.Errorf("no video loaded")
	}
	if a.analysisCancel != nil {
		a.analysisCancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.analysisCancel = cancel
	seq := atomic.AddUint64(&a.analysisSeq, 1)
	path, meta := a.videoPath, a.meta
	videoID := a.videoID
	maxSamples := a.cfg.Analyze.MaxSamples
	a.mu.Unlock()
	defer cancel()

	started := time.Now()
	fps := meta.FrameRate
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate")
	}

	sampled, err := a.source.ExtractFrames(runCtx, path, meta, frames.ExtractOptions{
		Interval:  1 / fps,
		MaxFrames: maxSamples,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sample frames: %w", err)
	}
	if len(sampled) == 0 {
		return nil, fmt.Errorf("no frames sampled from %s", path)
	}

	result := &VideoAnalysisResult{
		VideoPath:      path,
		FramesAnalyzed: len(sampled),
		AnomalyCounts:  make(map[frames.AnomalyType]int),
	}
	var markers []TimelineMarker
	var totalMotion float64

	for i, frame := range sampled {
		select {
		case <-runCtx.Done():
			return nil, runCtx.Err()
		default:
		}

		if i > 0 {
			motionResult, err := a.motionDet.DetectMotion(sampled[i-1], frame)
			if err != nil {
				a.LogWarn("Motion detection failed", "frame", frame.Index, "error", err)
			} else {
				frame.MotionScore = motionResult.Intensity
				totalMotion += motionResult.Intensity
				if motionResult.Intensity > motionFrameThreshold {
					result.MotionFrames++
				}
				if motionResult.Intensity > result.PeakMotion {
					result.PeakMotion = motionResult.Intensity
				}
				result.MotionRegions = mergeRegions(result.MotionRegions, motionResult.Regions)
			}
		}

		findings := a.anomalyDet.DetectAnomalies(frame)
		if len(findings) > 0 {
			frame.Anomalies = findings
			result.AnomalyFrames++
			result.Anomalies = append(result.Anomalies, findings...)

			best := findings[0]
			for _, f := range findings {
				result.AnomalyCounts[f.Type]++
				if f.Confidence > best.Confidence {
					best = f
				}
			}
			markers = append(markers, TimelineMarker{
				ID:          uuid.New().String(),
				Timestamp:   frame.Timestamp,
				Type:        MarkerAnomaly,
				Label:       string(best.Type),
				Description: best.Description,
				Confidence:  best.Confidence,
				Color:       "#e74c3c",
			})
		}

		if onProgress != nil {
			onProgress(float64(i+1) / float64(len(sampled)))
		}
	}

	for _, region := range result.MotionRegions {
		if len(region.FrameIndices) <= sustainedMotionFrames {
			continue
		}
		markers = append(markers, TimelineMarker{
			ID:         uuid.New().String(),
			Timestamp:  float64(region.FrameIndices[0]) / fps,
			Type:       MarkerMotion,
			Label:      "Sustained motion",
			Confidence: region.Intensity,
			Color:      "#f39c12",
		})
	}

	if len(sampled) > 1 {
		result.AverageMotion = totalMotion / float64(len(sampled)-1)
	}
	result.Markers = markers
	result.Elapsed = time.Since(started)

	a.mu.Lock()
	if atomic.LoadUint64(&a.analysisSeq) != seq {
		// superseded by a newer run; report the result but leave the
		// timeline alone
		a.mu.Unlock()
		return result, nil
	}
	for _, m := range markers {
		a.markers = insertMarkerSorted(a.markers, m)
	}
	a.mu.Unlock()

	a.persistAnalysis(videoID, started, result, markers)

	a.LogInfo("Analysis complete",
		"path", path,
		"frames", result.FramesAnalyzed,
		"motion_frames", result.MotionFrames,
		"anomaly_frames", result.AnomalyFrames,
		"elapsed", result.Elapsed,
	)
	a.PublishEvent(service.EventTypeAnalysisComplete, map[string]interface{}{
		"path":           path,
		"frames":         result.FramesAnalyzed,
		"motion_frames":  result.MotionFrames,
		"anomaly_frames": result.AnomalyFrames,
		"markers":        len(markers),
	})
	return result, nil
}

func (a *Analyzer) persistAnalysis(videoID string, started time.Time, result *VideoAnalysisResult, markers []TimelineMarker) {
	if a.stateMgr == nil || videoID == "" {
		return
	}

	completed := time.Now()
	counts := make(map[string]int, len(result.AnomalyCounts))
	for t, n := range result.AnomalyCounts {
		counts[string(t)] = n
	}
	err := a.stateMgr.SaveAnalysisRun(a.ctx, state.AnalysisRunState{
		ID:             uuid.New().String(),
		VideoID:        videoID,
		StartedAt:      started,
		CompletedAt:    &completed,
		FramesAnalyzed: result.FramesAnalyzed,
		MotionFrames:   result.MotionFrames,
		AnomalyFrames:  result.AnomalyFrames,
		PeakMotion:     result.PeakMotion,
		AverageMotion:  result.AverageMotion,
		AnomalyCounts:  counts,
	})
	if err != nil {
		a.LogWarn("Failed to persist analysis run", "error", err)
	}

	for _, m := range markers {
		a.persistMarker(videoID, m)
	}
}

// mergeRegions folds freshly detected regions into the accumulated set.
// A new region whose box center falls within regionMergeDistance of an
// accumulated one extends that region's frame span instead of starting
// a new entry.
func mergeRegions(accumulated []motion.Region, detected []motion.Region) []motion.Region {
	for _, next := range detected {
		nx, ny := next.Box.Center()
		merged := false
		for i := range accumulated {
			ax, ay := accumulated[i].Box.Center()
			dx, dy := nx-ax, ny-ay
			if dx*dx+dy*dy <= regionMergeDistance*regionMergeDistance {
				accumulated[i].FrameIndices = appendNewIndices(accumulated[i].FrameIndices, next.FrameIndices)
				if next.Intensity > accumulated[i].Intensity {
					accumulated[i].Intensity = next.Intensity
				}
				merged = true
				break
			}
		}
		if !merged {
			accumulated = append(accumulated, next)
		}
	}
	return accumulated
}

func appendNewIndices(existing, incoming []int) []int {
	for _, idx := range incoming {
		seen := false
		for _, have := range existing {
			if have == idx {
				seen = true
				break
			}
		}
		if !seen {
			existing = append(existing, idx)
		}
	}
	return existing
}
