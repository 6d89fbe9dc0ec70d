package web

import (
	"bytes"
	"image/png"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spectravision/core/internal/analyzer"
	"github.com/spectravision/core/internal/enhance"
	"github.com/spectravision/core/internal/service"
)

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "web-server",
	})
}

// handleStatus handles the system status endpoint
func (s *Server) handleStatus(c *gin.Context) {
	uptime := time.Since(s.startTime)

	status := gin.H{
		"uptime":         uptime.String(),
		"uptime_seconds": int64(uptime.Seconds()),
		"version":        s.version,
		"timestamp":      time.Now().Format(time.RFC3339),
	}
	if s.analyzerSvc != nil {
		status["load_state"] = s.analyzerSvc.GetState()
		status["playback"] = s.analyzerSvc.GetPlaybackState()
	}
	if s.svcMgr != nil {
		snapshots := make([]service.Snapshot, 0)
		for _, st := range s.svcMgr.GetAllStatuses() {
			snapshots = append(snapshots, st.Snapshot())
		}
		sort.Slice(snapshots, func(i, j int) bool {
			return snapshots[i].Name < snapshots[j].Name
		})
		status["services"] = snapshots
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) requireAnalyzer(c *gin.Context) bool {
	if s.analyzerSvc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Analyzer not available",
		})
		return false
	}
	return true
}

// handleLoadVideo opens a video file for playback and analysis
func (s *Server) handleLoadVideo(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	var req struct {
		Path string `json:"path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	if err := s.analyzerSvc.LoadVideo(c.Request.Context(), req.Path); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state":    s.analyzerSvc.GetState(),
		"metadata": metadataToJSON(s.analyzerSvc),
	})
}

// handleDisposeVideo releases the loaded video
func (s *Server) handleDisposeVideo(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	s.analyzerSvc.Dispose()
	c.JSON(http.StatusOK, gin.H{"state": s.analyzerSvc.GetState()})
}

// handleGetMetadata returns the loaded video's metadata
func (s *Server) handleGetMetadata(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	meta := metadataToJSON(s.analyzerSvc)
	if meta == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No video loaded"})
		return
	}
	c.JSON(http.StatusOK, meta)
}

func metadataToJSON(svc AnalyzerService) gin.H {
	meta := svc.GetMetadata()
	if meta == nil {
		return nil
	}
	return gin.H{
		"duration":   meta.Duration,
		"frame_rate": meta.FrameRate,
		"width":      meta.Width,
		"height":     meta.Height,
		"codec":      meta.Codec,
		"format":     meta.Format,
		"bit_rate":   meta.BitRate,
		"has_audio":  meta.HasAudio,
	}
}

// handleCurrentFrame renders the frame at the current playback position
// as PNG
func (s *Server) handleCurrentFrame(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	frame, err := s.analyzerSvc.GetCurrentFrame(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame.ToImage()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode frame"})
		return
	}

	c.Header("X-Frame-Index", strconv.Itoa(frame.Index))
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// handleThumbnails returns the thumbnail strip summary
func (s *Server) handleThumbnails(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	thumbs := s.analyzerSvc.GetThumbnails()
	response := make([]gin.H, 0, len(thumbs))
	for _, t := range thumbs {
		response = append(response, gin.H{
			"index":     t.Index,
			"timestamp": t.Timestamp,
			"width":     t.Width,
			"height":    t.Height,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"thumbnails": response,
		"count":      len(response),
	})
}

// handleVideoHistory lists previously loaded videos from the state store
func (s *Server) handleVideoHistory(c *gin.Context) {
	if s.stateMgr == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "State manager not available",
		})
		return
	}

	videos, err := s.stateMgr.ListVideos(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"videos": videos,
		"count":  len(videos),
	})
}

// handleGetPlayback returns the playback state
func (s *Server) handleGetPlayback(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}
	c.JSON(http.StatusOK, s.analyzerSvc.GetPlaybackState())
}

// handlePlay starts playback
func (s *Server) handlePlay(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	if err := s.analyzerSvc.Play(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.analyzerSvc.GetPlaybackState())
}

// handlePause pauses playback
func (s *Server) handlePause(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	s.analyzerSvc.Pause()
	c.JSON(http.StatusOK, s.analyzerSvc.GetPlaybackState())
}

// handleSeek seeks to a timestamp or frame index
func (s *Server) handleSeek(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	var req struct {
		Timestamp *float64 `json:"timestamp"`
		Frame     *int     `json:"frame"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}
	if req.Timestamp == nil && req.Frame == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Either timestamp or frame is required",
		})
		return
	}

	var err error
	if req.Timestamp != nil {
		err = s.analyzerSvc.Seek(c.Request.Context(), *req.Timestamp)
	} else {
		err = s.analyzerSvc.SeekToFrame(c.Request.Context(), *req.Frame)
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.analyzerSvc.GetPlaybackState())
}

// handleStep steps a single frame forward or backward
func (s *Server) handleStep(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	var req struct {
		Direction string `json:"direction" binding:"required,oneof=forward backward"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	var err error
	if req.Direction == "forward" {
		err = s.analyzerSvc.StepForward(c.Request.Context())
	} else {
		err = s.analyzerSvc.StepBackward(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.analyzerSvc.GetPlaybackState())
}

// handleSetRate sets the playback rate, clamped to the supported range
func (s *Server) handleSetRate(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	var req struct {
		Rate float64 `json:"rate" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	applied := s.analyzerSvc.SetPlaybackRate(req.Rate)
	c.JSON(http.StatusOK, gin.H{"rate": applied})
}

// handleSetLoop configures loop playback
func (s *Server) handleSetLoop(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	var req struct {
		Enabled bool    `json:"enabled"`
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	s.analyzerSvc.SetLoop(req.Enabled, req.Start, req.End)
	c.JSON(http.StatusOK, s.analyzerSvc.GetPlaybackState())
}

// handleSetVolume sets volume and mute
func (s *Server) handleSetVolume(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	var req struct {
		Volume *float64 `json:"volume"`
		Muted  *bool    `json:"muted"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	if req.Volume != nil {
		s.analyzerSvc.SetVolume(*req.Volume)
	}
	if req.Muted != nil {
		s.analyzerSvc.SetMuted(*req.Muted)
	}
	c.JSON(http.StatusOK, s.analyzerSvc.GetPlaybackState())
}

// handleGetEnhancements returns the active enhancement parameters
func (s *Server) handleGetEnhancements(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}
	c.JSON(http.StatusOK, s.analyzerSvc.GetEnhancements())
}

// handleSetEnhancements merges a partial enhancement update
func (s *Server) handleSetEnhancements(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	var patch enhance.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	if err := s.analyzerSvc.SetEnhancements(c.Request.Context(), patch); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.analyzerSvc.GetEnhancements())
}

// handleListPresets lists the built-in enhancement presets
func (s *Server) handleListPresets(c *gin.Context) {
	presets := enhance.Presets()
	c.JSON(http.StatusOK, gin.H{
		"presets": presets,
		"count":   len(presets),
	})
}

// handleListMarkers returns the timeline markers, sorted by timestamp
func (s *Server) handleListMarkers(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	markers := s.analyzerSvc.GetMarkers()
	c.JSON(http.StatusOK, gin.H{
		"markers": markers,
		"count":   len(markers),
	})
}

// handleAddMarker adds a timeline marker
func (s *Server) handleAddMarker(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	var req struct {
		Timestamp   float64 `json:"timestamp"`
		Type        string  `json:"type" binding:"required,oneof=anomaly motion manual audio"`
		Label       string  `json:"label"`
		Description string  `json:"description"`
		Confidence  float64 `json:"confidence"`
		Color       string  `json:"color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	marker := s.analyzerSvc.AddMarker(analyzer.TimelineMarker{
		Timestamp:   req.Timestamp,
		Type:        analyzer.MarkerType(req.Type),
		Label:       req.Label,
		Description: req.Description,
		Confidence:  req.Confidence,
		Color:       req.Color,
	})
	c.JSON(http.StatusCreated, marker)
}

// handleRemoveMarker removes a marker by id
func (s *Server) handleRemoveMarker(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	id := c.Param("id")
	if !s.analyzerSvc.RemoveMarker(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Marker not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": id})
}

// handleAnalyze runs full-video analysis and returns the aggregated
// result
func (s *Server) handleAnalyze(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	result, err := s.analyzerSvc.AnalyzeVideo(c.Request.Context(), nil)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"video_path":      result.VideoPath,
		"frames_analyzed": result.FramesAnalyzed,
		"motion_frames":   result.MotionFrames,
		"anomaly_frames":  result.AnomalyFrames,
		"peak_motion":     result.PeakMotion,
		"average_motion":  result.AverageMotion,
		"anomaly_counts":  result.AnomalyCounts,
		"markers":         result.Markers,
		"elapsed":         result.Elapsed.String(),
	})
}

// handleExport re-encodes the loaded video with the active enhancements
func (s *Server) handleExport(c *gin.Context) {
	if !s.requireAnalyzer(c) {
		return
	}

	var req struct {
		OutputPath string `json:"output_path" binding:"required"`
		Format     string `json:"format"`
		VideoCodec string `json:"video_codec"`
		Quality    int    `json:"quality"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	settings := &analyzer.ExportSettings{
		Format:     req.Format,
		VideoCodec: req.VideoCodec,
		Quality:    req.Quality,
	}
	if err := s.analyzerSvc.ExportVideo(c.Request.Context(), req.OutputPath, settings); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"output_path": req.OutputPath})
}
