package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spectravision/core/internal/analyzer"
	"github.com/spectravision/core/internal/config"
	"github.com/spectravision/core/internal/decode"
	"github.com/spectravision/core/internal/enhance"
	"github.com/spectravision/core/internal/frames"
	"github.com/spectravision/core/internal/logger"
	"github.com/spectravision/core/internal/service"
	"github.com/spectravision/core/internal/state"
)

// AnalyzerService is the slice of the analyzer the HTTP layer needs.
type AnalyzerService interface {
	GetState() string
	GetMetadata() *decode.Metadata
	GetPlaybackState() analyzer.PlaybackState
	GetEnhancements() enhance.Enhancements
	GetThumbnails() []*frames.Frame
	GetCurrentFrame(ctx context.Context) (*frames.Frame, error)
	LoadVideo(ctx context.Context, path string) error
	Dispose()
	Play() error
	Pause()
	Seek(ctx context.Context, timestamp float64) error
	SeekToFrame(ctx context.Context, index int) error
	StepForward(ctx context.Context) error
	StepBackward(ctx context.Context) error
	SetPlaybackRate(rate float64) float64
	SetLoop(enabled bool, start, end float64)
	SetVolume(volume float64)
	SetMuted(muted bool)
	SetEnhancements(ctx context.Context, patch enhance.Patch) error
	AddMarker(marker analyzer.TimelineMarker) analyzer.TimelineMarker
	RemoveMarker(id string) bool
	GetMarkers() []analyzer.TimelineMarker
	AnalyzeVideo(ctx context.Context, onProgress func(float64)) (*analyzer.VideoAnalysisResult, error)
	ExportVideo(ctx context.Context, outputPath string, settings *analyzer.ExportSettings) error
}

// Server is the HTTP control surface for the analyzer
type Server struct {
	*service.ServiceBase
	config      *config.WebConfig
	logger      *logger.Logger
	httpServer  *http.Server
	router      *gin.Engine
	analyzerSvc AnalyzerService
	stateMgr    *state.Manager  // optional, for the history API
	svcMgr      *service.Manager // optional, for per-service status
	version     string
	startTime   time.Time
}

// NewServer creates the web server service
func NewServer(cfg *config.WebConfig, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	return &Server{
		ServiceBase: service.NewServiceBase("web-server", log),
		config:      cfg,
		logger:      log,
		router:      router,
		version:     "dev",
		startTime:   time.Now(),
	}
}

// SetVersion sets the application version
func (s *Server) SetVersion(version string) {
	s.version = version
}

// SetAnalyzer wires the analyzer behind the API
func (s *Server) SetAnalyzer(svc AnalyzerService) {
	s.analyzerSvc = svc
}

// SetStateManager wires the optional persistence layer for history endpoints
func (s *Server) SetStateManager(mgr *state.Manager) {
	s.stateMgr = mgr
}

// SetServiceManager wires the service manager so the status endpoint can
// report per-service lifecycle state
func (s *Server) SetServiceManager(mgr *service.Manager) {
	s.svcMgr = mgr
}

// Start starts the web server
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.LogInfo("Web server is disabled")
		return nil
	}

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// analysis and export requests can legitimately run for minutes
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.LogInfo("Starting web server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.LogError("Web server error", err, "address", addr)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		s.LogInfo("Web server started", "address", addr)
		return nil
	}
}

// Stop stops the web server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.LogInfo("Stopping web server")
	return s.httpServer.Shutdown(ctx)
}

// Name returns the service name
func (s *Server) Name() string {
	return "web-server"
}

// setupRoutes sets up all API routes
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)

		video := api.Group("/video")
		{
			video.POST("/load", s.handleLoadVideo)
			video.POST("/dispose", s.handleDisposeVideo)
			video.GET("/metadata", s.handleGetMetadata)
			video.GET("/frame", s.handleCurrentFrame)
			video.GET("/thumbnails", s.handleThumbnails)
			video.GET("/history", s.handleVideoHistory)
		}

		playback := api.Group("/playback")
		{
			playback.GET("", s.handleGetPlayback)
			playback.POST("/play", s.handlePlay)
			playback.POST("/pause", s.handlePause)
			playback.POST("/seek", s.handleSeek)
			playback.POST("/step", s.handleStep)
			playback.PUT("/rate", s.handleSetRate)
			playback.PUT("/loop", s.handleSetLoop)
			playback.PUT("/volume", s.handleSetVolume)
		}

		api.GET("/enhancements", s.handleGetEnhancements)
		api.PUT("/enhancements", s.handleSetEnhancements)
		api.GET("/presets", s.handleListPresets)

		markers := api.Group("/markers")
		{
			markers.GET("", s.handleListMarkers)
			markers.POST("", s.handleAddMarker)
			markers.DELETE("/:id", s.handleRemoveMarker)
		}

		api.POST("/analyze", s.handleAnalyze)
		api.POST("/export", s.handleExport)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

// ginLogger creates a Gin middleware for logging
func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", latency,
			"client_ip", c.ClientIP(),
		)
	}
}

// corsMiddleware creates a CORS middleware for local network access
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
