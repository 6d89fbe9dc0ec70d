package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spectravision/core/internal/analyzer"
	"github.com/spectravision/core/internal/anomaly"
	"github.com/spectravision/core/internal/config"
	"github.com/spectravision/core/internal/decode"
	"github.com/spectravision/core/internal/frames"
	"github.com/spectravision/core/internal/logger"
	"github.com/spectravision/core/internal/motion"
	"github.com/spectravision/core/internal/service"
	"github.com/spectravision/core/internal/state"
	"github.com/spectravision/core/internal/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (short)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting SpectraVision analyzer",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Decode toolchain and gateway
	tools, err := decode.NewToolchain(cfg.Analyzer.Decode.FFmpegPath, cfg.Analyzer.Decode.FFprobePath, log)
	if err != nil {
		log.Error("Decode toolchain unavailable", "error", err)
		os.Exit(1)
	}
	gateway := decode.NewGateway(tools, cfg.Analyzer.Decode.ScratchDir, cfg.Analyzer.Decode.Timeout, log)
	defer gateway.Cleanup()

	extractor := frames.NewExtractor(gateway, log)

	// Optional persistence
	var stateMgr *state.Manager
	if cfg.Analyzer.State.Enabled {
		stateMgr, err = state.NewManager(cfg, log)
		if err != nil {
			log.Error("Failed to open state database", "error", err)
			os.Exit(1)
		}
		defer stateMgr.Close()

		recovered, err := stateMgr.RecoverState(ctx)
		if err != nil {
			log.Warn("State recovery failed", "error", err)
		} else {
			log.Info("Recovered persisted state",
				"videos", len(recovered.Videos),
				"markers", len(recovered.Markers),
			)
		}
	}

	// Detectors
	motionDet := motion.NewDetector(motion.Config{
		Algorithm:   cfg.Analyzer.Motion.Algorithm,
		Sensitivity: cfg.Analyzer.Motion.Sensitivity,
		Threshold:   cfg.Analyzer.Motion.Threshold,
		MinArea:     cfg.Analyzer.Motion.MinArea,
		MaxArea:     cfg.Analyzer.Motion.MaxArea,
		History:     cfg.Analyzer.Motion.History,
	}, log)
	anomalyDet := anomaly.NewDetector(cfg.Analyzer.Anomaly.ConfidenceThreshold, log)

	// Orchestrator
	analyzerSvc := analyzer.NewAnalyzer(
		cfg.Analyzer,
		gateway,
		extractor,
		gateway,
		motionDet,
		anomalyDet,
		stateMgr,
		log,
	)

	// Web control surface
	webSrv := web.NewServer(&cfg.Analyzer.Web, log)
	webSrv.SetVersion(version)
	webSrv.SetAnalyzer(analyzerSvc)
	if stateMgr != nil {
		webSrv.SetStateManager(stateMgr)
	}

	// Register and start services
	svcMgr := service.NewManager(log)
	svcMgr.Register(analyzerSvc)
	svcMgr.Register(webSrv)
	webSrv.SetServiceManager(svcMgr)

	// Log analysis and export completions regardless of which client
	// triggered them
	bus := svcMgr.GetEventBus()
	bus.SubscribeWithHandler(ctx, service.EventTypeAnalysisComplete, func(ctx context.Context, event service.Event) error {
		log.Info("Analysis complete", "source", event.Source, "data", event.Data)
		return nil
	})
	bus.SubscribeWithHandler(ctx, service.EventTypeExportComplete, func(ctx context.Context, event service.Event) error {
		log.Info("Export complete", "source", event.Source, "data", event.Data)
		return nil
	})

	if err := svcMgr.Start(ctx); err != nil {
		log.Error("Failed to start services", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svcMgr.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Shutdown complete")
}
