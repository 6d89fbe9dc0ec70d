package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectravision/core/internal/analyzer"
	"github.com/spectravision/core/internal/config"
	"github.com/spectravision/core/internal/decode"
	"github.com/spectravision/core/internal/frames"
	"github.com/spectravision/core/internal/logger"
	"github.com/spectravision/core/internal/service"
)

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestWebServer(t)

	w := doJSON(t, server, "GET", "/api/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, "ok", response["status"])
}

func TestHandleStatusIncludesLoadState(t *testing.T) {
	server, fake := setupTestWebServer(t)
	fake.state = analyzer.StateReady

	w := doJSON(t, server, "GET", "/api/status", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, analyzer.StateReady, response["load_state"])
	assert.Contains(t, response, "playback")
	assert.Contains(t, response, "uptime_seconds")
}

type stubService struct{ name string }

func (s *stubService) Start(ctx context.Context) error { return nil }
func (s *stubService) Stop(ctx context.Context) error  { return nil }
func (s *stubService) Name() string                    { return s.name }

func TestHandleStatusReportsServices(t *testing.T) {
	server, _ := setupTestWebServer(t)

	mgr := service.NewManager(logger.NewNopLogger())
	mgr.Register(&stubService{name: "decode-gateway"})
	require.NoError(t, mgr.Start(context.Background()))
	server.SetServiceManager(mgr)

	w := doJSON(t, server, "GET", "/api/status", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	services, ok := response["services"].([]interface{})
	require.True(t, ok, "status payload should include services")
	require.Len(t, services, 1)
	entry, ok := services[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "decode-gateway", entry["name"])
	assert.Equal(t, string(service.StatusRunning), entry["status"])
}

func TestHandleLoadVideo(t *testing.T) {
	server, fake := setupTestWebServer(t)
	fake.meta = &decode.Metadata{Duration: 12, FrameRate: 25, Width: 640, Height: 480, Codec: "h264"}

	w := doJSON(t, server, "POST", "/api/video/load", map[string]string{"path": "/clips/a.mp4"})

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, fake.loaded, 1)
	assert.Equal(t, "/clips/a.mp4", fake.loaded[0])

	response := decodeBody(t, w)
	assert.Equal(t, analyzer.StateReady, response["state"])
	meta, ok := response["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(12), meta["duration"])
}

func TestHandleLoadVideoMissingPath(t *testing.T) {
	server, fake := setupTestWebServer(t)

	w := doJSON(t, server, "POST", "/api/video/load", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, fake.loaded)
}

func TestHandleLoadVideoFailure(t *testing.T) {
	server, fake := setupTestWebServer(t)
	fake.loadErr = errors.New("probe failed")

	w := doJSON(t, server, "POST", "/api/video/load", map[string]string{"path": "/clips/bad.mp4"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	response := decodeBody(t, w)
	assert.Contains(t, response["error"], "probe failed")
}

func TestHandleDisposeVideo(t *testing.T) {
	server, fake := setupTestWebServer(t)
	fake.state = analyzer.StateReady

	w := doJSON(t, server, "POST", "/api/video/dispose", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, fake.disposed)
	response := decodeBody(t, w)
	assert.Equal(t, analyzer.StateUnloaded, response["state"])
}

func TestHandleGetMetadataWithoutVideo(t *testing.T) {
	server, _ := setupTestWebServer(t)

	w := doJSON(t, server, "GET", "/api/video/metadata", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleCurrentFramePNG(t *testing.T) {
	server, fake := setupTestWebServer(t)
	fake.frame = &frames.Frame{
		Index:     42,
		Timestamp: 1.4,
		Width:     4,
		Height:    4,
		Pix:       make([]uint8, 4*4*4),
	}

	w := doJSON(t, server, "GET", "/api/video/frame", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "42", w.Header().Get("X-Frame-Index"))
	// PNG magic bytes
	require.True(t, w.Body.Len() > 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, w.Body.Bytes()[:4])
}

func TestHandleCurrentFrameFailure(t *testing.T) {
	server, fake := setupTestWebServer(t)
	fake.frameErr = errors.New("no video loaded")

	w := doJSON(t, server, "GET", "/api/video/frame", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandlePlayPause(t *testing.T) {
	server, fake := setupTestWebServer(t)

	w := doJSON(t, server, "POST", "/api/playback/play", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, fake.playCalls)

	w = doJSON(t, server, "POST", "/api/playback/pause", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, fake.pauseCalls)
}

func TestHandleSeekByTimestamp(t *testing.T) {
	server, fake := setupTestWebServer(t)

	w := doJSON(t, server, "POST", "/api/playback/seek", map[string]float64{"timestamp": 4.5})

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, fake.seeks, 1)
	assert.Equal(t, 4.5, fake.seeks[0])
}

func TestHandleSeekByFrame(t *testing.T) {
	server, fake := setupTestWebServer(t)

	w := doJSON(t, server, "POST", "/api/playback/seek", map[string]int{"frame": 90})

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, fake.seekFrames, 1)
	assert.Equal(t, 90, fake.seekFrames[0])
}

func TestHandleSeekRequiresTarget(t *testing.T) {
	server, fake := setupTestWebServer(t)

	w := doJSON(t, server, "POST", "/api/playback/seek", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, fake.seeks)
	assert.Empty(t, fake.seekFrames)
}

func TestHandleStep(t *testing.T) {
	server, fake := setupTestWebServer(t)

	w := doJSON(t, server, "POST", "/api/playback/step", map[string]string{"direction": "forward"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, "POST", "/api/playback/step", map[string]string{"direction": "backward"})
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"forward", "backward"}, fake.steps)

	w = doJSON(t, server, "POST", "/api/playback/step", map[string]string{"direction": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSetRateEchoesClampedValue(t *testing.T) {
	server, _ := setupTestWebServer(t)

	w := doJSON(t, server, "PUT", "/api/playback/rate", map[string]float64{"rate": 99})

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, float64(4), response["rate"])
}

func TestHandleSetLoop(t *testing.T) {
	server, fake := setupTestWebServer(t)

	w := doJSON(t, server, "PUT", "/api/playback/loop", map[string]interface{}{
		"enabled": true,
		"start":   2.0,
		"end":     6.5,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, fake.playback.Loop)
	assert.Equal(t, 2.0, fake.playback.LoopStart)
	assert.Equal(t, 6.5, fake.playback.LoopEnd)
}

func TestHandleSetEnhancements(t *testing.T) {
	server, fake := setupTestWebServer(t)

	w := doJSON(t, server, "PUT", "/api/enhancements", map[string]float64{"brightness": 40})

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, fake.patches, 1)
	require.NotNil(t, fake.patches[0].Brightness)
	assert.Equal(t, float64(40), *fake.patches[0].Brightness)

	response := decodeBody(t, w)
	assert.Equal(t, float64(40), response["brightness"])
}

func TestHandleListPresets(t *testing.T) {
	server, _ := setupTestWebServer(t)

	w := doJSON(t, server, "GET", "/api/presets", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, float64(3), response["count"])
}

func TestHandleMarkersLifecycle(t *testing.T) {
	server, fake := setupTestWebServer(t)

	w := doJSON(t, server, "POST", "/api/markers", map[string]interface{}{
		"timestamp": 3.2,
		"type":      "manual",
		"label":     "knock sound",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, fake.addedMarker)
	created := decodeBody(t, w)
	id, ok := created["id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	w = doJSON(t, server, "GET", "/api/markers", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, float64(1), response["count"])

	w = doJSON(t, server, "DELETE", "/api/markers/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, "DELETE", "/api/markers/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleAddMarkerRejectsUnknownType(t *testing.T) {
	server, fake := setupTestWebServer(t)

	w := doJSON(t, server, "POST", "/api/markers", map[string]interface{}{
		"timestamp": 1.0,
		"type":      "ectoplasm",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, fake.addedMarker)
}

func TestHandleAnalyze(t *testing.T) {
	server, fake := setupTestWebServer(t)
	fake.analysis = &analyzer.VideoAnalysisResult{
		VideoPath:      "/clips/a.mp4",
		FramesAnalyzed: 300,
		MotionFrames:   12,
		AnomalyFrames:  3,
		PeakMotion:     0.4,
		AverageMotion:  0.02,
	}

	w := doJSON(t, server, "POST", "/api/analyze", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, float64(300), response["frames_analyzed"])
	assert.Equal(t, float64(12), response["motion_frames"])
	assert.Equal(t, float64(3), response["anomaly_frames"])
}

func TestHandleAnalyzeFailure(t *testing.T) {
	server, fake := setupTestWebServer(t)
	fake.analyzeErr = errors.New("no video loaded")

	w := doJSON(t, server, "POST", "/api/analyze", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleExport(t *testing.T) {
	server, fake := setupTestWebServer(t)

	w := doJSON(t, server, "POST", "/api/export", map[string]interface{}{
		"output_path": "/out/ghost.mp4",
		"format":      "mp4",
		"quality":     18,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, fake.exports, 1)
	assert.Equal(t, "/out/ghost.mp4", fake.exports[0])
}

func TestHandleExportRequiresOutputPath(t *testing.T) {
	server, fake := setupTestWebServer(t)

	w := doJSON(t, server, "POST", "/api/export", map[string]string{"format": "mp4"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, fake.exports)
}

func TestHandlersWithoutAnalyzer(t *testing.T) {
	server := NewServer(&config.WebConfig{Enabled: true}, logger.NewNopLogger())
	server.setupRoutes()

	w := doJSON(t, server, "GET", "/api/playback", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, server, "POST", "/api/analyze", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNoRouteReturnsJSON(t *testing.T) {
	server, _ := setupTestWebServer(t)

	w := doJSON(t, server, "GET", "/api/nope", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, "Not found", response["error"])
}
