package analyzer

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/spectravision/core/internal/enhance"
	"github.com/spectravision/core/internal/service"
)

func TestLoadVideoReachesReady(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	if a.GetState() != StateUnloaded {
		t.Fatalf("expected initial state %q, got %q", StateUnloaded, a.GetState())
	}

	if err := a.LoadVideo(context.Background(), "/clips/hallway.mp4"); err != nil {
		t.Fatalf("failed to load video: %v", err)
	}

	if a.GetState() != StateReady {
		t.Errorf("expected state %q, got %q", StateReady, a.GetState())
	}
	meta := a.GetMetadata()
	if meta == nil || meta.Duration != 10 {
		t.Errorf("expected metadata with duration 10, got %+v", meta)
	}
	pb := a.GetPlaybackState()
	if pb.CurrentTime != 0 || pb.Rate != 1 || pb.Playing {
		t.Errorf("expected reset playback state, got %+v", pb)
	}
}

func TestLoadVideoFillsThumbnailStrip(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	if err := a.LoadVideo(context.Background(), "/clips/hallway.mp4"); err != nil {
		t.Fatalf("failed to load video: %v", err)
	}

	thumbs := a.GetThumbnails()
	if len(thumbs) != a.cfg.Analyze.ThumbnailCount {
		t.Errorf("expected %d thumbnails, got %d", a.cfg.Analyze.ThumbnailCount, len(thumbs))
	}
}

func TestLoadVideoFailureKeepsPriorState(t *testing.T) {
	a, backend := newTestAnalyzer(t)

	if err := a.LoadVideo(context.Background(), "/clips/first.mp4"); err != nil {
		t.Fatalf("failed to load first video: %v", err)
	}
	if err := a.Seek(context.Background(), 3); err != nil {
		t.Fatalf("failed to seek: %v", err)
	}

	backend.probeErr = errors.New("moov atom not found")
	err := a.LoadVideo(context.Background(), "/clips/corrupt.mp4")
	if err == nil {
		t.Fatal("expected load error for corrupt video")
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *LoadError, got %T", err)
	}
	if loadErr.Path != "/clips/corrupt.mp4" {
		t.Errorf("unexpected path in load error: %q", loadErr.Path)
	}

	if a.GetState() != StateReady {
		t.Errorf("prior video should remain loaded, state is %q", a.GetState())
	}
	if got := a.GetPlaybackState().CurrentTime; got != 3 {
		t.Errorf("prior playback position should survive, got %v", got)
	}
}

func TestSeekClampsToDuration(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	if err := a.LoadVideo(context.Background(), "/clips/hallway.mp4"); err != nil {
		t.Fatalf("failed to load video: %v", err)
	}

	if err := a.Seek(context.Background(), -5); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	if got := a.GetPlaybackState().CurrentTime; got != 0 {
		t.Errorf("expected seek to clamp to 0, got %v", got)
	}

	if err := a.Seek(context.Background(), 999); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	if got := a.GetPlaybackState().CurrentTime; got != 10 {
		t.Errorf("expected seek to clamp to duration 10, got %v", got)
	}
	if a.GetPlaybackState().Seeking {
		t.Error("seeking flag should be cleared after the render commits")
	}
}

func TestSeekRequiresVideo(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	if err := a.Seek(context.Background(), 1); err == nil {
		t.Error("expected error seeking with no video loaded")
	}
}

func TestPlayRequiresVideo(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	if err := a.Play(); err == nil {
		t.Error("expected error playing with no video loaded")
	}
}

func TestSetPlaybackRateClamps(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	tests := []struct {
		in   float64
		want float64
	}{
		{0.1, 0.25},
		{0.25, 0.25},
		{1.5, 1.5},
		{4, 4},
		{10, 4},
	}
	for _, tt := range tests {
		if got := a.SetPlaybackRate(tt.in); got != tt.want {
			t.Errorf("SetPlaybackRate(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStepMovesOneFrame(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	if err := a.LoadVideo(context.Background(), "/clips/hallway.mp4"); err != nil {
		t.Fatalf("failed to load video: %v", err)
	}

	if err := a.StepForward(context.Background()); err != nil {
		t.Fatalf("step forward failed: %v", err)
	}
	if got := a.GetPlaybackState().CurrentTime; math.Abs(got-1.0/30) > 1e-9 {
		t.Errorf("expected current time 1/30, got %v", got)
	}

	if err := a.StepBackward(context.Background()); err != nil {
		t.Fatalf("step backward failed: %v", err)
	}
	if got := a.GetPlaybackState().CurrentTime; got != 0 {
		t.Errorf("expected current time back at 0, got %v", got)
	}

	// stepping below zero clamps
	if err := a.StepBackward(context.Background()); err != nil {
		t.Fatalf("step backward failed: %v", err)
	}
	if got := a.GetPlaybackState().CurrentTime; got != 0 {
		t.Errorf("expected clamp at 0, got %v", got)
	}
}

func TestGetCurrentFrameCaches(t *testing.T) {
	a, backend := newTestAnalyzer(t)
	if err := a.LoadVideo(context.Background(), "/clips/hallway.mp4"); err != nil {
		t.Fatalf("failed to load video: %v", err)
	}

	first, err := a.GetCurrentFrame(context.Background())
	if err != nil {
		t.Fatalf("failed to get frame: %v", err)
	}
	second, err := a.GetCurrentFrame(context.Background())
	if err != nil {
		t.Fatalf("failed to get frame: %v", err)
	}

	if first != second {
		t.Error("second call should return the cached frame")
	}
	if got := backend.renderCount(); got != 1 {
		t.Errorf("expected exactly 1 extraction, got %d", got)
	}
}

func TestSetEnhancementsBrightensCurrentFrame(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	if err := a.LoadVideo(context.Background(), "/clips/hallway.mp4"); err != nil {
		t.Fatalf("failed to load video: %v", err)
	}

	baseline, err := a.GetCurrentFrame(context.Background())
	if err != nil {
		t.Fatalf("failed to get baseline frame: %v", err)
	}
	baseMean := meanRGB(baseline)

	if err := a.SetEnhancements(context.Background(), enhance.Patch{Brightness: fptr(50)}); err != nil {
		t.Fatalf("failed to set enhancements: %v", err)
	}

	brightened, err := a.GetCurrentFrame(context.Background())
	if err != nil {
		t.Fatalf("failed to get brightened frame: %v", err)
	}
	if got := meanRGB(brightened); got <= baseMean {
		t.Errorf("expected mean luminance above %v after brightness boost, got %v", baseMean, got)
	}

	if got := a.GetEnhancements().Brightness; got != 50 {
		t.Errorf("expected merged brightness 50, got %v", got)
	}
}

func TestSetEnhancementsWithoutVideoOnlyMerges(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	if err := a.SetEnhancements(context.Background(), enhance.Patch{Contrast: fptr(20)}); err != nil {
		t.Fatalf("merge without video should succeed: %v", err)
	}
	if got := a.GetEnhancements().Contrast; got != 20 {
		t.Errorf("expected contrast 20, got %v", got)
	}
}

func TestMarkersStaySortedForAnyInsertionOrder(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	for _, ts := range []float64{5.2, 0.8, 3.1, 9.9, 3.1, 0.1} {
		m := a.AddMarker(TimelineMarker{Timestamp: ts, Type: MarkerManual, Label: "note"})
		if m.ID == "" {
			t.Fatal("expected an assigned marker ID")
		}
	}

	markers := a.GetMarkers()
	if len(markers) != 6 {
		t.Fatalf("expected 6 markers, got %d", len(markers))
	}
	if !sort.SliceIsSorted(markers, func(i, j int) bool {
		return markers[i].Timestamp < markers[j].Timestamp
	}) {
		t.Errorf("markers not sorted by timestamp: %+v", markers)
	}
}

func TestRemoveMarker(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	m := a.AddMarker(TimelineMarker{Timestamp: 2, Type: MarkerManual})
	a.AddMarker(TimelineMarker{Timestamp: 4, Type: MarkerManual})

	if !a.RemoveMarker(m.ID) {
		t.Fatal("expected removal to succeed")
	}
	if a.RemoveMarker(m.ID) {
		t.Error("second removal of the same marker should fail")
	}
	if got := len(a.GetMarkers()); got != 1 {
		t.Errorf("expected 1 marker left, got %d", got)
	}
}

func TestExportVideoMapsEnhancements(t *testing.T) {
	a, backend := newTestAnalyzer(t)
	if err := a.LoadVideo(context.Background(), "/clips/hallway.mp4"); err != nil {
		t.Fatalf("failed to load video: %v", err)
	}
	if err := a.SetEnhancements(context.Background(), enhance.Patch{Brightness: fptr(30), Sharpness: fptr(40)}); err != nil {
		t.Fatalf("failed to set enhancements: %v", err)
	}

	err := a.ExportVideo(context.Background(), "/out/enhanced.mp4", &ExportSettings{
		Format:     "mp4",
		VideoCodec: "libx264",
		Quality:    20,
	})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	calls := backend.exportCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 export call, got %d", len(calls))
	}
	call := calls[0]
	if call.inputPath != "/clips/hallway.mp4" || call.outputPath != "/out/enhanced.mp4" {
		t.Errorf("unexpected export paths: %+v", call)
	}
	if call.opts.Brightness != 30 || call.opts.Sharpness != 40 {
		t.Errorf("enhancements not mapped into export options: %+v", call.opts)
	}
	if call.opts.Format != "mp4" || call.opts.VideoCodec != "libx264" || call.opts.Quality != 20 {
		t.Errorf("export settings not applied: %+v", call.opts)
	}
}

func TestExportVideoRequiresVideo(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	if err := a.ExportVideo(context.Background(), "/out/x.mp4", nil); err == nil {
		t.Error("expected error exporting with no video loaded")
	}
}

func TestDisposeReturnsToUnloaded(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	if err := a.LoadVideo(context.Background(), "/clips/hallway.mp4"); err != nil {
		t.Fatalf("failed to load video: %v", err)
	}
	a.AddMarker(TimelineMarker{Timestamp: 1, Type: MarkerManual})
	if _, err := a.GetCurrentFrame(context.Background()); err != nil {
		t.Fatalf("failed to get frame: %v", err)
	}

	a.Dispose()

	if a.GetState() != StateUnloaded {
		t.Errorf("expected state %q, got %q", StateUnloaded, a.GetState())
	}
	if a.GetMetadata() != nil {
		t.Error("metadata should be cleared")
	}
	if got := len(a.GetMarkers()); got != 0 {
		t.Errorf("expected no markers, got %d", got)
	}
	if got := len(a.GetThumbnails()); got != 0 {
		t.Errorf("expected no thumbnails, got %d", got)
	}
}

func TestEventsPublished(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	bus := service.NewEventBus(16)
	defer bus.Close()
	a.SetEventBus(bus)
	loaded := bus.Subscribe(service.EventTypeVideoLoaded)
	markerAdded := bus.Subscribe(service.EventTypeMarkerAdded)

	if err := a.LoadVideo(context.Background(), "/clips/hallway.mp4"); err != nil {
		t.Fatalf("failed to load video: %v", err)
	}
	a.AddMarker(TimelineMarker{Timestamp: 1, Type: MarkerManual})

	select {
	case ev := <-loaded:
		if ev.Data["path"] != "/clips/hallway.mp4" {
			t.Errorf("unexpected event payload: %+v", ev.Data)
		}
	default:
		t.Error("expected a video.loaded event")
	}

	select {
	case ev := <-markerAdded:
		if ev.Data["timestamp"] != 1.0 {
			t.Errorf("unexpected marker event payload: %+v", ev.Data)
		}
	default:
		t.Error("expected a marker added event")
	}
}

func TestSetLoopAndVolume(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	a.SetLoop(true, 2, 5)
	pb := a.GetPlaybackState()
	if !pb.Loop || pb.LoopStart != 2 || pb.LoopEnd != 5 {
		t.Errorf("loop settings not applied: %+v", pb)
	}

	a.SetVolume(1.7)
	if got := a.GetPlaybackState().Volume; got != 1 {
		t.Errorf("expected volume clamp to 1, got %v", got)
	}
	a.SetVolume(-0.5)
	if got := a.GetPlaybackState().Volume; got != 0 {
		t.Errorf("expected volume clamp to 0, got %v", got)
	}

	a.SetMuted(true)
	if !a.GetPlaybackState().Muted {
		t.Error("expected muted")
	}
}
