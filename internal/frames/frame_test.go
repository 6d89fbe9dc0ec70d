package frames

import (
	"image"
	"image/color"
	"testing"
)

func TestFromImageToImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	src.Set(0, 0, color.RGBA{R: 255, A: 255})
	src.Set(3, 1, color.RGBA{G: 128, B: 64, A: 255})

	frame := FromImage(src, 7, 0.25)

	if frame.Width != 4 || frame.Height != 2 {
		t.Fatalf("Expected 4x2 frame, got %dx%d", frame.Width, frame.Height)
	}
	if frame.Index != 7 || frame.Timestamp != 0.25 {
		t.Errorf("Expected index 7 at 0.25s, got %d at %v", frame.Index, frame.Timestamp)
	}
	if len(frame.Pix) != 4*2*4 {
		t.Fatalf("Expected %d raster bytes, got %d", 4*2*4, len(frame.Pix))
	}

	r, _, _, a := frame.RGBA(0, 0)
	if r != 255 || a != 255 {
		t.Errorf("Expected red pixel at (0,0), got r=%d a=%d", r, a)
	}
	_, g, b, _ := frame.RGBA(3, 1)
	if g != 128 || b != 64 {
		t.Errorf("Expected g=128 b=64 at (3,1), got g=%d b=%d", g, b)
	}

	img := frame.ToImage()
	if got := img.RGBAAt(0, 0); got.R != 255 {
		t.Errorf("ToImage lost pixel data: %+v", got)
	}
}

func TestGrayscale(t *testing.T) {
	f := NewFrame(0, 0, 2, 1)
	f.SetRGBA(0, 0, 255, 255, 255, 255)
	f.SetRGBA(1, 0, 0, 0, 0, 255)

	gray := f.Grayscale()
	if len(gray) != 2 {
		t.Fatalf("Expected 2 luminance samples, got %d", len(gray))
	}
	if gray[0] < 254.9 || gray[0] > 255.1 {
		t.Errorf("Expected white pixel luminance 255, got %v", gray[0])
	}
	if gray[1] != 0 {
		t.Errorf("Expected black pixel luminance 0, got %v", gray[1])
	}
}

func TestCloneIndependence(t *testing.T) {
	f := NewUniformFrame(3, 4, 4, 100)
	f.Anomalies = []Anomaly{{Type: AnomalyOrbMovement, Confidence: 0.8}}

	clone := f.Clone()
	clone.SetRGBA(0, 0, 0, 0, 0, 0)
	clone.Anomalies[0].Confidence = 0.1

	if r, _, _, _ := f.RGBA(0, 0); r != 100 {
		t.Error("Mutating clone raster affected original")
	}
	if f.Anomalies[0].Confidence != 0.8 {
		t.Error("Mutating clone anomalies affected original")
	}
}

func TestIndexForTimestamp(t *testing.T) {
	tests := []struct {
		ts, fps  float64
		expected int
	}{
		{5.0, 30, 150},
		{0, 30, 0},
		{1.0 / 3.0, 30, 10},
		{0.0167, 29.97, 1},
	}
	for _, tt := range tests {
		if got := IndexForTimestamp(tt.ts, tt.fps); got != tt.expected {
			t.Errorf("IndexForTimestamp(%v, %v) = %d, want %d", tt.ts, tt.fps, got, tt.expected)
		}
	}
}

func TestRectHelpers(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 4, Height: 6}
	if r.Area() != 24 {
		t.Errorf("Expected area 24, got %d", r.Area())
	}
	cx, cy := r.Center()
	if cx != 12 || cy != 23 {
		t.Errorf("Expected center (12,23), got (%v,%v)", cx, cy)
	}
}

func TestPatternGlob(t *testing.T) {
	tests := []struct {
		pattern  string
		expected string
	}{
		{"/tmp/seq_%05d.png", "/tmp/seq_*.png"},
		{"/tmp/seq_%d.png", "/tmp/seq_*.png"},
		{"/tmp/plain.png", "/tmp/plain.png"},
	}
	for _, tt := range tests {
		if got := patternGlob(tt.pattern); got != tt.expected {
			t.Errorf("patternGlob(%q) = %q, want %q", tt.pattern, got, tt.expected)
		}
	}
}

func TestBlockMatchStatic(t *testing.T) {
	a := NewUniformFrame(0, 64, 48, 80)
	b := NewUniformFrame(1, 64, 48, 80)

	field := BlockMatch(a, b)
	if field.Cols != 4 || field.Rows != 3 {
		t.Fatalf("Expected 4x3 blocks, got %dx%d", field.Cols, field.Rows)
	}
	for _, v := range field.Vectors {
		if v.DX != 0 || v.DY != 0 {
			t.Errorf("Static frames produced motion vector (%d,%d) at (%d,%d)", v.DX, v.DY, v.X, v.Y)
		}
		if v.Score != 0 {
			t.Errorf("Static frames produced nonzero SSD %v", v.Score)
		}
	}
}

func TestBlockMatchShift(t *testing.T) {
	// A bright patch shifted 4px right between frames
	a := NewFrameWithPatch(0, 64, 48, 20, Rect{X: 16, Y: 16, Width: 16, Height: 16}, 220)
	b := NewFrameWithPatch(1, 64, 48, 20, Rect{X: 20, Y: 16, Width: 16, Height: 16}, 220)

	field := BlockMatch(a, b)

	// The block at the patch origin should track the shift
	var found bool
	for _, v := range field.Vectors {
		if v.X == 16 && v.Y == 16 {
			found = true
			if v.DX != 4 || v.DY != 0 {
				t.Errorf("Expected displacement (4,0), got (%d,%d)", v.DX, v.DY)
			}
			if v.Score != 0 {
				t.Errorf("Expected exact match, got SSD %v", v.Score)
			}
		}
	}
	if !found {
		t.Fatal("No vector for the patch block")
	}
}
