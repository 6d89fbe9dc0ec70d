package frames

import (
	"fmt"
	"image"
	"image/draw"
	"math"
)

// Rect is an axis-aligned pixel-space bounding box
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the box area in pixels
func (r Rect) Area() int {
	return r.Width * r.Height
}

// Center returns the box center point
func (r Rect) Center() (float64, float64) {
	return float64(r.X) + float64(r.Width)/2, float64(r.Y) + float64(r.Height)/2
}

// AnomalyType tags the kind of visual pattern a finding describes
type AnomalyType string

const (
	AnomalyMotion        AnomalyType = "motion"
	AnomalyApparition    AnomalyType = "apparition"
	AnomalyOrbMovement   AnomalyType = "orb-movement"
	AnomalyShadowFigure  AnomalyType = "shadow-figure"
	AnomalyLightAnomaly  AnomalyType = "light-anomaly"
	AnomalyDistortion    AnomalyType = "distortion"
	AnomalyManifestation AnomalyType = "manifestation"
	AnomalyPortal        AnomalyType = "portal"
	AnomalyEnergySurge   AnomalyType = "energy-surge"
)

// Anomaly is a confidence-scored visual finding in one frame. It is never
// mutated after creation.
type Anomaly struct {
	Type        AnomalyType `json:"type"`
	Box         Rect        `json:"box"`
	Confidence  float64     `json:"confidence"` // [0,1]
	Motion      float64     `json:"motion"`     // motion/pulsation scalar
	Description string      `json:"description"`
	StartFrame  int         `json:"start_frame"`
	EndFrame    int         `json:"end_frame"`
}

// Frame is a single decoded video frame: an RGBA raster (8 bits/channel,
// row-major, width*height*4 bytes, no padding) plus its position in the
// video. A frame is owned by whichever cache entry holds it.
type Frame struct {
	Index       int       // round(timestamp * frame rate)
	Timestamp   float64   // seconds
	Width       int
	Height      int
	Pix         []uint8   // RGBA raster
	Keyframe    bool
	MotionScore float64   // optional, set by analysis
	Anomalies   []Anomaly // optional, set by analysis
}

// FrameLoadError is returned when a materialized raster fails to decode
type FrameLoadError struct {
	Path string
	Err  error
}

func (e *FrameLoadError) Error() string {
	return fmt.Sprintf("failed to load frame %s: %v", e.Path, e.Err)
}

func (e *FrameLoadError) Unwrap() error {
	return e.Err
}

// NewFrame allocates a zeroed (fully transparent black) frame
func NewFrame(index int, timestamp float64, width, height int) *Frame {
	return &Frame{
		Index:     index,
		Timestamp: timestamp,
		Width:     width,
		Height:    height,
		Pix:       make([]uint8, width*height*4),
	}
}

// FromImage converts a decoded image into a frame raster
func FromImage(img image.Image, index int, timestamp float64) *Frame {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return &Frame{
		Index:     index,
		Timestamp: timestamp,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Pix:       rgba.Pix,
	}
}

// ToImage wraps the raster in an image.RGBA sharing the pixel buffer
func (f *Frame) ToImage() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Clone returns a deep copy of the frame raster and annotations
func (f *Frame) Clone() *Frame {
	pix := make([]uint8, len(f.Pix))
	copy(pix, f.Pix)

	var anomalies []Anomaly
	if len(f.Anomalies) > 0 {
		anomalies = make([]Anomaly, len(f.Anomalies))
		copy(anomalies, f.Anomalies)
	}

	return &Frame{
		Index:       f.Index,
		Timestamp:   f.Timestamp,
		Width:       f.Width,
		Height:      f.Height,
		Pix:         pix,
		Keyframe:    f.Keyframe,
		MotionScore: f.MotionScore,
		Anomalies:   anomalies,
	}
}

// RGBA returns the channel values at (x, y)
func (f *Frame) RGBA(x, y int) (r, g, b, a uint8) {
	i := (y*f.Width + x) * 4
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3]
}

// SetRGBA sets the channel values at (x, y)
func (f *Frame) SetRGBA(x, y int, r, g, b, a uint8) {
	i := (y*f.Width + x) * 4
	f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3] = r, g, b, a
}

// Grayscale converts the raster to a luminance plane (0..255, Rec.709
// weights), one float per pixel, row-major.
func (f *Frame) Grayscale() []float64 {
	gray := make([]float64, f.Width*f.Height)
	for i := 0; i < len(gray); i++ {
		p := i * 4
		gray[i] = 0.2126*float64(f.Pix[p]) + 0.7152*float64(f.Pix[p+1]) + 0.0722*float64(f.Pix[p+2])
	}
	return gray
}

// MeanLuminance returns the average luminance of the frame (0..255)
func (f *Frame) MeanLuminance() float64 {
	if f.Width == 0 || f.Height == 0 {
		return 0
	}
	var total float64
	gray := f.Grayscale()
	for _, v := range gray {
		total += v
	}
	return total / float64(len(gray))
}

// IndexForTimestamp derives a frame index from a timestamp and frame rate
func IndexForTimestamp(timestamp, frameRate float64) int {
	return int(math.Round(timestamp * frameRate))
}
