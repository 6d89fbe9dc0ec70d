package motion

import (
	"fmt"
	"math"
	"sync"

	"github.com/spectravision/core/internal/frames"
	"github.com/spectravision/core/internal/logger"
)

// Supported detection algorithms.
const (
	AlgorithmFrameDiff             = "frame_diff"
	AlgorithmOpticalFlow           = "optical_flow"
	AlgorithmBackgroundSubtraction = "background_subtraction"
)

const (
	backgroundLearningRate = 0.05
	heatmapDecay           = 0.9
	morphRadius            = 2
)

// Config contains configuration for the motion detector.
type Config struct {
	Algorithm     string
	Sensitivity   float64
	Threshold     float64 // grayscale delta, 0-255
	MinArea       int
	MaxArea       int
	History       int
	IgnoreRegions []frames.Rect
}

// ConfigPatch is a partial configuration merged into the active config.
// Nil fields are left unchanged.
type ConfigPatch struct {
	Algorithm     *string
	Sensitivity   *float64
	Threshold     *float64
	MinArea       *int
	MaxArea       *int
	History       *int
	IgnoreRegions *[]frames.Rect
}

// Region is one connected motion component found between two frames.
type Region struct {
	Box          frames.Rect `json:"box"`
	Intensity    float64     `json:"intensity"`
	Direction    float64     `json:"direction"` // degrees
	Speed        float64     `json:"speed"`     // pixels per frame
	FrameIndices []int       `json:"frame_indices"`
}

// Result is the outcome of one frame-pair comparison.
type Result struct {
	Intensity float64  `json:"intensity"` // fraction of pixels in motion, 0-1
	Regions   []Region `json:"regions"`
	Mask      []uint8  `json:"-"` // binary, width*height
}

// Detector compares consecutive frames and extracts bounded motion
// regions. It keeps a running background model and a decaying motion
// accumulator across calls; Initialize resets both.
type Detector struct {
	mu sync.Mutex

	cfg    Config
	log    *logger.Logger
	width  int
	height int

	background []float64 // running-average grayscale model
	heatmap    []float64 // decaying motion accumulator
}

// NewDetector creates a motion detector with the given configuration.
func NewDetector(cfg Config, log *logger.Logger) *Detector {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmFrameDiff
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 25
	}
	if cfg.MinArea <= 0 {
		cfg.MinArea = 64
	}
	if cfg.MaxArea <= 0 {
		cfg.MaxArea = 1 << 20
	}
	return &Detector{cfg: cfg, log: log}
}

// Initialize sizes the detector for a frame geometry and resets the
// background model and heatmap.
func (d *Detector) Initialize(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.width = width
	d.height = height
	d.background = nil
	d.heatmap = make([]float64, width*height)

	d.log.Debug("Motion detector initialized",
		"width", width,
		"height", height,
		"algorithm", d.cfg.Algorithm,
	)
}

// Configure merges a partial configuration into the active one.
func (d *Detector) Configure(patch ConfigPatch) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if patch.Algorithm != nil {
		d.cfg.Algorithm = *patch.Algorithm
	}
	if patch.Sensitivity != nil {
		d.cfg.Sensitivity = *patch.Sensitivity
	}
	if patch.Threshold != nil {
		d.cfg.Threshold = *patch.Threshold
	}
	if patch.MinArea != nil {
		d.cfg.MinArea = *patch.MinArea
	}
	if patch.MaxArea != nil {
		d.cfg.MaxArea = *patch.MaxArea
	}
	if patch.History != nil {
		d.cfg.History = *patch.History
	}
	if patch.IgnoreRegions != nil {
		d.cfg.IgnoreRegions = *patch.IgnoreRegions
	}
}

// GetConfig returns a copy of the active configuration.
func (d *Detector) GetConfig() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// DetectMotion compares two consecutive frames and returns the motion
// intensity, the connected regions within the configured area bounds,
// and the binary motion mask.
func (d *Detector) DetectMotion(prev, next *frames.Frame) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev == nil || next == nil {
		return nil, fmt.Errorf("motion detection requires two frames")
	}
	if prev.Width != next.Width || prev.Height != next.Height {
		return nil, fmt.Errorf("frame dimensions differ: %dx%d vs %dx%d",
			prev.Width, prev.Height, next.Width, next.Height)
	}
	if d.width != next.Width || d.height != next.Height {
		// Lazily adopt the frame geometry
		d.width = next.Width
		d.height = next.Height
		d.background = nil
		d.heatmap = make([]float64, d.width*d.height)
	}

	prevGray := prev.Grayscale()
	nextGray := next.Grayscale()

	var mask []uint8
	var flowX, flowY []float64

	switch d.cfg.Algorithm {
	case AlgorithmOpticalFlow:
		mask, flowX, flowY = d.opticalFlowMask(prevGray, nextGray)
	case AlgorithmBackgroundSubtraction:
		mask = d.backgroundMask(nextGray)
	case AlgorithmFrameDiff:
		mask = d.frameDiffMask(prevGray, nextGray)
	default:
		return nil, fmt.Errorf("unknown motion algorithm: %s", d.cfg.Algorithm)
	}

	mask = morphClose(mask, d.width, d.height, morphRadius)
	d.zeroIgnoreRegions(mask)

	regions := d.extractRegions(mask, flowX, flowY, prev.Index, next.Index)

	motionPixels := 0
	for _, v := range mask {
		if v != 0 {
			motionPixels++
		}
	}
	intensity := float64(motionPixels) / float64(len(mask))

	d.updateHeatmap(mask)

	return &Result{
		Intensity: intensity,
		Regions:   regions,
		Mask:      mask,
	}, nil
}

// zeroIgnoreRegions clears masked-out rectangles before region extraction.
func (d *Detector) zeroIgnoreRegions(mask []uint8) {
	for _, r := range d.cfg.IgnoreRegions {
		for y := r.Y; y < r.Y+r.Height; y++ {
			if y < 0 || y >= d.height {
				continue
			}
			for x := r.X; x < r.X+r.Width; x++ {
				if x < 0 || x >= d.width {
					continue
				}
				mask[y*d.width+x] = 0
			}
		}
	}
}

// extractRegions runs 4-connected flood fill over the mask and keeps
// components whose pixel area falls inside the configured bounds.
func (d *Detector) extractRegions(mask []uint8, flowX, flowY []float64, prevIndex, nextIndex int) []Region {
	w, h := d.width, d.height
	visited := make([]bool, len(mask))
	regions := make([]Region, 0)

	for start := range mask {
		if mask[start] == 0 || visited[start] {
			continue
		}

		// Iterative flood fill
		stack := []int{start}
		visited[start] = true

		minX, minY := w, h
		maxX, maxY := 0, 0
		area := 0
		var sumDX, sumDY float64

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			x, y := idx%w, idx/w
			area++
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
			if flowX != nil {
				sumDX += flowX[idx]
				sumDY += flowY[idx]
			}

			if x > 0 && mask[idx-1] != 0 && !visited[idx-1] {
				visited[idx-1] = true
				stack = append(stack, idx-1)
			}
			if x < w-1 && mask[idx+1] != 0 && !visited[idx+1] {
				visited[idx+1] = true
				stack = append(stack, idx+1)
			}
			if y > 0 && mask[idx-w] != 0 && !visited[idx-w] {
				visited[idx-w] = true
				stack = append(stack, idx-w)
			}
			if y < h-1 && mask[idx+w] != 0 && !visited[idx+w] {
				visited[idx+w] = true
				stack = append(stack, idx+w)
			}
		}

		if area < d.cfg.MinArea || area > d.cfg.MaxArea {
			continue
		}

		box := frames.Rect{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
		region := Region{
			Box:          box,
			Intensity:    float64(area) / float64(box.Area()),
			FrameIndices: []int{prevIndex, nextIndex},
		}
		if flowX != nil && area > 0 {
			avgDX := sumDX / float64(area)
			avgDY := sumDY / float64(area)
			region.Direction = math.Atan2(avgDY, avgDX) * 180 / math.Pi
			region.Speed = math.Hypot(avgDX, avgDY)
		}
		regions = append(regions, region)
	}

	return regions
}

// morphClose applies dilation then erosion with a square structuring
// element, bridging small gaps in the binary mask.
func morphClose(mask []uint8, w, h, radius int) []uint8 {
	return erode(dilate(mask, w, h, radius), w, h, radius)
}

func dilate(mask []uint8, w, h, radius int) []uint8 {
	out := make([]uint8, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask[y*w+x] == 0 {
				continue
			}
			for dy := -radius; dy <= radius; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -radius; dx <= radius; dx++ {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					out[yy*w+xx] = 1
				}
			}
		}
	}
	return out
}

func erode(mask []uint8, w, h, radius int) []uint8 {
	out := make([]uint8, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask[y*w+x] == 0 {
				continue
			}
			keep := true
			for dy := -radius; dy <= radius && keep; dy++ {
				yy := y + dy
				for dx := -radius; dx <= radius; dx++ {
					xx := x + dx
					if yy < 0 || yy >= h || xx < 0 || xx >= w || mask[yy*w+xx] == 0 {
						keep = false
						break
					}
				}
			}
			if keep {
				out[y*w+x] = 1
			}
		}
	}
	return out
}
