package motion

import (
	"math"

	"github.com/spectravision/core/internal/frames"
)

// Motion pattern classifications.
const (
	PatternStationary = "stationary"
	PatternLinear     = "linear"
	PatternCircular   = "circular"
	PatternErratic    = "erratic"
)

// updateHeatmap decays the accumulator and folds in the latest mask.
func (d *Detector) updateHeatmap(mask []uint8) {
	if len(d.heatmap) != len(mask) {
		d.heatmap = make([]float64, len(mask))
	}
	for i := range d.heatmap {
		d.heatmap[i] *= heatmapDecay
		if mask[i] != 0 {
			d.heatmap[i] += 1
		}
	}
}

// GetMotionHeatmap renders the decaying accumulator as a false-color
// frame. Intensity maps through four bands, blue to green to yellow to
// red, with alpha proportional to intensity.
func (d *Detector) GetMotionHeatmap() *frames.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()

	f := frames.NewFrame(0, 0, d.width, d.height)
	if len(d.heatmap) == 0 {
		return f
	}

	// The accumulator converges toward 1/(1-decay) under constant motion
	scale := 1 - heatmapDecay

	for i, heat := range d.heatmap {
		v := heat * scale
		if v > 1 {
			v = 1
		}
		if v <= 0 {
			continue
		}
		r, g, b := heatColor(v)
		f.Pix[i*4] = r
		f.Pix[i*4+1] = g
		f.Pix[i*4+2] = b
		f.Pix[i*4+3] = uint8(v * 255)
	}
	return f
}

// heatColor maps a normalized intensity onto the four-band gradient.
func heatColor(v float64) (r, g, b uint8) {
	switch {
	case v < 0.25: // blue to green
		t := v / 0.25
		return 0, uint8(t * 255), uint8((1 - t) * 255)
	case v < 0.5: // green to yellow
		t := (v - 0.25) / 0.25
		return uint8(t * 255), 255, 0
	case v < 0.75: // yellow to red
		t := (v - 0.5) / 0.25
		return 255, uint8((1 - t) * 255), 0
	default: // saturated red
		return 255, 0, 0
	}
}

// DetectMotionPattern classifies a tracked region sequence as linear,
// circular, erratic, or stationary using speed and direction heuristics.
// The classification is heuristic, not physically rigorous.
func DetectMotionPattern(regions []Region) string {
	if len(regions) == 0 {
		return PatternStationary
	}

	var sumSpeed float64
	for _, r := range regions {
		sumSpeed += r.Speed
	}
	avgSpeed := sumSpeed / float64(len(regions))
	if avgSpeed < 0.5 {
		return PatternStationary
	}

	if len(regions) < 3 {
		return PatternLinear
	}

	// Direction spread over the sequence decides the shape
	var spread float64
	var turns int
	for i := 1; i < len(regions); i++ {
		delta := angleDelta(regions[i].Direction, regions[i-1].Direction)
		spread += math.Abs(delta)
		if delta > 15 {
			turns++
		} else if delta < -15 {
			turns--
		}
	}
	avgDelta := spread / float64(len(regions)-1)

	switch {
	case avgDelta < 15:
		return PatternLinear
	case avgDelta < 60 && abs(turns) >= len(regions)/2:
		// Consistent turning in one direction
		return PatternCircular
	default:
		return PatternErratic
	}
}

// angleDelta returns the signed smallest difference between two angles
// in degrees, in (-180, 180].
func angleDelta(a, b float64) float64 {
	d := math.Mod(a-b, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
