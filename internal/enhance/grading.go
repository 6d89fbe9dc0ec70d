package enhance

import (
	"math"
	"sort"

	"github.com/spectravision/core/internal/frames"
)

// CurvePoint is one control point of a tone curve, in 0-255 space.
type CurvePoint struct {
	In  float64 `json:"in"`
	Out float64 `json:"out"`
}

// ColorCorrectionParams drives the color grading pass: white balance,
// per-channel lift/gamma/gain, hue rotation, vibrance, and optional
// tone curves. Channel arrays are ordered R, G, B.
type ColorCorrectionParams struct {
	Temperature float64 `json:"temperature"` // -100..100
	Tint        float64 `json:"tint"`        // -100..100

	Lift  [3]float64 `json:"lift"`  // shadows, 0 neutral
	Gamma [3]float64 `json:"gamma"` // midtones, 1 neutral
	Gain  [3]float64 `json:"gain"`  // highlights, 1 neutral

	HueShift float64 `json:"hue_shift"` // degrees
	Vibrance float64 `json:"vibrance"`  // -100..100

	CurveRed    []CurvePoint `json:"curve_red,omitempty"`
	CurveGreen  []CurvePoint `json:"curve_green,omitempty"`
	CurveBlue   []CurvePoint `json:"curve_blue,omitempty"`
	CurveMaster []CurvePoint `json:"curve_master,omitempty"`
}

// NeutralColorCorrection returns identity grading parameters.
func NeutralColorCorrection() ColorCorrectionParams {
	return ColorCorrectionParams{
		Gamma: [3]float64{1, 1, 1},
		Gain:  [3]float64{1, 1, 1},
	}
}

// ApplyColorGrading composes white balance, lift/gamma/gain, hue
// rotation, vibrance, and tone curves over a copy of the frame.
func ApplyColorGrading(frame *frames.Frame, p ColorCorrectionParams) *frames.Frame {
	out := frame.Clone()

	if p.Temperature != 0 || p.Tint != 0 {
		applyWhiteBalance(out, p.Temperature, p.Tint)
	}
	if liftGammaGainActive(p) {
		applyLiftGammaGain(out, p.Lift, p.Gamma, p.Gain)
	}
	if p.HueShift != 0 {
		applyHueShift(out, p.HueShift)
	}
	if p.Vibrance != 0 {
		applyVibrance(out, p.Vibrance)
	}
	applyToneCurves(out, p)

	return out
}

func liftGammaGainActive(p ColorCorrectionParams) bool {
	for c := 0; c < 3; c++ {
		if p.Lift[c] != 0 {
			return true
		}
		if p.Gamma[c] != 1 && p.Gamma[c] != 0 {
			return true
		}
		if p.Gain[c] != 1 && p.Gain[c] != 0 {
			return true
		}
	}
	return false
}

// applyLiftGammaGain maps each channel through
// ((v/255)*(1-lift)+lift)^(1/gamma)*gain. Zero gamma or gain is read
// as neutral.
func applyLiftGammaGain(f *frames.Frame, lift, gamma, gain [3]float64) {
	var luts [3][256]uint8
	for c := 0; c < 3; c++ {
		g := gamma[c]
		if g <= 0 {
			g = 1
		}
		k := gain[c]
		if k == 0 {
			k = 1
		}
		for i := 0; i < 256; i++ {
			v := float64(i)/255*(1-lift[c]) + lift[c]
			if v < 0 {
				v = 0
			}
			luts[c][i] = clampByte(math.Pow(v, 1/g) * k * 255)
		}
	}
	for i := 0; i < len(f.Pix); i += 4 {
		f.Pix[i] = luts[0][f.Pix[i]]
		f.Pix[i+1] = luts[1][f.Pix[i+1]]
		f.Pix[i+2] = luts[2][f.Pix[i+2]]
	}
}

func applyHueShift(f *frames.Frame, degrees float64) {
	eachPixel(f, func(r, g, b float64) (float64, float64, float64) {
		h, s, v := rgbToHSV(r, g, b)
		h = math.Mod(h+degrees, 360)
		if h < 0 {
			h += 360
		}
		return hsvToRGB(h, s, v)
	})
}

// applyVibrance boosts saturation weighted inversely by the existing
// saturation, so muted pixels shift more than already-vivid ones.
func applyVibrance(f *frames.Frame, vibrance float64) {
	amount := vibrance / 100
	eachPixel(f, func(r, g, b float64) (float64, float64, float64) {
		h, s, v := rgbToHSV(r, g, b)
		s += amount * (1 - s) * s * 2
		if s < 0 {
			s = 0
		} else if s > 1 {
			s = 1
		}
		return hsvToRGB(h, s, v)
	})
}

func applyToneCurves(f *frames.Frame, p ColorCorrectionParams) {
	apply := func(points []CurvePoint, channel int) {
		if len(points) == 0 {
			return
		}
		lut := buildCurveLUT(points)
		for i := channel; i < len(f.Pix); i += 4 {
			f.Pix[i] = lut[f.Pix[i]]
		}
	}
	apply(p.CurveRed, 0)
	apply(p.CurveGreen, 1)
	apply(p.CurveBlue, 2)

	if len(p.CurveMaster) > 0 {
		lut := buildCurveLUT(p.CurveMaster)
		for i := 0; i < len(f.Pix); i += 4 {
			f.Pix[i] = lut[f.Pix[i]]
			f.Pix[i+1] = lut[f.Pix[i+1]]
			f.Pix[i+2] = lut[f.Pix[i+2]]
		}
	}
}

// buildCurveLUT linearly interpolates sorted control points into a
// 256-entry table, forcing (0,0) and (255,255) endpoints when absent.
func buildCurveLUT(points []CurvePoint) [256]uint8 {
	sorted := make([]CurvePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].In < sorted[j].In })

	if sorted[0].In > 0 {
		sorted = append([]CurvePoint{{In: 0, Out: 0}}, sorted...)
	}
	if sorted[len(sorted)-1].In < 255 {
		sorted = append(sorted, CurvePoint{In: 255, Out: 255})
	}

	var lut [256]uint8
	seg := 0
	for i := 0; i < 256; i++ {
		x := float64(i)
		for seg < len(sorted)-2 && x > sorted[seg+1].In {
			seg++
		}
		a, b := sorted[seg], sorted[seg+1]
		if b.In == a.In {
			lut[i] = clampByte(b.Out)
			continue
		}
		t := (x - a.In) / (b.In - a.In)
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
		lut[i] = clampByte(a.Out + t*(b.Out-a.Out))
	}
	return lut
}

// rgbToHSV converts 0-255 RGB to hue in degrees and saturation/value
// in 0-1.
func rgbToHSV(r, g, b float64) (h, s, v float64) {
	r, g, b = r/255, g/255, b/255
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	v = max
	delta := max - min

	if max > 0 {
		s = delta / max
	}
	if delta == 0 {
		return 0, s, v
	}

	switch max {
	case r:
		h = 60 * math.Mod((g-b)/delta, 6)
	case g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

// hsvToRGB converts back to 0-255 RGB.
func hsvToRGB(h, s, v float64) (r, g, b float64) {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return (r + m) * 255, (g + m) * 255, (b + m) * 255
}
