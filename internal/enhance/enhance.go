package enhance

import (
	"math"

	"github.com/spectravision/core/internal/frames"
)

// Enhancements is the parameter set for the frame enhancement pipeline.
// Zero values (and saturation 100, gamma 1) are neutral: a stage at its
// neutral value is skipped entirely.
type Enhancements struct {
	Brightness  float64 `json:"brightness" yaml:"brightness"`   // -100..100
	Contrast    float64 `json:"contrast" yaml:"contrast"`       // -100..100
	Saturation  float64 `json:"saturation" yaml:"saturation"`   // 0..200, 100 neutral
	Gamma       float64 `json:"gamma" yaml:"gamma"`             // 0.1..3.0, 1 neutral
	Exposure    float64 `json:"exposure" yaml:"exposure"`       // -2..2 stops
	Highlights  float64 `json:"highlights" yaml:"highlights"`   // -100..100
	Shadows     float64 `json:"shadows" yaml:"shadows"`         // -100..100
	Temperature float64 `json:"temperature" yaml:"temperature"` // -100..100
	Tint        float64 `json:"tint" yaml:"tint"`               // -100..100
	Sharpness   float64 `json:"sharpness" yaml:"sharpness"`     // 0..100
	Denoise     float64 `json:"denoise" yaml:"denoise"`         // 0..100
	Stabilize   bool    `json:"stabilize" yaml:"stabilize"`
}

// Patch is a partial Enhancements update. Nil fields leave the current
// value unchanged.
type Patch struct {
	Brightness  *float64 `json:"brightness,omitempty"`
	Contrast    *float64 `json:"contrast,omitempty"`
	Saturation  *float64 `json:"saturation,omitempty"`
	Gamma       *float64 `json:"gamma,omitempty"`
	Exposure    *float64 `json:"exposure,omitempty"`
	Highlights  *float64 `json:"highlights,omitempty"`
	Shadows     *float64 `json:"shadows,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Tint        *float64 `json:"tint,omitempty"`
	Sharpness   *float64 `json:"sharpness,omitempty"`
	Denoise     *float64 `json:"denoise,omitempty"`
	Stabilize   *bool    `json:"stabilize,omitempty"`
}

// Neutral returns the identity parameter set.
func Neutral() Enhancements {
	return Enhancements{Saturation: 100, Gamma: 1}
}

// IsNeutral reports whether every stage would be skipped.
func (e Enhancements) IsNeutral() bool {
	return e.Brightness == 0 && e.Contrast == 0 && e.Saturation == 100 &&
		e.Gamma == 1 && e.Exposure == 0 && e.Highlights == 0 && e.Shadows == 0 &&
		e.Temperature == 0 && e.Tint == 0 && e.Sharpness == 0 && e.Denoise == 0
}

// Merge applies a patch and returns the updated parameter set.
func (e Enhancements) Merge(p Patch) Enhancements {
	if p.Brightness != nil {
		e.Brightness = *p.Brightness
	}
	if p.Contrast != nil {
		e.Contrast = *p.Contrast
	}
	if p.Saturation != nil {
		e.Saturation = *p.Saturation
	}
	if p.Gamma != nil {
		e.Gamma = *p.Gamma
	}
	if p.Exposure != nil {
		e.Exposure = *p.Exposure
	}
	if p.Highlights != nil {
		e.Highlights = *p.Highlights
	}
	if p.Shadows != nil {
		e.Shadows = *p.Shadows
	}
	if p.Temperature != nil {
		e.Temperature = *p.Temperature
	}
	if p.Tint != nil {
		e.Tint = *p.Tint
	}
	if p.Sharpness != nil {
		e.Sharpness = *p.Sharpness
	}
	if p.Denoise != nil {
		e.Denoise = *p.Denoise
	}
	if p.Stabilize != nil {
		e.Stabilize = *p.Stabilize
	}
	return e
}

// Enhance runs the frame through the pipeline in fixed stage order:
// denoise, exposure, brightness/contrast, highlights/shadows, white
// balance, saturation, gamma, sharpen. The input frame is not modified.
// Identical inputs always produce identical output.
func Enhance(frame *frames.Frame, e Enhancements) *frames.Frame {
	out := frame.Clone()
	if e.IsNeutral() {
		return out
	}

	if e.Denoise != 0 {
		applyDenoise(out, e.Denoise)
	}
	if e.Exposure != 0 {
		applyExposure(out, e.Exposure)
	}
	if e.Brightness != 0 || e.Contrast != 0 {
		applyBrightnessContrast(out, e.Brightness, e.Contrast)
	}
	if e.Highlights != 0 || e.Shadows != 0 {
		applyHighlightsShadows(out, e.Highlights, e.Shadows)
	}
	if e.Temperature != 0 || e.Tint != 0 {
		applyWhiteBalance(out, e.Temperature, e.Tint)
	}
	if e.Saturation != 100 {
		applySaturation(out, e.Saturation)
	}
	if e.Gamma != 1 && e.Gamma > 0 {
		applyGamma(out, e.Gamma)
	}
	if e.Sharpness != 0 {
		applySharpen(out, e.Sharpness)
	}
	return out
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// eachPixel maps a per-channel transform over the RGB channels, leaving
// alpha untouched.
func eachPixel(f *frames.Frame, fn func(r, g, b float64) (float64, float64, float64)) {
	for i := 0; i < len(f.Pix); i += 4 {
		r, g, b := fn(float64(f.Pix[i]), float64(f.Pix[i+1]), float64(f.Pix[i+2]))
		f.Pix[i] = clampByte(r)
		f.Pix[i+1] = clampByte(g)
		f.Pix[i+2] = clampByte(b)
	}
}

func applyExposure(f *frames.Frame, stops float64) {
	factor := math.Pow(2, stops)
	eachPixel(f, func(r, g, b float64) (float64, float64, float64) {
		return r * factor, g * factor, b * factor
	})
}

func applyBrightnessContrast(f *frames.Frame, brightness, contrast float64) {
	gain := 1 + contrast/100
	offset := 128 + brightness/100*255
	eachPixel(f, func(r, g, b float64) (float64, float64, float64) {
		return (r-128)*gain + offset,
			(g-128)*gain + offset,
			(b-128)*gain + offset
	})
}

// applyHighlightsShadows blends bright pixels toward white and dark
// pixels toward black, gated by luminance around the midpoint.
func applyHighlightsShadows(f *frames.Frame, highlights, shadows float64) {
	eachPixel(f, func(r, g, b float64) (float64, float64, float64) {
		lum := (0.2126*r + 0.7152*g + 0.0722*b) / 255

		if highlights != 0 && lum > 0.5 {
			w := highlights / 100 * (lum - 0.5) * 2
			r += w * (255 - r)
			g += w * (255 - g)
			b += w * (255 - b)
		}
		if shadows != 0 && lum < 0.5 {
			w := shadows / 100 * (0.5 - lum) * 2
			r *= 1 - w
			g *= 1 - w
			b *= 1 - w
		}
		return r, g, b
	})
}

// applyWhiteBalance warms or cools via opposing red/blue gains; tint
// shifts the green/magenta axis.
func applyWhiteBalance(f *frames.Frame, temperature, tint float64) {
	rf := 1 + temperature*0.003 + tint*0.0015
	gf := 1 - tint*0.003
	bf := 1 - temperature*0.003 + tint*0.0015
	eachPixel(f, func(r, g, b float64) (float64, float64, float64) {
		return r * rf, g * gf, b * bf
	})
}

func applySaturation(f *frames.Frame, saturation float64) {
	factor := saturation / 100
	eachPixel(f, func(r, g, b float64) (float64, float64, float64) {
		lum := 0.2126*r + 0.7152*g + 0.0722*b
		return lum + (r-lum)*factor,
			lum + (g-lum)*factor,
			lum + (b-lum)*factor
	})
}

func applyGamma(f *frames.Frame, gamma float64) {
	var lut [256]uint8
	inv := 1 / gamma
	for i := range lut {
		lut[i] = clampByte(math.Pow(float64(i)/255, inv) * 255)
	}
	for i := 0; i < len(f.Pix); i += 4 {
		f.Pix[i] = lut[f.Pix[i]]
		f.Pix[i+1] = lut[f.Pix[i+1]]
		f.Pix[i+2] = lut[f.Pix[i+2]]
	}
}

// applySharpen convolves with the 3x3 unsharp kernel
// [0 -1 0; -1 5 -1; 0 -1 0] and blends with the original by strength.
func applySharpen(f *frames.Frame, sharpness float64) {
	blend := sharpness / 100
	src := make([]uint8, len(f.Pix))
	copy(src, f.Pix)
	w, h := f.Width, f.Height

	at := func(x, y, c int) float64 {
		if x < 0 {
			x = 0
		} else if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		} else if y >= h {
			y = h - 1
		}
		return float64(src[(y*w+x)*4+c])
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				orig := at(x, y, c)
				sharp := 5*orig - at(x-1, y, c) - at(x+1, y, c) - at(x, y-1, c) - at(x, y+1, c)
				f.Pix[(y*w+x)*4+c] = clampByte(orig*(1-blend) + sharp*blend)
			}
		}
	}
}

// applyDenoise box-blurs with radius proportional to strength and
// blends toward the blurred raster.
func applyDenoise(f *frames.Frame, strength float64) {
	radius := int(math.Max(1, strength/20))
	blend := strength / 100
	src := make([]uint8, len(f.Pix))
	copy(src, f.Pix)
	w, h := f.Width, f.Height

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [3]float64
			count := 0
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
					idx := (yy*w + xx) * 4
					sum[0] += float64(src[idx])
					sum[1] += float64(src[idx+1])
					sum[2] += float64(src[idx+2])
					count++
				}
			}
			idx := (y*w + x) * 4
			for c := 0; c < 3; c++ {
				orig := float64(src[idx+c])
				blurred := sum[c] / float64(count)
				f.Pix[idx+c] = clampByte(orig*(1-blend) + blurred*blend)
			}
		}
	}
}
