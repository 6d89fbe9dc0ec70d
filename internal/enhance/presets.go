package enhance

import (
	"fmt"

	"github.com/spectravision/core/internal/frames"
)

// Preset names.
const (
	PresetParanormal  = "paranormal-enhancement"
	PresetNightVision = "night-vision"
	PresetThermal     = "thermal"
)

// Presets lists the available preset names.
func Presets() []string {
	return []string{PresetParanormal, PresetNightVision, PresetThermal}
}

// ApplyPreset renders a frame through a named preset. The input frame
// is not modified. Output is deterministic for identical inputs.
func ApplyPreset(frame *frames.Frame, name string) (*frames.Frame, error) {
	switch name {
	case PresetParanormal:
		return applyParanormal(frame), nil
	case PresetNightVision:
		return applyNightVision(frame), nil
	case PresetThermal:
		return applyThermal(frame), nil
	default:
		return nil, fmt.Errorf("unknown enhancement preset: %s", name)
	}
}

// applyParanormal lifts shadows, raises contrast, cools the image,
// desaturates slightly, and sharpens.
func applyParanormal(frame *frames.Frame) *frames.Frame {
	e := Neutral()
	e.Shadows = -35
	e.Contrast = 20
	e.Temperature = -20
	e.Saturation = 85
	e.Sharpness = 30
	return Enhance(frame, e)
}

// applyNightVision remaps luminance onto the green channel with
// per-pixel noise. The noise generator is seeded from the pixel
// position and value so repeated runs produce identical output.
func applyNightVision(frame *frames.Frame) *frames.Frame {
	out := frame.Clone()
	for i := 0; i < len(out.Pix); i += 4 {
		r := float64(out.Pix[i])
		g := float64(out.Pix[i+1])
		b := float64(out.Pix[i+2])
		lum := 0.2126*r + 0.7152*g + 0.0722*b

		noise := float64(pixelNoise(uint32(i), uint32(lum)))/255*20 - 10
		green := clampByte(lum*1.2 + noise)

		out.Pix[i] = uint8(float64(green) * 0.1)
		out.Pix[i+1] = green
		out.Pix[i+2] = uint8(float64(green) * 0.1)
	}
	return out
}

// pixelNoise is a small deterministic hash, xorshift over position and
// value.
func pixelNoise(pos, value uint32) uint8 {
	x := pos*2654435761 ^ value*40503
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	return uint8(x)
}

// applyThermal maps luminance through a four-band false-color ramp,
// dark blue through green and yellow to red.
func applyThermal(frame *frames.Frame) *frames.Frame {
	out := frame.Clone()
	for i := 0; i < len(out.Pix); i += 4 {
		r := float64(out.Pix[i])
		g := float64(out.Pix[i+1])
		b := float64(out.Pix[i+2])
		lum := (0.2126*r + 0.7152*g + 0.0722*b) / 255

		var cr, cg, cb float64
		switch {
		case lum < 0.25:
			t := lum / 0.25
			cr, cg, cb = 0, t*255, 255
		case lum < 0.5:
			t := (lum - 0.25) / 0.25
			cr, cg, cb = t*255, 255, (1-t)*255
		case lum < 0.75:
			t := (lum - 0.5) / 0.25
			cr, cg, cb = 255, 255-t*128, 0
		default:
			t := (lum - 0.75) / 0.25
			cr, cg, cb = 255, 127-t*127, 0
		}
		out.Pix[i] = clampByte(cr)
		out.Pix[i+1] = clampByte(cg)
		out.Pix[i+2] = clampByte(cb)
	}
	return out
}
