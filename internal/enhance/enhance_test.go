package enhance

import (
	"bytes"
	"testing"

	"github.com/spectravision/core/internal/frames"
)

func varietyFrame() *frames.Frame {
	f := frames.NewFrame(0, 0, 16, 16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			f.SetRGBA(x, y, uint8(x*16), uint8(y*16), uint8((x+y)*8), 255)
		}
	}
	return f
}

func TestEnhanceNeutralIsIdentity(t *testing.T) {
	f := varietyFrame()
	out := Enhance(f, Neutral())

	if !bytes.Equal(f.Pix, out.Pix) {
		t.Error("Neutral enhancement changed pixel data")
	}
	if &f.Pix[0] == &out.Pix[0] {
		t.Error("Enhance must not return the input raster")
	}
}

func TestEnhanceIsDeterministic(t *testing.T) {
	f := varietyFrame()
	e := Neutral()
	e.Brightness = 20
	e.Contrast = 15
	e.Sharpness = 40
	e.Denoise = 30
	e.Gamma = 1.8

	a := Enhance(f, e)
	b := Enhance(f, e)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("Identical inputs produced different output")
	}
}

func TestBrightnessContrastFormula(t *testing.T) {
	f := frames.NewUniformFrame(0, 2, 2, 100)
	e := Neutral()
	e.Brightness = 50

	out := Enhance(f, e)
	// (100-128)*1 + 128 + 0.5*255 = 227.5, rounds to 228
	if r, _, _, _ := out.RGBA(0, 0); r != 228 {
		t.Errorf("Expected brightness-adjusted value 228, got %d", r)
	}

	e = Neutral()
	e.Contrast = 100
	out = Enhance(f, e)
	// (100-128)*2 + 128 = 72
	if r, _, _, _ := out.RGBA(0, 0); r != 72 {
		t.Errorf("Expected contrast-adjusted value 72, got %d", r)
	}
}

func TestBrightnessRaisesMeanLuminance(t *testing.T) {
	f := varietyFrame()
	e := Neutral()
	e.Brightness = 50

	bright := Enhance(f, e)
	if bright.MeanLuminance() <= f.MeanLuminance() {
		t.Errorf("Expected brighter output: %v vs %v", bright.MeanLuminance(), f.MeanLuminance())
	}
}

func TestExposureDoubles(t *testing.T) {
	f := frames.NewUniformFrame(0, 2, 2, 60)
	e := Neutral()
	e.Exposure = 1

	out := Enhance(f, e)
	if r, _, _, _ := out.RGBA(0, 0); r != 120 {
		t.Errorf("Expected one stop up to double 60 to 120, got %d", r)
	}
}

func TestSaturationZeroIsGrayscale(t *testing.T) {
	f := frames.NewFrame(0, 0, 1, 1)
	f.SetRGBA(0, 0, 200, 50, 120, 255)
	e := Neutral()
	e.Saturation = 0

	out := Enhance(f, e)
	r, g, b, _ := out.RGBA(0, 0)
	if r != g || g != b {
		t.Errorf("Expected grayscale at zero saturation, got (%d,%d,%d)", r, g, b)
	}
}

func TestGammaEndpoints(t *testing.T) {
	f := frames.NewFrame(0, 0, 2, 1)
	f.SetRGBA(0, 0, 0, 0, 0, 255)
	f.SetRGBA(1, 0, 255, 255, 255, 255)
	e := Neutral()
	e.Gamma = 2.2

	out := Enhance(f, e)
	if r, _, _, _ := out.RGBA(0, 0); r != 0 {
		t.Errorf("Gamma moved black: %d", r)
	}
	if r, _, _, _ := out.RGBA(1, 0); r != 255 {
		t.Errorf("Gamma moved white: %d", r)
	}
}

func TestMergePatch(t *testing.T) {
	e := Neutral()
	brightness := 30.0
	stabilize := true
	merged := e.Merge(Patch{Brightness: &brightness, Stabilize: &stabilize})

	if merged.Brightness != 30 || !merged.Stabilize {
		t.Error("Patch fields not applied")
	}
	if merged.Saturation != 100 || merged.Gamma != 1 {
		t.Error("Merge disturbed fields absent from the patch")
	}
	if e.Brightness != 0 {
		t.Error("Merge mutated the receiver")
	}
}

func TestColorGradingNeutralIsIdentity(t *testing.T) {
	f := varietyFrame()
	out := ApplyColorGrading(f, NeutralColorCorrection())
	if !bytes.Equal(f.Pix, out.Pix) {
		t.Error("Neutral grading changed pixel data")
	}
}

func TestHueShiftRotatesPrimary(t *testing.T) {
	f := frames.NewFrame(0, 0, 1, 1)
	f.SetRGBA(0, 0, 255, 0, 0, 255)

	p := NeutralColorCorrection()
	p.HueShift = 120
	out := ApplyColorGrading(f, p)

	r, g, b, _ := out.RGBA(0, 0)
	if r != 0 || g != 255 || b != 0 {
		t.Errorf("Expected red rotated to green, got (%d,%d,%d)", r, g, b)
	}
}

func TestVibranceSkipsGray(t *testing.T) {
	f := frames.NewUniformFrame(0, 2, 2, 100)
	p := NeutralColorCorrection()
	p.Vibrance = 80

	out := ApplyColorGrading(f, p)
	r, g, b, _ := out.RGBA(0, 0)
	if r != 100 || g != 100 || b != 100 {
		t.Errorf("Vibrance moved an unsaturated pixel: (%d,%d,%d)", r, g, b)
	}
}

func TestLiftGammaGain(t *testing.T) {
	f := frames.NewFrame(0, 0, 1, 1)
	f.SetRGBA(0, 0, 0, 128, 255, 255)

	p := NeutralColorCorrection()
	p.Lift = [3]float64{0.2, 0, 0}
	out := ApplyColorGrading(f, p)

	r, _, _, _ := out.RGBA(0, 0)
	// (0*(1-0.2)+0.2)^1 * 255 = 51
	if r != 51 {
		t.Errorf("Expected lifted black 51, got %d", r)
	}
}

func TestToneCurveLUT(t *testing.T) {
	lut := buildCurveLUT([]CurvePoint{{In: 128, Out: 64}})
	if lut[0] != 0 {
		t.Errorf("Expected forced (0,0) endpoint, got %d", lut[0])
	}
	if lut[255] != 255 {
		t.Errorf("Expected forced (255,255) endpoint, got %d", lut[255])
	}
	if lut[128] != 64 {
		t.Errorf("Expected control point honored, got %d", lut[128])
	}
	if lut[64] != 32 {
		t.Errorf("Expected linear interpolation 32 at 64, got %d", lut[64])
	}
}

func TestMasterCurveApplied(t *testing.T) {
	f := frames.NewUniformFrame(0, 2, 2, 128)
	p := NeutralColorCorrection()
	p.CurveMaster = []CurvePoint{{In: 128, Out: 64}}

	out := ApplyColorGrading(f, p)
	if r, _, _, _ := out.RGBA(0, 0); r != 64 {
		t.Errorf("Expected master curve to map 128 to 64, got %d", r)
	}
}

func TestApplyPresetUnknown(t *testing.T) {
	if _, err := ApplyPreset(varietyFrame(), "x-ray"); err == nil {
		t.Fatal("Expected error for unknown preset")
	}
}

func TestNightVisionDeterministicAndGreen(t *testing.T) {
	f := varietyFrame()

	a, err := ApplyPreset(f, PresetNightVision)
	if err != nil {
		t.Fatalf("ApplyPreset failed: %v", err)
	}
	b, _ := ApplyPreset(f, PresetNightVision)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("Night vision output is not deterministic")
	}

	for y := 0; y < a.Height; y++ {
		for x := 0; x < a.Width; x++ {
			r, g, bl, _ := a.RGBA(x, y)
			if r > g || bl > g {
				t.Fatalf("Expected green-dominant pixel at (%d,%d), got (%d,%d,%d)", x, y, r, g, bl)
			}
		}
	}
}

func TestThermalMapsDarkToBlue(t *testing.T) {
	f := frames.NewUniformFrame(0, 2, 2, 0)
	out, err := ApplyPreset(f, PresetThermal)
	if err != nil {
		t.Fatalf("ApplyPreset failed: %v", err)
	}
	r, g, b, _ := out.RGBA(0, 0)
	if r != 0 || g != 0 || b != 255 {
		t.Errorf("Expected cold blue for black input, got (%d,%d,%d)", r, g, b)
	}
}

func TestParanormalPresetChangesFrame(t *testing.T) {
	f := varietyFrame()
	out, err := ApplyPreset(f, PresetParanormal)
	if err != nil {
		t.Fatalf("ApplyPreset failed: %v", err)
	}
	if bytes.Equal(f.Pix, out.Pix) {
		t.Error("Expected the preset to alter the frame")
	}
}
