package frames

// fillRect paints a solid grayscale rectangle into a frame, clipped to the
// raster bounds. Shared by tests across the analysis packages via
// NewTestFrame-style constructors.
func fillRect(f *Frame, r Rect, value uint8) {
	for y := r.Y; y < r.Y+r.Height && y < f.Height; y++ {
		if y < 0 {
			continue
		}
		for x := r.X; x < r.X+r.Width && x < f.Width; x++ {
			if x < 0 {
				continue
			}
			f.SetRGBA(x, y, value, value, value, 255)
		}
	}
}

// NewUniformFrame builds a frame filled with a single grayscale value
func NewUniformFrame(index int, width, height int, value uint8) *Frame {
	f := NewFrame(index, 0, width, height)
	fillRect(f, Rect{X: 0, Y: 0, Width: width, Height: height}, value)
	return f
}

// NewFrameWithPatch builds a uniform frame with one brighter (or darker)
// rectangular patch, the standard synthetic input for motion and anomaly
// tests.
func NewFrameWithPatch(index int, width, height int, background uint8, patch Rect, value uint8) *Frame {
	f := NewUniformFrame(index, width, height, background)
	fillRect(f, patch, value)
	return f
}
