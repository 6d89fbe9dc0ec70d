package frames

import (
	"context"
	"fmt"

	"github.com/spectravision/core/internal/decode"
)

const (
	blockSize    = 16 // block-matching block edge, pixels
	searchRadius = 8  // search window half-width, pixels
)

// MotionVector is the estimated displacement of one block between two
// consecutive frames.
type MotionVector struct {
	X     int     `json:"x"` // block origin in the earlier frame
	Y     int     `json:"y"`
	DX    int     `json:"dx"` // best-match offset
	DY    int     `json:"dy"`
	Score float64 `json:"score"` // sum of squared differences at the match
}

// VectorField is the block-matching result for one frame transition
type VectorField struct {
	FromIndex int            `json:"from_index"`
	ToIndex   int            `json:"to_index"`
	Cols      int            `json:"cols"`
	Rows      int            `json:"rows"`
	Vectors   []MotionVector `json:"vectors"`
}

// ExtractMotionVectors extracts the frame range [startFrame, endFrame] and
// runs block-matching optical flow between consecutive frames, returning
// one vector field per transition.
func (e *Extractor) ExtractMotionVectors(ctx context.Context, path string, meta *decode.Metadata, startFrame, endFrame int) ([]VectorField, error) {
	if endFrame <= startFrame {
		return nil, fmt.Errorf("empty frame range [%d, %d]", startFrame, endFrame)
	}

	extracted, err := e.ExtractFrames(ctx, path, meta, ExtractOptions{
		StartTime: float64(startFrame) / meta.FrameRate,
		EndTime:   float64(endFrame+1) / meta.FrameRate,
		Interval:  1 / meta.FrameRate,
		MaxFrames: endFrame - startFrame + 1,
	})
	if err != nil {
		return nil, err
	}
	if len(extracted) < 2 {
		return nil, fmt.Errorf("frame range produced %d frames, need at least 2", len(extracted))
	}

	fields := make([]VectorField, 0, len(extracted)-1)
	for i := 1; i < len(extracted); i++ {
		field := BlockMatch(extracted[i-1], extracted[i])
		field.FromIndex = startFrame + i - 1
		field.ToIndex = startFrame + i
		fields = append(fields, field)
	}

	return fields, nil
}

// BlockMatch estimates per-block displacement from prev to next using an
// exhaustive sum-of-squared-differences search over a bounded window.
func BlockMatch(prev, next *Frame) VectorField {
	prevGray := prev.Grayscale()
	nextGray := next.Grayscale()
	w, h := prev.Width, prev.Height

	cols := w / blockSize
	rows := h / blockSize

	field := VectorField{
		Cols:    cols,
		Rows:    rows,
		Vectors: make([]MotionVector, 0, cols*rows),
	}

	for by := 0; by < rows; by++ {
		for bx := 0; bx < cols; bx++ {
			x0 := bx * blockSize
			y0 := by * blockSize

			// Seed with zero displacement so flat regions don't drift
			// toward whichever tied candidate the scan hits first.
			bestDX, bestDY := 0, 0
			bestScore := blockSSD(prevGray, nextGray, w, x0, y0, 0, 0)

			for dy := -searchRadius; dy <= searchRadius; dy++ {
				for dx := -searchRadius; dx <= searchRadius; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					if x0+dx < 0 || y0+dy < 0 || x0+dx+blockSize > w || y0+dy+blockSize > h {
						continue
					}
					score := blockSSD(prevGray, nextGray, w, x0, y0, dx, dy)
					if score < bestScore {
						bestScore = score
						bestDX, bestDY = dx, dy
					}
				}
			}

			field.Vectors = append(field.Vectors, MotionVector{
				X: x0, Y: y0,
				DX: bestDX, DY: bestDY,
				Score: bestScore,
			})
		}
	}

	return field
}

// blockSSD scores one candidate offset for a block
func blockSSD(prev, next []float64, width, x0, y0, dx, dy int) float64 {
	var sum float64
	for y := 0; y < blockSize; y++ {
		prevRow := (y0+y)*width + x0
		nextRow := (y0+y+dy)*width + x0 + dx
		for x := 0; x < blockSize; x++ {
			d := prev[prevRow+x] - next[nextRow+x]
			sum += d * d
		}
	}
	return sum
}
