package anomaly

import (
	"fmt"
	"math"

	"github.com/spectravision/core/internal/frames"
)

const cellSize = 16

// cellGrid is a coarse per-cell luminance summary of a frame used by the
// scanners. Scanning cells instead of pixels keeps the per-frame cost
// bounded at any resolution.
type cellGrid struct {
	cols, rows int
	mean       []float64 // per-cell mean luminance
	global     float64   // whole-frame mean luminance
}

func buildCellGrid(gray []float64, width, height int) cellGrid {
	cols := width / cellSize
	rows := height / cellSize
	g := cellGrid{cols: cols, rows: rows, mean: make([]float64, cols*rows)}

	var total float64
	for _, v := range gray {
		total += v
	}
	if len(gray) > 0 {
		g.global = total / float64(len(gray))
	}

	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			var sum float64
			for y := cy * cellSize; y < (cy+1)*cellSize; y++ {
				for x := cx * cellSize; x < (cx+1)*cellSize; x++ {
					sum += gray[y*width+x]
				}
			}
			g.mean[cy*g.cols+cx] = sum / (cellSize * cellSize)
		}
	}
	return g
}

func (g cellGrid) at(cx, cy int) float64 {
	return g.mean[cy*g.cols+cx]
}

func cellBox(cx, cy int) frames.Rect {
	return frames.Rect{X: cx * cellSize, Y: cy * cellSize, Width: cellSize, Height: cellSize}
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// detectOrbs finds small bright roughly-circular regions: cells much
// brighter than the frame average whose bright pixels fill a round-ish
// fraction of the cell.
func detectOrbs(frame *frames.Frame, gray []float64) []frames.Anomaly {
	grid := buildCellGrid(gray, frame.Width, frame.Height)
	var findings []frames.Anomaly

	for cy := 0; cy < grid.rows; cy++ {
		for cx := 0; cx < grid.cols; cx++ {
			excess := grid.at(cx, cy) - grid.global
			if excess < 70 {
				continue
			}

			// A disc inscribed in the cell covers ~pi/4 of it; accept a
			// band around that to allow off-center orbs
			bright := brightFraction(gray, frame.Width, cx, cy, grid.global+70)
			if bright < 0.3 || bright > 0.95 {
				continue
			}

			findings = append(findings, frames.Anomaly{
				Type:        frames.AnomalyOrbMovement,
				Box:         cellBox(cx, cy),
				Confidence:  clampConfidence(0.5 + excess/255),
				Motion:      bright,
				Description: "Bright circular region",
				StartFrame:  frame.Index,
				EndFrame:    frame.Index,
			})
		}
	}
	return findings
}

func brightFraction(gray []float64, width, cx, cy int, threshold float64) float64 {
	count := 0
	for y := cy * cellSize; y < (cy+1)*cellSize; y++ {
		for x := cx * cellSize; x < (cx+1)*cellSize; x++ {
			if gray[y*width+x] > threshold {
				count++
			}
		}
	}
	return float64(count) / (cellSize * cellSize)
}

// detectApparitions looks for mid-luminance regions that appeared since
// the previous frame, the signature of a transient silhouette.
func detectApparitions(frame *frames.Frame, gray []float64, previous *frames.Frame) []frames.Anomaly {
	if previous == nil || previous.Width != frame.Width || previous.Height != frame.Height {
		return nil
	}
	prevGray := previous.Grayscale()
	grid := buildCellGrid(gray, frame.Width, frame.Height)

	var findings []frames.Anomaly
	for cy := 0; cy < grid.rows; cy++ {
		for cx := 0; cx < grid.cols; cx++ {
			var diff float64
			for y := cy * cellSize; y < (cy+1)*cellSize; y++ {
				for x := cx * cellSize; x < (cx+1)*cellSize; x++ {
					idx := y*frame.Width + x
					diff += math.Abs(gray[idx] - prevGray[idx])
				}
			}
			diff /= cellSize * cellSize

			mean := grid.at(cx, cy)
			if diff < 40 || mean < 80 || mean > 200 {
				continue
			}

			findings = append(findings, frames.Anomaly{
				Type:        frames.AnomalyApparition,
				Box:         cellBox(cx, cy),
				Confidence:  clampConfidence(0.4 + diff/255),
				Motion:      diff / 255,
				Description: "Transient silhouette appeared",
				StartFrame:  frame.Index,
				EndFrame:    frame.Index,
			})
		}
	}
	return findings
}

// detectShadowFigures finds vertical runs of dark cells with a humanoid
// aspect ratio (taller than wide).
func detectShadowFigures(frame *frames.Frame, gray []float64) []frames.Anomaly {
	grid := buildCellGrid(gray, frame.Width, frame.Height)
	darkLimit := grid.global - 60

	var findings []frames.Anomaly
	for cx := 0; cx < grid.cols; cx++ {
		runStart := -1
		for cy := 0; cy <= grid.rows; cy++ {
			dark := cy < grid.rows && grid.at(cx, cy) < darkLimit
			if dark {
				if runStart < 0 {
					runStart = cy
				}
				continue
			}
			if runStart < 0 {
				continue
			}

			runLen := cy - runStart
			runStartCell := runStart
			runStart = -1

			// Humanoid proportions: 1.5-4x taller than wide
			ratio := float64(runLen)
			if ratio < 1.5 || ratio > 4 {
				continue
			}

			var darkness float64
			for y := runStartCell; y < runStartCell+runLen; y++ {
				darkness += grid.global - grid.at(cx, y)
			}
			darkness /= float64(runLen)

			findings = append(findings, frames.Anomaly{
				Type: frames.AnomalyShadowFigure,
				Box: frames.Rect{
					X: cx * cellSize, Y: runStartCell * cellSize,
					Width: cellSize, Height: runLen * cellSize,
				},
				Confidence:  clampConfidence(0.45 + darkness/255),
				Description: fmt.Sprintf("Dark humanoid-shaped region, %.0f below ambient", darkness),
				StartFrame:  frame.Index,
				EndFrame:    frame.Index,
			})
		}
	}
	return findings
}

// detectLightAnomalies finds cells that jumped from dark to near-white
// since the previous frame, a bright-flicker signature.
func detectLightAnomalies(frame *frames.Frame, gray []float64, previous *frames.Frame) []frames.Anomaly {
	if previous == nil || previous.Width != frame.Width || previous.Height != frame.Height {
		return nil
	}
	prevGray := previous.Grayscale()
	grid := buildCellGrid(gray, frame.Width, frame.Height)
	prevGrid := buildCellGrid(prevGray, frame.Width, frame.Height)

	var findings []frames.Anomaly
	for cy := 0; cy < grid.rows; cy++ {
		for cx := 0; cx < grid.cols; cx++ {
			now := grid.at(cx, cy)
			before := prevGrid.at(cx, cy)
			if now < 230 || before > 150 {
				continue
			}
			jump := now - before

			findings = append(findings, frames.Anomaly{
				Type:        frames.AnomalyLightAnomaly,
				Box:         cellBox(cx, cy),
				Confidence:  clampConfidence(0.4 + jump/255),
				Motion:      jump / 255,
				Description: "Bright flicker patch",
				StartFrame:  frame.Index,
				EndFrame:    frame.Index,
			})
		}
	}
	return findings
}

// detectDistortions flags cells whose gradient energy is far above the
// frame norm. This is a simplified stand-in for a flow-based distortion
// scan; it keeps the contract while stronger heuristics can replace it.
func detectDistortions(frame *frames.Frame, gray []float64) []frames.Anomaly {
	w, h := frame.Width, frame.Height
	cols := w / cellSize
	rows := h / cellSize
	if cols == 0 || rows == 0 {
		return nil
	}

	energy := make([]float64, cols*rows)
	var total float64
	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			var sum float64
			for y := cy * cellSize; y < (cy+1)*cellSize; y++ {
				for x := cx * cellSize; x < (cx+1)*cellSize; x++ {
					if x == 0 || y == 0 {
						continue
					}
					idx := y*w + x
					gx := gray[idx] - gray[idx-1]
					gy := gray[idx] - gray[idx-w]
					sum += gx*gx + gy*gy
				}
			}
			e := sum / (cellSize * cellSize)
			energy[cy*cols+cx] = e
			total += e
		}
	}
	avg := total / float64(len(energy))

	var findings []frames.Anomaly
	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			e := energy[cy*cols+cx]
			if avg < 1 || e < avg*8 || e < 500 {
				continue
			}
			findings = append(findings, frames.Anomaly{
				Type:        frames.AnomalyDistortion,
				Box:         cellBox(cx, cy),
				Confidence:  clampConfidence(0.4 + math.Min(e/avg, 10)/25),
				Description: "Localized visual distortion",
				StartFrame:  frame.Index,
				EndFrame:    frame.Index,
			})
		}
	}
	return findings
}

// detectEnergyPatterns is an extension point. The scan is intentionally
// inert; downstream aggregation tolerates it returning nothing.
func detectEnergyPatterns(frame *frames.Frame, gray []float64) []frames.Anomaly {
	return nil
}

// detectPortals looks for a bright core ringed by dark cells, a crude
// vortex signature. Like the distortion scan this is a simplified
// heuristic preserved as an extension point.
func detectPortals(frame *frames.Frame, gray []float64) []frames.Anomaly {
	grid := buildCellGrid(gray, frame.Width, frame.Height)

	var findings []frames.Anomaly
	for cy := 1; cy < grid.rows-1; cy++ {
		for cx := 1; cx < grid.cols-1; cx++ {
			center := grid.at(cx, cy)
			if center < grid.global+50 {
				continue
			}
			ringDark := grid.at(cx-1, cy) < grid.global-30 &&
				grid.at(cx+1, cy) < grid.global-30 &&
				grid.at(cx, cy-1) < grid.global-30 &&
				grid.at(cx, cy+1) < grid.global-30
			if !ringDark {
				continue
			}

			findings = append(findings, frames.Anomaly{
				Type: frames.AnomalyPortal,
				Box: frames.Rect{
					X: (cx - 1) * cellSize, Y: (cy - 1) * cellSize,
					Width: 3 * cellSize, Height: 3 * cellSize,
				},
				Confidence:  clampConfidence(0.5 + (center-grid.global)/255),
				Description: "Vortex-like bright core with dark ring",
				StartFrame:  frame.Index,
				EndFrame:    frame.Index,
			})
		}
	}
	return findings
}
