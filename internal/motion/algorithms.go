package motion

import "math"

// frameDiffMask thresholds the per-pixel absolute grayscale difference.
func (d *Detector) frameDiffMask(prevGray, nextGray []float64) []uint8 {
	mask := make([]uint8, len(nextGray))
	for i := range nextGray {
		if math.Abs(nextGray[i]-prevGray[i]) > d.cfg.Threshold {
			mask[i] = 1
		}
	}
	return mask
}

// backgroundMask compares the frame against a running-average background
// model, then folds the frame into the model.
func (d *Detector) backgroundMask(gray []float64) []uint8 {
	if d.background == nil || len(d.background) != len(gray) {
		d.background = make([]float64, len(gray))
		copy(d.background, gray)
		return make([]uint8, len(gray))
	}

	mask := make([]uint8, len(gray))
	for i := range gray {
		if math.Abs(gray[i]-d.background[i]) > d.cfg.Threshold {
			mask[i] = 1
		}
		d.background[i] = (1-backgroundLearningRate)*d.background[i] + backgroundLearningRate*gray[i]
	}
	return mask
}

// opticalFlowMask estimates per-pixel flow with Lucas-Kanade over a 5x5
// window and masks pixels whose flow magnitude exceeds threshold/10.
// The returned flow components feed region direction and speed.
func (d *Detector) opticalFlowMask(prevGray, nextGray []float64) ([]uint8, []float64, []float64) {
	w, h := d.width, d.height
	mask := make([]uint8, len(nextGray))
	flowX := make([]float64, len(nextGray))
	flowY := make([]float64, len(nextGray))

	ix, iy := spatialGradients(prevGray, w, h)

	const window = 2 // 5x5 window half-width
	magThreshold := d.cfg.Threshold / 10

	for y := window; y < h-window; y++ {
		for x := window; x < w-window; x++ {
			// Accumulate the 2x2 least-squares system over the window
			var sumXX, sumXY, sumYY, sumXT, sumYT float64
			for wy := -window; wy <= window; wy++ {
				for wx := -window; wx <= window; wx++ {
					idx := (y+wy)*w + x + wx
					gx, gy := ix[idx], iy[idx]
					it := nextGray[idx] - prevGray[idx]
					sumXX += gx * gx
					sumXY += gx * gy
					sumYY += gy * gy
					sumXT += gx * it
					sumYT += gy * it
				}
			}

			det := sumXX*sumYY - sumXY*sumXY
			if math.Abs(det) < 1e-6 {
				continue
			}

			u := (-sumYY*sumXT + sumXY*sumYT) / det
			v := (sumXY*sumXT - sumXX*sumYT) / det

			idx := y*w + x
			flowX[idx] = u
			flowY[idx] = v
			if math.Hypot(u, v) > magThreshold {
				mask[idx] = 1
			}
		}
	}

	return mask, flowX, flowY
}

// spatialGradients computes central-difference image gradients.
func spatialGradients(gray []float64, w, h int) (ix, iy []float64) {
	ix = make([]float64, len(gray))
	iy = make([]float64, len(gray))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			idx := y*w + x
			ix[idx] = (gray[idx+1] - gray[idx-1]) / 2
			iy[idx] = (gray[idx+w] - gray[idx-w]) / 2
		}
	}
	return ix, iy
}
