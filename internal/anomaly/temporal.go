package anomaly

import (
	"fmt"

	"github.com/spectravision/core/internal/frames"
)

// detectManifestations scans the recent temporal buffer for findings
// that exist in one frame but in neither neighbor: an object that
// appeared and vanished within a single frame. The current frame's
// findings stand in as the successor of the newest buffered entry,
// which is not recorded yet. Caller holds d.mu.
func (d *Detector) detectManifestations(current *frames.Frame, currentFindings []frames.Anomaly) []frames.Anomaly {
	n := len(d.bufferOrder)
	if n < 2 {
		return nil
	}

	start := n - temporalWindow
	if start < 1 {
		start = 1
	}

	var findings []frames.Anomaly
	for pos := start; pos < n; pos++ {
		idx := d.bufferOrder[pos]
		prevIdx := d.bufferOrder[pos-1]

		next := currentFindings
		nextIdx := current.Index
		if pos+1 < n {
			nextIdx = d.bufferOrder[pos+1]
			next = d.buffer[nextIdx]
		}

		for _, a := range d.buffer[idx] {
			if a.Type == frames.AnomalyManifestation {
				continue
			}
			if hasCounterpart(d.buffer[prevIdx], a) || hasCounterpart(next, a) {
				continue
			}
			// Only report each single-frame appearance once, when its
			// successor frame first arrives
			if nextIdx != current.Index {
				continue
			}

			findings = append(findings, frames.Anomaly{
				Type:        frames.AnomalyManifestation,
				Box:         a.Box,
				Confidence:  a.Confidence,
				Motion:      a.Motion,
				Description: fmt.Sprintf("%s appeared for a single frame", a.Type),
				StartFrame:  idx,
				EndFrame:    idx,
			})
		}
	}
	return findings
}

// hasCounterpart reports whether findings contains an anomaly of the
// same type whose center lies near the candidate's center.
func hasCounterpart(findings []frames.Anomaly, candidate frames.Anomaly) bool {
	cx, cy := candidate.Box.Center()
	for _, f := range findings {
		if f.Type != candidate.Type {
			continue
		}
		fx, fy := f.Box.Center()
		dx, dy := fx-cx, fy-cy
		if dx*dx+dy*dy <= 50*50 {
			return true
		}
	}
	return false
}

// detectRepetitivePatterns would flag findings recurring at fixed
// intervals across the buffer. It is a known incompleteness and
// currently reports nothing; aggregate statistics tolerate that.
func (d *Detector) detectRepetitivePatterns(current *frames.Frame) []frames.Anomaly {
	return nil
}
