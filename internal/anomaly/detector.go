package anomaly

import (
	"sync"

	"github.com/spectravision/core/internal/frames"
	"github.com/spectravision/core/internal/logger"
)

const (
	// DefaultThreshold is the minimum confidence a finding must reach.
	DefaultThreshold = 0.6

	historyLimit        = 30  // frames of raw history kept for differencing
	temporalBufferLimit = 100 // per-frame anomaly lists kept for temporal passes
	temporalWindow      = 10  // frames scanned by the manifestation pass
	minTemporalHistory  = 5   // history needed before temporal passes run
)

// Detector scans frames for visual anomalies. It keeps a short frame
// history and a temporal buffer of past findings for cross-frame
// consistency checks.
type Detector struct {
	mu sync.Mutex

	threshold float64
	log       *logger.Logger

	history []*frames.Frame

	// temporal buffer: findings keyed by frame index, oldest evicted first
	buffer      map[int][]frames.Anomaly
	bufferOrder []int
}

// NewDetector creates an anomaly detector with the given confidence
// threshold. Thresholds outside [0,1] are clamped.
func NewDetector(threshold float64, log *logger.Logger) *Detector {
	d := &Detector{
		threshold: DefaultThreshold,
		log:       log,
		buffer:    make(map[int][]frames.Anomaly),
	}
	if threshold > 0 {
		d.setThreshold(threshold)
	}
	return d
}

// SetThreshold updates the confidence threshold, clamped to [0,1].
func (d *Detector) SetThreshold(threshold float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setThreshold(threshold)
}

func (d *Detector) setThreshold(threshold float64) {
	if threshold < 0 {
		threshold = 0
	} else if threshold > 1 {
		threshold = 1
	}
	d.threshold = threshold
}

// GetThreshold returns the active confidence threshold.
func (d *Detector) GetThreshold() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threshold
}

// Reset clears the frame history and the temporal buffer.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = nil
	d.buffer = make(map[int][]frames.Anomaly)
	d.bufferOrder = nil
}

// DetectAnomalies scans one frame and returns confidence-filtered
// findings. The frame's MotionScore, when above 0.1, boosts every
// finding's confidence. Findings are also recorded in the temporal
// buffer so later frames can run cross-frame checks.
func (d *Detector) DetectAnomalies(frame *frames.Frame) []frames.Anomaly {
	if frame == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var previous *frames.Frame
	if len(d.history) > 0 {
		previous = d.history[len(d.history)-1]
	}

	d.history = append(d.history, frame)
	if len(d.history) > historyLimit {
		d.history = d.history[len(d.history)-historyLimit:]
	}

	gray := frame.Grayscale()

	findings := make([]frames.Anomaly, 0)
	findings = append(findings, detectOrbs(frame, gray)...)
	findings = append(findings, detectApparitions(frame, gray, previous)...)
	findings = append(findings, detectShadowFigures(frame, gray)...)
	findings = append(findings, detectLightAnomalies(frame, gray, previous)...)
	findings = append(findings, detectDistortions(frame, gray)...)
	findings = append(findings, detectEnergyPatterns(frame, gray)...)
	findings = append(findings, detectPortals(frame, gray)...)

	findings = d.filterByConfidence(findings)

	if len(d.history) >= minTemporalHistory {
		findings = append(findings, d.detectManifestations(frame, findings)...)
		findings = append(findings, d.detectRepetitivePatterns(frame)...)
	}

	if frame.MotionScore > 0.1 {
		boost := 1 + frame.MotionScore*0.2
		for i := range findings {
			findings[i].Confidence *= boost
			if findings[i].Confidence > 1 {
				findings[i].Confidence = 1
			}
		}
	}

	d.record(frame.Index, findings)

	if len(findings) > 0 {
		d.log.Debug("Anomalies detected",
			"frame", frame.Index,
			"count", len(findings),
		)
	}
	return findings
}

func (d *Detector) filterByConfidence(findings []frames.Anomaly) []frames.Anomaly {
	kept := findings[:0]
	for _, f := range findings {
		if f.Confidence >= d.threshold {
			kept = append(kept, f)
		}
	}
	return kept
}

// record stores one frame's findings in the temporal buffer, evicting
// the oldest entry when the buffer is full.
func (d *Detector) record(frameIndex int, findings []frames.Anomaly) {
	if _, exists := d.buffer[frameIndex]; !exists {
		d.bufferOrder = append(d.bufferOrder, frameIndex)
		if len(d.bufferOrder) > temporalBufferLimit {
			oldest := d.bufferOrder[0]
			d.bufferOrder = d.bufferOrder[1:]
			delete(d.buffer, oldest)
		}
	}
	d.buffer[frameIndex] = findings
}
