package decode

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// timeTokenRe matches the decoder's stderr progress token, e.g.
// "time=00:01:23.45".
var timeTokenRe = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// sceneTimeRe matches showinfo diagnostic lines carrying a frame timestamp
var sceneTimeRe = regexp.MustCompile(`pts_time:\s*(\d+(?:\.\d+)?)`)

// parseTimeToken extracts the last progress timestamp (in seconds) from a
// chunk of decoder diagnostics. Returns -1 if none is present.
func parseTimeToken(line string) float64 {
	m := timeTokenRe.FindStringSubmatch(line)
	if m == nil {
		return -1
	}
	hours, _ := strconv.ParseFloat(m[1], 64)
	minutes, _ := strconv.ParseFloat(m[2], 64)
	seconds, _ := strconv.ParseFloat(m[3], 64)
	return hours*3600 + minutes*60 + seconds
}

// parseSceneTimestamps extracts scene-change timestamps from showinfo
// diagnostic output.
func parseSceneTimestamps(output string) []float64 {
	var stamps []float64
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "pts_time") {
			continue
		}
		if m := sceneTimeRe.FindStringSubmatch(line); m != nil {
			if ts, err := strconv.ParseFloat(m[1], 64); err == nil {
				stamps = append(stamps, ts)
			}
		}
	}
	return stamps
}

// watchProgress reads decoder diagnostics line by line, reporting progress
// as a fraction of totalDuration through cb, and returns the full captured
// output for error reporting.
func watchProgress(r io.Reader, totalDuration float64, cb func(float64)) string {
	var captured strings.Builder

	scanner := bufio.NewScanner(r)
	// Progress lines are \r-terminated; split on either
	scanner.Split(scanCROrLF)
	for scanner.Scan() {
		line := scanner.Text()
		captured.WriteString(line)
		captured.WriteByte('\n')

		if cb == nil || totalDuration <= 0 {
			continue
		}
		if t := parseTimeToken(line); t >= 0 {
			frac := t / totalDuration
			if frac > 1 {
				frac = 1
			}
			cb(frac)
		}
	}

	return captured.String()
}

// scanCROrLF is a bufio.SplitFunc splitting on \r or \n
func scanCROrLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
