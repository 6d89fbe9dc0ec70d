package decode

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// GPSCoordinate is an optional recording location from container metadata
type GPSCoordinate struct {
	Latitude  float64
	Longitude float64
}

// Metadata describes a probed video file. It is immutable once probed.
type Metadata struct {
	Duration     float64 // seconds
	FrameRate    float64
	Width        int
	Height       int
	Codec        string
	BitRate      int64
	Format       string
	HasAudio     bool
	AudioCodec   string
	AudioBitRate int64
	SampleRate   int
	Channels     int
	CreationTime *time.Time
	GPS          *GPSCoordinate
}

// TotalFrames returns the approximate frame count of the video
func (m *Metadata) TotalFrames() int {
	return int(math.Round(m.Duration * m.FrameRate))
}

// probeOutput mirrors the prober's JSON document
type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	BitRate      string `json:"bit_rate"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

type probeFormat struct {
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

// parseProbeOutput parses the prober's JSON document into Metadata
func parseProbeOutput(data []byte) (*Metadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unparsable probe output: %w", err)
	}

	meta := &Metadata{
		Format: out.Format.FormatName,
	}

	if out.Format.Duration != "" {
		d, err := strconv.ParseFloat(out.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", out.Format.Duration, err)
		}
		meta.Duration = d
	}
	if out.Format.BitRate != "" {
		meta.BitRate, _ = strconv.ParseInt(out.Format.BitRate, 10, 64)
	}

	var haveVideo bool
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if haveVideo {
				continue // first video stream wins
			}
			haveVideo = true
			meta.Codec = s.CodecName
			meta.Width = s.Width
			meta.Height = s.Height
			rate := s.RFrameRate
			if rate == "" || rate == "0/0" {
				rate = s.AvgFrameRate
			}
			fps, err := parseRational(rate)
			if err != nil {
				return nil, fmt.Errorf("invalid frame rate %q: %w", rate, err)
			}
			meta.FrameRate = fps
		case "audio":
			if meta.HasAudio {
				continue
			}
			meta.HasAudio = true
			meta.AudioCodec = s.CodecName
			meta.Channels = s.Channels
			if s.SampleRate != "" {
				meta.SampleRate, _ = strconv.Atoi(s.SampleRate)
			}
			if s.BitRate != "" {
				meta.AudioBitRate, _ = strconv.ParseInt(s.BitRate, 10, 64)
			}
		}
	}

	if !haveVideo {
		return nil, fmt.Errorf("no video stream present")
	}

	if tags := out.Format.Tags; tags != nil {
		if ct, ok := tags["creation_time"]; ok {
			if ts, err := time.Parse(time.RFC3339Nano, ct); err == nil {
				meta.CreationTime = &ts
			}
		}
		for _, key := range []string{"location", "com.apple.quicktime.location.ISO6709"} {
			if loc, ok := tags[key]; ok {
				if gps := parseISO6709(loc); gps != nil {
					meta.GPS = gps
					break
				}
			}
		}
	}

	return meta, nil
}

// parseRational evaluates a rational rate string such as "30/1" or
// "30000/1001" to a scalar. A plain number is accepted as-is.
func parseRational(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty rational")
	}

	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		num, err := strconv.ParseFloat(s[:idx], 64)
		if err != nil {
			return 0, err
		}
		den, err := strconv.ParseFloat(s[idx+1:], 64)
		if err != nil {
			return 0, err
		}
		if den == 0 {
			return 0, fmt.Errorf("zero denominator in %q", s)
		}
		return num / den, nil
	}

	return strconv.ParseFloat(s, 64)
}

var iso6709Re = regexp.MustCompile(`^([+-]\d+(?:\.\d+)?)([+-]\d+(?:\.\d+)?)`)

// parseISO6709 parses a "+12.3456-078.9012/" style location tag
func parseISO6709(s string) *GPSCoordinate {
	m := iso6709Re.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil
	}
	lat, err1 := strconv.ParseFloat(m[1], 64)
	lon, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	return &GPSCoordinate{Latitude: lat, Longitude: lon}
}
