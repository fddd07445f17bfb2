package settings

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/psantana5/mediaconv/pkg/converr"
)

const (
	maxWidth     = 7680
	maxHeight    = 4320
	maxFrameRate = 120
	maxCRF       = 51
)

// videoCodecs is the fixed allow-list for video encoders. Hardware variants
// are included so descriptors can prefer them when the platform supports it.
var videoCodecs = map[string]bool{
	"libx264":           true,
	"libx265":           true,
	"libvpx-vp9":        true,
	"libaom-av1":        true,
	"mpeg4":             true,
	"h264_nvenc":        true,
	"hevc_nvenc":        true,
	"h264_videotoolbox": true,
	"hevc_videotoolbox": true,
	"h264_vaapi":        true,
	"hevc_vaapi":        true,
	"copy":              true,
}

// audioCodecs is the fixed allow-list for audio encoders
var audioCodecs = map[string]bool{
	"aac":        true,
	"libmp3lame": true,
	"libopus":    true,
	"libvorbis":  true,
	"flac":       true,
	"pcm_s16le":  true,
	"copy":       true,
}

// EncoderPresets is the ordered speed/quality tradeoff enum understood by
// the software encoders, fastest first.
var EncoderPresets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow",
}

var (
	reResolution = regexp.MustCompile(`^(\d+)x(\d+)$`)
	reBitrate    = regexp.MustCompile(`^\d+[kmKM]?$`)
)

// Violation describes one failed constraint
type Violation struct {
	Field   string
	Value   string
	Message string
}

// String implements fmt.Stringer
func (v Violation) String() string {
	return fmt.Sprintf("%s=%q: %s", v.Field, v.Value, v.Message)
}

// ValidationError aggregates every constraint violated by a merged settings
// value. Validation collects all violations instead of stopping at the first.
type ValidationError struct {
	Violations []Violation
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("invalid settings (%d violations): %s",
		len(e.Violations), strings.Join(parts, "; "))
}

// Category implements converr.Categorized
func (e *ValidationError) Category() converr.Category {
	return converr.CategorySettingsValidation
}

// validate checks every constraint and returns all violations plus any
// non-fatal warnings
func validate(s Settings) ([]Violation, []string) {
	var violations []Violation
	var warnings []string

	if s.VideoCodec != "" && !videoCodecs[s.VideoCodec] {
		violations = append(violations, Violation{
			Field: "video_codec", Value: s.VideoCodec,
			Message: "not in the supported video codec set",
		})
	}
	if s.AudioCodec != "" && !audioCodecs[s.AudioCodec] {
		violations = append(violations, Violation{
			Field: "audio_codec", Value: s.AudioCodec,
			Message: "not in the supported audio codec set",
		})
	}
	if s.Resolution != "" {
		if m := reResolution.FindStringSubmatch(s.Resolution); m == nil {
			violations = append(violations, Violation{
				Field: "resolution", Value: s.Resolution,
				Message: "must match WIDTHxHEIGHT",
			})
		} else {
			w, _ := strconv.Atoi(m[1])
			h, _ := strconv.Atoi(m[2])
			if w <= 0 || w > maxWidth {
				violations = append(violations, Violation{
					Field: "resolution", Value: s.Resolution,
					Message: fmt.Sprintf("width must be in (0, %d]", maxWidth),
				})
			}
			if h <= 0 || h > maxHeight {
				violations = append(violations, Violation{
					Field: "resolution", Value: s.Resolution,
					Message: fmt.Sprintf("height must be in (0, %d]", maxHeight),
				})
			}
		}
	}
	if s.FrameRate != 0 && (s.FrameRate <= 0 || s.FrameRate > maxFrameRate) {
		violations = append(violations, Violation{
			Field: "frame_rate", Value: fmt.Sprintf("%g", s.FrameRate),
			Message: fmt.Sprintf("must be in (0, %d]", maxFrameRate),
		})
	}
	for field, value := range map[string]string{
		"video_bitrate": s.VideoBitrate,
		"audio_bitrate": s.AudioBitrate,
		"max_rate":      s.MaxRate,
		"buf_size":      s.BufSize,
	} {
		if value != "" && !reBitrate.MatchString(value) {
			violations = append(violations, Violation{
				Field: field, Value: value,
				Message: "must be digits with optional k/M suffix",
			})
		}
	}
	if s.CRF != nil && (*s.CRF < 0 || *s.CRF > maxCRF) {
		violations = append(violations, Violation{
			Field: "crf", Value: strconv.Itoa(*s.CRF),
			Message: fmt.Sprintf("must be in [0, %d]", maxCRF),
		})
	}
	// An unrecognized encoder preset is a warning, not an error: newer
	// encoder builds add preset names we do not track, so the value passes
	// through unchanged.
	if s.Preset != "" && !knownEncoderPreset(s.Preset) {
		warnings = append(warnings,
			"unrecognized encoder preset "+s.Preset+", passing through unchanged")
	}

	return violations, warnings
}

func knownEncoderPreset(name string) bool {
	for _, p := range EncoderPresets {
		if p == name {
			return true
		}
	}
	return false
}
