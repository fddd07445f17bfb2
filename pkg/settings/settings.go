// Package settings merges and validates encode settings. A job's final
// parameters are layered from pipeline defaults, a named quality preset and
// explicit user overrides, in that priority order, then validated as a whole.
package settings

import (
	"github.com/psantana5/mediaconv/pkg/format"
)

// Settings is a partial parameter set. The zero value of each field means
// "not specified"; layers are combined with Overlay before validation.
type Settings struct {
	VideoCodec   string   `yaml:"video_codec,omitempty"`
	AudioCodec   string   `yaml:"audio_codec,omitempty"`
	VideoBitrate string   `yaml:"video_bitrate,omitempty"`
	AudioBitrate string   `yaml:"audio_bitrate,omitempty"`
	CRF          *int     `yaml:"crf,omitempty"`
	Preset       string   `yaml:"preset,omitempty"`
	Resolution   string   `yaml:"resolution,omitempty"`
	FrameRate    float64  `yaml:"frame_rate,omitempty"`
	SampleRate   int      `yaml:"sample_rate,omitempty"`
	Channels     int      `yaml:"channels,omitempty"`
	AudioQuality *int     `yaml:"audio_quality,omitempty"`
	GOPSize      int      `yaml:"gop_size,omitempty"`
	MinKeyInt    int      `yaml:"min_keyint,omitempty"`
	BFrames      *int     `yaml:"b_frames,omitempty"`
	MaxRate      string   `yaml:"max_rate,omitempty"`
	BufSize      string   `yaml:"buf_size,omitempty"`
	Threads      int      `yaml:"threads,omitempty"`
	Filters      []string `yaml:"filters,omitempty"`
	ExactResize  bool     `yaml:"exact_resize,omitempty"`
}

// IsZero reports whether no field has been specified
func (s Settings) IsZero() bool {
	return s.VideoCodec == "" && s.AudioCodec == "" &&
		s.VideoBitrate == "" && s.AudioBitrate == "" &&
		s.CRF == nil && s.Preset == "" && s.Resolution == "" &&
		s.FrameRate == 0 && s.SampleRate == 0 && s.Channels == 0 &&
		s.AudioQuality == nil && s.GOPSize == 0 && s.MinKeyInt == 0 &&
		s.BFrames == nil && s.MaxRate == "" && s.BufSize == "" &&
		s.Threads == 0 && len(s.Filters) == 0 && !s.ExactResize
}

// Overlay returns base with every specified field of over applied on top.
// Neither input is modified.
func Overlay(base, over Settings) Settings {
	out := base
	if over.VideoCodec != "" {
		out.VideoCodec = over.VideoCodec
	}
	if over.AudioCodec != "" {
		out.AudioCodec = over.AudioCodec
	}
	if over.VideoBitrate != "" {
		out.VideoBitrate = over.VideoBitrate
	}
	if over.AudioBitrate != "" {
		out.AudioBitrate = over.AudioBitrate
	}
	if over.CRF != nil {
		out.CRF = over.CRF
	}
	if over.Preset != "" {
		out.Preset = over.Preset
	}
	if over.Resolution != "" {
		out.Resolution = over.Resolution
	}
	if over.FrameRate != 0 {
		out.FrameRate = over.FrameRate
	}
	if over.SampleRate != 0 {
		out.SampleRate = over.SampleRate
	}
	if over.Channels != 0 {
		out.Channels = over.Channels
	}
	if over.AudioQuality != nil {
		out.AudioQuality = over.AudioQuality
	}
	if over.GOPSize != 0 {
		out.GOPSize = over.GOPSize
	}
	if over.MinKeyInt != 0 {
		out.MinKeyInt = over.MinKeyInt
	}
	if over.BFrames != nil {
		out.BFrames = over.BFrames
	}
	if over.MaxRate != "" {
		out.MaxRate = over.MaxRate
	}
	if over.BufSize != "" {
		out.BufSize = over.BufSize
	}
	if over.Threads != 0 {
		out.Threads = over.Threads
	}
	if len(over.Filters) > 0 {
		out.Filters = append(append([]string{}, out.Filters...), over.Filters...)
	}
	if over.ExactResize {
		out.ExactResize = true
	}
	return out
}

// Resolved is the final, validated parameter set for one job. It is never
// mutated after creation; re-resolution produces a new value.
type Resolved struct {
	Settings
	PresetApplied string   // quality preset that was actually applied, "" when none
	Warnings      []string // non-fatal validation notes
}

// Resolver merges settings layers and validates the result
type Resolver struct {
	Presets Table
	Bitrate BitratePolicy
}

// NewResolver creates a Resolver with the built-in preset table and the
// default bitrate policy
func NewResolver() *Resolver {
	return &Resolver{
		Presets: BuiltinPresets(),
		Bitrate: DefaultBitratePolicy{},
	}
}

// Resolve layers defaults, the named quality preset and user overrides into
// one validated Resolved value. An unknown preset name degrades to "no
// preset applied" with a warning; validation failures are collected into a
// single *ValidationError covering every violation.
func (r *Resolver) Resolve(outFormat format.Tag, defaults Settings, presetName string, overrides Settings) (*Resolved, error) {
	merged := defaults
	applied := ""
	var warnings []string

	if presetName != "" {
		if preset, ok := r.Presets.Lookup(outFormat, presetName); ok {
			merged = Overlay(merged, preset)
			applied = presetName
		} else {
			warnings = append(warnings, "unknown quality preset "+presetName+", continuing without one")
		}
	}
	merged = Overlay(merged, overrides)

	violations, moreWarnings := validate(merged)
	warnings = append(warnings, moreWarnings...)
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	return &Resolved{
		Settings:      merged,
		PresetApplied: applied,
		Warnings:      warnings,
	}, nil
}
