// Package pipeline maps (input format, output format) pairs to encode
// pipeline descriptors. The registry is built once at startup and read-only
// afterwards; lookup is a pure function of the ordered pair.
package pipeline

import (
	"fmt"
	"sort"

	"github.com/psantana5/mediaconv/pkg/converr"
	"github.com/psantana5/mediaconv/pkg/format"
	"github.com/psantana5/mediaconv/pkg/settings"
)

// Pair is the ordered registry key. A→B and B→A are distinct pipelines.
type Pair struct {
	In  format.Tag
	Out format.Tag
}

// Name returns the human-readable pipeline name
func (p Pair) Name() string {
	return fmt.Sprintf("%s_to_%s", p.In, p.Out)
}

// ContainerOptions carries per-container muxing policy
type ContainerOptions struct {
	PreserveMetadata  bool
	FastStart         bool // moves the index atom up front for streaming starts
	CompatibilityMode bool
}

// Descriptor describes one encode pipeline. Descriptors are constructed once
// by NewRegistry and must not be mutated afterwards.
type Descriptor struct {
	Input                format.Tag
	Output               format.Tag
	PreferredVideoCodec  string
	PreferredAudioCodec  string
	SupportedVideoCodecs []string
	SupportedAudioCodecs []string
	Defaults             settings.Settings
	Container            ContainerOptions
}

// Name returns the pipeline name, e.g. "mp4_to_mov"
func (d *Descriptor) Name() string {
	return Pair{In: d.Input, Out: d.Output}.Name()
}

// UnsupportedPairError reports a format pair with no registered pipeline
type UnsupportedPairError struct {
	In  format.Tag
	Out format.Tag
}

// Error implements the error interface
func (e *UnsupportedPairError) Error() string {
	return fmt.Sprintf("no conversion pipeline from %s to %s", e.In, e.Out)
}

// Category implements converr.Categorized
func (e *UnsupportedPairError) Category() converr.Category {
	return converr.CategoryPipelineUnsupported
}

// Registry is the pipeline lookup table
type Registry struct {
	pipelines map[Pair]*Descriptor
}

// NewRegistry builds the registry for all supported format pairs. Hardware
// capabilities adjust only the preferred video codec of each descriptor;
// the supported-codec allow-lists are identical on every platform.
func NewRegistry(caps Capabilities) *Registry {
	r := &Registry{pipelines: make(map[Pair]*Descriptor)}

	video := []format.Tag{format.MP4, format.MOV, format.MKV, format.AVI, format.WebM, format.FLV}
	audio := []format.Tag{format.MP3, format.AAC, format.M4A, format.WAV, format.FLAC, format.OGG}

	// Video-to-video, including same-format re-encode pipelines. The
	// zero-cost stream-copy path is not a pipeline; callers select it before
	// lookup when formats already match and re-encoding was not requested.
	for _, in := range video {
		for _, out := range video {
			r.add(in, out, caps)
		}
	}
	// Audio-to-audio.
	for _, in := range audio {
		for _, out := range audio {
			r.add(in, out, caps)
		}
	}
	// Audio extraction from video containers.
	for _, in := range video {
		for _, out := range audio {
			r.add(in, out, caps)
		}
	}
	return r
}

// add registers the descriptor for one ordered pair
func (r *Registry) add(in, out format.Tag, caps Capabilities) {
	policy := containerPolicies[out]
	desc := &Descriptor{
		Input:                in,
		Output:               out,
		PreferredVideoCodec:  caps.preferVideo(policy.preferredVideo),
		PreferredAudioCodec:  policy.preferredAudio,
		SupportedVideoCodecs: policy.supportedVideo,
		SupportedAudioCodecs: policy.supportedAudio,
		Defaults:             policy.defaults,
		Container:            policy.container,
	}
	if !out.Video() {
		desc.PreferredVideoCodec = ""
		desc.SupportedVideoCodecs = nil
	}
	r.pipelines[Pair{In: in, Out: out}] = desc
}

// Lookup returns the descriptor for the ordered pair, or an
// UnsupportedPairError naming both formats
func (r *Registry) Lookup(in, out format.Tag) (*Descriptor, error) {
	desc, ok := r.pipelines[Pair{In: in, Out: out}]
	if !ok {
		return nil, &UnsupportedPairError{In: in, Out: out}
	}
	return desc, nil
}

// Supported reports whether a pipeline exists for the ordered pair
func (r *Registry) Supported(in, out format.Tag) bool {
	_, ok := r.pipelines[Pair{In: in, Out: out}]
	return ok
}

// Available returns every registered descriptor, sorted by pipeline name
func (r *Registry) Available() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.pipelines))
	for _, desc := range r.pipelines {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name() < out[j].Name()
	})
	return out
}

func intp(v int) *int { return &v }

// policy bundles the per-output-container codec and muxing defaults
type policy struct {
	preferredVideo string
	preferredAudio string
	supportedVideo []string
	supportedAudio []string
	defaults       settings.Settings
	container      ContainerOptions
}

var containerPolicies = map[format.Tag]policy{
	format.MP4: {
		preferredVideo: "libx264",
		preferredAudio: "aac",
		supportedVideo: []string{"libx264", "libx265", "mpeg4"},
		supportedAudio: []string{"aac", "libmp3lame"},
		defaults:       settings.Settings{VideoCodec: "libx264", AudioCodec: "aac", CRF: intp(23), Preset: "medium", AudioBitrate: "160k"},
		container:      ContainerOptions{PreserveMetadata: true, FastStart: true},
	},
	format.MOV: {
		preferredVideo: "libx264",
		preferredAudio: "aac",
		supportedVideo: []string{"libx264", "libx265", "mpeg4"},
		supportedAudio: []string{"aac", "pcm_s16le"},
		defaults:       settings.Settings{VideoCodec: "libx264", AudioCodec: "aac", CRF: intp(23), Preset: "medium", AudioBitrate: "192k"},
		container:      ContainerOptions{PreserveMetadata: true, FastStart: true},
	},
	format.MKV: {
		preferredVideo: "libx264",
		preferredAudio: "aac",
		supportedVideo: []string{"libx264", "libx265", "libvpx-vp9", "libaom-av1"},
		supportedAudio: []string{"aac", "libopus", "flac", "libmp3lame"},
		defaults:       settings.Settings{VideoCodec: "libx264", AudioCodec: "aac", CRF: intp(22), Preset: "medium", AudioBitrate: "192k"},
		container:      ContainerOptions{PreserveMetadata: true},
	},
	format.WebM: {
		preferredVideo: "libvpx-vp9",
		preferredAudio: "libopus",
		supportedVideo: []string{"libvpx-vp9", "libaom-av1"},
		supportedAudio: []string{"libopus", "libvorbis"},
		defaults:       settings.Settings{VideoCodec: "libvpx-vp9", AudioCodec: "libopus", CRF: intp(32), AudioBitrate: "128k"},
		container:      ContainerOptions{PreserveMetadata: true},
	},
	format.AVI: {
		preferredVideo: "mpeg4",
		preferredAudio: "libmp3lame",
		supportedVideo: []string{"mpeg4", "libx264"},
		supportedAudio: []string{"libmp3lame", "pcm_s16le"},
		defaults:       settings.Settings{VideoCodec: "mpeg4", AudioCodec: "libmp3lame", VideoBitrate: "4000k", AudioBitrate: "192k"},
		container:      ContainerOptions{CompatibilityMode: true},
	},
	format.FLV: {
		preferredVideo: "libx264",
		preferredAudio: "aac",
		supportedVideo: []string{"libx264"},
		supportedAudio: []string{"aac", "libmp3lame"},
		defaults:       settings.Settings{VideoCodec: "libx264", AudioCodec: "aac", CRF: intp(23), Preset: "veryfast", AudioBitrate: "128k"},
	},
	format.MP3: {
		preferredAudio: "libmp3lame",
		supportedAudio: []string{"libmp3lame"},
		defaults:       settings.Settings{AudioCodec: "libmp3lame", AudioBitrate: "192k"},
		container:      ContainerOptions{PreserveMetadata: true},
	},
	format.AAC: {
		preferredAudio: "aac",
		supportedAudio: []string{"aac"},
		defaults:       settings.Settings{AudioCodec: "aac", AudioBitrate: "160k"},
	},
	format.M4A: {
		preferredAudio: "aac",
		supportedAudio: []string{"aac"},
		defaults:       settings.Settings{AudioCodec: "aac", AudioBitrate: "160k"},
		container:      ContainerOptions{PreserveMetadata: true, FastStart: true},
	},
	format.WAV: {
		preferredAudio: "pcm_s16le",
		supportedAudio: []string{"pcm_s16le"},
		defaults:       settings.Settings{AudioCodec: "pcm_s16le", SampleRate: 44100},
	},
	format.FLAC: {
		preferredAudio: "flac",
		supportedAudio: []string{"flac"},
		defaults:       settings.Settings{AudioCodec: "flac"},
		container:      ContainerOptions{PreserveMetadata: true},
	},
	format.OGG: {
		preferredAudio: "libvorbis",
		supportedAudio: []string{"libvorbis", "libopus"},
		defaults:       settings.Settings{AudioCodec: "libvorbis", AudioQuality: intp(5)},
		container:      ContainerOptions{PreserveMetadata: true},
	},
}
