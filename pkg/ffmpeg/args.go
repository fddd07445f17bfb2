// Package ffmpeg translates resolved settings into an ordered encoder
// invocation. Argument order is load-bearing: several flags apply to "the
// next stream" positionally, so blocks are emitted in a fixed sequence.
package ffmpeg

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/psantana5/mediaconv/pkg/format"
	"github.com/psantana5/mediaconv/pkg/pipeline"
	"github.com/psantana5/mediaconv/pkg/settings"
)

// BuildArgs produces the full encoder argument list for one conversion.
// Block order: input, video quality, audio, frame rate, scale filter,
// metadata passthrough, container flags, GOP/B-frames, rate-control ceiling,
// threads, progress reporting, overwrite, output path.
func BuildArgs(inputPath, outputPath string, desc *pipeline.Descriptor, s *settings.Resolved, probe *format.ProbeInfo) []string {
	args := []string{"-i", inputPath}

	audioOnly := !desc.Output.Video()

	if audioOnly {
		args = append(args, "-vn")
	} else {
		// Video quality block. CRF takes precedence over bitrate when both
		// are present; the encoder preset closes the block.
		if s.VideoCodec != "" {
			args = append(args, "-c:v", s.VideoCodec)
		}
		switch {
		case s.CRF != nil:
			args = append(args, "-crf", strconv.Itoa(*s.CRF))
		case s.VideoBitrate != "":
			args = append(args, "-b:v", s.VideoBitrate)
		}
		if s.Preset != "" {
			args = append(args, "-preset", s.Preset)
		}
	}

	// Audio block.
	if s.AudioCodec != "" {
		args = append(args, "-c:a", s.AudioCodec)
	}
	if s.AudioBitrate != "" {
		args = append(args, "-b:a", s.AudioBitrate)
	}
	if s.SampleRate != 0 {
		args = append(args, "-ar", strconv.Itoa(s.SampleRate))
	}
	if s.Channels != 0 {
		args = append(args, "-ac", strconv.Itoa(s.Channels))
	}
	if s.AudioQuality != nil {
		args = append(args, "-q:a", strconv.Itoa(*s.AudioQuality))
	}

	if s.FrameRate != 0 {
		args = append(args, "-r", formatFrameRate(s.FrameRate))
	}

	// Scale filter plus any custom filters, combined into one -vf so custom
	// filters extend rather than replace the scaling.
	if !audioOnly {
		var filters []string
		if scale := scaleFilter(s, probe); scale != "" {
			filters = append(filters, scale)
		}
		filters = append(filters, s.Filters...)
		if len(filters) > 0 {
			args = append(args, "-vf", strings.Join(filters, ","))
		}
	}

	if desc.Container.PreserveMetadata {
		args = append(args, "-map_metadata", "0")
		if !audioOnly {
			args = append(args, "-map_chapters", "0")
		}
	}
	if desc.Container.FastStart {
		args = append(args, "-movflags", "+faststart")
	}

	if !audioOnly {
		if s.GOPSize != 0 {
			args = append(args, "-g", strconv.Itoa(s.GOPSize))
		}
		if s.MinKeyInt != 0 {
			args = append(args, "-keyint_min", strconv.Itoa(s.MinKeyInt))
		}
		if s.BFrames != nil {
			args = append(args, "-bf", strconv.Itoa(*s.BFrames))
		}
		if s.MaxRate != "" {
			args = append(args, "-maxrate", s.MaxRate)
			bufsize := s.BufSize
			if bufsize == "" {
				bufsize = s.MaxRate
			}
			args = append(args, "-bufsize", bufsize)
		}
	}

	if s.Threads != 0 {
		args = append(args, "-threads", strconv.Itoa(s.Threads))
	}

	// Machine-parseable progress on stdout, human stats suppressed.
	args = append(args, "-progress", "pipe:1", "-nostats")
	args = append(args, "-y", outputPath)
	return args
}

// BuildCopyArgs produces the stream-copy (remux) argument list used when the
// input and output containers already match and re-encoding was not
// explicitly requested
func BuildCopyArgs(inputPath, outputPath string, desc *pipeline.Descriptor) []string {
	args := []string{"-i", inputPath, "-c", "copy"}
	if desc != nil && desc.Container.PreserveMetadata {
		args = append(args, "-map_metadata", "0")
	}
	if desc != nil && desc.Container.FastStart {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, "-progress", "pipe:1", "-nostats", "-y", outputPath)
	return args
}

// scaleFilter returns the -vf scale expression for the requested resolution,
// or "" when no resolution was requested. Default behavior decreases to fit
// inside the target while keeping aspect ratio; exact stretch only when
// explicitly requested.
func scaleFilter(s *settings.Resolved, probe *format.ProbeInfo) string {
	if s.Resolution == "" {
		return ""
	}
	parts := strings.SplitN(s.Resolution, "x", 2)
	if len(parts) != 2 {
		return ""
	}
	targetW, _ := strconv.Atoi(parts[0])
	targetH, _ := strconv.Atoi(parts[1])
	if targetW <= 0 || targetH <= 0 {
		return ""
	}

	if s.ExactResize {
		return fmt.Sprintf("scale=%d:%d", targetW, targetH)
	}
	if probe != nil && probe.Width > 0 && probe.Height > 0 {
		w, h := fitDimensions(probe.Width, probe.Height, targetW, targetH)
		return fmt.Sprintf("scale=%d:%d", w, h)
	}
	// No probe info: let the encoder keep the aspect ratio itself.
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", targetW, targetH)
}

// fitDimensions scales (srcW, srcH) down to fit inside (maxW, maxH) while
// preserving aspect ratio. Results are rounded to even numbers, which the
// common pixel formats require.
func fitDimensions(srcW, srcH, maxW, maxH int) (int, int) {
	scaleW := float64(maxW) / float64(srcW)
	scaleH := float64(maxH) / float64(srcH)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	if scale > 1 {
		scale = 1 // never upscale on the fit path
	}
	w := even(int(math.Round(float64(srcW) * scale)))
	h := even(int(math.Round(float64(srcH) * scale)))
	if w < 2 {
		w = 2
	}
	if h < 2 {
		h = 2
	}
	return w, h
}

func even(v int) int {
	return v - v%2
}

// formatFrameRate renders a frame rate without a trailing ".0" for whole
// numbers
func formatFrameRate(fps float64) string {
	if fps == float64(int(fps)) {
		return strconv.Itoa(int(fps))
	}
	return strconv.FormatFloat(fps, 'f', -1, 64)
}
