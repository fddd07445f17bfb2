package pipeline

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// Capabilities records which hardware-accelerated encoders the platform
// offers. Missing acceleration degrades gracefully: only the preferred codec
// of each descriptor changes, never the supported allow-list.
type Capabilities struct {
	NVENC        bool
	VideoToolbox bool
	VAAPI        bool
}

// preferVideo upgrades a software H.264 preference to the best available
// hardware encoder. Non-H.264 preferences (VP9, MPEG-4) are left alone;
// hardware support for those is too uneven to prefer by default.
func (c Capabilities) preferVideo(software string) string {
	if software != "libx264" {
		return software
	}
	switch {
	case c.NVENC:
		return "h264_nvenc"
	case c.VideoToolbox:
		return "h264_videotoolbox"
	case c.VAAPI:
		return "h264_vaapi"
	default:
		return software
	}
}

// DetectCapabilities queries the encoder binary for compiled-in hardware
// encoders. Detection failures return the zero value: software encoding
// always works.
func DetectCapabilities(ctx context.Context, binaryPath string) Capabilities {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, binaryPath, "-hide_banner", "-encoders").Output()
	if err != nil {
		return Capabilities{}
	}
	return parseEncoderList(string(out))
}

// parseEncoderList scans `ffmpeg -encoders` output for hardware variants
func parseEncoderList(out string) Capabilities {
	return Capabilities{
		NVENC:        strings.Contains(out, "h264_nvenc"),
		VideoToolbox: strings.Contains(out, "h264_videotoolbox"),
		VAAPI:        strings.Contains(out, "h264_vaapi"),
	}
}
