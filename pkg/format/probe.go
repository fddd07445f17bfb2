package format

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// ProbeInfo holds the stream description extracted from the encoder banner
type ProbeInfo struct {
	Container string  // raw demuxer name list as reported
	Tag       Tag     // canonical tag mapped from Container
	Duration  float64 // seconds, 0 when unknown
	Width     int
	Height    int
	FrameRate float64
	HasVideo  bool
	HasAudio  bool
}

// TotalFrames estimates the frame count from duration and frame rate
func (p *ProbeInfo) TotalFrames() int64 {
	if p == nil || p.Duration <= 0 || p.FrameRate <= 0 {
		return 0
	}
	return int64(p.Duration * p.FrameRate)
}

// Prober inspects media files by invoking the encoder's info mode
type Prober struct {
	// BinaryPath is the encoder binary, "ffmpeg" when empty
	BinaryPath string

	// run is swapped in tests to avoid spawning real processes
	run func(ctx context.Context, bin string, args ...string) string
}

// NewProber creates a Prober using the given encoder binary
func NewProber(binaryPath string) *Prober {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &Prober{
		BinaryPath: binaryPath,
		run:        runCombined,
	}
}

// runCombined executes the binary and returns combined output. The encoder
// exits non-zero in info mode (no output file given); the banner on stderr
// is still what we want, so the exit error is deliberately ignored.
func runCombined(ctx context.Context, bin string, args ...string) string {
	out, _ := exec.CommandContext(ctx, bin, args...).CombinedOutput()
	return string(out)
}

// Probe inspects path and returns its stream description, or an
// UnsupportedError when the container cannot be mapped to a known tag.
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeInfo, error) {
	out := p.run(ctx, p.BinaryPath, "-hide_banner", "-i", path)
	info, err := parseBanner(out)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	return info, nil
}

var (
	reInput    = regexp.MustCompile(`Input #\d+, ([^,]+(?:,[^,]+)*?), from`)
	reDuration = regexp.MustCompile(`Duration: (\d+):(\d{2}):(\d{2})\.(\d+)`)
	reVideo    = regexp.MustCompile(`Stream #[^:]+:\d+.*: Video: .*?(\d{2,5})x(\d{2,5})`)
	reFPS      = regexp.MustCompile(`(\d+(?:\.\d+)?) fps`)
	reAudio    = regexp.MustCompile(`Stream #[^:]+:\d+.*: Audio: `)
)

// parseBanner extracts a ProbeInfo from raw encoder info-mode output. Every
// field except the container line is optional.
func parseBanner(out string) (*ProbeInfo, error) {
	m := reInput.FindStringSubmatch(out)
	if m == nil {
		return nil, &UnsupportedError{Raw: firstLine(out)}
	}
	container := strings.TrimSpace(m[1])

	tag, err := FromContainer(container)
	if err != nil {
		return nil, err
	}

	info := &ProbeInfo{Container: container, Tag: tag}

	if d := reDuration.FindStringSubmatch(out); d != nil {
		h, _ := strconv.Atoi(d[1])
		min, _ := strconv.Atoi(d[2])
		sec, _ := strconv.Atoi(d[3])
		frac, _ := strconv.ParseFloat("0."+d[4], 64)
		info.Duration = float64(h*3600+min*60+sec) + frac
	}
	if v := reVideo.FindStringSubmatch(out); v != nil {
		info.HasVideo = true
		info.Width, _ = strconv.Atoi(v[1])
		info.Height, _ = strconv.Atoi(v[2])
	}
	if f := reFPS.FindStringSubmatch(out); f != nil {
		info.FrameRate, _ = strconv.ParseFloat(f[1], 64)
	}
	info.HasAudio = reAudio.MatchString(out)

	return info, nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
