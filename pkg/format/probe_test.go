package format

import (
	"context"
	"math"
	"testing"
)

const mp4Banner = `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'clip.mp4':
  Metadata:
    major_brand     : isom
  Duration: 00:01:23.45, start: 0.000000, bitrate: 1245 kb/s
    Stream #0:0(und): Video: h264 (High) (avc1 / 0x31637661), yuv420p, 1920x1080 [SAR 1:1 DAR 16:9], 1100 kb/s, 30 fps, 30 tbr, 15360 tbn (default)
    Stream #0:1(und): Audio: aac (LC) (mp4a / 0x6134706D), 48000 Hz, stereo, fltp, 128 kb/s (default)
At least one output file must be specified`

const mp3Banner = `Input #0, mp3, from 'song.mp3':
  Duration: 00:03:12.10, start: 0.025057, bitrate: 192 kb/s
    Stream #0:0: Audio: mp3, 44100 Hz, stereo, fltp, 192 kb/s
At least one output file must be specified`

func TestParseBanner(t *testing.T) {
	info, err := parseBanner(mp4Banner)
	if err != nil {
		t.Fatalf("parseBanner failed: %v", err)
	}
	if info.Tag != MP4 {
		t.Errorf("Tag = %v, want %v", info.Tag, MP4)
	}
	if math.Abs(info.Duration-83.45) > 0.001 {
		t.Errorf("Duration = %v, want 83.45", info.Duration)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", info.Width, info.Height)
	}
	if info.FrameRate != 30 {
		t.Errorf("FrameRate = %v, want 30", info.FrameRate)
	}
	if !info.HasVideo || !info.HasAudio {
		t.Errorf("HasVideo=%v HasAudio=%v, want both true", info.HasVideo, info.HasAudio)
	}
}

func TestParseBannerAudioOnly(t *testing.T) {
	info, err := parseBanner(mp3Banner)
	if err != nil {
		t.Fatalf("parseBanner failed: %v", err)
	}
	if info.Tag != MP3 {
		t.Errorf("Tag = %v, want %v", info.Tag, MP3)
	}
	if info.HasVideo {
		t.Error("HasVideo = true for an audio file")
	}
	if !info.HasAudio {
		t.Error("HasAudio = false for an audio file")
	}
	if info.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0 without video", info.TotalFrames())
	}
}

func TestParseBannerRejectsGarbage(t *testing.T) {
	if _, err := parseBanner("not a banner at all"); err == nil {
		t.Error("expected error for non-banner output")
	}
}

func TestProberUsesInjectedRunner(t *testing.T) {
	p := NewProber("ffmpeg")
	var gotArgs []string
	p.run = func(ctx context.Context, bin string, args ...string) string {
		gotArgs = args
		return mp4Banner
	}

	info, err := p.Probe(context.Background(), "clip.mp4")
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if info.Tag != MP4 {
		t.Errorf("Tag = %v, want %v", info.Tag, MP4)
	}
	if len(gotArgs) == 0 || gotArgs[len(gotArgs)-1] != "clip.mp4" {
		t.Errorf("expected path as final argument, got %v", gotArgs)
	}
}

func TestTotalFrames(t *testing.T) {
	info := &ProbeInfo{Duration: 10, FrameRate: 30}
	if got := info.TotalFrames(); got != 300 {
		t.Errorf("TotalFrames = %d, want 300", got)
	}
}
