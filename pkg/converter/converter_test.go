package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/psantana5/mediaconv/pkg/cancel"
	"github.com/psantana5/mediaconv/pkg/converr"
	"github.com/psantana5/mediaconv/pkg/format"
	"github.com/psantana5/mediaconv/pkg/pipeline"
	"github.com/psantana5/mediaconv/pkg/progress"
	"github.com/psantana5/mediaconv/pkg/retry"
	"github.com/psantana5/mediaconv/pkg/settings"
)

// fakeRunner replaces the real process supervisor. Behavior is keyed by the
// input path (args[1]) so batch tests can fail one job and not its siblings.
type fakeRunner struct {
	mu    sync.Mutex
	calls int
	specs []runSpec

	// err returns the error for one invocation; nil behaves like a clean exit
	err func(call int, spec runSpec) error
	// emit is fed to onProgress before the invocation returns
	emit []string
}

func (f *fakeRunner) Run(_ context.Context, spec runSpec) error {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.specs = append(f.specs, spec)
	f.mu.Unlock()

	for _, chunk := range f.emit {
		if spec.onProgress != nil {
			spec.onProgress(chunk)
		}
	}
	if f.err != nil {
		return f.err(call, spec)
	}
	return nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeRunner) lastSpec(t *testing.T) runSpec {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.specs) == 0 {
		t.Fatal("encoder never invoked")
	}
	return f.specs[len(f.specs)-1]
}

func newTestConverter(t *testing.T, runner *fakeRunner) *Converter {
	t.Helper()
	c := New(Options{
		FFmpegPath:   "/nonexistent-ffmpeg",
		Capabilities: &pipeline.Capabilities{},
		Retry: retry.Config{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			Multiplier: 2.0,
		},
	})
	c.runner = runner
	return c
}

func writeInput(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("not real media"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConvertSelectsPipelineFromExtensions(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestConverter(t, runner)
	in := writeInput(t, "clip.mp4")

	out := c.Convert(context.Background(), Job{
		InputPath:  in,
		OutputPath: filepath.Join(t.TempDir(), "clip.mov"),
	})

	if !out.Success {
		t.Fatalf("Convert failed: %v", out.Err)
	}
	if out.Pipeline != "mp4_to_mov" {
		t.Errorf("Pipeline = %q, want mp4_to_mov", out.Pipeline)
	}
	if out.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", out.Attempts)
	}
	if out.JobID == "" {
		t.Error("JobID not assigned")
	}
	if out.Settings == nil || out.Settings.VideoCodec != "libx264" || out.Settings.AudioCodec != "aac" {
		t.Errorf("Settings = %+v, want mov defaults", out.Settings)
	}

	spec := runner.lastSpec(t)
	if spec.args[0] != "-i" || spec.args[1] != in {
		t.Errorf("encoder args start = %v", spec.args[:2])
	}
}

func TestConvertMissingInput(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestConverter(t, runner)

	out := c.Convert(context.Background(), Job{
		InputPath:  "/definitely/not/there.mp4",
		OutputPath: "/tmp/out.mov",
	})

	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Category != converr.CategoryProcessSpawn {
		t.Errorf("Category = %q, want %q", out.Category, converr.CategoryProcessSpawn)
	}
	if runner.callCount() != 0 {
		t.Error("encoder must not be invoked when the input is missing")
	}
	if len(out.Suggestions) == 0 {
		t.Error("missing-input outcome should carry suggestions")
	}
}

func TestConvertUnsupportedOutputExtension(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestConverter(t, runner)
	in := writeInput(t, "clip.mp4")

	out := c.Convert(context.Background(), Job{
		InputPath:  in,
		OutputPath: filepath.Join(t.TempDir(), "clip.xyz"),
	})

	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Category != converr.CategoryUnsupportedFormat {
		t.Errorf("Category = %q, want %q", out.Category, converr.CategoryUnsupportedFormat)
	}
	if runner.callCount() != 0 {
		t.Error("encoder must not be invoked for an unsupported output format")
	}
}

func TestConvertUnsupportedPair(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestConverter(t, runner)
	in := writeInput(t, "song.mp3")

	out := c.Convert(context.Background(), Job{
		InputPath:  in,
		OutputPath: filepath.Join(t.TempDir(), "song.mp4"),
	})

	if out.Success {
		t.Fatal("audio to video must fail")
	}
	if out.Category != converr.CategoryPipelineUnsupported {
		t.Errorf("Category = %q, want %q", out.Category, converr.CategoryPipelineUnsupported)
	}
}

func TestConvertValidationFailureSkipsEncoder(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestConverter(t, runner)
	in := writeInput(t, "clip.mp4")

	job := Job{
		InputPath:  in,
		OutputPath: filepath.Join(t.TempDir(), "clip.webm"),
	}
	job.Overrides.Resolution = "99999x1"

	out := c.Convert(context.Background(), job)

	if out.Success {
		t.Fatal("expected validation failure")
	}
	if out.Category != converr.CategorySettingsValidation {
		t.Errorf("Category = %q, want %q", out.Category, converr.CategorySettingsValidation)
	}
	if out.Attempts != 0 || runner.callCount() != 0 {
		t.Error("validation failures must not reach the encoder")
	}
}

func TestConvertStreamCopyForSameFormat(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestConverter(t, runner)
	in := writeInput(t, "clip.mp4")

	out := c.Convert(context.Background(), Job{
		InputPath:  in,
		OutputPath: filepath.Join(t.TempDir(), "copy.mp4"),
	})

	if !out.Success {
		t.Fatalf("Convert failed: %v", out.Err)
	}
	if !out.StreamCopy || out.Pipeline != "stream_copy" {
		t.Errorf("StreamCopy = %v, Pipeline = %q", out.StreamCopy, out.Pipeline)
	}

	args := runner.lastSpec(t).args
	for i, a := range args {
		if a == "-c" && args[i+1] == "copy" {
			return
		}
	}
	t.Errorf("stream copy args missing -c copy: %v", args)
}

func TestConvertForceReencodeDisablesStreamCopy(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestConverter(t, runner)
	in := writeInput(t, "clip.mp4")

	out := c.Convert(context.Background(), Job{
		InputPath:     in,
		OutputPath:    filepath.Join(t.TempDir(), "again.mp4"),
		ForceReencode: true,
	})

	if !out.Success {
		t.Fatalf("Convert failed: %v", out.Err)
	}
	if out.StreamCopy || out.Pipeline != "mp4_to_mp4" {
		t.Errorf("StreamCopy = %v, Pipeline = %q, want re-encode", out.StreamCopy, out.Pipeline)
	}
}

func TestConvertOverridesDisableStreamCopy(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestConverter(t, runner)
	in := writeInput(t, "clip.mp4")

	job := Job{
		InputPath:  in,
		OutputPath: filepath.Join(t.TempDir(), "smaller.mp4"),
	}
	crf := 28
	job.Overrides.CRF = &crf

	out := c.Convert(context.Background(), job)

	if !out.Success {
		t.Fatalf("Convert failed: %v", out.Err)
	}
	if out.StreamCopy {
		t.Error("explicit settings must force a re-encode")
	}
	if out.Settings == nil || out.Settings.CRF == nil || *out.Settings.CRF != 28 {
		t.Errorf("override CRF lost: %+v", out.Settings)
	}
}

func TestConvertUnknownQualityPresetDegrades(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestConverter(t, runner)
	in := writeInput(t, "clip.mp4")

	out := c.Convert(context.Background(), Job{
		InputPath:     in,
		OutputPath:    filepath.Join(t.TempDir(), "clip.webm"),
		QualityPreset: "cinematic",
	})

	if !out.Success {
		t.Fatalf("unknown preset name must not fail the job: %v", out.Err)
	}
	if out.Settings.PresetApplied != "" {
		t.Errorf("PresetApplied = %q, want none", out.Settings.PresetApplied)
	}
	if len(out.Settings.Warnings) == 0 {
		t.Error("expected a warning naming the unknown preset")
	}
}

func TestConvertCancelledBeforeStart(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestConverter(t, runner)
	in := writeInput(t, "clip.mp4")

	tok := cancel.NewToken()
	tok.Cancel()

	out := c.Convert(context.Background(), Job{
		InputPath:  in,
		OutputPath: filepath.Join(t.TempDir(), "clip.mov"),
		Token:      tok,
	})

	if out.Success {
		t.Fatal("cancelled job must not succeed")
	}
	if !out.Cancelled {
		t.Error("Cancelled = false")
	}
	if out.Category != converr.CategoryCancelled {
		t.Errorf("Category = %q, want %q", out.Category, converr.CategoryCancelled)
	}
	if runner.callCount() != 0 {
		t.Error("encoder invoked after cancellation")
	}
}

func TestConvertCancellationWinsOverEncoderError(t *testing.T) {
	tok := cancel.NewToken()
	runner := &fakeRunner{
		err: func(int, runSpec) error {
			// Cancellation lands while the encoder is dying; the exit error
			// must not mask it.
			tok.Cancel()
			return converr.New(converr.CategoryEncoderExit, converr.SeverityError,
				"encoder exited with an error")
		},
	}
	c := newTestConverter(t, runner)
	in := writeInput(t, "clip.mp4")

	out := c.Convert(context.Background(), Job{
		InputPath:  in,
		OutputPath: filepath.Join(t.TempDir(), "clip.mov"),
		Token:      tok,
	})

	if !out.Cancelled {
		t.Error("cancellation must win the race with the exit error")
	}
	if out.Category != converr.CategoryCancelled {
		t.Errorf("Category = %q, want %q", out.Category, converr.CategoryCancelled)
	}
}

func TestConvertRetriesTransientFailures(t *testing.T) {
	runner := &fakeRunner{
		err: func(call int, _ runSpec) error {
			if call < 3 {
				return converr.New(converr.CategoryEncoderExit, converr.SeverityError,
					"encoder exited with an error")
			}
			return nil
		},
	}
	c := newTestConverter(t, runner)
	in := writeInput(t, "clip.mp4")

	out := c.Convert(context.Background(), Job{
		InputPath:  in,
		OutputPath: filepath.Join(t.TempDir(), "clip.mov"),
	})

	if !out.Success {
		t.Fatalf("Convert failed after retries: %v", out.Err)
	}
	if out.Attempts != 3 || runner.callCount() != 3 {
		t.Errorf("Attempts = %d, calls = %d, want 3", out.Attempts, runner.callCount())
	}
}

func TestConvertDoesNotRetryPermanentFailures(t *testing.T) {
	runner := &fakeRunner{
		err: func(int, runSpec) error {
			return errors.New("Unknown encoder 'libx999'")
		},
	}
	c := newTestConverter(t, runner)
	in := writeInput(t, "clip.mp4")

	out := c.Convert(context.Background(), Job{
		InputPath:  in,
		OutputPath: filepath.Join(t.TempDir(), "clip.mov"),
	})

	if out.Success {
		t.Fatal("expected failure")
	}
	if runner.callCount() != 1 {
		t.Errorf("encoder ran %d times on a permanent failure, want 1", runner.callCount())
	}
}

func TestConvertDeliversProgressSnapshots(t *testing.T) {
	runner := &fakeRunner{
		emit: []string{
			"frame=25\nout_time_ms=1000000\nspeed=2.0x\nprogress=continue",
			"frame=50\nout_time_ms=2000000\nspeed=2.0x\nprogress=end",
		},
	}
	c := newTestConverter(t, runner)
	in := writeInput(t, "clip.mp4")

	var frames []int64
	out := c.Convert(context.Background(), Job{
		InputPath:  in,
		OutputPath: filepath.Join(t.TempDir(), "clip.mov"),
		OnProgress: func(s progress.Snapshot) { frames = append(frames, s.CurrentFrame) },
	})

	if !out.Success {
		t.Fatalf("Convert failed: %v", out.Err)
	}
	if len(frames) != 2 || frames[0] != 25 || frames[1] != 50 {
		t.Errorf("progress frames = %v, want [25 50]", frames)
	}
}

func TestIntrospectionAPIs(t *testing.T) {
	c := newTestConverter(t, &fakeRunner{})

	if len(c.AvailablePipelines()) == 0 {
		t.Error("no pipelines available")
	}
	if !c.Supported("mp4", "webm") {
		t.Error("mp4→webm should be supported")
	}
	if c.Supported("mp3", "mp4") {
		t.Error("mp3→mp4 should not be supported")
	}
	presets := c.QualityPresets("mp4")
	if len(presets) == 0 {
		t.Error("no quality presets for mp4")
	}
}

func TestFillTargetBitrateCopiesInsteadOfMutating(t *testing.T) {
	policy := settings.DefaultBitratePolicy{}
	probe := &format.ProbeInfo{Width: 1920, Height: 1080, FrameRate: 30}

	bare := &settings.Resolved{Settings: settings.Settings{VideoCodec: "libx264"}}
	filled := fillTargetBitrate(bare, policy, probe)

	if filled.VideoBitrate == "" {
		t.Fatal("policy bitrate not applied")
	}
	if filled == bare || bare.VideoBitrate != "" {
		t.Error("resolved value mutated in place; a new value must replace it")
	}

	crf := 23
	withCRF := &settings.Resolved{Settings: settings.Settings{CRF: &crf}}
	if got := fillTargetBitrate(withCRF, policy, probe); got != withCRF {
		t.Error("CRF already set: the resolved value must pass through unchanged")
	}

	withBitrate := &settings.Resolved{Settings: settings.Settings{VideoBitrate: "2500k"}}
	if got := fillTargetBitrate(withBitrate, policy, probe); got != withBitrate || got.VideoBitrate != "2500k" {
		t.Error("explicit bitrate must pass through unchanged")
	}
}

func TestExitErrorClassification(t *testing.T) {
	base := errors.New("exit status 1")

	diskFull := exitError(base, "av_interleaved_write_frame(): No space left on device")
	if converr.CategoryOf(diskFull) != converr.CategoryResourceExhaustion {
		t.Errorf("disk full classified as %q", converr.CategoryOf(diskFull))
	}

	oom := exitError(base, "Cannot allocate memory")
	if converr.CategoryOf(oom) != converr.CategoryResourceExhaustion {
		t.Errorf("oom classified as %q", converr.CategoryOf(oom))
	}

	plain := exitError(base, "Error while decoding stream #0:0")
	if converr.CategoryOf(plain) != converr.CategoryEncoderExit {
		t.Errorf("plain exit classified as %q", converr.CategoryOf(plain))
	}
	if !errors.Is(plain, base) {
		t.Error("exit error must wrap the original wait error")
	}
}

func TestTailBufferKeepsLastLines(t *testing.T) {
	tail := newTailBuffer(3)
	for _, line := range []string{"a", "b", "c", "d", "e"} {
		tail.add(line)
	}
	if got := tail.text(); got != "c\nd\ne" {
		t.Errorf("tail = %q, want last three lines", got)
	}
}
