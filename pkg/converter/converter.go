// Package converter is the conversion orchestration engine. It composes
// format resolution, pipeline lookup, settings resolution, argument
// building, process supervision, progress tracking, cancellation and
// retries into Convert and ConvertBatch.
package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/psantana5/mediaconv/pkg/converr"
	"github.com/psantana5/mediaconv/pkg/ffmpeg"
	"github.com/psantana5/mediaconv/pkg/format"
	"github.com/psantana5/mediaconv/pkg/logging"
	"github.com/psantana5/mediaconv/pkg/metrics"
	"github.com/psantana5/mediaconv/pkg/pipeline"
	"github.com/psantana5/mediaconv/pkg/progress"
	"github.com/psantana5/mediaconv/pkg/retry"
	"github.com/psantana5/mediaconv/pkg/settings"
)

// Options configures a Converter. The zero value is usable: it detects
// hardware capabilities, uses the built-in presets and discards logs.
type Options struct {
	// FFmpegPath is the encoder binary, "ffmpeg" when empty
	FFmpegPath string

	Logger  *logging.Logger
	Metrics *metrics.Metrics

	// Retry configures per-job attempt wrapping; zero value means
	// retry.DefaultConfig()
	Retry retry.Config

	// Capabilities overrides hardware detection, for tests and for callers
	// that already probed the platform
	Capabilities *pipeline.Capabilities

	// PresetOverlay adds or replaces named quality presets
	PresetOverlay settings.Table

	// Bitrate replaces the default bitrate-from-resolution policy
	Bitrate settings.BitratePolicy

	// GracePeriod between SIGTERM and SIGKILL on cancellation; default 5s
	GracePeriod time.Duration
}

// Converter owns the registries and configuration for running conversions.
// There is no ambient global state; callers construct one explicitly.
type Converter struct {
	binary   string
	registry *pipeline.Registry
	resolver *settings.Resolver
	prober   *format.Prober
	runner   encoderRunner
	logger   *logging.Logger
	metrics  *metrics.Metrics
	retryCfg retry.Config
	grace    time.Duration
}

// New constructs a Converter from opts
func New(opts Options) *Converter {
	binary := opts.FFmpegPath
	if binary == "" {
		binary = "ffmpeg"
	}
	caps := pipeline.Capabilities{}
	if opts.Capabilities != nil {
		caps = *opts.Capabilities
	} else {
		caps = pipeline.DetectCapabilities(context.Background(), binary)
	}
	resolver := settings.NewResolver()
	if opts.PresetOverlay != nil {
		resolver.Presets.Merge(opts.PresetOverlay)
	}
	if opts.Bitrate != nil {
		resolver.Bitrate = opts.Bitrate
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	retryCfg := opts.Retry
	if retryCfg == (retry.Config{}) {
		retryCfg = retry.DefaultConfig()
	}
	return &Converter{
		binary:   binary,
		registry: pipeline.NewRegistry(caps),
		resolver: resolver,
		prober:   format.NewProber(binary),
		runner:   processRunner{},
		logger:   logger,
		metrics:  opts.Metrics,
		retryCfg: retryCfg,
		grace:    opts.GracePeriod,
	}
}

// AvailablePipelines returns every registered pipeline descriptor
func (c *Converter) AvailablePipelines() []*pipeline.Descriptor {
	return c.registry.Available()
}

// QualityPresets returns the preset names available for an output format
func (c *Converter) QualityPresets(tag format.Tag) []string {
	return c.resolver.Presets.Names(tag)
}

// Supported reports whether a conversion pipeline exists for the pair
func (c *Converter) Supported(in, out format.Tag) bool {
	return c.registry.Supported(in, out)
}

// Convert runs one job to completion and returns its terminal outcome.
// Errors are reported inside the outcome, never panicked or lost.
func (c *Converter) Convert(ctx context.Context, job Job) Outcome {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	out := Outcome{JobID: job.ID, StartedAt: time.Now()}
	log := c.logger.WithField("job_id", job.ID)

	c.metrics.ObserveStart()
	err := c.run(ctx, &job, &out, log)
	out.Duration = time.Since(out.StartedAt)

	// Once cancellation has been observed the outcome is cancelled, even if
	// the encoder also reported an error around the same time.
	if job.Token.Cancelled() || converr.IsCancellation(err) {
		out.Cancelled = true
		if err == nil || !converr.IsCancellation(err) {
			err = converr.NewCancellation()
		}
	}

	if err != nil {
		out.Err = err
		out.Category = converr.CategoryOf(err)
		out.Severity = severityOf(err)
		out.Suggestions = suggestionsOf(err)
		log.Warn("conversion finished with error",
			"category", string(out.Category), "error", err.Error(),
			"duration", out.Duration.Round(time.Millisecond).String())
	} else {
		out.Success = true
		log.Info("conversion finished",
			"pipeline", out.Pipeline, "attempts", out.Attempts,
			"duration", out.Duration.Round(time.Millisecond).String())
	}
	c.metrics.ObserveFinish(out.Duration.Seconds(), out.Cancelled, out.Err)
	return out
}

// run performs the synchronous phase (resolution, validation) and then the
// supervised encode attempts
func (c *Converter) run(ctx context.Context, job *Job, out *Outcome, log *logging.Logger) error {
	// Checkpoint before any validation work.
	if err := job.Token.Check(); err != nil {
		return err
	}

	if _, err := os.Stat(job.InputPath); err != nil {
		return converr.Wrap(err, converr.CategoryProcessSpawn, converr.SeverityError,
			fmt.Sprintf("input file not accessible: %s", job.InputPath),
			"check the input path", "check file permissions")
	}

	inTag, probeInfo, err := c.resolveInput(ctx, job)
	if err != nil {
		return err
	}
	outTag, err := format.Resolve(job.OutputPath)
	if err != nil {
		return err
	}

	var args []string
	// Same-format pairs remux without re-encoding unless the caller asked
	// for a re-encode or supplied settings that require one.
	if inTag == outTag && !job.ForceReencode && job.QualityPreset == "" && job.Overrides.IsZero() {
		desc, err := c.registry.Lookup(inTag, outTag)
		if err != nil {
			return err
		}
		out.Pipeline = "stream_copy"
		out.StreamCopy = true
		args = ffmpeg.BuildCopyArgs(job.InputPath, job.OutputPath, desc)
	} else {
		desc, err := c.registry.Lookup(inTag, outTag)
		if err != nil {
			return err
		}
		resolved, err := c.resolver.Resolve(outTag, desc.Defaults, job.QualityPreset, job.Overrides)
		if err != nil {
			return err
		}
		for _, warning := range resolved.Warnings {
			log.Warn(warning)
		}
		if outTag.Video() {
			resolved = fillTargetBitrate(resolved, c.resolver.Bitrate, probeInfo)
		}
		out.Pipeline = desc.Name()
		out.Settings = resolved
		args = ffmpeg.BuildArgs(job.InputPath, job.OutputPath, desc, resolved, probeInfo)
	}

	log.Debug("encoder invocation prepared", "pipeline", out.Pipeline, "args", len(args))

	return retry.Do(ctx, c.retryCfg, job.Token, func(attempt int) error {
		out.Attempts = attempt
		if attempt > 1 {
			c.metrics.ObserveRetry()
			log.Info("retrying conversion", "attempt", attempt)
		}
		// Checkpoint before spawning the encoder.
		if err := job.Token.Check(); err != nil {
			return err
		}

		var totalFrames int64
		var totalDuration float64
		if probeInfo != nil {
			totalFrames = probeInfo.TotalFrames()
			totalDuration = probeInfo.Duration
		}
		tracker := progress.NewTracker(totalFrames, totalDuration)

		return c.runner.Run(ctx, runSpec{
			binary: c.binary,
			args:   args,
			token:  job.Token,
			grace:  c.grace,
			onProgress: func(chunk string) {
				// Checkpoint on every progress tick; the termination
				// supervisor handles the process itself.
				if job.Token.Cancelled() {
					return
				}
				snapshot := tracker.Parse(chunk)
				if job.OnProgress != nil {
					job.OnProgress(snapshot)
				}
			},
		})
	})
}

// resolveInput determines the input format tag, probing content when the
// extension is inconclusive or when probing was explicitly requested. Probe
// info is also gathered best-effort for scaling and progress totals.
func (c *Converter) resolveInput(ctx context.Context, job *Job) (format.Tag, *format.ProbeInfo, error) {
	if job.ProbeInput {
		info, err := c.prober.Probe(ctx, job.InputPath)
		if err != nil {
			return "", nil, err
		}
		return info.Tag, info, nil
	}

	tag, err := format.Resolve(job.InputPath)
	if err != nil {
		// Extension miss: fall back to content probing.
		info, probeErr := c.prober.Probe(ctx, job.InputPath)
		if probeErr != nil {
			return "", nil, err
		}
		return info.Tag, info, nil
	}

	// Best-effort probe for dimensions and duration; a failed probe only
	// costs scaling precision and progress totals.
	info, probeErr := c.prober.Probe(ctx, job.InputPath)
	if probeErr != nil {
		return tag, nil, nil
	}
	return tag, info, nil
}

// fillTargetBitrate is the quality knob of last resort: when a resolved
// value carries neither CRF nor a video bitrate, the policy derives one from
// the input dimensions. Resolved values are immutable once returned, so the
// fill produces a replacement copy instead of writing in place.
func fillTargetBitrate(resolved *settings.Resolved, policy settings.BitratePolicy, info *format.ProbeInfo) *settings.Resolved {
	if resolved.CRF != nil || resolved.VideoBitrate != "" {
		return resolved
	}
	w, h, fps := probeDimensions(info)
	filled := *resolved
	filled.VideoBitrate = policy.TargetBitrate(w, h, fps)
	return &filled
}

func probeDimensions(info *format.ProbeInfo) (int, int, float64) {
	if info == nil {
		return 0, 0, 0
	}
	return info.Width, info.Height, info.FrameRate
}

// severityOf extracts the severity tier, defaulting to error
func severityOf(err error) converr.Severity {
	var ce *converr.Error
	if errors.As(err, &ce) {
		return ce.Severity
	}
	return converr.SeverityError
}

// suggestionsOf extracts actionable suggestions, falling back to the
// category's standard hints
func suggestionsOf(err error) []string {
	var ce *converr.Error
	if errors.As(err, &ce) && len(ce.Suggestions) > 0 {
		return ce.Suggestions
	}
	return converr.SuggestionsFor(converr.CategoryOf(err))
}
