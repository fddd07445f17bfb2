package converter

import (
	"time"

	"github.com/psantana5/mediaconv/pkg/cancel"
	"github.com/psantana5/mediaconv/pkg/converr"
	"github.com/psantana5/mediaconv/pkg/progress"
	"github.com/psantana5/mediaconv/pkg/settings"
)

// Job describes one requested conversion. It is created by the caller and
// read-only to the engine.
type Job struct {
	// ID identifies the job in logs and results. Assigned automatically
	// when empty.
	ID string

	InputPath  string
	OutputPath string

	// Overrides are explicit user settings, the highest priority layer
	Overrides settings.Settings

	// QualityPreset names a quality preset for the output format. An
	// unknown name degrades to "no preset applied".
	QualityPreset string

	// ForceReencode disables the stream-copy shortcut for same-format pairs
	ForceReencode bool

	// ProbeInput forces content probing even when the extension resolves
	ProbeInput bool

	// Token allows the caller to cancel this job cooperatively. Optional.
	Token *cancel.Token

	// OnProgress receives each progress snapshot. Optional. Called serially
	// from the goroutine draining encoder output, never concurrently; the
	// last call completes before Convert returns.
	OnProgress func(progress.Snapshot)
}

// Outcome is the terminal result of one job, returned exactly once
type Outcome struct {
	JobID      string
	Success    bool
	Cancelled  bool
	Pipeline   string // pipeline name used, e.g. "mp4_to_mov"
	StreamCopy bool
	Settings   *settings.Resolved // nil when resolution failed or stream copy
	StartedAt  time.Time
	Duration   time.Duration
	Attempts   int

	Err         error
	Category    converr.Category // CategoryUnknown when Err is nil
	Severity    converr.Severity
	Suggestions []string
}

// BatchProgress is delivered to the batch callback after every finished job
type BatchProgress struct {
	Completed int // jobs finished so far, success or not
	Total     int
	Last      Outcome
}

// BatchOptions configures ConvertBatch
type BatchOptions struct {
	// MaxConcurrent bounds the number of jobs running at once. Values < 1
	// mean 1.
	MaxConcurrent int

	// MemoryThresholdBytes pauses scheduling between chunks while process
	// memory exceeds it. 0 disables the check.
	MemoryThresholdBytes uint64

	// Token cancels scheduling of not-yet-started jobs and propagates to
	// running jobs. Results already captured are not revisited.
	Token *cancel.Token

	// OnBatchProgress receives a notification after each finished job
	OnBatchProgress func(BatchProgress)
}

// BatchOutcome summarizes a batch run. The batch itself never fails; it
// only reports a lower completed count.
type BatchOutcome struct {
	Results         []Outcome
	CompletedCount  int // jobs that finished successfully
	TotalCount      int
	Cancelled       bool
	PeakMemoryBytes uint64
}
