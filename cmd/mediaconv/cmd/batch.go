package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/mediaconv/pkg/cancel"
	"github.com/psantana5/mediaconv/pkg/converter"
	"github.com/psantana5/mediaconv/pkg/settings"
)

var (
	batchMaxConcurrent int
	batchMemoryMB      uint64
)

var batchCmd = &cobra.Command{
	Use:   "batch MANIFEST",
	Short: "Convert many files from a YAML manifest",
	Long: `Runs every job listed in a YAML manifest under bounded concurrency.
Job failures are isolated: the batch always completes and reports per-job
results. Manifest format:

  max_concurrent: 2
  memory_threshold_mb: 2048
  jobs:
    - input: clip.mp4
      output: clip.mov
      preset: high
    - input: talk.mkv
      output: talk.mp4
      settings:
        crf: 20
        resolution: 1280x720`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchMaxConcurrent, "max-concurrent", 0, "override the manifest's concurrency bound")
	batchCmd.Flags().Uint64Var(&batchMemoryMB, "memory-threshold-mb", 0, "override the manifest's memory threshold")
}

// manifest is the on-disk batch description
type manifest struct {
	MaxConcurrent     int           `yaml:"max_concurrent"`
	MemoryThresholdMB uint64        `yaml:"memory_threshold_mb"`
	Jobs              []manifestJob `yaml:"jobs"`
}

type manifestJob struct {
	Input         string            `yaml:"input"`
	Output        string            `yaml:"output"`
	Preset        string            `yaml:"preset"`
	ForceReencode bool              `yaml:"force_reencode"`
	Settings      settings.Settings `yaml:"settings"`
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Jobs) == 0 {
		return nil, fmt.Errorf("manifest %s lists no jobs", path)
	}
	for i, job := range m.Jobs {
		if job.Input == "" || job.Output == "" {
			return nil, fmt.Errorf("manifest %s: job %d needs both input and output", path, i+1)
		}
	}
	return &m, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	m, err := loadManifest(args[0])
	if err != nil {
		return err
	}

	logger := newLogger()
	conv, err := newConverter(logger, nil)
	if err != nil {
		return err
	}

	token := cancel.NewToken()
	cancelOnSignal(token)

	jobs := make([]converter.Job, len(m.Jobs))
	for i, mj := range m.Jobs {
		jobs[i] = converter.Job{
			InputPath:     mj.Input,
			OutputPath:    mj.Output,
			QualityPreset: mj.Preset,
			ForceReencode: mj.ForceReencode,
			Overrides:     mj.Settings,
		}
	}

	opts := converter.BatchOptions{
		MaxConcurrent:        m.MaxConcurrent,
		MemoryThresholdBytes: m.MemoryThresholdMB * 1024 * 1024,
		Token:                token,
		OnBatchProgress: func(p converter.BatchProgress) {
			status := "ok"
			if p.Last.Cancelled {
				status = "cancelled"
			} else if p.Last.Err != nil {
				status = "failed"
			}
			fmt.Fprintf(os.Stderr, "[%d/%d] %s: %s\n", p.Completed, p.Total, p.Last.JobID, status)
		},
	}
	if batchMaxConcurrent > 0 {
		opts.MaxConcurrent = batchMaxConcurrent
	}
	if batchMemoryMB > 0 {
		opts.MemoryThresholdBytes = batchMemoryMB * 1024 * 1024
	}

	outcome := conv.ConvertBatch(context.Background(), jobs, opts)
	printBatchOutcome(outcome)

	if outcome.Cancelled {
		return fmt.Errorf("batch cancelled")
	}
	if outcome.CompletedCount < outcome.TotalCount {
		return fmt.Errorf("%d of %d jobs failed",
			outcome.TotalCount-outcome.CompletedCount, outcome.TotalCount)
	}
	return nil
}

func printBatchOutcome(outcome converter.BatchOutcome) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Job", "Pipeline", "Status", "Attempts", "Duration")

	for _, r := range outcome.Results {
		status := "ok"
		switch {
		case r.Cancelled:
			status = "cancelled"
		case r.Err != nil:
			status = string(r.Category)
		}
		table.Append([]string{
			r.JobID,
			r.Pipeline,
			status,
			fmt.Sprintf("%d", r.Attempts),
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	table.Render()

	fmt.Printf("\nCompleted %d/%d jobs", outcome.CompletedCount, outcome.TotalCount)
	if outcome.Cancelled {
		fmt.Print(" (cancelled)")
	}
	fmt.Println()
}
