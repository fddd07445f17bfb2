package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/mediaconv/pkg/format"
)

var (
	pipelinesInput  string
	pipelinesOutput string
)

var pipelinesCmd = &cobra.Command{
	Use:   "pipelines",
	Short: "List registered conversion pipelines",
	RunE:  runPipelines,
}

var presetsCmd = &cobra.Command{
	Use:   "presets FORMAT",
	Short: "List quality presets for an output format",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresets,
}

func init() {
	rootCmd.AddCommand(pipelinesCmd)
	rootCmd.AddCommand(presetsCmd)

	pipelinesCmd.Flags().StringVar(&pipelinesInput, "input", "", "only pipelines from this input format")
	pipelinesCmd.Flags().StringVar(&pipelinesOutput, "output", "", "only pipelines to this output format")
}

func runPipelines(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	conv, err := newConverter(logger, nil)
	if err != nil {
		return err
	}

	var inFilter, outFilter format.Tag
	if pipelinesInput != "" {
		if inFilter, err = format.Parse(pipelinesInput); err != nil {
			return err
		}
	}
	if pipelinesOutput != "" {
		if outFilter, err = format.Parse(pipelinesOutput); err != nil {
			return err
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Pipeline", "Input", "Output", "Video codec", "Audio codec")

	count := 0
	for _, desc := range conv.AvailablePipelines() {
		if inFilter != "" && desc.Input != inFilter {
			continue
		}
		if outFilter != "" && desc.Output != outFilter {
			continue
		}
		video := desc.PreferredVideoCodec
		if video == "" {
			video = "-"
		}
		table.Append([]string{
			desc.Name(),
			string(desc.Input),
			string(desc.Output),
			video,
			desc.PreferredAudioCodec,
		})
		count++
	}
	table.Render()
	fmt.Printf("\n%d pipelines\n", count)
	return nil
}

func runPresets(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	conv, err := newConverter(logger, nil)
	if err != nil {
		return err
	}

	tag, err := format.Parse(args[0])
	if err != nil {
		return err
	}

	names := conv.QualityPresets(tag)
	if len(names) == 0 {
		fmt.Printf("No quality presets for %s\n", tag)
		return nil
	}
	fmt.Printf("Quality presets for %s: %s\n", tag, strings.Join(names, ", "))
	return nil
}
