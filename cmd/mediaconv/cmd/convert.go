package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/mediaconv/pkg/cancel"
	"github.com/psantana5/mediaconv/pkg/converter"
	"github.com/psantana5/mediaconv/pkg/progress"
	"github.com/psantana5/mediaconv/pkg/settings"
)

var (
	convertPreset        string
	convertVideoCodec    string
	convertAudioCodec    string
	convertCRF           int
	convertVideoBitrate  string
	convertAudioBitrate  string
	convertResolution    string
	convertFrameRate     float64
	convertExactResize   bool
	convertForceReencode bool
	convertProbeInput    bool
	convertQuiet         bool
)

var convertCmd = &cobra.Command{
	Use:   "convert INPUT OUTPUT",
	Short: "Convert one media file",
	Long: `Converts INPUT to OUTPUT. The output container is derived from the
OUTPUT extension; codec defaults come from the matching pipeline and can be
layered with a quality preset (--preset) and explicit flags.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&convertPreset, "preset", "p", "", "quality preset: low, balanced, high, archive")
	convertCmd.Flags().StringVar(&convertVideoCodec, "video-codec", "", "video encoder override")
	convertCmd.Flags().StringVar(&convertAudioCodec, "audio-codec", "", "audio encoder override")
	convertCmd.Flags().IntVar(&convertCRF, "crf", -1, "constant rate factor, 0-51 (lower is better)")
	convertCmd.Flags().StringVar(&convertVideoBitrate, "video-bitrate", "", "video bitrate, e.g. 2500k")
	convertCmd.Flags().StringVar(&convertAudioBitrate, "audio-bitrate", "", "audio bitrate, e.g. 192k")
	convertCmd.Flags().StringVar(&convertResolution, "resolution", "", "target resolution WIDTHxHEIGHT (fit, keeps aspect)")
	convertCmd.Flags().Float64Var(&convertFrameRate, "fps", 0, "target frame rate")
	convertCmd.Flags().BoolVar(&convertExactResize, "exact-resize", false, "stretch to the exact resolution instead of fitting")
	convertCmd.Flags().BoolVar(&convertForceReencode, "force-reencode", false, "re-encode even when formats already match")
	convertCmd.Flags().BoolVar(&convertProbeInput, "probe", false, "detect input format by content instead of extension")
	convertCmd.Flags().BoolVarP(&convertQuiet, "quiet", "q", false, "suppress the progress line")
}

// overridesFromFlags assembles the explicit user override layer
func overridesFromFlags() settings.Settings {
	s := settings.Settings{
		VideoCodec:   convertVideoCodec,
		AudioCodec:   convertAudioCodec,
		VideoBitrate: convertVideoBitrate,
		AudioBitrate: convertAudioBitrate,
		Resolution:   convertResolution,
		FrameRate:    convertFrameRate,
		ExactResize:  convertExactResize,
	}
	if convertCRF >= 0 {
		crf := convertCRF
		s.CRF = &crf
	}
	return s
}

func runConvert(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	conv, err := newConverter(logger, nil)
	if err != nil {
		return err
	}

	token := cancel.NewToken()
	cancelOnSignal(token)

	job := converter.Job{
		InputPath:     args[0],
		OutputPath:    args[1],
		Overrides:     overridesFromFlags(),
		QualityPreset: convertPreset,
		ForceReencode: convertForceReencode,
		ProbeInput:    convertProbeInput,
		Token:         token,
	}
	if !convertQuiet {
		job.OnProgress = printProgress
	}

	outcome := conv.Convert(context.Background(), job)
	if !convertQuiet {
		fmt.Fprintln(os.Stderr)
	}

	switch {
	case outcome.Cancelled:
		fmt.Println("Conversion cancelled")
		return fmt.Errorf("cancelled")
	case outcome.Err != nil:
		fmt.Printf("Conversion failed (%s): %v\n", outcome.Category, outcome.Err)
		for _, hint := range outcome.Suggestions {
			fmt.Printf("  hint: %s\n", hint)
		}
		return fmt.Errorf("conversion failed")
	default:
		fmt.Printf("Converted via %s in %s (%d attempt(s))\n",
			outcome.Pipeline, outcome.Duration.Round(time.Millisecond), outcome.Attempts)
		return nil
	}
}

// cancelOnSignal wires SIGINT/SIGTERM to the cancellation token
func cancelOnSignal(token *cancel.Token) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nCancelling...")
		token.Cancel()
	}()
}

// printProgress renders a single updating progress line on stderr
func printProgress(s progress.Snapshot) {
	eta := "--:--"
	if s.ETA > 0 {
		eta = fmt.Sprintf("%02d:%02d", int(s.ETA.Minutes()), int(s.ETA.Seconds())%60)
	}
	fmt.Fprintf(os.Stderr, "\r%5.1f%%  frame %d  speed %.2fx  eta %s   ",
		s.Percentage, s.CurrentFrame, s.Speed, eta)
}
