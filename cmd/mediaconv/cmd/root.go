// Package cmd implements the mediaconv command line interface
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/mediaconv/pkg/converter"
	"github.com/psantana5/mediaconv/pkg/logging"
	"github.com/psantana5/mediaconv/pkg/metrics"
	"github.com/psantana5/mediaconv/pkg/retry"
	"github.com/psantana5/mediaconv/pkg/settings"
)

var (
	cfgFile    string
	ffmpegPath string
	logLevel   string
	jsonLogs   bool
	presetFile string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mediaconv",
	Short: "Media file conversion driven by ffmpeg",
	Long: `mediaconv converts media files between container and codec formats by
driving an external ffmpeg binary. It resolves a conversion pipeline per
format pair, merges quality presets with explicit overrides, tracks encoder
progress and retries transient failures.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mediaconv/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&ffmpegPath, "ffmpeg", "", "ffmpeg binary path (default from config or PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&presetFile, "presets", "", "YAML file with additional quality presets")
}

// initConfig reads in the config file and matching environment variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(filepath.Join(home, ".mediaconv"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("mediaconv")
	viper.AutomaticEnv()
	viper.BindEnv("ffmpeg_path", "MEDIACONV_FFMPEG")

	if err := viper.ReadInConfig(); err == nil {
		if ffmpegPath == "" {
			ffmpegPath = viper.GetString("ffmpeg_path")
		}
		if presetFile == "" {
			presetFile = viper.GetString("preset_file")
		}
	}
}

// newLogger builds the CLI logger from global flags
func newLogger() *logging.Logger {
	return logging.New(logging.ParseLevel(logLevel), jsonLogs)
}

// newConverter builds the engine from global flags, the config file and an
// optional metrics sink
func newConverter(logger *logging.Logger, m *metrics.Metrics) (*converter.Converter, error) {
	opts := converter.Options{
		FFmpegPath: ffmpegPath,
		Logger:     logger,
		Metrics:    m,
	}
	if viper.IsSet("max_retries") {
		cfg := retry.DefaultConfig()
		cfg.MaxRetries = viper.GetInt("max_retries")
		opts.Retry = cfg
	}
	if presetFile != "" {
		overlay, err := settings.LoadPresetFile(presetFile)
		if err != nil {
			return nil, err
		}
		opts.PresetOverlay = overlay
	}
	return converter.New(opts), nil
}
