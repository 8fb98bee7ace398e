package cmd

import (
	"github.com/spf13/cobra"
)

// Version is overridden from the embedded VERSION file at startup.
var Version = "dev"

var (
	configFlag    string
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "retrace",
	Short: "Match exported chat media back to the originals they came from",
	Long: `retrace pairs photos and videos exported from a messaging app, which have
lost their metadata and been recompressed, with the original files in a
camera roll or photo library. Matching uses a timestamp window plus a
perceptual hash for images and container duration for videos.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

// ApplyVersion copies Version onto the root command.
func ApplyVersion() {
	rootCmd.Version = Version
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default is $XDG_CONFIG_HOME/retrace/retrace.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Log format: console, json")
	ApplyVersion()
}
