package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"retrace/internal/config"
	"retrace/internal/pipeline"
	"retrace/internal/report"
)

var (
	formatFlag       string
	exportedFlag     bool
	inspectHintsFlag string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [folder]",
	Short: "Show the timestamp and feature resolved for every media file",
	Long: `Scan one folder and print, per file, the kind, the resolved timestamp with
its source and the extracted feature, without matching. Use --exported to
apply the rules for chat exports (hints, then filename, then file time)
instead of those for originals (EXIF or QuickTime, then file time).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder := args[0]
		if err := requireDir(folder); err != nil {
			return err
		}

		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		s, err := openSession(cfg, "")
		if err != nil {
			return err
		}
		defer s.Close()

		h, err := s.loadHints(inspectHintsFlag)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		records, err := s.pipeline.Inspect(ctx, pipeline.InspectOptions{
			Dir:        folder,
			Extensions: cfg.Extensions(),
			Exported:   exportedFlag,
			Workers:    cfg.Workers,
			Hints:      h,
		})
		if err != nil {
			return err
		}
		return report.WriteRecords(cmd.OutOrStdout(), folder, records, formatFlag, cfg.Location())
	},
}

func init() {
	inspectCmd.Flags().StringVar(&formatFlag, "format", report.FormatTable, "Output format: table, json")
	inspectCmd.Flags().BoolVar(&exportedFlag, "exported", false, "Resolve timestamps the way exported items are resolved")
	inspectCmd.Flags().StringVar(&inspectHintsFlag, "hints", "", "JSON file of per-file timestamps, used with --exported")
	inspectCmd.Flags().Int("workers", 0, "Parallel workers (0 = number of CPUs)")
	inspectCmd.Flags().Int("max-dimension", config.DefaultMaxDimension, "Downscale images larger than this before hashing")
	inspectCmd.Flags().Bool("exiftool", false, "Use exiftool for capture times and video metadata")
	inspectCmd.Flags().String("ffprobe", "ffprobe", "ffprobe binary used for videos")
	inspectCmd.Flags().String("cache", "", "Feature cache database, an empty value disables caching")
	inspectCmd.Flags().String("timezone", "", "Zone for timestamps without an offset (default Local)")

	rootCmd.AddCommand(inspectCmd)
}
