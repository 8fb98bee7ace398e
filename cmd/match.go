package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"retrace/internal/config"
	"retrace/internal/logging"
	"retrace/internal/pipeline"
	"retrace/internal/report"
)

var hintsFlag string

var matchCmd = &cobra.Command{
	Use:   "match [exported] [originals]",
	Short: "Match every exported item against the originals",
	Long: `Scan the exported folder and the originals folder, correct a whole-hour
clock offset if one is evident, and decide for every exported item which
original it came from. A summary is printed; with --report-dir the full
decisions.jsonl, summary.json and run log are written as well.

The originals folder may be omitted or empty, in which case every item is
reported with no candidates.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		exported := args[0]
		if err := requireDir(exported); err != nil {
			return err
		}
		originals := ""
		if len(args) == 2 {
			originals = args[1]
		}

		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		s, err := openSession(cfg, cfg.ReportDir)
		if err != nil {
			return err
		}
		defer s.Close()

		h, err := s.loadHints(hintsFlag)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runMatch(ctx, cmd.OutOrStdout(), s, pipeline.Options{
			ExportedDir:  exported,
			OriginalsDir: originals,
			Extensions:   cfg.Extensions(),
			Window:       cfg.WindowSeconds,
			Bucket:       cfg.BucketSeconds,
			Mode:         cfg.MatchMode(),
			OffsetSweep:  cfg.OffsetSweep,
			Workers:      cfg.Workers,
			Hints:        h,
		})
	},
}

func runMatch(ctx context.Context, out io.Writer, s *session, opts pipeline.Options) error {
	start := time.Now()
	res, runErr := s.pipeline.Run(ctx, opts)
	if res == nil {
		return runErr
	}
	interrupted := errors.Is(runErr, context.Canceled)
	if runErr != nil && !interrupted {
		return runErr
	}

	if dir := s.cfg.ReportDir; dir != "" {
		if err := report.Save(dir, res.Decisions, res.Summary); err != nil {
			return err
		}
		s.log.Info("report written", "dir", dir)
	}
	s.log.Debug("run finished", "elapsed", elapsed(start))

	if err := report.Render(out, res.Summary, report.RenderOptions{Color: logging.IsTerminal(out)}); err != nil {
		return err
	}
	if interrupted {
		return fmt.Errorf("interrupted after %d of %d items", len(res.Decisions), len(res.Exported))
	}
	return nil
}

func init() {
	matchCmd.Flags().String("mode", "balanced", "Confidence mode: strict, balanced, loose")
	matchCmd.Flags().Int64("window", config.DefaultWindowSeconds, "Seconds either side of an exported timestamp to search")
	matchCmd.Flags().Int64("bucket", config.DefaultBucketSeconds, "Index bucket width in seconds")
	matchCmd.Flags().Bool("offset-sweep", true, "Try whole-hour clock offsets before matching")
	matchCmd.Flags().Int("workers", 0, "Parallel workers (0 = number of CPUs)")
	matchCmd.Flags().Int("max-dimension", config.DefaultMaxDimension, "Downscale images larger than this before hashing")
	matchCmd.Flags().Bool("exiftool", false, "Use exiftool for capture times and video metadata")
	matchCmd.Flags().String("ffprobe", "ffprobe", "ffprobe binary used for videos")
	matchCmd.Flags().String("cache", "", "Feature cache database, an empty value disables caching")
	matchCmd.Flags().String("timezone", "", "Zone for timestamps without an offset (default Local)")
	matchCmd.Flags().String("report-dir", "", "Write decisions.jsonl, summary.json and retrace.log here")
	matchCmd.Flags().StringVar(&hintsFlag, "hints", "", "JSON file of per-file timestamps from the chat export")

	rootCmd.AddCommand(matchCmd)
}
