package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"retrace/internal/cache"
	"retrace/internal/config"
	"retrace/internal/feature"
	"retrace/internal/hints"
	"retrace/internal/logging"
	"retrace/internal/pipeline"
	"retrace/internal/probe"
	"retrace/internal/timestamp"
)

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":     "log_level",
	"log-format":    "log_format",
	"mode":          "mode",
	"window":        "window_seconds",
	"bucket":        "bucket_seconds",
	"offset-sweep":  "offset_sweep",
	"workers":       "workers",
	"max-dimension": "max_dimension",
	"exiftool":      "use_exiftool",
	"ffprobe":       "ffprobe_binary",
	"cache":         "cache_path",
	"timezone":      "timezone",
	"report-dir":    "report_dir",
}

func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	v := config.New()
	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}
	return config.Load(v, configFlag)
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// session holds the components a command needs and the resources to
// release once it is done.
type session struct {
	cfg      *config.Config
	log      *logging.Logger
	pipeline *pipeline.Pipeline
	closers  []io.Closer
}

// openSession builds the logger, probes, feature cache and pipeline from
// cfg. logDir receives the run log when non-empty.
func openSession(cfg *config.Config, logDir string) (*session, error) {
	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
		Dir:    logDir,
	})
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: logger, closers: []io.Closer{logger}}
	loc := cfg.Location()

	var (
		images probe.CaptureTimer = probe.ExifReader{Location: loc}
		videos probe.VideoProber  = probe.FFprobe{Binary: cfg.FFprobeBinary}
	)
	if cfg.UseExifTool {
		et, err := probe.NewExifTool(cfg.ExifToolPath, loc)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, et)
		images, videos = et, et
	}

	var store feature.Cache
	if cfg.CachePath != "" {
		db, err := cache.Open(cfg.CachePath)
		if err != nil {
			logger.Warn("feature cache disabled", "path", cfg.CachePath, "error", err)
		} else {
			s.closers = append(s.closers, db)
			store = db
		}
	}

	extractor := feature.NewExtractor(cfg.MaxDimension, videos, store, logger.Logger)
	resolver := timestamp.NewResolver(loc, images, logger.Logger)
	s.pipeline = pipeline.New(extractor, resolver, logger.Logger)
	return s, nil
}

func (s *session) loadHints(path string) (hints.Hints, error) {
	if path == "" {
		return nil, nil
	}
	return hints.Load(path, s.cfg.Location(), s.log.Logger)
}

// Close releases resources in reverse order of acquisition.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("folder does not exist or is not a directory: %s", path)
	}
	return nil
}

func elapsed(since time.Time) string {
	return time.Since(since).Round(time.Millisecond).String()
}
