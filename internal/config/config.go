// Package config loads retrace settings from defaults, an optional TOML
// file, RETRACE_* environment variables and command line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"retrace/internal/match"
	"retrace/internal/media"
)

const (
	appName   = "retrace"
	envPrefix = "RETRACE"
)

// Config holds every tunable of a run.
type Config struct {
	WindowSeconds   int64    `mapstructure:"window_seconds" json:"window_seconds"`
	Mode            string   `mapstructure:"mode" json:"mode"`
	BucketSeconds   int64    `mapstructure:"bucket_seconds" json:"bucket_seconds"`
	OffsetSweep     bool     `mapstructure:"offset_sweep" json:"offset_sweep"`
	MaxDimension    int      `mapstructure:"max_dimension" json:"max_dimension"`
	Workers         int      `mapstructure:"workers" json:"workers"`
	ImageExtensions []string `mapstructure:"image_extensions" json:"image_extensions"`
	VideoExtensions []string `mapstructure:"video_extensions" json:"video_extensions"`
	UseExifTool     bool     `mapstructure:"use_exiftool" json:"use_exiftool"`
	ExifToolPath    string   `mapstructure:"exiftool_path" json:"exiftool_path"`
	FFprobeBinary   string   `mapstructure:"ffprobe_binary" json:"ffprobe_binary"`
	CachePath       string   `mapstructure:"cache_path" json:"cache_path"`
	Timezone        string   `mapstructure:"timezone" json:"timezone"`
	LogLevel        string   `mapstructure:"log_level" json:"log_level"`
	LogFormat       string   `mapstructure:"log_format" json:"log_format"`
	ReportDir       string   `mapstructure:"report_dir" json:"report_dir"`

	// File is the configuration file that was read, empty when none was.
	File string `mapstructure:"-" json:"-"`
}

// Dir returns the directory holding retrace.toml and the feature cache.
func Dir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to find user config dir: %w", err)
	}
	return filepath.Join(configDir, appName), nil
}

// New returns a viper instance with defaults and environment binding set up.
// Callers bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration file (explicitPath, or retrace.toml in Dir)
// and returns the validated configuration. A missing default file is fine;
// a missing explicit file is not.
func Load(v *viper.Viper, explicitPath string) (*Config, error) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.SetConfigName(appName)
		v.SetConfigType("toml")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.Timezone = strings.TrimSpace(c.Timezone)
	c.ImageExtensions = normalizeExtensions(c.ImageExtensions)
	c.VideoExtensions = normalizeExtensions(c.VideoExtensions)
	c.CachePath = expandHome(strings.TrimSpace(c.CachePath))
	c.ReportDir = expandHome(strings.TrimSpace(c.ReportDir))
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Location returns the zone naive timestamps are read in.
func (c *Config) Location() *time.Location {
	loc, err := loadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// MatchMode returns the configured confidence mode.
func (c *Config) MatchMode() match.Mode {
	return match.Mode(c.Mode)
}

// Extensions returns the kind-detection extension lists.
func (c *Config) Extensions() media.Extensions {
	return media.Extensions{Image: c.ImageExtensions, Video: c.VideoExtensions}
}
