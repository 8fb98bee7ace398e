package config

import (
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	DefaultWindowSeconds = 600
	DefaultBucketSeconds = 60
	DefaultMaxDimension  = 1024
	CacheFileName        = "features.db"
)

var (
	DefaultImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".heic"}
	DefaultVideoExtensions = []string{".mp4", ".mov", ".m4v", ".3gp", ".avi", ".mkv", ".webm"}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("window_seconds", DefaultWindowSeconds)
	v.SetDefault("mode", "balanced")
	v.SetDefault("bucket_seconds", DefaultBucketSeconds)
	v.SetDefault("offset_sweep", true)
	v.SetDefault("max_dimension", DefaultMaxDimension)
	v.SetDefault("workers", 0)
	v.SetDefault("image_extensions", DefaultImageExtensions)
	v.SetDefault("video_extensions", DefaultVideoExtensions)
	v.SetDefault("use_exiftool", false)
	v.SetDefault("exiftool_path", "")
	v.SetDefault("ffprobe_binary", "ffprobe")
	v.SetDefault("cache_path", defaultCachePath())
	v.SetDefault("timezone", "Local")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("report_dir", "")
}

// defaultCachePath is empty, disabling the cache, when there is no user
// config directory.
func defaultCachePath() string {
	dir, err := Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, CacheFileName)
}

// Sample renders a commented retrace.toml with every default.
func Sample() string {
	return `# retrace configuration
# Values here are overridden by RETRACE_* environment variables and flags.

# Seconds either side of an exported item's timestamp to search originals.
window_seconds = 600
# strict | balanced | loose
mode = "balanced"
# Index bucket width, at most window_seconds.
bucket_seconds = 60
# Detect a whole-hour clock skew between export and originals.
offset_sweep = true
# Longest edge images are reduced to before hashing.
max_dimension = 1024
# Parallel workers, 0 uses every CPU.
workers = 0

image_extensions = [".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".heic"]
video_extensions = [".mp4", ".mov", ".m4v", ".3gp", ".avi", ".mkv", ".webm"]

# Read capture times and video metadata with exiftool instead of goexif/ffprobe.
use_exiftool = false
exiftool_path = ""
ffprobe_binary = "ffprobe"

# Feature cache, empty disables it.
# cache_path = "~/.config/retrace/features.db"

# Zone for timestamps without an offset (filenames, EXIF).
timezone = "Local"

log_level = "info"
# console | json
log_format = "console"

# Directory for decisions.jsonl, summary.json and retrace.log.
report_dir = ""
`
}
