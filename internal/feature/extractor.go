// Package feature computes the comparable value of a media file: a 64-bit
// perceptual hash for images and a container duration for videos.
package feature

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"retrace/internal/cache"
	"retrace/internal/logging"
	"retrace/internal/media"
	"retrace/internal/probe"
)

// DefaultMaxDimension bounds the longest edge before hashing. The hash itself
// works on a 32x32 reduction, so anything well above that keeps it stable.
const DefaultMaxDimension = 1024

// Cache is the persistence the extractor consults before decoding.
type Cache interface {
	Lookup(ctx context.Context, path string, size int64, modTime time.Time) (cache.Entry, bool, error)
	Store(ctx context.Context, path string, size int64, modTime time.Time, entry cache.Entry) error
}

// Result is the outcome of extracting one file. Video is the probed
// container metadata, nil for images and for videos that could not be probed.
type Result struct {
	Feature media.Feature
	Video   *probe.VideoInfo
}

// Extractor computes features. Cache may be nil.
type Extractor struct {
	MaxDimension int
	Prober       probe.VideoProber
	Cache        Cache
	Logger       *slog.Logger
}

// NewExtractor builds an extractor. A non-positive maxDimension selects
// DefaultMaxDimension.
func NewExtractor(maxDimension int, prober probe.VideoProber, store Cache, logger *slog.Logger) *Extractor {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Extractor{
		MaxDimension: maxDimension,
		Prober:       prober,
		Cache:        store,
		Logger:       logger.With("component", "feature"),
	}
}

// Extract returns the feature of entry. It never fails: unreadable files
// produce an unavailable feature carrying the reason.
func (e *Extractor) Extract(ctx context.Context, entry media.Entry) Result {
	fi, err := os.Stat(entry.Path)
	if err != nil {
		return Result{Feature: media.Unavailable(fmt.Errorf("stat: %w", err))}
	}

	if e.Cache != nil {
		cached, ok, lookupErr := e.Cache.Lookup(ctx, entry.Path, fi.Size(), fi.ModTime())
		if lookupErr != nil {
			e.Logger.Warn("feature cache lookup failed", "path", entry.Path, "error", lookupErr)
		}
		if ok && cached.Kind == entry.Kind {
			return fromCache(cached)
		}
	}

	var res Result
	switch entry.Kind {
	case media.KindImage:
		res = Result{Feature: e.Image(entry.Path)}
	case media.KindVideo:
		res = e.Video(ctx, entry.Path)
	default:
		return Result{Feature: media.Unavailable(fmt.Errorf("unsupported kind %s", entry.Kind))}
	}

	// A cancelled probe says nothing about the file and must not be remembered.
	if e.Cache != nil && ctx.Err() == nil {
		stored := cache.Entry{Kind: entry.Kind, Feature: res.Feature}
		if res.Video != nil && !res.Video.CreationTime.IsZero() {
			stored.CreatedUnix = res.Video.CreationTime.Unix()
		}
		if storeErr := e.Cache.Store(ctx, entry.Path, fi.Size(), fi.ModTime(), stored); storeErr != nil {
			e.Logger.Warn("feature cache store failed", "path", entry.Path, "error", storeErr)
		}
	}
	return res
}

func fromCache(entry cache.Entry) Result {
	res := Result{Feature: entry.Feature}
	if entry.Kind == media.KindVideo && entry.Feature.Available {
		info := &probe.VideoInfo{Duration: entry.Feature.Duration, Size: entry.Feature.Size}
		if entry.CreatedUnix != 0 {
			info.CreationTime = time.Unix(entry.CreatedUnix, 0).UTC()
		}
		res.Video = info
	}
	return res
}

// Image decodes path with its EXIF orientation applied, bounds it to
// MaxDimension, converts it to grayscale and hashes it.
func (e *Extractor) Image(path string) media.Feature {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		e.Logger.Debug("image decode failed", "path", path, "error", err)
		return media.Unavailable(fmt.Errorf("decode image: %w", err))
	}
	fp, err := Fingerprint(img, e.MaxDimension)
	if err != nil {
		return media.Unavailable(err)
	}
	return media.Feature{Available: true, Fingerprint: fp}
}

// Fingerprint hashes an already oriented image.
func Fingerprint(img image.Image, maxDimension int) (media.Fingerprint, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return 0, errors.New("empty image")
	}
	if maxDimension > 0 && (b.Dx() > maxDimension || b.Dy() > maxDimension) {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Box)
	}
	gray := imaging.Grayscale(img)
	hash, err := goimagehash.PerceptionHash(gray)
	if err != nil {
		return 0, fmt.Errorf("perception hash: %w", err)
	}
	return media.Fingerprint(hash.GetHash()), nil
}

// Video probes the container for duration, size and creation time. The file
// size falls back to the filesystem when the prober does not report one.
func (e *Extractor) Video(ctx context.Context, path string) Result {
	if e.Prober == nil {
		return Result{Feature: media.Unavailable(errors.New("no video prober configured"))}
	}
	info, err := e.Prober.ProbeVideo(ctx, path)
	if err != nil {
		e.Logger.Debug("video probe failed", "path", path, "error", err)
		return Result{Feature: media.Unavailable(fmt.Errorf("probe video: %w", err))}
	}
	if info.Duration <= 0 {
		return Result{Feature: media.Unavailable(errors.New("probe video: no duration"))}
	}
	if info.Size <= 0 {
		if fi, statErr := os.Stat(path); statErr == nil {
			info.Size = fi.Size()
		}
	}
	return Result{
		Feature: media.Feature{Available: true, Duration: info.Duration, Size: info.Size},
		Video:   &info,
	}
}
