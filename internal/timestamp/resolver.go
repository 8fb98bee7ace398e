// Package timestamp resolves a best-effort capture time for media files from
// an ordered chain of sources.
//
// Exported items: message timestamp hint -> filename pattern -> mtime.
// Originals: embedded capture metadata (EXIF DateTimeOriginal for images,
// container creation time for videos) -> mtime.
//
// Resolution never fails. A source that is missing or malformed only moves
// the record further down the chain and lowers its provenance.
package timestamp

import (
	"log/slog"
	"os"
	"time"

	"retrace/internal/logging"
	"retrace/internal/media"
	"retrace/internal/probe"
)

// Resolution is a resolved timestamp with the source that supplied it.
type Resolution struct {
	Unix       int64
	Provenance media.Provenance
}

// Resolver resolves timestamps. Images reads embedded capture times for
// original images; nil disables that source.
type Resolver struct {
	Location *time.Location
	Images   probe.CaptureTimer
	Logger   *slog.Logger
}

// NewResolver builds a resolver reading naive times in loc.
func NewResolver(loc *time.Location, images probe.CaptureTimer, logger *slog.Logger) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Resolver{Location: loc, Images: images, Logger: logger.With("component", "timestamp")}
}

// Exported resolves the timestamp of an exported chat item. hint is the
// message timestamp associated with the item, when the caller knows it.
func (r *Resolver) Exported(path string, hint *time.Time) Resolution {
	if hint != nil && !hint.IsZero() {
		return Resolution{Unix: hint.Unix(), Provenance: media.ProvenanceMessageMetadata}
	}
	if ts, err := ParseFilename(path, r.Location); err == nil {
		return Resolution{Unix: ts.Unix(), Provenance: media.ProvenanceFilename}
	}
	return r.modTime(path)
}

// Original resolves the timestamp of an original. For videos, video is the
// already-probed container metadata (nil when probing failed).
func (r *Resolver) Original(path string, kind media.Kind, video *probe.VideoInfo) Resolution {
	switch kind {
	case media.KindImage:
		if r.Images != nil {
			ts, err := r.Images.CaptureTime(path)
			if err == nil {
				return Resolution{Unix: ts.Unix(), Provenance: media.ProvenanceExifOrQuickTime}
			}
			r.Logger.Debug("capture time unavailable, falling back", "path", path, "error", err)
		}
	case media.KindVideo:
		if video != nil && !video.CreationTime.IsZero() {
			return Resolution{Unix: video.CreationTime.Unix(), Provenance: media.ProvenanceExifOrQuickTime}
		}
	}
	return r.modTime(path)
}

// modTime is the last resort. A file that cannot even be stat'ed resolves to
// the epoch so the record still exists; it will not find candidates.
func (r *Resolver) modTime(path string) Resolution {
	fi, err := os.Stat(path)
	if err != nil {
		r.Logger.Warn("cannot stat file for modification time", "path", path, "error", err)
		return Resolution{Unix: 0, Provenance: media.ProvenanceFilesystemTime}
	}
	return Resolution{Unix: fi.ModTime().Unix(), Provenance: media.ProvenanceFilesystemTime}
}
