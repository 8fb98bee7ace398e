package media

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"retrace/internal/logging"
)

// Entry is a discovered media file before timestamps and features are resolved.
type Entry struct {
	Path string
	Kind Kind
}

// Extensions holds the lowercase, dot-prefixed extensions recognized per kind.
type Extensions struct {
	Image []string
	Video []string
}

func (e Extensions) kindOf(ext string) (Kind, bool) {
	for _, x := range e.Image {
		if ext == x {
			return KindImage, true
		}
	}
	for _, x := range e.Video {
		if ext == x {
			return KindVideo, true
		}
	}
	return 0, false
}

// Scan walks root recursively and returns every media file, sorted by path.
// Hidden files and directories are skipped. Files with an unrecognized
// extension are content-sniffed and kept when they are image/* or video/*.
// Only an unreadable root fails the scan; unreadable entries below it are
// logged and skipped.
func Scan(root string, exts Extensions, logger *slog.Logger) ([]Entry, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: not a directory", root)
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root || d == nil {
				return err
			}
			logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		kind, ok := exts.kindOf(strings.ToLower(filepath.Ext(name)))
		if !ok {
			kind, ok = sniffKind(path)
			if !ok {
				return nil
			}
		}

		entries = append(entries, Entry{Path: path, Kind: kind})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning files: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// sniffKind detects the kind from file content.
func sniffKind(path string) (Kind, bool) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return 0, false
	}
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case strings.HasPrefix(m.String(), "image/"):
			return KindImage, true
		case strings.HasPrefix(m.String(), "video/"):
			return KindVideo, true
		}
	}
	return 0, false
}
