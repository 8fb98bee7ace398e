package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/barasher/go-exiftool"
)

// ExifTool reads image capture times and video container metadata through a
// long-running exiftool process. It handles formats goexif cannot (HEIC,
// QuickTime) at the cost of an external binary.
type ExifTool struct {
	mu       sync.Mutex
	et       *exiftool.Exiftool
	location *time.Location
}

// NewExifTool starts exiftool. binary may be empty to use the one on PATH.
func NewExifTool(binary string, loc *time.Location) (*ExifTool, error) {
	opts := []func(*exiftool.Exiftool) error{exiftool.NoPrintConversion()}
	if strings.TrimSpace(binary) != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(binary))
	}
	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &ExifTool{et: et, location: loc}, nil
}

func (e *ExifTool) extract(path string) (exiftool.FileMetadata, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	infos := e.et.ExtractMetadata(path)
	if len(infos) == 0 {
		return exiftool.FileMetadata{}, errors.New("exiftool returned no metadata")
	}
	if infos[0].Err != nil {
		return exiftool.FileMetadata{}, fmt.Errorf("exiftool %s: %w", path, infos[0].Err)
	}
	return infos[0], nil
}

// CaptureTime returns DateTimeOriginal (falling back to CreateDate) in the
// configured location.
func (e *ExifTool) CaptureTime(path string) (time.Time, error) {
	fm, err := e.extract(path)
	if err != nil {
		return time.Time{}, err
	}
	for _, key := range []string{"DateTimeOriginal", "CreateDate"} {
		value, err := fm.GetString(key)
		if err != nil {
			continue
		}
		if ts, err := ParseExifTime(value, e.location); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, ErrNoCaptureTime
}

// ProbeVideo returns duration, size and QuickTime creation time. QuickTime
// dates are stored in UTC.
func (e *ExifTool) ProbeVideo(_ context.Context, path string) (VideoInfo, error) {
	fm, err := e.extract(path)
	if err != nil {
		return VideoInfo{}, err
	}

	var info VideoInfo
	if d, err := fm.GetFloat("Duration"); err == nil {
		info.Duration = d
	}
	if info.Duration <= 0 {
		return VideoInfo{}, fmt.Errorf("exiftool %s: no duration", path)
	}
	if size, err := fm.GetInt("FileSize"); err == nil && size > 0 {
		info.Size = size
	}
	for _, key := range []string{"CreationDate", "CreateDate", "MediaCreateDate", "TrackCreateDate"} {
		value, err := fm.GetString(key)
		if err != nil {
			continue
		}
		if ts, err := parseContainerTime(value); err == nil {
			info.CreationTime = ts
			break
		}
	}
	return info, nil
}

// Close stops the exiftool process.
func (e *ExifTool) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.et.Close()
}
