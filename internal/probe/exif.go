package probe

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// exifLayout is the EXIF date/time format.
const exifLayout = "2006:01:02 15:04:05"

// ErrNoCaptureTime is returned when a file carries no usable capture time tag.
var ErrNoCaptureTime = errors.New("no capture time in metadata")

// CaptureTimer reads the original-capture time embedded in an image.
type CaptureTimer interface {
	CaptureTime(path string) (time.Time, error)
}

// ExifReader reads DateTimeOriginal with goexif. EXIF times carry no zone and
// are interpreted in Location.
type ExifReader struct {
	Location *time.Location
}

// CaptureTime extracts the DateTimeOriginal from the EXIF metadata.
func (r ExifReader) CaptureTime(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode exif: %w", err)
	}

	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		value, err := tag.StringVal()
		if err != nil {
			continue
		}
		if ts, err := ParseExifTime(value, r.Location); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, ErrNoCaptureTime
}

// ParseExifTime parses an EXIF "YYYY:MM:DD HH:MM:SS" value in loc. Zeroed
// dates written by some cameras are rejected.
func ParseExifTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimRight(strings.TrimSpace(value), "\x00")
	if loc == nil {
		loc = time.Local
	}
	if len(value) > len(exifLayout) {
		value = value[:len(exifLayout)]
	}
	ts, err := time.ParseInLocation(exifLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse exif time %q: %w", value, err)
	}
	if ts.Year() < 1900 {
		return time.Time{}, fmt.Errorf("implausible exif time %q", value)
	}
	return ts, nil
}
