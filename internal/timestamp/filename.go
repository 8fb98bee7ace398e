package timestamp

import (
	"errors"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// ErrNoFilenameDate means the file name carries no recognizable date and time.
var ErrNoFilenameDate = errors.New("no date and time in filename")

// Patterns are tried in order; each captures year, month, day, hour,
// minute, second. Only names that encode a clock time are recognized:
// date-only names such as IMG-20240315-WA0001 are useless inside a
// minutes-wide matching window.
var filenamePatterns = []*regexp.Regexp{
	// WhatsApp iOS export: 00000012-PHOTO-2024-03-15-14-30-22.jpg
	regexp.MustCompile(`(?i)(?:photo|video|gif|sticker|img|vid)-(\d{4})-(\d{2})-(\d{2})-(\d{2})-(\d{2})-(\d{2})(?:\D|$)`),
	// Compact: IMG_20240315_143022, Screenshot_20240315-143022, PXL_20240315_143022123
	regexp.MustCompile(`(?:^|\D)(\d{4})(\d{2})(\d{2})[_-](\d{2})(\d{2})(\d{2})(?:\d{3})?(?:\D|$)`),
	// Separated: 2024-03-15-14-30-22, telegram_2024-03-15_14-30-22, 2024-03-15 14.30.22
	regexp.MustCompile(`(?:^|\D)(\d{4})[-_.](\d{2})[-_.](\d{2})[-_ T.]+(\d{2})[-_.:]?(\d{2})[-_.:]?(\d{2})(?:\D|$)`),
}

// ParseFilename extracts a capture time from the base name of path, read in loc.
func ParseFilename(path string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	name := filepath.Base(path)
	for _, re := range filenamePatterns {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if ts, ok := buildTime(m[1:], loc); ok {
			return ts, nil
		}
	}
	return time.Time{}, ErrNoFilenameDate
}

func buildTime(parts []string, loc *time.Location) (time.Time, bool) {
	if len(parts) != 6 {
		return time.Time{}, false
	}
	var v [6]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, false
		}
		v[i] = n
	}
	year, month, day, hour, minute, sec := v[0], v[1], v[2], v[3], v[4], v[5]
	if year < 1990 || year > 2100 || hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, false
	}
	ts := time.Date(year, time.Month(month), day, hour, minute, sec, 0, loc)
	// time.Date normalizes overflow (Feb 30 -> Mar 2); reject those.
	if ts.Year() != year || int(ts.Month()) != month || ts.Day() != day {
		return time.Time{}, false
	}
	return ts, true
}
