// Package hints loads message timestamps for exported chat attachments.
//
// A hints file is JSON, either an object mapping file name to timestamp:
//
//	{"IMG-20240315-WA0001.jpg": "15.03.24, 14:30:22"}
//
// or an array of entries:
//
//	[{"file": "IMG-20240315-WA0001.jpg", "timestamp": 1710509422}]
//
// Names are matched by Unicode NFC-normalized base name, so a hint written on
// one platform still finds files listed by another.
package hints

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"retrace/internal/logging"
)

var layouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"02.01.06, 15:04:05",
	"02.01.06, 15:04",
	"02.01.2006, 15:04:05",
	"02.01.2006, 15:04",
	"1/2/06, 15:04:05",
	"1/2/06, 15:04",
	"1/2/06, 3:04 PM",
}

// Hints maps a normalized base name to a message time.
type Hints map[string]time.Time

// Key normalizes a path to its lookup key.
func Key(path string) string {
	return norm.NFC.String(filepath.Base(path))
}

// Lookup returns the hint for path, or nil.
func (h Hints) Lookup(path string) *time.Time {
	if h == nil {
		return nil
	}
	ts, ok := h[Key(path)]
	if !ok {
		return nil
	}
	return &ts
}

type entry struct {
	File      string          `json:"file"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// Load reads a hints file. Naive timestamps are read in loc. Entries that
// cannot be parsed are logged and skipped; only an unreadable or non-JSON
// file is an error.
func Load(path string, loc *time.Location, logger *slog.Logger) (Hints, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hints: %w", err)
	}
	defer f.Close()
	return Parse(f, loc, logger)
}

// Parse decodes hints from r. See Load.
func Parse(r io.Reader, loc *time.Location, logger *slog.Logger) (Hints, error) {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With("component", "hints")

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read hints: %w", err)
	}
	data = bytes.TrimSpace(data)

	var entries []entry
	switch {
	case len(data) == 0:
		return Hints{}, nil
	case data[0] == '{':
		var object map[string]json.RawMessage
		if err := json.Unmarshal(data, &object); err != nil {
			return nil, fmt.Errorf("parse hints: %w", err)
		}
		for file, raw := range object {
			entries = append(entries, entry{File: file, Timestamp: raw})
		}
	case data[0] == '[':
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse hints: %w", err)
		}
	default:
		return nil, errors.New("parse hints: expected a JSON object or array")
	}

	out := make(Hints, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.File) == "" {
			logger.Warn("skipping hint without file name")
			continue
		}
		ts, err := parseTimestamp(e.Timestamp, loc)
		if err != nil {
			logger.Warn("skipping malformed hint", "file", e.File, "error", err)
			continue
		}
		out[Key(e.File)] = ts
	}
	logger.Debug("hints loaded", "count", len(out), "skipped", len(entries)-len(out))
	return out, nil
}

func parseTimestamp(raw json.RawMessage, loc *time.Location) (time.Time, error) {
	var epoch int64
	if err := json.Unmarshal(raw, &epoch); err == nil {
		if epoch <= 0 {
			return time.Time{}, fmt.Errorf("epoch %d out of range", epoch)
		}
		return time.Unix(epoch, 0), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("timestamp must be a string or integer, got %s", raw)
	}
	return ParseTimestamp(s, loc)
}

// ParseTimestamp parses a message timestamp in any supported layout. A
// string of digits is read as epoch seconds.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if epoch, err := strconv.ParseInt(value, 10, 64); err == nil && epoch > 0 {
		return time.Unix(epoch, 0), nil
	}
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
