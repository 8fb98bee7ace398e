package match

import (
	"fmt"
	"strings"
)

// Mode names a confidence parameter bundle.
type Mode string

const (
	ModeStrict   Mode = "strict"
	ModeBalanced Mode = "balanced"
	ModeLoose    Mode = "loose"
)

// Modes lists the modes from tightest to loosest.
var Modes = []Mode{ModeStrict, ModeBalanced, ModeLoose}

// ParseMode accepts a mode name case-insensitively.
func ParseMode(value string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(value)))
	if m.Valid() {
		return m, nil
	}
	return "", fmt.Errorf("unknown confidence mode %q (want strict, balanced or loose)", value)
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeStrict, ModeBalanced, ModeLoose:
		return true
	}
	return false
}

func (m Mode) String() string { return string(m) }

// Policy holds acceptance limits. Image values are Hamming distances over
// the fingerprint; video values are duration deltas in seconds.
type Policy struct {
	ImageThreshold float64
	ImageMargin    float64
	VideoThreshold float64
	VideoMargin    float64
}

// Policy returns the limits of m. Unknown modes fall back to balanced.
func (m Mode) Policy() Policy {
	switch m {
	case ModeStrict:
		return Policy{ImageThreshold: 8, ImageMargin: 4, VideoThreshold: 0.5}
	case ModeLoose:
		return Policy{ImageThreshold: 14, ImageMargin: 2, VideoThreshold: 0.5}
	default:
		return Policy{ImageThreshold: 10, ImageMargin: 3, VideoThreshold: 0.5}
	}
}

func (p Policy) limits(video bool) (threshold, margin float64) {
	if video {
		return p.VideoThreshold, p.VideoMargin
	}
	return p.ImageThreshold, p.ImageMargin
}
