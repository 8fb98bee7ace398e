package media

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Kind is the media class of a record. Matching never crosses kinds.
type Kind int

const (
	KindImage Kind = iota
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "image":
		*k = KindImage
	case "video":
		*k = KindVideo
	default:
		return fmt.Errorf("unknown media kind %q", text)
	}
	return nil
}

// Provenance records which source supplied a resolved timestamp.
type Provenance int

const (
	ProvenanceFilesystemTime Provenance = iota
	ProvenanceFilename
	ProvenanceMessageMetadata
	ProvenanceExifOrQuickTime
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceMessageMetadata:
		return "message_metadata"
	case ProvenanceFilename:
		return "filename"
	case ProvenanceFilesystemTime:
		return "filesystem_time"
	case ProvenanceExifOrQuickTime:
		return "exif_or_quicktime"
	default:
		return "unknown"
	}
}

func (p Provenance) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Provenance) UnmarshalText(text []byte) error {
	for _, candidate := range []Provenance{ProvenanceFilesystemTime, ProvenanceFilename, ProvenanceMessageMetadata, ProvenanceExifOrQuickTime} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown provenance %q", text)
}

// FromExport reports whether the timestamp was carried by the export itself,
// a message hint or the file name, rather than a filesystem clock.
func (p Provenance) FromExport() bool {
	return p == ProvenanceMessageMetadata || p == ProvenanceFilename
}

// Fingerprint is a 64-bit perceptual image hash.
type Fingerprint uint64

// Distance returns the Hamming distance between two fingerprints.
func (f Fingerprint) Distance(other Fingerprint) int {
	return bits.OnesCount64(uint64(f) ^ uint64(other))
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Fingerprint) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 16, 64)
	if err != nil {
		return fmt.Errorf("parse fingerprint %q: %w", text, err)
	}
	*f = Fingerprint(v)
	return nil
}

// Feature is the comparable value extracted from a file. Images carry a
// Fingerprint, videos a Duration (seconds) and optionally a Size. When the
// file could not be read, Available is false and Error explains why.
type Feature struct {
	Available   bool        `json:"available"`
	Fingerprint Fingerprint `json:"fingerprint,omitempty"`
	Duration    float64     `json:"duration,omitempty"`
	Size        int64       `json:"size,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Unavailable builds a feature marker for a file that could not be decoded.
func Unavailable(err error) Feature {
	msg := "feature unavailable"
	if err != nil {
		msg = err.Error()
	}
	return Feature{Error: msg}
}

// Record is the shared shape of exported and original items.
type Record struct {
	Path       string     `json:"path"`
	Kind       Kind       `json:"kind"`
	Timestamp  int64      `json:"timestamp"`
	Provenance Provenance `json:"provenance"`
	Feature    Feature    `json:"feature"`
}

// Shifted returns a copy of the record with delta seconds added to its timestamp.
func (r Record) Shifted(delta int64) Record {
	r.Timestamp += delta
	return r
}
