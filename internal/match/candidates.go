package match

import (
	"math"
	"sort"

	"retrace/internal/index"
	"retrace/internal/media"
)

// Candidate is one original scored against an exported record.
type Candidate struct {
	Record media.Record
	// Distance is the fingerprint distance for images, the absolute
	// duration delta in seconds for videos.
	Distance float64
	// TimeDelta is original minus exported timestamp, after offset.
	TimeDelta int64
	// SizeDelta is the absolute file size difference for videos, -1 when
	// either size is unknown.
	SizeDelta int64
}

// Score scores original against exported. Both features must be available
// and of the same kind.
func Score(exported, original media.Record) Candidate {
	c := Candidate{Record: original, TimeDelta: original.Timestamp - exported.Timestamp, SizeDelta: -1}
	switch exported.Kind {
	case media.KindImage:
		c.Distance = float64(exported.Feature.Fingerprint.Distance(original.Feature.Fingerprint))
	case media.KindVideo:
		c.Distance = math.Abs(exported.Feature.Duration - original.Feature.Duration)
		if exported.Feature.Size > 0 && original.Feature.Size > 0 {
			c.SizeDelta = abs(exported.Feature.Size - original.Feature.Size)
		}
	}
	return c
}

// Rank scores every usable original and sorts best first: distance, then
// absolute time delta, then (videos) size delta with unknown sizes last,
// then path.
func Rank(exported media.Record, originals []media.Record) []Candidate {
	if !exported.Feature.Available {
		return nil
	}
	cands := make([]Candidate, 0, len(originals))
	for _, orig := range originals {
		if orig.Kind != exported.Kind || !orig.Feature.Available {
			continue
		}
		cands = append(cands, Score(exported, orig))
	}
	sort.SliceStable(cands, func(i, j int) bool { return less(cands[i], cands[j]) })
	return cands
}

func less(a, b Candidate) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	if da, db := abs(a.TimeDelta), abs(b.TimeDelta); da != db {
		return da < db
	}
	if a.SizeDelta != b.SizeDelta {
		switch {
		case a.SizeDelta < 0:
			return false
		case b.SizeDelta < 0:
			return true
		default:
			return a.SizeDelta < b.SizeDelta
		}
	}
	return a.Record.Path < b.Record.Path
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Matcher retrieves and ranks window candidates from an index. It holds no
// mutable state and may be shared across goroutines.
type Matcher struct {
	Index  *index.Index
	Window int64
}

// Candidates returns the ranked same-kind candidates within the window of
// exported's timestamp.
func (m Matcher) Candidates(exported media.Record) []Candidate {
	if m.Index == nil || !exported.Feature.Available {
		return nil
	}
	return Rank(exported, m.Index.Within(exported.Timestamp, m.Window, exported.Kind))
}

// Match shifts exported by offset, ranks its candidates and decides.
func (m Matcher) Match(exported media.Record, mode Mode, offset int64) Decision {
	shifted := exported.Shifted(offset)
	d := Decide(shifted, m.Candidates(shifted), mode)
	d.ExportedTimestamp = exported.Timestamp
	d.Offset = offset
	return d
}
