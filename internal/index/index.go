// Package index buckets original records by time for window lookups.
package index

import (
	"fmt"
	"sort"

	"retrace/internal/media"
)

// DefaultBucketSeconds is the default bucket width.
const DefaultBucketSeconds = 60

// Index maps a time bucket to the originals whose timestamp falls in it.
// It is read-only after Build and safe for concurrent queries.
type Index struct {
	width   int64
	buckets map[int64][]media.Record
	size    int
}

// Build inserts every record into exactly one bucket. Records within a
// bucket keep their path order so queries are reproducible.
func Build(records []media.Record, width int64) (*Index, error) {
	if width <= 0 {
		return nil, fmt.Errorf("bucket width must be positive, got %d", width)
	}
	idx := &Index{width: width, buckets: make(map[int64][]media.Record)}
	for _, rec := range records {
		key := idx.bucket(rec.Timestamp)
		idx.buckets[key] = append(idx.buckets[key], rec)
	}
	for _, recs := range idx.buckets {
		sort.Slice(recs, func(i, j int) bool { return recs[i].Path < recs[j].Path })
	}
	idx.size = len(records)
	return idx, nil
}

// bucket floors toward negative infinity so pre-1970 timestamps land in the
// bucket that actually covers them.
func (idx *Index) bucket(ts int64) int64 {
	q := ts / idx.width
	if ts%idx.width != 0 && ts < 0 {
		q--
	}
	return q
}

// Width returns the bucket width in seconds.
func (idx *Index) Width() int64 { return idx.width }

// Len returns the number of indexed records.
func (idx *Index) Len() int { return idx.size }

// Buckets returns the number of non-empty buckets.
func (idx *Index) Buckets() int { return len(idx.buckets) }

// Query returns the records of every bucket overlapping
// [center-window, center+window]. Records in boundary buckets may lie
// outside the window; callers filter on the exact delta.
func (idx *Index) Query(center, window int64) []media.Record {
	if window < 0 {
		return nil
	}
	lo := idx.bucket(center - window)
	hi := idx.bucket(center + window)
	var out []media.Record
	for key := lo; key <= hi; key++ {
		out = append(out, idx.buckets[key]...)
	}
	return out
}

// Within returns the records of kind whose timestamp is within window of
// center, inclusive on both ends.
func (idx *Index) Within(center, window int64, kind media.Kind) []media.Record {
	var out []media.Record
	for _, rec := range idx.Query(center, window) {
		if rec.Kind != kind {
			continue
		}
		delta := rec.Timestamp - center
		if delta < -window || delta > window {
			continue
		}
		out = append(out, rec)
	}
	return out
}
