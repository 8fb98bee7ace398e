package offset

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"retrace/internal/index"
	"retrace/internal/match"
	"retrace/internal/media"
)

// scene builds n originals spaced 30 minutes apart, each with a distinct
// fingerprint, and exported copies whose timestamps lag by skew.
func scene(t *testing.T, n int, skew int64) (match.Matcher, []media.Record) {
	t.Helper()
	var originals, exported []media.Record
	base := int64(1710500000)
	for i := 0; i < n; i++ {
		fp := scatter(uint64(i) + 1)
		ts := base + int64(i)*1800
		originals = append(originals, media.Record{
			Path: fmt.Sprintf("orig/IMG_%04d.jpg", i), Kind: media.KindImage, Timestamp: ts,
			Provenance: media.ProvenanceExifOrQuickTime,
			Feature:    media.Feature{Available: true, Fingerprint: fp},
		})
		exported = append(exported, media.Record{
			Path: fmt.Sprintf("chat/IMG-%04d.jpg", i), Kind: media.KindImage, Timestamp: ts - skew,
			Provenance: media.ProvenanceFilename,
			Feature:    media.Feature{Available: true, Fingerprint: fp ^ 1},
		})
	}
	idx, err := index.Build(originals, 60)
	if err != nil {
		t.Fatal(err)
	}
	return match.Matcher{Index: idx, Window: 600}, exported
}

// scatter spreads i over 64 bits so distinct inputs land far apart.
func scatter(i uint64) media.Fingerprint {
	z := i * 0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return media.Fingerprint(z ^ (z >> 31))
}

func countAccepted(m match.Matcher, exported []media.Record, off int64) int {
	n := 0
	for _, rec := range exported {
		if m.Match(rec, match.ModeBalanced, off).Accepted() {
			n++
		}
	}
	return n
}

func TestReconcileDetectsSkew(t *testing.T) {
	for _, skew := range []int64{3600, -3600, 7200} {
		t.Run(fmt.Sprint(skew), func(t *testing.T) {
			m, exported := scene(t, 12, skew)
			if got := countAccepted(m, exported, 0); got != 0 {
				t.Fatalf("expected no matches at offset 0, got %d", got)
			}
			res, err := NewReconciler(m, 4, nil).Reconcile(context.Background(), exported)
			if err != nil {
				t.Fatal(err)
			}
			if res.Offset != skew {
				t.Fatalf("expected offset %d, got %d (votes %+v)", skew, res.Offset, res.Votes)
			}
			if got := countAccepted(m, exported, res.Offset); got != 12 {
				t.Fatalf("expected all 12 to match after correction, got %d", got)
			}
			if len(res.Votes) != len(DefaultCandidates) || !res.Trusted || res.Sample != 12 {
				t.Errorf("unexpected result %+v", res)
			}
		})
	}
}

func TestReconcileNeverWorseThanZero(t *testing.T) {
	m, exported := scene(t, 10, 0)
	res, err := NewReconciler(m, 2, nil).Reconcile(context.Background(), exported)
	if err != nil {
		t.Fatal(err)
	}
	if res.Offset != 0 {
		t.Fatalf("aligned clocks should keep offset 0, got %d", res.Offset)
	}
	if countAccepted(m, exported, res.Offset) < countAccepted(m, exported, 0) {
		t.Fatal("selected offset lost matches")
	}
}

func TestReconcileEmptyInputs(t *testing.T) {
	idx, _ := index.Build(nil, 60)
	res, err := NewReconciler(match.Matcher{Index: idx, Window: 600}, 0, nil).Reconcile(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Offset != 0 || res.Sample != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestReconcileCancelled(t *testing.T) {
	m, exported := scene(t, 4, 3600)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewReconciler(m, 1, nil).Reconcile(ctx, exported)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Offset != 0 {
		t.Fatalf("cancelled sweep must not apply an offset, got %d", res.Offset)
	}
}

func TestSampleTrustsProvenance(t *testing.T) {
	recs := []media.Record{
		{Path: "a.jpg", Kind: media.KindImage, Provenance: media.ProvenanceFilesystemTime, Feature: media.Feature{Available: true}},
		{Path: "b.jpg", Kind: media.KindImage, Provenance: media.ProvenanceMessageMetadata, Feature: media.Feature{Available: true}},
		{Path: "c.mp4", Kind: media.KindVideo, Provenance: media.ProvenanceFilename, Feature: media.Feature{Available: true}},
		{Path: "d.jpg", Kind: media.KindImage, Provenance: media.ProvenanceFilename},
	}
	sample, trusted := Sample(recs)
	if !trusted || len(sample) != 1 || sample[0].Path != "b.jpg" {
		t.Fatalf("unexpected sample %+v trusted=%v", sample, trusted)
	}

	sample, trusted = Sample(recs[:1])
	if trusted || len(sample) != 1 {
		t.Fatalf("expected fallback to all images, got %+v trusted=%v", sample, trusted)
	}
}

func TestSelect(t *testing.T) {
	testCases := []struct {
		name  string
		votes []Vote
		want  int64
	}{
		{"clear winner", []Vote{{-3600, 1}, {0, 2}, {3600, 9}}, 3600},
		{"zero wins tie", []Vote{{-3600, 5}, {0, 5}, {3600, 5}}, 0},
		{"smaller magnitude", []Vote{{-7200, 4}, {0, 1}, {3600, 4}}, 3600},
		{"negative before positive", []Vote{{-3600, 4}, {0, 1}, {3600, 4}}, -3600},
		{"nothing accepted", []Vote{{-3600, 0}, {0, 0}, {3600, 0}}, 0},
		{"no votes", nil, 0},
		{"zero missing", []Vote{{7200, 3}, {-7200, 3}}, -7200},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Select(tc.votes); got != tc.want {
				t.Fatalf("Select(%v) = %d, want %d", tc.votes, got, tc.want)
			}
		})
	}
}
