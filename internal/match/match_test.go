package match

import (
	"encoding/json"
	"strings"
	"testing"

	"retrace/internal/index"
	"retrace/internal/media"
)

// bitsSet returns a fingerprint at Hamming distance n from zero.
func bitsSet(n int) media.Fingerprint {
	return media.Fingerprint(uint64(1)<<uint(n) - 1)
}

func image(path string, ts int64, fp media.Fingerprint) media.Record {
	return media.Record{
		Path: path, Kind: media.KindImage, Timestamp: ts,
		Provenance: media.ProvenanceExifOrQuickTime,
		Feature:    media.Feature{Available: true, Fingerprint: fp},
	}
}

func video(path string, ts int64, duration float64, size int64) media.Record {
	return media.Record{
		Path: path, Kind: media.KindVideo, Timestamp: ts,
		Provenance: media.ProvenanceExifOrQuickTime,
		Feature:    media.Feature{Available: true, Duration: duration, Size: size},
	}
}

func matcher(t *testing.T, originals ...media.Record) Matcher {
	t.Helper()
	idx, err := index.Build(originals, 60)
	if err != nil {
		t.Fatal(err)
	}
	return Matcher{Index: idx, Window: 600}
}

func TestParseMode(t *testing.T) {
	for _, in := range []string{"strict", "Balanced", " loose "} {
		if _, err := ParseMode(in); err != nil {
			t.Errorf("ParseMode(%q): %v", in, err)
		}
	}
	if _, err := ParseMode("paranoid"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestModeTable(t *testing.T) {
	testCases := []struct {
		mode      Mode
		threshold float64
		margin    float64
	}{
		{ModeStrict, 8, 4},
		{ModeBalanced, 10, 3},
		{ModeLoose, 14, 2},
	}
	for _, tc := range testCases {
		p := tc.mode.Policy()
		if p.ImageThreshold != tc.threshold || p.ImageMargin != tc.margin || p.VideoThreshold != 0.5 || p.VideoMargin != 0 {
			t.Errorf("%s: unexpected policy %+v", tc.mode, p)
		}
	}
}

func TestAcceptsSeparatedBest(t *testing.T) {
	m := matcher(t,
		image("A.jpg", 1000, bitsSet(3)),
		image("B.jpg", 1010, bitsSet(9)),
	)
	d := m.Match(image("export.jpg", 1000, 0), ModeBalanced, 0)
	if !d.Accepted() || *d.MatchedPath != "A.jpg" {
		t.Fatalf("expected match to A, got %+v", d)
	}
	if *d.Distance != 3 || *d.Margin != 6 || *d.TimeDelta != 0 {
		t.Errorf("unexpected scores distance=%v margin=%v delta=%v", *d.Distance, *d.Margin, *d.TimeDelta)
	}
	if d.Candidates != 2 || d.RejectionReason != ReasonNone {
		t.Errorf("unexpected decision %+v", d)
	}
}

func TestRejectsAmbiguousBest(t *testing.T) {
	m := matcher(t,
		image("A.jpg", 1000, bitsSet(6)),
		image("B.jpg", 1000, bitsSet(8)),
	)
	d := m.Match(image("export.jpg", 1000, 0), ModeBalanced, 0)
	if d.Accepted() || d.MatchedPath != nil {
		t.Fatalf("ambiguous match must not be accepted: %+v", d)
	}
	if d.RejectionReason != ReasonBelowSeparationMargin {
		t.Fatalf("expected below_separation_margin, got %s", d.RejectionReason)
	}
	if *d.Margin != 2 || *d.CandidatePath != "A.jpg" {
		t.Errorf("rejection should still report the best candidate, got %+v", d)
	}
}

func TestSingleCandidate(t *testing.T) {
	m := matcher(t, image("A.jpg", 1000, bitsSet(10)))
	d := m.Match(image("export.jpg", 1200, 0), ModeBalanced, 0)
	if !d.Accepted() {
		t.Fatalf("distance at threshold should pass, got %s", d.RejectionReason)
	}
	if d.Margin != nil {
		t.Errorf("single candidate margin should be null, got %v", *d.Margin)
	}
	if *d.TimeDelta != -200 {
		t.Errorf("expected time delta -200, got %d", *d.TimeDelta)
	}

	d = m.Match(image("export.jpg", 1200, 0), ModeStrict, 0)
	if d.RejectionReason != ReasonAboveThreshold {
		t.Fatalf("expected above_threshold under strict, got %s", d.RejectionReason)
	}
}

func TestAboveThresholdWinsOverMargin(t *testing.T) {
	m := matcher(t,
		image("A.jpg", 1000, bitsSet(15)),
		image("B.jpg", 1000, bitsSet(16)),
	)
	d := m.Match(image("export.jpg", 1000, 0), ModeLoose, 0)
	if d.RejectionReason != ReasonAboveThreshold {
		t.Fatalf("expected above_threshold, got %s", d.RejectionReason)
	}
}

func TestVideoDurationMatch(t *testing.T) {
	m := matcher(t,
		video("long.mov", 1000, 15.0, 9000),
		video("right.mov", 1100, 12.4, 9000),
	)
	d := m.Match(video("export.mp4", 1000, 12.6, 900), ModeBalanced, 0)
	if !d.Accepted() || *d.MatchedPath != "right.mov" {
		t.Fatalf("expected match to right.mov, got %+v", d)
	}
	if got := *d.Distance; got < 0.199 || got > 0.201 {
		t.Errorf("expected duration delta 0.2, got %v", got)
	}

	m = matcher(t, video("off.mov", 1000, 13.2, 0))
	d = m.Match(video("export.mp4", 1000, 12.6, 0), ModeLoose, 0)
	if d.RejectionReason != ReasonAboveThreshold {
		t.Fatalf("expected above_threshold, got %s", d.RejectionReason)
	}
}

func TestVideoTieBreaks(t *testing.T) {
	exported := video("export.mp4", 1000, 10, 1000)
	ranked := Rank(exported, []media.Record{
		video("d.mov", 1000, 10, 0),
		video("c.mov", 1000, 10, 5000),
		video("b.mov", 1000, 10, 2000),
		video("a.mov", 1060, 10, 1000),
	})
	var got []string
	for _, c := range ranked {
		got = append(got, c.Record.Path)
	}
	want := "b.mov c.mov d.mov a.mov"
	if strings.Join(got, " ") != want {
		t.Fatalf("expected %s, got %v", want, got)
	}
}

func TestRankingIsDeterministic(t *testing.T) {
	exported := image("export.jpg", 1000, 0)
	originals := []media.Record{
		image("z.jpg", 1000, bitsSet(2)),
		image("b.jpg", 1030, bitsSet(2)),
		image("a.jpg", 970, bitsSet(2)),
		image("y.jpg", 1000, bitsSet(1)),
	}
	ranked := Rank(exported, originals)
	var got []string
	for _, c := range ranked {
		got = append(got, c.Record.Path)
	}
	if strings.Join(got, " ") != "y.jpg z.jpg a.jpg b.jpg" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestCandidatesRespectsWindowAndKind(t *testing.T) {
	unreadable := image("broken.jpg", 1000, 0)
	unreadable.Feature = media.Unavailable(nil)
	m := matcher(t,
		image("inside.jpg", 1600, bitsSet(1)),
		image("outside.jpg", 1601, bitsSet(0)),
		video("clip.mov", 1000, 3, 0),
		unreadable,
	)
	cands := m.Candidates(image("export.jpg", 1000, 0))
	if len(cands) != 1 || cands[0].Record.Path != "inside.jpg" {
		t.Fatalf("expected only inside.jpg, got %+v", cands)
	}
}

func TestUnavailableExportedFeature(t *testing.T) {
	m := matcher(t, image("A.jpg", 1000, 0))
	exported := image("export.jpg", 1000, 0)
	exported.Feature = media.Feature{Error: "decode image: unexpected EOF"}
	d := m.Match(exported, ModeLoose, 0)
	if d.RejectionReason != ReasonNoCandidates || !d.Unreadable() || d.MatchedPath != nil {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestOffsetShiftsLookup(t *testing.T) {
	m := matcher(t, image("A.jpg", 5000, bitsSet(1)))
	exported := image("export.jpg", 5000-3600, 0)
	if d := m.Match(exported, ModeBalanced, 0); d.RejectionReason != ReasonNoCandidates {
		t.Fatalf("expected no candidates without offset, got %s", d.RejectionReason)
	}
	d := m.Match(exported, ModeBalanced, 3600)
	if !d.Accepted() {
		t.Fatalf("expected match with offset, got %s", d.RejectionReason)
	}
	if d.Offset != 3600 || d.ExportedTimestamp != 5000-3600 || *d.TimeDelta != 0 {
		t.Errorf("offset bookkeeping wrong: %+v", d)
	}
}

func TestAcceptedImpliesLimits(t *testing.T) {
	var originals []media.Record
	for i := 0; i < 20; i++ {
		originals = append(originals, image("orig-"+string(rune('a'+i))+".jpg", int64(1000+i*37), bitsSet(i%16)^media.Fingerprint(uint64(i)<<40)))
	}
	m := matcher(t, originals...)
	for _, mode := range Modes {
		p := mode.Policy()
		for i := 0; i < 20; i++ {
			d := m.Match(image("export.jpg", int64(1000+i*50), bitsSet(i%7)), mode, 0)
			if !d.Accepted() {
				continue
			}
			if *d.Distance > p.ImageThreshold {
				t.Errorf("%s: accepted distance %v over threshold", mode, *d.Distance)
			}
			if d.Candidates > 1 && *d.Margin < p.ImageMargin {
				t.Errorf("%s: accepted margin %v under %v", mode, *d.Margin, p.ImageMargin)
			}
		}
	}
}

func TestTighterModesNeverAcceptMore(t *testing.T) {
	var originals []media.Record
	var exported []media.Record
	for i := 0; i < 40; i++ {
		ts := int64(i * 400)
		originals = append(originals, image("orig-"+string(rune('A'+i))+".jpg", ts, bitsSet(i%20)))
		exported = append(exported, image("exp-"+string(rune('A'+i))+".jpg", ts+int64(i%5)*30, bitsSet((i*7)%13)))
	}
	m := matcher(t, originals...)
	counts := map[Mode]int{}
	for _, mode := range Modes {
		for _, e := range exported {
			d := m.Match(e, mode, 0)
			if d.Accepted() {
				counts[mode]++
			}
		}
	}
	if counts[ModeStrict] > counts[ModeBalanced] || counts[ModeBalanced] > counts[ModeLoose] {
		t.Fatalf("monotonicity violated: %v", counts)
	}
}

func TestDecisionJSON(t *testing.T) {
	d := Decide(image("export.jpg", 1000, 0), nil, ModeBalanced)
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"matched_path":null`, `"margin":null`, `"rejection_reason":"no_candidates"`, `"mode":"balanced"`, `"kind":"image"`} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %s in %s", want, s)
		}
	}

	var back Decision
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.RejectionReason != ReasonNoCandidates || back.ExportedPath != "export.jpg" {
		t.Fatalf("unexpected round trip %+v", back)
	}
}
