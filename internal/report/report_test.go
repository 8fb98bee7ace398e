package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"retrace/internal/index"
	"retrace/internal/match"
	"retrace/internal/media"
	"retrace/internal/offset"
)

func exportedImage(i int) media.Record {
	return media.Record{
		Path: fmt.Sprintf("chat/IMG-%03d.jpg", i), Kind: media.KindImage, Timestamp: int64(1710500000 + i*60),
		Provenance: media.ProvenanceFilename,
		Feature:    media.Feature{Available: true, Fingerprint: media.Fingerprint(i)},
	}
}

func TestSummarizeEmptyOriginals(t *testing.T) {
	idx, err := index.Build(nil, 60)
	if err != nil {
		t.Fatal(err)
	}
	m := match.Matcher{Index: idx, Window: 600}
	var decisions []match.Decision
	for i := 0; i < 50; i++ {
		decisions = append(decisions, m.Match(exportedImage(i), match.ModeBalanced, 0))
	}

	s := Summarize(Run{Decisions: decisions, Mode: match.ModeBalanced, Window: 600, Bucket: 60})
	if s.TotalExported != 50 || s.Matched != 0 || s.MatchRate != 0 {
		t.Fatalf("unexpected totals %+v", s)
	}
	if s.Unmatched["no_candidates"] != 50 {
		t.Fatalf("expected 50 no_candidates, got %v", s.Unmatched)
	}
	if s.Unmatched["above_threshold"] != 0 || s.Unmatched["below_separation_margin"] != 0 {
		t.Fatalf("every reason key should be present and zero, got %v", s.Unmatched)
	}
	if s.Images.Total != 50 || s.Images.Percent != 0 || s.Videos.Total != 0 {
		t.Fatalf("unexpected kind counts images=%+v videos=%+v", s.Images, s.Videos)
	}
}

func TestSummarizeCounts(t *testing.T) {
	a, b := "orig/a.jpg", "orig/b.mov"
	decisions := []match.Decision{
		{ExportedPath: "1.jpg", Kind: media.KindImage, MatchedPath: &a},
		{ExportedPath: "2.jpg", Kind: media.KindImage, RejectionReason: match.ReasonBelowSeparationMargin},
		{ExportedPath: "3.jpg", Kind: media.KindImage, RejectionReason: match.ReasonAboveThreshold},
		{ExportedPath: "4.jpg", Kind: media.KindImage, RejectionReason: match.ReasonNoCandidates, FeatureError: "decode image: unexpected EOF"},
		{ExportedPath: "5.mp4", Kind: media.KindVideo, MatchedPath: &b},
	}
	originals := []media.Record{
		{Path: "orig/c.heic", Kind: media.KindImage, Feature: media.Feature{Error: "decode image: image: unknown format"}},
		{Path: "orig/a.jpg", Kind: media.KindImage, Feature: media.Feature{Available: true}},
	}
	s := Summarize(Run{Decisions: decisions, Originals: originals})

	if s.Matched != 2 || s.Images.Matched != 1 || s.Videos.Matched != 1 {
		t.Fatalf("unexpected matched counts %+v", s)
	}
	if s.Images.Percent != 25 || s.Videos.Percent != 100 || s.MatchRate != 40 {
		t.Fatalf("unexpected percentages images=%v videos=%v all=%v", s.Images.Percent, s.Videos.Percent, s.MatchRate)
	}
	if s.Ambiguous != 1 || s.Unreadable != 1 || s.Unmatched["no_candidates"] != 1 {
		t.Fatalf("unexpected breakdown %+v", s)
	}
	if s.Issues.Total != 2 || s.Issues.ByCategory[CategoryDecode] != 1 || s.Issues.ByCategory[CategoryUnsupported] != 1 {
		t.Fatalf("unexpected issues %+v", s.Issues)
	}
	if s.Issues.Errors != 1 || s.Issues.Warnings != 1 {
		t.Fatalf("original failures should be warnings, got %+v", s.Issues)
	}
	if decisions[1].MatchedPath != nil {
		t.Fatal("summarizing must not modify decisions")
	}
}

func TestCategorize(t *testing.T) {
	testCases := []struct {
		message  string
		category Category
	}{
		{"stat: lstat /roll/x.jpg: no such file or directory", CategoryIO},
		{"decode image: open /roll/x.jpg: permission denied", CategoryIO},
		{"probe video: exec: \"ffprobe\": executable file not found in $PATH", CategoryProbe},
		{"probe video: ffprobe exited: moov atom not found", CategoryProbe},
		{"decode image: image: unknown format", CategoryUnsupported},
		{"decode image: unexpected EOF", CategoryDecode},
		{"something odd", CategoryUnknown},
	}
	for _, tc := range testCases {
		t.Run(tc.message, func(t *testing.T) {
			issue := Categorize("/roll/x.jpg", sideExported, tc.message)
			if issue.Category != tc.category {
				t.Errorf("expected %s, got %s", tc.category, issue.Category)
			}
			if issue.Severity != SeverityError || issue.Suggestion == "" {
				t.Errorf("unexpected issue %+v", issue)
			}
		})
	}
}

func TestIssueStatsKeepsRecent(t *testing.T) {
	stats := NewIssueStats()
	for i := 0; i < 8; i++ {
		stats.Add(Categorize(fmt.Sprintf("f%d.jpg", i), sideOriginal, "decode image: unexpected EOF"))
	}
	if stats.Total != 8 || len(stats.Recent) != recentIssues || stats.Recent[0].Path != "f3.jpg" {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(stats.Suggestions()) == 0 {
		t.Fatal("expected a suggestion for mostly decode failures")
	}
}

func TestWriteDecisionsIsDeterministic(t *testing.T) {
	a := "orig/a.jpg"
	d := 3.0
	decisions := []match.Decision{
		{ExportedPath: "chat/b.jpg", Kind: media.KindImage, Mode: match.ModeBalanced, RejectionReason: match.ReasonNoCandidates},
		{ExportedPath: "chat/a.jpg", Kind: media.KindImage, Mode: match.ModeBalanced, MatchedPath: &a, Distance: &d},
		{ExportedPath: "chat/c.mp4", Kind: media.KindVideo, Mode: match.ModeBalanced, RejectionReason: match.ReasonAboveThreshold},
	}
	reversed := []match.Decision{decisions[2], decisions[1], decisions[0]}

	var first, second bytes.Buffer
	if err := WriteDecisions(&first, decisions); err != nil {
		t.Fatal(err)
	}
	if err := WriteDecisions(&second, reversed); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatalf("output depends on input order:\n%s\n%s", first.String(), second.String())
	}

	lines := strings.Split(strings.TrimSpace(first.String()), "\n")
	if len(lines) != 3 || !strings.Contains(lines[0], `"exported_path":"chat/a.jpg"`) {
		t.Fatalf("expected 3 lines sorted by path, got %v", lines)
	}
	if decisions[0].ExportedPath != "chat/b.jpg" {
		t.Fatal("input slice must not be reordered")
	}

	back, err := ReadDecisions(&first)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 3 || back[0].MatchedPath == nil || *back[0].MatchedPath != a || back[2].RejectionReason != match.ReasonAboveThreshold {
		t.Fatalf("unexpected round trip %+v", back)
	}
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "report")
	decisions := []match.Decision{{ExportedPath: "chat/a.jpg", Mode: match.ModeStrict, RejectionReason: match.ReasonNoCandidates}}
	s := Summarize(Run{Decisions: decisions, Mode: match.ModeStrict})
	s.RunID = NewRunID()

	if err := Save(dir, decisions, s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	for _, name := range []string{DecisionsFile, SummaryFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
		if _, err := os.Stat(filepath.Join(dir, name+".tmp")); !os.IsNotExist(err) {
			t.Errorf("temporary file left behind for %s", name)
		}
	}
	data, _ := os.ReadFile(filepath.Join(dir, SummaryFile))
	if !strings.Contains(string(data), s.RunID) || !strings.Contains(string(data), `"no_candidates": 1`) {
		t.Fatalf("unexpected summary %s", data)
	}
}

func TestRender(t *testing.T) {
	a := "orig/a.jpg"
	decisions := []match.Decision{
		{ExportedPath: "1.jpg", Kind: media.KindImage, MatchedPath: &a},
		{ExportedPath: "2.jpg", Kind: media.KindImage, RejectionReason: match.ReasonBelowSeparationMargin},
		{ExportedPath: "3.jpg", Kind: media.KindImage, RejectionReason: match.ReasonNoCandidates, FeatureError: "decode image: unexpected EOF"},
	}
	s := Summarize(Run{
		Decisions: decisions,
		Mode:      match.ModeBalanced,
		Window:    600,
		Offset:    offset.Result{Offset: 3600, Votes: []offset.Vote{{Offset: 0, Accepted: 0}, {Offset: 3600, Accepted: 1}}},
	})

	var buf bytes.Buffer
	if err := Render(&buf, s, RenderOptions{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"offset=+1h0m0s", "Images", "33.3%", "below_separation_margin (ambiguous)", "unreadable", "+1h0m0s *", "decode_error"} {
		if !strings.Contains(out, want) {
			t.Errorf("render output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("color codes emitted with color disabled")
	}
}
