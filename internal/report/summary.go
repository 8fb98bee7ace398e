// Package report reduces match decisions into summary statistics and
// persists them for auditing.
package report

import (
	"time"

	"github.com/google/uuid"

	"retrace/internal/match"
	"retrace/internal/media"
	"retrace/internal/offset"
)

// KindCounts is the per-kind match tally.
type KindCounts struct {
	Total   int     `json:"total"`
	Matched int     `json:"matched"`
	Percent float64 `json:"percent"`
}

// Run is everything the reduction needs.
type Run struct {
	Decisions []match.Decision
	Originals []media.Record
	Offset    offset.Result
	Mode      match.Mode
	Window    int64
	Bucket    int64
	Partial   bool
}

// Summary is the aggregate view of one run.
type Summary struct {
	RunID          string         `json:"run_id"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	Mode           match.Mode     `json:"mode"`
	WindowSeconds  int64          `json:"window_seconds"`
	BucketSeconds  int64          `json:"bucket_seconds"`
	TotalExported  int            `json:"total_exported"`
	TotalOriginals int            `json:"total_originals"`
	Matched        int            `json:"matched"`
	MatchRate      float64        `json:"match_rate"`
	Images         KindCounts     `json:"images"`
	Videos         KindCounts     `json:"videos"`
	Unmatched      map[string]int `json:"unmatched"`
	Ambiguous      int            `json:"ambiguous"`
	Unreadable     int            `json:"unreadable"`
	Offset         offset.Result  `json:"offset"`
	Issues         IssueStats     `json:"issues"`
	Partial        bool           `json:"partial"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Summarize reduces a run into counts. It reads decisions and never
// modifies them.
func Summarize(run Run) Summary {
	s := Summary{
		Mode:           run.Mode,
		WindowSeconds:  run.Window,
		BucketSeconds:  run.Bucket,
		TotalExported:  len(run.Decisions),
		TotalOriginals: len(run.Originals),
		Unmatched:      make(map[string]int, len(match.Reasons)),
		Offset:         run.Offset,
		Issues:         NewIssueStats(),
		Partial:        run.Partial,
	}
	for _, reason := range match.Reasons {
		s.Unmatched[reason.String()] = 0
	}

	for _, d := range run.Decisions {
		counts := &s.Images
		if d.Kind == media.KindVideo {
			counts = &s.Videos
		}
		counts.Total++

		if d.Accepted() {
			counts.Matched++
			s.Matched++
			continue
		}
		s.Unmatched[d.RejectionReason.String()]++
		if d.RejectionReason == match.ReasonBelowSeparationMargin {
			s.Ambiguous++
		}
		if d.Unreadable() {
			s.Unreadable++
			s.Issues.Add(Categorize(d.ExportedPath, sideExported, d.FeatureError))
		}
	}
	for _, rec := range run.Originals {
		if !rec.Feature.Available {
			s.Issues.Add(Categorize(rec.Path, sideOriginal, rec.Feature.Error))
		}
	}

	s.Images.Percent = percent(s.Images.Matched, s.Images.Total)
	s.Videos.Percent = percent(s.Videos.Matched, s.Videos.Total)
	s.MatchRate = percent(s.Matched, s.TotalExported)
	return s
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}
