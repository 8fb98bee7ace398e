// Package offset detects a constant clock skew between exported items and
// originals, such as a time zone or DST mismatch between two devices.
package offset

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/sourcegraph/conc/iter"

	"retrace/internal/logging"
	"retrace/internal/match"
	"retrace/internal/media"
)

// DefaultCandidates are the offsets tried, in seconds. An offset is added
// to every exported timestamp.
var DefaultCandidates = []int64{-7200, -3600, 0, 3600, 7200}

// Vote is the number of balanced-mode acceptances reached at one offset.
type Vote struct {
	Offset   int64 `json:"offset"`
	Accepted int   `json:"accepted"`
}

// Result is the outcome of a sweep.
type Result struct {
	Offset int64  `json:"offset"`
	Votes  []Vote `json:"votes"`
	// Sample is the number of exported images the sweep matched.
	Sample int `json:"sample"`
	// Trusted is false when no exported image had a trusted timestamp and
	// the sweep fell back to every exported image.
	Trusted bool `json:"trusted"`
}

// Reconciler runs trial matching passes. It never mutates its inputs.
type Reconciler struct {
	Matcher    match.Matcher
	Candidates []int64
	Workers    int
	Logger     *slog.Logger
}

// NewReconciler builds a reconciler over the default candidate offsets.
func NewReconciler(m match.Matcher, workers int, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reconciler{
		Matcher:    m,
		Candidates: DefaultCandidates,
		Workers:    workers,
		Logger:     logger.With("component", "offset"),
	}
}

// Sample selects the exported images the sweep votes with: readable images
// whose timestamp came from the message or the filename, or every readable
// image when none did.
func Sample(exported []media.Record) ([]media.Record, bool) {
	var trusted, all []media.Record
	for _, rec := range exported {
		if rec.Kind != media.KindImage || !rec.Feature.Available {
			continue
		}
		all = append(all, rec)
		if rec.Provenance.FromExport() {
			trusted = append(trusted, rec)
		}
	}
	if len(trusted) > 0 {
		return trusted, true
	}
	return all, false
}

// Reconcile counts balanced-mode acceptances for every candidate offset and
// selects the best. On cancellation it returns offset 0 with ctx.Err().
func (r *Reconciler) Reconcile(ctx context.Context, exported []media.Record) (Result, error) {
	sample, trusted := Sample(exported)
	res := Result{Sample: len(sample), Trusted: trusted}
	candidates := r.Candidates
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	mapper := iter.Mapper[media.Record, bool]{MaxGoroutines: workers}

	for _, off := range candidates {
		accepted := mapper.Map(sample, func(rec *media.Record) bool {
			if ctx.Err() != nil {
				return false
			}
			return r.Matcher.Match(*rec, match.ModeBalanced, off).Accepted()
		})
		if err := ctx.Err(); err != nil {
			return Result{Sample: res.Sample, Trusted: trusted}, err
		}
		vote := Vote{Offset: off}
		for _, ok := range accepted {
			if ok {
				vote.Accepted++
			}
		}
		res.Votes = append(res.Votes, vote)
	}

	res.Offset = Select(res.Votes)
	r.Logger.Info("offset sweep complete",
		"offset_seconds", res.Offset,
		"sample", res.Sample,
		"trusted_sample", trusted,
	)
	for _, v := range res.Votes {
		r.Logger.Debug("offset vote", "offset_seconds", v.Offset, "accepted", v.Accepted)
	}
	return res, nil
}

// Select returns the offset with the most acceptances. Offset 0 wins any tie
// it is part of; otherwise the smaller magnitude wins, then the negative one.
// No votes, or no acceptances at all, select 0.
func Select(votes []Vote) int64 {
	best := Vote{Offset: 0, Accepted: -1}
	for _, v := range votes {
		if v.Offset == 0 && v.Accepted > best.Accepted {
			best = v
		}
	}
	if best.Accepted < 0 {
		best.Accepted = 0
	}
	for _, v := range votes {
		if v.Offset == 0 || v.Accepted < best.Accepted {
			continue
		}
		if v.Accepted > best.Accepted || (best.Offset != 0 && preferred(v.Offset, best.Offset)) {
			best = v
		}
	}
	return best.Offset
}

func preferred(a, b int64) bool {
	ma, mb := magnitude(a), magnitude(b)
	if ma != mb {
		return ma < mb
	}
	return a < b
}

func magnitude(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
