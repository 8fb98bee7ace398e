// Package match ranks time-window candidates for an exported item and
// decides whether the best one is safe to accept.
//
// A wrong pairing is worse than no pairing: a best candidate is accepted
// only when it is under the mode's threshold and clearly separated from the
// runner-up.
package match

import (
	"fmt"

	"retrace/internal/media"
)

// Reason explains a decision. ReasonNone marks an accepted match.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNoCandidates
	ReasonBelowSeparationMargin
	ReasonAboveThreshold
)

// Reasons lists every rejection reason in report order.
var Reasons = []Reason{ReasonNoCandidates, ReasonAboveThreshold, ReasonBelowSeparationMargin}

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNoCandidates:
		return "no_candidates"
	case ReasonBelowSeparationMargin:
		return "below_separation_margin"
	case ReasonAboveThreshold:
		return "above_threshold"
	default:
		return "unknown"
	}
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Reason) UnmarshalText(text []byte) error {
	for _, candidate := range []Reason{ReasonNone, ReasonNoCandidates, ReasonBelowSeparationMargin, ReasonAboveThreshold} {
		if candidate.String() == string(text) {
			*r = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown rejection reason %q", text)
}

// Outcome is the result of evaluating a ranked candidate list: either
// Matched or Rejected.
type Outcome interface {
	outcome()
}

// Matched carries the accepted candidate. Margin is nil when it was the only
// candidate.
type Matched struct {
	Candidate Candidate
	Margin    *float64
}

// Rejected carries the reason and, when candidates existed, the best one.
type Rejected struct {
	Reason Reason
	Best   *Candidate
	Margin *float64
}

func (Matched) outcome()  {}
func (Rejected) outcome() {}

// Evaluate applies the threshold and separation rules of policy to ranked
// candidates, best first.
func Evaluate(cands []Candidate, kind media.Kind, policy Policy) Outcome {
	if len(cands) == 0 {
		return Rejected{Reason: ReasonNoCandidates}
	}
	threshold, minMargin := policy.limits(kind == media.KindVideo)
	best := cands[0]

	var margin *float64
	if len(cands) > 1 {
		gap := cands[1].Distance - best.Distance
		margin = &gap
	}

	if best.Distance > threshold {
		return Rejected{Reason: ReasonAboveThreshold, Best: &best, Margin: margin}
	}
	if margin != nil && *margin < minMargin {
		return Rejected{Reason: ReasonBelowSeparationMargin, Best: &best, Margin: margin}
	}
	return Matched{Candidate: best, Margin: margin}
}

// Decision is the durable outcome for one exported item. Nullable fields are
// pointers so the report distinguishes "absent" from zero.
type Decision struct {
	ExportedPath       string            `json:"exported_path"`
	Kind               media.Kind        `json:"kind"`
	MatchedPath        *string           `json:"matched_path"`
	Distance           *float64          `json:"distance"`
	TimeDelta          *int64            `json:"time_delta"`
	Margin             *float64          `json:"margin"`
	Mode               Mode              `json:"mode"`
	RejectionReason    Reason            `json:"rejection_reason"`
	Candidates         int               `json:"candidates"`
	ExportedTimestamp  int64             `json:"exported_timestamp"`
	ExportedProvenance media.Provenance  `json:"exported_provenance"`
	Offset             int64             `json:"offset"`
	CandidatePath      *string           `json:"best_candidate_path,omitempty"`
	OriginalProvenance *media.Provenance `json:"original_provenance,omitempty"`
	FeatureError       string            `json:"feature_error,omitempty"`
}

// Accepted reports whether the decision pairs the item with an original.
func (d Decision) Accepted() bool {
	return d.MatchedPath != nil && d.RejectionReason == ReasonNone
}

// Unreadable reports whether the exported item had no usable feature.
func (d Decision) Unreadable() bool {
	return d.FeatureError != ""
}

// Decide evaluates ranked candidates for exported under mode. An exported
// record without a feature always yields NoCandidates with the feature error.
func Decide(exported media.Record, cands []Candidate, mode Mode) Decision {
	d := Decision{
		ExportedPath:       exported.Path,
		Kind:               exported.Kind,
		Mode:               mode,
		ExportedTimestamp:  exported.Timestamp,
		ExportedProvenance: exported.Provenance,
		Candidates:         len(cands),
	}
	if !exported.Feature.Available {
		d.RejectionReason = ReasonNoCandidates
		d.Candidates = 0
		d.FeatureError = exported.Feature.Error
		if d.FeatureError == "" {
			d.FeatureError = "feature unavailable"
		}
		return d
	}

	switch out := Evaluate(cands, exported.Kind, mode.Policy()).(type) {
	case Matched:
		d.RejectionReason = ReasonNone
		d.fill(out.Candidate, out.Margin)
		d.MatchedPath = d.CandidatePath
	case Rejected:
		d.RejectionReason = out.Reason
		if out.Best != nil {
			d.fill(*out.Best, out.Margin)
		}
	}
	return d
}

func (d *Decision) fill(c Candidate, margin *float64) {
	path := c.Record.Path
	distance := c.Distance
	delta := c.TimeDelta
	prov := c.Record.Provenance
	d.CandidatePath = &path
	d.Distance = &distance
	d.TimeDelta = &delta
	d.OriginalProvenance = &prov
	if margin != nil {
		m := *margin
		d.Margin = &m
	}
}
