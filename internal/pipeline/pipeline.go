// Package pipeline runs a full reconciliation: scan both collections,
// resolve timestamps and extract features, index the originals, sweep for
// a clock offset, then match every exported item.
//
// Each pass is a parallel map with no shared mutable state. Cancelling the
// context stops scheduling new items; whatever was already decided is
// returned alongside the context error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/iter"

	"retrace/internal/feature"
	"retrace/internal/hints"
	"retrace/internal/index"
	"retrace/internal/logging"
	"retrace/internal/match"
	"retrace/internal/media"
	"retrace/internal/offset"
	"retrace/internal/report"
	"retrace/internal/timestamp"
)

// Options configures one run.
type Options struct {
	ExportedDir  string
	OriginalsDir string
	Extensions   media.Extensions
	Window       int64
	Bucket       int64
	Mode         match.Mode
	OffsetSweep  bool
	Workers      int
	Hints        hints.Hints
}

// Pipeline wires the components of a run.
type Pipeline struct {
	Extractor *feature.Extractor
	Resolver  *timestamp.Resolver
	Logger    *slog.Logger
}

// New builds a pipeline. A nil logger discards output.
func New(extractor *feature.Extractor, resolver *timestamp.Resolver, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{Extractor: extractor, Resolver: resolver, Logger: logger.With("component", "pipeline")}
}

// Result is everything a run produced.
type Result struct {
	Exported  []media.Record
	Originals []media.Record
	Decisions []match.Decision
	Offset    offset.Result
	Summary   report.Summary
}

type side int

const (
	sideExported side = iota
	sideOriginal
)

type item struct {
	record media.Record
	done   bool
}

// Run executes the pipeline. Only an unreadable exported directory or
// invalid options fail the run; per-file problems end up in decisions.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	started := time.Now().UTC()
	if opts.Window <= 0 || opts.Bucket <= 0 || opts.Bucket > opts.Window {
		return nil, fmt.Errorf("invalid window %ds / bucket %ds", opts.Window, opts.Bucket)
	}
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("invalid mode %q", opts.Mode)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	exportedEntries, err := media.Scan(opts.ExportedDir, opts.Extensions, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("scan exported: %w", err)
	}
	originalEntries, err := p.scanOriginals(opts)
	if err != nil {
		return nil, err
	}
	p.Logger.Info("collections scanned",
		"exported", len(exportedEntries),
		"originals", len(originalEntries),
		"workers", workers,
	)

	res := &Result{}
	finish := func(partial bool) {
		res.Summary = report.Summarize(report.Run{
			Decisions: res.Decisions,
			Originals: res.Originals,
			Offset:    res.Offset,
			Mode:      opts.Mode,
			Window:    opts.Window,
			Bucket:    opts.Bucket,
			Partial:   partial,
		})
		res.Summary.RunID = report.NewRunID()
		res.Summary.StartedAt = started
		res.Summary.FinishedAt = time.Now().UTC()
	}

	res.Originals = p.records(ctx, originalEntries, sideOriginal, opts.Hints, workers)
	res.Exported = p.records(ctx, exportedEntries, sideExported, opts.Hints, workers)
	if err := ctx.Err(); err != nil {
		finish(true)
		return res, err
	}

	idx, err := index.Build(res.Originals, opts.Bucket)
	if err != nil {
		return nil, err
	}
	matcher := match.Matcher{Index: idx, Window: opts.Window}
	p.Logger.Debug("original index built", "records", idx.Len(), "buckets", idx.Buckets(), "bucket_seconds", idx.Width())

	if opts.OffsetSweep && idx.Len() > 0 {
		res.Offset, err = offset.NewReconciler(matcher, workers, p.Logger).Reconcile(ctx, res.Exported)
		if err != nil {
			finish(true)
			return res, err
		}
	}

	mapper := iter.Mapper[media.Record, *match.Decision]{MaxGoroutines: workers}
	decided := mapper.Map(res.Exported, func(rec *media.Record) *match.Decision {
		if ctx.Err() != nil {
			return nil
		}
		d := matcher.Match(*rec, opts.Mode, res.Offset.Offset)
		return &d
	})
	res.Decisions = make([]match.Decision, 0, len(decided))
	for _, d := range decided {
		if d != nil {
			res.Decisions = append(res.Decisions, *d)
		}
	}

	partial := ctx.Err() != nil
	finish(partial)
	p.Logger.Info("matching complete",
		"decisions", len(res.Decisions),
		"matched", res.Summary.Matched,
		"ambiguous", res.Summary.Ambiguous,
		"offset_seconds", res.Offset.Offset,
	)
	if partial {
		return res, ctx.Err()
	}
	return res, nil
}

// scanOriginals treats a missing or unset originals directory as an empty
// collection so every item reports NoCandidates instead of failing.
func (p *Pipeline) scanOriginals(opts Options) ([]media.Entry, error) {
	if opts.OriginalsDir == "" {
		p.Logger.Warn("no originals directory given, nothing can match")
		return nil, nil
	}
	if _, err := os.Stat(opts.OriginalsDir); errors.Is(err, os.ErrNotExist) {
		p.Logger.Warn("originals directory does not exist, nothing can match", "path", opts.OriginalsDir)
		return nil, nil
	}
	entries, err := media.Scan(opts.OriginalsDir, opts.Extensions, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("scan originals: %w", err)
	}
	return entries, nil
}

// records extracts features and resolves timestamps for entries in
// parallel. Output order follows entries; items skipped after cancellation
// are dropped.
func (p *Pipeline) records(ctx context.Context, entries []media.Entry, s side, h hints.Hints, workers int) []media.Record {
	mapper := iter.Mapper[media.Entry, item]{MaxGoroutines: workers}
	items := mapper.Map(entries, func(e *media.Entry) item {
		if ctx.Err() != nil {
			return item{}
		}
		return item{record: p.record(ctx, *e, s, h), done: true}
	})
	out := make([]media.Record, 0, len(items))
	for _, it := range items {
		if it.done {
			out = append(out, it.record)
		}
	}
	return out
}

func (p *Pipeline) record(ctx context.Context, e media.Entry, s side, h hints.Hints) media.Record {
	extracted := p.Extractor.Extract(ctx, e)
	var ts timestamp.Resolution
	if s == sideExported {
		ts = p.Resolver.Exported(e.Path, h.Lookup(e.Path))
	} else {
		ts = p.Resolver.Original(e.Path, e.Kind, extracted.Video)
	}
	if !extracted.Feature.Available {
		p.Logger.Warn("feature unavailable", "path", e.Path, "error", extracted.Feature.Error)
	}
	return media.Record{
		Path:       e.Path,
		Kind:       e.Kind,
		Timestamp:  ts.Unix,
		Provenance: ts.Provenance,
		Feature:    extracted.Feature,
	}
}
