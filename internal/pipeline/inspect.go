package pipeline

import (
	"context"
	"fmt"
	"runtime"

	"retrace/internal/hints"
	"retrace/internal/media"
)

// InspectOptions selects the directory to describe and which side's
// timestamp rules apply.
type InspectOptions struct {
	Dir        string
	Extensions media.Extensions
	Exported   bool
	Workers    int
	Hints      hints.Hints
}

// Inspect scans one directory and returns the records matching would see,
// without building an index or deciding anything.
func (p *Pipeline) Inspect(ctx context.Context, opts InspectOptions) ([]media.Record, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	entries, err := media.Scan(opts.Dir, opts.Extensions, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", opts.Dir, err)
	}
	s := sideOriginal
	if opts.Exported {
		s = sideExported
	}
	records := p.records(ctx, entries, s, opts.Hints, workers)
	return records, ctx.Err()
}
