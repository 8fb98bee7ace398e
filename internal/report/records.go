package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"retrace/internal/media"
)

// Output formats accepted by WriteRecords.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// WriteRecords describes scanned records, either as an indented JSON array
// or as a table relative to root. Times are shown in loc.
func WriteRecords(w io.Writer, root string, records []media.Record, format string, loc *time.Location) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if records == nil {
			records = []media.Record{}
		}
		return enc.Encode(records)
	case "", FormatTable:
		return recordsTable(w, root, records, loc)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func recordsTable(w io.Writer, root string, records []media.Record, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Footer = text.FormatDefault
	tw.AppendHeader(table.Row{"File", "Kind", "Timestamp", "Source", "Feature"})

	var images, videos, unavailable int
	for _, r := range records {
		name := r.Path
		if rel, err := filepath.Rel(root, r.Path); err == nil {
			name = rel
		}
		if r.Kind == media.KindVideo {
			videos++
		} else {
			images++
		}
		tw.AppendRow(table.Row{
			name,
			r.Kind,
			time.Unix(r.Timestamp, 0).In(loc).Format("2006-01-02 15:04:05"),
			r.Provenance,
			describeFeature(r),
		})
		if !r.Feature.Available {
			unavailable++
		}
	}
	tw.AppendFooter(table.Row{
		fmt.Sprintf("%s files", humanize.Comma(int64(len(records)))),
		fmt.Sprintf("%d img / %d vid", images, videos),
		"", "",
		fmt.Sprintf("%s unreadable", humanize.Comma(int64(unavailable))),
	})
	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

func describeFeature(r media.Record) string {
	f := r.Feature
	switch {
	case !f.Available:
		return "unavailable: " + f.Error
	case r.Kind == media.KindVideo && f.Size > 0:
		return fmt.Sprintf("%.2fs, %s", f.Duration, humanize.Bytes(uint64(f.Size)))
	case r.Kind == media.KindVideo:
		return fmt.Sprintf("%.2fs", f.Duration)
	default:
		return f.Fingerprint.String()
	}
}
