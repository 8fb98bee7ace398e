package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"retrace/internal/match"
)

// RenderOptions controls console output.
type RenderOptions struct {
	Color bool
}

type palette struct {
	good, warn, bad, dim *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		good: color.New(color.FgGreen, color.Bold),
		warn: color.New(color.FgYellow),
		bad:  color.New(color.FgRed),
		dim:  color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.good, p.warn, p.bad, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Render writes the human-readable summary of a run.
func Render(w io.Writer, s Summary, opts RenderOptions) error {
	p := newPalette(opts.Color)
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s  mode=%s  window=%ds  offset=%s\n",
		p.dim.Sprint(s.RunID), s.Mode, s.WindowSeconds, formatOffset(s.Offset.Offset))
	if s.Partial {
		b.WriteString(p.warn.Sprint("Interrupted: results cover only the items processed before cancellation") + "\n")
	}
	b.WriteString("\n")

	b.WriteString(countsTable(s, p))
	b.WriteString("\n\n")
	b.WriteString(unmatchedTable(s))
	b.WriteString("\n")

	if len(s.Offset.Votes) > 0 {
		b.WriteString("\n")
		b.WriteString(votesTable(s))
		b.WriteString("\n")
	}

	if s.Issues.Total > 0 {
		fmt.Fprintf(&b, "\n%s\n", p.bad.Sprintf("%s files could not be read:", humanize.Comma(int64(s.Issues.Total))))
		for _, cat := range s.Issues.Categories() {
			fmt.Fprintf(&b, "  • %s: %s\n", cat, humanize.Comma(int64(s.Issues.ByCategory[cat])))
		}
		for _, issue := range s.Issues.Recent {
			fmt.Fprintf(&b, "  %s (%s) %s\n", issue.Path, issue.Side, p.dim.Sprint(issue.Message))
		}
		for _, hint := range s.Issues.Suggestions() {
			fmt.Fprintf(&b, "  💡 %s\n", hint)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func countsTable(s Summary, p palette) string {
	tw := newTable("", "Total", "Matched", "Rate")
	rows := []struct {
		label  string
		counts KindCounts
	}{
		{"Images", s.Images},
		{"Videos", s.Videos},
		{"All", KindCounts{Total: s.TotalExported, Matched: s.Matched, Percent: s.MatchRate}},
	}
	for i, r := range rows {
		if i == len(rows)-1 {
			tw.AppendSeparator()
		}
		tw.AppendRow(table.Row{
			r.label,
			humanize.Comma(int64(r.counts.Total)),
			humanize.Comma(int64(r.counts.Matched)),
			rate(r.counts, p),
		})
	}
	return tw.Render()
}

func rate(c KindCounts, p palette) string {
	value := fmt.Sprintf("%.1f%%", c.Percent)
	switch {
	case c.Total == 0:
		return p.dim.Sprint("-")
	case c.Percent >= 80:
		return p.good.Sprint(value)
	case c.Percent >= 40:
		return p.warn.Sprint(value)
	default:
		return p.bad.Sprint(value)
	}
}

func unmatchedTable(s Summary) string {
	tw := newTable("Unmatched", "Count")
	for _, reason := range match.Reasons {
		label := reason.String()
		if reason == match.ReasonBelowSeparationMargin {
			label += " (ambiguous)"
		}
		tw.AppendRow(table.Row{label, humanize.Comma(int64(s.Unmatched[reason.String()]))})
	}
	tw.AppendRow(table.Row{"unreadable", humanize.Comma(int64(s.Unreadable))})
	return tw.Render()
}

func votesTable(s Summary) string {
	tw := newTable("Offset", "Accepted")
	for _, v := range s.Offset.Votes {
		label := formatOffset(v.Offset)
		if v.Offset == s.Offset.Offset {
			label += " *"
		}
		tw.AppendRow(table.Row{label, humanize.Comma(int64(v.Accepted))})
	}
	return tw.Render()
}

func newTable(headers ...string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	header := make(table.Row, len(headers))
	configs := make([]table.ColumnConfig, 0, len(headers))
	for i, h := range headers {
		header[i] = h
		align := text.AlignRight
		if i == 0 {
			align = text.AlignLeft
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)
	return tw
}

func formatOffset(seconds int64) string {
	if seconds == 0 {
		return "0s"
	}
	d := time.Duration(seconds) * time.Second
	if seconds > 0 {
		return "+" + d.String()
	}
	return d.String()
}
