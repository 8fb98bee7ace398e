package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"retrace/internal/match"
)

const (
	DecisionsFile = "decisions.jsonl"
	SummaryFile   = "summary.json"
)

// Sorted returns a copy of decisions ordered by exported path.
func Sorted(decisions []match.Decision) []match.Decision {
	out := make([]match.Decision, len(decisions))
	copy(out, decisions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExportedPath < out[j].ExportedPath })
	return out
}

// WriteDecisions writes one JSON object per line, ordered by exported path.
// Identical decisions always produce identical bytes.
func WriteDecisions(w io.Writer, decisions []match.Decision) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, d := range Sorted(decisions) {
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("failed to encode decision for %s: %w", d.ExportedPath, err)
		}
	}
	return bw.Flush()
}

// ReadDecisions parses a decisions file written by WriteDecisions.
func ReadDecisions(r io.Reader) ([]match.Decision, error) {
	var out []match.Decision
	dec := json.NewDecoder(r)
	for dec.More() {
		var d match.Decision
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("failed to decode decision %d: %w", len(out)+1, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// WriteSummary writes the summary as indented JSON.
func WriteSummary(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return nil
}

// Save writes both artifacts into dir, creating it if needed. Each file is
// written to a temporary name and renamed so readers never see a torn file.
func Save(dir string, decisions []match.Decision, s Summary) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, DecisionsFile), func(w io.Writer) error {
		return WriteDecisions(w, decisions)
	}); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, SummaryFile), func(w io.Writer) error {
		return WriteSummary(w, s)
	})
}

func writeAtomic(dest string, write func(io.Writer) error) error {
	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(dest), err)
	}
	if err := write(out); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync %s: %w", filepath.Base(dest), err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}
