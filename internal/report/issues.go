package report

import (
	"sort"
	"strings"
)

// Category groups per-file problems for the summary.
type Category string

const (
	CategoryIO          Category = "io_error"           // Missing files, permissions
	CategoryDecode      Category = "decode_error"       // Truncated or corrupt pixel data
	CategoryProbe       Category = "probe_error"        // Video container could not be read
	CategoryUnsupported Category = "unsupported_format" // No decoder for the format
	CategoryUnknown     Category = "unknown_error"
)

// Severity indicates how much a problem hurts the run.
type Severity string

const (
	SeverityError   Severity = "error"   // The file can never be matched
	SeverityWarning Severity = "warning" // The file is usable with degraded results
)

// Issue is a categorized per-file problem. Issues are report values, never
// run-aborting errors.
type Issue struct {
	Path       string   `json:"path"`
	Side       string   `json:"side"`
	Category   Category `json:"category"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Categorize classifies a feature error message for path. side is
// "exported" or "original".
func Categorize(path, side, message string) Issue {
	msg := strings.ToLower(message)
	issue := Issue{Path: path, Side: side, Message: message, Severity: SeverityError}

	switch {
	case strings.Contains(msg, "permission denied"):
		issue.Category = CategoryIO
		issue.Suggestion = "Check read permissions on the input directory"

	case strings.Contains(msg, "no such file"):
		issue.Category = CategoryIO
		issue.Suggestion = "File disappeared during the run - check if an external drive disconnected"

	case strings.Contains(msg, "input/output error"):
		issue.Category = CategoryIO
		issue.Suggestion = "I/O error - check disk health with SMART tools"

	case strings.Contains(msg, "executable file not found"):
		issue.Category = CategoryProbe
		issue.Suggestion = "Install ffprobe or set use_exiftool = true"

	case strings.Contains(msg, "probe video"):
		issue.Category = CategoryProbe
		issue.Suggestion = "Video container unreadable - it may be truncated"

	case strings.Contains(msg, "unknown format") || strings.Contains(msg, "unsupported"):
		issue.Category = CategoryUnsupported
		issue.Suggestion = "No decoder for this format (HEIC originals need conversion)"

	case strings.Contains(msg, "decode") || strings.Contains(msg, "unexpected eof") || strings.Contains(msg, "invalid"):
		issue.Category = CategoryDecode
		issue.Suggestion = "File may be corrupted - verify it opens in an image viewer"

	default:
		issue.Category = CategoryUnknown
		issue.Suggestion = "Unexpected error - rerun with --log-level debug for details"
	}

	// Originals that fail to decode only shrink the candidate pool.
	if side == sideOriginal {
		issue.Severity = SeverityWarning
	}
	return issue
}

const (
	sideExported = "exported"
	sideOriginal = "original"
)

// recentIssues bounds the issues kept verbatim in the summary.
const recentIssues = 5

// IssueStats aggregates issues for the summary.
type IssueStats struct {
	Total      int              `json:"total"`
	Errors     int              `json:"errors"`
	Warnings   int              `json:"warnings"`
	ByCategory map[Category]int `json:"by_category"`
	Recent     []Issue          `json:"recent"`
}

// NewIssueStats returns empty stats.
func NewIssueStats() IssueStats {
	return IssueStats{ByCategory: make(map[Category]int), Recent: []Issue{}}
}

// Add counts issue and keeps it if it is among the last few.
func (s *IssueStats) Add(issue Issue) {
	if s.ByCategory == nil {
		s.ByCategory = make(map[Category]int)
	}
	s.Total++
	s.ByCategory[issue.Category]++
	switch issue.Severity {
	case SeverityError:
		s.Errors++
	case SeverityWarning:
		s.Warnings++
	}
	if len(s.Recent) >= recentIssues {
		s.Recent = s.Recent[1:]
	}
	s.Recent = append(s.Recent, issue)
}

// Categories returns the categories seen, most frequent first.
func (s IssueStats) Categories() []Category {
	cats := make([]Category, 0, len(s.ByCategory))
	for c := range s.ByCategory {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if s.ByCategory[cats[i]] != s.ByCategory[cats[j]] {
			return s.ByCategory[cats[i]] > s.ByCategory[cats[j]]
		}
		return cats[i] < cats[j]
	})
	return cats
}

// Suggestions returns next steps based on the issue mix.
func (s IssueStats) Suggestions() []string {
	var out []string
	if s.ByCategory[CategoryIO] > 0 {
		out = append(out, "Check that both input directories are readable and fully synced")
	}
	if s.ByCategory[CategoryProbe] > 0 {
		out = append(out, "Videos failed to probe - consider use_exiftool = true")
	}
	if s.ByCategory[CategoryUnsupported] > 0 {
		out = append(out, "Some formats could not be decoded - convert them to JPEG and rerun")
	}
	if s.ByCategory[CategoryDecode] > s.Total/2 && s.Total > 0 {
		out = append(out, "Many decode failures - the export may be incomplete")
	}
	return out
}
