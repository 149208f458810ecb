// Package coverage parses coverage reports into a normalized
// in-memory model. It accepts coverage.py JSON output as well as Go
// cover profiles, so downstream stages never re-validate raw input.
package coverage

import (
	"math"
	"sort"
)

// Branch identifies a missed branch transfer as recorded by the
// coverage tool: control left Line but never reached Dest.
type Branch struct {
	// Line is the source line of the branch point.
	Line int `json:"line"`

	// Dest is the destination line that was never taken. Negative
	// values follow the coverage.py convention for exits.
	Dest int `json:"dest"`
}

// FileCoverage holds normalized line coverage for a single file.
// Executed and Missed are disjoint by construction; the parser
// rejects reports that violate this.
type FileCoverage struct {
	// Path is the file path exactly as recorded in the report.
	Path string `json:"path"`

	// Executed is the set of line numbers hit at least once.
	Executed map[int]bool `json:"-"`

	// Missed is the set of line numbers never executed.
	Missed map[int]bool `json:"-"`

	// Excluded is the set of lines the coverage tool excluded
	// (pragma: no cover and similar). Informational only.
	Excluded map[int]bool `json:"-"`

	// MissedBranches lists branch transfers that were never taken.
	// Empty when the report carries no branch data.
	MissedBranches []Branch `json:"missed_branches,omitempty"`
}

// Percent returns the line coverage percentage for the file,
// rounded to one decimal place using round-half-to-even. A file
// with no measured lines reports 100.0.
func (f *FileCoverage) Percent() float64 {
	return roundPercent(len(f.Executed), len(f.Executed)+len(f.Missed))
}

// MissedLines returns the missed line numbers in ascending order.
func (f *FileCoverage) MissedLines() []int {
	lines := make([]int, 0, len(f.Missed))
	for n := range f.Missed {
		lines = append(lines, n)
	}
	sort.Ints(lines)
	return lines
}

// Report is the normalized coverage model for one analysis run.
type Report struct {
	// Files maps report-recorded paths to per-file coverage.
	Files map[string]*FileCoverage `json:"files"`

	// TotalCovered and TotalMissed are taken from the report
	// summary when present, otherwise derived by summation.
	TotalCovered int `json:"total_covered"`
	TotalMissed  int `json:"total_missed"`
}

// Percent returns the overall coverage percentage, rounded to one
// decimal place using round-half-to-even. An empty report is 100.0.
func (r *Report) Percent() float64 {
	return roundPercent(r.TotalCovered, r.TotalCovered+r.TotalMissed)
}

// FilesWithGaps returns the number of files with at least one
// missed line.
func (r *Report) FilesWithGaps() int {
	n := 0
	for _, f := range r.Files {
		if len(f.Missed) > 0 {
			n++
		}
	}
	return n
}

// SortedPaths returns the report's file paths in ascending order.
// The pipeline iterates files in this order so output is stable
// regardless of map iteration.
func (r *Report) SortedPaths() []string {
	paths := make([]string, 0, len(r.Files))
	for p := range r.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// roundPercent computes covered/total*100 rounded to one decimal
// place with banker's rounding, the tie-breaking rule the report
// format promises.
func roundPercent(covered, total int) float64 {
	if total == 0 {
		return 100.0
	}
	pct := float64(covered) / float64(total) * 100
	return math.RoundToEven(pct*10) / 10
}
