package coverage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// MalformedReportError reports a coverage input that lacks the
// minimally required structure. It is the only fatal error class in
// the pipeline: the run aborts with no partial output.
type MalformedReportError struct {
	// Reason describes what was missing or inconsistent.
	Reason string
}

func (e *MalformedReportError) Error() string {
	return "malformed coverage report: " + e.Reason
}

// jsonFile mirrors the per-file section of coverage.py JSON output.
// Unknown fields are ignored for forward compatibility.
type jsonFile struct {
	ExecutedLines   []int            `json:"executed_lines"`
	MissingLines    []int            `json:"missing_lines"`
	ExcludedLines   []int            `json:"excluded_lines"`
	MissingBranches map[string][]int `json:"missing_branches"`
	Summary         *jsonSummary     `json:"summary"`
}

type jsonSummary struct {
	CoveredLines int `json:"covered_lines"`
	MissingLines int `json:"missing_lines"`
}

type jsonReport struct {
	Files map[string]*jsonFile `json:"files"`
}

// ParseFile reads a coverage report from disk. The format is
// detected from the content: JSON objects are treated as coverage.py
// output, "mode:" headers as Go cover profiles.
func ParseFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading coverage report: %w", err)
	}
	return Parse(data)
}

// Parse parses raw coverage report bytes, sniffing the format.
func Parse(data []byte) (*Report, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	switch {
	case len(trimmed) == 0:
		return nil, &MalformedReportError{Reason: "empty input"}
	case trimmed[0] == '{':
		return ParseJSON(trimmed)
	case bytes.HasPrefix(trimmed, []byte("mode:")):
		return ParseProfile(trimmed)
	default:
		return nil, &MalformedReportError{Reason: "unrecognized format (expected coverage JSON or Go cover profile)"}
	}
}

// ParseJSON parses coverage.py JSON output into the normalized
// model. The report must contain a "files" object; each file entry
// must carry line data. A missing branch section is not an error.
func ParseJSON(data []byte) (*Report, error) {
	var raw jsonReport
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedReportError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if raw.Files == nil {
		return nil, &MalformedReportError{Reason: `missing "files" section`}
	}

	report := &Report{Files: make(map[string]*FileCoverage, len(raw.Files))}

	// Iterate in sorted order so any error reported is deterministic
	// regardless of key order in the input.
	paths := make([]string, 0, len(raw.Files))
	for p := range raw.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		entry := raw.Files[path]
		if entry == nil || (entry.ExecutedLines == nil && entry.MissingLines == nil) {
			return nil, &MalformedReportError{
				Reason: fmt.Sprintf("file %q has no line data", path),
			}
		}

		fc := &FileCoverage{
			Path:     path,
			Executed: toSet(entry.ExecutedLines),
			Missed:   toSet(entry.MissingLines),
			Excluded: toSet(entry.ExcludedLines),
		}

		for line := range fc.Missed {
			if fc.Executed[line] {
				return nil, &MalformedReportError{
					Reason: fmt.Sprintf("file %q lists line %d as both executed and missed", path, line),
				}
			}
		}

		fc.MissedBranches = parseBranches(entry.MissingBranches)

		report.Files[path] = fc
		report.TotalCovered += len(fc.Executed)
		report.TotalMissed += len(fc.Missed)
	}

	return report, nil
}

// parseBranches converts the coverage.py missing_branches map
// (stringified source line -> destination lines) into Branch pairs,
// sorted for deterministic ordering. Keys that are not line numbers
// are skipped rather than treated as fatal.
func parseBranches(raw map[string][]int) []Branch {
	if len(raw) == 0 {
		return nil
	}
	var branches []Branch
	for key, dests := range raw {
		line, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		for _, dest := range dests {
			branches = append(branches, Branch{Line: line, Dest: dest})
		}
	}
	sort.Slice(branches, func(i, j int) bool {
		if branches[i].Line != branches[j].Line {
			return branches[i].Line < branches[j].Line
		}
		return branches[i].Dest < branches[j].Dest
	})
	return branches
}

func toSet(lines []int) map[int]bool {
	set := make(map[int]bool, len(lines))
	for _, n := range lines {
		set[n] = true
	}
	return set
}
