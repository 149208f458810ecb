package coverage

import (
	"bytes"

	"golang.org/x/tools/cover"
)

// ParseProfile parses a Go cover profile (go test -coverprofile)
// into the normalized model. Statement blocks are flattened to line
// granularity: a line is executed when any block covering it has a
// positive count, missed when every covering block has count zero.
func ParseProfile(data []byte) (*Report, error) {
	profiles, err := cover.ParseProfilesFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, &MalformedReportError{Reason: err.Error()}
	}

	report := &Report{Files: make(map[string]*FileCoverage, len(profiles))}

	for _, profile := range profiles {
		fc := report.Files[profile.FileName]
		if fc == nil {
			fc = &FileCoverage{
				Path:     profile.FileName,
				Executed: make(map[int]bool),
				Missed:   make(map[int]bool),
				Excluded: make(map[int]bool),
			}
			report.Files[profile.FileName] = fc
		}

		for _, b := range profile.Blocks {
			for line := b.StartLine; line <= b.EndLine; line++ {
				if b.Count > 0 {
					fc.Executed[line] = true
				} else {
					fc.Missed[line] = true
				}
			}
		}
	}

	// A line can belong to multiple blocks (shared braces, inlined
	// ranges). Executed wins so the sets stay disjoint.
	for _, fc := range report.Files {
		for line := range fc.Executed {
			delete(fc.Missed, line)
		}
		report.TotalCovered += len(fc.Executed)
		report.TotalMissed += len(fc.Missed)
	}

	return report, nil
}
