// Package report provides output formatters for coverage-gap results
// in JSON and human-readable text formats.
package report

import (
	"encoding/json"
	"io"

	"github.com/mcp-tool-shop/code-covered/internal/gaps"
)

// JSONReport is the top-level JSON output structure.
type JSONReport struct {
	Version     string            `json:"version"`
	Stats       gaps.Stats        `json:"stats"`
	Suggestions []gaps.Suggestion `json:"suggestions"`
	Warnings    []string          `json:"warnings"`
}

// WriteJSON writes a pipeline result as formatted JSON to the writer.
// Nil slices are normalized to empty so consumers always see arrays.
func WriteJSON(w io.Writer, res *gaps.Result) error {
	suggestions := res.Suggestions
	if suggestions == nil {
		suggestions = []gaps.Suggestion{}
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	out := JSONReport{
		Version:     "0.1.0",
		Stats:       res.Stats,
		Suggestions: suggestions,
		Warnings:    warnings,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
