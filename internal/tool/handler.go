// Package tool adapts the gap pipeline to a request/response
// protocol surface. Requests arrive as JSON objects carrying the
// coverage payload inline or as an artifact reference; responses
// carry an exit code, the analysis result, and warnings. Errors
// never escape as Go errors: every failure folds into an error
// response so the transport stays uniform.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mcp-tool-shop/code-covered/internal/coverage"
	"github.com/mcp-tool-shop/code-covered/internal/gaps"
)

// Exit codes carried in responses. The threshold code is distinct
// from the error code so CI can tell "gaps found" from "run broken".
const (
	ExitOK        = 0
	ExitError     = 1
	ExitThreshold = 2
)

// ArtifactResolver resolves an artifact identifier to raw coverage
// bytes. Nil resolvers fall back to the reference's locator as a
// file path.
type ArtifactResolver func(id string) ([]byte, error)

// Request is the protocol input.
type Request struct {
	// Coverage is either an inline coverage report object or an
	// artifact reference ({"artifact_id": ..., "locator": ...}).
	Coverage json.RawMessage `json:"coverage"`

	// SourceRoot resolves relative paths in the report.
	SourceRoot string `json:"source_root,omitempty"`

	// PriorityFilter keeps suggestions at this tier or more severe.
	// Unrecognized values are rejected, not ignored.
	PriorityFilter string `json:"priority_filter,omitempty"`

	// Limit caps the suggestions in the response. Gating is computed
	// before the limit applies.
	Limit int `json:"limit,omitempty"`

	// FailOn sets the gating threshold: "none", "any", or a tier.
	FailOn string `json:"fail_on,omitempty"`

	// Format adds a human-readable text rendering when "text".
	Format string `json:"format,omitempty"`
}

// artifactRef is the shape of a non-inline coverage value.
type artifactRef struct {
	ArtifactID string `json:"artifact_id"`
	Locator    string `json:"locator"`
}

// Result is the analysis payload of a response.
type Result struct {
	CoveragePercent  float64           `json:"coverage_percent"`
	FilesAnalyzed    int               `json:"files_analyzed"`
	FilesWithGaps    int               `json:"files_with_gaps"`
	TotalSuggestions int               `json:"total_suggestions"`
	Suggestions      []gaps.Suggestion `json:"suggestions"`
	ByPriority       map[string]int    `json:"by_priority"`
}

// Response is the protocol output.
type Response struct {
	ExitCode int      `json:"exit_code"`
	Result   Result   `json:"result"`
	Warnings []string `json:"warnings"`
	Text     string   `json:"text,omitempty"`
}

// Handler wires the pipeline to the protocol surface.
type Handler struct {
	// Resolver resolves artifact references. Optional.
	Resolver ArtifactResolver

	// Pipeline configures the underlying analysis.
	Pipeline gaps.Options
}

// Handle runs one request through validation, analysis, filtering,
// gating, and limiting. Threshold evaluation always sees the full
// filtered set, never the display-limited subset.
func (h *Handler) Handle(ctx context.Context, raw []byte) Response {
	if err := ValidateRequest(raw); err != nil {
		return errorResponse(fmt.Sprintf("Invalid request: %v", err))
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(fmt.Sprintf("Invalid request: %v", err))
	}

	report, err := h.loadCoverage(req.Coverage)
	if err != nil {
		return errorResponse(err.Error())
	}

	var filter gaps.Tier
	if req.PriorityFilter != "" {
		filter, err = gaps.ParseTier(req.PriorityFilter)
		if err != nil {
			return errorResponse(err.Error())
		}
	}

	opts := h.Pipeline
	opts.SourceRoot = req.SourceRoot
	res, err := gaps.Analyze(ctx, report, opts)
	if err != nil {
		return errorResponse(fmt.Sprintf("Analysis failed: %v", err))
	}

	suggestions := res.Suggestions
	if filter != "" {
		kept := suggestions[:0:0]
		for _, s := range suggestions {
			if s.Priority.AtLeast(filter) {
				kept = append(kept, s)
			}
		}
		suggestions = kept
	}

	// Counts and gating are computed after the filter but before the
	// limit so CI sees every matching gap, not just the top N.
	byPriority := countByPriority(suggestions)
	exitCode := computeExitCode(suggestions, req.FailOn)

	total := len(suggestions)
	if req.Limit > 0 && len(suggestions) > req.Limit {
		suggestions = suggestions[:req.Limit]
	}
	if suggestions == nil {
		suggestions = []gaps.Suggestion{}
	}

	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	sort.Strings(warnings)

	resp := Response{
		ExitCode: exitCode,
		Result: Result{
			CoveragePercent:  res.Stats.CoveragePercent,
			FilesAnalyzed:    res.Stats.FilesAnalyzed,
			FilesWithGaps:    res.Stats.FilesWithGaps,
			TotalSuggestions: total,
			Suggestions:      suggestions,
			ByPriority:       byPriority,
		},
		Warnings: warnings,
	}
	if req.Format == "text" {
		resp.Text = formatText(resp.Result, suggestions)
	}
	return resp
}

// loadCoverage turns the request's coverage value into a parsed
// report: inline object, resolver-backed artifact, or locator path.
func (h *Handler) loadCoverage(raw json.RawMessage) (*coverage.Report, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("coverage must be an object")
	}

	var ref artifactRef
	if err := json.Unmarshal(raw, &ref); err == nil && ref.ArtifactID != "" {
		if h.Resolver != nil {
			data, err := h.Resolver(ref.ArtifactID)
			if err != nil {
				return nil, fmt.Errorf("resolving artifact %q: %w", ref.ArtifactID, err)
			}
			return coverage.Parse(data)
		}
		if ref.Locator == "" {
			return nil, fmt.Errorf("artifact reference requires either a resolver or a locator")
		}
		data, err := os.ReadFile(ref.Locator)
		if err != nil {
			return nil, fmt.Errorf("Coverage file not found: %s", ref.Locator)
		}
		return coverage.Parse(data)
	}

	return coverage.Parse(raw)
}

func countByPriority(suggestions []gaps.Suggestion) map[string]int {
	counts := map[string]int{
		string(gaps.TierCritical): 0,
		string(gaps.TierHigh):     0,
		string(gaps.TierMedium):   0,
		string(gaps.TierLow):      0,
	}
	for _, s := range suggestions {
		if _, ok := counts[string(s.Priority)]; ok {
			counts[string(s.Priority)]++
		}
	}
	return counts
}

// computeExitCode evaluates the gating threshold over the full
// filtered suggestion set.
func computeExitCode(suggestions []gaps.Suggestion, failOn string) int {
	switch failOn {
	case "", "none":
		return ExitOK
	case "any":
		if len(suggestions) > 0 {
			return ExitThreshold
		}
		return ExitOK
	}

	threshold, err := gaps.ParseTier(failOn)
	if err != nil {
		return ExitOK
	}
	for _, s := range suggestions {
		if s.Priority.AtLeast(threshold) {
			return ExitThreshold
		}
	}
	return ExitOK
}

// priorityMarkers decorate the plain-text rendering.
var priorityMarkers = map[gaps.Tier]string{
	gaps.TierCritical: "[!!]",
	gaps.TierHigh:     "[! ]",
	gaps.TierMedium:   "[  ]",
	gaps.TierLow:      "[  ]",
}

// formatText renders a plain ASCII summary for transports that
// cannot display styled terminal output.
func formatText(result Result, suggestions []gaps.Suggestion) string {
	var lines []string
	lines = append(lines, strings.Repeat("=", 60))
	lines = append(lines, "code-covered")
	lines = append(lines, strings.Repeat("=", 60))
	lines = append(lines, fmt.Sprintf("Coverage: %.1f%% (%d files analyzed)",
		result.CoveragePercent, result.FilesAnalyzed))
	lines = append(lines, fmt.Sprintf("Files with gaps: %d", result.FilesWithGaps))
	lines = append(lines, "")

	lines = append(lines, fmt.Sprintf("Missing tests: %d", result.TotalSuggestions))
	if n := result.ByPriority["critical"]; n > 0 {
		lines = append(lines, fmt.Sprintf("  [!!] CRITICAL: %d", n))
	}
	if n := result.ByPriority["high"]; n > 0 {
		lines = append(lines, fmt.Sprintf("  [!]  HIGH: %d", n))
	}
	if n := result.ByPriority["medium"]; n > 0 {
		lines = append(lines, fmt.Sprintf("  [  ] MEDIUM: %d", n))
	}
	if n := result.ByPriority["low"]; n > 0 {
		lines = append(lines, fmt.Sprintf("  [  ] LOW: %d", n))
	}
	lines = append(lines, "")

	if len(suggestions) > 0 {
		lines = append(lines, "Top suggestions:")
		shown := suggestions
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for i, s := range shown {
			marker, ok := priorityMarkers[s.Priority]
			if !ok {
				marker = "[  ]"
			}
			lines = append(lines, fmt.Sprintf("  %d. %s %s", i+1, marker, s.TestName))
			lines = append(lines, fmt.Sprintf("       %s", s.Description))
		}
		if len(suggestions) > 10 {
			lines = append(lines, fmt.Sprintf("  ... and %d more", len(suggestions)-10))
		}
	}

	return strings.Join(lines, "\n")
}

// errorResponse builds the uniform failure payload: exit code 1, an
// empty result, and the message as the sole warning. No partial
// analysis output is ever attached.
func errorResponse(message string) Response {
	return Response{
		ExitCode: ExitError,
		Result: Result{
			Suggestions: []gaps.Suggestion{},
			ByPriority: map[string]int{
				string(gaps.TierCritical): 0,
				string(gaps.TierHigh):     0,
				string(gaps.TierMedium):   0,
				string(gaps.TierLow):      0,
			},
		},
		Warnings: []string{message},
	}
}
