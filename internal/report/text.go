package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mcp-tool-shop/code-covered/internal/gaps"
)

// WriteText writes a pipeline result as human-readable styled text to
// the writer. Output uses lipgloss for color and formatting when the
// output is a TTY; degrades gracefully for pipes and CI.
func WriteText(w io.Writer, res *gaps.Result) error {
	s := DefaultStyles()

	if len(res.Suggestions) == 0 {
		fmt.Fprintln(w, s.Header.Render("No coverage gaps found."))
		writeSummary(w, res, s)
		writeWarnings(w, res.Warnings, s)
		return nil
	}

	for i, path := range sourceFiles(res.Suggestions) {
		if i > 0 {
			fmt.Fprintln(w)
		}
		writeFileSection(w, path, res.Suggestions, s)
	}

	writeSummary(w, res, s)
	writeWarnings(w, res.Warnings, s)
	return nil
}

// sourceFiles returns the distinct source paths in first-seen order,
// which is priority order because the suggestion list is pre-sorted.
func sourceFiles(suggestions []gaps.Suggestion) []string {
	seen := make(map[string]bool)
	var out []string
	for _, sg := range suggestions {
		if !seen[sg.SourceFile] {
			seen[sg.SourceFile] = true
			out = append(out, sg.SourceFile)
		}
	}
	return out
}

func writeFileSection(w io.Writer, path string, all []gaps.Suggestion, s Styles) {
	var suggestions []gaps.Suggestion
	for _, sg := range all {
		if sg.SourceFile == path {
			suggestions = append(suggestions, sg)
		}
	}
	sort.Slice(suggestions, func(i, j int) bool {
		return suggestions[i].StartLine < suggestions[j].StartLine
	})

	fmt.Fprintln(w, s.Header.Render(fmt.Sprintf("=== %s ===", path)))

	// 80 cols total. Borders take ~5, padding 8 for 4 columns.
	// PRIORITY=8, LINES=9, TEST=26, DESCRIPTION=24.
	const maxDesc = 24
	const maxName = 26
	rows := make([][]string, 0, len(suggestions))
	for _, sg := range suggestions {
		rows = append(rows, []string{
			string(sg.Priority),
			fmt.Sprintf("%d-%d", sg.StartLine, sg.EndLine),
			truncate(sg.TestName, maxName),
			truncate(sg.Description, maxDesc),
		})
	}

	t := table.New().
		Width(78).
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			if col == 0 && row >= 0 && row < len(rows) {
				return s.TierStyle(gaps.Tier(rows[row][0]))
			}
			return s.TableCell
		}).
		Headers("PRIORITY", "LINES", "SUGGESTED TEST", "DESCRIPTION").
		Rows(rows...)

	fmt.Fprintln(w, t)

	for _, sg := range suggestions {
		if len(sg.SetupHints) > 0 {
			fmt.Fprintln(w, s.Muted.Render(fmt.Sprintf(
				"    %s: %s", sg.TestName, strings.Join(sg.SetupHints, "; "))))
		}
	}
}

func writeSummary(w io.Writer, res *gaps.Result, s Styles) {
	tierCounts := make(map[gaps.Tier]int)
	for _, sg := range res.Suggestions {
		tierCounts[sg.Priority]++
	}

	var parts []string
	for _, tier := range []gaps.Tier{
		gaps.TierCritical, gaps.TierHigh, gaps.TierMedium, gaps.TierLow,
	} {
		if c, ok := tierCounts[tier]; ok {
			parts = append(parts, s.TierStyle(tier).Render(
				fmt.Sprintf("%s: %d", tier, c)))
		}
	}

	fmt.Fprintf(w, "\n%s\n", s.Header.Render(fmt.Sprintf(
		"%.1f%% coverage, %d file(s) analyzed, %d with gaps, %d suggestion(s)",
		res.Stats.CoveragePercent, res.Stats.FilesAnalyzed,
		res.Stats.FilesWithGaps, res.Stats.TotalSuggestions)))
	if len(parts) > 0 {
		fmt.Fprintf(w, "    By priority: %s\n", strings.Join(parts, ", "))
	}
}

func writeWarnings(w io.Writer, warnings []string, s Styles) {
	for _, warning := range warnings {
		fmt.Fprintln(w, s.Warning.Render("    warning: "+warning))
	}
}

func truncate(text string, max int) string {
	if len(text) > max {
		return text[:max-3] + "..."
	}
	return text
}
