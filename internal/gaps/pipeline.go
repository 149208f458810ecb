// Package gaps turns a coverage report plus source files into an
// ordered list of test suggestions. The pipeline correlates missed
// lines with a structural index per file, classifies the resulting
// candidates, assigns severity tiers, and synthesizes test stubs.
package gaps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fzipp/gocyclo"
	"golang.org/x/sync/errgroup"

	"github.com/mcp-tool-shop/code-covered/internal/coverage"
	"github.com/mcp-tool-shop/code-covered/internal/syntax"
)

// Options configures a pipeline run.
type Options struct {
	// SourceRoot resolves relative paths recorded in the coverage
	// report. Empty means paths are used as-is.
	SourceRoot string

	// Workers bounds per-file parallelism. Zero or negative means
	// sequential. Parallelism never changes observable output; the
	// result is sorted before return.
	Workers int

	// Cache, when non-nil, reuses structural indexes across runs.
	Cache *IndexCache

	// ComplexityThreshold escalates entirely-missed functions whose
	// cyclomatic complexity reaches it. Applies to Go sources only.
	// Default: 10.
	ComplexityThreshold int
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{Workers: 4, ComplexityThreshold: 10}
}

// Stats aggregates run-level coverage figures.
type Stats struct {
	CoveragePercent  float64 `json:"coverage_percent"`
	FilesAnalyzed    int     `json:"files_analyzed"`
	FilesWithGaps    int     `json:"files_with_gaps"`
	TotalSuggestions int     `json:"total_suggestions"`
}

// Result is the pipeline's complete output: suggestions sorted by
// tier, then file path, then start line, plus the warnings collected
// along the way. Callers filter and limit this as a view; the
// pipeline never re-runs for presentation concerns.
type Result struct {
	Suggestions []Suggestion `json:"suggestions"`
	Warnings    []string     `json:"warnings"`
	Stats       Stats        `json:"stats"`
}

type fileResult struct {
	path        string
	suggestions []Suggestion
	warning     string
}

// Analyze runs the full pipeline over every file in the report. A
// single file's failure degrades to a warning; only context
// cancellation aborts the run.
func Analyze(ctx context.Context, report *coverage.Report, opts Options) (*Result, error) {
	if opts.ComplexityThreshold <= 0 {
		opts.ComplexityThreshold = 10
	}

	paths := report.SortedPaths()
	results := make([]fileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	} else {
		g.SetLimit(1)
	}

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = analyzeFile(gctx, path, report.Files[path], opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Stats: Stats{
			CoveragePercent: report.Percent(),
			FilesAnalyzed:   len(paths),
		},
	}
	for _, fr := range results {
		if fr.warning != "" {
			res.Warnings = append(res.Warnings, fr.warning)
		}
		if len(fr.suggestions) > 0 {
			res.Stats.FilesWithGaps++
			res.Suggestions = append(res.Suggestions, fr.suggestions...)
		}
	}
	res.Stats.TotalSuggestions = len(res.Suggestions)

	sort.Slice(res.Suggestions, func(i, j int) bool {
		a, b := res.Suggestions[i], res.Suggestions[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if a.SourceFile != b.SourceFile {
			return a.SourceFile < b.SourceFile
		}
		return a.StartLine < b.StartLine
	})
	sort.Strings(res.Warnings)

	return res, nil
}

// analyzeFile runs index, correlate, classify, synthesize for one
// file. Failures are reported through the warning field, never as
// errors.
func analyzeFile(ctx context.Context, path string, fc *coverage.FileCoverage, opts Options) fileResult {
	fr := fileResult{path: path}
	if len(fc.Missed) == 0 {
		return fr
	}

	resolved := path
	if opts.SourceRoot != "" && !filepath.IsAbs(path) {
		resolved = filepath.Join(opts.SourceRoot, path)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			fr.warning = fmt.Sprintf("Source file not found: %s", resolved)
		} else {
			fr.warning = fmt.Sprintf("Source file unreadable: %s: %v", resolved, err)
		}
		return fr
	}

	var ix *syntax.Index
	if opts.Cache != nil {
		ix, _ = opts.Cache.get(resolved, info)
	}

	source, err := os.ReadFile(resolved)
	if err != nil {
		fr.warning = fmt.Sprintf("Source file unreadable: %s: %v", resolved, err)
		return fr
	}

	if ix == nil {
		ix, err = syntax.Build(ctx, resolved, source)
		if err != nil {
			fr.warning = err.Error()
			return fr
		}
		if opts.Cache != nil {
			opts.Cache.put(resolved, info, ix)
		}
	}

	lines := strings.Split(string(source), "\n")
	complexities := functionComplexity(ix, resolved)

	syn := newSynthesizer(path, ix.Lang)
	for _, c := range correlate(ix, fc) {
		snippet := snippetFor(lines, c.start, c.end)
		complex := complexities[c.block] >= opts.ComplexityThreshold
		tier := tierFor(c, snippet, complex)
		fr.suggestions = append(fr.suggestions, syn.suggestion(c, tier, snippet))
	}
	return fr
}

// functionComplexity maps function blocks of a Go file to their
// cyclomatic complexity. Non-Go files yield nil; the priority stage
// then sees zero for every block and never escalates on complexity.
func functionComplexity(ix *syntax.Index, path string) map[*syntax.Block]int {
	if ix.Lang != syntax.LangGo {
		return nil
	}

	stats := gocyclo.Analyze([]string{path}, nil)
	if len(stats) == 0 {
		return nil
	}
	byLine := make(map[int]int, len(stats))
	for _, s := range stats {
		byLine[s.Pos.Line] = s.Complexity
	}

	out := make(map[*syntax.Block]int)
	for _, blk := range ix.Blocks() {
		if blk.Kind != syntax.KindFunction {
			continue
		}
		for line := blk.StartLine; line <= blk.EndLine; line++ {
			if c, ok := byLine[line]; ok {
				out[blk] = c
				break
			}
		}
	}
	return out
}

// snippetFor returns the source text of an inclusive line range,
// clamped to the file.
func snippetFor(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
