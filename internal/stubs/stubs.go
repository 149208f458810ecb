// Package stubs writes generated test-stub files from gap
// suggestions. Stubs are scaffolding for a human to finish, never
// runnable tests.
package stubs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcp-tool-shop/code-covered/internal/gaps"
)

// Options configures the stub-writing operation.
type Options struct {
	// TargetDir is the root directory suggested test-file paths are
	// written under. Defaults to the current working directory.
	TargetDir string

	// OutputPath, when set, writes every stub into this single file
	// instead of one file per suggested test path.
	OutputPath string

	// Force overwrites existing files when true.
	// When false, existing files are skipped.
	Force bool

	// Version is the version string embedded in the header comment.
	// Set by ldflags at build time. Defaults to "dev".
	Version string

	// Stdout is the writer for summary output.
	// Defaults to os.Stdout.
	Stdout io.Writer
}

// Result reports what the stub writer did.
type Result struct {
	// Created lists files that were written for the first time.
	Created []string

	// Skipped lists files that already existed and were not
	// overwritten (Force was false).
	Skipped []string

	// Overwritten lists files that existed and were replaced
	// (Force was true).
	Overwritten []string
}

func header(version string) string {
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("# generated by code-covered %s\n# Fill in the TODOs before running these tests.\n\n", version)
}

// Write renders the suggestions into stub files. With OutputPath set
// every stub lands in that one file; otherwise each suggestion's
// suggested test path is created under TargetDir, grouping
// suggestions that share a path.
//
// Existing files are skipped unless opts.Force is set. Write returns
// a Result summarizing what was created, skipped, or overwritten.
func Write(suggestions []gaps.Suggestion, opts Options) (*Result, error) {
	if opts.TargetDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		opts.TargetDir = cwd
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	result := &Result{}

	if opts.OutputPath != "" {
		if err := writeOne(opts.OutputPath, suggestions, opts, result); err != nil {
			return nil, err
		}
		summarize(opts.Stdout, result)
		return result, nil
	}

	for _, path := range testFiles(suggestions) {
		var group []gaps.Suggestion
		for _, s := range suggestions {
			if s.TestFile == path {
				group = append(group, s)
			}
		}
		outPath := filepath.Join(opts.TargetDir, filepath.FromSlash(path))
		if err := writeOne(outPath, group, opts, result); err != nil {
			return nil, err
		}
	}
	summarize(opts.Stdout, result)
	return result, nil
}

// testFiles returns the distinct suggested test paths in first-seen
// order, which follows the suggestions' priority ordering.
func testFiles(suggestions []gaps.Suggestion) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range suggestions {
		if !seen[s.TestFile] {
			seen[s.TestFile] = true
			out = append(out, s.TestFile)
		}
	}
	return out
}

func writeOne(path string, suggestions []gaps.Suggestion, opts Options, result *Result) error {
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if exists && !opts.Force {
		result.Skipped = append(result.Skipped, path)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}

	var b strings.Builder
	b.WriteString(header(opts.Version))
	for _, s := range suggestions {
		fmt.Fprintf(&b, "# %s\n", s.Description)
		fmt.Fprintf(&b, "# Priority: %s\n", s.Priority)
		if len(s.SetupHints) > 0 {
			fmt.Fprintf(&b, "# Hints: %s\n", strings.Join(s.SetupHints, ", "))
		}
		b.WriteString(s.CodeTemplate)
		b.WriteString("\n\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if exists {
		result.Overwritten = append(result.Overwritten, path)
	} else {
		result.Created = append(result.Created, path)
	}
	return nil
}

func summarize(w io.Writer, result *Result) {
	for _, p := range result.Created {
		fmt.Fprintf(w, "  created    %s\n", p)
	}
	for _, p := range result.Overwritten {
		fmt.Fprintf(w, "  overwrote  %s\n", p)
	}
	for _, p := range result.Skipped {
		fmt.Fprintf(w, "  skipped    %s (exists, use --force to overwrite)\n", p)
	}
}
