package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mcp-tool-shop/code-covered/internal/config"
	"github.com/mcp-tool-shop/code-covered/internal/coverage"
	"github.com/mcp-tool-shop/code-covered/internal/gaps"
	"github.com/mcp-tool-shop/code-covered/internal/report"
	"github.com/mcp-tool-shop/code-covered/internal/stubs"
	"github.com/mcp-tool-shop/code-covered/internal/tool"
)

// logger is the application-wide structured logger (writes to stderr).
var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: false,
})

// Set by build flags.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "code-covered",
		Short: "code-covered - find the tests your coverage report says are missing",
		Long: `code-covered reads a coverage report, maps every missed line onto
the structure of its source file, and suggests the specific tests
that would close each gap, ranked by how risky the uncovered code is.`,
		Version: version,
	}

	root.AddCommand(newGapsCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newSchemaCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// gapsParams holds the parsed flags for the gaps command.
type gapsParams struct {
	coveragePath string
	configPath   string
	sourceRoot   string
	format       string
	priority     string
	limit        int
	failOn       string
	output       string
	force        bool
	workers      int
	interactive  bool
	stdout       io.Writer
	stderr       io.Writer
}

// runGaps is the extracted, testable body of the gaps command.
func runGaps(p gapsParams) error {
	cfg, err := config.Load(p.configPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, &p)

	if p.format != "text" && p.format != "json" {
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", p.format)
	}

	var filter gaps.Tier
	if p.priority != "" {
		filter, err = gaps.ParseTier(p.priority)
		if err != nil {
			return err
		}
	}
	if p.failOn != "none" && p.failOn != "any" {
		if _, err := gaps.ParseTier(p.failOn); err != nil {
			return fmt.Errorf("invalid --fail-on value %q: must be 'none', 'any', or a tier", p.failOn)
		}
	}

	logger.Info("parsing coverage report", "path", p.coveragePath)
	rpt, err := coverage.ParseFile(p.coveragePath)
	if err != nil {
		return err
	}

	opts := gaps.DefaultOptions()
	opts.SourceRoot = p.sourceRoot
	opts.Workers = p.workers
	opts.ComplexityThreshold = cfg.Analysis.ComplexityThreshold
	res, err := gaps.Analyze(context.Background(), rpt, opts)
	if err != nil {
		return err
	}

	logger.Info("analysis complete",
		"files", res.Stats.FilesAnalyzed,
		"gaps", res.Stats.TotalSuggestions,
		"warnings", len(res.Warnings))

	filtered := res.Suggestions
	if filter != "" {
		kept := filtered[:0:0]
		for _, s := range filtered {
			if s.Priority.AtLeast(filter) {
				kept = append(kept, s)
			}
		}
		filtered = kept
	}

	// The display limit never affects gating; the threshold check
	// below sees the full filtered set.
	display := filtered
	if p.limit > 0 && len(display) > p.limit {
		display = display[:p.limit]
	}

	view := &gaps.Result{Suggestions: display, Warnings: res.Warnings, Stats: res.Stats}

	if p.output != "" {
		result, err := stubs.Write(display, stubs.Options{
			OutputPath: p.output,
			Force:      p.force,
			Version:    version,
			Stdout:     p.stderr,
		})
		if err != nil {
			return err
		}
		if len(result.Created)+len(result.Overwritten) > 0 {
			logger.Info("wrote test stubs", "path", p.output, "suggestions", len(display))
		}
	}

	if p.interactive {
		if err := runInteractiveGaps(view); err != nil {
			return err
		}
	} else {
		switch p.format {
		case "json":
			if err := report.WriteJSON(p.stdout, view); err != nil {
				return err
			}
		default:
			if err := report.WriteText(p.stdout, view); err != nil {
				return err
			}
		}
	}

	return checkGate(filtered, p.failOn)
}

// applyOverrides merges config-file defaults into unset flag values.
// Sentinels mark "flag not given": empty strings and -1.
func applyOverrides(cfg *config.Config, p *gapsParams) {
	if p.sourceRoot == "" {
		p.sourceRoot = cfg.Analysis.SourceRoot
	}
	if p.format == "" {
		p.format = cfg.Output.Format
	}
	if p.priority == "" {
		p.priority = cfg.Output.Priority
	}
	if p.limit < 0 {
		p.limit = cfg.Output.Limit
	}
	if p.failOn == "" {
		p.failOn = cfg.Gating.FailOn
	}
	if p.workers < 0 {
		p.workers = cfg.Analysis.Workers
	}
}

// checkGate returns an error when any suggestion meets the gating
// threshold, which cobra turns into a non-zero exit.
func checkGate(suggestions []gaps.Suggestion, failOn string) error {
	switch failOn {
	case "", "none":
		return nil
	case "any":
		if len(suggestions) > 0 {
			return fmt.Errorf("%d coverage gap(s) found (--fail-on=any)", len(suggestions))
		}
		return nil
	}

	threshold, err := gaps.ParseTier(failOn)
	if err != nil {
		return err
	}
	count := 0
	for _, s := range suggestions {
		if s.Priority.AtLeast(threshold) {
			count++
		}
	}
	if count > 0 {
		return fmt.Errorf("%d coverage gap(s) at or above %s severity", count, threshold)
	}
	return nil
}

func newGapsCmd() *cobra.Command {
	var (
		configPath  string
		sourceRoot  string
		format      string
		priority    string
		limit       int
		failOn      string
		output      string
		force       bool
		workers     int
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "gaps [coverage-file]",
		Short: "Suggest tests for uncovered code",
		Long: `Read a coverage report (coverage.json or a Go cover profile), map
missed lines onto source structure, and print prioritized test
suggestions for every gap.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGaps(gapsParams{
				coveragePath: args[0],
				configPath:   configPath,
				sourceRoot:   sourceRoot,
				format:       format,
				priority:     priority,
				limit:        limit,
				failOn:       failOn,
				output:       output,
				force:        force,
				workers:      workers,
				interactive:  interactive,
				stdout:       os.Stdout,
				stderr:       os.Stderr,
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "",
		"path to config file (default: .code-covered.yaml if present)")
	cmd.Flags().StringVar(&sourceRoot, "source-root", "",
		"root directory for resolving relative source paths")
	cmd.Flags().StringVar(&format, "format", "",
		"output format: text or json")
	cmd.Flags().StringVarP(&priority, "priority", "p", "",
		"only show suggestions at this tier or more severe")
	cmd.Flags().IntVarP(&limit, "limit", "n", -1,
		"maximum suggestions to display (0 = unlimited)")
	cmd.Flags().StringVar(&failOn, "fail-on", "",
		"exit non-zero when gaps at this severity exist: none, any, or a tier")
	cmd.Flags().StringVarP(&output, "output", "o", "",
		"write test stubs for the displayed suggestions to this file")
	cmd.Flags().BoolVar(&force, "force", false,
		"overwrite an existing stub file")
	cmd.Flags().IntVar(&workers, "workers", -1,
		"files analyzed in parallel")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false,
		"launch interactive TUI for browsing suggestions")

	return cmd
}

// serveParams holds the parsed flags for the serve command.
type serveParams struct {
	configPath string
	stdin      io.Reader
	stdout     io.Writer
}

// runServe is the extracted, testable body of the serve command. It
// reads one JSON request per line from stdin and writes one JSON
// response per line to stdout. The structural index cache is shared
// across requests.
func runServe(p serveParams) error {
	cfg, err := config.Load(p.configPath)
	if err != nil {
		return err
	}

	opts := gaps.DefaultOptions()
	opts.SourceRoot = cfg.Analysis.SourceRoot
	opts.Workers = cfg.Analysis.Workers
	opts.ComplexityThreshold = cfg.Analysis.ComplexityThreshold
	opts.Cache = gaps.NewIndexCache()
	handler := &tool.Handler{Pipeline: opts}

	enc := json.NewEncoder(p.stdout)
	scanner := bufio.NewScanner(p.stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := handler.Handle(context.Background(), line)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
	return scanner.Err()
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve gap analysis over line-delimited JSON",
		Long: `Read JSON requests from stdin, one per line, and write one JSON
response per line to stdout. Intended for editor and agent
integrations that embed code-covered as a tool backend.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Info("serving on stdin/stdout")
			return runServe(serveParams{
				configPath: configPath,
				stdin:      os.Stdin,
				stdout:     os.Stdout,
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "",
		"path to config file (default: .code-covered.yaml if present)")

	return cmd
}

func newSchemaCmd() *cobra.Command {
	var request bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for gap report output",
		Long: `Print the JSON Schema (Draft 2020-12) that documents the structure
of code-covered gaps --format=json output. With --request, print
the schema for serve requests instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema := report.Schema
			if request {
				schema = tool.RequestSchema
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), schema)
			return err
		},
	}

	cmd.Flags().BoolVar(&request, "request", false,
		"print the serve request schema instead of the report schema")

	return cmd
}
