package gaps

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mcp-tool-shop/code-covered/internal/coverage"
)

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func parseReport(t *testing.T, body string) *coverage.Report {
	t.Helper()
	report, err := coverage.Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return report
}

func analyze(t *testing.T, dir string, report *coverage.Report) *Result {
	t.Helper()
	res, err := Analyze(context.Background(), report, Options{SourceRoot: dir, Workers: 2})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	return res
}

const checkSource = `import os
def check(value):
    raise ValueError("bad input")
    if value:
        return 1
    return 0
`

func TestAnalyze_RaiseThenBranch(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "f.py", checkSource)
	report := parseReport(t, `{"files": {"f.py": {
		"executed_lines": [1, 2, 4, 6], "missing_lines": [3, 5]}}}`)

	res := analyze(t, dir, report)

	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
	if len(res.Suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d: %+v", len(res.Suggestions), res.Suggestions)
	}

	raise := res.Suggestions[0]
	if raise.Priority != TierCritical || raise.BlockType != "raise_statement" {
		t.Errorf("first suggestion = %s %s, want critical raise_statement",
			raise.Priority, raise.BlockType)
	}
	if raise.StartLine != 3 || raise.EndLine != 3 {
		t.Errorf("raise range = %d-%d, want 3-3", raise.StartLine, raise.EndLine)
	}
	if raise.TestName != "test_check_raises_error" {
		t.Errorf("TestName = %q", raise.TestName)
	}
	if raise.TestFile != filepath.Join("tests", "test_f.py") {
		t.Errorf("TestFile = %q", raise.TestFile)
	}
	if raise.SourceFile != "f.py" {
		t.Errorf("SourceFile = %q, want the report's relative path", raise.SourceFile)
	}

	// The missed return on line 5 sits inside an uncovered branch body,
	// so it classifies as the branch, not as a return statement.
	branch := res.Suggestions[1]
	if branch.Priority != TierHigh || branch.BlockType != "conditional_branch" {
		t.Errorf("second suggestion = %s %s, want high conditional_branch",
			branch.Priority, branch.BlockType)
	}
	if branch.StartLine != 4 || branch.EndLine != 5 {
		t.Errorf("branch range = %d-%d, want 4-5", branch.StartLine, branch.EndLine)
	}
	if branch.TestName != "test_check_when_condition_true" {
		t.Errorf("TestName = %q", branch.TestName)
	}

	want := Stats{CoveragePercent: 66.7, FilesAnalyzed: 1, FilesWithGaps: 1, TotalSuggestions: 2}
	if res.Stats != want {
		t.Errorf("Stats = %+v, want %+v", res.Stats, want)
	}
}

func TestAnalyze_FullyMissedFunctionCollapses(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "transform.py", `def transform(data):
    out = []
    for item in data:
        if item:
            out.append(item)
        else:
            out.append(0)
    return out
`)
	report := parseReport(t, `{"files": {"transform.py": {
		"executed_lines": [], "missing_lines": [1, 2, 3, 4, 5, 6, 7, 8]}}}`)

	res := analyze(t, dir, report)

	if len(res.Suggestions) != 1 {
		t.Fatalf("expected a single collapsed suggestion, got %d: %+v",
			len(res.Suggestions), res.Suggestions)
	}
	s := res.Suggestions[0]
	if s.BlockType != "function" || s.Priority != TierMedium {
		t.Errorf("suggestion = %s %s, want medium function", s.Priority, s.BlockType)
	}
	if s.StartLine != 1 || s.EndLine != 8 {
		t.Errorf("range = %d-%d, want the whole function 1-8", s.StartLine, s.EndLine)
	}
	if s.TestName != "test_transform" {
		t.Errorf("TestName = %q", s.TestName)
	}
}

func TestAnalyze_FullCoverage(t *testing.T) {
	dir := t.TempDir()
	report := parseReport(t, `{"files": {"clean.py": {
		"executed_lines": [1, 2, 3], "missing_lines": []}}}`)

	// Fully covered files are never read; the source does not even
	// have to exist.
	res := analyze(t, dir, report)

	if len(res.Suggestions) != 0 || len(res.Warnings) != 0 {
		t.Errorf("expected no output, got %d suggestions, %v warnings",
			len(res.Suggestions), res.Warnings)
	}
	want := Stats{CoveragePercent: 100.0, FilesAnalyzed: 1}
	if res.Stats != want {
		t.Errorf("Stats = %+v, want %+v", res.Stats, want)
	}
}

func TestAnalyze_MissingSourceWarns(t *testing.T) {
	dir := t.TempDir()
	report := parseReport(t, `{"files": {"ghost.py": {
		"executed_lines": [1], "missing_lines": [2]}}}`)

	res := analyze(t, dir, report)

	if len(res.Suggestions) != 0 {
		t.Errorf("unexpected suggestions: %+v", res.Suggestions)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", res.Warnings)
	}
	w := res.Warnings[0]
	if !strings.HasPrefix(w, "Source file not found:") || !strings.Contains(w, "ghost.py") {
		t.Errorf("warning = %q", w)
	}
}

func TestAnalyze_ParseFailureDegradesToWarning(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "broken.py", "def broken(:\n    pass\n")
	writeSource(t, dir, "f.py", checkSource)
	report := parseReport(t, `{"files": {
		"broken.py": {"executed_lines": [], "missing_lines": [1, 2]},
		"f.py": {"executed_lines": [1, 2, 4, 6], "missing_lines": [3, 5]}}}`)

	res := analyze(t, dir, report)

	if len(res.Warnings) != 1 {
		t.Fatalf("expected exactly 1 warning, got %v", res.Warnings)
	}
	if !strings.Contains(res.Warnings[0], "broken.py") {
		t.Errorf("warning should name the failing file: %q", res.Warnings[0])
	}
	if len(res.Suggestions) != 2 {
		t.Errorf("the healthy file should still produce suggestions, got %d",
			len(res.Suggestions))
	}
	if res.Stats.FilesAnalyzed != 2 || res.Stats.FilesWithGaps != 1 {
		t.Errorf("Stats = %+v", res.Stats)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "f.py", checkSource)
	writeSource(t, dir, "g.py", checkSource)
	writeSource(t, dir, "h.py", checkSource)
	report := parseReport(t, `{"files": {
		"f.py": {"executed_lines": [1, 2, 4, 6], "missing_lines": [3, 5]},
		"g.py": {"executed_lines": [1, 2, 4, 6], "missing_lines": [3, 5]},
		"h.py": {"executed_lines": [1, 2, 4, 6], "missing_lines": [3, 5]}}}`)

	var outputs [][]byte
	for _, workers := range []int{1, 8} {
		res, err := Analyze(context.Background(), report, Options{SourceRoot: dir, Workers: workers})
		if err != nil {
			t.Fatal(err)
		}
		raw, err := json.Marshal(res)
		if err != nil {
			t.Fatal(err)
		}
		outputs = append(outputs, raw)
	}
	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("output differs across worker counts")
	}
}

func TestAnalyze_SecurityTermEscalates(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "auth.py", `def login(user, password):
    if password == "":
        return None
    return user
`)
	report := parseReport(t, `{"files": {"auth.py": {
		"executed_lines": [1, 2, 4], "missing_lines": [3]}}}`)

	res := analyze(t, dir, report)

	if len(res.Suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(res.Suggestions))
	}
	s := res.Suggestions[0]
	if s.BlockType != "conditional_branch" {
		t.Errorf("BlockType = %q", s.BlockType)
	}
	if s.Priority != TierCritical {
		t.Errorf("Priority = %s, want critical (security term in snippet)", s.Priority)
	}
}

func TestAnalyze_HandlerInsideBranch(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "load.py", `def load(path):
    if path:
        try:
            f = open(path)
        except OSError:
            return None
    return path
`)
	report := parseReport(t, `{"files": {"load.py": {
		"executed_lines": [1, 2, 3, 4, 7], "missing_lines": [5, 6]}}}`)

	res := analyze(t, dir, report)

	// Both missed lines belong to the handler; they classify as the
	// handler, not the enclosing branch, and merge into one candidate
	// spanning the handler's range.
	if len(res.Suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d: %+v", len(res.Suggestions), res.Suggestions)
	}
	s := res.Suggestions[0]
	if s.BlockType != "exception_handler" || s.Priority != TierCritical {
		t.Errorf("suggestion = %s %s, want critical exception_handler", s.Priority, s.BlockType)
	}
	if s.StartLine != 5 || s.EndLine != 6 {
		t.Errorf("range = %d-%d, want 5-6", s.StartLine, s.EndLine)
	}
	if s.TestName != "test_load_handles_exception" {
		t.Errorf("TestName = %q", s.TestName)
	}
}

func TestAnalyze_ModuleLevelRuns(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "mod.py", `import os
import sys

CONST = 1
OTHER = 2
`)
	report := parseReport(t, `{"files": {"mod.py": {
		"executed_lines": [], "missing_lines": [1, 2, 4, 5]}}}`)

	res := analyze(t, dir, report)

	if len(res.Suggestions) != 2 {
		t.Fatalf("expected one suggestion per consecutive run, got %d: %+v",
			len(res.Suggestions), res.Suggestions)
	}
	first, second := res.Suggestions[0], res.Suggestions[1]
	if first.StartLine != 1 || first.EndLine != 2 {
		t.Errorf("first run = %d-%d, want 1-2", first.StartLine, first.EndLine)
	}
	if second.StartLine != 4 || second.EndLine != 5 {
		t.Errorf("second run = %d-%d, want 4-5", second.StartLine, second.EndLine)
	}
	if first.Priority != TierLow || second.Priority != TierLow {
		t.Error("module-level code should be low priority")
	}
	if first.TestName != "test_mod_module_level" || second.TestName != "test_mod_module_level_2" {
		t.Errorf("names = %q, %q", first.TestName, second.TestName)
	}
}

func TestAnalyze_NameCollisionsGetSuffixes(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "parse.py", `def parse(x):
    if x < 0:
        raise ValueError("neg")
    if x > 100:
        raise ValueError("big")
    return x
`)
	report := parseReport(t, `{"files": {"parse.py": {
		"executed_lines": [1, 2, 4, 6], "missing_lines": [3, 5]}}}`)

	res := analyze(t, dir, report)

	if len(res.Suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(res.Suggestions))
	}
	// Both misses are raise statements inside their branches; the raise
	// outranks the branch in classification.
	for i, s := range res.Suggestions {
		if s.BlockType != "raise_statement" || s.Priority != TierCritical {
			t.Errorf("suggestion %d = %s %s", i, s.Priority, s.BlockType)
		}
	}
	if res.Suggestions[0].TestName != "test_parse_raises_error" ||
		res.Suggestions[1].TestName != "test_parse_raises_error_2" {
		t.Errorf("names = %q, %q",
			res.Suggestions[0].TestName, res.Suggestions[1].TestName)
	}
}

const gradeSource = `package demo

func Grade(n int) string {
	if n > 90 {
		return "a"
	}
	if n > 80 {
		return "b"
	}
	if n > 70 {
		return "c"
	}
	return "f"
}
`

func TestAnalyze_GoComplexityEscalates(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "grade.go", gradeSource)
	body := `{"files": {"grade.go": {
		"executed_lines": [],
		"missing_lines": [3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13]}}}`

	// Below the threshold the entirely-missed function stays medium.
	res, err := Analyze(context.Background(), parseReport(t, body), Options{SourceRoot: dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d: %+v", len(res.Suggestions), res.Suggestions)
	}
	if res.Suggestions[0].Priority != TierMedium {
		t.Errorf("Priority = %s, want medium below threshold", res.Suggestions[0].Priority)
	}

	// Grade has cyclomatic complexity 4; a threshold of 2 escalates it.
	res, err = Analyze(context.Background(), parseReport(t, body),
		Options{SourceRoot: dir, ComplexityThreshold: 2})
	if err != nil {
		t.Fatal(err)
	}
	s := res.Suggestions[0]
	if s.Priority != TierHigh {
		t.Errorf("Priority = %s, want high above threshold", s.Priority)
	}
	if s.TestName != "TestGrade" {
		t.Errorf("TestName = %q, want TestGrade", s.TestName)
	}
	if s.TestFile != "grade_test.go" {
		t.Errorf("TestFile = %q, want grade_test.go", s.TestFile)
	}
}

func TestAnalyze_CacheReuseAndInvalidation(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "c.py", "def check(value):\n    raise ValueError(\"bad\")\n")
	report := parseReport(t, `{"files": {"c.py": {
		"executed_lines": [1], "missing_lines": [2]}}}`)

	cache := NewIndexCache()
	opts := Options{SourceRoot: dir, Cache: cache}

	res, err := Analyze(context.Background(), report, opts)
	if err != nil {
		t.Fatal(err)
	}
	if cache.Len() != 1 {
		t.Fatalf("cache Len = %d, want 1", cache.Len())
	}
	if res.Suggestions[0].BlockType != "raise_statement" {
		t.Fatalf("BlockType = %q", res.Suggestions[0].BlockType)
	}

	// Same signature: the cached index is reused and output is stable.
	again, err := Analyze(context.Background(), report, opts)
	if err != nil {
		t.Fatal(err)
	}
	if again.Suggestions[0].TestName != res.Suggestions[0].TestName {
		t.Error("cached run should match the first run")
	}

	// Rewriting the file with a new mtime invalidates the entry; the
	// fresh parse sees the new structure.
	writeSource(t, dir, "c.py", "def check(value):\n    return value\n")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(filepath.Join(dir, "c.py"), future, future); err != nil {
		t.Fatal(err)
	}

	res, err = Analyze(context.Background(), report, opts)
	if err != nil {
		t.Fatal(err)
	}
	if cache.Len() != 1 {
		t.Errorf("cache Len = %d, want 1 (entry replaced, not added)", cache.Len())
	}
	if got := res.Suggestions[0].BlockType; got != "return_statement" {
		t.Errorf("BlockType = %q, want return_statement after rewrite", got)
	}
}
