package gaps

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mcp-tool-shop/code-covered/internal/syntax"
)

// Suggestion is the user-facing unit of output: a named, described,
// templated, prioritized recommendation for a test to write.
type Suggestion struct {
	TestName     string   `json:"test_name"`
	TestFile     string   `json:"test_file"`
	SourceFile   string   `json:"source_file"`
	Description  string   `json:"description"`
	StartLine    int      `json:"start_line"`
	EndLine      int      `json:"end_line"`
	Priority     Tier     `json:"priority"`
	CodeTemplate string   `json:"code_template"`
	SetupHints   []string `json:"setup_hints"`
	BlockType    string   `json:"block_type"`
}

// maxTestNameLen bounds generated identifiers. Deep scope paths are
// truncated rather than rejected.
const maxTestNameLen = 64

// synthesizer turns candidates into suggestions for one file. It is
// stateful only for name uniqueness: colliding names within a file
// get a numeric suffix.
type synthesizer struct {
	path string
	lang syntax.Language
	used map[string]int
}

func newSynthesizer(path string, lang syntax.Language) *synthesizer {
	return &synthesizer{path: path, lang: lang, used: make(map[string]int)}
}

func (s *synthesizer) suggestion(c *candidate, tier Tier, snippet string) Suggestion {
	name := s.uniqueName(s.testName(c))
	return Suggestion{
		TestName:     name,
		TestFile:     s.testFile(),
		SourceFile:   s.path,
		Description:  describe(c),
		StartLine:    c.start,
		EndLine:      c.end,
		Priority:     tier,
		CodeTemplate: s.template(name, c),
		SetupHints:   setupHints(snippet),
		BlockType:    string(c.block.Kind),
	}
}

// kindSuffixes names the situation a test should exercise. Branches
// and loops refine the suffix from the header text instead.
var kindSuffixes = map[syntax.Kind]string{
	syntax.KindHandler:       "handles_exception",
	syntax.KindRaise:         "raises_error",
	syntax.KindReturn:        "returns_early",
	syntax.KindPatternArm:    "matches_case",
	syntax.KindLoopElse:      "completes_loop",
	syntax.KindTryElse:       "succeeds_without_error",
	syntax.KindFinally:       "runs_cleanup",
	syntax.KindContext:       "manages_context",
	syntax.KindComprehension: "builds_collection",
	syntax.KindLambda:        "evaluates_lambda",
	syntax.KindModuleLevel:   "module_level",
}

func suffixFor(blk *syntax.Block) string {
	switch blk.Kind {
	case syntax.KindBranch:
		if strings.HasPrefix(blk.Header, "not (") || blk.Header == "else" {
			return "when_condition_false"
		}
		return "when_condition_true"
	case syntax.KindLoop:
		if strings.HasPrefix(blk.Header, "while") {
			return "loops_until_done"
		}
		return "iterates_items"
	}
	return kindSuffixes[blk.Kind]
}

// testName builds `test_<class>_<function>_<situation>`, falling back
// to the file stem when the candidate has no enclosing scope.
func (s *synthesizer) testName(c *candidate) string {
	parts := []string{"test"}
	if c.block.Class != "" {
		parts = append(parts, toSnakeCase(c.block.Class))
	}
	if c.block.Function != "" {
		parts = append(parts, toSnakeCase(c.block.Function))
	} else if c.block.Class == "" {
		parts = append(parts, toSnakeCase(fileStem(s.path)))
	}
	if suffix := suffixFor(c.block); suffix != "" {
		parts = append(parts, suffix)
	}

	name := strings.Join(parts, "_")
	if len(name) > maxTestNameLen {
		name = strings.TrimRight(name[:maxTestNameLen], "_")
	}
	if s.lang == syntax.LangGo {
		return goTestName(name)
	}
	return name
}

// uniqueName appends a numeric suffix on collision so every
// suggestion in a file names a distinct test.
func (s *synthesizer) uniqueName(name string) string {
	s.used[name]++
	if n := s.used[name]; n > 1 {
		return fmt.Sprintf("%s_%d", name, n)
	}
	return name
}

// describe produces the one-line summary: scope, line range, and the
// triggering condition when the block has one.
func describe(c *candidate) string {
	var parts []string
	if c.block.Function != "" {
		if c.block.Class != "" {
			parts = append(parts, fmt.Sprintf("In %s.%s()", c.block.Class, c.block.Function))
		} else {
			parts = append(parts, fmt.Sprintf("In %s()", c.block.Function))
		}
	}
	parts = append(parts, fmt.Sprintf("lines %d-%d", c.start, c.end))
	if c.block.Header != "" && c.block.Kind != syntax.KindFunction {
		parts = append(parts, "- "+c.block.Header)
	}
	return strings.Join(parts, " ")
}

// testFile suggests where the generated test belongs. Paths keep the
// immediate parent directory in the name so same-named modules in
// different packages do not collide.
func (s *synthesizer) testFile() string {
	stem := fileStem(s.path)
	if s.lang == syntax.LangGo {
		return filepath.Join(filepath.Dir(s.path), stem+"_test.go")
	}

	parent := filepath.Base(filepath.Dir(s.path))
	switch parent {
	case "src", "lib", "app", ".", "/", "":
		return filepath.Join("tests", "test_"+stem+".py")
	}
	return filepath.Join("tests", "test_"+parent+"_"+stem+".py")
}

// template renders the arrange/act/assert stub for the candidate.
// The output is placeholder scaffolding, not runnable code.
func (s *synthesizer) template(name string, c *candidate) string {
	if s.lang == syntax.LangGo {
		return goTemplate(name, c)
	}
	switch c.block.Kind {
	case syntax.KindHandler:
		return pyHandlerTemplate(name, c)
	case syntax.KindRaise:
		return pyRaiseTemplate(name, c)
	case syntax.KindBranch, syntax.KindPatternArm:
		return pyBranchTemplate(name, c)
	}
	return pyGenericTemplate(name, c)
}

func targetCall(c *candidate) (receiver, call string) {
	fn := c.block.Function
	if fn == "" {
		fn = "function_under_test"
	}
	if c.block.Class != "" {
		return c.block.Class, "instance." + fn
	}
	return "", fn
}

func pyHandlerTemplate(name string, c *candidate) string {
	exc := c.block.Header
	if exc == "" {
		exc = "Exception"
	}
	cls, call := targetCall(c)
	var b strings.Builder
	fmt.Fprintf(&b, "def %s():\n", name)
	fmt.Fprintf(&b, "    \"\"\"Test that %s is handled.\"\"\"\n", exc)
	if cls != "" {
		fmt.Fprintf(&b, "    instance = %s()  # TODO: Add constructor args\n", cls)
	}
	fmt.Fprintf(&b, "\n    # Arrange: Set up conditions to trigger %s\n", exc)
	fmt.Fprintf(&b, "    # TODO: Mock dependencies to raise %s\n", exc)
	fmt.Fprintf(&b, "\n    # Act\n    result = %s()  # TODO: Add args\n", call)
	b.WriteString("\n    # Assert: Verify exception was handled correctly\n    # TODO: Add assertions\n")
	return b.String()
}

func pyRaiseTemplate(name string, c *candidate) string {
	exc := raisedType(c.block.Header)
	cls, call := targetCall(c)
	var b strings.Builder
	fmt.Fprintf(&b, "def %s():\n", name)
	fmt.Fprintf(&b, "    \"\"\"Test that %s is raised.\"\"\"\n", exc)
	b.WriteString("    import pytest\n")
	if cls != "" {
		fmt.Fprintf(&b, "    instance = %s()  # TODO: Add constructor args\n", cls)
	}
	b.WriteString("\n    # Arrange: Set up invalid inputs\n")
	b.WriteString("    # TODO: Determine what inputs trigger the error\n")
	fmt.Fprintf(&b, "\n    # Act & Assert\n    with pytest.raises(%s):\n", exc)
	fmt.Fprintf(&b, "        %s()  # TODO: Add args that trigger error\n", call)
	return b.String()
}

func pyBranchTemplate(name string, c *candidate) string {
	cond := c.block.Header
	if cond == "" {
		cond = "the condition"
	}
	cls, call := targetCall(c)
	var b strings.Builder
	fmt.Fprintf(&b, "def %s():\n", name)
	fmt.Fprintf(&b, "    \"\"\"Test behavior when %s.\"\"\"\n", cond)
	if cls != "" {
		fmt.Fprintf(&b, "    instance = %s()  # TODO: Add constructor args\n", cls)
	}
	fmt.Fprintf(&b, "\n    # Arrange: Set up inputs so that %s\n", cond)
	b.WriteString("    # TODO: Determine inputs that satisfy this condition\n")
	fmt.Fprintf(&b, "\n    # Act\n    result = %s()  # TODO: Add args\n", call)
	fmt.Fprintf(&b, "\n    # Assert\n    # TODO: Verify behavior when %s\n", cond)
	return b.String()
}

func pyGenericTemplate(name string, c *candidate) string {
	cls, call := targetCall(c)
	var b strings.Builder
	fmt.Fprintf(&b, "def %s():\n", name)
	fmt.Fprintf(&b, "    \"\"\"Test lines %d-%d.\"\"\"\n", c.start, c.end)
	if cls != "" {
		fmt.Fprintf(&b, "    instance = %s()  # TODO: Add constructor args\n", cls)
	}
	b.WriteString("\n    # Arrange\n    # TODO: Set up test data\n")
	fmt.Fprintf(&b, "\n    # Act\n    result = %s()  # TODO: Add args\n", call)
	b.WriteString("\n    # Assert\n    # TODO: Add assertions\n")
	return b.String()
}

func goTemplate(name string, c *candidate) string {
	fn := c.block.Function
	if fn == "" {
		fn = "FunctionUnderTest"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "func %s(t *testing.T) {\n", name)
	b.WriteString("\t// Arrange\n\t// TODO: Set up test data\n")
	fmt.Fprintf(&b, "\n\t// Act\n\tgot, err := %s() // TODO: Add args\n", fn)
	b.WriteString("\tif err != nil {\n\t\tt.Fatalf(\"unexpected error: %v\", err)\n\t}\n")
	b.WriteString("\n\t// Assert\n\t_ = got // TODO: Add assertions\n}\n")
	return b.String()
}

// raisedType extracts the exception type from a raise statement
// header, e.g. "raise ValueError(msg)" yields "ValueError".
func raisedType(header string) string {
	rest, ok := strings.CutPrefix(header, "raise ")
	if !ok {
		return "Exception"
	}
	if i := strings.IndexByte(rest, '('); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "Exception"
	}
	return rest
}

var (
	camelBoundary1 = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	camelBoundary2 = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// toSnakeCase converts CamelCase identifiers to snake_case.
func toSnakeCase(name string) string {
	s := camelBoundary1.ReplaceAllString(name, "${1}_${2}")
	return strings.ToLower(camelBoundary2.ReplaceAllString(s, "${1}_${2}"))
}

// goTestName converts a snake_case name into an exported Go test
// identifier, e.g. "test_validate_when_condition_true" becomes
// "TestValidateWhenConditionTrue".
func goTestName(name string) string {
	parts := strings.Split(name, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return b.String()
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
