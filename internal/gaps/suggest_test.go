package gaps

import (
	"strings"
	"testing"

	"github.com/mcp-tool-shop/code-covered/internal/syntax"
)

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Validator", "validator"},
		{"CamelCase", "camel_case"},
		{"HTTPServer", "http_server"},
		{"myFunc", "my_func"},
		{"already_snake", "already_snake"},
		{"parse2JSON", "parse2_json"},
	}
	for _, tt := range tests {
		if got := toSnakeCase(tt.input); got != tt.want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTestName_Python(t *testing.T) {
	tests := []struct {
		name  string
		block *syntax.Block
		want  string
	}{
		{
			"method raise",
			&syntax.Block{Kind: syntax.KindRaise, Class: "Validator", Function: "validate"},
			"test_validator_validate_raises_error",
		},
		{
			"branch taken",
			&syntax.Block{Kind: syntax.KindBranch, Function: "check", Header: "value is None"},
			"test_check_when_condition_true",
		},
		{
			"else branch",
			&syntax.Block{Kind: syntax.KindBranch, Function: "check", Header: "else"},
			"test_check_when_condition_false",
		},
		{
			"negated branch",
			&syntax.Block{Kind: syntax.KindBranch, Function: "check", Header: "not (ready)"},
			"test_check_when_condition_false",
		},
		{
			"while loop",
			&syntax.Block{Kind: syntax.KindLoop, Function: "drain", Header: "while queue"},
			"test_drain_loops_until_done",
		},
		{
			"for loop",
			&syntax.Block{Kind: syntax.KindLoop, Function: "walk", Header: "item in items"},
			"test_walk_iterates_items",
		},
		{
			"module level falls back to file stem",
			&syntax.Block{Kind: syntax.KindModuleLevel},
			"test_helpers_module_level",
		},
		{
			"handler",
			&syntax.Block{Kind: syntax.KindHandler, Function: "reader", Header: "OSError"},
			"test_reader_handles_exception",
		},
	}

	syn := newSynthesizer("src/helpers.py", syntax.LangPython)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := syn.testName(&candidate{block: tt.block})
			if got != tt.want {
				t.Errorf("testName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTestName_Truncation(t *testing.T) {
	syn := newSynthesizer("src/helpers.py", syntax.LangPython)
	blk := &syntax.Block{
		Kind:     syntax.KindRaise,
		Class:    "ExtraordinarilyVerboseConfigurationManager",
		Function: "reconcile_distributed_snapshot_checkpoints",
	}
	got := syn.testName(&candidate{block: blk})
	if len(got) > maxTestNameLen {
		t.Errorf("name length %d exceeds %d: %q", len(got), maxTestNameLen, got)
	}
	if strings.HasSuffix(got, "_") {
		t.Errorf("truncated name should not end in underscore: %q", got)
	}
	if !strings.HasPrefix(got, "test_") {
		t.Errorf("name should keep the test_ prefix: %q", got)
	}
}

func TestTestName_Go(t *testing.T) {
	syn := newSynthesizer("demo/classify.go", syntax.LangGo)
	blk := &syntax.Block{Kind: syntax.KindBranch, Function: "Classify", Header: "n > 10"}
	got := syn.testName(&candidate{block: blk})
	if got != "TestClassifyWhenConditionTrue" {
		t.Errorf("testName = %q, want TestClassifyWhenConditionTrue", got)
	}
}

func TestUniqueName(t *testing.T) {
	syn := newSynthesizer("src/helpers.py", syntax.LangPython)
	first := syn.uniqueName("test_parse_raises_error")
	second := syn.uniqueName("test_parse_raises_error")
	third := syn.uniqueName("test_parse_raises_error")

	if first != "test_parse_raises_error" {
		t.Errorf("first = %q", first)
	}
	if second != "test_parse_raises_error_2" || third != "test_parse_raises_error_3" {
		t.Errorf("collisions = %q, %q; want _2 and _3 suffixes", second, third)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		cand *candidate
		want string
	}{
		{
			"method with condition",
			&candidate{
				block: &syntax.Block{Kind: syntax.KindBranch, Class: "Validator", Function: "validate", Header: "value is None"},
				start: 9, end: 10,
			},
			"In Validator.validate() lines 9-10 - value is None",
		},
		{
			"bare function",
			&candidate{
				block: &syntax.Block{Kind: syntax.KindFunction, Function: "helper", Header: "def helper():"},
				start: 14, end: 19,
			},
			"In helper() lines 14-19",
		},
		{
			"module level",
			&candidate{block: &syntax.Block{Kind: syntax.KindModuleLevel}, start: 4, end: 4},
			"lines 4-4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describe(tt.cand); got != tt.want {
				t.Errorf("describe = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTestFile(t *testing.T) {
	tests := []struct {
		path string
		lang syntax.Language
		want string
	}{
		{"src/validator.py", syntax.LangPython, "tests/test_validator.py"},
		{"lib/parser.py", syntax.LangPython, "tests/test_parser.py"},
		{"app/models.py", syntax.LangPython, "tests/test_models.py"},
		{"validator.py", syntax.LangPython, "tests/test_validator.py"},
		{"pkg/util/helpers.py", syntax.LangPython, "tests/test_util_helpers.py"},
		{"demo/classify.go", syntax.LangGo, "demo/classify_test.go"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			syn := newSynthesizer(tt.path, tt.lang)
			if got := syn.testFile(); got != tt.want {
				t.Errorf("testFile(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestRaisedType(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{`raise ValueError("bad")`, "ValueError"},
		{"raise errors.ConfigError", "errors.ConfigError"},
		{"raise", "Exception"},
		{"", "Exception"},
		{"raise  ", "Exception"},
	}
	for _, tt := range tests {
		if got := raisedType(tt.header); got != tt.want {
			t.Errorf("raisedType(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestTemplates(t *testing.T) {
	syn := newSynthesizer("src/validator.py", syntax.LangPython)

	t.Run("raise uses pytest.raises", func(t *testing.T) {
		c := &candidate{block: &syntax.Block{
			Kind: syntax.KindRaise, Class: "Validator", Function: "validate",
			Header: `raise ValueError("missing")`,
		}}
		got := syn.template("test_validator_validate_raises_error", c)
		for _, want := range []string{
			"def test_validator_validate_raises_error():",
			"pytest.raises(ValueError)",
			"instance = Validator()",
			"instance.validate()",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("template missing %q:\n%s", want, got)
			}
		}
	})

	t.Run("handler names the exception", func(t *testing.T) {
		c := &candidate{block: &syntax.Block{
			Kind: syntax.KindHandler, Function: "reader", Header: "OSError",
		}}
		got := syn.template("test_reader_handles_exception", c)
		if !strings.Contains(got, "OSError is handled") {
			t.Errorf("handler template should mention OSError:\n%s", got)
		}
	})

	t.Run("branch restates the condition", func(t *testing.T) {
		c := &candidate{block: &syntax.Block{
			Kind: syntax.KindBranch, Function: "check", Header: "value is None",
		}}
		got := syn.template("test_check_when_condition_true", c)
		if !strings.Contains(got, "value is None") {
			t.Errorf("branch template should restate the condition:\n%s", got)
		}
	})

	t.Run("go template", func(t *testing.T) {
		goSyn := newSynthesizer("demo/classify.go", syntax.LangGo)
		c := &candidate{block: &syntax.Block{
			Kind: syntax.KindBranch, Function: "Classify", Header: "n > 10",
		}}
		got := goSyn.template("TestClassifyWhenConditionTrue", c)
		for _, want := range []string{
			"func TestClassifyWhenConditionTrue(t *testing.T) {",
			"Classify()",
			"t.Fatalf",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("template missing %q:\n%s", want, got)
			}
		}
	})
}

func TestSetupHints(t *testing.T) {
	tests := []struct {
		name    string
		snippet string
		want    []string
	}{
		{
			"http request",
			`resp = request.get(url)`,
			[]string{"Mock HTTP requests with responses or httpx"},
		},
		{
			"file open",
			`with open(path) as f:`,
			[]string{"Mock file operations with tmp_path fixture"},
		},
		{
			"async",
			`result = await fetch()`,
			[]string{"Use @pytest.mark.asyncio decorator"},
		},
		{
			"environment",
			`key = os.environ["KEY"]`,
			[]string{"Use monkeypatch.setenv() for env vars"},
		},
		{
			"multiple concerns keep rule order",
			"resp = request.get(url)\nnow = datetime.now()",
			[]string{
				"Mock HTTP requests with responses or httpx",
				"Use freezegun or mock datetime.now()",
			},
		},
		{"nothing interesting", `return a + b`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := setupHints(tt.snippet)
			if len(got) != len(tt.want) {
				t.Fatalf("setupHints = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("hint %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
