package syntax

import (
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
)

// Language identifies a supported source grammar.
type Language string

// Supported languages.
const (
	LangPython  Language = "python"
	LangGo      Language = "go"
	LangUnknown Language = ""
)

// Detect returns the language for a source path based on its
// extension, or LangUnknown for anything the indexer cannot parse.
func Detect(path string) Language {
	switch filepath.Ext(path) {
	case ".py", ".pyi":
		return LangPython
	case ".go":
		return LangGo
	default:
		return LangUnknown
	}
}

// grammar returns the tree-sitter language for a Language.
func grammar(lang Language) *sitter.Language {
	switch lang {
	case LangPython:
		return python.GetLanguage()
	case LangGo:
		return golang.GetLanguage()
	default:
		return nil
	}
}

// pythonKinds is the dispatch table mapping tree-sitter node types
// to block kinds for Python. Node types that need context (else
// clauses, decorated definitions, match statements) are handled
// explicitly in the walker rather than through this table.
var pythonKinds = map[string]Kind{
	"function_definition":      KindFunction,
	"if_statement":             KindBranch,
	"elif_clause":              KindBranch,
	"for_statement":            KindLoop,
	"while_statement":          KindLoop,
	"except_clause":            KindHandler,
	"finally_clause":           KindFinally,
	"with_statement":           KindContext,
	"case_clause":              KindPatternArm,
	"raise_statement":          KindRaise,
	"return_statement":         KindReturn,
	"lambda":                   KindLambda,
	"list_comprehension":       KindComprehension,
	"set_comprehension":        KindComprehension,
	"dictionary_comprehension": KindComprehension,
	"generator_expression":     KindComprehension,
}

// goKinds is the dispatch table for Go. Go has no exception
// handlers or loop-else clauses; switch/select cases map to
// pattern arms.
var goKinds = map[string]Kind{
	"function_declaration": KindFunction,
	"method_declaration":   KindFunction,
	"func_literal":         KindLambda,
	"if_statement":         KindBranch,
	"for_statement":        KindLoop,
	"expression_case":      KindPatternArm,
	"type_case":            KindPatternArm,
	"communication_case":   KindPatternArm,
	"default_case":         KindPatternArm,
	"return_statement":     KindReturn,
}

// kindTable returns the node-type dispatch table for a language.
func kindTable(lang Language) map[string]Kind {
	switch lang {
	case LangPython:
		return pythonKinds
	case LangGo:
		return goKinds
	default:
		return nil
	}
}
