// Package syntax parses source files with tree-sitter and builds an
// index of named, line-ranged syntactic blocks. The index is built
// once per file and never mutated afterwards; later pipeline stages
// only read from it.
package syntax

// Kind classifies a syntactic block. The set is closed: adding a
// construct means adding a constant here and a dispatch-table entry
// in the language tables, which keeps the change reviewable.
type Kind string

// Block kinds.
const (
	KindFunction      Kind = "function"
	KindBranch        Kind = "conditional_branch"
	KindLoop          Kind = "loop"
	KindLoopElse      Kind = "loop_else"
	KindHandler       Kind = "exception_handler"
	KindTryElse       Kind = "try_else"
	KindFinally       Kind = "try_finally"
	KindContext       Kind = "context_manager"
	KindPatternArm    Kind = "pattern_arm"
	KindModuleLevel   Kind = "module_level"
	KindComprehension Kind = "comprehension"
	KindLambda        Kind = "lambda"
	KindRaise         Kind = "raise_statement"
	KindReturn        Kind = "return_statement"
)

// Specificity returns a rank used to resolve overlapping candidates:
// when the same lines reach two classifications through different
// traversal paths, the higher rank wins. Handlers and raise
// statements beat branches, which beat loops, which beat generic
// function and module classification.
func (k Kind) Specificity() int {
	switch k {
	case KindHandler, KindRaise:
		return 5
	case KindBranch, KindPatternArm:
		return 4
	case KindLoopElse, KindTryElse, KindFinally:
		return 3
	case KindLoop, KindContext:
		return 2
	case KindReturn, KindComprehension, KindLambda:
		return 2
	case KindFunction:
		return 1
	default: // KindModuleLevel and anything unknown
		return 0
	}
}
