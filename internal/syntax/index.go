package syntax

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// Block is a line-ranged syntactic unit. Blocks are immutable after
// Build returns; downstream stages reference them but never mutate.
type Block struct {
	// Kind classifies the construct.
	Kind Kind

	// Name is the declared name for function blocks, empty for
	// other kinds.
	Name string

	// Scope is the dotted name path of the block. For function
	// blocks it includes the function itself (e.g. "Validator.validate");
	// for other kinds it is the enclosing scope path.
	Scope string

	// Class is the innermost enclosing class name, if any.
	Class string

	// Function is the innermost enclosing function name. For a
	// function block this is its own name.
	Function string

	// StartLine and EndLine delimit the block, 1-based inclusive.
	// For decorated functions StartLine is the first decorator line.
	StartLine int
	EndLine   int

	// Header is the construct's header text: the condition for
	// branches, the exception type for handlers, the loop header
	// for loops, the signature line for functions.
	Header string

	// Children are the blocks nested inside this one, in document
	// order.
	Children []*Block
}

// Span is an inclusive line range.
type Span struct {
	Start int
	End   int
}

// Index is the per-file structural index: a tree of blocks rooted at
// a synthetic module-level block spanning the whole file.
type Index struct {
	// Path is the source path the index was built for.
	Path string

	// Lang is the grammar the file was parsed with.
	Lang Language

	// Root is the module-level block covering every line.
	Root *Block

	stringSpans []Span
	flat        []*Block
}

// ParseError reports a file that could not be turned into an index:
// unsupported language, undecodable or binary content, or a syntax
// error. It is never fatal to a run; the pipeline records it as a
// warning and skips the file.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %s: %s", e.Path, e.Reason)
}

// Build parses source and constructs the structural index. The
// returned index is complete and read-only; callers may share it
// across goroutines.
func Build(ctx context.Context, path string, source []byte) (*Index, error) {
	lang := Detect(path)
	if lang == LangUnknown {
		return nil, &ParseError{Path: path, Reason: "unsupported language"}
	}
	if bytes.IndexByte(source, 0) >= 0 {
		return nil, &ParseError{Path: path, Reason: "binary content"}
	}
	if !utf8.Valid(source) {
		return nil, &ParseError{Path: path, Reason: "not valid UTF-8"}
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammar(lang))
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}
	root := tree.RootNode()
	if root == nil {
		return nil, &ParseError{Path: path, Reason: "empty parse tree"}
	}
	if root.HasError() {
		return nil, &ParseError{Path: path, Reason: "syntax error"}
	}

	ix := &Index{
		Path: path,
		Lang: lang,
		Root: &Block{
			Kind:      KindModuleLevel,
			StartLine: 1,
			EndLine:   lineCount(source),
		},
	}

	b := &builder{src: source, kinds: kindTable(lang), index: ix}
	b.walk(root, ix.Root)

	sort.Slice(ix.flat, func(i, j int) bool {
		if ix.flat[i].StartLine != ix.flat[j].StartLine {
			return ix.flat[i].StartLine < ix.flat[j].StartLine
		}
		// Wider block first so parents precede children.
		return span(ix.flat[i]) > span(ix.flat[j])
	})

	return ix, nil
}

// Blocks returns every recorded block ordered by start line, parents
// before children on ties.
func (ix *Index) Blocks() []*Block {
	return ix.flat
}

// InnermostAt returns the innermost block whose range contains the
// line. Lines outside the file (stale coverage against newer source)
// resolve to the module-level root rather than failing.
func (ix *Index) InnermostAt(line int) *Block {
	path := ix.PathTo(line)
	return path[len(path)-1]
}

// PathTo returns the chain of blocks containing the line, from the
// module root down to the innermost block. The chain always has at
// least the root.
func (ix *Index) PathTo(line int) []*Block {
	path := []*Block{ix.Root}
	cur := ix.Root
	for {
		child := containingChild(cur.Children, line)
		if child == nil {
			return path
		}
		path = append(path, child)
		cur = child
	}
}

// StringSpanStart reports whether line falls strictly inside a
// multi-line string literal, and if so returns the span's first
// line. The correlator remaps such lines to the statement that
// opens the string so literal content never forms a block of its
// own.
func (ix *Index) StringSpanStart(line int) (int, bool) {
	for _, s := range ix.stringSpans {
		if line > s.Start && line <= s.End {
			return s.Start, true
		}
	}
	return 0, false
}

// containingChild binary-searches children (sorted by start line)
// for the latest-starting child whose range contains line.
func containingChild(children []*Block, line int) *Block {
	idx := sort.Search(len(children), func(i int) bool {
		return children[i].StartLine > line
	}) - 1
	for i := idx; i >= 0; i-- {
		if children[i].EndLine >= line {
			return children[i]
		}
		// Children are nested, not ordered by end line; an earlier
		// sibling may still contain the line.
	}
	return nil
}

func span(b *Block) int { return b.EndLine - b.StartLine }

// builder walks the parse tree and records blocks.
type builder struct {
	src   []byte
	kinds map[string]Kind
	index *Index

	scope []string // enclosing def/class name path
	class string   // innermost class name
	fn    string   // innermost function name
}

func (b *builder) walk(n *sitter.Node, parent *Block) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		b.visit(n.NamedChild(i), parent)
	}
}

func (b *builder) visit(n *sitter.Node, parent *Block) {
	switch n.Type() {
	case "decorated_definition":
		// Decorator lines belong to the decorated function, not to
		// the surrounding scope.
		if def := n.ChildByFieldName("definition"); def != nil {
			b.visitDefinition(def, parent, startLine(n))
			return
		}
	case "class_definition":
		b.visitClass(n, parent, startLine(n))
		return
	case "function_definition", "function_declaration", "method_declaration":
		b.visitDefinition(n, parent, startLine(n))
		return
	case "string", "concatenated_string":
		b.recordString(n)
		return
	case "else_clause":
		b.visitElse(n, parent)
		return
	}

	if kind, ok := b.kinds[n.Type()]; ok && kind != KindFunction {
		blk := b.addBlock(n, parent, kind, startLine(n), b.headerFor(n, kind))
		b.walk(n, blk)
		return
	}
	b.walk(n, parent)
}

// visitDefinition records a function block, attributing decorator
// lines via the caller-provided start line, and walks the body with
// the function as the enclosing scope.
func (b *builder) visitDefinition(n *sitter.Node, parent *Block, start int) {
	if n.Type() == "class_definition" {
		b.visitClass(n, parent, start)
		return
	}

	name := b.fieldText(n, "name")
	blk := b.addBlock(n, parent, KindFunction, start, firstLine(b.nodeText(n)))
	blk.Name = name
	blk.Scope = joinScope(b.scope, name)
	blk.Function = name

	b.scope = append(b.scope, name)
	prevFn := b.fn
	b.fn = name
	b.walk(n, blk)
	b.fn = prevFn
	b.scope = b.scope[:len(b.scope)-1]
}

// visitClass pushes the class onto the scope path without creating
// a block: class bodies are not constructs of their own, but methods
// inside must carry the Class.method scope.
func (b *builder) visitClass(n *sitter.Node, parent *Block, start int) {
	name := b.fieldText(n, "name")
	if name == "" {
		// Older grammar revisions expose the class name as a bare
		// identifier child rather than a field.
		name = b.firstChildText(n, "identifier")
	}

	b.scope = append(b.scope, name)
	prevClass := b.class
	b.class = name
	b.walk(n, parent)
	b.class = prevClass
	b.scope = b.scope[:len(b.scope)-1]
}

// visitElse classifies an else clause by its parent construct:
// if-else stays a branch, loop-else and try-else become their own
// kinds so independent misses surface separately.
func (b *builder) visitElse(n *sitter.Node, parent *Block) {
	kind := KindBranch
	header := "else"
	if p := n.Parent(); p != nil {
		switch p.Type() {
		case "for_statement", "while_statement":
			kind = KindLoopElse
			header = firstLine(b.nodeText(p))
		case "try_statement":
			kind = KindTryElse
		case "if_statement":
			if cond := b.fieldText(p, "condition"); cond != "" {
				header = "not (" + cond + ")"
			}
		}
	}
	blk := b.addBlock(n, parent, kind, startLine(n), header)
	b.walk(n, blk)
}

func (b *builder) addBlock(n *sitter.Node, parent *Block, kind Kind, start int, header string) *Block {
	blk := &Block{
		Kind:      kind,
		Scope:     joinScope(b.scope, ""),
		Class:     b.class,
		Function:  b.fn,
		StartLine: start,
		EndLine:   endLine(n),
		Header:    collapseSpace(header),
	}
	parent.Children = append(parent.Children, blk)
	b.index.flat = append(b.index.flat, blk)
	return blk
}

// recordString remembers multi-line string literal spans so the
// correlator can fold their interior lines back onto the opening
// statement.
func (b *builder) recordString(n *sitter.Node) {
	start := startLine(n)
	end := endLine(n)
	if end > start {
		b.index.stringSpans = append(b.index.stringSpans, Span{Start: start, End: end})
	}
}

// headerFor extracts the header text that best identifies a block:
// the condition expression for branches, the exception type for
// handlers, the pattern for match arms, the first source line
// otherwise.
func (b *builder) headerFor(n *sitter.Node, kind Kind) string {
	switch kind {
	case KindBranch:
		if cond := b.fieldText(n, "condition"); cond != "" {
			return cond
		}
	case KindHandler:
		if t := b.handlerType(n); t != "" {
			return t
		}
		return "Exception"
	case KindPatternArm:
		if p := b.patternText(n); p != "" {
			return p
		}
	}
	return strings.TrimSuffix(firstLine(b.nodeText(n)), ":")
}

// handlerType returns the exception type expression of an except
// clause: the first named child that is not the handler body.
func (b *builder) handlerType(n *sitter.Node) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "block" || child.Type() == "comment" {
			continue
		}
		return b.nodeText(child)
	}
	return ""
}

// patternText joins the pattern children of a case clause.
func (b *builder) patternText(n *sitter.Node) string {
	var parts []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "block" || child.Type() == "comment" {
			break
		}
		parts = append(parts, b.nodeText(child))
	}
	return strings.Join(parts, ", ")
}

func (b *builder) nodeText(n *sitter.Node) string {
	return n.Content(b.src)
}

func (b *builder) fieldText(n *sitter.Node, field string) string {
	child := n.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return collapseSpace(b.nodeText(child))
}

func (b *builder) firstChildText(n *sitter.Node, nodeType string) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.Type() == nodeType {
			return b.nodeText(child)
		}
	}
	return ""
}

func startLine(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// endLine returns the 1-based last line of a node. A node ending at
// column zero stops at the previous line's newline.
func endLine(n *sitter.Node) int {
	line := int(n.EndPoint().Row) + 1
	if n.EndPoint().Column == 0 && line > startLine(n) {
		line--
	}
	return line
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func joinScope(scope []string, name string) string {
	parts := scope
	if name != "" {
		parts = append(append([]string{}, scope...), name)
	}
	return strings.Join(parts, ".")
}

func lineCount(source []byte) int {
	n := bytes.Count(source, []byte{'\n'})
	if len(source) > 0 && source[len(source)-1] != '\n' {
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}
