package gaps

import (
	"sort"

	"github.com/mcp-tool-shop/code-covered/internal/coverage"
	"github.com/mcp-tool-shop/code-covered/internal/syntax"
)

// candidate pairs a syntax block with the missed lines that resolved
// to it. Candidates are transient: produced and consumed inside the
// correlation stage, then turned into suggestions.
type candidate struct {
	block *syntax.Block

	// lines are the attributed missed lines, ascending.
	lines []int

	// start and end delimit the suggested target range. For real
	// blocks this is the block's span; for module-level code it is
	// the extent of a consecutive missed-line group.
	start, end int
}

// correlate intersects a file's missed lines with its structural
// index. Every missed line is attributed to the innermost enclosing
// block; lines sharing a block merge into one candidate. Functions
// with no executed lines at all collapse to a single
// function-granularity candidate. The result is ordered by start
// line, which downstream stages rely on.
func correlate(ix *syntax.Index, fc *coverage.FileCoverage) []*candidate {
	missed := fc.MissedLines()
	if len(missed) == 0 {
		return nil
	}

	collapsed := fullyMissedFunctions(ix, fc)

	byBlock := make(map[*syntax.Block][]int)
	var moduleLines []int

	for _, line := range missed {
		// Lines inside a multi-line string belong to the statement
		// that opens it; string content never forms a block.
		if start, ok := ix.StringSpanStart(line); ok {
			line = start
		}

		if fn := enclosingCollapsed(collapsed, line); fn != nil {
			appendUnique(byBlock, fn, line)
			continue
		}

		blk := classifyAt(ix, line)
		if blk == ix.Root {
			moduleLines = append(moduleLines, line)
			continue
		}
		appendUnique(byBlock, blk, line)
	}

	var cands []*candidate
	for blk, lines := range byBlock {
		sort.Ints(lines)
		cands = append(cands, &candidate{
			block: blk,
			lines: lines,
			start: blk.StartLine,
			end:   blk.EndLine,
		})
	}
	cands = append(cands, groupModuleLines(ix.Root, moduleLines)...)

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].start != cands[j].start {
			return cands[i].start < cands[j].start
		}
		return cands[i].end > cands[j].end
	})

	return resolveOverlaps(cands)
}

// classifyAt picks the block a missed line is attributed to: the
// highest-specificity block on the chain from the module root to the
// innermost enclosing block, ties going to the deeper block. A
// missed return inside an uncovered branch body therefore classifies
// as the branch, while a raise inside a handler stays the raise.
func classifyAt(ix *syntax.Index, line int) *syntax.Block {
	path := ix.PathTo(line)
	best := path[len(path)-1]
	for i := len(path) - 2; i >= 0; i-- {
		if path[i].Kind.Specificity() > best.Kind.Specificity() {
			best = path[i]
		}
	}
	return best
}

// fullyMissedFunctions returns the outermost function blocks with no
// executed lines and at least one missed line. Misses inside them
// collapse to the function instead of one candidate per statement.
func fullyMissedFunctions(ix *syntax.Index, fc *coverage.FileCoverage) []*syntax.Block {
	var out []*syntax.Block
	for _, blk := range ix.Blocks() {
		if blk.Kind != syntax.KindFunction {
			continue
		}
		if enclosingCollapsed(out, blk.StartLine) != nil {
			continue // nested in an already-collapsed function
		}
		executed, missedAny := false, false
		for line := blk.StartLine; line <= blk.EndLine; line++ {
			if fc.Executed[line] {
				executed = true
				break
			}
			if fc.Missed[line] {
				missedAny = true
			}
		}
		if !executed && missedAny {
			out = append(out, blk)
		}
	}
	return out
}

// enclosingCollapsed returns the collapsed function whose range
// contains line, or nil.
func enclosingCollapsed(fns []*syntax.Block, line int) *syntax.Block {
	for _, fn := range fns {
		if line >= fn.StartLine && line <= fn.EndLine {
			return fn
		}
	}
	return nil
}

// groupModuleLines turns module-level misses into candidates, one
// per run of consecutive lines.
func groupModuleLines(root *syntax.Block, lines []int) []*candidate {
	if len(lines) == 0 {
		return nil
	}
	sort.Ints(lines)

	var out []*candidate
	cur := &candidate{block: root, lines: []int{lines[0]}, start: lines[0], end: lines[0]}
	for _, line := range lines[1:] {
		if line == cur.end+1 {
			cur.lines = append(cur.lines, line)
			cur.end = line
			continue
		}
		if line == cur.end {
			continue
		}
		out = append(out, cur)
		cur = &candidate{block: root, lines: []int{line}, start: line, end: line}
	}
	return append(out, cur)
}

// resolveOverlaps keeps the most specific classification when two
// candidates' ranges overlap: a less specific candidate whose lines
// all fall inside a more specific candidate's range is absorbed into
// it. Overlaps that cannot be resolved by specificity are left
// alone; keeping both classifications is preferred over failing
// the run.
func resolveOverlaps(cands []*candidate) []*candidate {
	out := cands[:0]
	for _, c := range cands {
		absorbed := false
		for _, kept := range out {
			if c == kept || c.start > kept.end || c.end < kept.start {
				continue
			}
			winner, loser := kept, c
			if c.block.Kind.Specificity() > kept.block.Kind.Specificity() {
				winner, loser = c, kept
			}
			if winner == kept && linesWithin(loser, winner) {
				winner.lines = mergeLines(winner.lines, loser.lines)
				absorbed = true
				break
			}
			if winner == c && linesWithin(loser, winner) {
				// The earlier, less specific candidate loses its
				// overlapping lines to the newcomer.
				winner.lines = mergeLines(winner.lines, loser.lines)
				*loser = *winner
				absorbed = true
				break
			}
		}
		if !absorbed {
			out = append(out, c)
		}
	}
	return dedupe(out)
}

// linesWithin reports whether every attributed line of c lies inside
// w's range.
func linesWithin(c, w *candidate) bool {
	for _, line := range c.lines {
		if line < w.start || line > w.end {
			return false
		}
	}
	return true
}

func mergeLines(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var out []int
	for _, line := range append(append([]int{}, a...), b...) {
		if !seen[line] {
			seen[line] = true
			out = append(out, line)
		}
	}
	sort.Ints(out)
	return out
}

// dedupe drops candidates that became aliases of one another during
// overlap resolution.
func dedupe(cands []*candidate) []*candidate {
	seen := make(map[*syntax.Block]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		if c.block.Kind != syntax.KindModuleLevel {
			if seen[c.block] {
				continue
			}
			seen[c.block] = true
		}
		out = append(out, c)
	}
	return out
}

func appendUnique(m map[*syntax.Block][]int, blk *syntax.Block, line int) {
	for _, existing := range m[blk] {
		if existing == line {
			return
		}
	}
	m[blk] = append(m[blk], line)
}
