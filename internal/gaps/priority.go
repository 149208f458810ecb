package gaps

import (
	"fmt"
	"strings"

	"github.com/mcp-tool-shop/code-covered/internal/syntax"
)

// Tier is the severity assigned to a suggestion. Tiers form a total
// order: critical > high > medium > low.
type Tier string

// Severity tiers.
const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
)

// tierRank maps tiers onto sortable ranks, most severe first.
var tierRank = map[Tier]int{
	TierCritical: 0,
	TierHigh:     1,
	TierMedium:   2,
	TierLow:      3,
}

// Rank returns the tier's sort rank; unknown tiers sort last.
func (t Tier) Rank() int {
	r, ok := tierRank[t]
	if !ok {
		return len(tierRank)
	}
	return r
}

// AtLeast reports whether t is as severe as min or more.
func (t Tier) AtLeast(min Tier) bool {
	return t.Rank() <= min.Rank()
}

// ParseTier validates a tier name. Unrecognized values are rejected
// rather than silently ignored so caller-side filters cannot drift.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(s))
	if _, ok := tierRank[t]; !ok {
		return "", fmt.Errorf("unknown priority tier %q (want critical, high, medium, or low)", s)
	}
	return t, nil
}

// kindTier is the base classification-to-tier mapping. The set is
// closed; see syntax.Kind.
var kindTier = map[syntax.Kind]Tier{
	syntax.KindHandler:       TierCritical,
	syntax.KindRaise:         TierCritical,
	syntax.KindBranch:        TierHigh,
	syntax.KindPatternArm:    TierHigh,
	syntax.KindLoop:          TierMedium,
	syntax.KindLoopElse:      TierMedium,
	syntax.KindTryElse:       TierMedium,
	syntax.KindFinally:       TierMedium,
	syntax.KindContext:       TierMedium,
	syntax.KindFunction:      TierMedium,
	syntax.KindReturn:        TierMedium,
	syntax.KindComprehension: TierMedium,
	syntax.KindLambda:        TierMedium,
	syntax.KindModuleLevel:   TierLow,
}

// securityTerms escalate a block by one tier when they appear in its
// header or body. Matching is lexical, not semantic: a variable named
// "token" that has nothing to do with authentication still escalates.
// That is a known, accepted approximation kept for behavioral
// compatibility.
var securityTerms = []string{"password", "secret", "token", "credential", "auth"}

// tierFor assigns the severity tier for a candidate: the base tier
// for its kind, raised one level (capped at critical) when the block
// text contains a security-sensitive term, and raised one level for
// entirely-missed functions whose cyclomatic complexity is at or
// above the configured threshold.
func tierFor(c *candidate, snippet string, complex bool) Tier {
	tier, ok := kindTier[c.block.Kind]
	if !ok {
		tier = TierLow
	}

	text := strings.ToLower(c.block.Header + "\n" + snippet)
	for _, term := range securityTerms {
		if strings.Contains(text, term) {
			tier = escalate(tier)
			break
		}
	}

	if complex && c.block.Kind == syntax.KindFunction {
		tier = escalate(tier)
	}

	return tier
}

// escalate raises a tier by one level, never above critical.
func escalate(t Tier) Tier {
	switch t {
	case TierLow:
		return TierMedium
	case TierMedium:
		return TierHigh
	default:
		return TierCritical
	}
}
