package gaps

import "strings"

// hintRule maps dependency signatures found in uncovered code to a
// setup recommendation. Matching is lexical over the lowercased
// snippet, same approximation as the security-term escalation.
type hintRule struct {
	terms []string
	hint  string
}

// hintRules is ordered; hints are emitted in this order regardless of
// where the signatures appear in the snippet, which keeps output
// stable across runs.
var hintRules = []hintRule{
	{[]string{"request", "http"}, "Mock HTTP requests with responses or httpx"},
	{[]string{"open(", "path"}, "Mock file operations with tmp_path fixture"},
	{[]string{"await", "async"}, "Use @pytest.mark.asyncio decorator"},
	{[]string{"database", "cursor", "session"}, "Mock database connections"},
	{[]string{"datetime", "time."}, "Use freezegun or mock datetime.now()"},
	{[]string{"random"}, "Seed random or mock random functions"},
	{[]string{"environ", "getenv"}, "Use monkeypatch.setenv() for env vars"},
	{[]string{"subprocess", "popen"}, "Mock subprocess calls"},
	{[]string{"socket"}, "Mock socket connections"},
}

// setupHints scans a block's source text for known external-dependency
// signatures and returns one recommendation per matched rule.
func setupHints(snippet string) []string {
	lower := strings.ToLower(snippet)
	var hints []string
	for _, rule := range hintRules {
		for _, term := range rule.terms {
			if strings.Contains(lower, term) {
				hints = append(hints, rule.hint)
				break
			}
		}
	}
	return hints
}
