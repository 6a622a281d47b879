// Package repair rewrites Playwright test sources for well-known failure
// signatures. Each repair is a pure function of file content and failure
// context. Literals carrying the fault-injection marker are never touched.
package repair

import "strings"

// FaultMarker tags literals that are broken on purpose to exercise the auditor
const FaultMarker = "BROKEN"

// Context is the failure evidence available to a repair
type Context struct {
	PlaywrightSnippet string
	BackendSnippet    string
}

// Change is one rewrite made by a repair
type Change struct {
	Rule string `json:"rule"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Result is the repaired content and what changed
type Result struct {
	Content string
	Changes []Change
	// Skipped lists literals left alone because they carry FaultMarker.
	Skipped []string
}

// Changed reports whether the repair rewrote anything
func (r Result) Changed() bool {
	return len(r.Changes) > 0
}

// Func is the shape shared by all repairs
type Func func(content string, ctx Context) Result

// IsFaultLiteral reports whether s carries the fault-injection marker
func IsFaultLiteral(s string) bool {
	return strings.Contains(s, FaultMarker)
}
