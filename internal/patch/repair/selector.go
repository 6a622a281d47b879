package repair

import (
	"regexp"
	"strings"
)

var (
	locatorCall     = regexp.MustCompile(`page\.locator\((['"])([^'"]+)['"]\)(\.first\(\))?`)
	snippetSelector = regexp.MustCompile(`(?:waiting for selector|locator\()\s*['"]([^'"]+)['"]`)
	strictMode      = regexp.MustCompile(`(?i)strict\s+mode\s+violation`)
	idSelector      = regexp.MustCompile(`^#([A-Za-z][\w-]*)$`)
	testIDSelector  = regexp.MustCompile(`^\[data-testid=['"]?([^'"\]]+)['"]?\]$`)
)

// Selector rewrites page.locator calls for the selectors named in the
// Playwright snippet. A strict-mode violation gets .first() appended; any
// other failure on an id or data-testid selector becomes getByTestId.
func Selector(content string, ctx Context) Result {
	targets := map[string]bool{}
	for _, m := range snippetSelector.FindAllStringSubmatch(ctx.PlaywrightSnippet, -1) {
		targets[m[1]] = true
	}
	res := Result{Content: content}
	if len(targets) == 0 {
		return res
	}
	strict := strictMode.MatchString(ctx.PlaywrightSnippet)

	res.Content = locatorCall.ReplaceAllStringFunc(content, func(call string) string {
		m := locatorCall.FindStringSubmatch(call)
		quote, sel, first := m[1], m[2], m[3]
		if !targets[sel] {
			return call
		}
		if IsFaultLiteral(sel) {
			res.Skipped = append(res.Skipped, sel)
			return call
		}

		var to string
		if strict {
			if first != "" {
				return call
			}
			to = call + ".first()"
			res.Changes = append(res.Changes, Change{Rule: "strict-first", From: call, To: to})
			return to
		}

		id, ok := testID(sel)
		if !ok {
			return call
		}
		to = "page.getByTestId(" + quote + id + quote + ")" + first
		res.Changes = append(res.Changes, Change{Rule: "test-id", From: call, To: to})
		return to
	})
	return res
}

func testID(sel string) (string, bool) {
	sel = strings.TrimSpace(sel)
	if m := idSelector.FindStringSubmatch(sel); m != nil {
		return m[1], true
	}
	if m := testIDSelector.FindStringSubmatch(sel); m != nil {
		return m[1], true
	}
	return "", false
}
