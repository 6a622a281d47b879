package repair

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// TestTimeoutMillis is the per-test allowance inserted into test bodies
	TestTimeoutMillis = 60000
	// MaxFixedWaitMillis is the longest fixed wait left untouched
	MaxFixedWaitMillis = 5000
	// BoundedWaitMillis replaces longer fixed waits
	BoundedWaitMillis = 500
)

var (
	testOpen  = regexp.MustCompile(`^(\s*)test(?:\.only)?\(.*=>\s*\{\s*$`)
	fixedWait = regexp.MustCompile(`waitForTimeout\((\d+)\)`)
)

// Timing gives every test body an explicit timeout and shrinks fixed waits
// longer than MaxFixedWaitMillis.
func Timing(content string, _ Context) Result {
	res := Result{Content: content}
	setTimeout := "test.setTimeout(" + strconv.Itoa(TestTimeoutMillis) + ");"

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines)+4)
	for i, line := range lines {
		line = fixedWait.ReplaceAllStringFunc(line, func(call string) string {
			n, err := strconv.Atoi(fixedWait.FindStringSubmatch(call)[1])
			if err != nil || n <= MaxFixedWaitMillis {
				return call
			}
			to := "waitForTimeout(" + strconv.Itoa(BoundedWaitMillis) + ")"
			res.Changes = append(res.Changes, Change{Rule: "bounded-wait", From: call, To: to})
			return to
		})
		out = append(out, line)

		m := testOpen.FindStringSubmatch(line)
		if m == nil || nextCodeLineHas(lines[i+1:], "test.setTimeout(") {
			continue
		}
		out = append(out, m[1]+"  "+setTimeout)
		res.Changes = append(res.Changes, Change{Rule: "test-timeout", From: strings.TrimSpace(line), To: setTimeout})
	}

	if res.Changed() {
		res.Content = strings.Join(out, "\n")
	}
	return res
}

func nextCodeLineHas(lines []string, needle string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		return strings.Contains(l, needle)
	}
	return false
}
