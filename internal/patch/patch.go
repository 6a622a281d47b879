// Package patch applies idempotent text patches to repository files and
// generates the patches used by the startup fix agent.
package patch

import "strings"

// Mode selects how a patch body is placed in the target
type Mode string

const (
	// ModeAppend appends the body after the existing content
	ModeAppend Mode = "append"
	// ModeInsertBefore inserts the body in front of the first occurrence of a marker
	ModeInsertBefore Mode = "insert-before"
)

// Result is the outcome class of a patch operation
type Result string

const (
	Applied  Result = "applied"
	Skipped  Result = "skipped"
	NotFound Result = "not-found"
)

// Skip reasons
const (
	ReasonAlreadyApplied = "already-applied"
	ReasonMarkerMissing  = "marker-missing"
)

// Operation describes one patch against one file
type Operation struct {
	Target string
	Mode   Mode
	Body   string
	// Marker is required for ModeInsertBefore.
	Marker string
	// Signature identifies the patch inside the file. Defaults to the trimmed body.
	Signature string
	// Source names what produced the patch, e.g. a strategy type.
	Source string
	RunID  string
	// Validate, when set, must accept the patched content before it is written.
	Validate func(content string) error
}

// Sig returns the signature used for idempotence checks
func (op Operation) Sig() string {
	if op.Signature != "" {
		return op.Signature
	}
	return strings.TrimSpace(op.Body)
}

// Outcome reports what happened to an operation
type Outcome struct {
	Result Result `json:"result"`
	Reason string `json:"reason,omitempty"`
	Target string `json:"target"`
}

// Render computes the patched content without touching the filesystem.
// Content that already carries the signature, or the trimmed body, is
// returned unchanged with a Skipped outcome.
func Render(content string, op Operation) (string, Outcome) {
	out := Outcome{Target: op.Target}

	trimmed := strings.TrimSpace(op.Body)
	if strings.Contains(content, op.Sig()) || (trimmed != "" && strings.Contains(content, trimmed)) {
		out.Result = Skipped
		out.Reason = ReasonAlreadyApplied
		return content, out
	}

	switch op.Mode {
	case ModeInsertBefore:
		if op.Marker == "" || !strings.Contains(content, op.Marker) {
			out.Result = Skipped
			out.Reason = ReasonMarkerMissing
			return content, out
		}
		out.Result = Applied
		return strings.Replace(content, op.Marker, op.Body+"\n"+op.Marker, 1), out
	default:
		out.Result = Applied
		return content + "\n" + op.Body, out
	}
}
