// Package fixagent repairs Playwright test code for failures the supervisor
// routes to it, producing a unified diff and a metadata report.
package fixagent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
)

// RunID accepts a JSON string or number
type RunID string

func (r *RunID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RunID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("run_id must be a string or number")
	}
	*r = RunID(n.String())
	return nil
}

// Snippets are the key log excerpts of a failure
type Snippets struct {
	Playwright string `json:"playwright"`
	Backend    string `json:"backend"`
}

// Instructions are the fix-agent specific parts of the analysis
type Instructions struct {
	SuspectedPaths []string `json:"suspected_paths"`
	FailingTests   []string `json:"failing_tests"`
	KeyLogSnippets Snippets `json:"key_log_snippets"`
}

// Input is the fix agent's input document
type Input struct {
	RunID RunID `json:"run_id"`
	Logs  struct {
		ExtractedSpecPaths []string `json:"extracted_spec_paths"`
	} `json:"logs"`
	Analysis struct {
		Classification struct {
			ErrorType domain.ErrorType `json:"error_type"`
		} `json:"classification"`
		FixAgentInstructions Instructions `json:"fix_agent_instructions"`
	} `json:"analysis"`
}

// LoadInput reads an input document from path
func LoadInput(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &in, nil
}

// Candidates returns the suspected and extracted paths, deduplicated, in
// input order.
func (in *Input) Candidates() []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range [][]string{in.Analysis.FixAgentInstructions.SuspectedPaths, in.Logs.ExtractedSpecPaths} {
		for _, p := range list {
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
