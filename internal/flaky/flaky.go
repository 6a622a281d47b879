// Package flaky separates flaky from deterministic test failures across
// repeated runs recorded as JUnit XML.
package flaky

import (
	"fmt"
	"sort"

	"github.com/joshdk/go-junit"
)

// ReportFile is the file name the supervisor reads
const ReportFile = "flaky-classifier.json"

// Test summarizes one test across all runs
type Test struct {
	ID       string `json:"test"`
	Passes   int    `json:"passes"`
	Failures int    `json:"failures"`
	Message  string `json:"message,omitempty"`
}

// Report is written to flaky-classifier.json
type Report struct {
	Status        string `json:"status"`
	Runs          int    `json:"runs"`
	Flaky         []Test `json:"flaky"`
	Deterministic []Test `json:"deterministic"`
}

// TestID identifies a test case independent of the run it came from
func TestID(t junit.Test) string {
	if t.Classname == "" {
		return t.Name
	}
	return t.Classname + " › " + t.Name
}

// ClassifyFiles ingests the JUnit files and classifies their tests
func ClassifyFiles(paths []string) (Report, error) {
	var suites []junit.Suite
	for _, p := range paths {
		s, err := junit.IngestFile(p)
		if err != nil {
			return Report{}, fmt.Errorf("ingesting %s: %w", p, err)
		}
		suites = append(suites, s...)
	}
	r := Classify(suites)
	r.Runs = len(paths)
	return r, nil
}

// Classify groups test cases by id. A test that both passed and failed is
// flaky; one that only failed is deterministic. Skipped cases are ignored.
func Classify(suites []junit.Suite) Report {
	byID := make(map[string]*Test)
	var order []string

	var visit func(s junit.Suite)
	visit = func(s junit.Suite) {
		for _, tc := range s.Tests {
			id := TestID(tc)
			t, ok := byID[id]
			if !ok {
				t = &Test{ID: id}
				byID[id] = t
				order = append(order, id)
			}
			switch tc.Status {
			case junit.StatusPassed:
				t.Passes++
			case junit.StatusFailed, junit.StatusError:
				t.Failures++
				if t.Message == "" && tc.Error != nil {
					t.Message = tc.Error.Error()
				}
			}
		}
		for _, child := range s.Suites {
			visit(child)
		}
	}
	for _, s := range suites {
		visit(s)
	}

	sort.Strings(order)
	report := Report{Status: "ok", Flaky: []Test{}, Deterministic: []Test{}}
	for _, id := range order {
		t := byID[id]
		switch {
		case t.Failures > 0 && t.Passes > 0:
			report.Flaky = append(report.Flaky, *t)
		case t.Failures > 0:
			report.Deterministic = append(report.Deterministic, *t)
		}
	}
	return report
}
