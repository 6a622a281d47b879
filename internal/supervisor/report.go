package supervisor

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strings"
)

// ReportState says whether an agent report could be read
type ReportState int

const (
	ReportAbsent ReportState = iota
	ReportMalformed
	ReportPresent
)

func (s ReportState) String() string {
	switch s {
	case ReportMalformed:
		return "malformed"
	case ReportPresent:
		return "present"
	default:
		return "absent"
	}
}

// Report is one agent's JSON output. Absent and malformed reports are
// kept distinct and never count as ok.
type Report struct {
	State   ReportState
	Status  string
	Message string // parse error for malformed reports
	raw     json.RawMessage
}

// LoadReport reads an agent report. An empty file is an empty object.
func LoadReport(path string) Report {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Report{State: ReportAbsent}
	}
	if err != nil {
		return Report{State: ReportMalformed, Status: "error", Message: err.Error()}
	}
	return ParseReport(data)
}

// ParseReport decodes report bytes
func ParseReport(data []byte) Report {
	if strings.TrimSpace(string(data)) == "" {
		data = []byte("{}")
	}
	var head struct {
		Status any `json:"status"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Report{State: ReportMalformed, Status: "error", Message: err.Error()}
	}
	r := Report{State: ReportPresent, raw: json.RawMessage(data)}
	if s, ok := head.Status.(string); ok {
		r.Status = s
	}
	return r
}

// OK reports whether the report is present with status ok or success
func (r Report) OK() bool {
	return r.State == ReportPresent && (r.Status == "ok" || r.Status == "success")
}

// FailureCounts returns the lengths of the flaky and deterministic lists of
// a flaky-classifier report. Anything that is not a list counts as zero.
func (r Report) FailureCounts() (flaky, deterministic int) {
	if r.State != ReportPresent {
		return 0, 0
	}
	var lists struct {
		Flaky         json.RawMessage `json:"flaky"`
		Deterministic json.RawMessage `json:"deterministic"`
	}
	if err := json.Unmarshal(r.raw, &lists); err != nil {
		return 0, 0
	}
	return listLen(lists.Flaky), listLen(lists.Deterministic)
}

func listLen(raw json.RawMessage) int {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0
	}
	return len(items)
}

// MarshalJSON echoes present reports verbatim, writes null for absent ones
// and a parse error object for malformed ones.
func (r Report) MarshalJSON() ([]byte, error) {
	switch r.State {
	case ReportPresent:
		return r.raw, nil
	case ReportMalformed:
		return json.Marshal(struct {
			Status  string `json:"status"`
			Reason  string `json:"reason"`
			Message string `json:"message"`
		}{"error", "parse", r.Message})
	default:
		return []byte("null"), nil
	}
}
