package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

type fakeProber struct {
	counts map[string]int
	errs   map[string]error
	probed []string
	closed bool
}

func (f *fakeProber) Probe(_ context.Context, p Probe) Result {
	f.probed = append(f.probed, p.Key)
	if err, ok := f.errs[p.Key]; ok {
		return ErrorResult(p, err)
	}
	return NewResult(p, 200, f.counts[p.Key])
}

func (f *fakeProber) Close() error {
	f.closed = true
	return nil
}

func opener(f *fakeProber) Opener {
	return func(context.Context, string) (Prober, error) { return f, nil }
}

func writeStorage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storageState.json")
	if err := os.WriteFile(path, []byte(`{"cookies":[],"origins":[]}`), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func allFound() map[string]int {
	return map[string]int{
		"calendar.anchor":   1,
		"patients.anchor":   2,
		"operations.anchor": 1,
		"scheduling.anchor": 1,
	}
}

func TestRun_AllOK(t *testing.T) {
	f := &fakeProber{counts: allFound()}
	a := NewAuditor(opener(f), zap.NewNop())

	report := a.Run(context.Background(), Options{StoragePath: writeStorage(t)})

	if !report.OK() {
		t.Fatalf("Status = %q, want ok (%+v)", report.Status, report)
	}
	want := []string{"calendar.anchor", "patients.anchor", "operations.anchor", "scheduling.anchor"}
	if diff := cmp.Diff(want, f.probed); diff != "" {
		t.Errorf("probe order mismatch (-want +got):\n%s", diff)
	}
	if !f.closed {
		t.Error("prober was not closed")
	}
	if report.FaultResults != nil {
		t.Errorf("FaultResults = %v, want none without fault scenario", report.FaultResults)
	}
}

func TestRun_MissingSelector(t *testing.T) {
	counts := allFound()
	counts["operations.anchor"] = 0
	a := NewAuditor(opener(&fakeProber{counts: counts}), zap.NewNop())

	report := a.Run(context.Background(), Options{StoragePath: writeStorage(t)})

	if report.Status != StatusMissing {
		t.Fatalf("Status = %q, want missing", report.Status)
	}
	if report.OK() {
		t.Error("OK() = true with a missing selector")
	}
	got := report.Results[2]
	if got.Status != StatusMissing {
		t.Errorf("operations.anchor status = %q, want missing", got.Status)
	}
	if got.Recommendation != `Consider data-testid="operations.anchor" for stability.` {
		t.Errorf("Recommendation = %q", got.Recommendation)
	}
}

func TestRun_ErrorOutranksMissing(t *testing.T) {
	counts := allFound()
	counts["operations.anchor"] = 0
	f := &fakeProber{counts: counts, errs: map[string]error{"scheduling.anchor": errors.New("navigation timeout")}}
	report := NewAuditor(opener(f), zap.NewNop()).Run(context.Background(), Options{StoragePath: writeStorage(t)})

	if report.Status != StatusError {
		t.Errorf("Status = %q, want error", report.Status)
	}
}

func TestWorstStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     string
	}{
		{"empty", nil, StatusOK},
		{"all ok", []string{StatusOK, StatusOK}, StatusOK},
		{"ok and missing", []string{StatusOK, StatusMissing}, StatusMissing},
		{"missing and error", []string{StatusMissing, StatusError}, StatusError},
		{"error first", []string{StatusError, StatusMissing, StatusOK}, StatusError},
		{"unknown counts as error", []string{StatusMissing, "weird"}, StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var results []Result
			for _, s := range tt.statuses {
				results = append(results, Result{Status: s})
			}
			if got := WorstStatus(results); got != tt.want {
				t.Errorf("WorstStatus(%v) = %q, want %q", tt.statuses, got, tt.want)
			}
		})
	}
}

func TestRun_ProbeError(t *testing.T) {
	f := &fakeProber{counts: allFound(), errs: map[string]error{"calendar.anchor": errors.New("net::ERR_CONNECTION_REFUSED")}}
	report := NewAuditor(opener(f), zap.NewNop()).Run(context.Background(), Options{StoragePath: writeStorage(t)})

	if report.Status != StatusError {
		t.Fatalf("Status = %q, want error", report.Status)
	}
	if r := report.Results[0]; r.Status != StatusError || r.Message != "net::ERR_CONNECTION_REFUSED" {
		t.Errorf("Results[0] = %+v", r)
	}
	if len(report.Results) != 4 {
		t.Errorf("len(Results) = %d, want every probe attempted", len(report.Results))
	}
}

func TestRun_MissingStorage(t *testing.T) {
	opened := false
	open := func(context.Context, string) (Prober, error) {
		opened = true
		return &fakeProber{}, nil
	}
	path := filepath.Join(t.TempDir(), "nope.json")

	report := NewAuditor(open, zap.NewNop()).Run(context.Background(), Options{StoragePath: path})

	want := Report{Status: StatusError, Reason: ReasonMissingStorage, StoragePath: path}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	if opened {
		t.Error("browser opened without storage state")
	}
}

func TestRun_OpenFailure(t *testing.T) {
	open := func(context.Context, string) (Prober, error) { return nil, errors.New("chrome not found") }
	report := NewAuditor(open, zap.NewNop()).Run(context.Background(), Options{StoragePath: writeStorage(t)})

	if report.Status != StatusError || report.Reason != ReasonException || report.Message != "chrome not found" {
		t.Errorf("report = %+v", report)
	}
}

func TestRun_FaultScenarioDetected(t *testing.T) {
	f := &fakeProber{counts: allFound()}
	report := NewAuditor(opener(f), zap.NewNop()).Run(context.Background(), Options{
		StoragePath:   writeStorage(t),
		FaultScenario: FaultScenarioSelector,
	})

	if report.Status != StatusError || report.Reason != ReasonFaultSelectorMissing {
		t.Fatalf("report = %+v, want error/fault-selector-missing", report)
	}
	if report.FaultScenario != "selector" {
		t.Errorf("FaultScenario = %q", report.FaultScenario)
	}
	if len(report.FaultResults) != 1 || report.FaultResults[0].Status != StatusMissing {
		t.Errorf("FaultResults = %+v", report.FaultResults)
	}
}

func TestRun_FaultScenarioNotDetected(t *testing.T) {
	counts := allFound()
	counts["calendar.anchor.fault"] = 1
	report := NewAuditor(opener(&fakeProber{counts: counts}), zap.NewNop()).Run(context.Background(), Options{
		StoragePath:   writeStorage(t),
		FaultScenario: FaultScenarioSelector,
	})

	if report.Status != StatusError || report.Reason != ReasonFaultNotDetected {
		t.Errorf("report = %+v, want error/fault-not-detected", report)
	}
}

func TestRun_UnknownFaultScenarioIgnored(t *testing.T) {
	report := NewAuditor(opener(&fakeProber{counts: allFound()}), zap.NewNop()).Run(context.Background(), Options{
		StoragePath:   writeStorage(t),
		FaultScenario: "db",
	})
	if !report.OK() || report.FaultScenario != "" {
		t.Errorf("report = %+v, want ok without overlay", report)
	}
}

func TestDefaultProbes_ReturnsCopy(t *testing.T) {
	p := DefaultProbes()
	p[0].Selector = "#changed"
	if DefaultProbes()[0].Selector != "#appointmentCalendar" {
		t.Error("DefaultProbes exposed the registry")
	}
}

func TestLoadCookies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	state := `{"cookies":[
		{"name":"sessionid","value":"abc","domain":"localhost","path":"/","expires":-1,"httpOnly":true,"secure":false,"sameSite":"Lax"},
		{"name":"csrftoken","value":"xyz","domain":"localhost","path":"/","expires":1893456000,"httpOnly":false,"secure":false,"sameSite":"Lax"}
	]}`
	if err := os.WriteFile(path, []byte(state), 0644); err != nil {
		t.Fatal(err)
	}

	cookies, err := LoadCookies(path)
	if err != nil {
		t.Fatalf("LoadCookies: %v", err)
	}
	if len(cookies) != 2 {
		t.Fatalf("len = %d, want 2", len(cookies))
	}
	if cookies[0].Name != "sessionid" || !cookies[0].HTTPOnly || cookies[0].Expires != 0 {
		t.Errorf("session cookie = %+v", cookies[0])
	}
	if cookies[1].Expires != 1893456000 {
		t.Errorf("Expires = %v", cookies[1].Expires)
	}
	if string(cookies[1].SameSite) != "Lax" {
		t.Errorf("SameSite = %q", cookies[1].SameSite)
	}
}
