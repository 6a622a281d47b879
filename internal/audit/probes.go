// Package audit checks that the page anchors the E2E suite relies on are
// still present in the running application.
package audit

// Probe locates one selector on one page
type Probe struct {
	Key      string `json:"key"`
	Path     string `json:"path"`
	Selector string `json:"selector"`
}

// FaultScenarioSelector enables the broken-selector overlay
const FaultScenarioSelector = "selector"

var defaultProbes = []Probe{
	{Key: "calendar.anchor", Path: "/praxi_backend/appointments/", Selector: "#appointmentCalendar"},
	{Key: "patients.anchor", Path: "/praxi_backend/patients/", Selector: "#patientsTable, #patientSelect"},
	{Key: "operations.anchor", Path: "/praxi_backend/operations/", Selector: "#periodSelect"},
	{Key: "scheduling.anchor", Path: "/praxi_backend/scheduling/", Selector: "#trendChart"},
}

var faultProbes = map[string][]Probe{
	FaultScenarioSelector: {
		{Key: "calendar.anchor.fault", Path: "/praxi_backend/appointments/", Selector: "#appointmentCalendarBROKEN"},
	},
}

// DefaultProbes returns a copy of the probe registry
func DefaultProbes() []Probe {
	return append([]Probe(nil), defaultProbes...)
}

// FaultProbes returns the overlay probes for a fault scenario, or nil
func FaultProbes(scenario string) []Probe {
	return append([]Probe(nil), faultProbes[scenario]...)
}
