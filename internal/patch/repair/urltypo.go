package repair

import "strings"

// URLTypo is a known misspelled path literal and its correction
type URLTypo struct {
	From string
	To   string
}

// KnownURLTypos returns the typo table
func KnownURLTypos() []URLTypo {
	return []URLTypo{
		{"/api/availabilty/", "/api/availability/"},
		{"/api/appoitments/", "/api/appointments/"},
		{"/api/patinets/", "/api/patients/"},
	}
}

// URLs corrects known URL typos. Lines carrying the fault marker are left as
// they are.
func URLs(content string, _ Context) Result {
	res := Result{Content: content}
	typos := KnownURLTypos()

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		for _, typo := range typos {
			if !strings.Contains(line, typo.From) {
				continue
			}
			if IsFaultLiteral(line) {
				res.Skipped = append(res.Skipped, strings.TrimSpace(line))
				break
			}
			line = strings.ReplaceAll(line, typo.From, typo.To)
			res.Changes = append(res.Changes, Change{Rule: "url-typo", From: typo.From, To: typo.To})
		}
		lines[i] = line
	}
	if res.Changed() {
		res.Content = strings.Join(lines, "\n")
	}
	return res
}
