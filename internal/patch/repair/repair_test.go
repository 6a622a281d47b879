package repair

import (
	"strings"
	"testing"
)

func TestSelector(t *testing.T) {
	tests := []struct {
		name    string
		content string
		snippet string
		want    string
		changes int
	}{
		{
			name:    "strict mode appends first",
			content: "return page.locator('#appointmentCalendar');",
			snippet: "Error: strict mode violation: locator('#appointmentCalendar') resolved to 2 elements",
			want:    "return page.locator('#appointmentCalendar').first();",
			changes: 1,
		},
		{
			name:    "strict mode already first",
			content: "page.locator('#x').first().click()",
			snippet: "strict mode violation: locator('#x')",
			want:    "page.locator('#x').first().click()",
		},
		{
			name:    "missing id becomes test id",
			content: `await page.locator("#patientSelect").click();`,
			snippet: "waiting for selector '#patientSelect'",
			want:    `await page.getByTestId("patientSelect").click();`,
			changes: 1,
		},
		{
			name:    "data-testid selector",
			content: `page.locator('[data-testid=trendChart]')`,
			snippet: `locator('[data-testid=trendChart]') not found`,
			want:    `page.getByTestId('trendChart')`,
			changes: 1,
		},
		{
			name:    "class selector not rewritten to test id",
			content: "page.locator('.calendar')",
			snippet: "waiting for selector '.calendar'",
			want:    "page.locator('.calendar')",
		},
		{
			name:    "selector not named in snippet",
			content: "page.locator('#other')",
			snippet: "waiting for selector '#patientSelect'",
			want:    "page.locator('#other')",
		},
		{
			name:    "no snippet",
			content: "page.locator('#x')",
			want:    "page.locator('#x')",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Selector(tt.content, Context{PlaywrightSnippet: tt.snippet})
			if got.Content != tt.want {
				t.Errorf("Content = %q, want %q", got.Content, tt.want)
			}
			if len(got.Changes) != tt.changes {
				t.Errorf("Changes = %v, want %d", got.Changes, tt.changes)
			}
		})
	}
}

func TestSelector_FaultMarkerUntouched(t *testing.T) {
	content := "  return page.locator('#appointmentCalendarBROKEN');\n"
	for _, snippet := range []string{
		"Error: waiting for selector '#appointmentCalendarBROKEN'",
		"strict mode violation: locator('#appointmentCalendarBROKEN')",
	} {
		got := Selector(content, Context{PlaywrightSnippet: snippet})
		if got.Content != content {
			t.Errorf("fault literal rewritten for %q: %q", snippet, got.Content)
		}
		if got.Changed() {
			t.Errorf("Changes = %v, want none", got.Changes)
		}
		if len(got.Skipped) != 1 {
			t.Errorf("Skipped = %v, want the fault literal", got.Skipped)
		}
	}
}

func TestURLs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"availability", "return '/api/availabilty/?start=a&end=b';", "return '/api/availability/?start=a&end=b';"},
		{"appointments", "export const endpoint = '/api/appoitments/';", "export const endpoint = '/api/appointments/';"},
		{"correct url untouched", "fetch('/api/availability/')", "fetch('/api/availability/')"},
		{"fuzzy typo untouched", "fetch('/api/avialability/')", "fetch('/api/avialability/')"},
		{"fault marker untouched", "fetch('/api/availabilty/BROKEN')", "fetch('/api/availabilty/BROKEN')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := URLs(tt.content, Context{})
			if got.Content != tt.want {
				t.Errorf("Content = %q, want %q", got.Content, tt.want)
			}
		})
	}
}

func TestURLs_OnlyTouchesTypoLines(t *testing.T) {
	content := "a('/api/appoitments/BROKEN')\nb('/api/appoitments/')\n"
	got := URLs(content, Context{})
	want := "a('/api/appoitments/BROKEN')\nb('/api/appointments/')\n"
	if got.Content != want {
		t.Errorf("Content = %q, want %q", got.Content, want)
	}
	if len(got.Changes) != 1 || len(got.Skipped) != 1 {
		t.Errorf("Changes = %v, Skipped = %v", got.Changes, got.Skipped)
	}
}

func TestTiming(t *testing.T) {
	content := strings.Join([]string{
		"import { test } from '@playwright/test';",
		`test("timing", async ({ page }) => {`,
		"  await page.waitForTimeout(60000);",
		"  await page.waitForTimeout(1000);",
		"});",
		"",
	}, "\n")

	got := Timing(content, Context{})
	want := strings.Join([]string{
		"import { test } from '@playwright/test';",
		`test("timing", async ({ page }) => {`,
		"  test.setTimeout(60000);",
		"  await page.waitForTimeout(500);",
		"  await page.waitForTimeout(1000);",
		"});",
		"",
	}, "\n")
	if got.Content != want {
		t.Errorf("Content =\n%s\nwant\n%s", got.Content, want)
	}
	if len(got.Changes) != 2 {
		t.Errorf("Changes = %v, want 2", got.Changes)
	}
}

func TestTiming_Idempotent(t *testing.T) {
	content := "test.describe('x', () => {\n  test('a', async () => {\n    await page.waitForTimeout(9000);\n  });\n});\n"
	once := Timing(content, Context{})
	if !strings.Contains(once.Content, "    test.setTimeout(60000);") {
		t.Fatalf("nested test not given a timeout:\n%s", once.Content)
	}
	if strings.Count(once.Content, "setTimeout") != 1 {
		t.Errorf("describe block got a timeout too:\n%s", once.Content)
	}
	twice := Timing(once.Content, Context{})
	if twice.Changed() {
		t.Errorf("second pass changed content: %v", twice.Changes)
	}
}
