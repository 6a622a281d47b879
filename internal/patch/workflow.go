package patch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidWorkflow is returned when patched workflow content is not valid YAML
var ErrInvalidWorkflow = errors.New("invalid workflow yaml")

const defaultStepIndent = "      "

// Step names double as patch signatures.
const (
	CreateTestUserStep  = "Create test user"
	DBEnvStep           = "Export SYS_DB environment (self-heal)"
	DjangoSettingsStep  = "Export Django settings module (self-heal)"
	DjangoSettingsValue = "praxi_backend.settings.dev"
)

var (
	stepsKey  = regexp.MustCompile(`^\s*steps:\s*$`)
	stepStart = regexp.MustCompile(`^(\s*)- `)
)

// firstStep returns the first list item line under the first steps: key and
// its indentation.
func firstStep(workflow string) (line, indent string, ok bool) {
	inSteps := false
	for _, l := range strings.Split(workflow, "\n") {
		if !inSteps {
			inSteps = stepsKey.MatchString(l)
			continue
		}
		if strings.TrimSpace(l) == "" || strings.HasPrefix(strings.TrimSpace(l), "#") {
			continue
		}
		if m := stepStart.FindStringSubmatch(l); m != nil {
			return l, m[1], true
		}
		return "", "", false
	}
	return "", "", false
}

func stepIndent(workflow string) string {
	if _, indent, ok := firstStep(workflow); ok {
		return indent
	}
	return defaultStepIndent
}

// indentStep renders a step whose first line starts with "- " at indent.
func indentStep(indent string, lines ...string) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		if l == "" {
			continue
		}
		b.WriteString(indent)
		b.WriteString(l)
	}
	return b.String()
}

// ValidateWorkflow checks that content parses as a YAML mapping
func ValidateWorkflow(content string) error {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}
	if doc == nil {
		return fmt.Errorf("%w: empty document", ErrInvalidWorkflow)
	}
	return nil
}

// CreateTestUser appends a step that provisions the E2E user through the
// Django shell.
func CreateTestUser(target, workflow string) Operation {
	ind := stepIndent(workflow)
	body := indentStep(ind,
		"- name: "+CreateTestUserStep,
		"  working-directory: django",
		"  env:",
		"    DJANGO_SETTINGS_MODULE: "+DjangoSettingsValue,
		"    SYS_DB_NAME: praxi",
		"    SYS_DB_USER: praxi",
		"    SYS_DB_PASSWORD: praxi",
		"    SYS_DB_HOST: 127.0.0.1",
		"    SYS_DB_PORT: 5432",
		"  run: |",
		`    echo "`,
		"    from django.contrib.auth import get_user_model",
		"    User = get_user_model()",
		"    if not User.objects.filter(username='test').exists():",
		"        User.objects.create_user('test', password='test123')",
		`    " | python manage.py shell`,
	) + "\n"
	return Operation{
		Target:    target,
		Mode:      ModeAppend,
		Body:      body,
		Signature: "name: " + CreateTestUserStep,
		Source:    "CREATE_TEST_USER",
		Validate:  ValidateWorkflow,
	}
}

// FixDBEnvVariables inserts, ahead of the first step, a step mapping DB_*
// variables onto the SYS_DB_* names Django reads.
func FixDBEnvVariables(target, workflow string) Operation {
	marker, ind, _ := firstStep(workflow)
	body := indentStep(ind,
		"- name: "+DBEnvStep,
		"  run: |",
		`    echo "SYS_DB_NAME=${DB_NAME:-praxi}" >> "$GITHUB_ENV"`,
		`    echo "SYS_DB_USER=${DB_USER:-praxi}" >> "$GITHUB_ENV"`,
		`    echo "SYS_DB_PASSWORD=${DB_PASSWORD:-praxi}" >> "$GITHUB_ENV"`,
		`    echo "SYS_DB_HOST=${DB_HOST:-127.0.0.1}" >> "$GITHUB_ENV"`,
		`    echo "SYS_DB_PORT=${DB_PORT:-5432}" >> "$GITHUB_ENV"`,
	)
	return Operation{
		Target:    target,
		Mode:      ModeInsertBefore,
		Body:      body,
		Marker:    marker,
		Signature: "name: " + DBEnvStep,
		Source:    "FIX_DB_ENV_VARIABLES",
		Validate:  ValidateWorkflow,
	}
}

// FixDjangoSettings inserts, ahead of the first step, a step exporting
// DJANGO_SETTINGS_MODULE for the rest of the job.
func FixDjangoSettings(target, workflow string) Operation {
	marker, ind, _ := firstStep(workflow)
	body := indentStep(ind,
		"- name: "+DjangoSettingsStep,
		"  run: echo \"DJANGO_SETTINGS_MODULE="+DjangoSettingsValue+"\" >> \"$GITHUB_ENV\"",
	)
	return Operation{
		Target:    target,
		Mode:      ModeInsertBefore,
		Body:      body,
		Marker:    marker,
		Signature: "name: " + DjangoSettingsStep,
		Source:    "FIX_DJANGO_SETTINGS_MODULE",
		Validate:  ValidateWorkflow,
	}
}
