package domain

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthorized is returned when a bearer token is missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrServerMisconfigured is returned when the ingestion secret is not configured.
	ErrServerMisconfigured = errors.New("server misconfigured: DEVELOPER_AGENT_TOKEN missing")
	// ErrTargetNotFound is returned when a patch target does not exist.
	ErrTargetNotFound = errors.New("patch target not found")
)

// ValidationError carries itemized problems with a request payload
type ValidationError struct {
	Message string
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Details, "; ")
}
