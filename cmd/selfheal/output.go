package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/hochfrequenz/e2e-self-heal/internal/runlogs"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

// exitError ends the process with code after the result was printed
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func exitWith(code int, format string, args ...any) error {
	return &exitError{code: code, msg: fmt.Sprintf(format, args...)}
}

// failureOutput is printed on stdout when a command cannot produce its result
type failureOutput struct {
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// fail prints a JSON error object and returns an exitError with code 1
func fail(reason string, err error) error {
	if perr := printJSON(failureOutput{Status: "error", Reason: reason, Message: err.Error()}); perr != nil {
		return perr
	}
	return exitWith(1, "%s", err)
}

// printJSON writes v to stdout. stdout carries only machine readable output.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeReport stores v as name inside the agent output directory
func writeReport(name string, v any) (string, error) {
	dir := cfg.ProjectPath(cfg.Agents.OutputDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := runlogs.WriteJSON(path, v); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}

func summary(c *color.Color, format string, args ...any) {
	c.Fprintf(os.Stderr, format+"\n", args...)
}
