// Package runlogs persists ingested CI logs and their analysis under a
// per-run directory.
package runlogs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// MaxRunIDLength bounds normalized run ids
const MaxRunIDLength = 128

// File names inside a run directory
const (
	PlaywrightLogFile = "playwright.log"
	BackendLogFile    = "backend.log"
	AnalysisFile      = "analysis.json"
	TriggersFile      = "triggers.json"
)

var unsafeRunIDChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// NormalizeRunID maps an arbitrary run id onto a single safe path segment
func NormalizeRunID(raw string) string {
	s := unsafeRunIDChars.ReplaceAllString(raw, "_")
	if len(s) > MaxRunIDLength {
		s = s[:MaxRunIDLength]
	}
	if s == "" || s == "." || s == ".." {
		return "unknown"
	}
	return s
}

// Store writes run directories below a primary root, falling back to a
// second root when the primary cannot be created.
type Store struct {
	primary  string
	fallback string
}

// NewStore creates a store over the two roots
func NewStore(primary, fallback string) *Store {
	return &Store{primary: primary, fallback: fallback}
}

// Root returns the root in use, creating it if needed
func (s *Store) Root() (string, error) {
	if err := os.MkdirAll(s.primary, 0755); err == nil {
		return s.primary, nil
	}
	if err := os.MkdirAll(s.fallback, 0755); err != nil {
		return "", fmt.Errorf("creating logs root: %w", err)
	}
	return s.fallback, nil
}

// Roots returns both configured roots
func (s *Store) Roots() []string {
	return []string{s.primary, s.fallback}
}

// RunDir returns the directory for a normalized run id, creating it
func (s *Store) RunDir(runID string) (string, error) {
	root, err := s.Root()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	return dir, nil
}

// Find returns the existing directory of a run in either root
func (s *Store) Find(runID string) (string, bool) {
	for _, root := range s.Roots() {
		dir := filepath.Join(root, runID)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, true
		}
	}
	return "", false
}

// WriteFile replaces path atomically. Concurrent writers of the same path
// leave one complete version behind. An existing file keeps its permission
// bits; new files are created 0644.
func WriteFile(path string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, mode); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}

// WriteJSON writes v as indented JSON with WriteFile
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteFile(path, append(data, '\n'))
}

// ReadJSON decodes the JSON file at path into v
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
