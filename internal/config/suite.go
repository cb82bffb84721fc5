// Package config loads verification suites from JSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/raycheck/internal/harness"
)

// maxSuiteSize caps suite files at 1MB.
const maxSuiteSize = 1 * 1024 * 1024

// Suite is the on-disk form of a test-case table.
type Suite struct {
	// Timeout bounds each raynoise invocation, e.g. "30s". Empty means no
	// limit unless the command line sets one.
	Timeout   string             `json:"timeout,omitempty"`
	TestCases []harness.TestCase `json:"test_cases"`
}

// GetTimeout parses Timeout. An empty value yields zero.
func (s *Suite) GetTimeout() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must be non-negative, got %s", s.Timeout)
	}
	return d, nil
}

// Validate checks that every case is runnable and names are unique, since
// case names determine output file names.
func (s *Suite) Validate() error {
	if len(s.TestCases) == 0 {
		return errors.New("suite has no test cases")
	}
	if _, err := s.GetTimeout(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(s.TestCases))
	for i, tc := range s.TestCases {
		if tc.Name == "" {
			return fmt.Errorf("test case %d: name is required", i)
		}
		if seen[tc.Name] {
			return fmt.Errorf("test case %q: duplicate name", tc.Name)
		}
		seen[tc.Name] = true
		if tc.InputFile == "" {
			return fmt.Errorf("test case %q: input_file is required", tc.Name)
		}
		if len(tc.Points) == 0 {
			return fmt.Errorf("test case %q: points_to_check is empty", tc.Name)
		}
		for _, pc := range tc.Points {
			if pc.Index < 0 {
				return fmt.Errorf("test case %q: index must be non-negative, got %d", tc.Name, pc.Index)
			}
			if len(pc.Expected) == 0 {
				return fmt.Errorf("test case %q: point %d has no expected_values", tc.Name, pc.Index)
			}
		}
	}
	return nil
}

// LoadSuite reads and validates a suite file.
func LoadSuite(path string) (*Suite, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("suite file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat suite file: %w", err)
	}
	if fileInfo.Size() > maxSuiteSize {
		return nil, fmt.Errorf("suite file too large: %d bytes (max %d)", fileInfo.Size(), maxSuiteSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	var s Suite
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse suite JSON: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return &s, nil
}

// WriteSuite writes cases as indented suite JSON.
func WriteSuite(w io.Writer, cases []harness.TestCase) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Suite{TestCases: cases})
}
