// Package testutil provides shared test utilities and fixtures.
//
// This package centralises PLY fixture builders and the fake raynoise
// executable so conversion, harness and CLI tests share one definition.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/banshee-data/raycheck/internal/monitoring"
	"github.com/banshee-data/raycheck/internal/ply"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Mute silences monitoring.Logf for the duration of the test.
func Mute(t testing.TB) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

// WriteFile writes data to dir/name and returns the full path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	AssertNoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	AssertNoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// BinaryPLY encodes rows as a binary_little_endian vertex element with the
// given properties. Only float, double and uchar properties are allowed.
func BinaryPLY(t testing.TB, props []ply.Property, rows ...[]float64) []byte {
	t.Helper()
	fields := make([]ply.Field, len(props))
	for i, p := range props {
		fields[i] = ply.StoredField(p.Name, p.Kind)
	}
	schema, err := ply.NewSchema("fixture", fields...)
	AssertNoError(t, err)

	cloud, err := ply.NewCloud(schema.Layout(), rows...)
	AssertNoError(t, err)

	var buf bytes.Buffer
	AssertNoError(t, ply.Encode(&buf, schema, cloud))
	return buf.Bytes()
}

// UncertaintyPLY encodes rows of the five variance columns, in
// ply.UncertaintyFields order.
func UncertaintyPLY(t testing.TB, rows ...[]float64) []byte {
	t.Helper()
	return BinaryPLY(t, ply.Uncertainty.Outputs(), rows...)
}

// FakeTool writes an executable POSIX shell script standing in for raynoise.
// The script receives the input path as $1, the output path as $2 and any
// case arguments after them.
func FakeTool(t testing.TB, dir, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool needs a POSIX shell")
	}
	AssertNoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "raynoise")
	AssertNoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}
