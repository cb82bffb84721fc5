// Package harness runs raynoise as a black-box subprocess and verifies the
// uncertainty values it writes against a table of expected results.
//
// Each TestCase names an input cloud, extra raynoise arguments and the
// points to check. Runner.Run executes every case, never stopping at the
// first failure, and returns a Report whose counts drive the exit status of
// cmd/tools/raynoise-test.
package harness
