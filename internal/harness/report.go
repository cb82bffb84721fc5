package harness

import (
	"fmt"
	"io"
	"time"
)

// Status is the lifecycle state of a test case.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// Reason classifies why a case or a single check failed.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonExecFailure       Reason = "exec_failure"
	ReasonSubprocessFailure Reason = "subprocess_failure"
	ReasonTimeout           Reason = "timeout"
	ReasonOutputMissing     Reason = "output_missing"
	ReasonDecodeFailure     Reason = "decode_failure"
	ReasonIndexOutOfRange   Reason = "index_out_of_range"
	ReasonFieldNotFound     Reason = "field_not_found"
	ReasonToleranceMismatch Reason = "tolerance_mismatch"
)

// Check is the outcome of comparing one field at one point.
type Check struct {
	Index    int     `json:"index"`
	Field    string  `json:"field"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
	Passed   bool    `json:"passed"`
	Reason   Reason  `json:"reason,omitempty"`
}

// Diff is the absolute difference between actual and expected.
func (c Check) Diff() float64 {
	d := c.Actual - c.Expected
	if d < 0 {
		return -d
	}
	return d
}

// CaseResult is the outcome of one test case.
type CaseResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Reason   Reason        `json:"reason,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Input    string        `json:"input"`
	Output   string        `json:"output"`
	ExitCode int           `json:"exit_code"`
	Stderr   string        `json:"stderr,omitempty"`
	Checks   []Check       `json:"checks,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Passed reports whether the case finished successfully.
func (r *CaseResult) Passed() bool { return r.Status == StatusPassed }

// fail marks the case failed. The first reason recorded is kept.
func (r *CaseResult) fail(reason Reason, format string, args ...interface{}) {
	r.Status = StatusFailed
	if r.Reason == ReasonNone {
		r.Reason = reason
		r.Detail = fmt.Sprintf(format, args...)
	}
}

// Report aggregates a verification run.
type Report struct {
	RunID     string        `json:"run_id"`
	Tool      string        `json:"tool"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Total     int           `json:"total"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Cases     []CaseResult  `json:"cases"`
}

// OK reports whether every case passed.
func (r *Report) OK() bool { return r.Failed == 0 }

func (r *Report) tally() {
	r.Total = len(r.Cases)
	r.Passed, r.Failed = 0, 0
	for i := range r.Cases {
		if r.Cases[i].Passed() {
			r.Passed++
		} else {
			r.Failed++
		}
	}
}

// WriteSummary prints the closing totals.
func (r *Report) WriteSummary(w io.Writer) {
	fmt.Fprintln(w, "\n--- Test Summary ---")
	fmt.Fprintf(w, "Total test cases: %d\n", r.Total)
	fmt.Fprintf(w, "Passed: %d\n", r.Passed)
	fmt.Fprintf(w, "Failed: %d\n", r.Failed)
	if r.OK() {
		fmt.Fprintln(w, "All tests PASSED successfully!")
	} else {
		fmt.Fprintln(w, "Some tests FAILED.")
	}
}
