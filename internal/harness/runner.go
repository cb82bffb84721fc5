package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/raycheck/internal/fsutil"
	"github.com/banshee-data/raycheck/internal/monitoring"
	"github.com/banshee-data/raycheck/internal/ply"
	"github.com/banshee-data/raycheck/internal/security"
	"github.com/banshee-data/raycheck/internal/timeutil"
)

// Runner executes test cases against one raynoise binary.
type Runner struct {
	Tool      string
	DataDir   string
	OutputDir string

	Exec  Executor
	FS    fsutil.FileSystem
	Clock timeutil.Clock

	// Timeout bounds each raynoise invocation. Zero means no limit.
	Timeout time.Duration
	// Parallel is the number of cases run at once. Values below 2 run the
	// table sequentially.
	Parallel int
	// Trace receives the human-readable per-case report. Nil discards it.
	Trace io.Writer

	traceMu sync.Mutex
}

// NewRunner returns a Runner that executes real subprocesses against the
// OS filesystem.
func NewRunner(tool, dataDir, outputDir string) *Runner {
	return &Runner{
		Tool:      tool,
		DataDir:   dataDir,
		OutputDir: outputDir,
		Exec:      CommandExecutor{},
		FS:        fsutil.OSFileSystem{},
		Clock:     timeutil.RealClock{},
	}
}

func (r *Runner) clock() timeutil.Clock {
	if r.Clock == nil {
		return timeutil.RealClock{}
	}
	return r.Clock
}

func (r *Runner) trace() io.Writer {
	if r.Trace == nil {
		return io.Discard
	}
	return r.Trace
}

// Preflight checks that the tool is a regular file and the data directory
// exists, and creates the output directory when it is missing.
func (r *Runner) Preflight() error {
	st, err := r.FS.Stat(r.Tool)
	if err != nil || st.IsDir() {
		return fmt.Errorf("raynoise executable not found at %s", r.Tool)
	}
	st, err = r.FS.Stat(r.DataDir)
	if err != nil || !st.IsDir() {
		return fmt.Errorf("test data directory not found at %s", r.DataDir)
	}
	if !r.FS.Exists(r.OutputDir) {
		if err := r.FS.MkdirAll(r.OutputDir, 0o755); err != nil {
			return fmt.Errorf("could not create output directory %s: %w", r.OutputDir, err)
		}
		fmt.Fprintf(r.trace(), "Created output directory: %s\n", r.OutputDir)
	}
	return nil
}

// WriteBanner prints the run configuration.
func (r *Runner) WriteBanner(w io.Writer) {
	fmt.Fprintf(w, "Using raynoise executable: %s\n", r.Tool)
	fmt.Fprintf(w, "Using test data directory: %s\n", r.DataDir)
	fmt.Fprintf(w, "Using output directory: %s\n", r.OutputDir)
	fmt.Fprintf(w, "Float comparison tolerance (rel and abs): %g\n", Tolerance)
}

// Run executes every case and aggregates the results. A failing case never
// stops the run; Report.Cases keeps the order of cases.
func (r *Runner) Run(ctx context.Context, cases []TestCase) *Report {
	report := &Report{
		RunID:     uuid.NewString(),
		Tool:      r.Tool,
		StartedAt: r.clock().Now(),
		Cases:     make([]CaseResult, len(cases)),
	}
	for i, tc := range cases {
		report.Cases[i] = CaseResult{Name: tc.Name, Status: StatusPending}
	}
	monitoring.Debugf("harness: run %s starting %d cases (parallel=%d)", report.RunID, len(cases), r.Parallel)

	if r.Parallel < 2 {
		for i, tc := range cases {
			report.Cases[i] = r.runCase(ctx, tc, r.trace())
		}
	} else {
		var g errgroup.Group
		g.SetLimit(r.Parallel)
		for i, tc := range cases {
			g.Go(func() error {
				var buf bytes.Buffer
				report.Cases[i] = r.runCase(ctx, tc, &buf)
				r.traceMu.Lock()
				defer r.traceMu.Unlock()
				_, err := r.trace().Write(buf.Bytes())
				return err
			})
		}
		if err := g.Wait(); err != nil {
			monitoring.Logf("harness: trace write failed: %v", err)
		}
	}

	report.Duration = r.clock().Since(report.StartedAt)
	report.tally()
	monitoring.Debugf("harness: run %s finished: %d passed, %d failed", report.RunID, report.Passed, report.Failed)
	return report
}

func (r *Runner) runCase(ctx context.Context, tc TestCase, w io.Writer) (res CaseResult) {
	res = CaseResult{Name: tc.Name, Status: StatusPending}
	start := r.clock().Now()
	defer func() {
		res.Duration = r.clock().Since(start)
		if res.Status == StatusFailed {
			fmt.Fprintf(w, "--- Test Case %s: FAILED ---\n", tc.Name)
		} else {
			fmt.Fprintf(w, "--- Test Case %s: PASSED ---\n", tc.Name)
		}
	}()

	fmt.Fprintf(w, "\n--- Running Test Case: %s ---\n", tc.Name)

	input, err := security.JoinWithinDirectory(r.DataDir, tc.InputFile)
	if err != nil {
		fmt.Fprintf(w, "ERROR: invalid input file for %s: %v\n", tc.Name, err)
		res.fail(ReasonExecFailure, "invalid input file: %v", err)
		return res
	}
	output, err := security.JoinWithinDirectory(r.OutputDir, security.CaseOutputName(tc.Name))
	if err != nil {
		fmt.Fprintf(w, "ERROR: invalid output file for %s: %v\n", tc.Name, err)
		res.fail(ReasonExecFailure, "invalid output file: %v", err)
		return res
	}
	res.Input, res.Output = input, output
	fmt.Fprintf(w, "Input PLY: %s\n", input)
	fmt.Fprintf(w, "Output PLY: %s\n", output)

	args := append([]string{input, output}, tc.Args...)
	fmt.Fprintf(w, "Executing: %s\n", strings.Join(append([]string{r.Tool}, args...), " "))

	// A stale output from an earlier run must not satisfy this one.
	if r.FS.Exists(output) {
		if err := r.FS.Remove(output); err != nil {
			monitoring.Logf("harness: could not remove stale output %s: %v", output, err)
		}
	}

	res.Status = StatusRunning
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	out, err := r.Exec.Run(runCtx, r.Tool, args...)
	res.ExitCode, res.Stderr = out.ExitCode, out.Stderr
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintf(w, "ERROR: raynoise timed out for %s after %s\n", tc.Name, r.Timeout)
		res.fail(ReasonTimeout, "timed out after %s", r.Timeout)
		return res
	case err != nil:
		fmt.Fprintf(w, "ERROR: Failed to run raynoise for %s: %v\n", tc.Name, err)
		res.fail(ReasonExecFailure, "%v", err)
		return res
	case out.ExitCode != 0:
		fmt.Fprintf(w, "ERROR: raynoise execution failed for %s!\n", tc.Name)
		fmt.Fprintf(w, "Return code: %d\n", out.ExitCode)
		fmt.Fprintf(w, "Stdout:\n%s\n", out.Stdout)
		fmt.Fprintf(w, "Stderr:\n%s\n", out.Stderr)
		res.fail(ReasonSubprocessFailure, "exit code %d: %s", out.ExitCode, strings.TrimSpace(out.Stderr))
		return res
	}
	if out.Stderr != "" {
		fmt.Fprintf(w, "raynoise stderr (even on success):\n%s\n", out.Stderr)
	}

	reader, closeFn, err := r.openOutput(output)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(w, "ERROR: Output PLY file not found: %s\n", output)
			res.fail(ReasonOutputMissing, "output not found: %s", output)
		} else {
			fmt.Fprintf(w, "ERROR: Failed to read or parse output PLY file %s: %v\n", output, err)
			res.fail(ReasonDecodeFailure, "%v", err)
		}
		return res
	}
	defer closeFn()

	r.verify(reader, tc, &res, w)
	if res.Status != StatusFailed {
		res.Status = StatusPassed
	}
	return res
}

func (r *Runner) openOutput(path string) (*ply.Reader, func(), error) {
	f, err := r.FS.Open(path)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { f.Close() }

	ra, ok := f.(io.ReaderAt)
	if !ok {
		closeFn()
		return nil, nil, fmt.Errorf("%s does not support random access", path)
	}
	st, err := f.Stat()
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	reader, err := ply.NewReader(ra, st.Size())
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return reader, closeFn, nil
}

// verify compares every expected field of every point. It records all
// failures rather than stopping at the first.
func (r *Runner) verify(reader *ply.Reader, tc TestCase, res *CaseResult, w io.Writer) {
	for _, pc := range tc.Points {
		fmt.Fprintf(w, "  Checking Point Index: %d\n", pc.Index)

		if _, err := ply.Lookup(reader, pc.Index, nil); err != nil {
			if errors.Is(err, ply.ErrIndexOutOfRange) {
				fmt.Fprintf(w, "    ERROR: Point index %d is out of bounds for output PLY (num_points: %d).\n", pc.Index, reader.Count())
				res.fail(ReasonIndexOutOfRange, "%v", err)
			} else {
				fmt.Fprintf(w, "    ERROR: Failed to read point %d: %v\n", pc.Index, err)
				res.fail(ReasonDecodeFailure, "%v", err)
			}
			continue
		}

		for _, field := range pc.Fields() {
			expected := pc.Expected[field]
			check := Check{Index: pc.Index, Field: field, Expected: expected}

			values, err := ply.Lookup(reader, pc.Index, []string{field})
			if err != nil {
				check.Reason = ReasonDecodeFailure
				if errors.Is(err, ply.ErrFieldNotFound) {
					check.Reason = ReasonFieldNotFound
					fmt.Fprintf(w, "    ERROR: Expected field '%s' not found in output PLY for point %d.\n", field, pc.Index)
				} else {
					fmt.Fprintf(w, "    ERROR: Failed to read '%s' for point %d: %v\n", field, pc.Index, err)
				}
				res.Checks = append(res.Checks, check)
				res.fail(check.Reason, "%v", err)
				continue
			}

			check.Actual = values[0]
			check.Passed = WithinTolerance(check.Actual, expected)
			if check.Passed {
				fmt.Fprintf(w, "    PASS: %s - Actual: %.15f, Expected: %.15f\n", field, check.Actual, expected)
			} else {
				check.Reason = ReasonToleranceMismatch
				fmt.Fprintf(w, "    FAIL: %s - Actual: %.15f, Expected: %.15f, Diff: %.15e\n", field, check.Actual, expected, check.Diff())
				res.fail(ReasonToleranceMismatch, "%s at point %d: got %.15f, want %.15f", field, pc.Index, check.Actual, expected)
			}
			res.Checks = append(res.Checks, check)
		}
	}
}

// Exit maps a report to a process exit status.
func Exit(report *Report) int {
	if report.OK() {
		return 0
	}
	return 1
}

