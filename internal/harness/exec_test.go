package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/raycheck/internal/testutil"
)

func TestCommandExecutor(t *testing.T) {
	dir := t.TempDir()

	t.Run("captures output and exit code", func(t *testing.T) {
		tool := testutil.FakeTool(t, filepath.Join(dir, "fail"), `echo out; echo boom >&2; exit 3`)
		res, err := CommandExecutor{}.Run(context.Background(), tool)
		require.NoError(t, err)
		assert.Equal(t, ExecResult{ExitCode: 3, Stdout: "out\n", Stderr: "boom\n"}, res)
	})

	t.Run("missing program", func(t *testing.T) {
		_, err := CommandExecutor{}.Run(context.Background(), filepath.Join(dir, "does-not-exist"))
		assert.Error(t, err)
	})

	t.Run("deadline", func(t *testing.T) {
		tool := testutil.FakeTool(t, filepath.Join(dir, "slow"), `exec sleep 5`)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := CommandExecutor{}.Run(ctx, tool)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

// TestRunnerWithSubprocess drives a real shell script standing in for
// raynoise that copies pre-built outputs into place.
func TestRunnerWithSubprocess(t *testing.T) {
	testutil.Mute(t)

	dir := t.TempDir()
	fixtures := filepath.Join(dir, "fixtures")
	dataDir := filepath.Join(dir, "data")
	outDir := filepath.Join(dir, "outputs")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	cases := DefaultCases()
	for _, tc := range cases {
		testutil.WriteFile(t, fixtures, tc.Name+".ply", expectedPLY(t, tc))
	}
	// Mixed_SF1 has no fixture, so the copy fails and raynoise exits non-zero.
	require.NoError(t, os.Remove(filepath.Join(fixtures, "Mixed_SF1.ply")))

	tool := testutil.FakeTool(t, filepath.Join(dir, "bin"),
		`echo "warming up" >&2
cp "`+fixtures+`/$(basename "$2")" "$2"`)

	r := NewRunner(tool, dataDir, outDir)
	require.NoError(t, r.Preflight())
	report := r.Run(context.Background(), cases)

	assert.Equal(t, 5, report.Passed)
	assert.Equal(t, 1, report.Failed)
	last := report.Cases[5]
	assert.Equal(t, ReasonSubprocessFailure, last.Reason)
	assert.NotZero(t, last.ExitCode)
}
