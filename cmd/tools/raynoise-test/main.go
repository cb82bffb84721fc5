// Command raynoise-test runs raynoise against a table of known inputs and
// checks the uncertainty values it writes.
//
// Every case runs even after failures. The process exits 0 only when all
// cases pass.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/banshee-data/raycheck/internal/config"
	"github.com/banshee-data/raycheck/internal/harness"
	"github.com/banshee-data/raycheck/internal/monitoring"
	"github.com/banshee-data/raycheck/internal/reportchart"
	"github.com/banshee-data/raycheck/internal/resultsdb"
	"github.com/banshee-data/raycheck/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("raynoise-test", flag.ContinueOnError)
	fs.SetOutput(stderr)
	tool := fs.String("raynoise_exe", "", "path to the raynoise executable (required)")
	dataDir := fs.String("data_dir", "", "directory containing the input PLY files (required)")
	outputDir := fs.String("output_dir", "test_outputs", "directory for raynoise output files")
	casesPath := fs.String("cases", "", "JSON suite file replacing the built-in test cases")
	timeout := fs.Duration("timeout", 0, "per-case limit on raynoise run time (0 = none)")
	parallel := fs.Int("parallel", 1, "number of cases to run at once")
	resultsDB := fs.String("results_db", "", "SQLite file to record the run in")
	htmlReport := fs.String("html_report", "", "write an HTML chart of the run to this file")
	plotPNG := fs.String("plot_png", "", "write a PNG plot of tolerance ratios to this file")
	printCases := fs.Bool("print_cases", false, "print the built-in test cases as suite JSON and exit")
	verbose := fs.Bool("v", false, "verbose logging")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	logger := log.New(stderr, "", log.LstdFlags)
	monitoring.SetLogger(logger.Printf)
	monitoring.SetVerbose(*verbose)

	if *showVersion {
		fmt.Fprintln(stdout, version.String("raynoise-test"))
		return 0
	}
	if *printCases {
		if err := config.WriteSuite(stdout, harness.DefaultCases()); err != nil {
			logger.Printf("Error: %v", err)
			return 1
		}
		return 0
	}
	if *tool == "" || *dataDir == "" {
		fmt.Fprintln(stderr, "Error: --raynoise_exe and --data_dir are required")
		fs.Usage()
		return 1
	}

	cases := harness.DefaultCases()
	if *casesPath != "" {
		suite, err := config.LoadSuite(*casesPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		cases = suite.TestCases
		if *timeout == 0 {
			// Validated by LoadSuite.
			*timeout, _ = suite.GetTimeout()
		}
	}

	runner := harness.NewRunner(*tool, *dataDir, *outputDir)
	runner.Trace = stdout
	runner.Timeout = *timeout
	runner.Parallel = *parallel

	if err := runner.Preflight(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	runner.WriteBanner(stdout)

	report := runner.Run(ctx, cases)
	report.WriteSummary(stdout)

	if *resultsDB != "" {
		if err := saveReport(ctx, *resultsDB, report); err != nil {
			logger.Printf("warning: could not record run %s: %v", report.RunID, err)
		} else {
			monitoring.Debugf("recorded run %s in %s", report.RunID, *resultsDB)
		}
	}
	if *htmlReport != "" {
		if err := writeHTML(*htmlReport, report); err != nil {
			logger.Printf("warning: could not write %s: %v", *htmlReport, err)
		}
	}
	if *plotPNG != "" {
		if err := reportchart.SavePNG(*plotPNG, report); err != nil {
			logger.Printf("warning: %v", err)
		}
	}
	monitoring.Debugf("run %s took %s", report.RunID, report.Duration.Round(time.Millisecond))
	return harness.Exit(report)
}

func writeHTML(path string, report *harness.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := reportchart.WriteHTML(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func saveReport(ctx context.Context, path string, report *harness.Report) error {
	db, err := resultsdb.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.SaveReport(ctx, report)
}
