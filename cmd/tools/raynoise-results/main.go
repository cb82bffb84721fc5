// Command raynoise-results lists or serves the runs recorded by
// raynoise-test --results_db.
//
//	raynoise-results -results_db results.db            # print runs
//	raynoise-results -results_db results.db -listen :8090
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/raycheck/internal/monitoring"
	"github.com/banshee-data/raycheck/internal/resultsdb"
	"github.com/banshee-data/raycheck/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("raynoise-results", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("results_db", "", "SQLite results file (required)")
	listen := fs.String("listen", "", "serve the JSON API and SQL console on this address instead of printing")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.String("raynoise-results"))
		return 0
	}
	if *dbPath == "" {
		fmt.Fprintln(stderr, "Error: --results_db is required")
		fs.Usage()
		return 1
	}

	logger := log.New(stderr, "", log.LstdFlags)
	monitoring.SetLogger(logger.Printf)

	if _, err := os.Stat(*dbPath); err != nil {
		logger.Printf("results DB %s not accessible: %v", *dbPath, err)
		return 1
	}
	db, err := resultsdb.Open(*dbPath)
	if err != nil {
		logger.Printf("failed to open results DB: %v", err)
		return 1
	}
	defer db.Close()

	if *listen == "" {
		if err := printRuns(ctx, db, stdout); err != nil {
			logger.Printf("failed to list runs: %v", err)
			return 1
		}
		return 0
	}

	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		logger.Printf("failed to attach routes: %v", err)
		return 1
	}
	srv := &http.Server{Addr: *listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	logger.Printf("serving results on %s (API /api/runs, SQL /debug/tailsql/)", *listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("server failed: %v", err)
		return 1
	}
	return 0
}

func printRuns(ctx context.Context, db *resultsdb.DB, w io.Writer) error {
	runs, err := db.Runs(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tTOTAL\tPASSED\tFAILED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.RunID, r.StartedAt.UTC().Format(time.RFC3339), r.Total, r.Passed, r.Failed, r.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}
