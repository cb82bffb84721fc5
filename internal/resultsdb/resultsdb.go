// Package resultsdb persists verification reports in SQLite so runs can be
// compared over time.
package resultsdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/raycheck/internal/harness"
	"github.com/banshee-data/raycheck/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the results database at path and applies
// pending migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// dsn applies the pragmas to every pooled connection.
func dsn(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// MigrateUp applies every embedded migration not yet recorded.
func (db *DB) MigrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close the shared connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied schema version. It returns 0, false,
// nil before any migration has run.
func (db *DB) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return monitoring.Verbose()
}

// SaveReport stores a report with all of its cases and checks in one
// transaction.
func (db *DB) SaveReport(ctx context.Context, r *harness.Report) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO harness_runs (run_id, tool, started_at_ns, duration_ns, total, passed, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Tool, r.StartedAt.UnixNano(), int64(r.Duration), r.Total, r.Passed, r.Failed,
	); err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}

	caseStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO harness_cases (run_id, case_index, name, status, reason, detail, input, output, exit_code, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer caseStmt.Close()

	checkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO harness_checks (run_id, case_index, check_index, point_index, field, expected, actual, passed, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer checkStmt.Close()

	for i, c := range r.Cases {
		if _, err := caseStmt.ExecContext(ctx,
			r.RunID, i, c.Name, string(c.Status), string(c.Reason), c.Detail,
			c.Input, c.Output, c.ExitCode, int64(c.Duration),
		); err != nil {
			return fmt.Errorf("insert case %s: %w", c.Name, err)
		}
		for j, ch := range c.Checks {
			if _, err := checkStmt.ExecContext(ctx,
				r.RunID, i, j, ch.Index, ch.Field, ch.Expected, storedActual(ch), ch.Passed, string(ch.Reason),
			); err != nil {
				return fmt.Errorf("insert check %s/%s: %w", c.Name, ch.Field, err)
			}
		}
	}

	return tx.Commit()
}

// storedActual is NULL for a field that was never read and for a
// non-finite value.
func storedActual(ch harness.Check) sql.NullFloat64 {
	switch ch.Reason {
	case harness.ReasonFieldNotFound, harness.ReasonDecodeFailure:
		return sql.NullFloat64{}
	}
	if math.IsNaN(ch.Actual) || math.IsInf(ch.Actual, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: ch.Actual, Valid: true}
}

// RunSummary is one stored run without its cases.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	Tool      string        `json:"tool"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Total     int           `json:"total"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
}

// Runs lists stored runs, newest first.
func (db *DB) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, tool, started_at_ns, duration_ns, total, passed, failed
		FROM harness_runs
		ORDER BY started_at_ns DESC, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var startedNs, durationNs int64
		if err := rows.Scan(&s.RunID, &s.Tool, &startedNs, &durationNs, &s.Total, &s.Passed, &s.Failed); err != nil {
			return nil, err
		}
		s.StartedAt = time.Unix(0, startedNs)
		s.Duration = time.Duration(durationNs)
		out = append(out, s)
	}
	return out, rows.Err()
}

// CheckRow is one stored field comparison, labelled with its case. Actual
// is nil when no finite value was read.
type CheckRow struct {
	Case     string         `json:"case"`
	Index    int            `json:"index"`
	Field    string         `json:"field"`
	Expected float64        `json:"expected"`
	Actual   *float64       `json:"actual"`
	Passed   bool           `json:"passed"`
	Reason   harness.Reason `json:"reason,omitempty"`
}

// Checks returns every stored check of a run in case then check order.
func (db *DB) Checks(ctx context.Context, runID string) ([]CheckRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.name, k.point_index, k.field, k.expected, k.actual, k.passed, k.reason
		FROM harness_checks k
		JOIN harness_cases c ON c.run_id = k.run_id AND c.case_index = k.case_index
		WHERE k.run_id = ?
		ORDER BY k.case_index, k.check_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CheckRow{}
	for rows.Next() {
		var r CheckRow
		var actual sql.NullFloat64
		var reason string
		if err := rows.Scan(&r.Case, &r.Index, &r.Field, &r.Expected, &actual, &r.Passed, &reason); err != nil {
			return nil, err
		}
		if actual.Valid {
			r.Actual = &actual.Float64
		}
		r.Reason = harness.Reason(reason)
		out = append(out, r)
	}
	return out, rows.Err()
}

// HasRun reports whether a run with runID is stored.
func (db *DB) HasRun(ctx context.Context, runID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM harness_runs WHERE run_id = ?`, runID).Scan(&n)
	return n > 0, err
}

// CaseStatuses maps each case name of a run to its stored status.
func (db *DB) CaseStatuses(ctx context.Context, runID string) (map[string]harness.Status, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name, status FROM harness_cases WHERE run_id = ? ORDER BY case_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]harness.Status)
	for rows.Next() {
		var name, status string
		if err := rows.Scan(&name, &status); err != nil {
			return nil, err
		}
		out[name] = harness.Status(status)
	}
	return out, rows.Err()
}
