package resultsdb

import (
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/raycheck/internal/httputil"
)

// AttachAdminRoutes mounts a JSON run listing at /api/runs and
// /api/runs/{id}/checks, plus a live SQL console over the results database
// under /debug/tailsql/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	mux.HandleFunc("GET /api/runs", db.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}/checks", db.handleChecks)

	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return err
	}
	tsql.SetDB("sqlite://results.db", db.DB, &tailsql.DBOptions{
		Label: "Verification results",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	return nil
}

func (db *DB) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := db.Runs(r.Context())
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, runs)
}

func (db *DB) handleChecks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	found, err := db.HasRun(r.Context(), id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if !found {
		httputil.NotFound(w, "unknown run")
		return
	}
	checks, err := db.Checks(r.Context(), id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, checks)
}
