// Package debugserver exposes an EventLog's Prometheus metrics and a
// JSON view-inspection endpoint over plain HTTP, replacing the
// teacher's gRPC worker-registration server — eventfold has no
// distributed protocol to serve, only local introspection.
package debugserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ChuLiYu/eventfold/internal/eventlog"
)

// Server serves /metrics (Prometheus text format), /stats (directory,
// active log size and view names as JSON) and /views/<name>, which
// refreshes every view and answers with the view's name as JSON; it does
// not return the view's state.
type Server struct {
	el   *eventlog.EventLog
	mux  *http.ServeMux
	http *http.Server
}

// New builds a Server for el listening on addr (e.g. ":9090").
func New(el *eventlog.EventLog, addr string) *Server {
	mux := http.NewServeMux()
	s := &Server{el: el, mux: mux, http: &http.Server{Addr: addr, Handler: mux}}

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/views/", s.handleView)
	mux.HandleFunc("/stats", s.handleStats)

	return s
}

// ListenAndServe blocks serving HTTP until the server is shut down or
// fails to bind.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	size, err := s.el.Reader().ActiveLogSize()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"dir":              s.el.Dir(),
		"active_log_bytes": size,
		"views":            s.el.ViewNames(),
	})
}

// handleView refreshes every view and confirms the named view exists;
// it does not dump state or attempt a typed downcast, since the handler
// has no type parameter to bind to the requested view's state type, so
// it reports only what the view's registration reveals generically —
// the caller is expected to use the typed eventlog.View[S] API in
// process for anything beyond a quick look.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[len("/views/"):]
	if name == "" {
		http.Error(w, "view name required", http.StatusBadRequest)
		return
	}

	found := false
	for _, n := range s.el.ViewNames() {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		http.Error(w, fmt.Sprintf("unknown view %q", name), http.StatusNotFound)
		return
	}

	if err := s.el.RefreshAll(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"view": name,
		"note": "use the in-process eventlog.View[S](el, name) API for typed access",
	})
}
