// Package statusserver serves a read-only HTTP view of a running
// tournament: a liveness probe and the current standings. It never
// mutates tournament state — mirrors the teacher's /health and
// /metrics routes in main.go, built on the same gorilla/mux router.
package statusserver

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// StandingsProvider supplies the current standings snapshot on demand.
type StandingsProvider interface {
	Standings() interface{}
}

// Server is the optional status HTTP server.
type Server struct {
	router *mux.Router
}

// New builds a Server backed by provider.
func New(provider StandingsProvider) *Server {
	r := mux.NewRouter()
	s := &Server{router: r}

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/standings", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(provider.Standings()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}).Methods(http.MethodGet)

	return s
}

// ListenAndServe starts the status server on addr. It blocks; run it
// in its own goroutine.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.router)
}
