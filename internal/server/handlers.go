package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
)

type healthResponse struct {
	Status    string `json:"status"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Mode      string `json:"mode"`
	Trace     string `json:"trace"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	traceState := "disabled"
	if s.store != nil {
		traceState = "enabled"
	}
	respondOK(w, reqID, healthResponse{
		Status:    "healthy",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Mode:      string(s.sched.Mode()),
		Trace:     traceState,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, s.sched.Stats())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.store == nil {
		respondError(w, reqID, http.StatusNotFound, "run history is disabled")
		return
	}
	runs, err := s.store.ListRuns(r.Context(), 50)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		respondError(w, reqID, http.StatusInternalServerError, "list runs failed")
		return
	}
	respondOK(w, reqID, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.store == nil {
		respondError(w, reqID, http.StatusNotFound, "run history is disabled")
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("get run", "error", err)
		respondError(w, reqID, http.StatusInternalServerError, "get run failed")
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, "run not found")
		return
	}
	respondOK(w, reqID, run)
}
