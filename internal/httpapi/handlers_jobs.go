package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gasable/hub/internal/errkind"
)

// handleJobs implements GET /api/jobs?limit=&offset=, listing tracked
// async job records in insertion order.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Jobs == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 50
	}

	list, err := s.Jobs.List(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, "httpapi.handleJobs", errkind.New(errkind.Internal, "jobs.List", err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleJobByID implements GET /api/jobs/{id} and POST /api/jobs/{id}/cancel.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if s.Jobs == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if path == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	if strings.HasSuffix(path, "/cancel") {
		id := strings.TrimSuffix(path, "/cancel")
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := s.Jobs.Cancel(r.Context(), id); err != nil {
			s.writeError(w, "httpapi.handleJobByID", errkind.New(errkind.Internal, "jobs.Cancel", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	job, err := s.Jobs.Get(r.Context(), path)
	if err != nil {
		s.writeError(w, "httpapi.handleJobByID", errkind.New(errkind.Internal, "jobs.Get", err))
		return
	}
	if job == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}
