package httpapi

import "net/http"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.StatusRep == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	h := s.StatusRep.Health(r.Context())
	code := http.StatusOK
	if !h.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	embedCol := "embedding"
	if s.StatusRep != nil {
		h := s.StatusRep.Health(r.Context())
		for _, c := range h.Components {
			if c.Name == "store" && !c.OK {
				dbStatus = "error"
			}
		}
		st := s.StatusRep.Status(s.LastMigration)
		embedCol = st.EmbeddingColumn
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"db":           map[string]any{"status": dbStatus},
		"embedding_col": embedCol,
	})
}

func (s *Server) handleRecentErrors(w http.ResponseWriter, r *http.Request) {
	n := 100
	if s.StatusRep == nil {
		writeJSON(w, http.StatusOK, map[string]any{"errors": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"errors": s.StatusRep.RecentErrors(n)})
}
