package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/pkg/models"
)

// handleAgents implements GET /api/agents and POST /api/agents.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		namespace := r.URL.Query().Get("namespace")
		agents, err := s.Store.ListAgents(r.Context(), namespace)
		if err != nil {
			s.writeError(w, "httpapi.handleAgents", errkind.New(errkind.Internal, "ListAgents", err))
			return
		}
		writeJSON(w, http.StatusOK, agents)

	case http.MethodPost:
		var agent models.Agent
		if err := json.NewDecoder(r.Body).Decode(&agent); err != nil || agent.ID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "id is required"})
			return
		}
		if err := s.Store.UpsertAgent(r.Context(), agent); err != nil {
			s.writeError(w, "httpapi.handleAgents", errkind.New(errkind.ConstraintViolation, "UpsertAgent", err))
			return
		}
		writeJSON(w, http.StatusOK, agent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAgentRotateKey implements POST /api/agents/{id}/rotate_key, issuing a
// fresh caller-side API token for the agent and persisting it on the row.
func (s *Server) handleAgentRotateKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/rotate_key") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/agents/"), "/rotate_key")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "agent id is required"})
		return
	}

	agent, err := s.Store.GetAgent(r.Context(), id)
	if err != nil {
		s.writeError(w, "httpapi.handleAgentRotateKey", errkind.New(errkind.NotFound, "GetAgent", err))
		return
	}

	key := make([]byte, 24)
	_, _ = rand.Read(key)
	agent.APIKey = hex.EncodeToString(key)

	if err := s.Store.UpsertAgent(r.Context(), agent); err != nil {
		s.writeError(w, "httpapi.handleAgentRotateKey", errkind.New(errkind.Internal, "UpsertAgent", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"agent_id": id, "api_key": agent.APIKey})
}
