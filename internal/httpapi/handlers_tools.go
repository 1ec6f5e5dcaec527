package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/internal/tools/policy"
	"github.com/gasable/hub/pkg/models"
)

// handleMCPTools implements GET/POST /api/mcp_tools: GET lists the live
// in-memory registry (the tools callable right now); POST persists a spec
// into the installed-node catalog. The registry is not loaded from that
// catalog, so a posted spec does not become callable.
func (s *Server) handleMCPTools(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.Registry.List())

	case http.MethodPost:
		var node models.Node
		if err := json.NewDecoder(r.Body).Decode(&node); err != nil || node.Name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "name is required"})
			return
		}
		if err := s.Store.UpsertTool(r.Context(), node); err != nil {
			s.writeError(w, "httpapi.handleMCPTools", err)
			return
		}
		writeJSON(w, http.StatusOK, node)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type mcpInvokeRequest struct {
	Name  string          `json:"name"`
	Args  json.RawMessage `json:"args"`
	Token string          `json:"token"`
}

// handleMCPInvoke implements POST /api/mcp_invoke. When API_TOKEN is
// configured, the body's token field must match.
func (s *Server) handleMCPInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req mcpInvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "name is required"})
		return
	}
	if !s.checkToken(req.Token) {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "token mismatch", "error_kind": string(errkind.Forbidden)})
		return
	}

	result, err := s.Registry.Invoke(r.Context(), req.Name, req.Args, &policy.Policy{Profile: policy.ProfileFull}, "mcp")
	if err != nil {
		s.writeError(w, "httpapi.handleMCPInvoke", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
