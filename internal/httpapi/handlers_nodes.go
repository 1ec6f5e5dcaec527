package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/internal/tools/policy"
	"github.com/gasable/hub/pkg/models"
)

// handleListNodes implements GET /api/nodes: the installed node catalog.
func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	nodes, err := s.Store.ListTools(r.Context())
	if err != nil {
		s.writeError(w, "httpapi.handleListNodes", errkind.New(errkind.Internal, "ListTools", err))
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// handleInstallNode implements POST /api/nodes/install: persists a node spec
// into the catalog listed by GET /api/nodes. The registry is not loaded from
// that catalog, so an installed node does not become invocable by workflows
// or by /api/nodes/run.
func (s *Server) handleInstallNode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var node models.Node
	if err := json.NewDecoder(r.Body).Decode(&node); err != nil || node.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "name is required"})
		return
	}
	if err := s.Store.UpsertTool(r.Context(), node); err != nil {
		s.writeError(w, "httpapi.handleInstallNode", err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

type runNodeRequest struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// handleRunNode implements POST /api/nodes/run: invokes a single registry
// tool by name outside of any workflow graph, useful for manual/ad-hoc testing.
func (s *Server) handleRunNode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req runNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "name is required"})
		return
	}

	result, err := s.Registry.Invoke(r.Context(), req.Name, req.Args, &policy.Policy{Profile: policy.ProfileFull}, "node")
	if err != nil {
		s.writeError(w, "httpapi.handleRunNode", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
