package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/internal/orchestrator"
	"github.com/gasable/hub/internal/sseio"
)

type orchestrateRequest struct {
	UserID          string `json:"user_id"`
	Message         string `json:"message"`
	Namespace       string `json:"namespace"`
	AgentPreference string `json:"agent_preference"`
}

// handleOrchestrate implements POST /api/orchestrate: {user_id, message,
// namespace?, agent_preference?} -> {agent, message, status}.
func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req orchestrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "message is required"})
		return
	}

	answer, agentID, err := s.Orchestrator.Run(r.Context(), orchestrator.Request{
		UserID:          req.UserID,
		Message:         req.Message,
		Namespace:       req.Namespace,
		AgentPreference: req.AgentPreference,
	}, nil)

	if err != nil {
		kind := errkind.Of(err)
		if kind == errkind.MissingCredential || kind == errkind.Forbidden {
			writeJSON(w, http.StatusOK, map[string]any{
				"agent": agentID, "message": "", "status": "error", "error_kind": string(kind),
			})
			return
		}
		s.writeError(w, "httpapi.handleOrchestrate", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"agent": agentID, "message": answer, "status": "ok"})
}

// handleOrchestrateStream implements GET /api/orchestrate_stream?message=…,
// streaming routed_to/tool_call_*/final events.
func (s *Server) handleOrchestrateStream(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	reporter := sseio.NewHTTPReporter(w)
	answer, agentID, err := s.Orchestrator.Run(r.Context(), orchestrator.Request{
		UserID:          r.URL.Query().Get("user_id"),
		Message:         message,
		Namespace:       r.URL.Query().Get("namespace"),
		AgentPreference: r.URL.Query().Get("agent_preference"),
	}, reporter)

	if err != nil {
		// Run only emits its own "final" frame once it reaches its persistence
		// tail; errors returned before that point (routing/agent lookup/chat
		// failures) need a final frame emitted here instead.
		_ = reporter.Emit("final", map[string]any{"error": err.Error(), "error_kind": string(errkind.Of(err))})
		return
	}
	_ = agentID
	_ = answer
}
