package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gasable/hub/internal/answerer"
	"github.com/gasable/hub/internal/retriever"
	"github.com/gasable/hub/internal/sseio"
)

type queryRequest struct {
	Q             string `json:"q"`
	K             int    `json:"k"`
	AgentID       string `json:"agent_id"`
	Namespace     string `json:"namespace"`
	StrictContext bool   `json:"strict_context_only"`
}

func (s *Server) retrieveConfig(agentID string, k int) retriever.Config {
	cfg := retriever.DefaultConfig()
	cfg.BudgetMS = s.SingleShotMS
	if k > 0 {
		cfg.FinalK = k
	}
	return cfg
}

// handleQuery implements POST /api/query: {q,k?} -> {answer, answer_html,
// context_ids, structured, structured_html, meta}.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "q is required"})
		return
	}
	if req.Namespace == "" {
		req.Namespace = "global"
	}
	if req.AgentID == "" {
		req.AgentID = "default"
	}

	cfg := s.retrieveConfig(req.AgentID, req.K)
	result := s.Retriever.Retrieve(r.Context(), req.Q, req.AgentID, req.Namespace, cfg, nil)
	final := answerer.RunAndReport(r.Context(), s.Answerer, req.Q, result, s.SingleShotMS, req.StrictContext || s.StrictContext, nil)

	contextIDs := make([]string, 0, len(result.Selected))
	for _, sel := range result.Selected {
		contextIDs = append(contextIDs, sel.ID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"answer":          final.Answer,
		"answer_html":     final.AnswerHTML,
		"context_ids":     contextIDs,
		"structured":      final.Structured,
		"structured_html": final.StructuredHTML,
		"meta":            final.Meta,
	})
}

// handleQueryStream implements GET /api/query_stream?q=…, emitting the
// retriever's step sequence followed by a terminal "final" frame.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}
	namespace := r.URL.Query().Get("namespace")
	if namespace == "" {
		namespace = "global"
	}
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		agentID = "default"
	}

	reporter := sseio.NewHTTPReporter(w)
	cfg := s.retrieveConfig(agentID, 0)
	cfg.BudgetMS = s.StreamMS

	result := s.Retriever.Retrieve(r.Context(), q, agentID, namespace, cfg, reporter)
	final := answerer.RunAndReport(r.Context(), s.Answerer, q, result, s.StreamMS, s.StrictContext, reporter)
	_ = reporter.Emit("final", final)
}
