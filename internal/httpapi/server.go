// Package httpapi wires the retriever, answerer, registry, orchestrator,
// workflow runtime, and vault behind one http.ServeMux exposing the
// documented HTTP/SSE route table.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gasable/hub/internal/answerer"
	"github.com/gasable/hub/internal/audit"
	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/internal/jobs"
	"github.com/gasable/hub/internal/orchestrator"
	"github.com/gasable/hub/internal/registry"
	"github.com/gasable/hub/internal/retriever"
	"github.com/gasable/hub/internal/status"
	"github.com/gasable/hub/internal/vault"
	"github.com/gasable/hub/internal/workflow"
	"github.com/gasable/hub/pkg/models"
)

// Store is the subset of *store.Store the HTTP layer needs, narrowed to an
// interface so handlers can be tested against a fake.
type Store interface {
	ListAgents(ctx context.Context, namespace string) ([]models.Agent, error)
	GetAgent(ctx context.Context, id string) (models.Agent, error)
	UpsertAgent(ctx context.Context, a models.Agent) error

	ListTools(ctx context.Context) ([]models.Node, error)
	UpsertTool(ctx context.Context, n models.Node) error

	ListWorkflows(ctx context.Context, namespace string) ([]models.Workflow, error)
	GetWorkflow(ctx context.Context, id string) (models.Workflow, error)
	UpsertWorkflow(ctx context.Context, w models.Workflow) error
}

// Server holds every dependency a handler might need. Fields are exported so
// cmd/gasable-hub can assemble it without an additional builder type.
type Server struct {
	Store        Store
	Retriever    *retriever.Retriever
	Answerer     *answerer.Answerer
	Registry     *registry.Registry
	Orchestrator *orchestrator.Orchestrator
	Workflows    *workflow.Runner
	Vault        *vault.Vault
	StatusRep    *status.Reporter
	Errors       *audit.ErrorRing
	Jobs         jobs.Store

	APITokens     []string
	CORSOrigins   []string
	SingleShotMS  int
	StreamMS      int
	StrictContext bool
	LastMigration status.LastMigrationFunc
}

// Routes builds the canonical mux, matching the route table documented for
// external consumers of this service.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/recent_errors", s.handleRecentErrors)

	mux.HandleFunc("/api/query", s.handleQuery)
	mux.HandleFunc("/api/query_stream", s.handleQueryStream)

	mux.HandleFunc("/api/orchestrate", s.handleOrchestrate)
	mux.HandleFunc("/api/orchestrate_stream", s.handleOrchestrateStream)

	mux.HandleFunc("/api/agents", s.handleAgents)
	mux.HandleFunc("/api/agents/", s.handleAgentRotateKey)

	mux.HandleFunc("/api/mcp_tools", s.handleMCPTools)
	mux.HandleFunc("/api/mcp_invoke", s.handleMCPInvoke)

	mux.HandleFunc("/api/workflows", s.handleWorkflows)
	mux.HandleFunc("/api/workflows/", s.handleWorkflowByID)

	mux.HandleFunc("/api/jobs", s.handleJobs)
	mux.HandleFunc("/api/jobs/", s.handleJobByID)

	mux.HandleFunc("/api/nodes", s.handleListNodes)
	mux.HandleFunc("/api/nodes/install", s.handleInstallNode)
	mux.HandleFunc("/api/nodes/run", s.handleRunNode)

	mux.HandleFunc("/api/keys", s.handleListKeys)
	mux.HandleFunc("/api/keys/mcp_token/rotate", s.handleRotateMCPToken)

	return s.withCORS(mux)
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.CORSOrigins) > 0 {
			origin := r.Header.Get("Origin")
			for _, allowed := range s.CORSOrigins {
				if allowed == "*" || allowed == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
					break
				}
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkToken constant-time-compares a caller-supplied token against the
// configured API_TOKEN set. An empty APITokens list disables the check,
// since a deployment with no configured tokens has opted out of auth.
func (s *Server) checkToken(candidate string) bool {
	if len(s.APITokens) == 0 {
		return true
	}
	for _, want := range s.APITokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(want)) == 1 {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps an errkind-wrapped error to its documented status code and
// logs it to the in-process recent-errors ring.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	kind := errkind.Of(err)
	if s.Errors != nil {
		s.Errors.Add(audit.Event{
			Type:      audit.EventGatewayError,
			Level:     audit.LevelError,
			Timestamp: time.Now(),
			Action:    op,
			Error:     err.Error(),
		})
	}
	slog.Error("request failed", "op", op, "kind", kind, "error", err)
	writeJSON(w, errkind.HTTPStatus(kind), map[string]any{"error": err.Error(), "error_kind": string(kind)})
}

func bearerOrQueryToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return r.URL.Query().Get("token")
}
