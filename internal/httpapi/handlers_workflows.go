package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/internal/sseio"
	"github.com/gasable/hub/internal/workflow"
	"github.com/gasable/hub/pkg/models"
)

// workflowCredentialScope is the credential scope workflow tool nodes
// resolve against, matching workflow.Runner's hardcoded Invoke scope.
const workflowCredentialScope = "workflow"

// missingWorkflowCredentials collects the workflow's required credential
// keys and returns the subset not resolvable from the Vault, so /run can
// gate execution on their presence before any node dispatches.
func (s *Server) missingWorkflowCredentials(ctx context.Context, wf models.Workflow) ([]string, error) {
	keys, err := s.Workflows.RequiredCredentials(wf.Graph)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 || s.Vault == nil {
		return nil, nil
	}
	var missing []string
	for _, k := range keys {
		if _, getErr := s.Vault.Get(ctx, workflowCredentialScope, k, 0); getErr != nil {
			missing = append(missing, k)
		}
	}
	return missing, nil
}

// handleWorkflows implements GET /api/workflows?namespace=… and
// POST /api/workflows.
func (s *Server) handleWorkflows(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		namespace := r.URL.Query().Get("namespace")
		workflows, err := s.Store.ListWorkflows(r.Context(), namespace)
		if err != nil {
			s.writeError(w, "httpapi.handleWorkflows", errkind.New(errkind.Internal, "ListWorkflows", err))
			return
		}
		writeJSON(w, http.StatusOK, workflows)

	case http.MethodPost:
		var wf models.Workflow
		if err := json.NewDecoder(r.Body).Decode(&wf); err != nil || wf.ID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "id is required"})
			return
		}
		if err := s.Store.UpsertWorkflow(r.Context(), wf); err != nil {
			s.writeError(w, "httpapi.handleWorkflows", err)
			return
		}
		writeJSON(w, http.StatusOK, wf)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleWorkflowByID implements GET /api/workflows/{id}?enrich=true and
// POST /api/workflows/{id}/run.
func (s *Server) handleWorkflowByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/workflows/")
	if path == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	if strings.HasSuffix(path, "/run") {
		s.runWorkflow(w, r, strings.TrimSuffix(path, "/run"))
		return
	}

	if path == "import" {
		s.importWorkflow(w, r)
		return
	}

	if strings.HasSuffix(path, "/export") {
		s.exportWorkflow(w, r, strings.TrimSuffix(path, "/export"))
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	wf, err := s.Store.GetWorkflow(r.Context(), path)
	if err != nil {
		s.writeError(w, "httpapi.handleWorkflowByID", err)
		return
	}

	if r.URL.Query().Get("enrich") == "true" {
		creds, credErr := s.Workflows.RequiredCredentials(wf.Graph)
		if credErr == nil {
			writeJSON(w, http.StatusOK, map[string]any{"workflow": wf, "required_credentials": creds})
			return
		}
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) runWorkflow(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	wf, err := s.Store.GetWorkflow(r.Context(), id)
	if err != nil {
		s.writeError(w, "httpapi.runWorkflow", err)
		return
	}

	inputs, _ := json.Marshal(r.URL.Query())
	if r.Body != nil {
		var body json.RawMessage
		if decodeErr := json.NewDecoder(r.Body).Decode(&body); decodeErr == nil && len(body) > 0 {
			inputs = body
		}
	}

	missing, credErr := s.missingWorkflowCredentials(r.Context(), wf)
	if credErr != nil {
		s.writeError(w, "httpapi.runWorkflow", credErr)
		return
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "error", "error_kind": string(errkind.MissingCredential), "required_keys": missing,
		})
		return
	}

	if r.URL.Query().Get("async") == "true" && s.Jobs != nil {
		s.runWorkflowAsync(w, r, wf, inputs)
		return
	}

	reporter := sseio.NewHTTPReporter(w)
	if runErr := s.Workflows.Run(r.Context(), wf.Graph, inputs, reporter); runErr != nil {
		_ = reporter.Emit("final", map[string]any{
			"status": "error", "failed_node_id": failedNodeID(runErr), "error_kind": string(errkind.Of(runErr)), "message": runErr.Error(),
		})
		return
	}
	_ = reporter.Emit("final", map[string]any{"status": "ok"})
}

// failedNodeID extracts the id of the node that stopped a run, empty if err
// doesn't carry one (e.g. a graph-build failure before any node ran).
func failedNodeID(err error) string {
	var re *workflow.RunError
	if errors.As(err, &re) {
		return re.NodeID
	}
	return ""
}

// runWorkflowAsync starts the run in the background against a job record and
// returns the job id immediately, for long-running workflows a caller would
// rather poll than hold a connection open for.
func (s *Server) runWorkflowAsync(w http.ResponseWriter, r *http.Request, wf models.Workflow, inputs json.RawMessage) {
	job := &models.Job{ID: uuid.NewString(), Status: models.JobQueued, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := s.Jobs.Create(r.Context(), job); err != nil {
		s.writeError(w, "httpapi.runWorkflowAsync", errkind.New(errkind.Internal, "jobs.Create", err))
		return
	}

	go func() {
		runCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if store, ok := s.Jobs.(interface {
			SetCancelFunc(id string, cancel context.CancelFunc)
		}); ok {
			store.SetCancelFunc(job.ID, cancel)
		}

		job.Status = models.JobRunning
		_ = s.Jobs.Update(runCtx, job)

		reporter := sseio.NewRecordingReporter()
		if runErr := s.Workflows.Run(runCtx, wf.Graph, inputs, reporter); runErr != nil {
			job.Status = models.JobFailed
			job.Result, _ = json.Marshal(map[string]any{
				"error": runErr.Error(), "error_kind": string(errkind.Of(runErr)), "failed_node_id": failedNodeID(runErr),
			})
		} else {
			job.Status = models.JobSucceeded
			job.Result, _ = json.Marshal(map[string]any{"events": reporter.Frames})
		}
		_ = s.Jobs.Update(runCtx, job)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "status": job.Status})
}

// exportWorkflow implements GET /api/workflows/{id}/export, rendering the
// stored workflow as a YAML manifest suitable for version control.
func (s *Server) exportWorkflow(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	wf, err := s.Store.GetWorkflow(r.Context(), id)
	if err != nil {
		s.writeError(w, "httpapi.exportWorkflow", err)
		return
	}
	out, err := workflow.MarshalYAML(wf)
	if err != nil {
		s.writeError(w, "httpapi.exportWorkflow", errkind.New(errkind.Internal, "MarshalYAML", err))
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// importWorkflow implements POST /api/workflows/import, accepting a YAML
// workflow manifest and upserting it the same way a JSON POST would.
func (s *Server) importWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "failed to read body"})
		return
	}
	wf, err := workflow.UnmarshalYAML(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if err := s.Store.UpsertWorkflow(r.Context(), wf); err != nil {
		s.writeError(w, "httpapi.importWorkflow", err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}
