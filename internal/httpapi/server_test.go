package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gasable/hub/internal/answerer"
	"github.com/gasable/hub/internal/jobs"
	"github.com/gasable/hub/internal/llmclient"
	"github.com/gasable/hub/internal/orchestrator"
	"github.com/gasable/hub/internal/registry"
	"github.com/gasable/hub/internal/retriever"
	"github.com/gasable/hub/internal/tools/policy"
	"github.com/gasable/hub/internal/vault"
	"github.com/gasable/hub/internal/workflow"
	"github.com/gasable/hub/pkg/models"
)

type fakeRetrieverStore struct {
	hits []models.ScoredChunk
}

func (f *fakeRetrieverStore) VectorTopK(ctx context.Context, vec []float32, k int, agentID, namespace string) ([]models.ScoredChunk, error) {
	return f.hits, nil
}
func (f *fakeRetrieverStore) BM25TopK(ctx context.Context, query string, k int, agentID, namespace string) ([]models.ScoredChunk, error) {
	return nil, nil
}
func (f *fakeRetrieverStore) ILikeTopK(ctx context.Context, tokens []string, k int, agentID, namespace string) ([]models.ScoredChunk, error) {
	return f.hits, nil
}
func (f *fakeRetrieverStore) FetchByIDs(ctx context.Context, ids []string) ([]models.Chunk, error) {
	return nil, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

type fakeHubStore struct {
	agents    map[string]models.Agent
	workflows map[string]models.Workflow
}

func (f *fakeHubStore) ListAgents(ctx context.Context, namespace string) ([]models.Agent, error) {
	var out []models.Agent
	for _, a := range f.agents {
		out = append(out, a)
	}
	return out, nil
}
func (f *fakeHubStore) GetAgent(ctx context.Context, id string) (models.Agent, error) {
	a, ok := f.agents[id]
	if !ok {
		return models.Agent{}, errNotFound{}
	}
	return a, nil
}
func (f *fakeHubStore) UpsertAgent(ctx context.Context, a models.Agent) error {
	f.agents[a.ID] = a
	return nil
}
func (f *fakeHubStore) ListTools(ctx context.Context) ([]models.Node, error)   { return nil, nil }
func (f *fakeHubStore) UpsertTool(ctx context.Context, n models.Node) error    { return nil }
func (f *fakeHubStore) ListWorkflows(ctx context.Context, namespace string) ([]models.Workflow, error) {
	var out []models.Workflow
	for _, w := range f.workflows {
		out = append(out, w)
	}
	return out, nil
}
func (f *fakeHubStore) GetWorkflow(ctx context.Context, id string) (models.Workflow, error) {
	w, ok := f.workflows[id]
	if !ok {
		return models.Workflow{}, errNotFound{}
	}
	return w, nil
}
func (f *fakeHubStore) UpsertWorkflow(ctx context.Context, w models.Workflow) error {
	if f.workflows == nil {
		f.workflows = make(map[string]models.Workflow)
	}
	f.workflows[w.ID] = w
	return nil
}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

type fakeVaultStore struct {
	rows map[string][]models.Secret
}

func (f *fakeVaultStore) PutSecret(ctx context.Context, scope, keyName string, ciphertext []byte) (models.Secret, error) {
	k := scope + "/" + keyName
	version := len(f.rows[k]) + 1
	sec := models.Secret{Scope: scope, KeyName: keyName, Ciphertext: ciphertext, Version: version}
	f.rows[k] = append(f.rows[k], sec)
	return sec, nil
}
func (f *fakeVaultStore) GetSecret(ctx context.Context, scope, keyName string, version int) (models.Secret, error) {
	rows := f.rows[scope+"/"+keyName]
	if len(rows) == 0 {
		return models.Secret{}, errNotFound{}
	}
	return rows[len(rows)-1], nil
}
func (f *fakeVaultStore) ListSecrets(ctx context.Context, scope string) ([]models.Secret, error) {
	return nil, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	hubStore := &fakeHubStore{agents: map[string]models.Agent{
		"default": {ID: "default", Namespace: "global", SystemPrompt: "you help", AnswerModel: "gpt-test"},
	}}

	r := &retriever.Retriever{
		Store:    &fakeRetrieverStore{hits: []models.ScoredChunk{{Chunk: models.Chunk{NodeID: "doc-1", Text: "electric vehicle charging overview"}}}},
		Embedder: fakeEmbedder{},
	}
	a := &answerer.Answerer{}

	reg := registry.New(policy.NewResolver(), nil)
	reg.Register(registry.NewFuncTool(models.ToolSpec{Name: "echo"}, func(ctx context.Context, args json.RawMessage, creds map[string]string) (registry.ToolResult, error) {
		return registry.ToolResult{Status: "ok", Output: args}, nil
	}))

	orch := &orchestrator.Orchestrator{
		Agents:   hubStore,
		Registry: reg,
		Chat:     scriptedChat{},
	}

	vaultStore := &fakeVaultStore{rows: make(map[string][]models.Secret)}
	v, err := vault.New(vaultStore, make([]byte, 32))
	require.NoError(t, err)

	return &Server{
		Store:        hubStore,
		Retriever:    r,
		Answerer:     a,
		Registry:     reg,
		Orchestrator: orch,
		Vault:        v,
		SingleShotMS: 8000,
		StreamMS:     20000,
		APITokens:    []string{"secret-token"},
	}
}

type scriptedChat struct{}

func (scriptedChat) Chat(ctx context.Context, model string, messages []llmclient.Message, tools []llmclient.ToolDef) (llmclient.ChatResponse, error) {
	return llmclient.ChatResponse{Content: "all done"}, nil
}

func TestHandleQueryReturnsStructuredAnswer(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"q":"electric vehicle charging"}`))
	rec := httptest.NewRecorder()

	s.handleQuery(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "answer")
	require.Contains(t, body, "context_ids")
}

func TestHandleQueryRejectsMissingQ(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	s.handleQuery(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleOrchestrateRoutesAndReturnsAnswer(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/orchestrate", strings.NewReader(`{"user_id":"u1","message":"hello there","agent_preference":"default"}`))
	rec := httptest.NewRecorder()

	s.handleOrchestrate(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "all done", body["message"])
}

func TestHandleMCPInvokeRejectsBadToken(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/mcp_invoke", strings.NewReader(`{"name":"echo","args":{},"token":"wrong"}`))
	rec := httptest.NewRecorder()

	s.handleMCPInvoke(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleMCPInvokeAcceptsGoodToken(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/mcp_invoke", strings.NewReader(`{"name":"echo","args":{},"token":"secret-token"}`))
	rec := httptest.NewRecorder()

	s.handleMCPInvoke(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleAgentsCreateAndList(t *testing.T) {
	s := newTestServer(t)

	createReq := httptest.NewRequest(http.MethodPost, "/api/agents", strings.NewReader(`{"id":"support","namespace":"global"}`))
	createRec := httptest.NewRecorder()
	s.handleAgents(createRec, createReq)
	require.Equal(t, http.StatusOK, createRec.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	listRec := httptest.NewRecorder()
	s.handleAgents(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var agents []models.Agent
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &agents))
	require.Len(t, agents, 2)
}

func TestHandleAgentRotateKeyIssuesNewKey(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/agents/default/rotate_key", nil)
	rec := httptest.NewRecorder()

	s.handleAgentRotateKey(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["api_key"])
}

func TestHandleListKeysNeverLeaksCiphertext(t *testing.T) {
	s := newTestServer(t)
	_, err := s.Vault.Put(context.Background(), "global", "API_KEY", "sk-secret")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/keys?scope=global", nil)
	rec := httptest.NewRecorder()
	s.handleListKeys(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "sk-secret")
}

func TestHandleStatusReportsDBOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "db")
}

func TestRoutesServesHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestImportWorkflowThenExportRoundTrips(t *testing.T) {
	s := newTestServer(t)

	manifest := "id: wf-import\ndisplay_name: Imported Flow\nnodes:\n  - id: start\n    kind: start\nedges: []\n"
	importReq := httptest.NewRequest(http.MethodPost, "/api/workflows/import", strings.NewReader(manifest))
	importRec := httptest.NewRecorder()
	s.handleWorkflowByID(importRec, importReq)
	require.Equal(t, http.StatusOK, importRec.Code)

	exportReq := httptest.NewRequest(http.MethodGet, "/api/workflows/wf-import/export", nil)
	exportRec := httptest.NewRecorder()
	s.handleWorkflowByID(exportRec, exportReq)
	require.Equal(t, http.StatusOK, exportRec.Code)
	require.Contains(t, exportRec.Body.String(), "display_name: Imported Flow")
}

func TestImportWorkflowRejectsMissingID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/workflows/import", strings.NewReader("display_name: no id\n"))
	rec := httptest.NewRecorder()
	s.handleWorkflowByID(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleJobsReturnsEmptyListWhenUnconfigured(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	s.handleJobs(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}

func TestHandleJobByIDReturns404ForUnknownJob(t *testing.T) {
	s := newTestServer(t)
	s.Jobs = jobs.NewMemoryStore()

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.handleJobByID(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunWorkflowAsyncReturnsJobIDImmediately(t *testing.T) {
	s := newTestServer(t)
	s.Jobs = jobs.NewMemoryStore()
	reg := registry.New(policy.NewResolver(), nil)
	reg.Register(registry.NewFuncTool(models.ToolSpec{Name: "step1"}, func(ctx context.Context, args json.RawMessage, creds map[string]string) (registry.ToolResult, error) {
		return registry.ToolResult{Status: "ok"}, nil
	}))
	s.Workflows = &workflow.Runner{Registry: reg, Policy: &policy.Policy{Profile: policy.ProfileFull}}

	wf := models.Workflow{
		ID: "wf-async",
		Graph: models.WorkflowGraph{
			Nodes: []models.WorkflowNode{
				{ID: "start", Kind: models.NodeKindStart},
				{ID: "n1", Kind: models.NodeKindTool, ToolName: "step1"},
			},
			Edges: []models.WorkflowEdge{{ID: "e1", Source: "start", Target: "n1"}},
		},
	}
	require.NoError(t, s.Store.UpsertWorkflow(context.Background(), wf))

	req := httptest.NewRequest(http.MethodPost, "/api/workflows/wf-async/run?async=true", nil)
	rec := httptest.NewRecorder()
	s.handleWorkflowByID(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["job_id"])
}

func TestRunWorkflowGatesOnMissingCredentials(t *testing.T) {
	s := newTestServer(t)
	dispatched := false
	reg := registry.New(policy.NewResolver(), nil)
	reg.Register(registry.NewFuncTool(models.ToolSpec{Name: "gmail_send", AuthProvider: "gmail"}, func(ctx context.Context, args json.RawMessage, creds map[string]string) (registry.ToolResult, error) {
		dispatched = true
		return registry.ToolResult{Status: "ok"}, nil
	}))
	s.Workflows = &workflow.Runner{Registry: reg, Policy: &policy.Policy{Profile: policy.ProfileFull}}

	wf := models.Workflow{
		ID: "wf-creds",
		Graph: models.WorkflowGraph{
			Nodes: []models.WorkflowNode{
				{ID: "start", Kind: models.NodeKindStart},
				{ID: "n1", Kind: models.NodeKindTool, ToolName: "gmail_send"},
			},
			Edges: []models.WorkflowEdge{{ID: "e1", Source: "start", Target: "n1"}},
		},
	}
	require.NoError(t, s.Store.UpsertWorkflow(context.Background(), wf))

	req := httptest.NewRequest(http.MethodPost, "/api/workflows/wf-creds/run", nil)
	rec := httptest.NewRecorder()
	s.handleWorkflowByID(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var respBody map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &respBody))
	require.Equal(t, "error", respBody["status"])
	require.Equal(t, "MissingCredential", respBody["error_kind"])
	require.Contains(t, respBody["required_keys"], "GOOGLE_REFRESH_TOKEN")
	require.False(t, dispatched, "tool must not dispatch when required credentials are missing")
}
