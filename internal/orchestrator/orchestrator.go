package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/internal/llmclient"
	"github.com/gasable/hub/internal/registry"
	"github.com/gasable/hub/internal/sseio"
	"github.com/gasable/hub/internal/tools/policy"
	"github.com/gasable/hub/pkg/models"
)

const (
	defaultMaxToolCalls = 8
	defaultBudgetMS     = 30000
)

// ChatClient is the subset of llmclient.ChatClient the assistant loop needs.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []llmclient.Message, tools []llmclient.ToolDef) (llmclient.ChatResponse, error)
}

// RunStore persists the audit trail of one orchestrator turn.
type RunStore interface {
	AppendRun(ctx context.Context, r models.RunRecord) error
}

// AgentLookup resolves an agent by id, used for both routing membership
// checks and loading the chosen agent's system prompt/allow-list/model.
type AgentLookup interface {
	GetAgent(ctx context.Context, id string) (models.Agent, error)
	ListAgents(ctx context.Context, namespace string) ([]models.Agent, error)
}

// Request is the orchestrator's public entrypoint contract.
type Request struct {
	UserID          string
	Message         string
	Namespace       string
	AgentPreference string
	BudgetMS        int
	MaxToolCalls    int
}

// Orchestrator wires routing, the assistant loop, and run persistence.
type Orchestrator struct {
	Agents   AgentLookup
	Registry *registry.Registry
	Chat     ChatClient
	Runs     RunStore
	Buckets  []bucket
}

// Run routes the request to an agent, executes the assistant tool-call
// loop, persists a RunRecord, and returns the final assistant text plus the
// chosen agent id. SSE steps are reported via reporter if non-nil.
func (o *Orchestrator) Run(ctx context.Context, req Request, reporter sseio.Reporter) (string, string, error) {
	start := time.Now()
	emit := func(event string, payload any) {
		if reporter != nil {
			_ = reporter.Emit(event, payload)
		}
	}

	if req.BudgetMS <= 0 {
		req.BudgetMS = defaultBudgetMS
	}
	if req.MaxToolCalls <= 0 {
		req.MaxToolCalls = defaultMaxToolCalls
	}

	agents, err := o.Agents.ListAgents(ctx, req.Namespace)
	if err != nil {
		return "", "", errkind.New(errkind.Internal, "orchestrator.Run", err)
	}
	known := make(map[string]bool, len(agents))
	for _, a := range agents {
		known[a.ID] = true
	}

	agentID := resolveAgent(req.AgentPreference, req.Message, known, o.Buckets)
	if !known[agentID] {
		agentID = defaultBucket
	}
	emit("routed_to", map[string]any{"agent_id": agentID})

	agent, err := o.Agents.GetAgent(ctx, agentID)
	if err != nil {
		return "", agentID, errkind.New(errkind.NotFound, "orchestrator.Run", err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(req.BudgetMS)*time.Millisecond)
	defer cancel()

	messages := []llmclient.Message{
		{Role: "system", Content: agent.SystemPrompt},
		{Role: "user", Content: req.Message},
	}

	toolPolicy := &policy.Policy{Allow: agent.ToolAllowlist}
	var traces []models.ToolCallTrace
	finalText := ""
	var abortErr error

	for i := 0; i < req.MaxToolCalls; i++ {
		select {
		case <-ctx.Done():
			finalText = "response truncated: budget exceeded"
			goto done
		default:
		}

		resp, err := o.Chat.Chat(ctx, agent.AnswerModel, messages, nil)
		if err != nil {
			return "", agentID, errkind.New(errkind.UpstreamUnavailable, "orchestrator.Run", err)
		}

		if len(resp.ToolCalls) == 0 {
			finalText = resp.Content
			goto done
		}

		messages = append(messages, llmclient.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})

		for _, tc := range resp.ToolCalls {
			emit("tool_call_started", map[string]any{"name": tc.Name, "id": tc.ID})

			callStart := time.Now()
			result, err := o.Registry.Invoke(ctx, tc.Name, tc.Input, toolPolicy, "agent:"+agentID)
			trace := models.ToolCallTrace{Name: tc.Name, ElapsedMS: time.Since(callStart).Milliseconds()}

			var content string
			if err != nil {
				trace.IsError = true
				content = err.Error()
			} else {
				body, _ := json.Marshal(result)
				content = string(body)
				trace.ResultSize = len(content)
				trace.IsError = result.Status != "ok"
			}
			traces = append(traces, trace)

			emit("tool_call_finished", map[string]any{"name": tc.Name, "id": tc.ID, "is_error": trace.IsError, "error_kind": string(errkind.Of(err))})

			kind := errkind.Of(err)
			if kind == errkind.MissingCredential || kind == errkind.Forbidden {
				finalText = "tool call rejected: " + tc.Name
				abortErr = err
				goto done
			}

			messages = append(messages, llmclient.Message{Role: "tool", Content: content, ToolCallID: tc.ID})

			if kind == errkind.ToolTimeout || kind == errkind.UpstreamUnavailable {
				finalText = "tool call failed unrecoverably: " + tc.Name
				goto done
			}
		}
	}
	finalText = "response truncated: tool-call ceiling reached"

done:
	record := models.RunRecord{
		RunID:         uuid.NewString(),
		UserID:        req.UserID,
		Namespace:     req.Namespace,
		SelectedAgent: agentID,
		UserMessage:   req.Message,
		ToolCalls:     traces,
		ResultSummary: summarize(finalText),
		ElapsedMS:     time.Since(start).Milliseconds(),
	}
	if o.Runs != nil {
		_ = o.Runs.AppendRun(context.Background(), record)
	}

	emit("final", map[string]any{"agent_id": agentID, "answer": finalText, "tool_calls": len(traces)})

	if abortErr != nil {
		return finalText, agentID, abortErr
	}
	return finalText, agentID, nil
}

// RunAgentNode adapts Orchestrator to workflow.AgentNodeExecutor: a workflow
// "agent" node runs one full orchestrator turn against agentID, with params
// decoded for an optional "message" field (falling back to the raw params as
// the message text).
func (o *Orchestrator) RunAgentNode(ctx context.Context, agentID string, params json.RawMessage) (json.RawMessage, error) {
	message := extractMessage(params)
	answer, resolvedAgent, err := o.Run(ctx, Request{Message: message, AgentPreference: agentID}, nil)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{"agent_id": resolvedAgent, "answer": answer})
}

func extractMessage(params json.RawMessage) string {
	var withMessage struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(params, &withMessage); err == nil && withMessage.Message != "" {
		return withMessage.Message
	}
	return string(params)
}

func summarize(text string) string {
	const maxLen = 280
	r := []rune(text)
	if len(r) <= maxLen {
		return text
	}
	return string(r[:maxLen])
}
