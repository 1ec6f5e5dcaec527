package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/internal/registry"
	"github.com/gasable/hub/internal/sseio"
	"github.com/gasable/hub/internal/tools/policy"
	"github.com/gasable/hub/pkg/models"
)

const defaultNodeTimeout = 60 * time.Second

// RunError reports the node whose failure stopped a run, so callers can
// surface which node failed instead of just the error text.
type RunError struct {
	NodeID string
	Err    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("node %s: %v", e.NodeID, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// AgentNodeExecutor runs an "agent" kind node, e.g. dispatching to the
// orchestrator's assistant loop for that agent.
type AgentNodeExecutor interface {
	RunAgentNode(ctx context.Context, agentID string, params json.RawMessage) (json.RawMessage, error)
}

// Runner executes one workflow run against a graph.
type Runner struct {
	Registry *registry.Registry
	Agents   AgentNodeExecutor
	Policy   *policy.Policy
}

// nodeResult is the JSON output of one completed node, addressable from
// downstream nodes as "<nodeID>.output".
type nodeResult struct {
	mu      sync.RWMutex
	outputs map[string]json.RawMessage
}

func newNodeResult() *nodeResult {
	return &nodeResult{outputs: make(map[string]json.RawMessage)}
}

func (n *nodeResult) set(id string, output json.RawMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outputs[id] = output
}

func (n *nodeResult) get(id string) (json.RawMessage, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.outputs[id]
	return v, ok
}

// RequiredCredentials collects the credential keys every reachable tool node
// in the graph needs, deduplicated, for the runtime to surface to the caller
// before starting side-effectful execution.
func (r *Runner) RequiredCredentials(graph models.WorkflowGraph) ([]string, error) {
	seen := map[string]bool{}
	var keys []string
	for _, n := range graph.Nodes {
		kind := n.Kind
		if kind != models.NodeKindTool {
			continue
		}
		name, err := resolveToolName(n)
		if err != nil {
			return nil, err
		}
		spec, ok := r.Registry.Get(name)
		if !ok {
			continue
		}
		for _, k := range registry.RequiredKeys(spec.AuthProvider, spec.RequiredKeys) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys, nil
}

// Run executes the graph stage by stage, emitting SSE node_started/
// node_finished/node_failed/workflow_finished events.
func (r *Runner) Run(ctx context.Context, graph models.WorkflowGraph, inputs json.RawMessage, reporter sseio.Reporter) error {
	emit := func(event string, payload any) {
		if reporter != nil {
			_ = reporter.Emit(event, payload)
		}
	}

	stages, err := buildStages(graph)
	if err != nil {
		return errkind.New(errkind.BadRequest, "workflow.Run", err)
	}

	results := newNodeResult()
	results.set("__inputs__", inputs)

	skip := map[string]bool{}

	for _, stage := range stages.stages {
		var wg sync.WaitGroup
		var mu sync.Mutex
		var stageErr error
		var stageErrNodeID string

		for _, nodeID := range stage {
			node, ok := nodeByID(graph, nodeID)
			if !ok || skip[nodeID] {
				continue
			}

			wg.Add(1)
			go func(node models.WorkflowNode) {
				defer wg.Done()

				if node.Kind == models.NodeKindStart {
					results.set(node.ID, inputs)
					return
				}

				emit("node_started", map[string]any{"node_id": node.ID, "kind": node.Kind})

				output, branch, err := r.runNode(ctx, graph, node, results)

				if err != nil {
					emit("node_failed", map[string]any{"node_id": node.ID, "error": err.Error()})
					mu.Lock()
					if node.ErrorPolicy != models.ErrorPolicyContinue {
						if stageErr == nil {
							stageErr = err
							stageErrNodeID = node.ID
						}
						r.markDownstreamSkipped(graph, node.ID, skip)
					}
					mu.Unlock()
					return
				}

				results.set(node.ID, output)
				emit("node_finished", map[string]any{"node_id": node.ID})

				if node.Kind == models.NodeKindMapper {
					r.applyBranch(graph, node, branch, skip)
				}
			}(node)
		}
		wg.Wait()

		if stageErr != nil {
			emit("workflow_finished", map[string]any{"status": "failed", "error": stageErr.Error(), "failed_node_id": stageErrNodeID})
			return &RunError{NodeID: stageErrNodeID, Err: stageErr}
		}
	}

	emit("workflow_finished", map[string]any{"status": "ok"})
	return nil
}

// applyBranch marks every outgoing edge of a mapper node that does NOT match
// the taken branch as leading to a skipped subtree.
func (r *Runner) applyBranch(graph models.WorkflowGraph, node models.WorkflowNode, branch string, skip map[string]bool) {
	edges := outgoingEdges(graph, node.ID)
	taken, ok := selectEdge(edges, branch)
	for _, e := range edges {
		if ok && e.ID == taken.ID {
			continue
		}
		r.markDownstreamSkipped(graph, e.Target, skip)
	}
}

func (r *Runner) markDownstreamSkipped(graph models.WorkflowGraph, from string, skip map[string]bool) {
	if skip[from] {
		return
	}
	skip[from] = true
	for _, e := range outgoingEdges(graph, from) {
		r.markDownstreamSkipped(graph, e.Target, skip)
	}
}

// runNode executes a single tool/agent/mapper node with its configured
// timeout and retries, returning its JSON output and (for mapper nodes) the
// branch label it selected.
func (r *Runner) runNode(ctx context.Context, graph models.WorkflowGraph, node models.WorkflowNode, results *nodeResult) (json.RawMessage, string, error) {
	timeout := defaultNodeTimeout
	if node.TimeoutMS > 0 {
		timeout = time.Duration(node.TimeoutMS) * time.Millisecond
	}

	maxAttempts := node.MaxRetries + 1
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		nodeCtx, cancel := context.WithTimeout(ctx, timeout)
		output, branch, err := r.execNode(nodeCtx, graph, node, results)
		cancel()
		if err == nil {
			return output, branch, nil
		}
		lastErr = err
	}
	return nil, "", lastErr
}

func (r *Runner) execNode(ctx context.Context, graph models.WorkflowGraph, node models.WorkflowNode, results *nodeResult) (json.RawMessage, string, error) {
	params, err := renderParams(node.Params, results)
	if err != nil {
		return nil, "", err
	}

	switch node.Kind {
	case models.NodeKindTool:
		name, err := resolveToolName(node)
		if err != nil {
			return nil, "", err
		}
		result, err := r.Registry.Invoke(ctx, name, params, r.Policy, "workflow")
		if err != nil {
			return nil, "", err
		}
		body, _ := json.Marshal(result)
		return body, "", nil

	case models.NodeKindAgent:
		if r.Agents == nil {
			return nil, "", fmt.Errorf("workflow: no agent executor configured")
		}
		output, err := r.Agents.RunAgentNode(ctx, node.AgentID, params)
		return output, "", err

	case models.NodeKindMapper:
		value := extractField(params, node.Condition)
		branch := evalCondition(node.Condition, value)
		return params, branch, nil

	default:
		return params, "", nil
	}
}

// renderParams substitutes "<nodeID>.output" references inside a node's
// params against already-computed results. Only top-level string field
// values are templated.
func renderParams(raw json.RawMessage, results *nodeResult) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return raw, nil
	}

	for k, v := range fields {
		s, ok := v.(string)
		if !ok || !strings.Contains(s, ".output") {
			continue
		}
		nodeID := strings.TrimSuffix(s, ".output")
		if out, ok := results.get(nodeID); ok {
			var decoded any
			if err := json.Unmarshal(out, &decoded); err == nil {
				fields[k] = decoded
			}
		}
	}

	return json.Marshal(fields)
}

func extractField(params json.RawMessage, rule *models.DecisionRule) string {
	if rule == nil || rule.Field == "" {
		return string(params)
	}
	var fields map[string]any
	if err := json.Unmarshal(params, &fields); err != nil {
		return ""
	}
	if v, ok := fields[rule.Field]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}
