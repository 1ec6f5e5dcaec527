// Package workflow executes a persisted node/edge graph: normalizing
// UI-flavored node kinds, stage-ordering nodes via a dependency graph, and
// branching mapper nodes by condition over an upstream node's output.
package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/pkg/models"
)

// normalizeKind maps UI-flavored node kind labels onto execution kinds.
func normalizeKind(raw string) models.WorkflowNodeKind {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(lower, "start"):
		return models.NodeKindStart
	case lower == "toolnode" || lower == "agentnode":
		return models.NodeKindTool
	case lower == "decisionnode":
		return models.NodeKindMapper
	default:
		return models.WorkflowNodeKind(lower)
	}
}

// resolveToolName returns node.tool or node.data.toolName, erroring with
// ConstraintViolation for tool nodes missing both.
func resolveToolName(node models.WorkflowNode) (string, error) {
	if node.ToolName != "" {
		return node.ToolName, nil
	}
	if node.Kind == models.NodeKindTool || node.Kind == models.NodeKindAgent {
		return "", errkind.Newf(errkind.ConstraintViolation, "workflow.resolveToolName",
			"tool node %q has neither node.tool nor node.data.toolName", node.ID)
	}
	return "", nil
}

// stageGraph is a topologically-ordered execution plan: each stage's nodes
// have no edges between them and can run in parallel, derived from an
// indegree count over the graph's edges.
type stageGraph struct {
	stages [][]string // node IDs per stage
}

// buildStages computes a stage-ordered plan from the graph's edges. Returns
// an error if the graph has a cycle.
func buildStages(graph models.WorkflowGraph) (*stageGraph, error) {
	if len(graph.Nodes) == 0 {
		return &stageGraph{}, nil
	}

	indegree := make(map[string]int, len(graph.Nodes))
	dependents := make(map[string][]string)
	byID := make(map[string]bool, len(graph.Nodes))

	for _, n := range graph.Nodes {
		byID[n.ID] = true
		indegree[n.ID] = 0
	}
	for _, e := range graph.Edges {
		if !byID[e.Source] || !byID[e.Target] {
			return nil, fmt.Errorf("workflow: edge references unknown node (%s -> %s)", e.Source, e.Target)
		}
		indegree[e.Target]++
		dependents[e.Source] = append(dependents[e.Source], e.Target)
	}

	ready := make([]string, 0)
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	processed := 0
	var stages [][]string
	for len(ready) > 0 {
		stage := append([]string(nil), ready...)
		stages = append(stages, stage)

		next := make([]string, 0)
		for _, id := range stage {
			processed++
			for _, dep := range dependents[id] {
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		sort.Strings(next)
		ready = next
	}

	if processed != len(byID) {
		return nil, fmt.Errorf("workflow: dependency cycle detected")
	}
	return &stageGraph{stages: stages}, nil
}

// outgoingEdges returns every edge whose source is nodeID.
func outgoingEdges(graph models.WorkflowGraph, nodeID string) []models.WorkflowEdge {
	var out []models.WorkflowEdge
	for _, e := range graph.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

func nodeByID(graph models.WorkflowGraph, id string) (models.WorkflowNode, bool) {
	for _, n := range graph.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return models.WorkflowNode{}, false
}
