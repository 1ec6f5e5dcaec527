package models

import (
	"encoding/json"
	"time"
)

// Workflow is a row of gasable_workflows: a persisted directed graph of
// nodes and edges the workflow runtime can execute.
type Workflow struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Namespace   string          `json:"namespace"`
	Graph       WorkflowGraph   `json:"graph"`
	Schedule    *Schedule       `json:"schedule,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Schedule configures an optional cron trigger for a workflow. A nil
// Schedule (or Enabled false) means the workflow only runs on demand.
type Schedule struct {
	CronExpr string `json:"cron_expr"`
	Enabled  bool   `json:"enabled"`
}

// WorkflowGraph is the JSONB-serialized shape stored in gasable_workflows.graph.
type WorkflowGraph struct {
	Nodes []WorkflowNode `json:"nodes"`
	Edges []WorkflowEdge `json:"edges"`
}

// WorkflowNodeKind enumerates the node kinds the runtime knows how to execute.
type WorkflowNodeKind string

const (
	NodeKindStart    WorkflowNodeKind = "start"
	NodeKindTool     WorkflowNodeKind = "tool"
	NodeKindAgent    WorkflowNodeKind = "agent"
	NodeKindDecision WorkflowNodeKind = "decision"
	NodeKindMapper   WorkflowNodeKind = "mapper"
)

// ErrorPolicy controls what happens to the rest of the graph when a node fails.
type ErrorPolicy string

const (
	ErrorPolicyFailFast ErrorPolicy = "fail_fast"
	ErrorPolicyContinue ErrorPolicy = "continue"
)

// WorkflowNode is one vertex of a Workflow graph.
type WorkflowNode struct {
	ID          string           `json:"id"`
	Kind        WorkflowNodeKind `json:"kind"`
	ToolName    string           `json:"tool_name,omitempty"`
	AgentID     string           `json:"agent_id,omitempty"`
	Params      json.RawMessage  `json:"params,omitempty"`
	Condition   *DecisionRule    `json:"condition,omitempty"`
	TimeoutMS   int              `json:"timeout_ms,omitempty"`
	MaxRetries  int              `json:"max_retries,omitempty"`
	ErrorPolicy ErrorPolicy      `json:"error_policy,omitempty"`
}

// DecisionOperator enumerates the comparisons a decision node may apply.
type DecisionOperator string

const (
	OpContains DecisionOperator = "contains"
	OpEquals   DecisionOperator = "equals"
	OpRegex    DecisionOperator = "regex"
	OpGreater  DecisionOperator = "greater"
	OpLess     DecisionOperator = "less"
)

// DecisionRule selects an outgoing edge handle from a decision node's input.
type DecisionRule struct {
	Field    string           `json:"field"`
	Operator DecisionOperator `json:"operator"`
	Value    string           `json:"value"`
}

// WorkflowEdge is one directed connection between two nodes. SourceHandle
// distinguishes a decision node's "true"/"false" (or named) outputs.
type WorkflowEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"source_handle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"target_handle,omitempty"`
}

// Node is a row of the installable node catalog (distinct from a
// WorkflowNode, which is a graph vertex referencing one of these by name).
type Node struct {
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Category    string          `json:"category,omitempty"`
	Spec        json.RawMessage `json:"spec,omitempty"`
	Version     string          `json:"version,omitempty"`
	InstalledAt time.Time       `json:"installed_at,omitzero"`
}
