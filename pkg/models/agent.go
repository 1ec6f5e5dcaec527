package models

import (
	"encoding/json"
	"time"
)

// Agent is a row of gasable_agents: a configured retrieval/answer persona
// scoped to a namespace, with its own allow-listed tools and model choices.
type Agent struct {
	ID            string         `json:"id"`
	DisplayName   string         `json:"display_name"`
	Namespace     string         `json:"namespace"`
	SystemPrompt  string         `json:"system_prompt,omitempty"`
	ToolAllowlist []string       `json:"tool_allowlist,omitempty"`
	AnswerModel   string         `json:"answer_model,omitempty"`
	RerankModel   string         `json:"rerank_model,omitempty"`
	TopK          int            `json:"top_k,omitempty"`
	AssistantID   string         `json:"assistant_id,omitempty"`
	APIKey        string         `json:"api_key,omitempty"`
	RAGSettings   map[string]any `json:"rag_settings,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ToolSpec is a row of the in-registry tool catalog: the contract a tool
// exposes to the orchestrator and workflow runtime.
type ToolSpec struct {
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	InputSchema  json.RawMessage `json:"input_schema,omitempty"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`
	AuthProvider string          `json:"auth_provider,omitempty"`
	RequiredKeys []string        `json:"required_keys,omitempty"`
}

// ToolCall is a single tool invocation requested by an assistant turn.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the outcome of executing a ToolCall.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}
