package models

import "time"

// Secret is a row of the secrets table: an AES-GCM-sealed credential scoped
// to a (scope, key_name) pair, versioned so a running workflow can keep using
// the version it was started with even after a rotation.
type Secret struct {
	Scope      string    `json:"scope"`
	KeyName    string    `json:"key_name"`
	Ciphertext []byte    `json:"-"`
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}

// RunRecord is a row of agent_runs: the audit trail of one orchestrator turn.
type RunRecord struct {
	RunID         string          `json:"run_id"`
	UserID        string          `json:"user_id"`
	Namespace     string          `json:"namespace"`
	SelectedAgent string          `json:"selected_agent"`
	UserMessage   string          `json:"user_message"`
	ToolCalls     []ToolCallTrace `json:"tool_calls,omitempty"`
	ResultSummary string          `json:"result_summary"`
	ElapsedMS     int64           `json:"elapsed_ms"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ToolCallTrace is one entry of a RunRecord's tool_calls JSONB array.
type ToolCallTrace struct {
	Name       string `json:"name"`
	IsError    bool   `json:"is_error,omitempty"`
	ElapsedMS  int64  `json:"elapsed_ms"`
	ResultSize int    `json:"result_size,omitempty"`
}
