package registry

import (
	"context"
	"encoding/json"

	"github.com/gasable/hub/pkg/models"
)

// FuncTool adapts a plain function into a Tool, for registering small
// closures as native tools without a dedicated type per tool.
type FuncTool struct {
	spec models.ToolSpec
	fn   func(ctx context.Context, args json.RawMessage, creds map[string]string) (ToolResult, error)
}

// NewFuncTool wraps fn as a Tool with the given spec.
func NewFuncTool(spec models.ToolSpec, fn func(ctx context.Context, args json.RawMessage, creds map[string]string) (ToolResult, error)) *FuncTool {
	return &FuncTool{spec: spec, fn: fn}
}

func (t *FuncTool) Name() string          { return t.spec.Name }
func (t *FuncTool) Spec() models.ToolSpec { return t.spec }

func (t *FuncTool) Invoke(ctx context.Context, args json.RawMessage, creds map[string]string) (ToolResult, error) {
	return t.fn(ctx, args, creds)
}
