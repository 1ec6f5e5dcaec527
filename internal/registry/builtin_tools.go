package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gasable/hub/pkg/models"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// webFetchSpec describes the built-in web_fetch tool's contract.
var webFetchSpec = models.ToolSpec{
	Name:        "web_fetch",
	Description: "Fetch a URL over HTTP(S) and return its text content, stripped of markup.",
	InputSchema: json.RawMessage(`{"type":"object","properties":{"url":{"type":"string"},"max_chars":{"type":"integer"}},"required":["url"]}`),
}

type webFetchArgs struct {
	URL      string `json:"url"`
	MaxChars int    `json:"max_chars"`
}

// NewWebFetchTool builds the web_fetch tool: a GET request through client,
// with HTML tags stripped and output capped at maxChars (0 disables the cap).
// Unlike gmail/github tools, it declares no AuthProvider since fetching a
// public URL needs no credential.
func NewWebFetchTool(client *http.Client, maxChars int) *FuncTool {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return NewFuncTool(webFetchSpec, func(ctx context.Context, raw json.RawMessage, creds map[string]string) (ToolResult, error) {
		var args webFetchArgs
		if err := json.Unmarshal(raw, &args); err != nil || strings.TrimSpace(args.URL) == "" {
			return ToolResult{Status: "error", Error: "url is required"}, nil
		}
		if !strings.HasPrefix(args.URL, "http://") && !strings.HasPrefix(args.URL, "https://") {
			return ToolResult{Status: "error", Error: "url must be http or https"}, nil
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
		if err != nil {
			return ToolResult{Status: "error", Error: err.Error()}, nil
		}
		resp, err := client.Do(req)
		if err != nil {
			return ToolResult{Status: "error", Error: err.Error()}, nil
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return ToolResult{Status: "error", Error: err.Error()}, nil
		}
		if resp.StatusCode >= 400 {
			return ToolResult{Status: "error", Error: resp.Status}, nil
		}

		text := htmlTagPattern.ReplaceAllString(string(body), " ")
		text = strings.Join(strings.Fields(text), " ")
		limit := args.MaxChars
		if limit <= 0 {
			limit = maxChars
		}
		truncated := false
		if limit > 0 && len(text) > limit {
			text = text[:limit]
			truncated = true
		}

		out, _ := json.Marshal(map[string]any{"url": args.URL, "content": text, "truncated": truncated})
		return ToolResult{Status: "ok", Output: out}, nil
	})
}

// echoSpec backs a trivial diagnostic tool useful for manual node/workflow
// smoke tests without any external dependency.
var echoSpec = models.ToolSpec{
	Name:        "echo",
	Description: "Echo the given args back unchanged. Used for diagnostics.",
}

// NewEchoTool builds the diagnostic echo tool.
func NewEchoTool() *FuncTool {
	return NewFuncTool(echoSpec, func(ctx context.Context, args json.RawMessage, creds map[string]string) (ToolResult, error) {
		return ToolResult{Status: "ok", Output: args}, nil
	})
}
