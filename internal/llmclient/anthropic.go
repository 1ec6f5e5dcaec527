package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/gasable/hub/internal/errkind"
)

// AnthropicClient implements ChatClient against Anthropic's Messages API. It
// never implements Embedder: Anthropic has no embedding endpoint, so the
// Embedder role is always served by OpenAIClient regardless of ChatProvider.
type AnthropicClient struct {
	client     anthropic.Client
	maxRetries int
	maxTokens  int64
}

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
	MaxTokens  int64
}

var _ ChatClient = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client. APIKey is required.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errkind.Newf(errkind.BadRequest, "llmclient.NewAnthropicClient", "api key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		client:     anthropic.NewClient(options...),
		maxRetries: cfg.MaxRetries,
		maxTokens:  cfg.MaxTokens,
	}, nil
}

// Chat runs one non-streaming Messages.New call, folding any leading
// "system" role messages into the request's top-level System field since
// Anthropic does not accept a system message in the Messages list.
func (c *AnthropicClient) Chat(ctx context.Context, model string, messages []Message, tools []ToolDef) (ChatResponse, error) {
	system, rest := splitSystem(messages)

	msgParams, err := convertMessages(rest)
	if err != nil {
		return ChatResponse{}, errkind.New(errkind.BadRequest, "llmclient.Chat", err)
	}

	toolParams, err := convertTools(tools)
	if err != nil {
		return ChatResponse{}, errkind.New(errkind.BadRequest, "llmclient.Chat", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: c.maxTokens,
		Messages:  msgParams,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(toolParams) > 0 {
		params.Tools = toolParams
	}

	resp, err := retryWithBackoff(ctx, c.maxRetries, func() (*anthropic.Message, error) {
		return c.client.Messages.New(ctx, params)
	})
	if err != nil {
		return ChatResponse{}, classifyAnthropicError("llmclient.Chat", err)
	}

	out := ChatResponse{}
	if resp.Usage.InputTokens > 0 {
		out.InputTokens = int(resp.Usage.InputTokens)
	}
	if resp.Usage.OutputTokens > 0 {
		out.OutputTokens = int(resp.Usage.OutputTokens)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:    variant.ID,
				Name:  variant.Name,
				Input: json.RawMessage(variant.Input),
			})
		}
	}
	out.Content = text.String()
	return out, nil
}

func splitSystem(messages []Message) (string, []Message) {
	var system strings.Builder
	var rest []Message
	for _, m := range messages {
		if m.Role == "system" {
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return system.String(), rest
}

func convertMessages(messages []Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, m := range messages {
		var content []anthropic.ContentBlockParamUnion
		switch {
		case m.Role == "tool":
			content = append(content, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		case len(m.ToolCalls) > 0:
			if m.Content != "" {
				content = append(content, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if len(tc.Input) > 0 {
					if err := json.Unmarshal(tc.Input, &input); err != nil {
						return nil, fmt.Errorf("tool call %s: invalid input json: %w", tc.Name, err)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
		default:
			content = append(content, anthropic.NewTextBlock(m.Content))
		}

		var message anthropic.MessageParam
		if m.Role == "assistant" {
			message = anthropic.NewAssistantMessage(content...)
		} else {
			message = anthropic.NewUserMessage(content...)
		}
		result = append(result, message)
	}
	return result, nil
}

func convertTools(tools []ToolDef) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if len(t.InputSchema) > 0 {
			if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
				return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Name, err)
			}
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if toolParam.OfTool != nil {
			toolParam.OfTool.Description = anthropic.String(t.Description)
		}
		result = append(result, toolParam)
	}
	return result, nil
}

func classifyAnthropicError(op string, err error) error {
	if strings.Contains(err.Error(), "deadline") || strings.Contains(err.Error(), "timeout") {
		return errkind.New(errkind.UpstreamTimeout, op, err)
	}
	return errkind.New(errkind.UpstreamUnavailable, op, err)
}
