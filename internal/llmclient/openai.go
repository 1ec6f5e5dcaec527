package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gasable/hub/internal/errkind"
)

const embedCacheTTL = 10 * time.Minute

// OpenAIClient implements both Embedder and ChatClient against an
// OpenAI-compatible API (OpenAI itself, or any compatible gateway reachable
// via a custom BaseURL).
type OpenAIClient struct {
	client     *openai.Client
	embedModel string
	dimension  int
	maxRetries int
	cache      *ttlCache
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	EmbedModel string
	Dimension  int
	MaxRetries int
	CacheSize  int
}

var (
	_ Embedder   = (*OpenAIClient)(nil)
	_ ChatClient = (*OpenAIClient)(nil)
)

// NewOpenAIClient builds a client. APIKey is required.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errkind.Newf(errkind.BadRequest, "llmclient.NewOpenAIClient", "api key is required")
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "text-embedding-3-small"
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4096
	}

	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(conf),
		embedModel: cfg.EmbedModel,
		dimension:  cfg.Dimension,
		maxRetries: cfg.MaxRetries,
		cache:      newTTLCache(embedCacheTTL, cfg.CacheSize),
	}, nil
}

// Dimension returns the embedding width this client produces.
func (c *OpenAIClient) Dimension() int { return c.dimension }

// Embed returns one vector per input text, collapsing duplicate text within
// a single call and reusing cached vectors across calls for up to 10 minutes.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		key := cacheKey(c.embedModel, text)
		if v, ok := c.cache.get(key); ok {
			out[i] = v.([]float32)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	result, err := retryWithBackoff(ctx, c.maxRetries, func() ([][]float32, error) {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: missTexts,
			Model: openai.EmbeddingModel(c.embedModel),
		})
		if err != nil {
			return nil, err
		}
		vecs := make([][]float32, len(resp.Data))
		for _, d := range resp.Data {
			vecs[d.Index] = d.Embedding
		}
		return vecs, nil
	})
	if err != nil {
		return nil, classifyError("llmclient.Embed", err)
	}

	for j, idx := range missIdx {
		out[idx] = result[j]
		c.cache.put(cacheKey(c.embedModel, missTexts[j]), result[j])
	}
	return out, nil
}

// Chat runs one non-streaming chat completion, optionally offering tools.
func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []Message, tools []ToolDef) (ChatResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}

	resp, err := retryWithBackoff(ctx, c.maxRetries, func() (openai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return ChatResponse{}, classifyError("llmclient.Chat", err)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, errkind.New(errkind.UpstreamUnavailable, "llmclient.Chat", fmt.Errorf("no choices returned"))
	}

	choice := resp.Choices[0]
	out := ChatResponse{
		Content:      choice.Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Input),
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []ToolDef) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(t.InputSchema),
			},
		})
	}
	return out
}

func cacheKey(model, text string) string {
	return model + "\x00" + text
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	return true
}

func classifyError(op string, err error) error {
	if errors.Is(err, errRetriesExhausted) || errors.Is(err, context.DeadlineExceeded) {
		return errkind.New(errkind.UpstreamTimeout, op, err)
	}
	if strings.Contains(err.Error(), "context canceled") {
		return errkind.New(errkind.UpstreamTimeout, op, err)
	}
	return errkind.New(errkind.UpstreamUnavailable, op, err)
}
