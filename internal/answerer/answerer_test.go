package answerer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gasable/hub/internal/llmclient"
	"github.com/gasable/hub/internal/retriever"
	"github.com/gasable/hub/internal/sseio"
)

type fakeChat struct {
	response llmclient.ChatResponse
	err      error
}

func (f *fakeChat) Chat(ctx context.Context, model string, messages []llmclient.Message, tools []llmclient.ToolDef) (llmclient.ChatResponse, error) {
	return f.response, f.err
}

func resultWithHits() retriever.Result {
	return retriever.Result{
		Language: "en",
		Selected: []retriever.Selected{
			{ID: "doc-1", Score: 0.9, Text: "Our pricing is simple and transparent."},
		},
	}
}

func TestAnswerReturnsNoContextMessageWhenEmpty(t *testing.T) {
	a := &Answerer{}
	sa := a.Answer(context.Background(), "query", retriever.Result{Language: "en"}, 1000, false)
	require.Equal(t, []string{"No context available."}, sa.Summary)
}

func TestAnswerReturnsArabicNoContextMessage(t *testing.T) {
	a := &Answerer{}
	sa := a.Answer(context.Background(), "query", retriever.Result{Language: "ar"}, 1000, false)
	require.Equal(t, noContextAR(), sa.Summary[0])
}

func TestAnswerUsesLLMWhenAvailable(t *testing.T) {
	chat := &fakeChat{response: llmclient.ChatResponse{
		Content: `{"title":"Pricing Overview","summary":["Pricing is simple"],"sections":[{"heading":"Pricing","bullets":["Transparent pricing"]}]}`,
	}}
	a := &Answerer{Chat: chat, Model: "gpt-test"}

	sa := a.Answer(context.Background(), "pricing", resultWithHits(), 5000, false)
	require.Equal(t, "Pricing Overview", sa.Title)
	require.NotEmpty(t, sa.Sections)
}

func TestAnswerFallsBackWhenLLMReturnsInvalidJSON(t *testing.T) {
	chat := &fakeChat{response: llmclient.ChatResponse{Content: "not json"}}
	a := &Answerer{Chat: chat, Model: "gpt-test"}

	sa := a.Answer(context.Background(), "pricing", resultWithHits(), 5000, false)
	require.NotEmpty(t, sa.Summary)
}

func TestAnswerStrictContextOnlySkipsLLM(t *testing.T) {
	chat := &fakeChat{response: llmclient.ChatResponse{Content: `{"title":"ignored"}`}}
	a := &Answerer{Chat: chat, Model: "gpt-test"}

	sa := a.Answer(context.Background(), "pricing", resultWithHits(), 5000, true)
	require.NotEqual(t, "ignored", sa.Title)
}

func TestRunAndReportEmitsAnswerGenerated(t *testing.T) {
	chat := &fakeChat{response: llmclient.ChatResponse{
		Content: `{"title":"T","summary":["s"],"sections":[]}`,
	}}
	a := &Answerer{Chat: chat, Model: "gpt-test"}
	reporter := sseio.NewRecordingReporter()

	final := RunAndReport(context.Background(), a, "pricing", resultWithHits(), 5000, false, reporter)
	require.Equal(t, "pricing", final.Query)
	require.NotEmpty(t, final.Answer)

	var sawGenerated bool
	for _, f := range reporter.Frames {
		if f.Event == "answer_generated" {
			sawGenerated = true
		}
	}
	require.True(t, sawGenerated)
}

func TestPlainTextRendersTitleAndBullets(t *testing.T) {
	sa := StructuredAnswer{
		Title:   "T",
		Summary: []string{"s1"},
		Sections: []Section{
			{Heading: "H", Bullets: []string{"b1"}},
		},
	}
	text := PlainText(sa)
	require.Contains(t, text, "T")
	require.Contains(t, text, "s1")
	require.Contains(t, text, "H")
	require.Contains(t, text, "b1")
}

func noContextAR() string {
	return retriever.NoContextMessage("ar")
}
