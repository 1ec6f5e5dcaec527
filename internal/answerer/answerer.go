package answerer

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/gasable/hub/internal/llmclient"
	"github.com/gasable/hub/internal/retriever"
	"github.com/gasable/hub/internal/sseio"
)

// ChatClient is the subset of llmclient.ChatClient the answerer needs for
// structured-JSON synthesis.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []llmclient.Message, tools []llmclient.ToolDef) (llmclient.ChatResponse, error)
}

// Answerer synthesizes a StructuredAnswer from retrieved hits, preferring an
// LLM call and falling back to a deterministic extractive builder.
type Answerer struct {
	Chat  ChatClient
	Model string
}

// Answer runs answer(query, hits, budget_ms). strictContextOnly forces the
// deterministic path (no LLM call) regardless of chat client availability.
func (a *Answerer) Answer(ctx context.Context, query string, result retriever.Result, budgetMS int, strictContextOnly bool) StructuredAnswer {
	hits := toSourcedText(result.Selected)

	if len(hits) == 0 {
		return StructuredAnswer{
			Title:   "Answer",
			Summary: []string{retriever.NoContextMessage(result.Language)},
		}
	}

	if strictContextOnly || a.Chat == nil {
		return buildFallback(query, hits)
	}

	if budgetMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(budgetMS)*time.Millisecond)
		defer cancel()
	}

	for attempt := 0; attempt < 2; attempt++ {
		sa, err := a.askLLM(ctx, query, hits)
		if err == nil {
			return sanitizeStructured(sa)
		}
	}

	return buildFallback(query, hits)
}

func (a *Answerer) askLLM(ctx context.Context, query string, hits []sourcedText) (StructuredAnswer, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Answer the question using only the provided passages. Return strict JSON matching "+
		"{\"title\":string,\"summary\":[string],\"sections\":[{\"heading\":string,\"bullets\":[string],\"paragraph\":string}],"+
		"\"sources\":[{\"id\":string,\"label\":string}]}. No prose outside the JSON.\n\nQuestion: %s\n\n", query)
	for _, h := range hits {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", h.id, h.text)
	}

	resp, err := a.Chat.Chat(ctx, a.Model, []llmclient.Message{
		{Role: "user", Content: b.String()},
	}, nil)
	if err != nil {
		return StructuredAnswer{}, err
	}

	var sa StructuredAnswer
	content := strings.TrimSpace(resp.Content)
	if err := json.Unmarshal([]byte(content), &sa); err != nil {
		return StructuredAnswer{}, fmt.Errorf("answerer: parse structured response: %w", err)
	}
	if sa.Title == "" && len(sa.Summary) == 0 && len(sa.Sections) == 0 {
		return StructuredAnswer{}, fmt.Errorf("answerer: empty structured response")
	}
	return sa, nil
}

func sanitizeStructured(sa StructuredAnswer) StructuredAnswer {
	sa.Title = sanitize(sa.Title)
	sa.Summary = clampBullets(sa.Summary, maxSummaryBullets)

	if len(sa.Sections) > maxSections {
		sa.Sections = sa.Sections[:maxSections]
	}
	for i, sec := range sa.Sections {
		sa.Sections[i].Heading = sanitize(sec.Heading)
		if len(sec.Bullets) > 0 {
			sa.Sections[i].Bullets = clampBullets(sec.Bullets, len(sec.Bullets))
		}
		if sec.Paragraph != "" {
			sa.Sections[i].Paragraph = sanitize(sec.Paragraph)
		}
	}
	return sa
}

func toSourcedText(selected []retriever.Selected) []sourcedText {
	out := make([]sourcedText, 0, len(selected))
	for _, s := range selected {
		if s.Text == "" {
			continue
		}
		out = append(out, sourcedText{id: s.ID, text: s.Text})
	}
	return out
}

// Format renders hits as a plain joined string (the format() contract),
// used when callers want raw grounding text rather than a structured answer.
func Format(hits []retriever.Selected) string {
	var parts []string
	for _, h := range hits {
		if h.Text != "" {
			parts = append(parts, sanitize(h.Text))
		}
	}
	return strings.Join(parts, "\n\n")
}

// PlainText flattens a StructuredAnswer into a single answer string: title,
// summary bullets, then each section's bullets or paragraph.
func PlainText(sa StructuredAnswer) string {
	var b strings.Builder
	if sa.Title != "" {
		b.WriteString(sa.Title)
		b.WriteString("\n\n")
	}
	for _, s := range sa.Summary {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	for _, sec := range sa.Sections {
		b.WriteString("\n")
		b.WriteString(sec.Heading)
		b.WriteString("\n")
		if sec.Paragraph != "" {
			b.WriteString(sec.Paragraph)
			b.WriteString("\n")
		}
		for _, bullet := range sec.Bullets {
			b.WriteString("- ")
			b.WriteString(bullet)
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// ToHTML renders a plain-text answer as minimally escaped HTML paragraphs,
// used for the final event's answer_html/structured_html fields.
func ToHTML(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}
	return b.String()
}

// RunAndReport runs Answer, emits answer_generated, and returns the Final SSE
// payload the caller should emit as the terminal "final" frame.
// answer_generated is emitted whenever there were hits and a chat client was
// consulted, including when the LLM output was rejected and the deterministic
// builder produced the answer. No answer_error event is emitted: LLM failures
// end in the deterministic builder and are not reported on the stream.
func RunAndReport(ctx context.Context, a *Answerer, query string, result retriever.Result, budgetMS int, strictContextOnly bool, reporter sseio.Reporter) Final {
	start := time.Now()

	sa := a.Answer(ctx, query, result, budgetMS, strictContextOnly)
	plain := PlainText(sa)

	if reporter != nil {
		if len(result.Selected) > 0 && a.Chat != nil && !strictContextOnly {
			_ = reporter.Emit("answer_generated", map[string]any{
				"duration_ms": time.Since(start).Milliseconds(),
				"chars":       len(plain),
			})
		}
	}

	return Final{
		Query:          query,
		Hits:           hitsFromResult(result),
		Answer:         plain,
		AnswerHTML:     ToHTML(plain),
		Structured:     sa,
		StructuredHTML: ToHTML(plain),
		Meta: Meta{
			Language:   result.Language,
			Expansions: result.Expansions,
			BudgetHit:  result.BudgetHit,
			ElapsedMS:  result.ElapsedMS,
		},
	}
}
