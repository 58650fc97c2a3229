package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/faqhub/faqhub/internal/knowledge"
)

// answerPrompt grounds the model in the matched entries. The instructions
// keep it from answering outside the provided context.
const answerPrompt = `You are a helpful FAQ assistant. Answer the user's question using ONLY the knowledge base context below.

Rules:
- Base your answer strictly on the provided context.
- If the context does not fully cover the question, say so rather than guessing.
- Never fabricate details that are not in the context.
- Keep the answer concise and direct.

Knowledge base context:
%s

User question: %s`

// GenkitGenerator produces answers with a Genkit text model.
type GenkitGenerator struct {
	g     *genkit.Genkit
	model string
}

// NewGenkitGenerator creates a Generator backed by the named model,
// e.g. "googleai/gemini-2.5-flash".
func NewGenkitGenerator(g *genkit.Genkit, model string) (*GenkitGenerator, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	return &GenkitGenerator{g: g, model: model}, nil
}

// Answer implements Generator.
func (gg *GenkitGenerator) Answer(ctx context.Context, question string, matches []knowledge.Entry) (string, error) {
	response, err := genkit.Generate(ctx, gg.g,
		ai.WithModelName(gg.model),
		ai.WithPrompt(answerPrompt, formatContext(matches), question),
	)
	if err != nil {
		return "", fmt.Errorf("generate failed: %w", err)
	}

	text := strings.TrimSpace(response.Text())
	if text == "" {
		return "", fmt.Errorf("empty model response")
	}
	return text, nil
}

// formatContext renders matched entries as question and answer pairs,
// best match first.
func formatContext(matches []knowledge.Entry) string {
	var b strings.Builder
	for i, entry := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Q: %s\nA: %s", entry.Question, entry.Answer)
	}
	return b.String()
}
