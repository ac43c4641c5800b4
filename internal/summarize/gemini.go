// Package summarize provides the finding summarizers: a Gemini-backed one
// and a deterministic extractive fallback.
package summarize

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/quarryhq/quarry/pkg/quarry/finding"
)

const defaultGeminiModel = "gemini-2.0-flash-exp"

// Gemini summarizes quotes with the Gemini API. Errors surface to the
// caller, which falls back to a deterministic summary, so a flaky API never
// fails a run.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a Gemini summarizer. An empty apiKey falls back to the
// GEMINI_API_KEY environment variable.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not found")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	modelName := os.Getenv("GEMINI_MODEL")
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.2)

	return &Gemini{client: client, model: model}, nil
}

// Close releases the underlying API client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// Summarize asks the model for a one-sentence summary of the quote in the
// context of its topic and source.
func (g *Gemini) Summarize(ctx context.Context, quote, topic string, meta finding.Meta) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize the following quote in one plain sentence. "+
			"The quote was found while researching the topic %q in the document %q. "+
			"Reply with the sentence only, no preamble.\n\nQuote:\n%s",
		topic, meta.Title, quote)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return out, nil
}
