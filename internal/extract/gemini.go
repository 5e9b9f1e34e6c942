package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"snapspend/internal/errs"
)

// Extractor turns a raw analysis response into a candidate insight via the
// text-generation service.
type Extractor interface {
	ExtractInsights(ctx context.Context, raw json.RawMessage) (*CandidateInsight, error)
	// Close closes the extractor and releases resources
	Close() error
}

// Gemini implements Extractor using Google Gemini.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Extractor instance.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.7)
	model.StopSequences = []string{"\n\nHuman:", "\n\nAssistant:"}

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// ExtractInsights prompts the model with the raw analysis response and
// drains the streamed reply completely before parsing. Fragments are
// concatenated in arrival order; no parsing is attempted mid-stream.
func (g *Gemini) ExtractInsights(ctx context.Context, raw json.RawMessage) (*CandidateInsight, error) {
	prompt := BuildPrompt(raw)

	var sb strings.Builder
	it := g.model.GenerateContentStream(ctx, genai.Text(prompt))
	for {
		resp, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, &errs.ExtractionError{Reason: "generation stream failed", Err: err}
		}
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					sb.WriteString(string(text))
				}
			}
		}
	}

	return ParseCandidate(sb.String())
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
