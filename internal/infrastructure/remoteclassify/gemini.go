package remoteclassify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"

	"github.com/finsight/backend/internal/domain"
)

// Gemini implements remote classification through Google Gemini. It is
// selected over the chat-completion client by configuration.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a Gemini-backed classifier
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

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// Classify asks Gemini to categorize one merchant
func (g *Gemini) Classify(ctx context.Context, merchant, description string, amount *decimal.Decimal) (*domain.RemoteClassification, error) {
	if merchant == "" {
		return nil, domain.ErrInvalidRequest
	}

	prompt := fmt.Sprintf(systemPrompt, strings.Join(domain.Categories, ", ")) +
		"\n\n" + buildUserPrompt(merchant, description, amount)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteClassifier, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty gemini response", domain.ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	return ParseClassificationJSON(text.String())
}

// Close releases the underlying client
func (g *Gemini) Close() error {
	return g.client.Close()
}
