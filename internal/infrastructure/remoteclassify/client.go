package remoteclassify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/finsight/backend/internal/domain"
)

// Client calls a chat-completion style API to categorize merchants the
// rule tables cannot resolve. Requests are rate limited and retried with
// exponential backoff on transient failures.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	rateLimiter *rate.Limiter
	debug       bool
}

// NewClient creates a remote classification client
func NewClient(apiKey, baseURL, model string) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		rateLimiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// SetDebug enables verbose request/response logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// exponentialBackoff returns the wait before retry attempt n (1-based)
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

const systemPrompt = `You are an expense categorization assistant. Given a merchant name, an optional purchase description and an optional amount, choose the single best expense category.

Respond with ONLY valid JSON in this exact format:
{"category": "<category>", "confidence": 0.0, "reasoning": "<one short sentence>"}

The category MUST be one of: %s

The confidence must be a number between 0 and 1. Do not use markdown code blocks.`

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify asks the remote model to categorize one merchant. Any transport
// failure, non-2xx status, malformed body or out-of-set category is
// reported as an error; the caller degrades to its rule result.
func (c *Client) Classify(ctx context.Context, merchant, description string, amount *decimal.Decimal) (*domain.RemoteClassification, error) {
	if merchant == "" {
		return nil, domain.ErrInvalidRequest
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, strings.Join(domain.Categories, ", "))},
			{Role: "user", Content: buildUserPrompt(merchant, description, amount)},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		result, retryable, err := c.doClassify(ctx, payload)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		if c.debug {
			log.Printf("[CLASSIFY] attempt %d failed, retrying: %v", attempt, err)
		}
		select {
		case <-time.After(exponentialBackoff(attempt)):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrRemoteClassifier, ctx.Err())
		}
	}

	return nil, lastErr
}

func (c *Client) doClassify(ctx context.Context, payload []byte) (*domain.RemoteClassification, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", domain.ErrRemoteClassifier, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		if c.debug {
			log.Printf("[CLASSIFY] API error - status: %d, body: %s", resp.StatusCode, string(body))
		}
		retryable := resp.StatusCode >= http.StatusInternalServerError
		return nil, retryable, fmt.Errorf("%w: status %d", domain.ErrRemoteClassifier, resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, false, fmt.Errorf("%w: decoding response: %v", domain.ErrInvalidResponse, err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, false, fmt.Errorf("%w: no choices in response", domain.ErrInvalidResponse)
	}

	result, err := ParseClassificationJSON(chatResp.Choices[0].Message.Content)
	if err != nil {
		return nil, false, err
	}
	return result, false, nil
}

func buildUserPrompt(merchant, description string, amount *decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Merchant: %s", merchant)
	if description != "" {
		fmt.Fprintf(&b, "\nDescription: %s", description)
	}
	if amount != nil {
		fmt.Fprintf(&b, "\nAmount: %s", amount.StringFixed(2))
	}
	return b.String()
}

// ParseClassificationJSON extracts and validates the model's JSON verdict.
// Models wrap output in markdown fences or prose despite instructions, so
// the first {...} object is located before decoding. Validation fails
// closed: out-of-set categories and non-numeric confidences are errors.
func ParseClassificationJSON(text string) (*domain.RemoteClassification, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in response", domain.ErrInvalidResponse)
	}
	text = text[start : end+1]

	var result domain.RemoteClassification
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}

	if !domain.IsValidCategory(result.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidResponse, result.Category)
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	return &result, nil
}
