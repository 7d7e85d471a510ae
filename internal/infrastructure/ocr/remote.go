package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/finsight/backend/internal/domain"
)

// remoteDefaultConfidence is used for successful cloud results when the
// API exposes no granular confidence signal
const remoteDefaultConfidence = 0.8

// RemoteOCRClient uploads a compressed receipt image to a cloud OCR API as
// a fallback when on-device extraction fails. It owns its own deadline,
// independent of the primary strategy's.
type RemoteOCRClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	timeout     time.Duration
	maxPayload  int
	maxEdge     int
	rateLimiter *rate.Limiter
}

// RemoteOCRConfig holds configuration for the cloud OCR fallback
type RemoteOCRConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxPayload int
	MaxEdge    int
}

// NewRemoteOCRClient creates the cloud OCR strategy
func NewRemoteOCRClient(cfg RemoteOCRConfig) *RemoteOCRClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxPayload := cfg.MaxPayload
	if maxPayload <= 0 {
		maxPayload = 4 << 20 // 4 MiB
	}
	maxEdge := cfg.MaxEdge
	if maxEdge <= 0 {
		maxEdge = defaultMaxEdge
	}
	return &RemoteOCRClient{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		timeout:     timeout,
		maxPayload:  maxPayload,
		maxEdge:     maxEdge,
		rateLimiter: rate.NewLimiter(rate.Limit(2), 5),
	}
}

// Name identifies this strategy in results and logs
func (c *RemoteOCRClient) Name() string { return "remote" }

type remoteOCRRequest struct {
	Image  string `json:"image"`
	Format string `json:"format"`
}

type remoteOCRResponse struct {
	Text  string `json:"text"`
	Lines []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"lines,omitempty"`
}

// Extract downscales and re-encodes the image under the payload ceiling,
// then posts it as base64 JSON with bearer authorization.
func (c *RemoteOCRClient) Extract(ctx context.Context, imagePath string) (*domain.RawTextResult, error) {
	if _, err := os.Stat(imagePath); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrImageNotFound, imagePath)
	}

	payload, err := c.buildPayload(imagePath)
	if err != nil {
		return nil, err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrEngineFailure, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/v1/ocr", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", domain.ErrEngineFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: remote OCR after %s", domain.ErrExtractionTimeout, c.timeout)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("[OCR] remote OCR error - status: %d, body: %s", resp.StatusCode, truncate(string(body), 200))
		return nil, fmt.Errorf("%w: status %d", domain.ErrEngineFailure, resp.StatusCode)
	}

	var ocrResp remoteOCRResponse
	if err := json.Unmarshal(body, &ocrResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", domain.ErrEngineFailure, err)
	}

	result := &domain.RawTextResult{
		Succeeded: true,
		Text:      ocrResp.Text,
		Strategy:  c.Name(),
	}
	if !result.HasText() {
		return nil, domain.ErrNoTextFound
	}

	if len(ocrResp.Lines) > 0 {
		var sum float64
		block := domain.TextBlock{Text: ocrResp.Text}
		for _, line := range ocrResp.Lines {
			sum += line.Confidence
			block.Lines = append(block.Lines, line.Text)
		}
		mean := sum / float64(len(ocrResp.Lines))
		result.Confidence = &mean
		result.Blocks = []domain.TextBlock{block}
	} else {
		conf := remoteDefaultConfidence
		result.Confidence = &conf
	}

	return result, nil
}

// buildPayload compresses the image until it fits under the payload
// ceiling; images that cannot be compressed enough are rejected.
func (c *RemoteOCRClient) buildPayload(imagePath string) ([]byte, error) {
	img, err := loadImage(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
	}
	img = downscale(img, c.maxEdge)

	// base64 inflates by 4/3, leave headroom under the ceiling
	encoded, err := encodeUnderBudget(img, c.maxPayload*3/4)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
	}
	if len(encoded) > c.maxPayload*3/4 {
		return nil, fmt.Errorf("%w: %d bytes after compression", domain.ErrImageTooLarge, len(encoded))
	}

	return json.Marshal(remoteOCRRequest{
		Image:  base64.StdEncoding.EncodeToString(encoded),
		Format: "jpeg",
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
