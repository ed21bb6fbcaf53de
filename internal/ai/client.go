// Package ai talks to an OpenAI-compatible chat-completions endpoint that can
// return generated images.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mwantia/stickerbox/internal/settings"
	"github.com/mwantia/stickerbox/pkg/codec"
	"github.com/mwantia/stickerbox/pkg/log"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 30 * time.Second

	// MaxResponseBytes bounds how much of a response body is read.
	MaxResponseBytes = 32 << 20

	testPrompt = "A simple test image"
)

var (
	ErrInvalidConfiguration = errors.New("ai configuration is incomplete")
	ErrInvalidURL           = errors.New("ai endpoint is not a valid url")
	ErrNoImageGenerated     = errors.New("no image was generated")
	ErrInvalidBase64        = errors.New("generated image is not valid base64")
	ErrDecodingFailed       = errors.New("failed to decode ai response")
	ErrResponseTooLarge     = errors.New("ai response exceeds size limit")
)

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ai request failed with status %d", e.StatusCode)
}

type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	maxBody    int64
	log        log.LoggerService
}

// NewClient creates a client whose requests time out after timeout
// (DefaultTimeout when zero). Requests are limited to one every two seconds
// with a small burst.
func NewClient(timeout time.Duration, logger log.LoggerService) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 3),
		maxBody:    MaxResponseBytes,
		log:        logger,
	}
}

type imageURL struct {
	URL string `json:"url"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type generateRequest struct {
	Model       string    `json:"model"`
	Modalities  []string  `json:"modalities"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type generateResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Images []struct {
				Type     string   `json:"type"`
				ImageURL imageURL `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
}

func (r *generateResponse) firstImage() (string, bool) {
	if len(r.Choices) == 0 || len(r.Choices[0].Message.Images) == 0 {
		return "", false
	}
	return r.Choices[0].Message.Images[0].ImageURL.URL, true
}

// Generate sends prompt, and baseImage when present, and returns the raw
// bytes of the first generated image.
func (c *Client) Generate(ctx context.Context, prompt string, baseImage []byte, cfg settings.AIConfig) ([]byte, error) {
	if !cfg.IsValid() {
		return nil, ErrInvalidConfiguration
	}

	parts := []contentPart{{Type: "text", Text: prompt}}
	if len(baseImage) > 0 {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: codec.DataURL(baseImage)},
		})
	}

	resp, err := c.send(ctx, cfg, c.request(cfg, parts))
	if err != nil {
		return nil, err
	}

	encoded, ok := resp.firstImage()
	if !ok {
		return nil, ErrNoImageGenerated
	}

	data, err := decodeImageData(encoded)
	if err != nil {
		return nil, err
	}

	c.log.Info("Generated image (%d bytes) with model '%s'", len(data), cfg.ModelName)
	return data, nil
}

// TestConnection runs a throwaway generation and succeeds only when an image
// comes back.
func (c *Client) TestConnection(ctx context.Context, cfg settings.AIConfig) error {
	if !cfg.IsValid() {
		return ErrInvalidConfiguration
	}

	resp, err := c.send(ctx, cfg, c.request(cfg, []contentPart{{Type: "text", Text: testPrompt}}))
	if err != nil {
		return err
	}
	if _, ok := resp.firstImage(); !ok {
		return ErrNoImageGenerated
	}
	return nil
}

func (c *Client) request(cfg settings.AIConfig, parts []contentPart) generateRequest {
	return generateRequest{
		Model:       cfg.ModelName,
		Modalities:  []string{"image", "text"},
		Messages:    []message{{Role: "user", Content: parts}},
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

func (c *Client) send(ctx context.Context, cfg settings.AIConfig, body generateRequest) (*generateResponse, error) {
	endpoint, err := url.Parse(cfg.APIEndpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, ErrInvalidURL
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("POST %s (model '%s')", endpoint.Host, cfg.ModelName)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > c.maxBody {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, c.maxBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("AI endpoint returned %d: %s", resp.StatusCode, truncate(string(data), 512))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodingFailed, err)
	}
	return &out, nil
}

// decodeImageData accepts a data URL or bare base64.
func decodeImageData(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, ErrInvalidBase64
		}
		s = payload
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBase64, err)
	}
	if len(data) == 0 {
		return nil, ErrNoImageGenerated
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
