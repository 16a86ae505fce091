package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBackoffBase = 500 * time.Millisecond
	maxBackoff         = 30 * time.Second
)

// ErrUnavailable is returned when the provider could not be reached after
// exhausting all retry attempts.
var ErrUnavailable = errors.New("provider unavailable")

// Client talks to an OpenAI-compatible completion/embedding provider. It is
// the only component in the system that performs network calls to the LLM,
// so tests can stub it wholesale.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	embedModel  string
	temperature float64
	maxRetries  int
	backoffBase time.Duration
	httpClient  *http.Client
}

// Config carries the provider settings. Zero values fall back to defaults.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	EmbedModel  string
	Temperature float64
	MaxRetries  int
	BackoffBase time.Duration
}

// NewClient creates a provider client from the given config.
func NewClient(cfg Config) *Client {
	c := &Client{
		apiKey:      cfg.APIKey,
		baseURL:     defaultBaseURL,
		model:       cfg.Model,
		embedModel:  cfg.EmbedModel,
		temperature: cfg.Temperature,
		maxRetries:  defaultMaxRetries,
		backoffBase: defaultBackoffBase,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
	if cfg.BaseURL != "" {
		c.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.MaxRetries > 0 {
		c.maxRetries = cfg.MaxRetries
	}
	if cfg.BackoffBase > 0 {
		c.backoffBase = cfg.BackoffBase
	}
	return c
}

// Complete sends the prompt as a single user message and returns the text of
// the first choice plus the total token count. Transient failures (network
// errors, 429, 5xx) are retried with exponential backoff; each wait is
// strictly longer than the previous one. After maxRetries attempts the call
// fails with an error wrapping ErrUnavailable.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (Completion, error) {
	req := ChatRequest{
		Model:       c.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Completion{}, fmt.Errorf("marshaling request: %w", err)
	}

	respBody, err := c.postWithRetry(ctx, "/chat/completions", body)
	if err != nil {
		return Completion{}, err
	}

	var parsed ChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Completion{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Completion{}, fmt.Errorf("provider returned no choices")
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	tokens := parsed.Usage.TotalTokens
	if tokens == 0 {
		tokens = EstimateTokens(prompt) + EstimateTokens(text)
	}
	return Completion{Text: text, Tokens: tokens}, nil
}

// Embed returns embedding vectors for the given texts, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := EmbeddingRequest{Model: c.embedModel, Input: texts}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	respBody, err := c.postWithRetry(ctx, "/embeddings", body)
	if err != nil {
		return nil, err
	}

	var parsed EmbeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("provider returned %d embeddings for %d inputs", len(parsed.Data), len(texts))
	}

	// The provider may return data out of order; sort by index.
	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// postWithRetry POSTs the body to path, retrying transient failures with
// exponential backoff (base × 2^attempt, capped).
func (c *Client) postWithRetry(ctx context.Context, path string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		respBody, err := c.post(ctx, path, body)
		if err == nil {
			return respBody, nil
		}
		if !isTransient(err) {
			return nil, err
		}

		lastErr = err
		if attempt < c.maxRetries-1 {
			backoff := time.Duration(float64(c.backoffBase) * math.Pow(2, float64(attempt)))
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("%w: %d attempts failed: %v", ErrUnavailable, c.maxRetries, lastErr)
}

// transientError marks failures worth retrying: network errors, rate limits,
// and provider-side 5xx responses.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transientError{err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("reading response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return respBody, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &transientError{err: fmt.Errorf("provider status %d: %s", resp.StatusCode, truncateBody(respBody))}
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncateBody(respBody))
	}
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// EstimateTokens provides a rough token count using the 4-chars-per-token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
