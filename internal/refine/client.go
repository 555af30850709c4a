package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const userAgent = "musical-bridges/1.0"

// Completion parameters.
const (
	temperature = 0.3
	maxTokens   = 20
)

// Sentinel errors.
var (
	// ErrRateLimited is returned when the API rate limit is exceeded after retries.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAPIKey is returned when the API rejects the key.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrEmptyResponse is returned when the model returns no choices.
	ErrEmptyResponse = errors.New("empty completion response")
)

// Vocabulary is the set of emotions the model chooses from.
var Vocabulary = []string{
	"Joy", "Love", "Devotion", "Tender feelings", "Suffering", "Weeping", "High spirits",
	"Low spirits", "Anxiety", "Grief", "Dejection", "Despair", "Anger", "Hatred", "Disdain",
	"Contempt", "Disgust", "Guilt", "Pride", "Helplessness", "Patience", "Affirmation",
	"Negation", "Surprise", "Fear", "Self-attention", "Shyness", "Modesty", "Blushing",
	"Reflection", "Meditation", "Ill-temper", "Sulkiness", "Determination",
}

const systemPrompt = "You are Kimi, an assistant provided by Moonshot AI. You answer safely, accurately and helpfully in Chinese and English."

// Client is a Moonshot chat-completion client with caching and retry on rate limits.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	delays     []time.Duration

	// key = main emotion + "\x00" + detail
	cache   map[string]string
	cacheMu sync.RWMutex
}

// NewClient creates a refinement client. Returns ErrMissingAPIKey if cfg has no key.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	cfg = cfg.withDefaults()
	return &Client{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		delays: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		cache:  make(map[string]string),
	}, nil
}

// Refine returns the vocabulary emotion that best matches detail, given the user's main emotion.
// An empty detail returns mainEmotion unchanged without calling the API.
func (c *Client) Refine(ctx context.Context, mainEmotion, detail string) (string, error) {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return mainEmotion, nil
	}

	cacheKey := mainEmotion + "\x00" + detail
	c.cacheMu.RLock()
	if cached, ok := c.cache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(mainEmotion, detail)},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	respBody, err := c.doRequest(ctx, body)
	if err != nil {
		return "", fmt.Errorf("refining emotion: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("parsing completion response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	refined := cleanReply(resp.Choices[0].Message.Content)
	if refined == "" {
		return "", ErrEmptyResponse
	}

	c.cacheMu.Lock()
	c.cache[cacheKey] = refined
	c.cacheMu.Unlock()

	return refined, nil
}

func buildPrompt(mainEmotion, detail string) string {
	return fmt.Sprintf(`Refine the emotion from the description below and pick the closest match from the emotion list. Reply with the emotion name only.
Description: %q
Main emotion: %q
Emotion list: %s.`, detail, mainEmotion, strings.Join(Vocabulary, ", "))
}

// cleanReply trims whitespace, quotes and trailing punctuation, and canonicalizes
// the casing of vocabulary words.
func cleanReply(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'.。`)
	for _, v := range Vocabulary {
		if strings.EqualFold(s, v) {
			return v
		}
	}
	return s
}

// doRequest performs the completion request with retry on rate limit.
// Retries up to 3 times with exponential backoff (1s, 2s, 4s).
func (c *Client) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= len(c.delays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.delays[attempt-1]):
			}
		}

		respBody, err := c.doSingleRequest(ctx, body)
		if err == nil {
			return respBody, nil
		}

		if errors.Is(err, ErrRateLimited) {
			lastErr = err
			continue
		}

		return nil, err
	}

	return nil, lastErr
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrInvalidAPIKey
	case resp.StatusCode >= 300:
		var apiErr apiError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error %d", resp.StatusCode)
	}

	return respBody, nil
}
