package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"plumage/internal/config"
	"plumage/internal/metrics"
	"plumage/internal/model"
)

// Completer classifies one tweet text with one hosted model.
type Completer interface {
	Classify(ctx context.Context, spec config.ModelSpec, text string) (model.Classification, error)
}

// HTTPClient talks to OpenAI-compatible chat-completions endpoints.
type HTTPClient struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

func NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     newDefaultLimiter(),
		maxAttempts: getEnvInt("LLM_API_MAX_ATTEMPTS", 3),
		baseBackoff: time.Duration(getEnvInt("LLM_API_BASE_BACKOFF_MS", 500)) * time.Millisecond,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

// Classify asks spec's model for the strict-JSON label object and validates
// it against the known enumerations.
func (c *HTTPClient) Classify(ctx context.Context, spec config.ModelSpec, text string) (model.Classification, error) {
	out := model.Neutral()
	req := chatRequest{
		Model: spec.Model,
		Messages: []chatMessage{
			{Role: "user", Content: fmt.Sprintf("%s\n\nTweet to classify: %q", classificationPrompt, text)},
		},
	}
	req.ResponseFormat.Type = "json_object"
	payload, err := json.Marshal(req)
	if err != nil {
		return out, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return out, err
	}
	metrics.LLMRequests.WithLabelValues(spec.Name).Inc()
	resp, err := c.doWithRetry(ctx, spec, payload)
	if err != nil {
		metrics.LLMFailures.WithLabelValues(spec.Name).Inc()
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		metrics.LLMFailures.WithLabelValues(spec.Name).Inc()
		return out, fmt.Errorf("llm status %d from %s", resp.StatusCode, spec.Name)
	}
	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return out, err
	}
	if len(raw.Choices) == 0 {
		return out, fmt.Errorf("empty completion from %s", spec.Name)
	}
	var got model.Classification
	if err := json.Unmarshal([]byte(raw.Choices[0].Message.Content), &got); err != nil {
		return out, fmt.Errorf("decode classification from %s: %w", spec.Name, err)
	}
	if !got.Valid() {
		return out, fmt.Errorf("labels outside enumerations from %s", spec.Name)
	}
	return got, nil
}

func (c *HTTPClient) doWithRetry(ctx context.Context, spec config.ModelSpec, payload []byte) (*http.Response, error) {
	u := spec.BaseURL + "/chat/completions"
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if key := spec.APIKey(); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
		resp, err := c.httpClient.Do(req)
		if err == nil {
			if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
				ra := resp.Header.Get("Retry-After")
				_ = resp.Body.Close()
				wait := backoff
				if ra != "" {
					if secs, err := strconv.Atoi(ra); err == nil {
						wait = time.Duration(secs) * time.Second
					} else if t, err := http.ParseTime(ra); err == nil {
						if d := time.Until(t); d > 0 {
							wait = d
						}
					}
				}
				// jitter +/-20%
				jitter := time.Duration(float64(wait) * 0.2)
				if jitter > 0 {
					wait = wait - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter))
				}
				metrics.IncLLMRetry(spec.Name)
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				backoff *= 2
				continue
			}
			return resp, nil
		}
		lastErr = err
		metrics.IncLLMRetry(spec.Name)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %v", c.maxAttempts, lastErr)
}

// newDefaultLimiter creates a rate limiter using env overrides if present.
func newDefaultLimiter() *rate.Limiter {
	rps := 2.0
	burst := 10
	if v := os.Getenv("LLM_API_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	if v := os.Getenv("LLM_API_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil && i > 0 {
		return i
	}
	return def
}
