package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"plumage/internal/config"
)

func newTestClient() *HTTPClient {
	return &HTTPClient{
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		limiter:     rate.NewLimiter(rate.Inf, 1),
		maxAttempts: 3,
		baseBackoff: 5 * time.Millisecond,
	}
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func TestClassifyParsesCompletion(t *testing.T) {
	labels := `{"humor_type":"observational","topic_category":"tech","has_data_reference":true,"shows_vulnerability":false,"critique_type":"none"}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("unexpected auth header %q with no key configured", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Temperature != 0 {
			t.Errorf("temperature = %v", req.Temperature)
		}
		fmt.Fprint(w, completionBody(labels))
	}))
	defer ts.Close()

	c := newTestClient()
	got, err := c.Classify(context.Background(), config.ModelSpec{Name: "m", Model: "m-1", BaseURL: ts.URL}, "some tweet")
	if err != nil {
		t.Fatal(err)
	}
	if got.HumorType != "observational" || got.TopicCategory != "tech" || !got.HasDataReference {
		t.Fatalf("parsed labels = %+v", got)
	}
}

func TestClassifyRejectsUnknownLabels(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody(`{"humor_type":"slapstick","topic_category":"tech","critique_type":"none"}`))
	}))
	defer ts.Close()

	c := newTestClient()
	_, err := c.Classify(context.Background(), config.ModelSpec{Name: "m", BaseURL: ts.URL}, "x")
	if err == nil {
		t.Fatal("expected error for labels outside the enumerations")
	}
}

func TestClassifyRetriesOn429(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, completionBody(`{"humor_type":"none","topic_category":"general","critique_type":"none"}`))
	}))
	defer ts.Close()

	c := newTestClient()
	got, err := c.Classify(context.Background(), config.ModelSpec{Name: "m", BaseURL: ts.URL}, "x")
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	if got.HumorType != "none" {
		t.Fatalf("labels = %+v", got)
	}
}

func TestClassifyGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := newTestClient()
	_, err := c.Classify(context.Background(), config.ModelSpec{Name: "m", BaseURL: ts.URL}, "x")
	if err == nil {
		t.Fatal("expected failure after exhausting attempts")
	}
	if attempts != c.maxAttempts {
		t.Fatalf("attempts = %d, want %d", attempts, c.maxAttempts)
	}
}

func TestClassifyNonRetryableStatus(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := newTestClient()
	_, err := c.Classify(context.Background(), config.ModelSpec{Name: "m", BaseURL: ts.URL}, "x")
	if err == nil {
		t.Fatal("expected error on 401")
	}
	if attempts != 1 {
		t.Fatalf("401 should not retry, attempts = %d", attempts)
	}
}
