package refine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func completion(content string) chatResponse {
	var resp chatResponse
	resp.Choices = append(resp.Choices, struct {
		Message message `json:"message"`
	}{Message: message{Role: "assistant", Content: content}})
	return resp
}

func testClient(server *httptest.Server) *Client {
	return &Client{
		apiKey:     "test-api-key",
		model:      DefaultModel,
		baseURL:    server.URL,
		httpClient: server.Client(),
		delays:     []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond},
		cache:      make(map[string]string),
	}
}

func TestRefine(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-api-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion("  grief.\n"))
	}))
	defer server.Close()

	refined, err := testClient(server).Refine(context.Background(), "Sadness", "my dog died last week")
	if err != nil {
		t.Fatalf("Refine() error = %v", err)
	}
	if refined != "Grief" {
		t.Errorf("Refine() = %q, want %q", refined, "Grief")
	}

	if got.Model != "moonshot-v1-8k" || got.Temperature != 0.3 || got.MaxTokens != 20 {
		t.Errorf("request parameters = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("messages = %+v", got.Messages)
	}
	prompt := got.Messages[1].Content
	for _, want := range []string{"my dog died last week", "Sadness", "Determination"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestRefine_EmptyDetail(t *testing.T) {
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
	}))
	defer server.Close()

	for _, detail := range []string{"", "   "} {
		refined, err := testClient(server).Refine(context.Background(), "Anger", detail)
		if err != nil {
			t.Fatalf("Refine(%q) error = %v", detail, err)
		}
		if refined != "Anger" {
			t.Errorf("Refine(%q) = %q, want main emotion", detail, refined)
		}
	}
	if n := requestCount.Load(); n != 0 {
		t.Errorf("made %d requests, want 0", n)
	}
}

func TestRefine_Caching(t *testing.T) {
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		json.NewEncoder(w).Encode(completion("Despair"))
	}))
	defer server.Close()

	client := testClient(server)
	for range 3 {
		if _, err := client.Refine(context.Background(), "Sadness", "nothing matters"); err != nil {
			t.Fatalf("Refine() error = %v", err)
		}
	}
	if n := requestCount.Load(); n != 1 {
		t.Errorf("made %d requests, want 1", n)
	}
}

func TestRefine_RateLimitRetry(t *testing.T) {
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fail first 2 requests with rate limit, succeed on 3rd
		if requestCount.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(completion("Anxiety"))
	}))
	defer server.Close()

	refined, err := testClient(server).Refine(context.Background(), "Fear", "exam tomorrow")
	if err != nil {
		t.Fatalf("Refine() error = %v", err)
	}
	if refined != "Anxiety" {
		t.Errorf("Refine() = %q", refined)
	}
	if n := requestCount.Load(); n != 3 {
		t.Errorf("Expected 3 requests, got %d", n)
	}
}

func TestRefine_RateLimitExhausted(t *testing.T) {
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testClient(server).Refine(context.Background(), "Fear", "exam tomorrow")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Refine() error = %v, want ErrRateLimited", err)
	}
	// initial attempt + 3 retries
	if n := requestCount.Load(); n != 4 {
		t.Errorf("Expected 4 requests, got %d", n)
	}
}

func TestRefine_RetryHonorsCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testClient(server)
	client.delays = []time.Duration{time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Refine(ctx, "Fear", "exam tomorrow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Refine() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestRefine_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		wantErr error
		wantMsg string
	}{
		{name: "invalid key", status: http.StatusUnauthorized, wantErr: ErrInvalidAPIKey},
		{name: "no choices", status: http.StatusOK, body: chatResponse{}, wantErr: ErrEmptyResponse},
		{name: "blank reply", status: http.StatusOK, body: completion("  "), wantErr: ErrEmptyResponse},
		{
			name:    "server error with message",
			status:  http.StatusInternalServerError,
			body:    map[string]any{"error": map[string]string{"message": "overloaded", "type": "server_error"}},
			wantMsg: "overloaded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != nil {
					json.NewEncoder(w).Encode(tt.body)
				}
			}))
			defer server.Close()

			_, err := testClient(server).Refine(context.Background(), "Joy", "sunny day")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestCleanReply(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Joy", "Joy"},
		{"joy", "Joy"},
		{`"Tender feelings".`, "Tender feelings"},
		{"  ILL-TEMPER \n", "Ill-temper"},
		{"Melancholy", "Melancholy"},
	}
	for _, tt := range tests {
		if got := cleanReply(tt.in); got != tt.want {
			t.Errorf("cleanReply(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
