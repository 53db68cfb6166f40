package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"modelforge/internal/services"
)

func completionServer(t *testing.T, handler func(w http.ResponseWriter, req chatCompletionRequest)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handler(w, req)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeContent(w http.ResponseWriter, field, content string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []any{map[string]any{field: map[string]any{"content": content}}},
	})
}

func noSleep(time.Duration) {}

func TestCompleteSendsPrompts(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, req chatCompletionRequest) {
		if req.Model != "demo-model" || len(req.Messages) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		if req.Messages[0].Role != "system" || req.Messages[1].Content != "a cube" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		writeContent(w, "message", "module.exports = {};")
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	got, err := client.Complete(context.Background(), "write code", "a cube")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "module.exports = {};" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestCompleteAcceptsDeltaShape(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, req chatCompletionRequest) {
		writeContent(w, "delta", "code")
	})
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	if got, err := client.Complete(context.Background(), "", "p"); err != nil || got != "code" {
		t.Fatalf("Complete = %q, %v", got, err)
	}
}

func TestCompleteRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, func(w http.ResponseWriter, req chatCompletionRequest) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeContent(w, "message", "ok")
	})

	var slept []time.Duration
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }))
	if _, err := client.Complete(context.Background(), "", "p"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if calls.Load() != 3 || len(slept) != 2 || slept[0] != time.Second {
		t.Fatalf("calls=%d slept=%v", calls.Load(), slept)
	}
}

func TestCompleteClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		marker error
		calls  int32
	}{
		{"unauthorized", http.StatusUnauthorized, services.ErrConfiguration, 1},
		{"bad request", http.StatusBadRequest, services.ErrValidation, 1},
		{"server error", http.StatusBadGateway, services.ErrTransient, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := completionServer(t, func(w http.ResponseWriter, req chatCompletionRequest) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			})
			client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithSleeper(noSleep))
			_, err := client.Complete(context.Background(), "", "p")
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
			if calls.Load() != tt.calls {
				t.Fatalf("calls = %d, want %d", calls.Load(), tt.calls)
			}
		})
	}
}

func TestCompleteEmptyContentIsRetriedThenTransient(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, func(w http.ResponseWriter, req chatCompletionRequest) {
		calls.Add(1)
		writeContent(w, "message", "  ")
	})
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithRetryMaxAttempts(2), WithSleeper(noSleep))
	_, err := client.Complete(context.Background(), "", "p")
	var empty *emptyContentError
	if !errors.As(err, &empty) || !errors.Is(err, services.ErrTransient) || calls.Load() != 2 {
		t.Fatalf("unexpected result calls=%d err=%v", calls.Load(), err)
	}
}

func TestCompleteRequiresKeyAndPrompt(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.Complete(context.Background(), "", "p"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	client = NewClient(Config{APIKey: "k"})
	if _, err := client.Complete(context.Background(), "", "  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, req chatCompletionRequest) {
		writeContent(w, "message", "OK")
	})
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestBackoffDelay(t *testing.T) {
	client := NewClient(Config{}, WithRetryBackoff(time.Second, 5*time.Second))
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := client.backoffDelay(i + 1); got != w {
			t.Errorf("backoffDelay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Fatalf("parseRetryAfter(3) = %v", got)
	}
	if got := parseRetryAfter("-1"); got != 0 {
		t.Fatalf("parseRetryAfter(-1) = %v", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Fatalf("parseRetryAfter(soon) = %v", got)
	}
}
