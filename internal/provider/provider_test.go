package provider

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

	"github.com/playperu/realitybench/internal/realitybench"
)

var voteSchema = realitybench.ObjectSchema(map[string]realitybench.Property{
	"target": {Type: "string", Enum: []string{"Ann", "Bob"}},
	"reason": {Type: "string"},
}, "target", "reason")

type chatBody struct {
	Model          string `json:"model"`
	MaxTokens      int    `json:"max_tokens"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// fakeAPI serves /chat/completions, answering the n-th call with replies[n].
// A reply starting with "!" is returned as a 500 error.
func fakeAPI(t *testing.T, replies ...string) (*httptest.Server, *atomic.Int32, chan chatBody) {
	t.Helper()
	var calls atomic.Int32
	bodies := make(chan chatBody, len(replies)+8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body chatBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		bodies <- body

		n := int(calls.Add(1)) - 1
		reply := replies[min(n, len(replies)-1)]
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(reply, "!") {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": reply[1:], "type": "server_error"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  body.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, bodies
}

func newTestClient(url string, retries int) *OpenAI {
	return NewOpenAI(OpenAIConfig{
		BaseURL:     url,
		APIKey:      "test",
		MaxRetries:  retries,
		RetryDelay:  time.Millisecond,
		Temperature: 0.8,
	}, nil)
}

func TestOpenAICompleteSendsSchemaAndSystemPrompt(t *testing.T) {
	srv, calls, bodies := fakeAPI(t, `{"target":"Bob","reason":"quiet"}`)
	c := newTestClient(srv.URL, 3)

	got, err := c.Complete(context.Background(), realitybench.Request{
		Prompt:       "Who goes?",
		SystemPrompt: "You are Ann.",
		Model:        "llama-3.1-8b-instant",
		Schema:       voteSchema,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != `{"target":"Bob","reason":"quiet"}` {
		t.Errorf("completion = %q", got)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}

	body := <-bodies
	if body.Model != "llama-3.1-8b-instant" || body.MaxTokens != maxTokens {
		t.Errorf("model/max_tokens = %s/%d", body.Model, body.MaxTokens)
	}
	if body.ResponseFormat == nil || body.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v, want json_object", body.ResponseFormat)
	}
	if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[0].Content != "You are Ann." {
		t.Fatalf("messages = %+v", body.Messages)
	}
	user := body.Messages[1].Content
	if !strings.Contains(user, `"enum":["Ann","Bob"]`) || !strings.HasSuffix(user, "Who goes?") {
		t.Errorf("user prompt missing schema or question: %q", user)
	}
}

func TestOpenAICompleteRetries(t *testing.T) {
	tests := []struct {
		name      string
		replies   []string
		retries   int
		wantCalls int32
		wantErr   bool
	}{
		{
			name:      "server error then success",
			replies:   []string{"!overloaded", `{"target":"Ann","reason":"x"}`},
			retries:   3,
			wantCalls: 2,
		},
		{
			name:      "schema violation then success",
			replies:   []string{`{"target":"Zed","reason":"x"}`, `{"reason":"x"}`, `{"target":"Ann","reason":"x"}`},
			retries:   5,
			wantCalls: 3,
		},
		{
			name:      "exhausted",
			replies:   []string{"!down"},
			retries:   4,
			wantCalls: 4,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls, _ := fakeAPI(t, tt.replies...)
			c := newTestClient(srv.URL, tt.retries)

			_, err := c.Complete(context.Background(), realitybench.Request{Prompt: "p", Model: "m", Schema: voteSchema})
			if tt.wantErr {
				if !errors.Is(err, realitybench.ErrProvider) {
					t.Fatalf("err = %v, want ErrProvider", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestOpenAICompleteWithoutSchema(t *testing.T) {
	srv, _, bodies := fakeAPI(t, "plain words")
	c := newTestClient(srv.URL, 1)

	got, err := c.Complete(context.Background(), realitybench.Request{Prompt: "hello", Model: "m"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "plain words" {
		t.Errorf("completion = %q", got)
	}
	if body := <-bodies; body.ResponseFormat != nil || body.Messages[1].Content != "hello" {
		t.Errorf("schema-less request altered: %+v", body)
	}
}

func TestOpenAICompleteStopsOnCancel(t *testing.T) {
	srv, _, _ := fakeAPI(t, "!down")
	c := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, MaxRetries: 10, RetryDelay: time.Hour}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Complete(ctx, realitybench.Request{Prompt: "p", Model: "m", Schema: voteSchema})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("backoff ignored cancellation")
	}
}

func TestRandomIsSchemaValidAndSeeded(t *testing.T) {
	ctx := context.Background()
	req := realitybench.Request{Schema: voteSchema}

	a, b := NewRandom(42), NewRandom(42)
	for range 20 {
		x, err := a.Complete(ctx, req)
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		y, _ := b.Complete(ctx, req)
		if x != y {
			t.Fatalf("same seed diverged: %s vs %s", x, y)
		}
		if _, err := voteSchema.Decode(x); err != nil {
			t.Fatalf("random reply violates schema: %v", err)
		}
	}
}
