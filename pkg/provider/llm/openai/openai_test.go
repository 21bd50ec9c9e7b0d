package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/synergy/pkg/provider/llm"
	"github.com/MrWong99/synergy/pkg/provider/llm/openai"
)

// completionServer answers every chat completion with content and stores the
// decoded request body in *got.
func completionServer(t *testing.T, content string, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if got != nil {
			if err := json.Unmarshal(body, got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o-mini",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := openai.New("", "gpt-4o-mini"); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := openai.New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestGenerateJSON(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := completionServer(t, "```json\n{\"overallScore\":72}\n```", &body)
	g, err := openai.New("sk-test", "gpt-4o-mini", openai.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := g.GenerateJSON(context.Background(), llm.Request{
		System: "You are a recruiter.",
		Prompt: "Score this candidate.",
		Schema: map[string]any{"type": "object"},
		Document: &llm.Document{
			MIMEType: "text/plain",
			Data:     []byte("Ten years of Go."),
		},
	})
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if out != `{"overallScore":72}` {
		t.Errorf("output: got %q", out)
	}

	if body["model"] != "gpt-4o-mini" {
		t.Errorf("model: got %v", body["model"])
	}
	rf, _ := body["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format: got %v", body["response_format"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages: got %d, want 2", len(msgs))
	}
	sys, _ := msgs[0].(map[string]any)
	if s, _ := sys["content"].(string); !strings.Contains(s, "You are a recruiter.") || !strings.Contains(s, "JSON Schema") {
		t.Errorf("system message: got %q", s)
	}
	user, _ := msgs[1].(map[string]any)
	if s, _ := user["content"].(string); !strings.Contains(s, "Ten years of Go.") {
		t.Errorf("user message does not inline the document: %q", s)
	}
}

func TestGenerateJSON_BinaryDocumentRejected(t *testing.T) {
	t.Parallel()

	srv := completionServer(t, "{}", nil)
	g, err := openai.New("sk-test", "gpt-4o-mini", openai.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = g.GenerateJSON(context.Background(), llm.Request{
		Prompt:   "Score.",
		Document: &llm.Document{MIMEType: "application/pdf", Data: []byte("%PDF-1.7")},
	})
	if !errors.Is(err, llm.ErrUnsupportedDocument) {
		t.Errorf("got %v, want ErrUnsupportedDocument", err)
	}
}

func TestGenerateJSON_EmptyContent(t *testing.T) {
	t.Parallel()

	srv := completionServer(t, "  ", nil)
	g, err := openai.New("sk-test", "gpt-4o-mini", openai.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := g.GenerateJSON(context.Background(), llm.Request{Prompt: "x"}); !errors.Is(err, llm.ErrEmptyResponse) {
		t.Errorf("got %v, want ErrEmptyResponse", err)
	}
}
