// Package gemini provides an llm.Generator backed by the Gemini API through
// the official google.golang.org/genai SDK.
//
// Unlike the prompt-based backends, Gemini receives the JSON Schema as a
// native response schema and accepts binary documents (PDF, images) as
// inline data parts.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/MrWong99/synergy/pkg/provider/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Generator implements llm.Generator using the Gemini API.
type Generator struct {
	client *genai.Client
	model  string
}

// Ensure Generator implements llm.Generator at compile time.
var _ llm.Generator = (*Generator)(nil)

type config struct {
	model   string
	baseURL string
}

// Option is a functional option for Generator.
type Option func(*config)

// WithModel overrides [DefaultModel].
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// New constructs a Gemini Generator.
func New(ctx context.Context, apiKey string, opts ...Option) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}
	cfg := &config{model: DefaultModel}
	for _, o := range opts {
		o(cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Generator{client: client, model: cfg.model}, nil
}

// GenerateJSON implements llm.Generator.
func (g *Generator) GenerateJSON(ctx context.Context, req llm.Request) (string, error) {
	parts := []*genai.Part{{Text: req.Prompt}}
	if req.Document != nil {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{
			MIMEType: req.Document.MIMEType,
			Data:     req.Document.Data,
		}})
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	gc := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if req.System != "" {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.Schema != nil {
		gc.ResponseSchema = ConvertSchema(req.Schema)
	}
	if req.Temperature != 0 {
		t := float32(req.Temperature)
		gc.Temperature = &t
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, gc)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	out, err := llm.ExtractJSON(resp.Text())
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	return out, nil
}

// ConvertSchema translates a JSON Schema document into the OpenAPI subset
// understood by Gemini's response schema. Unsupported keywords are dropped.
func ConvertSchema(js map[string]any) *genai.Schema {
	if js == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := js["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := js["description"].(string); ok {
		s.Description = d
	}
	if enum, ok := js["enum"].([]any); ok {
		for _, e := range enum {
			if str, ok := e.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}
	if v, ok := number(js["minimum"]); ok {
		s.Minimum = &v
	}
	if v, ok := number(js["maximum"]); ok {
		s.Maximum = &v
	}
	if props, ok := js["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				s.Properties[name] = ConvertSchema(sub)
			}
		}
	}
	if req, ok := js["required"].([]any); ok {
		for _, r := range req {
			if str, ok := r.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	}
	if req, ok := js["required"].([]string); ok {
		s.Required = append(s.Required, req...)
	}
	if items, ok := js["items"].(map[string]any); ok {
		s.Items = ConvertSchema(items)
	}
	return s
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
