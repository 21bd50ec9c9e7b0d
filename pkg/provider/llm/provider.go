// Package llm defines the Generator interface for batch, structured-output
// language model calls.
//
// A Generator takes a system prompt, a user prompt, an optional attached
// document and a JSON Schema describing the expected answer, and returns the
// model's raw JSON text. Callers own unmarshalling and validation of the
// result; backends only guarantee that they asked the model for JSON.
//
// Backends that have native structured output (Gemini) pass the schema to the
// API. Prompt-based backends (OpenAI chat, any-llm) embed the schema in the
// system prompt via [SchemaPrompt] and strip stray code fences from the answer
// via [ExtractJSON].
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned when the model produced no text at all.
var ErrEmptyResponse = errors.New("llm: empty response")

// ErrUnsupportedDocument is returned by backends that cannot ingest the MIME
// type of an attached document.
var ErrUnsupportedDocument = errors.New("llm: unsupported document type")

// Document is a binary attachment sent alongside the prompt.
type Document struct {
	// MIMEType is the IANA media type, e.g. "application/pdf".
	MIMEType string

	// Data is the raw (decoded) document body.
	Data []byte
}

// IsText reports whether the document can be inlined into a text prompt.
func (d *Document) IsText() bool {
	if d == nil {
		return false
	}
	mt := strings.ToLower(d.MIMEType)
	return strings.HasPrefix(mt, "text/") ||
		mt == "application/json" ||
		mt == "application/xml"
}

// Request carries one structured-output generation.
type Request struct {
	// System is the high-priority instruction framing the task.
	System string

	// Prompt is the user turn.
	Prompt string

	// Document is an optional attachment. Nil means none.
	Document *Document

	// Schema is the JSON Schema of the expected answer object. Nil means any
	// JSON object is acceptable.
	Schema map[string]any

	// Temperature is passed through when non-zero.
	Temperature float64
}

// Generator is the abstraction over any structured-output LLM backend.
type Generator interface {
	// GenerateJSON sends req to the model and returns the JSON text of the
	// answer. It returns [ErrEmptyResponse] when the model answered with
	// nothing and [ErrUnsupportedDocument] when req.Document cannot be sent.
	GenerateJSON(ctx context.Context, req Request) (string, error)
}

// SchemaPrompt appends JSON-only answer instructions, including the schema
// when present, to system.
func SchemaPrompt(system string, schema map[string]any) (string, error) {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(system))
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString("Respond with a single JSON object and nothing else.")
	if schema != nil {
		raw, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return "", fmt.Errorf("llm: marshal schema: %w", err)
		}
		b.WriteString(" The object must validate against this JSON Schema:\n")
		b.Write(raw)
	}
	return b.String(), nil
}

// UserText builds the user turn for prompt-based backends. Text documents are
// inlined below the prompt; any other attachment yields
// [ErrUnsupportedDocument].
func UserText(req Request) (string, error) {
	if req.Document == nil {
		return req.Prompt, nil
	}
	if !req.Document.IsText() {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDocument, req.Document.MIMEType)
	}
	return req.Prompt + "\n\n--- Document ---\n" + string(req.Document.Data), nil
}

// ExtractJSON trims whitespace and a surrounding Markdown code fence from a
// model answer. It returns [ErrEmptyResponse] for blank input.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			// Drop the info string ("json") on the opening fence.
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return "", ErrEmptyResponse
	}
	return s, nil
}
