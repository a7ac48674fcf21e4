// Package llm holds the provider neutral request contract shared by the
// orchestrator, the analysis prompts and the Gemini client.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned by clients when the model produced no text.
var ErrEmptyResponse = errors.New("model returned empty response")

// Client sends one request to a model and returns its textual answer.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Part is one block of user content. Source names where the text came from,
// typically a file name, and is only used for logging.
type Part struct {
	Source string
	Text   string
}

// Request is a single generation call.
type Request struct {
	// System is an optional system instruction.
	System string
	Parts  []Part
	Config Config
}

// Text returns a request made of a single text part.
func Text(prompt string) Request {
	return Request{Parts: []Part{{Text: prompt}}}
}

// Len is the total byte length of the system instruction and all parts.
func (r Request) Len() int {
	n := len(r.System)
	for _, p := range r.Parts {
		n += len(p.Text)
	}
	return n
}

// Config carries generation settings. Nil pointers leave the provider default.
type Config struct {
	Model          string
	JSON           bool
	Schema         *Schema
	Temperature    *float32
	TopP           *float32
	TopK           *float32
	ThinkingBudget *int32
}

// Deterministic returns the settings used for scoring: greedy decoding and
// thinking disabled, so repeated runs over the same input agree.
func Deterministic() Config {
	return Config{
		Temperature:    Ptr[float32](0),
		TopP:           Ptr[float32](0),
		TopK:           Ptr[float32](1),
		ThinkingBudget: Ptr[int32](0),
	}
}

// WithSchema returns c asking for JSON output shaped by s.
func (c Config) WithSchema(s *Schema) Config {
	c.JSON = true
	c.Schema = s
	return c
}

func Ptr[T any](v T) *T {
	return &v
}

// Type is a JSON schema type.
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
)

// Schema is the subset of OpenAPI schema supported for structured output.
type Schema struct {
	Type        Type
	Description string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
	Enum        []string
	Nullable    bool
}
