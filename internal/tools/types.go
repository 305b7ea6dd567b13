// Package tools defines the generation tools the composer orchestrates and
// the registry that decides which of them are available.
//
// A tool that is not registered is simply skipped by the composer, so the
// registry contents are the single switch for optional capabilities:
//
//	Composer → Registry.Has(name) → Registry.Execute(name, args) → JSON result
package tools

import (
	"context"
)

// ToolCategory classifies tools.
type ToolCategory string

const (
	// CategoryDocument covers LaTeX generation and templates.
	CategoryDocument ToolCategory = "/document"

	// CategoryAnimation covers manim rendering.
	CategoryAnimation ToolCategory = "/animation"

	// CategoryMedia covers frame extraction and other video post-processing.
	CategoryMedia ToolCategory = "/media"

	// CategoryResearch covers web fetching and summarization.
	CategoryResearch ToolCategory = "/research"

	// CategoryGeneral is for tools that fit nowhere else.
	CategoryGeneral ToolCategory = "/general"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// ToolSchema defines the JSON schema for tool arguments.
type ToolSchema struct {
	Required   []string            `json:"required"`
	Properties map[string]Property `json:"properties"`
}

// JSONSchema renders the schema as a JSON Schema object.
func (s ToolSchema) JSONSchema() map[string]any {
	required := s.Required
	if required == nil {
		required = []string{}
	}
	props := s.Properties
	if props == nil {
		props = map[string]Property{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// ExecuteFunc is the signature for tool execution.
// The result is a JSON document; failures are returned as errors.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool defines one generation capability.
type Tool struct {
	// Name is the unique identifier for the tool.
	Name string

	Description string

	Category ToolCategory

	Execute ExecuteFunc

	Schema ToolSchema
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// ToolResult wraps the result of tool execution with metadata.
type ToolResult struct {
	ToolName   string
	Result     string
	Error      error
	DurationMs int64
}

// IsSuccess returns true if the tool executed without error.
func (r *ToolResult) IsSuccess() bool {
	return r.Error == nil
}

// Spec is the public description of a tool.
type Spec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    ToolCategory   `json:"category"`
	InputSchema map[string]any `json:"input_schema"`
	Usage       Usage          `json:"usage"`
}
