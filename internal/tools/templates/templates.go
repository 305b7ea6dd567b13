// Package templates provides the get_latex_template tool.
package templates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vibetex/internal/logging"
	"vibetex/internal/tools"
)

// Name is the registry name of the tool.
const Name = "get_latex_template"

// ListType is the pseudo template name that lists the library.
const ListType = "list"

// ErrUnknownTemplate is returned for names the library does not hold.
var ErrUnknownTemplate = errors.New("template not found")

// Library is the template source the tool reads from.
type Library interface {
	Names() []string
	Get(name string) (string, error)
}

// Result is the decoded output of get_latex_template. Templates is set for
// "list"; TemplateType and TemplateContent otherwise.
type Result struct {
	Success         bool     `json:"success"`
	Templates       []string `json:"templates,omitempty"`
	TemplateType    string   `json:"template_type,omitempty"`
	TemplateContent string   `json:"template_content,omitempty"`
	Message         string   `json:"message"`
}

// Tool returns the registry entry serving lib.
func Tool(lib Library) *tools.Tool {
	return &tools.Tool{
		Name:        Name,
		Description: "Retrieve a LaTeX template example to use as context for generating similar documents",
		Category:    tools.CategoryDocument,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return execute(lib, args)
		},
		Schema: tools.ToolSchema{
			Required: []string{"type"},
			Properties: map[string]tools.Property{
				"type": {
					Type:        "string",
					Description: `Template name (e.g. swe_resume, letter) or "list"`,
				},
			},
		},
	}
}

func execute(lib Library, args map[string]any) (string, error) {
	kind, err := tools.RequiredString(args, "type")
	if err != nil {
		return "", err
	}
	kind = strings.ToLower(kind)
	names := lib.Names()

	if kind == ListType {
		return tools.EncodeResult(Result{
			Success:   true,
			Templates: names,
			Message:   "Available templates: " + strings.Join(names, ", "),
		})
	}

	content, err := lib.Get(kind)
	if err != nil {
		logging.ToolsDebug("get_latex_template: %s: %v", kind, err)
		return "", fmt.Errorf("%w: %q. Available templates: %s", ErrUnknownTemplate, kind, strings.Join(names, ", "))
	}

	logging.ToolsDebug("get_latex_template: retrieved %s (%d chars)", kind, len(content))
	return tools.EncodeResult(Result{
		Success:         true,
		TemplateType:    kind,
		TemplateContent: content,
		Message:         "Retrieved template: " + kind,
	})
}
