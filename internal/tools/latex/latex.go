// Package latex provides the generate_latex tool: natural language in,
// a chat message plus a LaTeX document out.
package latex

import (
	"context"
	"fmt"
	"strings"

	"vibetex/internal/articulation"
	"vibetex/internal/logging"
	"vibetex/internal/perception"
	"vibetex/internal/tools"
)

// Name is the registry name of the tool.
const Name = "generate_latex"

// Result is the decoded output of generate_latex.
type Result struct {
	Message     string `json:"message"`
	Latex       string `json:"latex"`
	ParseMethod string `json:"parse_method"`
}

// SystemPrompt instructs the model to answer in the two-section format that
// articulation.ParseDocumentResponse understands.
const SystemPrompt = `You are vibetex, an assistant that writes and edits LaTeX documents.

Answer in EXACTLY this format:
` + articulation.MessageMarker + `
One or two sentences telling the user what you produced or changed.
` + articulation.LatexMarker + `
The complete LaTeX document, from \documentclass to \end{document}.
` + articulation.EndMarker + `

Rules:
- Always return a complete, compilable document. Never return a fragment.
- When a CURRENT DOCUMENT is given, apply the request to it and keep everything else intact.
- Lines under CONTEXT are supporting material (templates, sources, generated media). Use them where they fit.
- Load the packages you use (hyperref for links, graphicx for images).
- Do not wrap the LaTeX in code fences.`

// Generator backs the generate_latex tool.
type Generator struct {
	llm       perception.LLMClient
	processor *articulation.ResponseProcessor
}

// NewGenerator creates a generator that asks llm for documents.
func NewGenerator(llm perception.LLMClient) *Generator {
	return &Generator{llm: llm, processor: articulation.NewResponseProcessor()}
}

// Tool returns the registry entry.
func (g *Generator) Tool() *tools.Tool {
	return &tools.Tool{
		Name:        Name,
		Description: "Generate or modify LaTeX given a natural language instruction",
		Category:    tools.CategoryDocument,
		Execute:     g.execute,
		Schema: tools.ToolSchema{
			Required: []string{"prompt"},
			Properties: map[string]tools.Property{
				"prompt": {
					Type:        "string",
					Description: "User intent or modification request",
				},
				"context": {
					Type:        "string",
					Description: "Optional supporting material appended to the prompt",
				},
				"document": {
					Type:        "string",
					Description: "Current LaTeX source to edit",
				},
			},
		},
	}
}

// Stats exposes parse statistics for the generator's replies.
func (g *Generator) Stats() articulation.ProcessorStats {
	return g.processor.GetStats()
}

func (g *Generator) execute(ctx context.Context, args map[string]any) (string, error) {
	prompt, err := tools.RequiredString(args, "prompt")
	if err != nil {
		return "", err
	}
	extra, err := tools.StringArg(args, "context", "")
	if err != nil {
		return "", err
	}
	document, err := tools.StringArg(args, "document", "")
	if err != nil {
		return "", err
	}

	user := BuildUserPrompt(prompt, extra, document)
	logging.ToolsDebug("generate_latex: prompt_len=%d context_len=%d document_len=%d", len(prompt), len(extra), len(document))

	raw, err := g.llm.CompleteWithSystem(ctx, SystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("latex generation failed: %w", err)
	}

	parsed := g.processor.Process(raw)
	if parsed.Latex == "" {
		logging.ToolsWarn("generate_latex: reply carried no LaTeX (method=%s)", parsed.ParseMethod)
	}
	return tools.EncodeResult(Result{
		Message:     parsed.Message,
		Latex:       parsed.Latex,
		ParseMethod: parsed.ParseMethod,
	})
}

// BuildUserPrompt appends the optional context and current document to prompt.
func BuildUserPrompt(prompt, extra, document string) string {
	var sb strings.Builder
	sb.WriteString(prompt)
	if extra != "" {
		sb.WriteString("\n\n% CONTEXT\n")
		sb.WriteString(extra)
	}
	if document != "" {
		sb.WriteString("\n\n% CURRENT DOCUMENT\n")
		sb.WriteString(document)
	}
	return sb.String()
}
