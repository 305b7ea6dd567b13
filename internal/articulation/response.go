// Package articulation turns raw model output into the pieces vibetex
// returns: a short chat message and a LaTeX document.
//
// Models are asked to answer in two sections:
//
//	===MESSAGE===
//	one or two sentences for the user
//	===LATEX===
//	\documentclass{article} ...
//	===END===
//
// They do not always comply, so Process walks a chain of recovery strategies
// and never fails: the last resort treats the whole reply as LaTeX.
package articulation

import (
	"regexp"
	"strings"
	"sync"

	"vibetex/internal/logging"
)

// Section markers the LaTeX generator is prompted to emit, one per line.
const (
	MessageMarker = "===MESSAGE==="
	LatexMarker   = "===LATEX==="
	EndMarker     = "===END==="
)

// DefaultMessage is used whenever no message could be recovered.
const DefaultMessage = "Document generated."

// Parse methods, most to least trusted.
const (
	MethodMarkers       = "markers"
	MethodLatexMarker   = "latex_marker"
	MethodMessageMarker = "message_marker"
	MethodFenced        = "fenced"
	MethodDocument      = "document"
	MethodFallback      = "fallback"
)

var (
	// Markers tolerate spacing and case drift ("=== Latex ===").
	messageMarkerRe = regexp.MustCompile(`(?mi)^[ \t]*={3,}[ \t]*MESSAGE[ \t]*={3,}[ \t]*$`)
	latexMarkerRe   = regexp.MustCompile(`(?mi)^[ \t]*={3,}[ \t]*LATEX[ \t]*={3,}[ \t]*$`)
	endMarkerRe     = regexp.MustCompile(`(?mi)^[ \t]*={3,}[ \t]*END[ \t]*={3,}[ \t]*$`)

	fenceRe = regexp.MustCompile("(?s)```[ \\t]*([A-Za-z]*)[ \\t]*\\r?\\n(.*?)```")
)

// DocumentResult is a parsed generator reply.
type DocumentResult struct {
	Message     string
	Latex       string
	ParseMethod string
	Confidence  float64
	Warnings    []string
}

// ProcessorStats counts parse outcomes.
type ProcessorStats struct {
	TotalProcessed int
	MarkerParses   int
	Recovered      int
	FallbackParses int
}

// ResponseProcessor parses dual-section replies and keeps statistics.
type ResponseProcessor struct {
	mu    sync.Mutex
	stats ProcessorStats
}

// NewResponseProcessor creates a new processor.
func NewResponseProcessor() *ResponseProcessor {
	return &ResponseProcessor{}
}

// ParseDocumentResponse parses raw with a throwaway processor.
func ParseDocumentResponse(raw string) *DocumentResult {
	return NewResponseProcessor().Process(raw)
}

// Process splits raw into message and LaTeX. It always returns a result.
func (rp *ResponseProcessor) Process(raw string) *DocumentResult {
	result := parse(raw)

	result.Latex = StripCodeFences(result.Latex)
	result.Message = strings.TrimSpace(result.Message)
	if result.Message == "" {
		result.Message = DefaultMessage
	}

	rp.mu.Lock()
	rp.stats.TotalProcessed++
	switch result.ParseMethod {
	case MethodMarkers:
		rp.stats.MarkerParses++
	case MethodFallback:
		rp.stats.FallbackParses++
	default:
		rp.stats.Recovered++
	}
	rp.mu.Unlock()

	logging.ArticulationDebug("Parsed response via %s (confidence=%.2f, latex_len=%d, warnings=%d)",
		result.ParseMethod, result.Confidence, len(result.Latex), len(result.Warnings))
	return result
}

// GetStats returns current processing statistics.
func (rp *ResponseProcessor) GetStats() ProcessorStats {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.stats
}

func parse(raw string) *DocumentResult {
	msgLoc := messageMarkerRe.FindStringIndex(raw)
	texLoc := latexMarkerRe.FindStringIndex(raw)

	switch {
	case msgLoc != nil && texLoc != nil && msgLoc[0] < texLoc[0]:
		return &DocumentResult{
			Message:     raw[msgLoc[1]:texLoc[0]],
			Latex:       untilEnd(raw[texLoc[1]:]),
			ParseMethod: MethodMarkers,
			Confidence:  1.0,
		}

	case msgLoc != nil && texLoc != nil:
		return &DocumentResult{
			Message:     untilEnd(raw[msgLoc[1]:]),
			Latex:       untilEnd(raw[texLoc[1]:msgLoc[0]]),
			ParseMethod: MethodMarkers,
			Confidence:  0.95,
			Warnings:    []string{"sections out of order"},
		}

	case texLoc != nil:
		return &DocumentResult{
			Message:     raw[:texLoc[0]],
			Latex:       untilEnd(raw[texLoc[1]:]),
			ParseMethod: MethodLatexMarker,
			Confidence:  0.9,
			Warnings:    []string{"message marker missing"},
		}

	case msgLoc != nil:
		body := untilEnd(raw[msgLoc[1]:])
		if r := recoverLatex(body); r != nil {
			r.ParseMethod = MethodMessageMarker
			r.Confidence = 0.8
			r.Warnings = append(r.Warnings, "latex marker missing")
			return r
		}
		return &DocumentResult{
			Message:     body,
			ParseMethod: MethodMessageMarker,
			Confidence:  0.6,
			Warnings:    []string{"no LaTeX section found"},
		}
	}

	if r := recoverLatex(raw); r != nil {
		return r
	}
	return &DocumentResult{
		Latex:       raw,
		ParseMethod: MethodFallback,
		Confidence:  0.5,
		Warnings:    []string{"no section markers found, using whole response as LaTeX"},
	}
}

// recoverLatex looks for LaTeX in unmarked text: a fenced block, then a bare
// \documentclass ... \end{document} span. Nil when neither is present.
func recoverLatex(text string) *DocumentResult {
	if latex, rest, ok := extractFenced(text); ok {
		return &DocumentResult{Message: rest, Latex: latex, ParseMethod: MethodFenced, Confidence: 0.8}
	}
	if latex, rest, warn, ok := extractDocument(text); ok {
		r := &DocumentResult{Message: rest, Latex: latex, ParseMethod: MethodDocument, Confidence: 0.7}
		if warn != "" {
			r.Warnings = []string{warn}
		}
		return r
	}
	return nil
}

func untilEnd(s string) string {
	if loc := endMarkerRe.FindStringIndex(s); loc != nil {
		return s[:loc[0]]
	}
	return s
}

// extractFenced prefers a latex/tex tagged block, then any block that looks
// like LaTeX. rest is the text outside the chosen block.
func extractFenced(text string) (latex, rest string, ok bool) {
	matches := fenceRe.FindAllStringSubmatchIndex(text, -1)
	pick := -1
	for i, m := range matches {
		lang := strings.ToLower(text[m[2]:m[3]])
		if lang == "latex" || lang == "tex" {
			pick = i
			break
		}
		if pick < 0 && lang == "" && strings.Contains(text[m[4]:m[5]], `\`) {
			pick = i
		}
	}
	if pick < 0 {
		return "", "", false
	}
	m := matches[pick]
	return text[m[4]:m[5]], text[:m[0]] + text[m[1]:], true
}

func extractDocument(text string) (latex, rest, warning string, ok bool) {
	start := strings.Index(text, `\documentclass`)
	if start < 0 {
		return "", "", "", false
	}
	const endTag = `\end{document}`
	end := strings.LastIndex(text, endTag)
	if end < start {
		return text[start:], text[:start], "document not terminated", true
	}
	end += len(endTag)
	return text[start:end], text[:start] + text[end:], "", true
}

// StripCodeFences removes a leading ``` line (with optional language tag) and
// a trailing ``` from s.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
