package articulation

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const doc = "\\documentclass{article}\n\\begin{document}\nHi\n\\end{document}"

func TestProcess(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want DocumentResult
	}{
		{
			name: "both markers",
			raw:  "===MESSAGE===\nHere is your memo.\n===LATEX===\n" + doc + "\n===END===\n",
			want: DocumentResult{Message: "Here is your memo.", Latex: doc, ParseMethod: MethodMarkers, Confidence: 1.0},
		},
		{
			name: "markers without end, fenced latex body",
			raw:  "===MESSAGE===\nDone.\n===LATEX===\n```latex\n" + doc + "\n```",
			want: DocumentResult{Message: "Done.", Latex: doc, ParseMethod: MethodMarkers, Confidence: 1.0},
		},
		{
			name: "marker spacing and case drift",
			raw:  "=== Message ===\nOk\n  === latex ===  \n" + doc,
			want: DocumentResult{Message: "Ok", Latex: doc, ParseMethod: MethodMarkers, Confidence: 1.0},
		},
		{
			name: "reversed sections",
			raw:  "===LATEX===\n" + doc + "\n===MESSAGE===\nSwapped.\n===END===",
			want: DocumentResult{Message: "Swapped.", Latex: doc, ParseMethod: MethodMarkers, Confidence: 0.95,
				Warnings: []string{"sections out of order"}},
		},
		{
			name: "latex marker only",
			raw:  "Sure, updated the table.\n===LATEX===\n" + doc,
			want: DocumentResult{Message: "Sure, updated the table.", Latex: doc, ParseMethod: MethodLatexMarker, Confidence: 0.9,
				Warnings: []string{"message marker missing"}},
		},
		{
			name: "message marker with fenced body",
			raw:  "===MESSAGE===\nAdded a section.\n```tex\n" + doc + "\n```\n",
			want: DocumentResult{Message: "Added a section.", Latex: doc, ParseMethod: MethodMessageMarker, Confidence: 0.8,
				Warnings: []string{"latex marker missing"}},
		},
		{
			name: "message marker only, no latex",
			raw:  "===MESSAGE===\nI could not produce a document.",
			want: DocumentResult{Message: "I could not produce a document.", ParseMethod: MethodMessageMarker, Confidence: 0.6,
				Warnings: []string{"no LaTeX section found"}},
		},
		{
			name: "fenced block in prose",
			raw:  "Here you go:\n```latex\n" + doc + "\n```\nLet me know!",
			want: DocumentResult{Message: "Here you go:\n\nLet me know!", Latex: doc, ParseMethod: MethodFenced, Confidence: 0.8},
		},
		{
			name: "bare document in prose",
			raw:  "Your letter:\n" + doc + "\nEnjoy.",
			want: DocumentResult{Message: "Your letter:\n\nEnjoy.", Latex: doc, ParseMethod: MethodDocument, Confidence: 0.7},
		},
		{
			name: "unterminated document",
			raw:  "\\documentclass{article}\n\\begin{document}\ncut off",
			want: DocumentResult{Message: DefaultMessage, Latex: "\\documentclass{article}\n\\begin{document}\ncut off",
				ParseMethod: MethodDocument, Confidence: 0.7, Warnings: []string{"document not terminated"}},
		},
		{
			name: "untagged fence holding latex",
			raw:  "```\n\\section{Intro}\nText\n```",
			want: DocumentResult{Message: DefaultMessage, Latex: "\\section{Intro}\nText", ParseMethod: MethodFenced, Confidence: 0.8},
		},
		{
			name: "plain blob",
			raw:  "\\section{Only a fragment}",
			want: DocumentResult{Message: DefaultMessage, Latex: "\\section{Only a fragment}", ParseMethod: MethodFallback, Confidence: 0.5,
				Warnings: []string{"no section markers found, using whole response as LaTeX"}},
		},
		{
			name: "empty reply",
			raw:  "   ",
			want: DocumentResult{Message: DefaultMessage, ParseMethod: MethodFallback, Confidence: 0.5,
				Warnings: []string{"no section markers found, using whole response as LaTeX"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDocumentResponse(tt.raw)
			if diff := cmp.Diff(tt.want, *got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProcessFencedPrefersTaggedBlock(t *testing.T) {
	raw := "```python\nprint('x')\n```\nand\n```latex\n" + doc + "\n```"
	got := ParseDocumentResponse(raw)
	if got.Latex != doc {
		t.Errorf("expected latex block, got %q", got.Latex)
	}
	if !strings.Contains(got.Message, "print('x')") {
		t.Errorf("untagged block should stay in message: %q", got.Message)
	}
}

func TestProcessorStats(t *testing.T) {
	rp := NewResponseProcessor()
	rp.Process("===MESSAGE===\nm\n===LATEX===\n" + doc)
	rp.Process("Result:\n" + doc)
	rp.Process("just words")

	want := ProcessorStats{TotalProcessed: 3, MarkerParses: 1, Recovered: 1, FallbackParses: 1}
	if diff := cmp.Diff(want, rp.GetStats()); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := map[string]string{
		"```latex\n\\a\n```": "\\a",
		"```\n\\b\n```\n":    "\\b",
		"\\c":                "\\c",
		"  ```tex\n\\d":      "\\d",
		"```":                "",
		"\\e\n```":           "\\e",
	}
	for in, want := range tests {
		if got := StripCodeFences(in); got != want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", in, got, want)
		}
	}
}
