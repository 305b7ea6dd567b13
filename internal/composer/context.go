package composer

import (
	"fmt"
	"regexp"
	"strings"
)

// Instruction appended after the animation block.
const animationInstruction = "Please integrate the animations into an 'Animations' section. " +
	"If a full document is not present, create one. Include a section heading 'Animations'."

var (
	urlRe         = regexp.MustCompile(`https?://[^\s)>\]]+`)
	urlTrailingRe = regexp.MustCompile(`[.,;:!?'"]+$`)
)

// ExtractURLs returns the distinct http(s) links in text, in order, at most limit
// of them (limit <= 0 means all).
func ExtractURLs(text string, limit int) []string {
	var urls []string
	seen := make(map[string]bool)
	for _, u := range urlRe.FindAllString(text, -1) {
		u = urlTrailingRe.ReplaceAllString(u, "")
		if seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
		if limit > 0 && len(urls) == limit {
			break
		}
	}
	return urls
}

// TemplateBlock presents a template as reference material.
func TemplateBlock(name, content string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%% ==== TEMPLATE REFERENCE: %s ====\n", name)
	sb.WriteString("% Follow the structure, packages, and styling of this template, replacing its placeholder content.\n")
	sb.WriteString(strings.TrimSpace(content))
	sb.WriteString("\n% ==== END TEMPLATE REFERENCE ====")
	return sb.String()
}

// Source is a summarized web page.
type Source struct {
	URL     string
	Summary string
}

// SourcesBlock presents page summaries as commented context.
func SourcesBlock(sources []Source) string {
	if len(sources) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("% ==== WEB SOURCES ====\n")
	for i, s := range sources {
		fmt.Fprintf(&sb, "%% Source %d: %s\n", i+1, s.URL)
		for _, line := range strings.Split(strings.TrimSpace(s.Summary), "\n") {
			sb.WriteString("% ")
			sb.WriteString(strings.TrimSpace(line))
			sb.WriteString("\n")
		}
	}
	sb.WriteString("% ==== END WEB SOURCES ====\n")
	sb.WriteString("Use these sources where relevant and cite them with \\url in a 'References' section.")
	return sb.String()
}

// AnimationBlock lists the successful animations. Numbering counts successes
// only. It returns "" when nothing succeeded.
func AnimationBlock(outcomes []AnimationOutcome) string {
	var lines []string
	n := 0
	for _, o := range outcomes {
		if !o.Success {
			continue
		}
		n++
		if n == 1 {
			lines = append(lines, "% ==== GENERATED ANIMATIONS (Agent) ====")
		}
		lines = append(lines, fmt.Sprintf("%% Animation %d: %s", n, o.Description))
		if o.VideoPath == "" {
			continue
		}
		lines = append(lines, "% Local file: "+o.VideoPath)
		if o.ScreenshotPath != "" {
			link := o.VideoURL
			if link == "" {
				link = "run:" + o.VideoPath
			}
			lines = append(lines,
				"\\begin{center}",
				fmt.Sprintf("\\href{%s}{\\includegraphics[width=0.6\\textwidth]{%s}}\\\\", link, o.ScreenshotPath),
				fmt.Sprintf("\\small Animation %d: \\href{%s}{Open Video}", n, link),
				"\\end{center}")
		} else {
			lines = append(lines, fmt.Sprintf("\\noindent Animation %d: \\href{run:%s}{Open Video}\\par", n, o.VideoPath))
		}
	}
	if n == 0 {
		return ""
	}
	lines = append(lines, "% ==== END GENERATED ANIMATIONS ====")
	return strings.Join(lines, "\n") + "\n\n" + animationInstruction
}

// AugmentPrompt joins the prompt and the non-empty context blocks with blank
// lines.
func AugmentPrompt(prompt string, blocks ...string) string {
	parts := []string{prompt}
	for _, b := range blocks {
		if strings.TrimSpace(b) != "" {
			parts = append(parts, b)
		}
	}
	return strings.Join(parts, "\n\n")
}
