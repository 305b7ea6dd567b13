package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vibetex/internal/composer"
	"vibetex/internal/diff"
	"vibetex/internal/system"
)

var (
	composeDocument     string
	composeOut          string
	composeTemplate     string
	composeQuality      string
	composeNoAnimations bool
	composeNoResearch   bool
	composeRaw          bool
	composeDiff         bool
)

// composeCmd runs one prompt through the composer
var composeCmd = &cobra.Command{
	Use:   "compose [prompt]",
	Short: "Compose a LaTeX document from a prompt",
	Long: `Runs the full pipeline once: intent extraction, template lookup, web
research, animation rendering, then LaTeX generation.

The assistant's message is printed as markdown; the LaTeX goes to --out, or to
stdout after the message when --out is empty.

Example:
  vibetex compose "A two page note on Fourier series with an animation of the partial sums"
  vibetex compose --document paper.tex --out paper.tex "Add a conclusion section"
  vibetex compose --document paper.tex --diff "Tighten the abstract"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompose,
}

func init() {
	composeCmd.Flags().StringVarP(&composeDocument, "document", "d", "", "Existing .tex file to edit")
	composeCmd.Flags().StringVarP(&composeOut, "out", "o", "", "Write the LaTeX here instead of stdout")
	composeCmd.Flags().StringVarP(&composeTemplate, "template", "t", "", "Force a template (see 'vibetex templates')")
	composeCmd.Flags().StringVar(&composeQuality, "quality", "", "Manim quality: low_quality, medium_quality, high_quality, production_quality")
	composeCmd.Flags().BoolVar(&composeNoAnimations, "no-animations", false, "Skip animation rendering")
	composeCmd.Flags().BoolVar(&composeNoResearch, "no-research", false, "Do not fetch linked web pages")
	composeCmd.Flags().BoolVar(&composeRaw, "raw", false, "Print the message without markdown rendering")
	composeCmd.Flags().BoolVar(&composeDiff, "diff", false, "With --document, print a unified diff instead of the full LaTeX")
}

func runCompose(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	req := composer.Request{
		Prompt: joinArgs(args),
		Options: composer.Options{
			Template:          composeTemplate,
			DisableAnimations: composeNoAnimations,
			DisableResearch:   composeNoResearch,
			Quality:           composeQuality,
		},
	}
	if req.Prompt == "" {
		return errors.New("prompt is required")
	}
	if composeDocument != "" {
		data, err := os.ReadFile(composeDocument)
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		req.Document = string(data)
	}

	cfg.Templates.Watch = false
	rt, err := system.Boot(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("Composing", zap.Int("prompt_chars", len(req.Prompt)), zap.Int("document_chars", len(req.Document)))
	resp := rt.Composer.Compose(ctx, req)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderMessage(resp, composeRaw))

	if resp.Latex != "" {
		if composeDiff && composeDocument != "" {
			fmt.Fprint(out, diff.Compare(req.Document, resp.Latex).Unified(composeDocument, composeDocument+" (revised)"))
		}
		if composeOut != "" {
			if err := os.WriteFile(composeOut, []byte(resp.Latex), 0644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(out, "Wrote %s (%d bytes)\n", composeOut, len(resp.Latex))
		} else if !composeDiff || composeDocument == "" {
			fmt.Fprintln(out, resp.Latex)
		}
	}

	if resp.Error != "" {
		return fmt.Errorf("compose failed: %s", resp.Error)
	}
	return nil
}

// renderMessage formats the message and animation summary as markdown and
// renders it for the terminal unless raw is set.
func renderMessage(resp *composer.Response, raw bool) string {
	var sb strings.Builder
	sb.WriteString(resp.Message)
	if resp.Template != "" {
		fmt.Fprintf(&sb, "\n\n**Template:** `%s`", resp.Template)
	}
	if len(resp.Sources) > 0 {
		sb.WriteString("\n\n**Sources:**\n")
		for _, s := range resp.Sources {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
	}
	if resp.Changes != nil {
		fmt.Fprintf(&sb, "\n\n**Changes:** +%d -%d in %d hunk(s)", resp.Changes.Added, resp.Changes.Removed, resp.Changes.Hunks)
	}
	if len(resp.Animations) > 0 {
		sb.WriteString("\n\n**Animations:**\n")
		for _, a := range resp.Animations {
			if a.Success {
				fmt.Fprintf(&sb, "%d. %s: `%s`\n", a.Index, a.Description, a.VideoPath)
			} else {
				fmt.Fprintf(&sb, "%d. %s: failed (%s)\n", a.Index, a.Description, a.Error)
			}
		}
	}
	md := sb.String()
	if raw {
		return md
	}

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return md
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(rendered, "\n")
}
