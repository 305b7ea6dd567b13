package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"vibetex/internal/articulation"
	"vibetex/internal/logging"
)

// Bounds on a usable animation description.
const (
	minDescriptionLen = 5
	maxDescriptionLen = 500
)

const intentSystemPrompt = `You extract intents from a request to create or edit a LaTeX document.

Return ONLY JSON, no other text, in this form:
{"animations": [{"description": "..."}], "template": ""}

- "animations": one entry per Manim animation the user asks for or clearly implies (for example "animate", "visualize the motion", "show how it evolves"). Each description says what the animation should show in one or two sentences. Use [] when no animation is implied.
- "template": the name of the best matching template from the list below when the user asks for that kind of document, otherwise "".`

// ExtractIntents asks the model what the prompt implies. Any failure yields
// empty intents; extraction is advisory and never blocks composition.
func (c *Composer) ExtractIntents(ctx context.Context, prompt string, templateNames []string) Intents {
	if c.llm == nil {
		return Intents{}
	}

	system := intentSystemPrompt + "\n\nAvailable templates: "
	if len(templateNames) == 0 {
		system += "(none)"
	} else {
		system += strings.Join(templateNames, ", ")
	}

	raw, err := c.llm.CompleteWithSystem(ctx, system, prompt)
	if err != nil {
		logging.ComposerWarn("Intent extraction failed: %v", err)
		return Intents{}
	}

	intents, err := parseIntents(raw, templateNames, c.settings.MaxAnimations)
	if err != nil {
		logging.ComposerWarn("Intent extraction returned unusable JSON: %v", err)
		return Intents{}
	}
	logging.ComposerDebug("Extracted %d animation intent(s), template=%q", len(intents.Animations), intents.Template)
	return intents
}

// parseIntents decodes the model reply leniently: descriptions must be
// strings of usable length, and a template must name a known one.
func parseIntents(raw string, templateNames []string, maxAnimations int) (Intents, error) {
	var data struct {
		Animations json.RawMessage `json:"animations"`
		Template   any             `json:"template"`
	}
	if err := articulation.DecodeJSONObject(raw, &data); err != nil {
		return Intents{}, err
	}

	// A non-array "animations" is ignored so a valid template still counts.
	var items []json.RawMessage
	if len(data.Animations) > 0 && json.Unmarshal(data.Animations, &items) != nil {
		logging.ComposerDebug("Ignoring non-array animations value: %.80s", data.Animations)
	}

	var out Intents
	for _, a := range items {
		var item struct {
			Description any `json:"description"`
		}
		if json.Unmarshal(a, &item) != nil {
			continue
		}
		desc, ok := item.Description.(string)
		if !ok {
			continue
		}
		desc = strings.TrimSpace(desc)
		if n := len([]rune(desc)); n < minDescriptionLen || n > maxDescriptionLen {
			continue
		}
		out.Animations = append(out.Animations, AnimationIntent{Description: desc})
	}
	if len(out.Animations) > maxAnimations {
		logging.ComposerDebug("Capping %d animation intents at %d", len(out.Animations), maxAnimations)
		out.Animations = out.Animations[:max(maxAnimations, 0)]
	}

	if name, ok := data.Template.(string); ok {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" && slices.Contains(templateNames, name) {
			out.Template = name
		}
	}
	return out, nil
}

func (i Intents) String() string {
	return fmt.Sprintf("animations=%d template=%q", len(i.Animations), i.Template)
}
