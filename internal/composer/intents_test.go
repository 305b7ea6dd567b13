package composer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibetex/internal/perception"
	"vibetex/internal/tools"
)

func TestParseIntents(t *testing.T) {
	names := []string{"letter", "swe_resume"}

	tests := []struct {
		name    string
		raw     string
		max     int
		want    Intents
		wantErr bool
	}{
		{
			name: "clean",
			raw:  `{"animations":[{"description":"Show a bouncing ball"}],"template":"letter"}`,
			max:  3,
			want: Intents{Animations: []AnimationIntent{{Description: "Show a bouncing ball"}}, Template: "letter"},
		},
		{
			name: "wrapped in prose and fences",
			raw:  "Here is the JSON:\n```json\n{\"animations\":[],\"template\":\"SWE_Resume \"}\n```",
			max:  3,
			want: Intents{Template: "swe_resume"},
		},
		{
			name: "filters bad descriptions",
			raw: `{"animations":[{"description":"abc"},{"description":42},"loose",` +
				`{"description":"  Rotate a cube  "},{"description":"` + strings.Repeat("x", 501) + `"}]}`,
			max:  3,
			want: Intents{Animations: []AnimationIntent{{Description: "Rotate a cube"}}},
		},
		{
			name: "caps count",
			raw:  `{"animations":[{"description":"first scene"},{"description":"second scene"},{"description":"third scene"}]}`,
			max:  2,
			want: Intents{Animations: []AnimationIntent{{Description: "first scene"}, {Description: "second scene"}}},
		},
		{
			name: "zero cap drops all",
			raw:  `{"animations":[{"description":"first scene"}],"template":"letter"}`,
			max:  0,
			want: Intents{Template: "letter"},
		},
		{
			name: "unknown template and non-string template",
			raw:  `{"animations":[],"template":"poster"}`,
			max:  3,
			want: Intents{},
		},
		{
			name: "template as number",
			raw:  `{"template":7}`,
			max:  3,
			want: Intents{},
		},
		{
			name: "animations not an array keeps template",
			raw:  `{"animations":"a spinning cube","template":"letter"}`,
			max:  3,
			want: Intents{Template: "letter"},
		},
		{
			name: "animations as object keeps template",
			raw:  `{"animations":{"description":"a spinning cube"},"template":"swe_resume"}`,
			max:  3,
			want: Intents{Template: "swe_resume"},
		},
		{
			name:    "no object",
			raw:     "I cannot help with that.",
			max:     3,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIntents(tt.raw, names, tt.max)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("parseIntents mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractIntents(t *testing.T) {
	var gotSystem string
	llm := perception.LLMFunc(func(ctx context.Context, system, user string) (string, error) {
		gotSystem = system
		return `{"animations":[{"description":"Draw a spiral"}],"template":"letter"}`, nil
	})
	c := New(llm, tools.NewRegistry(), nil, Settings{MaxAnimations: 3})

	got := c.ExtractIntents(context.Background(), "a letter with a spiral", []string{"letter"})
	assert.Equal(t, "letter", got.Template)
	assert.Len(t, got.Animations, 1)
	assert.Contains(t, gotSystem, "Available templates: letter")

	failing := perception.LLMFunc(func(ctx context.Context, system, user string) (string, error) {
		return "", errors.New("boom")
	})
	got = New(failing, nil, nil, Settings{MaxAnimations: 3}).ExtractIntents(context.Background(), "x", nil)
	assert.Empty(t, got.Animations)
	assert.Empty(t, got.Template)

	assert.Equal(t, Intents{}, New(nil, nil, nil, Settings{}).ExtractIntents(context.Background(), "x", nil))
}
