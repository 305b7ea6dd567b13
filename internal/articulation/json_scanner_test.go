package articulation

import (
	"errors"
	"testing"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		err  error
	}{
		{name: "clean", in: `{"animations":[]}`, want: `{"animations":[]}`},
		{name: "fenced", in: "```json\n{\"template\":\"letter\"}\n```", want: `{"template":"letter"}`},
		{name: "prose around", in: `Sure! {"a":1} hope that helps`, want: `{"a":1}`},
		{
			name: "two objects, span invalid",
			in:   `first {"a":1} then {"b":2}`,
			want: `{"a":1}`,
		},
		{
			name: "braces in strings",
			in:   `note {bad} {"d":"use \\frac{1}{2}"}`,
			want: `{"d":"use \\frac{1}{2}"}`,
		},
		{name: "no object", in: "I cannot help with that.", err: ErrNoJSONObject},
		{name: "unbalanced", in: `{"a":`, err: ErrNoJSONObject},
		{name: "empty", in: "", err: ErrNoJSONObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.in)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v (%q)", tt.err, err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeJSONObject(t *testing.T) {
	var v struct {
		Animations []struct {
			Description string `json:"description"`
		} `json:"animations"`
		Template string `json:"template"`
	}
	raw := "Here:\n```\n{\"animations\":[{\"description\":\"a bouncing ball\"}],\"template\":\"\"}\n```"
	if err := DecodeJSONObject(raw, &v); err != nil {
		t.Fatalf("DecodeJSONObject: %v", err)
	}
	if len(v.Animations) != 1 || v.Animations[0].Description != "a bouncing ball" {
		t.Errorf("unexpected decode: %+v", v)
	}
}

func TestFindJSONCandidates(t *testing.T) {
	got := findJSONCandidates(`he said "hi" then {"k":"}"} and {"n":{"m":1}}`)
	if len(got) != 2 || got[0] != `{"k":"}"}` || got[1] != `{"n":{"m":1}}` {
		t.Errorf("got %q", got)
	}
}
