package articulation

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSONObject is returned when no JSON object can be recovered.
var ErrNoJSONObject = errors.New("no JSON object found")

// ExtractJSONObject recovers a JSON object from model output that may carry
// fences or prose around it. In order it tries the trimmed text, the span from
// the first '{' to the last '}', then each balanced top-level candidate.
func ExtractJSONObject(s string) (string, error) {
	s = StripCodeFences(s)
	if s == "" {
		return "", ErrNoJSONObject
	}

	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && json.Valid([]byte(s)) {
		return s, nil
	}

	first, last := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if first < 0 || last <= first {
		return "", ErrNoJSONObject
	}
	if span := s[first : last+1]; json.Valid([]byte(span)) {
		return span, nil
	}

	for _, c := range findJSONCandidates(s) {
		if json.Valid([]byte(c)) {
			return c, nil
		}
	}
	return "", ErrNoJSONObject
}

// DecodeJSONObject extracts and unmarshals the first usable object into v.
func DecodeJSONObject(s string, v any) error {
	obj, err := ExtractJSONObject(s)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(obj), v)
}

// findJSONCandidates scans s for top-level {...} spans, skipping braces that
// appear inside string literals.
//
// Byte iteration is safe for the ASCII delimiters ({, }, ", \) because UTF-8
// never reuses ASCII bytes inside multi-byte sequences.
func findJSONCandidates(s string) []string {
	var (
		candidates []string
		depth      int
		start      = -1
		inString   bool
		escape     bool
	)

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			switch b {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			// Quotes only open strings inside an object; prose like
			// `he said "hi"` before the JSON must not swallow braces.
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					candidates = append(candidates, s[start:i+1])
					start = -1
				}
			}
		}
	}

	return candidates
}
