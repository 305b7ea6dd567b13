package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// StringArg returns args[key] as a trimmed string, or def when absent or empty.
func StringArg(args map[string]any, key, def string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidArgType, key, v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return s, nil
}

// RequiredString is StringArg for arguments that must be non-empty.
func RequiredString(args map[string]any, key string) (string, error) {
	s, err := StringArg(args, key, "")
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingRequiredArg, key)
	}
	return s, nil
}

// IntArg returns args[key] as an int. JSON numbers arrive as float64, and
// numeric strings are accepted too.
func IntArg(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidArgType, key, n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidArgType, key, err)
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidArgType, key, n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", ErrInvalidArgType, key, v)
	}
}

// EncodeResult marshals a tool's structured output.
func EncodeResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(data), nil
}

// DecodeResult unmarshals a tool result produced by EncodeResult.
func DecodeResult(result string, v any) error {
	if err := json.Unmarshal([]byte(result), v); err != nil {
		return fmt.Errorf("failed to decode tool result: %w", err)
	}
	return nil
}
