package liveboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoMatch is returned by a [Transform] that found nothing to extract.
var ErrNoMatch = errors.New("no match in response body")

// Transform converts an upstream response body into a panel payload.
//
// The returned value must be JSON-encodable. Returning an error marks the
// fetch as failed, so the panel falls back to its cached or placeholder data.
type Transform func(body []byte) (any, error)

// RawJSON is a [Transform] that passes a JSON body through unchanged.
// Non-JSON bodies are rejected.
var RawJSON Transform = func(body []byte) (any, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return nil, errors.New("response body is not valid JSON")
	}
	return json.RawMessage(bytes.Clone(trimmed)), nil
}

// Text is a [Transform] that wraps a plain-text body as {"text": "..."}.
var Text Transform = func(body []byte) (any, error) {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return nil, ErrNoMatch
	}
	return map[string]string{"text": s}, nil
}

// JSONPath returns a [Transform] that extracts one value from a JSON body
// using dot notation. Numeric segments index into arrays.
//
// Example:
//
//	// For response: {"data": {"departures": [{"line": "N"}]}}
//	t := liveboard.JSONPath("data.departures.0")
func JSONPath(path string) Transform {
	parts := strings.Split(path, ".")

	return func(body []byte) (any, error) {
		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		v, ok := extractJSONPath(data, parts)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoMatch, path)
		}
		return v, nil
	}
}

// extractJSONPath walks a decoded JSON structure.
func extractJSONPath(data any, parts []string) (any, bool) {
	current := data

	for _, part := range parts {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}
	return current, true
}

// Regex returns a [Transform] that matches the body against pattern and
// returns the capture groups as an object.
//
// Named groups use their own names. Unnamed groups take names from fields in
// order, falling back to "match1", "match2" and so on.
//
// Returns an error if the pattern is invalid or has no capture group.
//
// Example:
//
//	// Match "Temperature: 21.5C"
//	t, err := liveboard.Regex(`Temperature:\s*([\d.]+)C`, "temp_c")
func Regex(pattern string, fields ...string) (Transform, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	if re.NumSubexp() == 0 {
		return nil, errors.New("pattern must contain a capture group")
	}

	names := re.SubexpNames()
	keys := make([]string, len(names))
	unnamed := 0
	for i := 1; i < len(names); i++ {
		switch {
		case names[i] != "":
			keys[i] = names[i]
		case unnamed < len(fields):
			keys[i] = fields[unnamed]
			unnamed++
		default:
			unnamed++
			keys[i] = "match" + strconv.Itoa(unnamed)
		}
	}

	return func(body []byte) (any, error) {
		m := re.FindSubmatch(body)
		if m == nil {
			return nil, ErrNoMatch
		}
		out := make(map[string]string, len(m)-1)
		for i := 1; i < len(m); i++ {
			out[keys[i]] = string(m[i])
		}
		return out, nil
	}, nil
}

// MustRegex is like [Regex] but panics if the pattern is invalid.
//
// Use this for compile-time constant patterns where you want to fail fast.
func MustRegex(pattern string, fields ...string) Transform {
	t, err := Regex(pattern, fields...)
	if err != nil {
		panic("liveboard: invalid regex pattern: " + err.Error())
	}
	return t
}

// Wrap returns a [Transform] that nests the result of t under field.
//
// Example:
//
//	// {"departures": [...]}
//	liveboard.Wrap("departures", liveboard.JSONPath("data.items"))
func Wrap(field string, t Transform) Transform {
	return func(body []byte) (any, error) {
		v, err := t(body)
		if err != nil {
			return nil, err
		}
		return map[string]any{field: v}, nil
	}
}

// FirstOf returns a [Transform] that tries each transform in order and
// returns the first success. If all fail, the joined errors are returned.
func FirstOf(transforms ...Transform) Transform {
	return func(body []byte) (any, error) {
		var errs []error
		for _, t := range transforms {
			v, err := t(body)
			if err == nil {
				return v, nil
			}
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			return nil, ErrNoMatch
		}
		return nil, errors.Join(errs...)
	}
}

// DefaultTransform is used when an [HTTPSource] has no transform.
//
// It tries, in order:
//  1. [RawJSON] (JSON bodies are served as-is)
//  2. [Text] (anything else is wrapped as {"text": ...})
var DefaultTransform = FirstOf(RawJSON, Text)
