package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParse indicates no JSON object could be recovered from a model reply.
var ErrParse = errors.New("no json object found in llm response")

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n?(.*?)```")

// ExtractJSONObject recovers the first JSON object from free text. Strategies
// are tried in order and the first success wins: a fenced code block, an
// object carrying requiredKey, then the first brace-balanced object.
func ExtractJSONObject(text, requiredKey string) (string, error) {
	for _, match := range fencePattern.FindAllStringSubmatch(text, -1) {
		candidate := strings.TrimSpace(match[1])
		if isJSONObject(candidate) {
			return candidate, nil
		}
	}

	if requiredKey != "" {
		for i := strings.IndexByte(text, '{'); i >= 0; i = nextBrace(text, i) {
			candidate, ok := balancedObject(text[i:])
			if ok && hasKey(candidate, requiredKey) {
				return candidate, nil
			}
		}
	}

	for i := strings.IndexByte(text, '{'); i >= 0; i = nextBrace(text, i) {
		if candidate, ok := balancedObject(text[i:]); ok {
			return candidate, nil
		}
	}

	return "", ErrParse
}

// Extract recovers a JSON object from text and decodes it into T.
func Extract[T any](text, requiredKey string) (T, error) {
	var result T
	raw, err := ExtractJSONObject(text, requiredKey)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return result, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return result, nil
}

func nextBrace(text string, from int) int {
	next := strings.IndexByte(text[from+1:], '{')
	if next < 0 {
		return -1
	}
	return from + 1 + next
}

// balancedObject returns the prefix of text that closes the opening brace,
// skipping braces inside string literals.
func balancedObject(text string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := text[:i+1]
				return candidate, isJSONObject(candidate)
			}
		}
	}
	return "", false
}

func isJSONObject(candidate string) bool {
	if !strings.HasPrefix(candidate, "{") {
		return false
	}
	return json.Valid([]byte(candidate))
}

func hasKey(candidate, key string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return false
	}
	_, ok := fields[key]
	return ok
}
