package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when model output holds no decodable JSON object.
var ErrNoJSON = errors.New("llm: no JSON object in model output")

// ExtractJSONObject returns the first balanced {...} block in s, or "".
// Braces inside string literals are ignored.
func ExtractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
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
				return s[start : i+1]
			}
		}
	}
	return ""
}

// DecodeJSON decodes model output into v. It first tries the whole text and
// then falls back to the first balanced object, which covers prose or code
// fences around the JSON.
func DecodeJSON(raw string, v any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	block := ExtractJSONObject(raw)
	if block == "" {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(block), v); err != nil {
		return errors.Join(ErrNoJSON, err)
	}
	return nil
}
