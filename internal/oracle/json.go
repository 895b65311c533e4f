package oracle

import (
	"encoding/json"
	"strings"
)

// ExtractJSON finds the first balanced top-level JSON object or array in a
// completion. Models often wrap their answer in prose or markdown fences;
// this strips that down to the parseable payload. Text that already parses
// as a whole is returned as-is, so braces inside string values never
// truncate a valid answer. Returns the input unchanged when no balanced
// value is found.
func ExtractJSON(s string) string {
	s = stripFences(s)
	if json.Valid([]byte(s)) {
		return s
	}

	var open, closing rune
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, ch := range s {
		if start == -1 {
			switch ch {
			case '{':
				open, closing = '{', '}'
			case '[':
				open, closing = '[', ']'
			default:
				continue
			}
			start = i
			depth = 1
			continue
		}
		// brackets inside string literals don't change depth
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
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
