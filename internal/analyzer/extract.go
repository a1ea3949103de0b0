package analyzer

import (
	"encoding/json"
	"strings"
)

// extractObject finds the first syntactically complete JSON object in text.
// shaped is true when text has a '{' with a '}' somewhere after it; a shaped
// text with an empty obj means no candidate decoded.
func extractObject(text string) (obj string, shaped bool) {
	first := strings.IndexByte(text, '{')
	if first < 0 || strings.LastIndexByte(text, '}') < first {
		return "", false
	}

	for start := first; ; {
		end, ok := matchBrace(text, start)
		if end < 0 {
			// Unterminated: every later '{' sits inside the open candidate.
			return "", true
		}
		if ok {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[end+1:], '{')
		if next < 0 {
			return "", true
		}
		start = end + 1 + next
	}
}

// matchBrace returns the index where the object opened at text[start] closes,
// skipping over string literals. end is -1 when text ends first; ok is false
// when the outermost bracket closes with ']'.
func matchBrace(text string, start int) (end int, ok bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, c == '}'
			}
		}
	}
	return -1, false
}
