package helpers

import (
	"errors"
	"strings"
)

// SanitizeModelJSON applies a character-level repair pass to raw model output
// before a JSON parse retry: code fences are stripped, smart quotes are
// normalized to ASCII, and line-comment tails are dropped. String literals are
// respected throughout, so a "//" inside a quoted value survives.
func SanitizeModelJSON(s string) string {
	s = strings.TrimSpace(trimBOM(s))
	if inner, ok := stripFirstCodeFence(s); ok {
		s = strings.TrimSpace(inner)
	}
	s = normalizeQuotes(s)
	return stripLineComments(s)
}

// ExtractJSONObject finds and returns the largest balanced top-level {...}
// in s, ignoring braces inside string literals.
func ExtractJSONObject(s string) (string, error) {
	s = strings.TrimSpace(trimBOM(s))
	if inner, ok := stripFirstCodeFence(s); ok {
		s = strings.TrimSpace(inner)
	}

	best := ""
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		if out, ok := balancedFrom(s, i); ok {
			if len(out) > len(best) {
				best = out
			}
			// Skip past this object; nested openers were already covered.
			i += len(out) - 1
		}
	}
	if best == "" {
		return "", errors.New("no balanced JSON object found")
	}
	return best, nil
}

// stripFirstCodeFence removes the first fenced code block if s starts with
// ``` or ~~~, accepting an optional language tag (e.g. ```json).
func stripFirstCodeFence(s string) (inner string, ok bool) {
	trim := strings.TrimLeft(s, "\n\r\t ")
	var fence string
	switch {
	case strings.HasPrefix(trim, "```"):
		fence = "```"
	case strings.HasPrefix(trim, "~~~"):
		fence = "~~~"
	default:
		return "", false
	}
	rest := trim[len(fence):]
	idx := strings.IndexByte(rest, '\n')
	if idx == -1 {
		return "", false
	}
	rest = rest[idx+1:]
	if end := strings.Index(rest, fence); end != -1 {
		return rest[:end], true
	}
	// Unterminated fence: everything after the opener is the body.
	return rest, true
}

func normalizeQuotes(s string) string {
	replacer := strings.NewReplacer(
		"“", `"`, "”", `"`, // double curly quotes
		"‘", "'", "’", "'", // single curly quotes
	)
	return replacer.Replace(s)
}

// stripLineComments removes "//"-to-end-of-line runs that occur outside
// string literals. Models occasionally annotate their JSON this way.
func stripLineComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escape := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			if escape {
				escape = false
				continue
			}
			switch c {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == '/' && i+1 < len(s) && s[i+1] == '/' {
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// balancedFrom extracts a balanced JSON value starting at startIdx, handling
// strings and escape sequences.
func balancedFrom(s string, startIdx int) (string, bool) {
	if startIdx < 0 || startIdx >= len(s) {
		return "", false
	}
	start := s[startIdx]
	if start != '{' && start != '[' {
		return "", false
	}

	var stack []byte
	inString, escape := false, false
	stack = append(stack, start)

	for i := startIdx + 1; i < len(s); i++ {
		c := s[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			switch c {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			top := stack[len(stack)-1]
			if (top == '{' && c != '}') || (top == '[' && c != ']') {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[startIdx : i+1], true
			}
		}
	}
	return "", false
}

// trimBOM removes an optional UTF-8 BOM.
func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}
