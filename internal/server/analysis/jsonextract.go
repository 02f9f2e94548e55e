package analysis

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var errEmptyCompletion = errors.New("completion endpoint returned no choices")

// Models sometimes wrap JSON in markdown fences despite JSON mode, so
// extraction tries fenced blocks first and then a raw object scan.
var codeFencePattern = regexp.MustCompile("(?s)```(\\w*)\\s*\\n(.+?)\\n```")

// extractJSON pulls the first JSON object out of a completion reply.
func extractJSON(reply string) (string, error) {
	for _, match := range codeFencePattern.FindAllStringSubmatch(reply, -1) {
		lang := strings.ToLower(match[1])
		if lang != "" && lang != "json" {
			continue
		}
		content := strings.TrimSpace(match[2])
		if strings.HasPrefix(content, "{") && isValidJSON(content) {
			return content, nil
		}
	}

	start := strings.Index(reply, "{")
	if start < 0 {
		return "", errors.New("no JSON object found in completion reply")
	}
	if obj := matchBraces(reply[start:]); obj != "" && isValidJSON(obj) {
		return obj, nil
	}
	return "", errors.New("no valid JSON object found in completion reply")
}

// matchBraces returns the prefix of s up to the brace closing s[0],
// skipping braces inside string literals.
func matchBraces(s string) string {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

func isValidJSON(s string) bool {
	var raw json.RawMessage
	return json.Unmarshal([]byte(s), &raw) == nil
}
