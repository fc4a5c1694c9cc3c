package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrResponseTruncated means the model's reply was cut off mid-structure and
// could not be repaired. Callers surface it as an actionable "response too
// long" failure instead of a generic parse error.
var ErrResponseTruncated = errors.New("model response truncated and unrecoverable")

var fencedBlockRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// DecodeModelJSON extracts the one JSON object or array a model reply is
// supposed to contain and unmarshals it into target. It tolerates fenced
// code blocks, surrounding prose, and bounded truncation.
func DecodeModelJSON(text string, target interface{}) error {
	candidate := extractJSONCandidate(text)
	if candidate == "" {
		return fmt.Errorf("no JSON object found in model response")
	}

	if err := json.Unmarshal([]byte(candidate), target); err == nil {
		return nil
	}

	repaired, ok := repairTruncatedJSON(candidate)
	if !ok {
		return ErrResponseTruncated
	}

	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return ErrResponseTruncated
	}

	return nil
}

// extractJSONCandidate locates the payload: a fenced block first, then the
// outermost brace/bracket span. A fence the model never closed (token limit)
// still yields everything after the opening fence.
func extractJSONCandidate(text string) string {
	if match := fencedBlockRe.FindStringSubmatch(text); len(match) > 1 {
		if trimmed := strings.TrimSpace(match[1]); trimmed != "" {
			return trimmed
		}
	}

	if idx := strings.Index(text, "```"); idx != -1 {
		rest := text[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if span := outermostSpan(rest); span != "" {
			return span
		}
	}

	return outermostSpan(text)
}

func outermostSpan(text string) string {
	startObj := strings.Index(text, "{")
	startArr := strings.Index(text, "[")

	start := startObj
	closer := byte('}')
	if start == -1 || (startArr != -1 && startArr < start) {
		start = startArr
		closer = ']'
	}
	if start == -1 {
		return ""
	}

	end := strings.LastIndexByte(text, closer)
	if end > start {
		return strings.TrimSpace(text[start : end+1])
	}

	// No matching closer at all: hand the tail to the repair pass.
	return strings.TrimSpace(text[start:])
}

// repairTruncatedJSON cuts the input back to the last structurally complete
// element and closes every structure still open there, sacrificing any
// partially emitted trailing element.
func repairTruncatedJSON(s string) (string, bool) {
	var stack []byte
	inString := false
	escaped := false

	lastComplete := -1
	var stackAtLast []byte

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
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
			if len(stack) == 0 {
				return "", false
			}
			top := stack[len(stack)-1]
			if (c == '}' && top != '{') || (c == ']' && top != '[') {
				return "", false
			}
			stack = stack[:len(stack)-1]
			lastComplete = i
			stackAtLast = append([]byte(nil), stack...)
		}
	}

	if lastComplete == -1 {
		return "", false
	}

	var b strings.Builder
	b.WriteString(s[:lastComplete+1])
	for i := len(stackAtLast) - 1; i >= 0; i-- {
		if stackAtLast[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}

	return b.String(), true
}
