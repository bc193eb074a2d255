package llm

import (
	"errors"
	"strings"
)

// ErrUnrepairable means a truncated reply holds no complete list element.
var ErrUnrepairable = errors.New("truncated JSON cannot be repaired")

// CleanJSONBlock extracts the payload of a ```json fenced block, or of a
// generic ``` block, wherever it appears in text. Unfenced text is
// returned trimmed.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if start := strings.Index(text, "```json"); start >= 0 {
		body := text[start+len("```json"):]
		if end := strings.LastIndex(body, "```"); end >= 0 {
			body = body[:end]
		}
		return strings.TrimSpace(body)
	}

	if strings.HasPrefix(text, "```") {
		body := strings.TrimPrefix(text, "```")
		// Drop a language tag on the opening fence line.
		if idx := strings.Index(body, "\n"); idx >= 0 {
			tag := body[:idx]
			if len(tag) < 20 && !strings.ContainsAny(tag, " {") {
				body = body[idx+1:]
			}
		}
		if end := strings.LastIndex(body, "```"); end >= 0 {
			body = body[:end]
		}
		return strings.TrimSpace(body)
	}

	return text
}

// RepairTruncatedJSON closes an object of the form {"key": [{...}, {...},
// that was cut off mid-list. Everything after the last complete element is
// dropped and "]}" is appended.
func RepairTruncatedJSON(text string) (string, error) {
	if start := strings.Index(text, "```json"); start >= 0 {
		text = text[start+len("```json"):]
	}
	end := strings.LastIndex(text, "},")
	if end < 0 {
		return "", ErrUnrepairable
	}
	return strings.TrimSpace(text[:end+1]) + "]}", nil
}

// RepairTruncatedArray closes a top-level array of objects, [{...},{...},
// that was cut off mid-list. Everything after the last complete element is
// dropped and "]" is appended.
func RepairTruncatedArray(text string) (string, error) {
	if start := strings.Index(text, "```json"); start >= 0 {
		text = text[start+len("```json"):]
	}
	end := strings.LastIndex(text, "},")
	if end < 0 {
		return "", ErrUnrepairable
	}
	return strings.TrimSpace(text[:end+1]) + "]", nil
}
