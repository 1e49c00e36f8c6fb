package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencedJSON = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
	looseJSON  = regexp.MustCompile(`\{[\s\S]*\}`)
)

// ExtractJSON locates a JSON object in model output. A fenced code block wins over
// a bare object; the bare-object match is greedy from the first { to the last }.
func ExtractJSON(text string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := looseJSON.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

// decodeCompletion extracts the JSON object from a completion and unmarshals it into v
func decodeCompletion(provider, text string, v any) error {
	raw, ok := ExtractJSON(text)
	if !ok {
		return &ExtractionError{Provider: provider}
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return &ParseError{Provider: provider, Err: err}
	}
	return nil
}
