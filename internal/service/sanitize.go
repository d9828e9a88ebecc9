package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const maxInputLength = 1000

var (
	strictPolicy  = bluemonday.StrictPolicy()
	angleStripper = strings.NewReplacer("<", "", ">", "")
)

// SanitizeInput strips markup (script bodies included) and angle brackets, trims and caps
// the text at 1000 characters.
func SanitizeInput(input string) string {
	cleaned := html.UnescapeString(strictPolicy.Sanitize(input))
	cleaned = strings.TrimSpace(angleStripper.Replace(cleaned))

	runes := []rune(cleaned)
	if len(runes) > maxInputLength {
		cleaned = string(runes[:maxInputLength])
	}
	return cleaned
}

// sanitizeDocument applies SanitizeInput to the top-level string values of data.
func sanitizeDocument(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		if s, ok := value.(string); ok {
			value = SanitizeInput(s)
		}
		out[key] = value
	}
	return out
}
