package keywords

import "strings"

// Tokens splits a prompt on commas and returns the trimmed, non-empty segments in order.
// Duplicates are kept.
func Tokens(prompt string) []string {
	parts := strings.Split(prompt, ",")
	tokens := make([]string, 0, len(parts))

	for _, part := range parts {
		if clean := strings.TrimSpace(part); clean != "" {
			tokens = append(tokens, clean)
		}
	}

	return tokens
}
