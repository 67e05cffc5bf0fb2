package platform

import "fmt"

// truncate cuts text to max runes. When it cuts, the returned warning says so;
// an empty warning means the text fit.
func truncate(text string, max int) (string, string) {
	runes := []rune(text)
	if len(runes) <= max {
		return text, ""
	}
	cut := string(runes[:max-1]) + "…"
	warning := fmt.Sprintf("content truncated to fit the %d-character limit", max)
	return cut, warning
}
