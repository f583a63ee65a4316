package content

import "strings"

// ExtractJSON isolates the first JSON object or array span inside a raw
// provider response. Providers wrap payloads in markdown code fences or
// prose often enough that this is the expected case, not the exception.
func ExtractJSON(raw string) string {
	if raw == "" {
		return "[]"
	}
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")

	firstBrace := strings.Index(cleaned, "{")
	firstBracket := strings.Index(cleaned, "[")

	start := -1
	switch {
	case firstBrace != -1 && (firstBracket == -1 || firstBrace < firstBracket):
		start = firstBrace
	case firstBracket != -1:
		start = firstBracket
	}

	if start != -1 {
		lastBrace := strings.LastIndex(cleaned, "}")
		lastBracket := strings.LastIndex(cleaned, "]")
		end := lastBrace
		if lastBracket > end {
			end = lastBracket
		}
		if end != -1 {
			cleaned = cleaned[start : end+1]
		}
	}
	return strings.TrimSpace(cleaned)
}
