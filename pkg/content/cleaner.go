package content

import (
	"regexp"
	"strings"
)

var (
	timestampPattern  = regexp.MustCompile(`\[\d{2}:\d{2}:\d{2}\]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Clean normalizes scraped transcript paragraphs into a single string.
//
// Each paragraph has its [HH:MM:SS] markers removed (when stripTimestamps is set),
// whitespace runs collapsed to one space and surrounding space trimmed. Paragraphs
// that end up empty are dropped and the rest are joined with newlines in their
// original order.
func Clean(paragraphs []string, stripTimestamps bool) string {
	cleaned := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if stripTimestamps {
			p = timestampPattern.ReplaceAllString(p, "")
		}
		p = strings.TrimSpace(whitespacePattern.ReplaceAllString(p, " "))
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, "\n")
}
