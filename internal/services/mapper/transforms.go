package mapper

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/antigravity-dev/ragforge/internal/models"
)

var (
	urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)
	idPattern  = regexp.MustCompile(`\b[A-Z][A-Z0-9]+-\d+\b`)
	wsPattern  = regexp.MustCompile(`\s+`)
)

// applyTransform runs one of the closed set of transform kinds over a
// resolved source value. Every transform has a defined output on an empty
// input: identity for strings, [] for list-producing transforms.
func applyTransform(kind models.TransformKind, value interface{}) (interface{}, error) {
	switch kind {
	case "", models.TransformIdentity:
		return value, nil
	case models.TransformCleanText:
		return cleanText(toString(value)), nil
	case models.TransformExtractKeywords:
		return extractKeywords(toString(value)), nil
	case models.TransformExtractIDs:
		return extractIDs(toString(value)), nil
	case models.TransformExtractURLs:
		return extractURLs(toString(value)), nil
	case models.TransformToISODate:
		return toISODate(toString(value))
	default:
		return nil, fmt.Errorf("transform-failed: unknown transform %q", kind)
	}
}

func toString(value interface{}) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

func cleanText(s string) string {
	if s == "" {
		return ""
	}
	collapsed := wsPattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(collapsed)
}

func extractKeywords(s string) []string {
	if s == "" {
		return []string{}
	}
	seen := make(map[string]bool)
	var keywords []string
	for _, word := range strings.Fields(cleanText(s)) {
		w := strings.ToLower(strings.Trim(word, ".,;:!?\"'()"))
		if len(w) < 4 || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
	}
	if keywords == nil {
		keywords = []string{}
	}
	return keywords
}

func extractIDs(s string) []string {
	matches := idPattern.FindAllString(s, -1)
	if matches == nil {
		return []string{}
	}
	return dedupe(matches)
}

func extractURLs(s string) []string {
	matches := urlPattern.FindAllString(s, -1)
	if matches == nil {
		return []string{}
	}
	return dedupe(matches)
}

func toISODate(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"01/02/2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339), nil
		}
	}
	return "", fmt.Errorf("transform-failed: cannot parse date %q", s)
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
