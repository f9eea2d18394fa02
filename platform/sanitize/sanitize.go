// Package sanitize normalizes free-form text that arrives from permit feeds
// and contractor profiles before it is compared or stored.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// htmlTagRegex matches HTML tags
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	// separatorRegex matches runs of whitespace, hyphens and slashes
	separatorRegex = regexp.MustCompile(`[\s\-/]+`)
)

// StripHTML removes all HTML tags from a string, making it safe for text-only display.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text strips HTML and collapses internal whitespace.
func Text(s string) string {
	return strings.Join(strings.Fields(StripHTML(s)), " ")
}

// Tag normalizes a category label: "Roofing / Gutters" becomes "roofing_gutters".
func Tag(s string) string {
	t := strings.ToLower(StripHTML(s))
	t = separatorRegex.ReplaceAllString(t, "_")
	return strings.Trim(t, "_")
}

// Tags normalizes labels, dropping empties and duplicates while keeping order.
func Tags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, raw := range in {
		t := Tag(raw)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Code normalizes identifiers such as ZIP codes or jurisdiction ids: trimmed, upper-cased.
func Code(s string) string {
	return strings.ToUpper(strings.TrimSpace(StripHTML(s)))
}
