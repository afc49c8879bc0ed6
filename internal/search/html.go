package search

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// htmlTagPattern matches common HTML tags to detect if a string contains HTML.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// containsHTML checks if a string appears to contain HTML markup.
func containsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// descriptionText turns a source description into indexable text.
// Sources frequently ship HTML; it is converted to Markdown so markup does
// not end up as search terms. Plain text is returned unchanged.
func descriptionText(s string) string {
	if s == "" || !containsHTML(s) {
		return s
	}

	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(markdown)
}
