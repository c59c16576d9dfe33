// Package sanitize provides HTML sanitization for product copy. Uses
// bluemonday to strip dangerous HTML (script tags, event handlers,
// javascript: URLs) from rich descriptions, and to reduce short fields such
// as titles to plain text.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// The policies are built once on first use and shared; bluemonday policies
// are safe for concurrent use once configured.
var (
	richPolicy   *bluemonday.Policy
	strictPolicy *bluemonday.Policy
	policyOnce   sync.Once
)

func initPolicies() {
	policyOnce.Do(func() {
		richPolicy = bluemonday.UGCPolicy()

		// Rich-text editors emit classes for alignment and lists.
		richPolicy.AllowAttrs("class").Globally()

		// Dimension and feature tables in product descriptions.
		richPolicy.AllowElements("table", "thead", "tbody", "tfoot", "tr", "td", "th", "caption")
		richPolicy.AllowAttrs("colspan", "rowspan").OnElements("td", "th")

		// Description images must not point off-site via protocol-relative URLs.
		richPolicy.RequireParseableURLs(true)
		richPolicy.AllowURLSchemes("http", "https", "mailto")

		strictPolicy = bluemonday.StrictPolicy()
	})
}

// HTML sanitizes a rich product description, keeping safe formatting tags.
//
// This MUST be called on all user-provided HTML before storing it in the
// database.
func HTML(input string) string {
	if input == "" {
		return ""
	}
	initPolicies()
	return richPolicy.Sanitize(input)
}

// PlainText strips every tag from input and returns unescaped text with
// runs of whitespace collapsed, for fields rendered as plain text.
func PlainText(input string) string {
	if input == "" {
		return ""
	}
	initPolicies()
	text := html.UnescapeString(strictPolicy.Sanitize(input))
	return strings.Join(strings.Fields(text), " ")
}
