// Package utils holds small host-side helpers shared across the plugin
// host that don't belong to any single import namespace.
package utils

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// HTMLSanitizer strips unsafe markup from manga/chapter descriptions a
// plugin scrapes from its source site before the host hands them to a
// caller that may render them as HTML. Plugin content is untrusted: a
// malicious or compromised source could embed a script tag in a
// description field, and the host has no way to know what the caller's
// renderer will do with it.
type HTMLSanitizer struct {
	policy *bluemonday.Policy
}

// NewHTMLSanitizer builds a policy permitting the formatting markup
// commonly found in scraped manga descriptions (basic text styling,
// headings, lists, tables, blockquotes/code, images, and links including
// mailto:) while stripping scripts, event handlers, frames, and forms.
func NewHTMLSanitizer() *HTMLSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("b", "i", "strong", "em", "u", "s", "br", "hr",
		"h1", "h2", "h3", "h4", "h5", "h6", "p", "div", "span",
		"ul", "ol", "li", "blockquote", "code", "pre",
		"table", "thead", "tbody", "tr", "th", "td", "a")

	p.AllowAttrs("class").Globally()
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")

	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireNoFollowOnLinks(false)

	p.AllowImages()
	p.AllowAttrs("title").OnElements("img")

	return &HTMLSanitizer{policy: p}
}

// Sanitize returns html with disallowed elements and attributes removed.
func (s *HTMLSanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}

var htmlTagRE = regexp.MustCompile(`(?i)<(/?(?:p|div|span|b|i|strong|em|u|s|br|hr|h[1-6]|ul|ol|li|blockquote|code|pre|table|thead|tbody|tr|th|td|a|img)\b)[^>]*>`)

// IsHTML reports whether s contains a recognized HTML tag, as opposed to
// plain text that merely contains angle brackets (e.g. "5 < 10").
func IsHTML(s string) bool {
	return htmlTagRE.MatchString(s)
}

var anyTagRE = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes all tags (and, for script/style, their content) from s,
// leaving the concatenated text content.
func StripHTML(s string) string {
	s = stripScriptBlocks(s)
	return anyTagRE.ReplaceAllString(s, "")
}

func stripScriptBlocks(s string) string {
	for _, tag := range []string{"script", "style"} {
		re := regexp.MustCompile(`(?is)<` + tag + `\b[^>]*>.*?</\s*` + tag + `\s*>`)
		s = re.ReplaceAllString(s, "")
	}
	return s
}
