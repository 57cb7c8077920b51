// Package normalize turns article titles, bodies and URLs into the canonical
// forms used for similarity comparison. Every comparison must run both sides
// through the same functions here or scores stop being reproducible.
package normalize

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// stopwords is the fixed list removed before comparison.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "been": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "he": true, "her": true, "his": true, "in": true,
	"into": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "our": true, "she": true, "that": true, "the": true, "their": true,
	"them": true, "they": true, "this": true, "to": true, "was": true, "we": true,
	"were": true, "will": true, "with": true, "you": true, "your": true,
}

// Text lowercases, strips punctuation, removes stopwords and collapses whitespace.
func Text(s string) string {
	lowered := strings.ToLower(s)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, lowered)

	fields := strings.Fields(cleaned)
	kept := fields[:0]
	for _, f := range fields {
		if !stopwords[f] {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// Prefix returns the first n runes of s.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// StripHTML returns the visible text of an HTML fragment. Input without
// markup is returned unchanged.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("script, style, noscript").Remove()

	// Text nodes are joined with spaces so adjacent block elements do not
	// fuse their words together.
	var parts []string
	collectText(doc.Selection, &parts)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			*parts = append(*parts, s.Text())
			return
		}
		collectText(s, parts)
	})
}

// Content is StripHTML followed by Text.
func Content(s string) string {
	return Text(StripHTML(s))
}

// Domain extracts the lowercase host of a URL with any "www." prefix and port
// removed. Scheme-less input like "www.example.com/path" is accepted.
// Unparseable input returns "".
func Domain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}
