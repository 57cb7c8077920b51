// Package redact finds and masks secrets and personal data in free text.
// It backs the data-extraction detectors and scrubs execution log entries.
package redact

import (
	"regexp"
	"strings"
)

// Placeholder replaces every redacted span.
const Placeholder = "[REDACTED]"

// Class separates credentials from personal data.
type Class string

const (
	ClassSecret Class = "secret"
	ClassPII    Class = "pii"
)

// Rule is a named redaction pattern.
type Rule struct {
	Name  string
	Class Class
	re    *regexp.Regexp
	// valid, when set, filters regex hits (e.g. Luhn for card numbers).
	valid func(match string) bool
}

// Match is one redactable span.
type Match struct {
	Rule  string
	Class Class
	Start int
	End   int
}

var secretRules = []Rule{
	{Name: "aws-access-key", re: regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{Name: "aws-secret", re: regexp.MustCompile(`(?i)aws_(secret_access_key|session_token)\s*[=:]\s*['"]?[A-Za-z0-9/+=]{20,}['"]?`)},
	{Name: "github-token", re: regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
	{Name: "openai-key", re: regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{20,}\b`)},
	{Name: "slack-token", re: regexp.MustCompile(`\bxox[baprs]-[0-9]{10,13}-[0-9]{10,13}[A-Za-z0-9-]*`)},
	{Name: "stripe-key", re: regexp.MustCompile(`\b[rs]k_live_[0-9a-zA-Z]{24,}\b`)},
	{Name: "private-key", re: regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`)},
	{Name: "bearer-token", re: regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._-]{20,}`)},
	{Name: "url-credentials", re: regexp.MustCompile(`https?://[^:/\s]+:[^@/\s]+@`)},
	{Name: "generic-api-key", re: regexp.MustCompile(`(?i)\b(api[_-]?key|secret[_-]?key|access[_-]?token|auth[_-]?token)\s*[=:]\s*['"]?[A-Za-z0-9_-]{16,}['"]?`)},
	{Name: "password-assignment", re: regexp.MustCompile(`(?i)\b(password|passwd|pwd)\s*[=:]\s*['"]?[^\s'"]{8,}['"]?`)},
}

var piiRules = []Rule{
	{Name: "email", re: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{Name: "ssn", re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{Name: "credit-card", re: regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`), valid: luhn},
	{Name: "phone", re: regexp.MustCompile(`(?:\+?1[ .-]?)?\(?\b\d{3}\)?[ .-]\d{3}[ .-]\d{4}\b`)},
}

func init() {
	for i := range secretRules {
		secretRules[i].Class = ClassSecret
	}
	for i := range piiRules {
		piiRules[i].Class = ClassPII
	}
}

// Rules returns the built-in rules for a class. An empty class returns all of them.
func Rules(class Class) []Rule {
	switch class {
	case ClassSecret:
		return secretRules
	case ClassPII:
		return piiRules
	}
	all := make([]Rule, 0, len(secretRules)+len(piiRules))
	all = append(all, secretRules...)
	return append(all, piiRules...)
}

// Find returns every redactable span for the given class, in rule order.
func Find(input string, class Class) []Match {
	var out []Match
	for _, r := range Rules(class) {
		for _, loc := range r.re.FindAllStringIndex(input, -1) {
			if r.valid != nil && !r.valid(input[loc[0]:loc[1]]) {
				continue
			}
			out = append(out, Match{Rule: r.Name, Class: r.Class, Start: loc[0], End: loc[1]})
		}
	}
	return out
}

// Redact masks secrets and personal data.
func Redact(input string) string {
	return RedactClass(input, "")
}

// RedactClass masks only the spans of one class.
func RedactClass(input string, class Class) string {
	result := input
	for _, r := range Rules(class) {
		if r.valid == nil {
			result = r.re.ReplaceAllString(result, Placeholder)
			continue
		}
		result = r.re.ReplaceAllStringFunc(result, func(m string) string {
			if r.valid(m) {
				return Placeholder
			}
			return m
		})
	}
	return result
}

// RedactAll applies Redact to each element.
func RedactAll(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = Redact(s)
	}
	return out
}

func luhn(s string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
