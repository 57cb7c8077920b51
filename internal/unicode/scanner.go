// Package unicode detects invisible and confusable characters that let a
// prompt carry instructions a human reviewer cannot see.
package unicode

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind classifies a suspicious code point.
type Kind string

const (
	KindInvalidUTF8  Kind = "invalid-utf8"
	KindZeroWidth    Kind = "zero-width"
	KindBidi         Kind = "bidi-override"
	KindTag          Kind = "tag-char"
	KindControl      Kind = "control-char"
	KindVariationSel Kind = "variation-selector"
	KindHomoglyph    Kind = "homoglyph"
)

// Finding is one suspicious code point in the input.
type Finding struct {
	Kind      Kind
	Codepoint string
	Offset    int
	// Hidden is true for characters that are invisible when rendered.
	// Homoglyphs are visible, just misleading.
	Hidden bool
}

// Report is the result of Inspect.
type Report struct {
	Findings []Finding
	// Stripped is the input with every hidden character removed and
	// homoglyphs folded to their Latin look-alikes.
	Stripped string
}

// Clean reports whether nothing suspicious was found.
func (r Report) Clean() bool { return len(r.Findings) == 0 }

// Hidden returns the findings for invisible characters only.
func (r Report) Hidden() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Hidden {
			out = append(out, f)
		}
	}
	return out
}

// Summary renders a short evidence string such as "zero-width U+200B at 4 (+2 more)".
func (r Report) Summary() string {
	if len(r.Findings) == 0 {
		return ""
	}
	f := r.Findings[0]
	s := fmt.Sprintf("%s %s at %d", f.Kind, f.Codepoint, f.Offset)
	if n := len(r.Findings) - 1; n > 0 {
		s += fmt.Sprintf(" (+%d more)", n)
	}
	return s
}

// Inspect walks the input rune by rune.
func Inspect(input string) Report {
	var rep Report
	var b strings.Builder
	b.Grow(len(input))

	for i := 0; i < len(input); {
		r, size := utf8.DecodeRuneInString(input[i:])
		if r == utf8.RuneError && size == 1 {
			rep.Findings = append(rep.Findings, Finding{
				Kind:      KindInvalidUTF8,
				Codepoint: fmt.Sprintf("0x%02X", input[i]),
				Offset:    i,
				Hidden:    true,
			})
			i++
			continue
		}

		if kind, ok := hiddenKind(r); ok {
			rep.Findings = append(rep.Findings, Finding{Kind: kind, Codepoint: codepoint(r), Offset: i, Hidden: true})
			i += size
			continue
		}

		if latin, ok := homoglyph(r); ok {
			rep.Findings = append(rep.Findings, Finding{Kind: KindHomoglyph, Codepoint: codepoint(r), Offset: i})
			b.WriteRune(latin)
			i += size
			continue
		}

		b.WriteRune(r)
		i += size
	}

	rep.Stripped = b.String()
	return rep
}

// Strip returns the input with hidden characters removed and homoglyphs folded.
func Strip(input string) string {
	return Inspect(input).Stripped
}

func codepoint(r rune) string { return fmt.Sprintf("U+%04X", r) }

func hiddenKind(r rune) (Kind, bool) {
	switch {
	case r == '\u200B', r == '\u200C', r == '\u200D', r == '\u2060',
		r == '\uFEFF', r == '\u180E', r == '\u200E', r == '\u200F':
		return KindZeroWidth, true
	case r >= '\u202A' && r <= '\u202E', r >= '\u2066' && r <= '\u2069':
		return KindBidi, true
	case r >= 0xE0000 && r <= 0xE007F:
		return KindTag, true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
		return KindVariationSel, true
	case r == '\t', r == '\n', r == '\r':
		return "", false
	case r < 0x20, r == 0x7F, r >= 0x80 && r <= 0x9F:
		return KindControl, true
	}
	return "", false
}

func homoglyph(r rune) (rune, bool) {
	if r < 0x0370 {
		return 0, false
	}
	if !unicode.In(r, unicode.Cyrillic, unicode.Greek) {
		return 0, false
	}
	latin, ok := confusables[r]
	return latin, ok
}

// confusables maps Cyrillic and Greek letters to the Latin letter they render as.
var confusables = map[rune]rune{
	// Cyrillic
	'а': 'a', 'А': 'A', 'В': 'B', 'с': 'c', 'С': 'C', 'е': 'e', 'Е': 'E',
	'Н': 'H', 'і': 'i', 'І': 'I', 'ј': 'j', 'К': 'K', 'М': 'M', 'о': 'o',
	'О': 'O', 'р': 'p', 'Р': 'P', 'ѕ': 's', 'Ѕ': 'S', 'Т': 'T', 'х': 'x',
	'Х': 'X', 'у': 'y', 'У': 'Y',
	// Greek
	'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Η': 'H', 'Ι': 'I', 'Κ': 'K', 'Μ': 'M',
	'Ν': 'N', 'Ο': 'O', 'ο': 'o', 'Ρ': 'P', 'Τ': 'T', 'Χ': 'X', 'Υ': 'Y',
	'Ζ': 'Z', 'ν': 'v',
}
