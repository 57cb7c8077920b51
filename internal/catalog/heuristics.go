package catalog

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/labhacker007/Joti-sub001/internal/redact"
	uni "github.com/labhacker007/Joti-sub001/internal/unicode"
)

const (
	// maxInputRunes is the context-overflow size limit for a single prompt.
	maxInputRunes = 32000
	// floodMinTokens is the prompt length before repetition flooding is considered.
	floodMinTokens = 300
	floodMinRepeat = 200
	evidenceLimit  = 80
)

// ---------------------------------------------------------------------------
// Pattern tables
// ---------------------------------------------------------------------------

var instructionOverridePatterns = compilePatterns([]string{
	`(?i)ignore\s+(all\s+)?(of\s+)?(the\s+)?(previous|prior|above|earlier)\s+(instructions?|rules?|directions?)`,
	`(?i)disregard\s+(all\s+)?(the\s+|your\s+)?(previous\s+|prior\s+)?(instructions?|rules?|guidelines?)`,
	`(?i)forget\s+(all\s+)?(your|previous|prior)\s+(instructions?|rules?|training)`,
	`(?i)new\s+instructions?\s*:`,
	`(?i)from\s+now\s+on,?\s+you\s+(will|must)\s+(only\s+)?(obey|follow|answer)`,
})

var indirectInjectionPatterns = compilePatterns([]string{
	`(?i)\[/?INST\]`,
	`(?i)<\|im_start\|>\s*system`,
	`(?i)<<\s*SYS\s*>>`,
	`(?i)BEGIN\s+HIDDEN\s+INSTRUCTIONS?`,
	`(?i)(SYSTEM|IMPORTANT)\s*:\s*(ignore|forget|override|disregard|you\s+are)`,
})

// downstreamInjectionPatterns is applied to model output.
var downstreamInjectionPatterns = append(
	append([]*regexp.Regexp{}, instructionOverridePatterns...),
	indirectInjectionPatterns...,
)

var promptExfilPatterns = compilePatterns([]string{
	`(?i)(show|reveal|display|print|output|leak)\s+(me\s+)?(your|the)\s+(full\s+|entire\s+|original\s+)?(system\s+)?(prompt|instructions)`,
	`(?i)repeat\s+(everything|the\s+text)\s+(above|before)\s+(this|my)`,
	`(?i)what\s+(are|were)\s+your\s+(initial|original|system)\s+(instructions?|prompt)`,
})

var disableGuardrailPatterns = compilePatterns([]string{
	`(?i)(disable|turn\s+off|bypass|deactivate|ignore)\s+(your\s+|the\s+|all\s+)?(safety|guardrails?|content\s+(filter|policy)|filters?|moderation)`,
	`(?i)without\s+(any\s+)?(safety|content)\s+(filters?|restrictions?|guidelines?)`,
})

var jailbreakPersonaPatterns = compilePatterns([]string{
	`(?i)\bdo\s+anything\s+now\b`,
	`(?i)\b(DAN|STAN|DUDE|AIM)\s+(mode|prompt|jailbreak)\b`,
	`(?i)\bdeveloper\s+mode\s+(enabled|on|activated)\b`,
	`(?i)\bjailbr(eak|oken)\s+(mode|prompt|version)\b`,
})

var jailbreakUnrestrictedPatterns = compilePatterns([]string{
	`(?i)(pretend|imagine|act\s+as\s+if)\s+(that\s+)?you\s+(are|were|have)\s+.{0,40}\b(no|without)\s+(restrictions?|filters?|rules?|limits?|guidelines?)`,
	`(?i)act\s+as\s+an?\s+(unfiltered|unrestricted|uncensored|amoral)\b`,
	`(?i)you\s+(have|are\s+under)\s+no\s+(rules|restrictions|limitations|obligations)`,
})

var jailbreakHypotheticalPatterns = compilePatterns([]string{
	`(?i)\b(hypothetical(ly)?|fictional(ly)?|in\s+a\s+story|for\s+a\s+novel)\b.{0,80}\b(build|write|create|deploy|make)\s+(working\s+)?(malware|ransomware|an?\s+exploit|a\s+weapon|a\s+keylogger)`,
})

var systemPromptLeakPatterns = compilePatterns([]string{
	`(?i)\b(my|the)\s+(system\s+prompt|initial\s+instructions|hidden\s+instructions)\s+(is|are|says|reads|states)\b`,
	`(?i)here\s+(is|are)\s+my\s+(system\s+)?(prompt|instructions)\b`,
	`(?i)\bI\s+was\s+(instructed|told)\s+by\s+(the\s+)?(system|developer|operator)\s+(prompt\s+)?to\b`,
})

// malformedCVEPattern catches identifiers that look like CVEs but cannot be:
// the year must be 4 digits and the sequence at least 4.
var malformedCVEPattern = regexp.MustCompile(`(?i)\bCVE-(\d{1,3}|\d{5,})-\d+\b|\bCVE-\d{4}-\d{1,3}\b`)

var unverifiableClaimPatterns = compilePatterns([]string{
	`(?i)as\s+of\s+my\s+(last\s+)?(knowledge|training)\s+(cutoff|update)`,
	`(?i)\bI\s+(cannot|can't|am\s+unable\s+to)\s+(verify|confirm)\b`,
	`(?i)\b(reportedly|allegedly|rumou?red)\b.{0,40}\b(unconfirmed|unverified)\b`,
})

var placeholderCitationPatterns = compilePatterns([]string{
	`(?i)\[(citation\s+needed|source|link|ref)\]`,
	`(?i)https?://(www\.)?example\.(com|org|net)\b`,
})

// base64PayloadPattern matches base64 runs long enough to hide a sentence.
var base64PayloadPattern = regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`)

// hexEscapePattern matches 4+ escapes like \x41\x42\x43\x44.
var hexEscapePattern = regexp.MustCompile(`(\\\\?x[0-9a-fA-F]{2}){4,}`)

var urlEncodedChainPattern = regexp.MustCompile(`(%[0-9A-Fa-f]{2}){6,}`)

var decodeInstructionPatterns = compilePatterns([]string{
	`(?i)(decode|decipher|translate)\s+(this|the\s+following)\s+(base64|rot13|hex|binary|morse)`,
	`(?i)\brot13\b.{0,40}\b(then|and)\s+(follow|execute|obey)`,
})

var scriptInjectionPattern = regexp.MustCompile(
	`(?is)<script\b.*?(</script\s*>|$)` +
		`|<iframe\b[^>]*>` +
		`|\bjavascript:[^\s"')]*` +
		`|\son[a-z]+\s*=\s*("[^"]*"|'[^']*')`,
)

// markdownExfilPattern matches images whose URL carries a query string, the
// usual channel for leaking conversation data to a third party on render.
var markdownExfilPattern = regexp.MustCompile(`!\[[^\]]*\]\(\s*https?://[^)\s]+\?[^)\s]*\)`)

var cotRevealPatterns = compilePatterns([]string{
	`(?i)(show|reveal|print|output|give\s+me|dump)\s+(me\s+)?(your\s+)?(hidden|internal|private|raw|full)\s+(reasoning|thoughts|chain[\s-]of[\s-]thought|scratchpad)`,
	`(?i)what\s+(are|were)\s+you\s+(really\s+)?thinking\s+(internally|privately)`,
})

var cotHijackPatterns = compilePatterns([]string{
	`(?i)(step[\s-]by[\s-]step|in\s+your\s+reasoning|while\s+(you\s+are\s+)?thinking|in\s+your\s+scratchpad).{0,80}\b(ignore|disregard|bypass|override)\s+(the\s+|your\s+|all\s+)?(rules|instructions|guidelines|policy|policies|safety)`,
})

var falseAgreementPatterns = compilePatterns([]string{
	`(?i)\bas\s+(we|you)\s+(agreed|discussed|promised|confirmed)\s+(earlier|before|previously|last\s+time)`,
	`(?i)\b(remember|recall)\s+(when|that)\s+you\s+(said|agreed|promised|confirmed)`,
	`(?i)\bin\s+(our|the)\s+(previous|last|earlier)\s+(conversation|chat|session),?\s+you\s+(said|agreed|promised)`,
})

var incrementalEscalationPatterns = compilePatterns([]string{
	`(?i)\b(now|next),?\s+(just\s+)?(go|take\s+it)\s+(a\s+little|one\s+step|slightly)\s+further`,
	`(?i)continue\s+from\s+where\s+you\s+(left\s+off|stopped)\s+(but|and)\s+(remove|drop|skip)\s+(the\s+)?(filters?|warnings?|restrictions?|disclaimers?)`,
})

var hiddenCommentPattern = regexp.MustCompile(`(?is)<!--.{0,500}?\b(ignore|instructions?|system|assistant|you\s+are|disregard)\b.{0,500}?-->`)

var dataURIPattern = regexp.MustCompile(`(?i)data:(text/html|application/(x-)?javascript|image/svg\+xml)[;,]`)

var hiddenStylePatterns = compilePatterns([]string{
	`(?i)display\s*:\s*none`,
	`(?i)font-size\s*:\s*0(px|pt|em)?\s*[;"']`,
	`(?i)visibility\s*:\s*hidden`,
})

// ---------------------------------------------------------------------------
// Detectors
// ---------------------------------------------------------------------------

// anyRegex reports the first pattern match as evidence.
func anyRegex(patterns ...*regexp.Regexp) DetectFunc {
	return func(text string) (bool, string) {
		for _, p := range patterns {
			if m := p.FindString(text); m != "" {
				return true, excerpt(m)
			}
		}
		return false, ""
	}
}

// stripRegex removes every match of the patterns.
func stripRegex(replacement string, patterns ...*regexp.Regexp) FixFunc {
	return func(text string) string {
		for _, p := range patterns {
			text = p.ReplaceAllString(text, replacement)
		}
		return text
	}
}

func detectRedactable(class redact.Class) DetectFunc {
	return func(text string) (bool, string) {
		matches := redact.Find(text, class)
		if len(matches) == 0 {
			return false, ""
		}
		// Never echo the sensitive value back as evidence.
		return true, fmt.Sprintf("%d %s value(s), first: %s", len(matches), class, matches[0].Rule)
	}
}

func fixRedactable(class redact.Class) FixFunc {
	return func(text string) string { return redact.RedactClass(text, class) }
}

func detectHiddenCharacters(text string) (bool, string) {
	rep := uni.Inspect(text)
	hidden := rep.Hidden()
	if len(hidden) == 0 {
		return false, ""
	}
	f := hidden[0]
	return true, fmt.Sprintf("%d hidden character(s), first %s %s at %d", len(hidden), f.Kind, f.Codepoint, f.Offset)
}

// detectMixedScript flags words that mix Latin letters with look-alike
// Cyrillic or Greek letters. Text written entirely in those scripts is fine.
func detectMixedScript(text string) (bool, string) {
	for _, word := range strings.Fields(text) {
		if !hasASCIILetter(word) {
			continue
		}
		rep := uni.Inspect(word)
		for _, f := range rep.Findings {
			if f.Kind == uni.KindHomoglyph {
				return true, fmt.Sprintf("mixed-script word %q (%s)", excerpt(word), f.Codepoint)
			}
		}
	}
	return false, ""
}

func detectBase64Payload(text string) (bool, string) {
	for _, m := range base64PayloadPattern.FindAllString(text, -1) {
		decoded, err := base64.StdEncoding.DecodeString(padBase64(m))
		if err != nil {
			continue
		}
		if printableRatio(decoded) >= 0.8 {
			return true, "base64 payload decodes to text: " + excerpt(string(decoded))
		}
	}
	return false, ""
}

func detectOversized(text string) (bool, string) {
	if n := utf8.RuneCountInString(text); n > maxInputRunes {
		return true, fmt.Sprintf("input is %d characters, limit %d", n, maxInputRunes)
	}
	return false, ""
}

// detectRepetitionFlood flags prompts dominated by one repeated token.
func detectRepetitionFlood(text string) (bool, string) {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) < floodMinTokens {
		return false, ""
	}
	counts := make(map[string]int)
	top, topCount := "", 0
	for _, tok := range tokens {
		counts[tok]++
		if counts[tok] > topCount {
			top, topCount = tok, counts[tok]
		}
	}
	if topCount >= floodMinRepeat && topCount*2 > len(tokens) {
		return true, fmt.Sprintf("token %q repeated %d of %d times", excerpt(top), topCount, len(tokens))
	}
	return false, ""
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= evidenceLimit {
		return s
	}
	r := []rune(s)
	return string(r[:evidenceLimit]) + "..."
}

func padBase64(s string) string {
	s = strings.TrimRight(s, "=")
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return s
}

func printableRatio(b []byte) float64 {
	if len(b) == 0 {
		return 0
	}
	printable := 0
	for _, c := range b {
		if (c >= 0x20 && c < 0x7F) || c == '\n' || c == '\t' {
			printable++
		}
	}
	return float64(printable) / float64(len(b))
}

func hasASCIILetter(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return true
		}
	}
	return false
}
