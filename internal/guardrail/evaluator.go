package guardrail

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/labhacker007/Joti-sub001/internal/catalog"
	"github.com/labhacker007/Joti-sub001/internal/redact"
)

const regexCacheSize = 512

const (
	msgMisconfigured = "guardrail misconfigured"
	msgEvaluatorErr  = "evaluator error"
)

// Evaluator runs one guardrail against one payload. It has no side effects
// and is safe for concurrent use.
type Evaluator struct {
	catalog    *catalog.Catalog
	extensions *Extensions
	regexes    *lru.Cache[string, *regexp.Regexp]
	// compiles counts cache misses.
	compiles atomic.Int64
}

// NewEvaluator returns an evaluator. A nil catalog uses the built-in one and
// nil extensions uses the built-in registry.
func NewEvaluator(cat *catalog.Catalog, ext *Extensions) *Evaluator {
	if cat == nil {
		cat = catalog.Default()
	}
	if ext == nil {
		ext = NewExtensions()
	}
	cache, _ := lru.New[string, *regexp.Regexp](regexCacheSize)
	return &Evaluator{catalog: cat, extensions: ext, regexes: cache}
}

// Evaluate checks payload against def. Definitions that fail validation
// fail closed with a reject.
func (e *Evaluator) Evaluate(def Definition, payload string, dir Direction) Result {
	if err := def.validate(e.catalog, e.compile); err != nil {
		return fail(def, dir, ActionReject, msgMisconfigured, err.Error())
	}

	switch v := def.Validation.(type) {
	case RegexValidation:
		return e.evalRegex(def, v, payload, dir)
	case BlocklistValidation:
		return e.evalBlocklist(def, v, payload, dir)
	case DetectorValidation:
		return e.evalDetector(def, v, payload, dir)
	case CustomValidation:
		return e.evalCustom(def, v, payload, dir)
	}
	return fail(def, dir, ActionReject, msgMisconfigured, "unknown validation type")
}

func (e *Evaluator) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := e.regexes.Get(pattern); ok {
		return re, nil
	}
	e.compiles.Add(1)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	e.regexes.Add(pattern, re)
	return re, nil
}

func (e *Evaluator) evalRegex(def Definition, v RegexValidation, payload string, dir Direction) Result {
	re, err := e.compile(v.Pattern)
	if err != nil {
		return fail(def, dir, ActionReject, msgMisconfigured, err.Error())
	}

	if v.Allow {
		if re.MatchString(payload) {
			return pass(def, dir)
		}
		return fail(def, dir, def.Action, fmt.Sprintf("%s: payload does not match the required format", def.Name), "")
	}

	loc := re.FindStringIndex(payload)
	if loc == nil {
		return pass(def, dir)
	}
	res := fail(def, dir, def.Action, fmt.Sprintf("%s: payload matches a blocked pattern", def.Name),
		"matched "+quoteExcerpt(payload[loc[0]:loc[1]]))
	if def.Action == ActionFix {
		replacement := v.Replacement
		if replacement == "" {
			replacement = redact.Placeholder
		}
		fixed := re.ReplaceAllString(payload, replacement)
		res.FixedOutput = &fixed
	}
	return res
}

func (e *Evaluator) evalBlocklist(def Definition, v BlocklistValidation, payload string, dir Direction) Result {
	lower := strings.ToLower(payload)
	var hits []string
	for _, term := range v.Terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			hits = append(hits, term)
		}
	}
	if len(hits) == 0 {
		return pass(def, dir)
	}

	res := fail(def, dir, def.Action, fmt.Sprintf("%s: blocked term present", def.Name),
		fmt.Sprintf("terms: %s", strings.Join(hits, ", ")))
	if def.Action == ActionFix {
		fixed := payload
		for _, term := range hits {
			re, err := e.compile("(?i)" + regexp.QuoteMeta(term))
			if err != nil {
				return res
			}
			fixed = re.ReplaceAllLiteralString(fixed, redact.Placeholder)
		}
		res.FixedOutput = &fixed
	}
	return res
}

func (e *Evaluator) evalDetector(def Definition, v DetectorValidation, payload string, dir Direction) Result {
	patterns, ok := e.catalog.Resolve(v.Detector)
	if !ok {
		return fail(def, dir, ActionReject, msgMisconfigured, "unknown detector "+v.Detector)
	}

	excluded := make(map[string]bool)
	for _, id := range configStrings(def.Config, "exclude_patterns") {
		excluded[id] = true
	}

	type hit struct {
		pattern  catalog.Pattern
		evidence string
	}
	var hits []hit
	for _, p := range patterns {
		if excluded[p.ID] {
			continue
		}
		if matched, ev := p.Detect(payload); matched {
			hits = append(hits, hit{pattern: p, evidence: ev})
		}
	}
	if len(hits) == 0 {
		return pass(def, dir)
	}

	first := hits[0]
	evidence := first.pattern.ID + ": " + first.evidence
	if len(hits) > 1 {
		evidence += fmt.Sprintf(" (+%d more)", len(hits)-1)
	}
	res := fail(def, dir, def.Action, first.pattern.Description, evidence)

	if def.Action == ActionFix {
		fixed := payload
		for _, h := range hits {
			if h.pattern.Fix == nil {
				return res
			}
			fixed = h.pattern.Fix(fixed)
		}
		res.FixedOutput = &fixed
	}
	return res
}

func (e *Evaluator) evalCustom(def Definition, v CustomValidation, payload string, dir Direction) (res Result) {
	ext, ok := e.extensions.Lookup(v.Ref)
	if !ok {
		return fail(def, dir, ActionReject, msgMisconfigured, "unknown extension "+v.Ref)
	}

	defer func() {
		if r := recover(); r != nil {
			res = fail(def, dir, ActionReject, msgEvaluatorErr, fmt.Sprintf("extension %s panicked: %v", v.Ref, r))
		}
	}()

	out, err := ext(ExtensionInput{Payload: payload, Direction: dir, Config: def.Config})
	if err != nil {
		return fail(def, dir, ActionReject, msgEvaluatorErr, err.Error())
	}
	if out.Passed {
		return pass(def, dir)
	}
	msg := out.Message
	if msg == "" {
		msg = def.Name + ": custom validation failed"
	}
	res = fail(def, dir, def.Action, msg, "extension "+v.Ref)
	if def.Action == ActionFix {
		res.FixedOutput = out.FixedOutput
	}
	return res
}

func quoteExcerpt(s string) string {
	const limit = 60
	r := []rune(s)
	if len(r) > limit {
		s = string(r[:limit]) + "..."
	}
	return fmt.Sprintf("%q", s)
}
