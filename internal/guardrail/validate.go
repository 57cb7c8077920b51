package guardrail

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/labhacker007/Joti-sub001/internal/catalog"
)

// Validate checks a definition for configuration errors. When cat is non-nil,
// detector references are resolved against it.
func (d Definition) Validate(cat *catalog.Catalog) error {
	return d.validate(cat, regexp.Compile)
}

// validate is Validate with the regex compiler supplied, so the evaluator
// can check definitions through its compiled-pattern cache.
func (d Definition) validate(cat *catalog.Catalog, compile func(string) (*regexp.Regexp, error)) error {
	if strings.TrimSpace(d.ID) == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(d.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	dir, ok := DirectionOf(d.Category)
	if !ok {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", d.Category)}
	}
	if !d.Severity.IsValid() {
		return &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown severity %q", d.Severity)}
	}
	if !d.Action.IsValid() {
		return &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", d.Action)}
	}
	if d.Action == ActionFix && dir == DirectionInput {
		return &ValidationError{Field: "action", Reason: fmt.Sprintf("fix is only allowed on output categories, %s runs on input", d.Category)}
	}
	switch d.Scope {
	case ScopeGlobal:
	case ScopeFunction:
		if len(d.Functions) == 0 {
			return &ValidationError{Field: "functions", Reason: "function scope requires at least one function"}
		}
	default:
		return &ValidationError{Field: "scope", Reason: fmt.Sprintf("unknown scope %q", d.Scope)}
	}
	switch d.Status {
	case StatusActive, StatusDisabled:
	default:
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", d.Status)}
	}
	if d.MaxRetries < 0 {
		return &ValidationError{Field: "max_retries", Reason: "must not be negative"}
	}
	return validateVariant(d.Validation, cat, compile)
}

func validateVariant(v Validation, cat *catalog.Catalog, compile func(string) (*regexp.Regexp, error)) error {
	switch v := v.(type) {
	case RegexValidation:
		if v.Pattern == "" {
			return &ValidationError{Field: "validation.pattern", Reason: "must not be empty"}
		}
		if _, err := compile(v.Pattern); err != nil {
			return &ValidationError{Field: "validation.pattern", Reason: "invalid regular expression"}
		}
		if v.Allow && v.Replacement != "" {
			return &ValidationError{Field: "validation.replacement", Reason: "allow patterns cannot carry a replacement"}
		}
	case BlocklistValidation:
		if len(v.Terms) == 0 {
			return &ValidationError{Field: "validation.terms", Reason: "must not be empty"}
		}
		for _, t := range v.Terms {
			if strings.TrimSpace(t) == "" {
				return &ValidationError{Field: "validation.terms", Reason: "terms must not be blank"}
			}
		}
	case DetectorValidation:
		if v.Detector == "" {
			return &ValidationError{Field: "validation.detector", Reason: "must not be empty"}
		}
		if cat != nil {
			if _, ok := cat.Resolve(v.Detector); !ok {
				return &ValidationError{Field: "validation.detector", Reason: fmt.Sprintf("unknown detector %q", v.Detector)}
			}
		}
	case CustomValidation:
		if v.Ref == "" {
			return &ValidationError{Field: "validation.ref", Reason: "must not be empty"}
		}
	default:
		return &ValidationError{Field: "validation", Reason: "missing validation"}
	}
	return nil
}

// Validate checks an override's own fields.
func (o Override) Validate() error {
	if strings.TrimSpace(o.Function) == "" {
		return &ValidationError{Field: "function", Reason: "must not be empty"}
	}
	if strings.TrimSpace(o.GuardrailID) == "" {
		return &ValidationError{Field: "guardrail_id", Reason: "must not be empty"}
	}
	if o.Severity != "" && !o.Severity.IsValid() {
		return &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown severity %q", o.Severity)}
	}
	return nil
}
