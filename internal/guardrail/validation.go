package guardrail

import (
	"fmt"
	"strings"
)

// ValidationType tags the validation variant.
type ValidationType string

const (
	ValidationRegex     ValidationType = "regex"
	ValidationBlocklist ValidationType = "blocklist"
	ValidationDetector  ValidationType = "detector"
	ValidationCustom    ValidationType = "custom"
)

// Validation is a closed set of variants. Only the types in this package
// implement it.
type Validation interface {
	Type() ValidationType
	validation()
}

// RegexValidation fails on a match. With Allow set the polarity flips and
// the payload must match instead.
type RegexValidation struct {
	Pattern     string
	Allow       bool
	Replacement string
}

// BlocklistValidation fails when any term appears in the payload,
// compared case-insensitively as a substring.
type BlocklistValidation struct {
	Terms []string
}

// DetectorValidation delegates to attack catalog patterns. Detector is a
// pattern id or a category name.
type DetectorValidation struct {
	Detector string
}

// CustomValidation dispatches to a registered extension.
type CustomValidation struct {
	Ref string
}

func (RegexValidation) Type() ValidationType     { return ValidationRegex }
func (BlocklistValidation) Type() ValidationType { return ValidationBlocklist }
func (DetectorValidation) Type() ValidationType  { return ValidationDetector }
func (CustomValidation) Type() ValidationType    { return ValidationCustom }

func (RegexValidation) validation()     {}
func (BlocklistValidation) validation() {}
func (DetectorValidation) validation()  {}
func (CustomValidation) validation()    {}

// ValidationSpec is the flat wire form used by JSON, YAML packs and the
// database. Exactly one payload field must be set, matching Type.
type ValidationSpec struct {
	Type        ValidationType `json:"type" yaml:"type"`
	Pattern     string         `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Allow       bool           `json:"allow,omitempty" yaml:"allow,omitempty"`
	Replacement string         `json:"replacement,omitempty" yaml:"replacement,omitempty"`
	Terms       []string       `json:"terms,omitempty" yaml:"terms,omitempty"`
	Detector    string         `json:"detector,omitempty" yaml:"detector,omitempty"`
	Ref         string         `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// Build converts the wire form into a variant.
func (s ValidationSpec) Build() (Validation, error) {
	populated := map[string]bool{
		"pattern":  s.Pattern != "",
		"terms":    len(s.Terms) > 0,
		"detector": s.Detector != "",
		"ref":      s.Ref != "",
	}
	var set []string
	for _, name := range []string{"pattern", "terms", "detector", "ref"} {
		if populated[name] {
			set = append(set, name)
		}
	}

	want := map[ValidationType]string{
		ValidationRegex:     "pattern",
		ValidationBlocklist: "terms",
		ValidationDetector:  "detector",
		ValidationCustom:    "ref",
	}
	field, ok := want[s.Type]
	if !ok {
		return nil, &ValidationError{Field: "validation.type", Reason: fmt.Sprintf("unknown validation type %q", s.Type)}
	}
	if len(set) != 1 || set[0] != field {
		return nil, &ValidationError{
			Field:  "validation",
			Reason: fmt.Sprintf("%s validation requires exactly %q, got [%s]", s.Type, field, strings.Join(set, ", ")),
		}
	}
	if s.Type != ValidationRegex && (s.Allow || s.Replacement != "") {
		return nil, &ValidationError{Field: "validation", Reason: "allow and replacement apply to regex validation only"}
	}

	switch s.Type {
	case ValidationRegex:
		return RegexValidation{Pattern: s.Pattern, Allow: s.Allow, Replacement: s.Replacement}, nil
	case ValidationBlocklist:
		return BlocklistValidation{Terms: append([]string(nil), s.Terms...)}, nil
	case ValidationDetector:
		return DetectorValidation{Detector: s.Detector}, nil
	default:
		return CustomValidation{Ref: s.Ref}, nil
	}
}

// SpecOf converts a variant to its wire form. A nil validation yields a zero spec.
func SpecOf(v Validation) ValidationSpec {
	switch v := v.(type) {
	case RegexValidation:
		return ValidationSpec{Type: ValidationRegex, Pattern: v.Pattern, Allow: v.Allow, Replacement: v.Replacement}
	case BlocklistValidation:
		return ValidationSpec{Type: ValidationBlocklist, Terms: v.Terms}
	case DetectorValidation:
		return ValidationSpec{Type: ValidationDetector, Detector: v.Detector}
	case CustomValidation:
		return ValidationSpec{Type: ValidationCustom, Ref: v.Ref}
	}
	return ValidationSpec{}
}
