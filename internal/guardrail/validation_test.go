package guardrail

import (
	"encoding/json"
	"testing"

	"github.com/labhacker007/Joti-sub001/internal/catalog"
)

func TestValidationSpecBuild(t *testing.T) {
	tests := []struct {
		name    string
		spec    ValidationSpec
		want    ValidationType
		wantErr bool
	}{
		{"regex", ValidationSpec{Type: ValidationRegex, Pattern: "a+"}, ValidationRegex, false},
		{"regex allow", ValidationSpec{Type: ValidationRegex, Pattern: "a+", Allow: true}, ValidationRegex, false},
		{"blocklist", ValidationSpec{Type: ValidationBlocklist, Terms: []string{"x"}}, ValidationBlocklist, false},
		{"detector", ValidationSpec{Type: ValidationDetector, Detector: "jailbreak"}, ValidationDetector, false},
		{"custom", ValidationSpec{Type: ValidationCustom, Ref: "max-length"}, ValidationCustom, false},
		{"unknown type", ValidationSpec{Type: "magic", Pattern: "a"}, "", true},
		{"empty", ValidationSpec{Type: ValidationRegex}, "", true},
		{"two payloads", ValidationSpec{Type: ValidationRegex, Pattern: "a", Terms: []string{"b"}}, "", true},
		{"wrong payload", ValidationSpec{Type: ValidationDetector, Ref: "x"}, "", true},
		{"allow on blocklist", ValidationSpec{Type: ValidationBlocklist, Terms: []string{"x"}, Allow: true}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.spec.Build()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", v)
				}
				if !IsValidation(err) {
					t.Errorf("expected *ValidationError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Type() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, v.Type())
			}
			if got := SpecOf(v); got.Type != tt.spec.Type {
				t.Errorf("expected SpecOf type %s, got %s", tt.spec.Type, got.Type)
			}
		})
	}
}

func TestDefinitionJSON(t *testing.T) {
	d := testDef("g1", catalog.CategoryDataExtraction, ActionFix, RegexValidation{Pattern: `\d{4}`, Replacement: "####"})
	d.Functions = []string{"summarize"}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Definition
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	rv, ok := got.Validation.(RegexValidation)
	if !ok {
		t.Fatalf("expected RegexValidation, got %T", got.Validation)
	}
	if rv.Replacement != "####" {
		t.Errorf("expected replacement kept, got %q", rv.Replacement)
	}

	bad := []byte(`{"id":"g2","name":"x","validation":{"type":"regex","pattern":"a","terms":["b"]}}`)
	if err := json.Unmarshal(bad, &got); !IsValidation(err) {
		t.Errorf("expected validation error for ambiguous spec, got %v", err)
	}
}

func TestDefinitionValidate(t *testing.T) {
	cat := catalog.Default()
	valid := testDef("ok", catalog.CategoryPromptInjection, ActionReject, DetectorValidation{Detector: "prompt-injection"})
	if err := valid.Validate(cat); err != nil {
		t.Fatalf("expected valid definition, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(d *Definition)
		field  string
	}{
		{"empty name", func(d *Definition) { d.Name = " " }, "name"},
		{"unknown category", func(d *Definition) { d.Category = "nope" }, "category"},
		{"unknown severity", func(d *Definition) { d.Severity = "severe" }, "severity"},
		{"unknown action", func(d *Definition) { d.Action = "block" }, "action"},
		{"fix on input", func(d *Definition) { d.Action = ActionFix }, "action"},
		{"unknown scope", func(d *Definition) { d.Scope = "tenant" }, "scope"},
		{"function scope without functions", func(d *Definition) { d.Scope = ScopeFunction }, "functions"},
		{"unknown status", func(d *Definition) { d.Status = "paused" }, "status"},
		{"negative retries", func(d *Definition) { d.MaxRetries = -1 }, "max_retries"},
		{"invalid regex", func(d *Definition) { d.Validation = RegexValidation{Pattern: "[a-"} }, "validation.pattern"},
		{"empty blocklist", func(d *Definition) { d.Validation = BlocklistValidation{} }, "validation.terms"},
		{"blank term", func(d *Definition) { d.Validation = BlocklistValidation{Terms: []string{"ok", " "}} }, "validation.terms"},
		{"unknown detector", func(d *Definition) { d.Validation = DetectorValidation{Detector: "xss"} }, "validation.detector"},
		{"missing validation", func(d *Definition) { d.Validation = nil }, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid.Clone()
			tt.mutate(&d)
			err := d.Validate(cat)
			if err == nil {
				t.Fatal("expected validation error")
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %s, got %s (%s)", tt.field, ve.Field, ve.Reason)
			}
		})
	}
}

func TestOverrideValidate(t *testing.T) {
	if err := (Override{Function: "summarize", GuardrailID: "g1", Enabled: true}).Validate(); err != nil {
		t.Errorf("expected valid override, got %v", err)
	}
	if err := (Override{GuardrailID: "g1"}).Validate(); !IsValidation(err) {
		t.Errorf("expected error for missing function, got %v", err)
	}
	if err := (Override{Function: "f", GuardrailID: "g1", Severity: "extreme"}).Validate(); !IsValidation(err) {
		t.Errorf("expected error for bad severity, got %v", err)
	}
}

func TestCategoryDirectionCoversCatalog(t *testing.T) {
	var inputs, outputs int
	for _, c := range catalog.AllCategories() {
		dir, ok := DirectionOf(c)
		if !ok {
			t.Errorf("category %s has no direction", c)
			continue
		}
		if dir == DirectionInput {
			inputs++
		} else {
			outputs++
		}
	}
	if len(categoryDirection) != len(catalog.AllCategories()) {
		t.Errorf("expected %d entries, got %d", len(catalog.AllCategories()), len(categoryDirection))
	}
	if inputs != 8 || outputs != 3 {
		t.Errorf("expected 8 input and 3 output categories, got %d and %d", inputs, outputs)
	}
	for _, c := range []catalog.Category{catalog.CategoryHallucination, catalog.CategoryOutputManipulation, catalog.CategoryDataExtraction} {
		if dir, _ := DirectionOf(c); dir != DirectionOutput {
			t.Errorf("expected %s on output, got %s", c, dir)
		}
	}
}

func TestPartition(t *testing.T) {
	defs := []Definition{
		{ID: "a", Category: catalog.CategoryJailbreak},
		{ID: "b", Category: catalog.CategoryHallucination},
		{ID: "c", Category: "bogus"},
		{ID: "d", Category: catalog.CategoryEncoding},
	}
	in, out, unknown := Partition(defs)
	if len(in) != 2 || in[0].ID != "a" || in[1].ID != "d" {
		t.Errorf("unexpected input partition %v", in)
	}
	if len(out) != 1 || out[0].ID != "b" {
		t.Errorf("unexpected output partition %v", out)
	}
	if len(unknown) != 1 || unknown[0].ID != "c" {
		t.Errorf("unexpected unknown partition %v", unknown)
	}
}
