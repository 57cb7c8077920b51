package guardrail

import (
	"testing"

	"github.com/labhacker007/Joti-sub001/internal/catalog"
)

func TestApplies(t *testing.T) {
	base := testDef("g", catalog.CategoryPromptInjection, ActionReject, DetectorValidation{Detector: "prompt-injection"})

	tests := []struct {
		name     string
		mutate   func(d *Definition)
		function string
		platform string
		want     bool
	}{
		{"global everywhere", func(d *Definition) {}, "summarize", "web", true},
		{"disabled", func(d *Definition) { d.Status = StatusDisabled }, "summarize", "web", false},
		{"platform match", func(d *Definition) { d.Platforms = []string{"slack"} }, "summarize", "Slack", true},
		{"platform mismatch", func(d *Definition) { d.Platforms = []string{"slack"} }, "summarize", "web", false},
		{"global with function filter", func(d *Definition) { d.Functions = []string{"extract_iocs"} }, "summarize", "", false},
		{"function scope match", func(d *Definition) {
			d.Scope = ScopeFunction
			d.Functions = []string{"extract_iocs"}
		}, "extract_iocs", "", true},
		{"function scope mismatch", func(d *Definition) {
			d.Scope = ScopeFunction
			d.Functions = []string{"extract_iocs"}
		}, "summarize", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base.Clone()
			tt.mutate(&d)
			if got := Applies(d, tt.function, tt.platform); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestResolve_DisablingOverrideExcludes(t *testing.T) {
	g1 := testDef("g1", catalog.CategoryPromptInjection, ActionReject, DetectorValidation{Detector: "prompt-injection"})
	g1.Seq = 1
	g2 := testDef("g2", catalog.CategoryJailbreak, ActionWarn, DetectorValidation{Detector: "jailbreak"})
	g2.Seq = 2

	overrides := []Override{
		{Function: "summarize", GuardrailID: "g1", Enabled: false},
		{Function: "other", GuardrailID: "g2", Enabled: false},
	}

	got := Resolve([]Definition{g2, g1}, overrides, "summarize", "web")
	if len(got) != 1 || got[0].ID != "g2" {
		t.Fatalf("expected only g2, got %v", ids(got))
	}

	got = Resolve([]Definition{g2, g1}, overrides, "other", "web")
	if len(got) != 1 || got[0].ID != "g1" {
		t.Fatalf("expected only g1 for other, got %v", ids(got))
	}
}

func TestResolve_OverrideMergesSeverityAndConfig(t *testing.T) {
	g := testDef("g", catalog.CategoryEncoding, ActionWarn, DetectorValidation{Detector: "encoding"})
	g.Config = map[string]any{"a": 1, "b": 2}
	o := Override{Function: "f", GuardrailID: "g", Enabled: true, Severity: SeverityCritical, Config: map[string]any{"b": 3, "c": 4}}

	got := Resolve([]Definition{g}, []Override{o}, "f", "")
	if len(got) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(got))
	}
	if got[0].Severity != SeverityCritical {
		t.Errorf("expected severity override, got %s", got[0].Severity)
	}
	if got[0].Config["a"] != 1 || got[0].Config["b"] != 3 || got[0].Config["c"] != 4 {
		t.Errorf("unexpected merged config %v", got[0].Config)
	}
	if g.Config["b"] != 2 {
		t.Errorf("expected source config untouched, got %v", g.Config)
	}
}

func TestResolve_OverrideDoesNotRevive(t *testing.T) {
	g := testDef("g", catalog.CategoryEncoding, ActionWarn, DetectorValidation{Detector: "encoding"})
	g.Status = StatusDisabled
	got := Resolve([]Definition{g}, []Override{{Function: "f", GuardrailID: "g", Enabled: true}}, "f", "")
	if len(got) != 0 {
		t.Errorf("expected disabled definition to stay excluded, got %v", ids(got))
	}
}

func TestResolve_OrderedBySeq(t *testing.T) {
	var defs []Definition
	for i, id := range []string{"c", "a", "b"} {
		d := testDef(id, catalog.CategoryJailbreak, ActionWarn, DetectorValidation{Detector: "jailbreak"})
		d.Seq = int64(3 - i)
		defs = append(defs, d)
	}
	got := Resolve(defs, nil, "f", "")
	if want := []string{"b", "a", "c"}; !equalIDs(ids(got), want) {
		t.Errorf("expected %v, got %v", want, ids(got))
	}
}

func TestOrder_SeverityThenSeq(t *testing.T) {
	mk := func(id string, sev Severity, seq int64) Definition {
		d := testDef(id, catalog.CategoryJailbreak, ActionWarn, DetectorValidation{Detector: "jailbreak"})
		d.Severity, d.Seq = sev, seq
		return d
	}
	defs := []Definition{
		mk("low", SeverityLow, 1),
		mk("high-late", SeverityHigh, 5),
		mk("crit", SeverityCritical, 9),
		mk("high-early", SeverityHigh, 2),
	}
	got := Order(defs)
	if want := []string{"low", "high-early", "high-late", "crit"}; !equalIDs(ids(got), want) {
		t.Errorf("expected %v, got %v", want, ids(got))
	}
	if defs[0].ID != "low" {
		t.Error("expected Order not to reorder its input")
	}
}

func ids(defs []Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
