package guardrail_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/labhacker007/Joti-sub001/internal/catalog"
	"github.com/labhacker007/Joti-sub001/internal/guardrail"
	"github.com/labhacker007/Joti-sub001/internal/store"
)

func newManager(t *testing.T, ttl time.Duration) *guardrail.Manager {
	t.Helper()
	return guardrail.NewManager(store.NewMemory(), catalog.Default(), nil, ttl)
}

func injectionGuardrail(id string) guardrail.Definition {
	return guardrail.Definition{
		ID:         id,
		Name:       "Block injection",
		Category:   catalog.CategoryPromptInjection,
		Severity:   guardrail.SeverityCritical,
		Validation: guardrail.DetectorValidation{Detector: "prompt-injection"},
		Action:     guardrail.ActionReject,
	}
}

func TestManager_CreateAssignsDefaults(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, 0)

	d := injectionGuardrail("")
	created, err := m.Create(ctx, d, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated id")
	}
	if created.Scope != guardrail.ScopeGlobal || created.Status != guardrail.StatusActive {
		t.Errorf("expected global/active defaults, got %s/%s", created.Scope, created.Status)
	}
	if created.CreatedBy != "alice" || created.CreatedAt.IsZero() || created.Seq == 0 {
		t.Errorf("expected audit fields and seq, got %+v", created)
	}

	if _, err := m.Create(ctx, injectionGuardrail(created.ID), "alice"); !errors.Is(err, guardrail.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	bad := injectionGuardrail("bad")
	bad.Action = guardrail.ActionFix
	if _, err := m.Create(ctx, bad, "alice"); !guardrail.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestManager_UpdateKeepsCreationFields(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, 0)
	orig, err := m.Create(ctx, injectionGuardrail("g"), "alice")
	if err != nil {
		t.Fatal(err)
	}

	next := injectionGuardrail("ignored")
	next.Name = "Renamed"
	next.Severity = guardrail.SeverityMedium
	updated, err := m.Update(ctx, "g", next, "bob")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != "g" || updated.Name != "Renamed" {
		t.Errorf("unexpected update result %+v", updated)
	}
	if updated.CreatedBy != "alice" || !updated.CreatedAt.Equal(orig.CreatedAt) || updated.Seq != orig.Seq {
		t.Errorf("expected creation fields kept, got %+v", updated)
	}
	if updated.UpdatedBy != "bob" {
		t.Errorf("expected updated_by bob, got %s", updated.UpdatedBy)
	}

	if _, err := m.Update(ctx, "missing", next, "bob"); !errors.Is(err, guardrail.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_AuditTrail(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, 0)
	if _, err := m.Create(ctx, injectionGuardrail("g"), "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Disable(ctx, "g", "bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Disable(ctx, "g", "bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Enable(ctx, "g", "carol"); err != nil {
		t.Fatal(err)
	}

	entries, err := m.Audit(ctx, "g", 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []guardrail.AuditAction{guardrail.AuditEnable, guardrail.AuditDisable, guardrail.AuditCreate}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries (no-op disable not recorded), got %d", len(want), len(entries))
	}
	for i, a := range want {
		if entries[i].Action != a {
			t.Errorf("entry %d: expected %s, got %s", i, a, entries[i].Action)
		}
	}

	disable := entries[1]
	if disable.User != "bob" {
		t.Errorf("expected user bob, got %s", disable.User)
	}
	var before, after struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(disable.Old, &before); err != nil {
		t.Fatalf("old snapshot: %v", err)
	}
	if err := json.Unmarshal(disable.New, &after); err != nil {
		t.Fatalf("new snapshot: %v", err)
	}
	if before.Status != "active" || after.Status != "disabled" {
		t.Errorf("expected active -> disabled, got %s -> %s", before.Status, after.Status)
	}
	if entries[2].Old != nil {
		t.Errorf("expected empty old snapshot on create, got %s", entries[2].Old)
	}
}

func TestManager_DeleteRefusedWhileReferenced(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, 0)
	if _, err := m.Create(ctx, injectionGuardrail("g"), "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SetOverride(ctx, guardrail.Override{Function: "summarize", GuardrailID: "g", Enabled: false}, "alice"); err != nil {
		t.Fatal(err)
	}

	if err := m.Delete(ctx, "g", "alice"); !errors.Is(err, guardrail.ErrReferenced) {
		t.Fatalf("expected ErrReferenced, got %v", err)
	}
	if _, err := m.Get(ctx, "g"); err != nil {
		t.Errorf("expected definition to survive, got %v", err)
	}

	if err := m.DeleteOverride(ctx, "summarize", "g", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, "g", "alice"); err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
	if _, err := m.Get(ctx, "g"); !errors.Is(err, guardrail.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestManager_SetOverrideRequiresGuardrail(t *testing.T) {
	m := newManager(t, 0)
	_, err := m.SetOverride(context.Background(), guardrail.Override{Function: "f", GuardrailID: "ghost", Enabled: true}, "alice")
	if !errors.Is(err, guardrail.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := m.DeleteOverride(context.Background(), "f", "ghost", "alice"); !errors.Is(err, guardrail.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_ResolveEffective(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, time.Minute)

	global := injectionGuardrail("global")
	scoped := injectionGuardrail("scoped")
	scoped.Scope = guardrail.ScopeFunction
	scoped.Functions = []string{"extract_iocs"}
	slackOnly := injectionGuardrail("slack-only")
	slackOnly.Platforms = []string{"slack"}
	for _, d := range []guardrail.Definition{global, scoped, slackOnly} {
		if _, err := m.Create(ctx, d, "alice"); err != nil {
			t.Fatalf("create %s: %v", d.ID, err)
		}
	}

	tests := []struct {
		function string
		platform string
		want     []string
	}{
		{"summarize", "web", []string{"global"}},
		{"extract_iocs", "web", []string{"global", "scoped"}},
		{"extract_iocs", "slack", []string{"global", "scoped", "slack-only"}},
	}
	for _, tt := range tests {
		got, err := m.ResolveEffective(ctx, tt.function, tt.platform)
		if err != nil {
			t.Fatal(err)
		}
		if !sameIDs(got, tt.want) {
			t.Errorf("%s/%s: expected %v, got %v", tt.function, tt.platform, tt.want, idsOf(got))
		}
	}

	// A disabling override must win over the cached global set.
	if _, err := m.SetOverride(ctx, guardrail.Override{Function: "summarize", GuardrailID: "global", Enabled: false}, "alice"); err != nil {
		t.Fatal(err)
	}
	got, err := m.ResolveEffective(ctx, "summarize", "web")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected disabling override to exclude global, got %v", idsOf(got))
	}

	got, _ = m.ResolveEffective(ctx, "extract_iocs", "web")
	if !sameIDs(got, []string{"global", "scoped"}) {
		t.Errorf("expected other functions unaffected, got %v", idsOf(got))
	}

	if _, err := m.Disable(ctx, "scoped", "alice"); err != nil {
		t.Fatal(err)
	}
	got, _ = m.ResolveEffective(ctx, "extract_iocs", "web")
	if !sameIDs(got, []string{"global"}) {
		t.Errorf("expected disabled definition removed after cache purge, got %v", idsOf(got))
	}
}

func TestManager_Seed(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, 0)
	defs := guardrail.DefaultDefinitions(catalog.Default())

	n, err := m.Seed(ctx, defs, "system")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != len(defs) {
		t.Errorf("expected %d created, got %d", len(defs), n)
	}
	n, err = m.Seed(ctx, defs, "system")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected reseed to create nothing, got %d", n)
	}
	all, _ := m.List(ctx)
	if len(all) != len(defs) {
		t.Errorf("expected %d definitions, got %d", len(defs), len(all))
	}
}

func idsOf(defs []guardrail.Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.ID
	}
	return out
}

func sameIDs(defs []guardrail.Definition, want []string) bool {
	got := idsOf(defs)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
