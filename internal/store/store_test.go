package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labhacker007/Joti-sub001/internal/catalog"
	"github.com/labhacker007/Joti-sub001/internal/duplicate"
	"github.com/labhacker007/Joti-sub001/internal/guardrail"
)

type repository interface {
	guardrail.Repository
	SaveArticle(ctx context.Context, a *duplicate.Article) error
	RecentArticles(ctx context.Context, since time.Time) ([]duplicate.Article, error)
}

func backends(t *testing.T) map[string]repository {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "joti.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return map[string]repository{
		"memory": NewMemory(),
		"sqlite": db,
	}
}

func sampleDef(id string) guardrail.Definition {
	return guardrail.Definition{
		ID:         id,
		Name:       "Guardrail " + id,
		Category:   catalog.CategoryPromptInjection,
		Severity:   guardrail.SeverityHigh,
		Scope:      guardrail.ScopeGlobal,
		Validation: guardrail.DetectorValidation{Detector: "prompt-injection"},
		Config:     map[string]any{"threshold": float64(3)},
		Action:     guardrail.ActionReject,
		Status:     guardrail.StatusActive,
		CreatedBy:  "alice",
		UpdatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

var auditSeq atomic.Int64

func audit(id string, action guardrail.AuditAction) guardrail.AuditEntry {
	e := auditWithID(id, action, "")
	e.ID = fmt.Sprintf("%s-%s-%d", id, action, auditSeq.Add(1))
	return e
}

func auditWithID(id string, action guardrail.AuditAction, auditID string) guardrail.AuditEntry {
	return guardrail.AuditEntry{
		ID:          auditID,
		GuardrailID: id,
		Action:      action,
		New:         []byte(`{"id":"` + id + `"}`),
		User:        "alice",
		Timestamp:   time.Now().UTC(),
	}
}

func TestRepository_DefinitionLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a, b := sampleDef("a"), sampleDef("b")
			if err := repo.SaveDefinition(ctx, &a, audit("a", guardrail.AuditCreate)); err != nil {
				t.Fatalf("save a: %v", err)
			}
			if err := repo.SaveDefinition(ctx, &b, audit("b", guardrail.AuditCreate)); err != nil {
				t.Fatalf("save b: %v", err)
			}
			if a.Seq == 0 || b.Seq <= a.Seq {
				t.Errorf("expected increasing seq, got a=%d b=%d", a.Seq, b.Seq)
			}

			got, err := repo.GetDefinition(ctx, "a")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Name != a.Name || got.Seq != a.Seq {
				t.Errorf("unexpected definition %+v", got)
			}
			if _, ok := got.Validation.(guardrail.DetectorValidation); !ok {
				t.Errorf("expected detector validation, got %T", got.Validation)
			}

			seq := a.Seq
			a.Name = "renamed"
			a.Status = guardrail.StatusDisabled
			if err := repo.SaveDefinition(ctx, &a, audit("a", guardrail.AuditUpdate)); err != nil {
				t.Fatalf("update: %v", err)
			}
			if a.Seq != seq {
				t.Errorf("expected seq kept on update, got %d want %d", a.Seq, seq)
			}

			all, _ := repo.ListDefinitions(ctx)
			if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
				t.Errorf("expected [a b] in seq order, got %d items", len(all))
			}

			active, _ := repo.ListActive(ctx, "summarize", "")
			if len(active) != 1 || active[0].ID != "b" {
				t.Errorf("expected only b active, got %d items", len(active))
			}

			if _, err := repo.GetDefinition(ctx, "missing"); !errors.Is(err, guardrail.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestRepository_OverridesAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			d := sampleDef("g")
			if err := repo.SaveDefinition(ctx, &d, audit("g", guardrail.AuditCreate)); err != nil {
				t.Fatal(err)
			}

			o := guardrail.Override{
				Function:    "summarize",
				GuardrailID: "g",
				Enabled:     false,
				Severity:    guardrail.SeverityLow,
				Config:      map[string]any{"k": "v"},
				UpdatedBy:   "bob",
				UpdatedAt:   time.Now().UTC(),
			}
			if err := repo.SaveOverride(ctx, o, audit("g", guardrail.AuditOverrideSet)); err != nil {
				t.Fatalf("save override: %v", err)
			}
			o.Enabled = true
			if err := repo.SaveOverride(ctx, o, audit("g", guardrail.AuditOverrideSet)); err != nil {
				t.Fatalf("upsert override: %v", err)
			}

			list, err := repo.ListOverrides(ctx, "summarize")
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 1 || !list[0].Enabled || list[0].Config["k"] != "v" || list[0].Severity != guardrail.SeverityLow {
				t.Errorf("unexpected overrides %+v", list)
			}
			if other, _ := repo.ListOverrides(ctx, "other"); len(other) != 0 {
				t.Errorf("expected no overrides for other, got %d", len(other))
			}

			if n, _ := repo.CountOverrides(ctx, "g"); n != 1 {
				t.Errorf("expected 1 override, got %d", n)
			}
			if err := repo.DeleteDefinition(ctx, "g", audit("g", guardrail.AuditDelete)); !errors.Is(err, guardrail.ErrReferenced) {
				t.Errorf("expected ErrReferenced, got %v", err)
			}

			if err := repo.SaveOverride(ctx, guardrail.Override{Function: "f", GuardrailID: "nope"}, audit("nope", guardrail.AuditOverrideSet)); !errors.Is(err, guardrail.ErrNotFound) {
				t.Errorf("expected ErrNotFound for unknown guardrail, got %v", err)
			}

			if err := repo.DeleteOverride(ctx, "summarize", "g", audit("g", guardrail.AuditOverrideDelete)); err != nil {
				t.Fatalf("delete override: %v", err)
			}
			if err := repo.DeleteOverride(ctx, "summarize", "g", audit("g", guardrail.AuditOverrideDelete)); !errors.Is(err, guardrail.ErrNotFound) {
				t.Errorf("expected ErrNotFound on second delete, got %v", err)
			}
			if err := repo.DeleteDefinition(ctx, "g", audit("g", guardrail.AuditDelete)); err != nil {
				t.Fatalf("delete: %v", err)
			}

			entries, err := repo.ListAudit(ctx, "g", 0)
			if err != nil {
				t.Fatal(err)
			}
			wantOrder := []guardrail.AuditAction{
				guardrail.AuditDelete,
				guardrail.AuditOverrideDelete,
				guardrail.AuditOverrideSet,
				guardrail.AuditOverrideSet,
				guardrail.AuditCreate,
			}
			if len(entries) != len(wantOrder) {
				t.Fatalf("expected %d audit entries, got %d", len(wantOrder), len(entries))
			}
			for i, want := range wantOrder {
				if entries[i].Action != want {
					t.Errorf("entry %d: expected %s, got %s", i, want, entries[i].Action)
				}
			}
			if limited, _ := repo.ListAudit(ctx, "g", 2); len(limited) != 2 {
				t.Errorf("expected limit to apply, got %d", len(limited))
			}
		})
	}
}

func TestRepository_FailedAuditLeavesNoWrite(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := sampleDef("a")
			if err := repo.SaveDefinition(ctx, &a, auditWithID("a", guardrail.AuditCreate, "taken")); err != nil {
				t.Fatalf("save a: %v", err)
			}

			b := sampleDef("b")
			if err := repo.SaveDefinition(ctx, &b, auditWithID("b", guardrail.AuditCreate, "taken")); err == nil {
				t.Fatal("expected save with a reused audit id to fail")
			}
			if _, err := repo.GetDefinition(ctx, "b"); !errors.Is(err, guardrail.ErrNotFound) {
				t.Errorf("expected b to be absent, got %v", err)
			}

			renamed := a
			renamed.Name = "renamed"
			if err := repo.SaveDefinition(ctx, &renamed, auditWithID("a", guardrail.AuditUpdate, "taken")); err == nil {
				t.Fatal("expected update with a reused audit id to fail")
			}
			if got, _ := repo.GetDefinition(ctx, "a"); got.Name != a.Name {
				t.Errorf("expected name %q kept, got %q", a.Name, got.Name)
			}

			o := guardrail.Override{Function: "summarize", GuardrailID: "a", UpdatedAt: time.Now().UTC()}
			if err := repo.SaveOverride(ctx, o, auditWithID("a", guardrail.AuditOverrideSet, "taken")); err == nil {
				t.Fatal("expected override with a reused audit id to fail")
			}
			if list, _ := repo.ListOverrides(ctx, "summarize"); len(list) != 0 {
				t.Errorf("expected no overrides, got %+v", list)
			}

			if err := repo.DeleteDefinition(ctx, "a", auditWithID("a", guardrail.AuditDelete, "taken")); err == nil {
				t.Fatal("expected delete with a reused audit id to fail")
			}
			if _, err := repo.GetDefinition(ctx, "a"); err != nil {
				t.Errorf("expected a to survive, got %v", err)
			}

			entries, err := repo.ListAudit(ctx, "", 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 1 || entries[0].GuardrailID != "a" || entries[0].Action != guardrail.AuditCreate {
				t.Errorf("expected only the original create entry, got %+v", entries)
			}
		})
	}
}

func TestRepository_RecentArticles(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	old := now.Add(-10 * 24 * time.Hour)
	recentPub := now.Add(-time.Hour)

	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			fresh := &duplicate.Article{Title: "fresh", URL: "https://a.example/1", CreatedAt: now}
			stale := &duplicate.Article{Title: "stale", CreatedAt: old}
			backfilled := &duplicate.Article{Title: "backfilled", CreatedAt: old, PublishedAt: &recentPub}
			for _, a := range []*duplicate.Article{fresh, stale, backfilled} {
				if err := repo.SaveArticle(ctx, a); err != nil {
					t.Fatalf("save %s: %v", a.Title, err)
				}
				if a.ID == "" {
					t.Errorf("expected id assigned for %s", a.Title)
				}
			}

			got, err := repo.RecentArticles(ctx, now.Add(-3*24*time.Hour))
			if err != nil {
				t.Fatal(err)
			}
			titles := make(map[string]bool)
			for _, a := range got {
				titles[a.Title] = true
			}
			if len(got) != 2 || !titles["fresh"] || !titles["backfilled"] {
				t.Errorf("expected fresh and backfilled, got %v", titles)
			}
		})
	}
}
