// Package store holds the persistence implementations behind the guardrail
// repository and the duplicate detector's article source.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/labhacker007/Joti-sub001/internal/duplicate"
	"github.com/labhacker007/Joti-sub001/internal/guardrail"
)

var errAuditExists = errors.New("audit entry id already exists")

// Memory is an in-process repository. Each mutation and its audit entry are
// applied under one lock, and the audit entry is checked before anything is
// written.
type Memory struct {
	mu        sync.RWMutex
	seq       int64
	defs      map[string]guardrail.Definition
	overrides map[overrideKey]guardrail.Override
	audit     []guardrail.AuditEntry
	auditIDs  map[string]struct{}
	articles  []duplicate.Article
}

type overrideKey struct {
	function    string
	guardrailID string
}

func NewMemory() *Memory {
	return &Memory{
		defs:      make(map[string]guardrail.Definition),
		overrides: make(map[overrideKey]guardrail.Override),
		auditIDs:  make(map[string]struct{}),
	}
}

// prepareAuditLocked assigns an id when e has none and fails if the id is
// already recorded.
func (m *Memory) prepareAuditLocked(e *guardrail.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if _, ok := m.auditIDs[e.ID]; ok {
		return fmt.Errorf("failed to write audit entry: %w", errAuditExists)
	}
	return nil
}

func (m *Memory) appendAuditLocked(e guardrail.AuditEntry) {
	m.auditIDs[e.ID] = struct{}{}
	m.audit = append(m.audit, e)
}

func (m *Memory) SaveDefinition(ctx context.Context, d *guardrail.Definition, audit guardrail.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.prepareAuditLocked(&audit); err != nil {
		return err
	}

	if old, ok := m.defs[d.ID]; ok {
		d.Seq = old.Seq
	} else {
		m.seq++
		d.Seq = m.seq
	}
	m.defs[d.ID] = d.Clone()
	m.appendAuditLocked(audit)
	return nil
}

func (m *Memory) GetDefinition(ctx context.Context, id string) (guardrail.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.defs[id]
	if !ok {
		return guardrail.Definition{}, guardrail.ErrNotFound
	}
	return d.Clone(), nil
}

func (m *Memory) ListDefinitions(ctx context.Context) ([]guardrail.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedLocked(func(guardrail.Definition) bool { return true }), nil
}

func (m *Memory) ListActive(ctx context.Context, function, platform string) ([]guardrail.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedLocked(func(d guardrail.Definition) bool {
		return guardrail.Applies(d, function, platform)
	}), nil
}

func (m *Memory) sortedLocked(keep func(guardrail.Definition) bool) []guardrail.Definition {
	var out []guardrail.Definition
	for _, d := range m.defs {
		if keep(d) {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (m *Memory) DeleteDefinition(ctx context.Context, id string, audit guardrail.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.defs[id]; !ok {
		return guardrail.ErrNotFound
	}
	for k := range m.overrides {
		if k.guardrailID == id {
			return guardrail.ErrReferenced
		}
	}
	if err := m.prepareAuditLocked(&audit); err != nil {
		return err
	}
	delete(m.defs, id)
	m.appendAuditLocked(audit)
	return nil
}

func (m *Memory) SaveOverride(ctx context.Context, o guardrail.Override, audit guardrail.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.defs[o.GuardrailID]; !ok {
		return guardrail.ErrNotFound
	}
	if err := m.prepareAuditLocked(&audit); err != nil {
		return err
	}
	o.Config = copyConfig(o.Config)
	m.overrides[overrideKey{o.Function, o.GuardrailID}] = o
	m.appendAuditLocked(audit)
	return nil
}

func (m *Memory) DeleteOverride(ctx context.Context, function, guardrailID string, audit guardrail.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := overrideKey{function, guardrailID}
	if _, ok := m.overrides[key]; !ok {
		return guardrail.ErrNotFound
	}
	if err := m.prepareAuditLocked(&audit); err != nil {
		return err
	}
	delete(m.overrides, key)
	m.appendAuditLocked(audit)
	return nil
}

func (m *Memory) ListOverrides(ctx context.Context, function string) ([]guardrail.Override, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []guardrail.Override
	for k, o := range m.overrides {
		if function == "" || k.function == function {
			o.Config = copyConfig(o.Config)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Function != out[j].Function {
			return out[i].Function < out[j].Function
		}
		return out[i].GuardrailID < out[j].GuardrailID
	})
	return out, nil
}

func (m *Memory) CountOverrides(ctx context.Context, guardrailID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k := range m.overrides {
		if k.guardrailID == guardrailID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListAudit(ctx context.Context, guardrailID string, limit int) ([]guardrail.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []guardrail.AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if guardrailID != "" && e.GuardrailID != guardrailID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// SaveArticle stores an ingested article, assigning an id and creation time
// when missing.
func (m *Memory) SaveArticle(ctx context.Context, a *duplicate.Article) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles = append(m.articles, *a)
	return nil
}

func (m *Memory) RecentArticles(ctx context.Context, since time.Time) ([]duplicate.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []duplicate.Article
	for _, a := range m.articles {
		if !a.CreatedAt.Before(since) || (a.PublishedAt != nil && !a.PublishedAt.Before(since)) {
			out = append(out, a)
		}
	}
	return out, nil
}

func copyConfig(cfg map[string]any) map[string]any {
	if len(cfg) == 0 {
		return nil
	}
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	return out
}
