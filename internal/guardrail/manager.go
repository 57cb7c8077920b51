package guardrail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/labhacker007/Joti-sub001/internal/catalog"
)

const resolveCacheSize = 1024

// Manager is the guardrail configuration service. Writes go through the
// repository with their audit entry; reads of the effective set are cached.
type Manager struct {
	repo    Repository
	catalog *catalog.Catalog
	log     *zap.Logger
	now     func() time.Time

	// cacheMu orders cache fills against purges so a fill that started
	// before a write is dropped.
	cacheMu sync.Mutex
	gen     uint64
	cache   *expirable.LRU[string, []Definition]
}

// NewManager wires a manager. cacheTTL <= 0 disables the resolve cache.
func NewManager(repo Repository, cat *catalog.Catalog, log *zap.Logger, cacheTTL time.Duration) *Manager {
	if cat == nil {
		cat = catalog.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{repo: repo, catalog: cat, log: log, now: time.Now}
	if cacheTTL > 0 {
		m.cache = expirable.NewLRU[string, []Definition](resolveCacheSize, nil, cacheTTL)
	}
	return m
}

// Create validates and stores a new definition. An empty ID is assigned.
func (m *Manager) Create(ctx context.Context, d Definition, user string) (Definition, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Scope == "" {
		d.Scope = ScopeGlobal
	}
	if d.Status == "" {
		d.Status = StatusActive
	}
	if err := d.Validate(m.catalog); err != nil {
		return Definition{}, err
	}

	if _, err := m.repo.GetDefinition(ctx, d.ID); err == nil {
		return Definition{}, fmt.Errorf("%w: %s", ErrConflict, d.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return Definition{}, fmt.Errorf("failed to check guardrail %s: %w", d.ID, err)
	}

	now := m.now().UTC()
	d.CreatedBy, d.UpdatedBy = user, user
	d.CreatedAt, d.UpdatedAt = now, now
	d.Seq = 0

	audit := m.entry(d.ID, "", AuditCreate, nil, d, user, now)
	if err := m.repo.SaveDefinition(ctx, &d, audit); err != nil {
		return Definition{}, fmt.Errorf("failed to create guardrail %s: %w", d.ID, err)
	}
	m.invalidate()
	m.log.Info("guardrail created", zap.String("id", d.ID), zap.String("category", string(d.Category)), zap.String("user", user))
	return d, nil
}

// Update replaces the mutable fields of an existing definition. Creation
// fields and registration order are kept.
func (m *Manager) Update(ctx context.Context, id string, d Definition, user string) (Definition, error) {
	old, err := m.repo.GetDefinition(ctx, id)
	if err != nil {
		return Definition{}, err
	}
	d.ID = id
	if d.Scope == "" {
		d.Scope = old.Scope
	}
	if d.Status == "" {
		d.Status = old.Status
	}
	d.CreatedBy, d.CreatedAt, d.Seq = old.CreatedBy, old.CreatedAt, old.Seq
	if err := d.Validate(m.catalog); err != nil {
		return Definition{}, err
	}

	now := m.now().UTC()
	d.UpdatedBy, d.UpdatedAt = user, now
	audit := m.entry(id, "", AuditUpdate, old, d, user, now)
	if err := m.repo.SaveDefinition(ctx, &d, audit); err != nil {
		return Definition{}, fmt.Errorf("failed to update guardrail %s: %w", id, err)
	}
	m.invalidate()
	m.log.Info("guardrail updated", zap.String("id", id), zap.String("user", user))
	return d, nil
}

func (m *Manager) Disable(ctx context.Context, id, user string) (Definition, error) {
	return m.setStatus(ctx, id, StatusDisabled, AuditDisable, user)
}

func (m *Manager) Enable(ctx context.Context, id, user string) (Definition, error) {
	return m.setStatus(ctx, id, StatusActive, AuditEnable, user)
}

func (m *Manager) setStatus(ctx context.Context, id string, status Status, action AuditAction, user string) (Definition, error) {
	old, err := m.repo.GetDefinition(ctx, id)
	if err != nil {
		return Definition{}, err
	}
	if old.Status == status {
		return old, nil
	}
	d := old.Clone()
	now := m.now().UTC()
	d.Status, d.UpdatedBy, d.UpdatedAt = status, user, now
	audit := m.entry(id, "", action, old, d, user, now)
	if err := m.repo.SaveDefinition(ctx, &d, audit); err != nil {
		return Definition{}, fmt.Errorf("failed to %s guardrail %s: %w", action, id, err)
	}
	m.invalidate()
	m.log.Info("guardrail status changed", zap.String("id", id), zap.String("status", string(status)), zap.String("user", user))
	return d, nil
}

// Delete hard-deletes a definition. It is refused while any function
// override still references it.
func (m *Manager) Delete(ctx context.Context, id, user string) error {
	old, err := m.repo.GetDefinition(ctx, id)
	if err != nil {
		return err
	}
	n, err := m.repo.CountOverrides(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count overrides for %s: %w", id, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %d override(s) on %s", ErrReferenced, n, id)
	}
	audit := m.entry(id, "", AuditDelete, old, nil, user, m.now().UTC())
	if err := m.repo.DeleteDefinition(ctx, id, audit); err != nil {
		return fmt.Errorf("failed to delete guardrail %s: %w", id, err)
	}
	m.invalidate()
	m.log.Info("guardrail deleted", zap.String("id", id), zap.String("user", user))
	return nil
}

// SetOverride creates or replaces the override for (o.Function, o.GuardrailID).
func (m *Manager) SetOverride(ctx context.Context, o Override, user string) (Override, error) {
	if err := o.Validate(); err != nil {
		return Override{}, err
	}
	if _, err := m.repo.GetDefinition(ctx, o.GuardrailID); err != nil {
		return Override{}, err
	}
	old, found, err := m.findOverride(ctx, o.Function, o.GuardrailID)
	if err != nil {
		return Override{}, err
	}

	now := m.now().UTC()
	o.UpdatedBy, o.UpdatedAt = user, now
	var prev any
	if found {
		prev = old
	}
	audit := m.entry(o.GuardrailID, o.Function, AuditOverrideSet, prev, o, user, now)
	if err := m.repo.SaveOverride(ctx, o, audit); err != nil {
		return Override{}, fmt.Errorf("failed to save override %s/%s: %w", o.Function, o.GuardrailID, err)
	}
	m.invalidate()
	m.log.Info("override set",
		zap.String("function", o.Function),
		zap.String("guardrail", o.GuardrailID),
		zap.Bool("enabled", o.Enabled),
		zap.String("user", user))
	return o, nil
}

func (m *Manager) DeleteOverride(ctx context.Context, function, guardrailID, user string) error {
	old, found, err := m.findOverride(ctx, function, guardrailID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: no override %s/%s", ErrNotFound, function, guardrailID)
	}
	audit := m.entry(guardrailID, function, AuditOverrideDelete, old, nil, user, m.now().UTC())
	if err := m.repo.DeleteOverride(ctx, function, guardrailID, audit); err != nil {
		return fmt.Errorf("failed to delete override %s/%s: %w", function, guardrailID, err)
	}
	m.invalidate()
	m.log.Info("override deleted", zap.String("function", function), zap.String("guardrail", guardrailID), zap.String("user", user))
	return nil
}

func (m *Manager) findOverride(ctx context.Context, function, guardrailID string) (Override, bool, error) {
	list, err := m.repo.ListOverrides(ctx, function)
	if err != nil {
		return Override{}, false, fmt.Errorf("failed to list overrides for %s: %w", function, err)
	}
	for _, o := range list {
		if o.GuardrailID == guardrailID {
			return o, true, nil
		}
	}
	return Override{}, false, nil
}

func (m *Manager) Get(ctx context.Context, id string) (Definition, error) {
	return m.repo.GetDefinition(ctx, id)
}

func (m *Manager) List(ctx context.Context) ([]Definition, error) {
	return m.repo.ListDefinitions(ctx)
}

func (m *Manager) Overrides(ctx context.Context, function string) ([]Override, error) {
	return m.repo.ListOverrides(ctx, function)
}

func (m *Manager) Audit(ctx context.Context, guardrailID string, limit int) ([]AuditEntry, error) {
	return m.repo.ListAudit(ctx, guardrailID, limit)
}

// Seed creates each definition whose id does not exist yet and returns how
// many were created.
func (m *Manager) Seed(ctx context.Context, defs []Definition, user string) (int, error) {
	created := 0
	for _, d := range defs {
		if d.ID != "" {
			if _, err := m.repo.GetDefinition(ctx, d.ID); err == nil {
				continue
			} else if !errors.Is(err, ErrNotFound) {
				return created, err
			}
		}
		if _, err := m.Create(ctx, d, user); err != nil {
			return created, fmt.Errorf("failed to seed %s: %w", d.ID, err)
		}
		created++
	}
	if created > 0 {
		m.log.Info("guardrails seeded", zap.Int("created", created), zap.Int("total", len(defs)))
	}
	return created, nil
}

// ResolveEffective returns the guardrails that apply to one function and
// platform, ordered by registration.
func (m *Manager) ResolveEffective(ctx context.Context, function, platform string) ([]Definition, error) {
	key := function + "\x00" + platform
	m.cacheMu.Lock()
	gen := m.gen
	if m.cache != nil {
		if cached, ok := m.cache.Get(key); ok {
			m.cacheMu.Unlock()
			return append([]Definition(nil), cached...), nil
		}
	}
	m.cacheMu.Unlock()

	active, err := m.repo.ListActive(ctx, function, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to list active guardrails: %w", err)
	}
	overrides, err := m.repo.ListOverrides(ctx, function)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides for %s: %w", function, err)
	}
	out := Resolve(active, overrides, function, platform)

	m.cacheMu.Lock()
	if m.cache != nil && m.gen == gen {
		m.cache.Add(key, out)
	}
	m.cacheMu.Unlock()
	return append([]Definition(nil), out...), nil
}

func (m *Manager) invalidate() {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.gen++
	if m.cache != nil {
		m.cache.Purge()
	}
}

func (m *Manager) entry(guardrailID, function string, action AuditAction, old, next any, user string, at time.Time) AuditEntry {
	return AuditEntry{
		ID:          uuid.NewString(),
		GuardrailID: guardrailID,
		Function:    function,
		Action:      action,
		Old:         snapshot(old),
		New:         snapshot(next),
		User:        user,
		Timestamp:   at,
	}
}

func snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
