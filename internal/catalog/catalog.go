// Package catalog is the static registry of GenAI attack patterns.
//
// Patterns are defined once at process start and never mutated. Each pattern
// carries a pure detection rule and, where possible, a fixer that strips the
// offending content so an output guardrail can repair instead of reject.
package catalog

import (
	"fmt"
	"sync"
)

// Catalog indexes patterns by id and category. It is safe for concurrent use
// because it is never written after New returns.
type Catalog struct {
	patterns   []Pattern
	byID       map[string]int
	byCategory map[Category][]int
}

// New validates the pattern table and builds the indexes. Every category must
// be covered by at least one pattern.
func New(patterns []Pattern) (*Catalog, error) {
	c := &Catalog{
		patterns:   make([]Pattern, len(patterns)),
		byID:       make(map[string]int, len(patterns)),
		byCategory: make(map[Category][]int),
	}
	copy(c.patterns, patterns)

	for i, p := range c.patterns {
		if p.ID == "" {
			return nil, fmt.Errorf("pattern %d: empty id", i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("pattern %s: duplicate id", p.ID)
		}
		if !p.Category.IsValid() {
			return nil, fmt.Errorf("pattern %s: unknown category %q", p.ID, p.Category)
		}
		if !p.Severity.IsValid() {
			return nil, fmt.Errorf("pattern %s: unknown severity %q", p.ID, p.Severity)
		}
		if !p.DefaultAction.IsValid() {
			return nil, fmt.Errorf("pattern %s: unknown default action %q", p.ID, p.DefaultAction)
		}
		if p.Detect == nil {
			return nil, fmt.Errorf("pattern %s: missing detection rule", p.ID)
		}
		if p.DefaultAction == ActionFix && p.Fix == nil {
			return nil, fmt.Errorf("pattern %s: default action fix requires a fixer", p.ID)
		}
		c.byID[p.ID] = i
		c.byCategory[p.Category] = append(c.byCategory[p.Category], i)
	}

	for _, cat := range AllCategories() {
		if len(c.byCategory[cat]) == 0 {
			return nil, fmt.Errorf("category %s has no patterns", cat)
		}
	}
	return c, nil
}

// MustNew is New that panics on malformed data.
func MustNew(patterns []Pattern) *Catalog {
	c, err := New(patterns)
	if err != nil {
		panic("catalog: " + err.Error())
	}
	return c
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = MustNew(builtinPatterns())
	})
	return defaultCatalog
}

// All returns every pattern in definition order.
func (c *Catalog) All() []Pattern {
	out := make([]Pattern, len(c.patterns))
	copy(out, c.patterns)
	return out
}

// Lookup returns the patterns of one category in definition order.
func (c *Catalog) Lookup(cat Category) []Pattern {
	idx := c.byCategory[cat]
	out := make([]Pattern, 0, len(idx))
	for _, i := range idx {
		out = append(out, c.patterns[i])
	}
	return out
}

// Get returns a single pattern by id.
func (c *Catalog) Get(id string) (Pattern, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Pattern{}, false
	}
	return c.patterns[i], true
}

// Resolve maps a detector reference to patterns. A reference is either a
// pattern id or a category name; ids win when both exist.
func (c *Catalog) Resolve(ref string) ([]Pattern, bool) {
	if p, ok := c.Get(ref); ok {
		return []Pattern{p}, true
	}
	if cat, err := ParseCategory(ref); err == nil {
		return c.Lookup(cat), true
	}
	return nil, false
}

// Categories returns the categories that have patterns, in canonical order.
func (c *Catalog) Categories() []Category {
	var out []Category
	for _, cat := range AllCategories() {
		if len(c.byCategory[cat]) > 0 {
			out = append(out, cat)
		}
	}
	return out
}
