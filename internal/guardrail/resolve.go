package guardrail

import (
	"sort"
	"strings"
)

// Applies reports whether an active definition is in scope for the given
// function and platform before overrides are considered.
func Applies(d Definition, function, platform string) bool {
	if d.Status != StatusActive {
		return false
	}
	if !matchesSet(d.Platforms, platform) {
		return false
	}
	switch d.Scope {
	case ScopeGlobal:
		return matchesSet(d.Functions, function)
	case ScopeFunction:
		return function != "" && contains(d.Functions, function)
	default:
		return false
	}
}

// Resolve narrows candidates to the effective set for one function and
// platform. Overrides for the function replace severity and merge config;
// a disabled override removes the guardrail. The result is ordered by Seq.
func Resolve(candidates []Definition, overrides []Override, function, platform string) []Definition {
	byID := make(map[string]Override, len(overrides))
	for _, o := range overrides {
		if o.Function == function {
			byID[o.GuardrailID] = o
		}
	}

	var out []Definition
	for _, d := range candidates {
		if !Applies(d, function, platform) {
			continue
		}
		eff := d.Clone()
		if o, ok := byID[d.ID]; ok {
			if !o.Enabled {
				continue
			}
			if o.Severity != "" {
				eff.Severity = o.Severity
			}
			eff.Config = mergeConfig(d.Config, o.Config)
		}
		out = append(out, eff)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Order sorts definitions for evaluation in ascending severity (low
// first, critical last), then by registration order. The sort is stable.
func Order(defs []Definition) []Definition {
	out := append([]Definition(nil), defs...)
	sort.SliceStable(out, func(i, j int) bool {
		// Rank is 0 for critical, so a higher rank is a lower severity.
		ri, rj := out[i].Severity.Rank(), out[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// mergeConfig returns a new map holding base with override keys written
// over it. Nil is returned when both are empty.
func mergeConfig(base, override map[string]any) map[string]any {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func matchesSet(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	return contains(set, v)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
