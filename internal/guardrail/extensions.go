package guardrail

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/kaptinlin/jsonrepair"
)

// ExtensionInput is what a custom validation sees.
type ExtensionInput struct {
	Payload   string
	Direction Direction
	// Config is the effective config after overrides.
	Config map[string]any
}

// ExtensionResult is returned by a custom validation. FixedOutput is only
// used when the guardrail action is fix.
type ExtensionResult struct {
	Passed      bool
	Message     string
	FixedOutput *string
}

// Extension implements a custom validation. A returned error fails the
// guardrail closed.
type Extension func(in ExtensionInput) (ExtensionResult, error)

// Extensions is a registry of custom validations keyed by ref.
type Extensions struct {
	mu  sync.RWMutex
	ext map[string]Extension
}

// NewExtensions returns a registry holding the built-in extensions.
func NewExtensions() *Extensions {
	e := &Extensions{ext: make(map[string]Extension)}
	e.Register("max-length", maxLength)
	e.Register("json-output", jsonOutput)
	return e
}

// Register adds or replaces an extension.
func (e *Extensions) Register(ref string, fn Extension) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ext[ref] = fn
}

func (e *Extensions) Lookup(ref string) (Extension, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.ext[ref]
	return fn, ok
}

// Names returns the registered refs, sorted.
func (e *Extensions) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.ext))
	for n := range e.ext {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// maxLength fails payloads longer than config max_chars runes. The fix
// truncates.
func maxLength(in ExtensionInput) (ExtensionResult, error) {
	limit, ok := configInt(in.Config, "max_chars")
	if !ok || limit <= 0 {
		return ExtensionResult{}, fmt.Errorf("max-length requires a positive max_chars")
	}
	runes := []rune(in.Payload)
	if len(runes) <= limit {
		return ExtensionResult{Passed: true}, nil
	}
	fixed := string(runes[:limit])
	return ExtensionResult{
		Message:     fmt.Sprintf("payload exceeds %d characters", limit),
		FixedOutput: &fixed,
	}, nil
}

// jsonOutput fails payloads that are not valid JSON. The fix repairs them.
func jsonOutput(in ExtensionInput) (ExtensionResult, error) {
	if json.Valid([]byte(in.Payload)) {
		return ExtensionResult{Passed: true}, nil
	}
	res := ExtensionResult{Message: "output is not valid JSON"}
	if repaired, err := jsonrepair.JSONRepair(in.Payload); err == nil && json.Valid([]byte(repaired)) {
		res.FixedOutput = &repaired
	}
	return res, nil
}

// configInt reads an integer from config. JSON decoding yields float64 and
// YAML yields int, so both are accepted.
func configInt(cfg map[string]any, key string) (int, bool) {
	switch v := cfg[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func configStrings(cfg map[string]any, key string) []string {
	switch v := cfg[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
