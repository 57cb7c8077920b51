package guardrail

import (
	"github.com/labhacker007/Joti-sub001/internal/catalog"
)

// BuiltinPrefix marks definitions created from the attack catalog.
const BuiltinPrefix = "builtin-"

// DefaultDefinitions returns one global detector guardrail per catalog
// pattern, carrying that pattern's severity and default action. Fix is
// downgraded to reject on input categories.
func DefaultDefinitions(cat *catalog.Catalog) []Definition {
	if cat == nil {
		cat = catalog.Default()
	}
	var defs []Definition
	for _, c := range cat.Categories() {
		for _, p := range cat.Lookup(c) {
			action := p.DefaultAction
			if dir, _ := DirectionOf(c); dir == DirectionInput && action == ActionFix {
				action = ActionReject
			}
			defs = append(defs, Definition{
				ID:          BuiltinPrefix + p.ID,
				Name:        c.DisplayName() + ": " + p.Description,
				Description: c.Description(),
				Category:    c,
				Severity:    p.Severity,
				Scope:       ScopeGlobal,
				Validation:  DetectorValidation{Detector: p.ID},
				Action:      action,
				Status:      StatusActive,
			})
		}
	}
	return defs
}
