package guardrail

import "context"

// Repository persists definitions, overrides and their audit trail. Every
// mutating call writes its audit entry in the same atomic unit.
type Repository interface {
	// SaveDefinition inserts or updates a definition. On insert the
	// repository assigns Seq.
	SaveDefinition(ctx context.Context, d *Definition, audit AuditEntry) error
	GetDefinition(ctx context.Context, id string) (Definition, error)
	ListDefinitions(ctx context.Context) ([]Definition, error)
	// ListActive returns active definitions that may apply to the function
	// and platform. Callers still run Resolve over the result.
	ListActive(ctx context.Context, function, platform string) ([]Definition, error)
	DeleteDefinition(ctx context.Context, id string, audit AuditEntry) error

	SaveOverride(ctx context.Context, o Override, audit AuditEntry) error
	DeleteOverride(ctx context.Context, function, guardrailID string, audit AuditEntry) error
	// ListOverrides returns overrides for one function, or all when function is empty.
	ListOverrides(ctx context.Context, function string) ([]Override, error)
	CountOverrides(ctx context.Context, guardrailID string) (int, error)

	// ListAudit returns newest entries first. An empty id lists all.
	ListAudit(ctx context.Context, guardrailID string, limit int) ([]AuditEntry, error)
}
