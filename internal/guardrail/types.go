// Package guardrail holds the mutable guardrail configuration: definitions,
// per-function overrides, their audit trail, effective-set resolution and the
// evaluator that runs one guardrail against one payload.
package guardrail

import (
	"encoding/json"
	"time"

	"github.com/labhacker007/Joti-sub001/internal/catalog"
)

// Severity and Action are shared with the attack catalog so catalog
// defaults flow into definitions without conversion.
type (
	Severity = catalog.Severity
	Action   = catalog.Action
)

const (
	SeverityLow      = catalog.SeverityLow
	SeverityMedium   = catalog.SeverityMedium
	SeverityHigh     = catalog.SeverityHigh
	SeverityCritical = catalog.SeverityCritical

	ActionReject = catalog.ActionReject
	ActionWarn   = catalog.ActionWarn
	ActionFix    = catalog.ActionFix
	ActionLog    = catalog.ActionLog
)

// DefaultMaxRetries applies when a definition leaves MaxRetries at zero.
const DefaultMaxRetries = 2

type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopeFunction Scope = "function"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Direction says whether a guardrail runs on the prompt or on the model output.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Definition is a persisted guardrail.
type Definition struct {
	ID          string
	Name        string
	Description string
	Category    catalog.Category
	Severity    Severity
	Scope       Scope
	// Functions and Platforms narrow where the guardrail applies. Empty means all.
	Functions  []string
	Platforms  []string
	Validation Validation
	// Config is free-form and merged key by key by function overrides.
	Config     map[string]any
	Action     Action
	MaxRetries int
	Status     Status
	CreatedBy  string
	UpdatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// Seq is the registration order, assigned by the repository on first save.
	Seq int64
}

// EffectiveMaxRetries returns MaxRetries or the default when unset.
func (d Definition) EffectiveMaxRetries() int {
	if d.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return d.MaxRetries
}

// Direction returns the direction implied by the category.
func (d Definition) Direction() Direction {
	dir, _ := DirectionOf(d.Category)
	return dir
}

// Clone returns a copy that shares no slices or maps with d.
func (d Definition) Clone() Definition {
	c := d
	c.Functions = append([]string(nil), d.Functions...)
	c.Platforms = append([]string(nil), d.Platforms...)
	c.Config = mergeConfig(d.Config, nil)
	if rv, ok := d.Validation.(BlocklistValidation); ok {
		rv.Terms = append([]string(nil), rv.Terms...)
		c.Validation = rv
	}
	return c
}

type definitionJSON struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Category    catalog.Category `json:"category"`
	Severity    Severity         `json:"severity"`
	Scope       Scope            `json:"scope"`
	Functions   []string         `json:"functions,omitempty"`
	Platforms   []string         `json:"platforms,omitempty"`
	Validation  ValidationSpec   `json:"validation"`
	Config      map[string]any   `json:"config,omitempty"`
	Action      Action           `json:"action"`
	MaxRetries  int              `json:"max_retries,omitempty"`
	Status      Status           `json:"status"`
	CreatedBy   string           `json:"created_by,omitempty"`
	UpdatedBy   string           `json:"updated_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Seq         int64            `json:"seq"`
}

func (d Definition) MarshalJSON() ([]byte, error) {
	return json.Marshal(definitionJSON{
		ID: d.ID, Name: d.Name, Description: d.Description, Category: d.Category,
		Severity: d.Severity, Scope: d.Scope, Functions: d.Functions, Platforms: d.Platforms,
		Validation: SpecOf(d.Validation), Config: d.Config, Action: d.Action,
		MaxRetries: d.MaxRetries, Status: d.Status, CreatedBy: d.CreatedBy, UpdatedBy: d.UpdatedBy,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt, Seq: d.Seq,
	})
}

// UnmarshalJSON decodes the wire form. A validation spec that does not
// build is reported as a *ValidationError.
func (d *Definition) UnmarshalJSON(data []byte) error {
	var w definitionJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	v, err := w.Validation.Build()
	if err != nil {
		return err
	}
	*d = Definition{
		ID: w.ID, Name: w.Name, Description: w.Description, Category: w.Category,
		Severity: w.Severity, Scope: w.Scope, Functions: w.Functions, Platforms: w.Platforms,
		Validation: v, Config: w.Config, Action: w.Action, MaxRetries: w.MaxRetries,
		Status: w.Status, CreatedBy: w.CreatedBy, UpdatedBy: w.UpdatedBy,
		CreatedAt: w.CreatedAt, UpdatedAt: w.UpdatedAt, Seq: w.Seq,
	}
	return nil
}

// Override narrows or relaxes one guardrail for one GenAI function.
// (Function, GuardrailID) is unique.
type Override struct {
	Function    string         `json:"function"`
	GuardrailID string         `json:"guardrail_id"`
	Enabled     bool           `json:"enabled"`
	Severity    Severity       `json:"severity,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
	UpdatedBy   string         `json:"updated_by,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// AuditAction names the kind of mutation recorded in the audit trail.
type AuditAction string

const (
	AuditCreate         AuditAction = "create"
	AuditUpdate         AuditAction = "update"
	AuditDisable        AuditAction = "disable"
	AuditEnable         AuditAction = "enable"
	AuditDelete         AuditAction = "delete"
	AuditOverrideSet    AuditAction = "override_set"
	AuditOverrideDelete AuditAction = "override_delete"
)

// AuditEntry is written in the same transaction as the mutation it describes.
// Old and New are JSON snapshots; either may be empty.
type AuditEntry struct {
	ID          string          `json:"id"`
	GuardrailID string          `json:"guardrail_id"`
	Function    string          `json:"function,omitempty"`
	Action      AuditAction     `json:"action"`
	Old         json.RawMessage `json:"old,omitempty"`
	New         json.RawMessage `json:"new,omitempty"`
	User        string          `json:"user"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Result is the outcome of evaluating one guardrail against one payload.
type Result struct {
	Passed      bool             `json:"passed"`
	GuardrailID string           `json:"guardrail_id"`
	Category    catalog.Category `json:"category,omitempty"`
	Severity    Severity         `json:"severity,omitempty"`
	Direction   Direction        `json:"direction,omitempty"`
	Action      Action           `json:"action,omitempty"`
	Message     string           `json:"message,omitempty"`
	// Evidence is internal diagnostic detail and may quote the payload.
	Evidence string `json:"-"`
	// FixedOutput is set when the guardrail can repair the payload.
	FixedOutput *string `json:"-"`
}

func pass(def Definition, dir Direction) Result {
	return Result{
		Passed:      true,
		GuardrailID: def.ID,
		Category:    def.Category,
		Severity:    def.Severity,
		Direction:   dir,
		Action:      def.Action,
	}
}

func fail(def Definition, dir Direction, action Action, message, evidence string) Result {
	return Result{
		Passed:      false,
		GuardrailID: def.ID,
		Category:    def.Category,
		Severity:    def.Severity,
		Direction:   dir,
		Action:      action,
		Message:     message,
		Evidence:    evidence,
	}
}
