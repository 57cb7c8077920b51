package catalog

// Severity ranks the impact of an attack pattern.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities with critical first: critical=0 ... low=3.
// Unknown severities sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}

func (s Severity) IsValid() bool { return s.Rank() < 4 }

// Action is what happens when a guardrail fails.
type Action string

const (
	ActionReject Action = "reject"
	ActionWarn   Action = "warn"
	ActionFix    Action = "fix"
	ActionLog    Action = "log"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionReject, ActionWarn, ActionFix, ActionLog:
		return true
	}
	return false
}

// Blocking reports whether the action stops the request.
func (a Action) Blocking() bool { return a == ActionReject }

// DetectFunc is a pure detection rule. Evidence is a short excerpt or
// description of what matched; it is empty when matched is false.
type DetectFunc func(text string) (matched bool, evidence string)

// FixFunc returns a sanitized version of text with the detected content removed.
type FixFunc func(text string) string

// Pattern is an immutable attack pattern definition.
type Pattern struct {
	ID            string
	Category      Category
	Severity      Severity
	DefaultAction Action
	Description   string
	Detect        DetectFunc
	// Fix is nil when the pattern cannot be repaired automatically.
	Fix FixFunc
}
