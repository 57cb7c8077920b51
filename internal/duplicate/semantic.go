package duplicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Verdict is a model's opinion about one input/candidate pair.
type Verdict struct {
	Duplicate  bool    `json:"is_duplicate"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// SemanticChecker gives a secondary opinion on a near miss.
type SemanticChecker interface {
	Compare(ctx context.Context, in Input, candidate Article) (Verdict, error)
}

// InvokeFunc sends one prompt to a model and returns its text.
type InvokeFunc func(ctx context.Context, systemPrompt, userPrompt string) (text, model string, err error)

const semanticSystemPrompt = `You compare two threat intelligence articles and decide whether they report the same event.
Answer with a single JSON object: {"is_duplicate": true|false, "confidence": 0.0-1.0, "reasoning": "<one sentence>"}.`

const semanticExcerpt = 1500

// ModelChecker asks a GenAI model through invoke.
type ModelChecker struct {
	invoke InvokeFunc
}

func NewModelChecker(invoke InvokeFunc) *ModelChecker {
	return &ModelChecker{invoke: invoke}
}

func (m *ModelChecker) Compare(ctx context.Context, in Input, candidate Article) (Verdict, error) {
	var sb strings.Builder
	sb.WriteString("ARTICLE A\nTitle: ")
	sb.WriteString(in.Title)
	sb.WriteString("\nBody: ")
	sb.WriteString(excerpt(in.body()))
	sb.WriteString("\n\nARTICLE B\nTitle: ")
	sb.WriteString(candidate.Title)
	sb.WriteString("\nBody: ")
	sb.WriteString(excerpt(candidate.body()))

	text, _, err := m.invoke(ctx, semanticSystemPrompt, sb.String())
	if err != nil {
		return Verdict{}, fmt.Errorf("semantic check: %w", err)
	}
	return ParseVerdict(text)
}

// ParseVerdict extracts the JSON verdict from model output, repairing
// truncated or loosely formatted JSON.
func ParseVerdict(text string) (Verdict, error) {
	raw := strings.TrimSpace(text)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	if i := strings.Index(raw, "{"); i >= 0 {
		raw = raw[i:]
	}
	if raw == "" {
		return Verdict{}, errors.New("empty semantic verdict")
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return Verdict{}, fmt.Errorf("repair semantic verdict: %w", err)
	}
	var v Verdict
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return Verdict{}, fmt.Errorf("decode semantic verdict: %w", err)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return Verdict{}, fmt.Errorf("semantic confidence %v out of range", v.Confidence)
	}
	return v, nil
}

func excerpt(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > semanticExcerpt {
		return string(r[:semanticExcerpt])
	}
	return string(r)
}
