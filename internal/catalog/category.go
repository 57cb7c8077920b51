package catalog

import (
	"fmt"
	"strings"
)

// Category is one of the attack families the catalog covers.
type Category string

const (
	CategoryPromptInjection       Category = "prompt-injection"
	CategoryJailbreak             Category = "jailbreak"
	CategoryDataExtraction        Category = "data-extraction"
	CategoryHallucination         Category = "hallucination"
	CategoryTokenSmuggling        Category = "token-smuggling"
	CategoryEncoding              Category = "encoding"
	CategoryContextOverflow       Category = "context-overflow"
	CategoryOutputManipulation    Category = "output-manipulation"
	CategoryChainOfThoughtExploit Category = "chain-of-thought-exploit"
	CategoryMultiTurnManipulation Category = "multi-turn-manipulation"
	CategoryPayloadEmbedding      Category = "payload-embedding"
)

var categoryInfo = map[Category]struct {
	display     string
	description string
}{
	CategoryPromptInjection:       {"Prompt Injection", "Instructions that try to override the system prompt or operator intent"},
	CategoryJailbreak:             {"Jailbreak", "Role-play or persona attacks that try to remove safety constraints"},
	CategoryDataExtraction:        {"Data Extraction", "Output that leaks secrets, personal data or the system prompt"},
	CategoryHallucination:         {"Hallucination", "Fabricated identifiers, citations or unverifiable claims in output"},
	CategoryTokenSmuggling:        {"Token Smuggling", "Invisible or confusable characters that hide content from reviewers"},
	CategoryEncoding:              {"Encoding", "Base64, hex or other encodings used to hide instructions"},
	CategoryContextOverflow:       {"Context Overflow", "Oversized or repetitive input meant to push instructions out of context"},
	CategoryOutputManipulation:    {"Output Manipulation", "Markup, scripts or links in output that act on the reader"},
	CategoryChainOfThoughtExploit: {"Chain-of-Thought Exploit", "Requests that abuse or expose the model's hidden reasoning"},
	CategoryMultiTurnManipulation: {"Multi-Turn Manipulation", "Appeals to fabricated prior agreements across conversation turns"},
	CategoryPayloadEmbedding:      {"Payload Embedding", "Instructions hidden inside documents, comments or data URIs"},
}

// AllCategories returns every category in a stable order.
func AllCategories() []Category {
	return []Category{
		CategoryPromptInjection,
		CategoryJailbreak,
		CategoryDataExtraction,
		CategoryHallucination,
		CategoryTokenSmuggling,
		CategoryEncoding,
		CategoryContextOverflow,
		CategoryOutputManipulation,
		CategoryChainOfThoughtExploit,
		CategoryMultiTurnManipulation,
		CategoryPayloadEmbedding,
	}
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	_, ok := categoryInfo[c]
	return ok
}

func (c Category) String() string { return string(c) }

// DisplayName returns a human-readable name.
func (c Category) DisplayName() string {
	if info, ok := categoryInfo[c]; ok {
		return info.display
	}
	return string(c)
}

// Description returns a one-line description of the category.
func (c Category) Description() string {
	return categoryInfo[c].description
}

// ParseCategory accepts the canonical form plus underscores and any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown attack category %q", s)
	}
	return c, nil
}
