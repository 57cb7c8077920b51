package guardrail

import "github.com/labhacker007/Joti-sub001/internal/catalog"

// categoryDirection decides which side of the model call a guardrail runs
// on. Every catalog category has exactly one entry.
var categoryDirection = map[catalog.Category]Direction{
	catalog.CategoryPromptInjection:       DirectionInput,
	catalog.CategoryJailbreak:             DirectionInput,
	catalog.CategoryEncoding:              DirectionInput,
	catalog.CategoryContextOverflow:       DirectionInput,
	catalog.CategoryTokenSmuggling:        DirectionInput,
	catalog.CategoryChainOfThoughtExploit: DirectionInput,
	catalog.CategoryMultiTurnManipulation: DirectionInput,
	catalog.CategoryPayloadEmbedding:      DirectionInput,

	catalog.CategoryHallucination:      DirectionOutput,
	catalog.CategoryOutputManipulation: DirectionOutput,
	catalog.CategoryDataExtraction:     DirectionOutput,
}

// DirectionOf returns the direction for a category. Unknown categories
// report false and must be rejected as a configuration error.
func DirectionOf(c catalog.Category) (Direction, bool) {
	d, ok := categoryDirection[c]
	return d, ok
}

// Partition splits definitions by direction, keeping their order.
// Definitions with an unknown category are returned separately.
func Partition(defs []Definition) (input, output, unknown []Definition) {
	for _, d := range defs {
		switch dir, _ := DirectionOf(d.Category); dir {
		case DirectionInput:
			input = append(input, d)
		case DirectionOutput:
			output = append(output, d)
		default:
			unknown = append(unknown, d)
		}
	}
	return input, output, unknown
}
