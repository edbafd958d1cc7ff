package rag

import "strings"

// CombinationStrategy controls how an injection is merged into the user
// message before generation.
type CombinationStrategy string

const (
	CombinationContextual CombinationStrategy = "contextual"
	CombinationInline     CombinationStrategy = "inline"
	CombinationAugmented  CombinationStrategy = "augmented"
)

const (
	inlineWordLimit     = 20
	contextualWordLimit = 100
)

// chooseStrategy picks a combination strategy from the user message's word
// count: short messages take the injection inline, long ones as a context
// block, everything else as an augmented suffix.
func chooseStrategy(content string) CombinationStrategy {
	words := len(strings.Fields(content))
	switch {
	case words < inlineWordLimit:
		return CombinationInline
	case words > contextualWordLimit:
		return CombinationContextual
	default:
		return CombinationAugmented
	}
}

// combine merges injection content into the user message per the strategy.
// Unknown strategies fall back to contextual.
func combine(content, injection string, strategy CombinationStrategy) string {
	switch strategy {
	case CombinationInline:
		return spliceAfterFirstSentence(content, injection)
	case CombinationAugmented:
		return content + "\n\nYou might also be interested in: " + injection
	default:
		return content + "\n\nRelevant context: " + injection
	}
}

// spliceAfterFirstSentence inserts the injection as a sentence directly
// after the message's first sentence boundary. Without a boundary the
// injection is appended.
func spliceAfterFirstSentence(content, injection string) string {
	for _, sep := range []string{". ", "! ", "? "} {
		if idx := strings.Index(content, sep); idx >= 0 {
			cut := idx + len(sep)
			return content[:cut] + injection + ". " + content[cut:]
		}
	}
	return strings.TrimRight(content, " ") + ". " + injection + "."
}
