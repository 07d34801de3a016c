package extraction

import (
	"strings"

	"github.com/icm-memory/icm/internal/store"
)

// FormatContext renders a set of recalled memories as the plain-text
// preamble Layer 2 injects ahead of a host agent's prompt: one
// "[topic] summary" line per memory, followed by a keywords line when
// present. Grounded on the "Relevant context from previous conversations"
// formatting pattern seen in the retrieved corpus's memory extractor
// (FormatContextForLLM), adapted to ICM's Memory shape.
func FormatContext(memories []*store.Memory) string {
	if len(memories) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant memories from prior context:\n")
	for _, m := range memories {
		b.WriteString("- [")
		b.WriteString(m.Topic)
		b.WriteString("] ")
		b.WriteString(m.Summary)
		b.WriteString("\n")
		if len(m.Keywords) > 0 {
			b.WriteString("  keywords: ")
			b.WriteString(strings.Join(m.Keywords, ", "))
			b.WriteString("\n")
		}
	}
	return b.String()
}
