package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Formatter renders a tool's raw result into a human-readable block,
// grounded on the teacher's Formatter (internal/mcp/formatter.go) — same
// icon/tagline/separator/performance/suggestions/raw-JSON layout, rewired
// to ICM's memory/memoir result shapes instead of the teacher's
// store_memory/search/analysis vocabulary.
type Formatter struct{}

// NewFormatter creates a new formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// FormatToolResponse formats a tool response with rich UX elements.
func (f *Formatter) FormatToolResponse(toolName string, result interface{}, duration time.Duration) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\n%s **%s**\n", f.getToolIcon(toolName), f.formatToolName(toolName)))
	sb.WriteString(f.getToolTagline(toolName))
	sb.WriteString("\n")
	sb.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	switch toolName {
	case "icm_memory_store":
		sb.WriteString(f.formatMemoryStore(result))
	case "icm_memory_recall":
		sb.WriteString(f.formatMemoryRecall(result))
	case "icm_memory_forget":
		sb.WriteString(f.formatMemoryForget(result))
	case "icm_memory_consolidate":
		sb.WriteString(f.formatMemoryConsolidate(result))
	case "icm_memory_list_topics":
		sb.WriteString(f.formatMemoryListTopics(result))
	case "icm_memory_stats":
		sb.WriteString(f.formatMemoryStats(result))
	case "icm_memory_embed_all":
		sb.WriteString(f.formatMemoryEmbedAll(result))
	case "icm_memoir_create", "icm_memoir_add_concept", "icm_memoir_refine":
		sb.WriteString(f.fallbackJSON(result))
	case "icm_memoir_list", "icm_memoir_search", "icm_memoir_search_all":
		sb.WriteString(f.formatConceptList(result))
	case "icm_memoir_show":
		sb.WriteString(f.formatMemoirShow(result))
	case "icm_memoir_link":
		sb.WriteString(f.formatMemoirLink(result))
	case "icm_memoir_inspect":
		sb.WriteString(f.formatMemoirInspect(result))
	default:
		sb.WriteString(f.fallbackJSON(result))
	}

	sb.WriteString("\n\n")
	sb.WriteString(f.formatPerformance(duration))

	if suggestions := f.getSuggestions(toolName); len(suggestions) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString("💡 **Next Steps**\n")
		for _, s := range suggestions {
			sb.WriteString(fmt.Sprintf("   → %s\n", s))
		}
	}

	sb.WriteString("\n\n")
	sb.WriteString("<details>\n<summary>📋 Raw JSON Response</summary>\n\n```json\n")
	sb.WriteString(f.fallbackJSON(result))
	sb.WriteString("\n```\n</details>")

	return sb.String()
}

func (f *Formatter) getToolIcon(toolName string) string {
	icons := map[string]string{
		"icm_memory_store":       "💾",
		"icm_memory_recall":      "🔍",
		"icm_memory_forget":      "🗑️",
		"icm_memory_consolidate": "🧬",
		"icm_memory_list_topics": "📂",
		"icm_memory_stats":       "📈",
		"icm_memory_embed_all":   "🧮",
		"icm_memoir_create":      "📘",
		"icm_memoir_list":        "📚",
		"icm_memoir_show":        "📖",
		"icm_memoir_add_concept": "🧩",
		"icm_memoir_refine":      "✏️",
		"icm_memoir_search":      "🔎",
		"icm_memoir_search_all":  "🔎",
		"icm_memoir_link":        "🔗",
		"icm_memoir_inspect":     "🕸️",
	}
	if icon, ok := icons[toolName]; ok {
		return icon
	}
	return "⚡"
}

func (f *Formatter) formatToolName(name string) string {
	parts := strings.Split(name, "_")
	for i, p := range parts {
		parts[i] = strings.Title(p)
	}
	return strings.Join(parts, " ")
}

func (f *Formatter) getToolTagline(toolName string) string {
	taglines := map[string]string{
		"icm_memory_store":       "Persisting a memory for future recall",
		"icm_memory_recall":      "Hybrid keyword+vector search over stored memories",
		"icm_memory_forget":      "Removing a memory",
		"icm_memory_consolidate": "Merging a topic's memories into one",
		"icm_memory_list_topics": "Surveying topics in the memory store",
		"icm_memory_stats":       "Corpus-wide memory aggregates",
		"icm_memory_embed_all":   "Backfilling missing embeddings",
		"icm_memoir_create":      "Starting a new knowledge-graph container",
		"icm_memoir_list":        "Listing memoirs",
		"icm_memoir_show":        "Showing a memoir's concepts",
		"icm_memoir_add_concept": "Adding a concept to the graph",
		"icm_memoir_refine":      "Refining a concept's definition",
		"icm_memoir_search":      "Searching a memoir's concepts",
		"icm_memoir_search_all":  "Searching concepts across memoirs",
		"icm_memoir_link":        "Connecting two concepts",
		"icm_memoir_inspect":     "Traversing a concept's neighborhood",
	}
	if tagline, ok := taglines[toolName]; ok {
		return fmt.Sprintf("*%s*", tagline)
	}
	return ""
}

func (f *Formatter) formatMemoryStore(result interface{}) string {
	m, ok := result.(map[string]string)
	if !ok {
		return f.fallbackJSON(result)
	}
	return fmt.Sprintf("✅ Stored memory `%s`", f.truncateID(m["id"]))
}

func (f *Formatter) formatMemoryRecall(result interface{}) string {
	hits, ok := result.([]map[string]interface{})
	if !ok {
		return f.fallbackJSON(result)
	}
	if len(hits) == 0 {
		return "No memories matched."
	}
	var sb strings.Builder
	for i, h := range hits {
		sb.WriteString(fmt.Sprintf("**%d.** [%v] %v\n", i+1, h["topic"], h["summary"]))
		sb.WriteString(fmt.Sprintf("   score=%.3f weight=%.3f id=%s\n\n", toFloat(h["score"]), toFloat(h["weight"]), f.truncateID(fmt.Sprint(h["id"]))))
	}
	return sb.String()
}

func (f *Formatter) formatMemoryForget(result interface{}) string {
	m, ok := result.(map[string]bool)
	if !ok {
		return f.fallbackJSON(result)
	}
	return f.boolToEmoji(m["deleted"]) + " deleted"
}

func (f *Formatter) formatMemoryConsolidate(result interface{}) string {
	m, ok := result.(map[string]interface{})
	if !ok {
		return f.fallbackJSON(result)
	}
	return fmt.Sprintf("🧬 Consolidated into `%s`, absorbing %v memories", f.truncateID(fmt.Sprint(m["new_id"])), m["absorbed_count"])
}

func (f *Formatter) formatMemoryListTopics(result interface{}) string {
	topics, ok := result.([]map[string]interface{})
	if !ok {
		return f.fallbackJSON(result)
	}
	var sb strings.Builder
	for _, t := range topics {
		sb.WriteString(fmt.Sprintf("- %v (%v memories)\n", t["topic"], t["count"]))
	}
	return sb.String()
}

func (f *Formatter) formatMemoryStats(result interface{}) string {
	m, ok := result.(map[string]interface{})
	if !ok {
		return f.fallbackJSON(result)
	}
	return fmt.Sprintf(
		"total_memories: %v\ntotal_topics: %v\navg_weight: %.3f\noldest: %v\nnewest: %v",
		m["total_memories"], m["total_topics"], toFloat(m["avg_weight"]), m["oldest"], m["newest"],
	)
}

func (f *Formatter) formatMemoryEmbedAll(result interface{}) string {
	m, ok := result.(map[string]int)
	if !ok {
		return f.fallbackJSON(result)
	}
	return fmt.Sprintf("🧮 Embedded %d memories, skipped %d", m["embedded"], m["skipped"])
}

func (f *Formatter) formatConceptList(result interface{}) string {
	switch v := result.(type) {
	case []map[string]interface{}:
		var sb strings.Builder
		for _, c := range v {
			sb.WriteString(fmt.Sprintf("- %v: %v\n", c["name"], f.truncateContent(fmt.Sprint(c["definition"]), 80)))
		}
		return sb.String()
	default:
		return f.fallbackJSON(result)
	}
}

func (f *Formatter) formatMemoirShow(result interface{}) string {
	m, ok := result.(map[string]interface{})
	if !ok {
		return f.fallbackJSON(result)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📘 %v — %v\n\n", m["name"], m["description"]))
	if concepts, ok := m["concepts"].([]map[string]interface{}); ok {
		for _, c := range concepts {
			sb.WriteString(fmt.Sprintf("- %v: %v\n", c["name"], f.truncateContent(fmt.Sprint(c["definition"]), 80)))
		}
	}
	return sb.String()
}

func (f *Formatter) formatMemoirLink(result interface{}) string {
	m, ok := result.(map[string]interface{})
	if !ok {
		return f.fallbackJSON(result)
	}
	return fmt.Sprintf("🔗 %v -%v-> %v (confidence %.2f)", m["from"], m["kind"], m["to"], toFloat(m["confidence"]))
}

func (f *Formatter) formatMemoirInspect(result interface{}) string {
	m, ok := result.(map[string]interface{})
	if !ok {
		return f.fallbackJSON(result)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🕸️ Neighborhood of %v (depth %v)\n\n", m["root"], m["max_depth"]))
	layers, _ := m["layers"].([][]map[string]interface{})
	for d, layer := range layers {
		sb.WriteString(fmt.Sprintf("depth %d:\n", d))
		for _, n := range layer {
			if n["via"] != nil {
				sb.WriteString(fmt.Sprintf("  - %v (via %v)\n", n["name"], n["via"]))
			} else {
				sb.WriteString(fmt.Sprintf("  - %v\n", n["name"]))
			}
		}
	}
	return sb.String()
}

func (f *Formatter) formatPerformance(duration time.Duration) string {
	ms := duration.Milliseconds()
	var speedIcon string
	switch {
	case ms < 100:
		speedIcon = "⚡"
	case ms < 500:
		speedIcon = "🚀"
	case ms < 1000:
		speedIcon = "✓"
	default:
		speedIcon = "🐢"
	}
	return fmt.Sprintf("%s *Completed in %dms*", speedIcon, ms)
}

func (f *Formatter) getSuggestions(toolName string) []string {
	suggestions := map[string][]string{
		"icm_memory_store": {
			"Use icm_memory_recall to verify the memory was indexed",
			"Use icm_memoir_link to connect it into a concept graph",
		},
		"icm_memory_recall": {
			"Use icm_memory_forget to remove stale results",
			"Use icm_memory_consolidate once a topic accumulates duplicates",
		},
		"icm_memoir_add_concept": {
			"Use icm_memoir_link to connect this concept to others",
			"Use icm_memoir_inspect to see its neighborhood once linked",
		},
		"icm_memoir_link": {
			"Use icm_memoir_inspect to see the traversal this edge enables",
		},
	}
	return suggestions[toolName]
}

func (f *Formatter) truncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:8] + "..."
}

func (f *Formatter) truncateContent(content string, maxLen int) string {
	content = strings.ReplaceAll(content, "\n", " ")
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen-3] + "..."
}

func (f *Formatter) boolToEmoji(b bool) string {
	if b {
		return "✅"
	}
	return "❌"
}

func (f *Formatter) fallbackJSON(result interface{}) string {
	jsonBytes, _ := json.MarshalIndent(result, "", "  ")
	return string(jsonBytes)
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
