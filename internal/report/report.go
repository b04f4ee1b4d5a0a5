// Package report renders a finished analysis into its two output
// artifacts: the raw JSON result envelope and a readable markdown
// report.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"bcos/internal/engine"
)

// sectionTitles maps context slots to report headings. Slots without
// an entry fall back to a title-cased slot name.
var sectionTitles = map[string]string{
	"company_intelligence":    "Company Intelligence",
	"business_model_canvas":   "Business Model Canvas",
	"value_chain":             "Value Chain",
	"org_structure":           "Organizational Structure",
	"market_intelligence":     "Market Intelligence",
	"competitor_intelligence": "Competitor Intelligence",
	"swot":                    "SWOT Analysis",
	"porters_five_forces":     "Porter's Five Forces",
	"pestel":                  "PESTEL Analysis",
	"bcg_matrix":              "BCG Matrix",
	"blue_ocean":              "Blue Ocean Strategy",
	"competitive_strategy":    "Competitive Strategy",
	"sales_intelligence":      "Sales Intelligence",
}

// WriteJSON persists the raw envelope as pretty-printed JSON.
func WriteJSON(path string, env engine.Envelope) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// WriteMarkdown renders the envelope and writes the report file.
func WriteMarkdown(path string, env engine.Envelope) error {
	if err := os.WriteFile(path, []byte(Markdown(env)), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Markdown renders the full report.
func Markdown(env engine.Envelope) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Business Analysis: %s\n\n", env.Company)
	if env.Summary.StartedAt != nil {
		fmt.Fprintf(&b, "*Generated %s*\n\n", env.Summary.StartedAt.Format("2006-01-02 15:04 MST"))
	}

	b.WriteString("## Run Summary\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Analysis type | %s |\n", env.AnalysisType)
	fmt.Fprintf(&b, "| Tasks total | %d |\n", env.Summary.Tasks.Total)
	fmt.Fprintf(&b, "| Tasks completed | %d |\n", env.Summary.Tasks.Completed)
	fmt.Fprintf(&b, "| Tasks failed | %d |\n", env.Summary.Tasks.Failed)
	fmt.Fprintf(&b, "| Tasks pending | %d |\n", env.Summary.Tasks.Pending)
	b.WriteString("\n")

	if env.Error != "" {
		fmt.Fprintf(&b, "> **Run error:** %s\n\n", env.Error)
	}

	if len(env.Phase1) > 0 {
		b.WriteString("## Phase 1: Foundation\n\n")
		writeSlots(&b, env.Phase1)
	}
	if len(env.Phase2) > 0 {
		b.WriteString("## Phase 2: Strategic Analysis\n\n")
		writeSlots(&b, env.Phase2)
	}

	return b.String()
}

func writeSlots(b *strings.Builder, slots map[string]any) {
	for _, slot := range sortedSlotKeys(slots) {
		fmt.Fprintf(b, "### %s\n\n", titleFor(slot))
		writeValue(b, slots[slot], 0)
		b.WriteString("\n")
	}
}

func titleFor(slot string) string {
	if title, ok := sectionTitles[slot]; ok {
		return title
	}
	words := strings.Split(strings.ReplaceAll(slot, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// writeValue renders an arbitrary JSON-shaped value as nested
// markdown bullets.
func writeValue(b *strings.Builder, value any, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v := value.(type) {
	case map[string]any:
		for _, key := range sortedSlotKeys(v) {
			child := v[key]
			switch child.(type) {
			case map[string]any, []any:
				fmt.Fprintf(b, "%s- **%s**:\n", indent, titleFor(key))
				writeValue(b, child, depth+1)
			default:
				fmt.Fprintf(b, "%s- **%s**: %s\n", indent, titleFor(key), scalar(child))
			}
		}
	case []any:
		for _, item := range v {
			switch item.(type) {
			case map[string]any, []any:
				fmt.Fprintf(b, "%s-\n", indent)
				writeValue(b, item, depth+1)
			default:
				fmt.Fprintf(b, "%s- %s\n", indent, scalar(item))
			}
		}
	default:
		fmt.Fprintf(b, "%s%s\n", indent, scalar(v))
	}
}

func scalar(v any) string {
	switch s := v.(type) {
	case nil:
		return "(none)"
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%g", s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

func sortedSlotKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
