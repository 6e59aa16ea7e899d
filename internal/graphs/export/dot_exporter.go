package export

import (
	"strings"

	"github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
)

// ToDOT renders a simple Graphviz DOT for a graph document.
// Usage: dotBytes, _ := ToDOT(g); os.WriteFile("graph.dot", dotBytes, 0644)
func ToDOT(g domain.Graph) ([]byte, error) {
	var b strings.Builder
	b.WriteString("digraph G {\n")
	b.WriteString(`  rankdir=TB; node [shape=box, style="rounded,filled"];` + "\n")

	// Ensure nodes exist even if no edges
	for _, n := range g.Nodes {
		label := n.ID
		if name, ok := n.Data["name"].(string); ok && name != "" {
			label = name
		}
		b.WriteString(`  "` + n.ID + `" [label="` + escape(label) + `\n(` + string(n.Kind) + `)"];` + "\n")
	}
	for _, e := range g.Edges {
		b.WriteString(`  "` + e.Source + `" -> "` + e.Target + `";` + "\n")
	}
	b.WriteString("}\n")
	return []byte(b.String()), nil
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
