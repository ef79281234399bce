package diagram

import (
	"fmt"
	"strings"
)

// statusTag returns a short ASCII indicator for a node.
func statusTag(n *Node) string {
	if n.Kind == NodeKindMissing {
		return "[MISSING]"
	}
	if n.Status == nil {
		return ""
	}
	switch n.Status.Status {
	case StatusError:
		return fmt.Sprintf("[ERR x%d]", n.Status.Errors)
	case StatusWarning:
		return fmt.Sprintf("[WARN x%d]", n.Status.Warnings)
	case StatusUnreachable:
		return "[UNREACHABLE]"
	default:
		return ""
	}
}

// RenderASCII renders a DiagramModel as a text-based ASCII diagram.
// It uses a level-based layout with box-drawing characters.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("=== %s ===\n\n", model.Title))
	}

	for levelIdx, level := range model.Levels {
		var boxes []asciiBox
		for _, nodeID := range level {
			node := findNode(model.Nodes, nodeID)
			if node == nil {
				continue
			}
			boxes = append(boxes, makeBox(node))
		}

		renderBoxRow(&b, boxes)

		if levelIdx < len(model.Levels)-1 {
			renderConnector(&b, len(boxes))
		}
	}

	if len(model.Edges) > 0 {
		b.WriteString("\n--- edges ---\n")
		for _, edge := range model.Edges {
			writeASCIIEdge(&b, edge, "  ")
		}
	}

	for _, node := range model.Nodes {
		if len(node.Children) > 0 {
			b.WriteString(fmt.Sprintf("\n--- %s sub-steps ---\n", node.ID))
			for _, sg := range node.Children {
				renderSubGraph(&b, sg, "  ")
			}
		}
	}

	return b.String()
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

// makeBox creates an ASCII box for a node.
func makeBox(node *Node) asciiBox {
	contentLines := []string{firstLine(node.Label)}
	if tag := statusTag(node); tag != "" {
		contentLines = append(contentLines, tag)
	}

	maxLen := 0
	for _, line := range contentLines {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}
	width := maxLen + 4 // 2 border + 2 padding

	var lines []string
	top := "┌" + strings.Repeat("─", width-2) + "┐"
	bot := "└" + strings.Repeat("─", width-2) + "┘"
	lines = append(lines, top)
	for _, content := range contentLines {
		padded := content + strings.Repeat(" ", maxLen-len(content))
		lines = append(lines, "│ "+padded+" │")
	}
	lines = append(lines, bot)

	return asciiBox{lines: lines, width: width}
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	if len(boxes) == 0 {
		return
	}

	maxHeight := 0
	for _, box := range boxes {
		if len(box.lines) > maxHeight {
			maxHeight = len(box.lines)
		}
	}

	for row := 0; row < maxHeight; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

// renderConnector draws a vertical connector between levels.
func renderConnector(b *strings.Builder, boxCount int) {
	if boxCount == 0 {
		return
	}
	b.WriteString("       │\n")
	b.WriteString("       ▼\n")
}

func writeASCIIEdge(b *strings.Builder, edge Edge, indent string) {
	label := ""
	if edge.Label != "" {
		label = " [" + edge.Label + "]"
	}
	b.WriteString(fmt.Sprintf("%s%s ─→ %s%s\n", indent, shortID(edge.From), shortID(edge.To), label))
}

// renderSubGraph renders a body section, recursing into nested bodies.
func renderSubGraph(b *strings.Builder, sg *SubGraph, indent string) {
	b.WriteString(fmt.Sprintf("%s[%s]\n", indent, sg.Label))
	for _, node := range sg.Nodes {
		tag := statusTag(node)
		if tag != "" {
			tag = " " + tag
		}
		b.WriteString(fmt.Sprintf("%s  %s%s\n", indent, firstLine(node.Label), tag))
	}
	for _, edge := range sg.Edges {
		writeASCIIEdge(b, edge, indent+"  ")
	}
	for _, node := range sg.Nodes {
		for _, child := range node.Children {
			renderSubGraph(b, child, indent+"  ")
		}
	}
}

// shortID returns the last segment of a dot-separated ID.
func shortID(id string) string {
	if i := strings.LastIndex(id, "."); i >= 0 {
		return id[i+1:]
	}
	return id
}

// findNode looks up a node by ID in the model's node list.
func findNode(nodes []*Node, id string) *Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
