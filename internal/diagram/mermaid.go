package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	// Title as comment.
	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	for _, node := range model.Nodes {
		writeMermaidNode(&b, node, "    ")
	}

	for _, edge := range model.Edges {
		writeMermaidEdge(&b, edge, "    ")
	}

	// Status class definitions.
	b.WriteString("\n")
	b.WriteString("    classDef warning fill:#b7791a,stroke:#8a5c14,color:#fff\n")
	b.WriteString("    classDef error fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")
	b.WriteString("    classDef unreachable fill:#4a4a4a,stroke:#333,color:#aaa,stroke-dasharray:5 5\n")
	b.WriteString("    classDef missing fill:#fff,stroke:#8b1a1a,color:#8b1a1a,stroke-dasharray:3 3\n")

	walkNodes(model.Nodes, func(n *Node) {
		if cls := mermaidClass(n); cls != "" {
			b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(n.ID), cls))
		}
	})

	return b.String()
}

func writeMermaidNode(b *strings.Builder, node *Node, indent string) {
	b.WriteString(indent + mermaidNodeDef(node) + "\n")
	for _, sg := range node.Children {
		b.WriteString(fmt.Sprintf("%ssubgraph %s[\"%s: %s\"]\n",
			indent, mermaidSafeID(node.ID+"_"+sg.Label), shortID(node.ID), sg.Label))
		for _, sub := range sg.Nodes {
			writeMermaidNode(b, sub, indent+"    ")
		}
		for _, edge := range sg.Edges {
			writeMermaidEdge(b, edge, indent+"    ")
		}
		b.WriteString(indent + "end\n")
	}
}

func writeMermaidEdge(b *strings.Builder, edge Edge, indent string) {
	label := ""
	if edge.Label != "" {
		label = fmt.Sprintf("|%s|", edge.Label)
	}
	b.WriteString(fmt.Sprintf("%s%s -->%s %s\n", indent, mermaidSafeID(edge.From), label, mermaidSafeID(edge.To)))
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := firstLine(node.Label)

	switch node.Kind {
	case NodeKindCondition:
		return fmt.Sprintf("%s{%q}", id, label)
	case NodeKindComposite, NodeKindLoop:
		return fmt.Sprintf("%s[[%q]]", id, label)
	case NodeKindAPI:
		return fmt.Sprintf("%s[/%q/]", id, label)
	case NodeKindDatabase:
		return fmt.Sprintf("%s[(%q)]", id, label)
	case NodeKindLogger:
		return fmt.Sprintf("%s>%q]", id, label)
	case NodeKindStart, NodeKindEnd:
		return fmt.Sprintf("%s((%q))", id, label)
	case NodeKindMissing:
		return fmt.Sprintf("%s([%q])", id, label)
	default:
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

func mermaidClass(n *Node) string {
	if n.Kind == NodeKindMissing {
		return "missing"
	}
	if n.Status == nil {
		return ""
	}
	switch n.Status.Status {
	case StatusWarning, StatusError, StatusUnreachable:
		return n.Status.Status
	default:
		return ""
	}
}

// walkNodes visits nodes and their subgraph nodes depth first.
func walkNodes(nodes []*Node, fn func(*Node)) {
	for _, n := range nodes {
		fn(n)
		for _, sg := range n.Children {
			walkNodes(sg.Nodes, fn)
		}
	}
}
