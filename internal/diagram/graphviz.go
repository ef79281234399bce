package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// RenderImage renders a DiagramModel as a PNG image using graphviz.
func RenderImage(ctx context.Context, model *DiagramModel) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	gvNodes := make(map[string]*cgraph.Node)
	for _, node := range model.Nodes {
		gvNode, nErr := graph.CreateNodeByName(node.ID)
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", node.ID, nErr)
		}
		gvNode.SetLabel(firstLine(node.Label))
		applyNodeStyle(gvNode, node)
		gvNodes[node.ID] = gvNode
	}

	for _, node := range model.Nodes {
		addClusters(graph, graph, node, gvNodes)
	}

	for _, edge := range model.Edges {
		addEdge(graph, gvNodes, edge)
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.PNG, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// addClusters creates one dashed cluster per body of node, nested inside
// parent, and recurses into nested bodies.
func addClusters(root, parent *cgraph.Graph, node *Node, gvNodes map[string]*cgraph.Node) {
	for _, sg := range node.Children {
		sub, err := parent.CreateSubGraphByName("cluster_" + node.ID + "_" + sg.Label)
		if err != nil {
			continue
		}
		sub.SetLabel(shortID(node.ID) + ": " + sg.Label)
		sub.SetStyle(cgraph.DashedGraphStyle)

		for _, subNode := range sg.Nodes {
			gvSub, nErr := sub.CreateNodeByName(subNode.ID)
			if nErr != nil {
				continue
			}
			gvSub.SetLabel(firstLine(subNode.Label))
			applyNodeStyle(gvSub, subNode)
			gvNodes[subNode.ID] = gvSub
		}
		for _, subNode := range sg.Nodes {
			addClusters(root, sub, subNode, gvNodes)
		}
		for _, edge := range sg.Edges {
			addEdge(root, gvNodes, edge)
		}
	}
}

func addEdge(graph *cgraph.Graph, gvNodes map[string]*cgraph.Node, edge Edge) {
	fromGV, toGV := gvNodes[edge.From], gvNodes[edge.To]
	if fromGV == nil || toGV == nil {
		return
	}
	e, err := graph.CreateEdgeByName("", fromGV, toGV)
	if err == nil && edge.Label != "" {
		e.SetLabel(edge.Label)
	}
}

// applyNodeStyle sets graphviz attributes based on node kind and status.
func applyNodeStyle(gvNode *cgraph.Node, node *Node) {
	switch node.Kind {
	case NodeKindCondition:
		gvNode.SetShape(cgraph.DiamondShape)
	case NodeKindAPI:
		gvNode.SetShape(cgraph.ParallelogramShape)
	case NodeKindDatabase:
		gvNode.SetShape(cgraph.CylinderShape)
	case NodeKindLogger:
		gvNode.SetShape(cgraph.NoteShape)
	case NodeKindStart, NodeKindEnd:
		gvNode.SetShape(cgraph.CircleShape)
		gvNode.SetWidth(0.5)
		gvNode.SetHeight(0.5)
	case NodeKindMissing:
		gvNode.SetShape(cgraph.EllipseShape)
		gvNode.SetStyle(cgraph.DashedNodeStyle)
		gvNode.SetColor("#8b1a1a")
		gvNode.SetFontColor("#8b1a1a")
		return
	default:
		gvNode.SetShape(cgraph.BoxShape)
	}

	if node.Status != nil {
		applyStatusColor(gvNode, node.Status.Status)
	}
}

// applyStatusColor sets fill color and style based on validation status.
func applyStatusColor(gvNode *cgraph.Node, status string) {
	switch status {
	case StatusError:
		gvNode.SetStyle(cgraph.FilledNodeStyle)
		gvNode.SetFillColor("#8b1a1a")
		gvNode.SetFontColor("white")
	case StatusWarning:
		gvNode.SetStyle(cgraph.FilledNodeStyle)
		gvNode.SetFillColor("#b7791a")
		gvNode.SetFontColor("white")
	case StatusUnreachable:
		gvNode.SetStyle(cgraph.DashedNodeStyle)
		gvNode.SetColor("#888888")
		gvNode.SetFontColor("#888888")
	}
}
