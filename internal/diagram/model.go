package diagram

// NodeKind classifies a diagram node by its flow step type.
type NodeKind string

const (
	NodeKindAPI       NodeKind = "api"
	NodeKindInline    NodeKind = "inline"
	NodeKindComposite NodeKind = "composite"
	NodeKindLoop      NodeKind = "loop"
	NodeKindCondition NodeKind = "condition"
	NodeKindVariable  NodeKind = "variable"
	NodeKindDatabase  NodeKind = "database"
	NodeKindLogger    NodeKind = "logger"
	NodeKindUnknown   NodeKind = "unknown"
	NodeKindStart     NodeKind = "start"
	NodeKindEnd       NodeKind = "end"
	// NodeKindMissing stands for a referenced id that no step declares.
	NodeKindMissing NodeKind = "missing"
)

// Node statuses derived from validation.
const (
	StatusOK          = "ok"
	StatusWarning     = "warning"
	StatusError       = "error"
	StatusUnreachable = "unreachable"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node represents a single step in the diagram.
type Node struct {
	ID       string
	Label    string
	Kind     NodeKind
	Status   *StatusOverlay
	Children []*SubGraph // composite or loop body
}

// SubGraph holds the nested steps of a COMPOSITE or LOOP step.
type SubGraph struct {
	Label string
	Nodes []*Node
	Edges []Edge
}

// StatusOverlay carries the validation state of a node.
type StatusOverlay struct {
	Status   string
	Errors   int
	Warnings int
}

// Edge is a successor relation between two nodes.
type Edge struct {
	From  string
	To    string
	Label string
}

// Unreachable reports whether validation found the node unreachable.
func (n *Node) Unreachable() bool {
	return n.Status != nil && n.Status.Status == StatusUnreachable
}
