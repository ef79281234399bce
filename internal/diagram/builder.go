package diagram

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rendis/flowlint/internal/validation"
	"github.com/rendis/flowlint/pkg/schema"
)

const (
	startID = "__start__"
	endID   = "__end__"
)

// Build constructs a DiagramModel from a flow. When result is non-nil, each
// step node carries the count of diagnostics located on it. Steps not
// reachable from their scope's entry are marked unreachable either way.
func Build(flow *schema.Flow, result *schema.ValidationResult) (*DiagramModel, error) {
	r := flow.Resolver.Value
	if r == nil || len(r.Steps.Value) == 0 {
		return nil, fmt.Errorf("diagram: flow has no resolver steps")
	}

	b := &builder{counts: countDiagnostics(result)}
	steps := r.Steps.Value
	sc := b.scope("", "resolver.steps", steps, r.Start.Value)

	var edges []Edge
	if start := r.Start.Value; start != "" {
		edges = append(edges, Edge{From: startID, To: sc.resolve(start)})
	}
	edges = append(edges, sc.edges...)
	for _, leaf := range sc.leaves {
		edges = append(edges, Edge{From: leaf, To: endID})
	}

	nodes := make([]*Node, 0, len(sc.nodes)+2)
	nodes = append(nodes, &Node{ID: startID, Label: "Start", Kind: NodeKindStart})
	nodes = append(nodes, sc.nodes...)
	nodes = append(nodes, &Node{ID: endID, Label: "End", Kind: NodeKindEnd})

	return &DiagramModel{
		Title:  title(flow),
		Nodes:  nodes,
		Edges:  edges,
		Levels: buildLevels(nodes, edges),
	}, nil
}

// BuildDocument decodes a flow document and builds the diagram of its first
// flow.
func BuildDocument(data []byte, result *schema.ValidationResult) (*DiagramModel, error) {
	doc, err := schema.Decode(data)
	if err != nil {
		return nil, err
	}
	if !doc.IsArray() || len(doc.Items) == 0 || !doc.Items[0].IsObject() {
		return nil, fmt.Errorf("diagram: document must be an array whose first element is a flow object")
	}
	return Build(schema.NewFlow(doc.Items[0]), result)
}

type builder struct {
	counts map[string]*StatusOverlay
}

// scopeGraph is the rendered form of one step list.
type scopeGraph struct {
	prefix string
	ids    map[string]string // step id -> node id
	nodes  []*Node
	edges  []Edge
	leaves []string
}

// resolve maps a target id to its node id, adding a missing node for
// targets the scope does not declare.
func (sg *scopeGraph) resolve(target string) string {
	if id, ok := sg.ids[target]; ok {
		return id
	}
	id := sg.prefix + "__missing__" + target
	for _, n := range sg.nodes {
		if n.ID == id {
			return id
		}
	}
	sg.nodes = append(sg.nodes, &Node{ID: id, Label: "? " + target, Kind: NodeKindMissing})
	return id
}

func (b *builder) scope(prefix, path string, steps []*schema.Step, entry string) *scopeGraph {
	sg := &scopeGraph{prefix: prefix, ids: make(map[string]string, len(steps))}
	reached := validation.ReachableFrom(steps, entry)

	var order []placement
	for _, s := range steps {
		if !s.Object {
			continue
		}
		key := s.ID.Value
		if key == "" {
			key = fmt.Sprintf("step_%d", s.Index)
		}
		if _, dup := sg.ids[key]; dup {
			continue
		}
		loc := schema.JoinIndex(path, s.Index)
		node := &Node{
			ID:     prefix + key,
			Label:  nodeLabel(s, key),
			Kind:   stepTypeToKind(s.StepType()),
			Status: b.overlay(loc, reached[s.ID.Value]),
		}
		sg.ids[key] = node.ID
		sg.nodes = append(sg.nodes, node)
		order = append(order, placement{step: s, node: node, loc: loc})
	}

	for _, p := range order {
		exits := 0
		for _, e := range p.step.Edges() {
			if e.Kind == schema.EdgeEnter {
				continue
			}
			exits++
			label := e.Label
			if e.Kind == schema.EdgeNext || e.Kind == schema.EdgeExit {
				label = ""
			}
			sg.edges = append(sg.edges, Edge{From: p.node.ID, To: sg.resolve(e.Target), Label: label})
		}
		if exits == 0 {
			sg.leaves = append(sg.leaves, p.node.ID)
		}
		for _, ng := range p.step.NestedGraphs() {
			p.node.Children = append(p.node.Children, b.subGraph(p, ng))
		}
	}
	return sg
}

// placement ties a step to its node and document location.
type placement struct {
	step *schema.Step
	node *Node
	loc  string
}

func (b *builder) subGraph(p placement, ng schema.NestedGraph) *SubGraph {
	body := ng.Graph
	inner := b.scope(p.node.ID+"."+ng.Key+".", p.loc+"."+ng.Key+".steps", body.StepList(), body.Entry())

	sub := &SubGraph{Label: ng.Key}
	if entry := body.Entry(); entry != "" {
		sub.Edges = append(sub.Edges, Edge{From: p.node.ID, To: inner.resolve(entry), Label: "start"})
	}
	sub.Edges = append(sub.Edges, inner.edges...)
	sub.Nodes = inner.nodes
	return sub
}

func (b *builder) overlay(loc string, reachable bool) *StatusOverlay {
	ov := &StatusOverlay{Status: StatusOK}
	if c, ok := b.counts[loc]; ok {
		ov.Errors, ov.Warnings = c.Errors, c.Warnings
	}
	switch {
	case !reachable:
		ov.Status = StatusUnreachable
	case ov.Errors > 0:
		ov.Status = StatusError
	case ov.Warnings > 0:
		ov.Status = StatusWarning
	}
	return ov
}

// stepLoc matches the innermost step location of a diagnostic.
var stepLoc = regexp.MustCompile(`^(.*steps\[\d+\])`)

func countDiagnostics(result *schema.ValidationResult) map[string]*StatusOverlay {
	counts := make(map[string]*StatusOverlay)
	if result == nil {
		return counts
	}
	add := func(diags []schema.Diagnostic, isErr bool) {
		for _, d := range diags {
			m := stepLoc.FindStringSubmatch(d.Location)
			if m == nil {
				continue
			}
			c, ok := counts[m[1]]
			if !ok {
				c = &StatusOverlay{}
				counts[m[1]] = c
			}
			if isErr {
				c.Errors++
			} else {
				c.Warnings++
			}
		}
	}
	add(result.Errors, true)
	add(result.Warnings, false)
	return counts
}

func stepTypeToKind(st schema.StepType) NodeKind {
	switch st {
	case schema.StepTypeAPI:
		return NodeKindAPI
	case schema.StepTypeInline:
		return NodeKindInline
	case schema.StepTypeComposite:
		return NodeKindComposite
	case schema.StepTypeLoop:
		return NodeKindLoop
	case schema.StepTypeConditional:
		return NodeKindCondition
	case schema.StepTypeVariable:
		return NodeKindVariable
	case schema.StepTypeInternalDB:
		return NodeKindDatabase
	case schema.StepTypeLogger:
		return NodeKindLogger
	default:
		return NodeKindUnknown
	}
}

// nodeLabel is "id" plus a second line naming the type and, for steps that
// call a connector, the endpoint.
func nodeLabel(s *schema.Step, key string) string {
	detail := s.Type.Value
	if fn := s.Function.Value; fn != nil && fn.Name.Value != "" {
		detail += ": " + fn.Name.Value
	}
	if detail == "" {
		return key
	}
	return key + "\n(" + detail + ")"
}

// buildLevels assigns nodes to breadth-first levels from the start node.
// Nodes the start never reaches share one level before the end node.
func buildLevels(nodes []*Node, edges []Edge) [][]string {
	adj := make(map[string][]string)
	for _, e := range edges {
		if e.To == endID {
			continue
		}
		adj[e.From] = append(adj[e.From], e.To)
	}

	depth := map[string]int{startID: 0}
	queue := []string{startID}
	maxDepth := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adj[id] {
			if _, seen := depth[next]; seen {
				continue
			}
			depth[next] = depth[id] + 1
			if depth[next] > maxDepth {
				maxDepth = depth[next]
			}
			queue = append(queue, next)
		}
	}

	levels := make([][]string, maxDepth+1)
	var stray []string
	for _, n := range nodes {
		if n.ID == endID {
			continue
		}
		d, ok := depth[n.ID]
		if !ok {
			stray = append(stray, n.ID)
			continue
		}
		levels[d] = append(levels[d], n.ID)
	}
	if len(stray) > 0 {
		levels = append(levels, stray)
	}
	return append(levels, []string{endID})
}

func title(flow *schema.Flow) string {
	for _, f := range []schema.Field[string]{flow.Name, flow.ID} {
		if s := strings.TrimSpace(f.Value); s != "" {
			return s
		}
	}
	return "Flow"
}
