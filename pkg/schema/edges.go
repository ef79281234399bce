package schema

import "fmt"

// EdgeKind classifies an outgoing edge of a step.
type EdgeKind uint8

const (
	// EdgeNext is a plain successor in the same scope.
	EdgeNext EdgeKind = iota
	// EdgeEnter descends into a nested COMPOSITE or LOOP graph.
	EdgeEnter
	// EdgeExit leaves a nested graph to a successor in the outer scope.
	EdgeExit
	// EdgeBranch is a conditional expression's successor.
	EdgeBranch
	// EdgeDefault is a conditional's fallback successor.
	EdgeDefault
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeNext:
		return "next"
	case EdgeEnter:
		return "enter"
	case EdgeExit:
		return "exit"
	case EdgeBranch:
		return "branch"
	case EdgeDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Edge is one successor of a step. For EdgeEnter, Body is the nested graph
// Target must be resolved in; every other kind resolves in the step's scope.
type Edge struct {
	Kind   EdgeKind
	Target string
	Body   *Graph
	Label  string
}

// Reference is one declared id reference of a step, used for existence
// checks regardless of whether traversal would follow it.
type Reference struct {
	Field  string
	Target string
	// Inner is true when Target must exist in the step's nested graph.
	Inner bool
}

type edgeRule func(s *Step) []Edge

var edgeRules = map[StepType]edgeRule{
	StepTypeComposite:   func(s *Step) []Edge { return graphEdges(s, s.Composite.Value) },
	StepTypeLoop:        func(s *Step) []Edge { return graphEdges(s, s.Loop.Value) },
	StepTypeConditional: conditionalEdges,
}

// Edges returns the step's successors under its type's edge rule. Types
// without a dedicated rule have a single successor, next.
func (s *Step) Edges() []Edge {
	if !s.Object {
		return nil
	}
	if rule, ok := edgeRules[s.StepType()]; ok {
		return rule(s)
	}
	if s.Next.Value == "" {
		return nil
	}
	return []Edge{{Kind: EdgeNext, Target: s.Next.Value, Label: "next"}}
}

func graphEdges(s *Step, body *Graph) []Edge {
	var edges []Edge
	if entry := body.Entry(); entry != "" {
		edges = append(edges, Edge{Kind: EdgeEnter, Target: entry, Body: body, Label: "start"})
	}
	exit := s.Next.Value
	if body != nil && body.Next.Value != "" {
		exit = body.Next.Value
	}
	if exit != "" {
		edges = append(edges, Edge{Kind: EdgeExit, Target: exit, Label: "next"})
	}
	return edges
}

func conditionalEdges(s *Step) []Edge {
	var edges []Edge
	cond := s.Conditional.Value
	fallback := s.Next.Value
	if cond != nil {
		for _, e := range cond.Expressions.Value {
			if e.Next.Value != "" {
				edges = append(edges, Edge{
					Kind:   EdgeBranch,
					Target: e.Next.Value,
					Label:  fmt.Sprintf("expression %d", e.Index+1),
				})
			}
		}
		if cond.Next.Value != "" {
			fallback = cond.Next.Value
		}
	}
	if fallback != "" {
		edges = append(edges, Edge{Kind: EdgeDefault, Target: fallback, Label: "default"})
	}
	return edges
}

// References returns every non-empty id reference the step declares, in a
// fixed order: next, then the nested graph's start and next, then each
// conditional expression, then the conditional default.
func (s *Step) References() []Reference {
	if !s.Object {
		return nil
	}
	var refs []Reference
	add := func(field, target string, inner bool) {
		if target != "" {
			refs = append(refs, Reference{Field: field, Target: target, Inner: inner})
		}
	}
	add("next", s.Next.Value, false)
	for _, g := range []struct {
		name string
		body *Graph
	}{{"composite", s.Composite.Value}, {"loop", s.Loop.Value}} {
		if g.body == nil {
			continue
		}
		add(g.name+".start", g.body.Start.Value, true)
		add(g.name+".next", g.body.Next.Value, false)
	}
	if cond := s.Conditional.Value; cond != nil {
		for _, e := range cond.Expressions.Value {
			add(fmt.Sprintf("expression %d", e.Index+1), e.Next.Value, false)
		}
		add("conditional.next", cond.Next.Value, false)
	}
	return refs
}

// NestedGraphs returns the step's COMPOSITE and LOOP bodies with the key
// they were declared under.
func (s *Step) NestedGraphs() []NestedGraph {
	if !s.Object {
		return nil
	}
	var out []NestedGraph
	if s.Composite.Value != nil {
		out = append(out, NestedGraph{Key: "composite", Graph: s.Composite.Value})
	}
	if s.Loop.Value != nil {
		out = append(out, NestedGraph{Key: "loop", Graph: s.Loop.Value})
	}
	return out
}

// NestedGraph is a nested body and the step key holding it.
type NestedGraph struct {
	Key   string
	Graph *Graph
}
