package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rendis/flowlint/pkg/schema"
)

// scope is one step list with its own id lookup and visited set. The top
// level resolver and every entered COMPOSITE or LOOP body each get a fresh
// scope, so an id reused at another nesting level is never conflated.
type scope struct {
	path    string
	steps   []*schema.Step
	lookup  map[string]*schema.Step
	visited map[string]bool
}

func newScope(path string, steps []*schema.Step) *scope {
	sc := &scope{
		path:    path,
		steps:   steps,
		lookup:  make(map[string]*schema.Step, len(steps)),
		visited: make(map[string]bool, len(steps)),
	}
	for _, s := range steps {
		if !s.Object || s.ID.Value == "" {
			continue
		}
		// First declaration wins; duplicates are reported by validateSteps.
		if _, dup := sc.lookup[s.ID.Value]; !dup {
			sc.lookup[s.ID.Value] = s
		}
	}
	return sc
}

func (sc *scope) loc(s *schema.Step) string {
	return schema.JoinIndex(sc.path, s.Index)
}

// unreached returns the declared ids never visited, sorted.
func (sc *scope) unreached() []string {
	var out []string
	for id := range sc.lookup {
		if !sc.visited[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// analyzer walks step graphs depth first. result may be nil when only the
// reachable set is wanted.
type analyzer struct {
	result *schema.ValidationResult
}

func (a *analyzer) traverse(sc *scope, id string) {
	if sc.visited[id] {
		return
	}
	step, ok := sc.lookup[id]
	if !ok {
		// Dangling; the reference pass reports it.
		return
	}
	sc.visited[id] = true

	for _, e := range step.Edges() {
		if e.Kind != schema.EdgeEnter {
			a.traverse(sc, e.Target)
			continue
		}
		key := "composite"
		if e.Body == step.Loop.Value {
			key = "loop"
		}
		inner := newScope(sc.loc(step)+"."+key+".steps", e.Body.StepList())
		a.traverse(inner, e.Target)
		if a.result != nil {
			if orphans := inner.unreached(); len(orphans) > 0 {
				a.result.AddWarningf(inner.path, schema.CodeUnreachable,
					"Unreachable steps inside %s of step '%s': %s", key, step.ID.Value, strings.Join(orphans, ", "))
			}
		}
	}
}

// Reachable returns the top-level step ids reachable from resolver.start.
func Reachable(r *schema.Resolver) map[string]bool {
	if r == nil {
		return map[string]bool{}
	}
	return ReachableFrom(r.Steps.Value, r.Start.Value)
}

// ReachableFrom returns the ids of steps reachable from entry within one
// step list. Nested bodies are traversed in their own scopes and do not
// contribute to the result.
func ReachableFrom(steps []*schema.Step, entry string) map[string]bool {
	sc := newScope("", steps)
	if entry != "" {
		(&analyzer{}).traverse(sc, entry)
	}
	return sc.visited
}

// validateReachability checks that every top-level step is reachable from
// resolver.start and that every declared reference names an existing step.
func validateReachability(flow *schema.Flow, result *schema.ValidationResult) {
	r := flow.Resolver.Value
	if r == nil || r.Steps.Value == nil {
		return
	}

	top := newScope("resolver.steps", r.Steps.Value)
	start := r.Start.Value
	switch {
	case start == "":
		result.AddError("resolver.start", schema.CodeMissingStart,
			"Missing 'start' field in resolver - no entry point defined for the flow")
	default:
		if _, ok := top.lookup[start]; !ok {
			result.AddErrorf("resolver.start", schema.CodeDanglingRef, "Start step '%s' not found in steps list", start)
		}
		(&analyzer{result: result}).traverse(top, start)
		if orphans := top.unreached(); len(orphans) > 0 {
			result.AddErrorf("resolver.steps", schema.CodeUnreachable,
				"Found orphaned/unreachable steps: %s", strings.Join(orphans, ", "))
			result.AddInfo("resolver.steps", "All steps must be connected and reachable from the start step")
		}
	}

	validateReferences(top, result)
}

// validateReferences checks every declared reference of every step in sc
// and, recursively, in its nested bodies, whether or not traversal reaches it.
func validateReferences(sc *scope, result *schema.ValidationResult) {
	for _, s := range sc.steps {
		nested := make(map[string]*scope)
		for _, ng := range s.NestedGraphs() {
			nested[ng.Key] = newScope(sc.loc(s)+"."+ng.Key+".steps", ng.Graph.StepList())
		}

		for _, ref := range s.References() {
			target := sc
			if ref.Inner {
				target = nested[strings.SplitN(ref.Field, ".", 2)[0]]
			}
			if _, ok := target.lookup[ref.Target]; ok {
				continue
			}
			result.AddError(sc.loc(s), schema.CodeDanglingRef, danglingMessage(s, ref))
		}

		for _, ng := range s.NestedGraphs() {
			validateReferences(nested[ng.Key], result)
		}
	}
}

func danglingMessage(s *schema.Step, ref schema.Reference) string {
	id := stepLabel(s)
	switch ref.Field {
	case "next":
		return fmt.Sprintf("Step '%s' references non-existent next step '%s'", id, ref.Target)
	case "composite.next", "loop.next":
		return fmt.Sprintf("%s step '%s' references non-existent next step '%s'", bodyKind(ref.Field), id, ref.Target)
	case "composite.start", "loop.start":
		return fmt.Sprintf("%s step '%s' references non-existent start step '%s'", bodyKind(ref.Field), id, ref.Target)
	case "conditional.next":
		return fmt.Sprintf("Conditional step '%s' references non-existent default next step '%s'", id, ref.Target)
	default:
		return fmt.Sprintf("Conditional step '%s' %s references non-existent next step '%s'", id, ref.Field, ref.Target)
	}
}

func bodyKind(field string) string {
	if strings.HasPrefix(field, "loop.") {
		return "Loop"
	}
	return "Composite"
}
