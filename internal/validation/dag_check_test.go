package validation

import (
	"testing"

	"github.com/rendis/flowlint/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkReachability(t *testing.T, doc string) *schema.ValidationResult {
	t.Helper()
	v, err := schema.Decode([]byte(doc))
	require.NoError(t, err)
	result := schema.NewValidationResult()
	validateReachability(schema.NewFlow(v), result)
	return result
}

func reachable(t *testing.T, doc string) map[string]bool {
	t.Helper()
	v, err := schema.Decode([]byte(doc))
	require.NoError(t, err)
	return Reachable(schema.NewFlow(v).Resolver.Value)
}

// --- Reachability ---

func TestReachability_Orphan(t *testing.T) {
	result := checkReachability(t, `{"resolver":{"start":"a","steps":[
		{"id":"a","type":"INLINE","next":"b"},
		{"id":"b","type":"INLINE"},
		{"id":"c","type":"INLINE"}
	]}}`)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.CodeUnreachable, result.Errors[0].Code)
	assert.Equal(t, "Found orphaned/unreachable steps: c", result.Errors[0].Message)
	require.Len(t, result.Info, 1)
	assert.Equal(t, "All steps must be connected and reachable from the start step", result.Info[0].Message)
}

func TestReachability_OrphansSortedInOneMessage(t *testing.T) {
	result := checkReachability(t, `{"resolver":{"start":"a","steps":[
		{"id":"a","type":"LOGGER"},
		{"id":"zeta","type":"LOGGER","next":"beta"},
		{"id":"beta","type":"LOGGER"}
	]}}`)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Found orphaned/unreachable steps: beta, zeta", result.Errors[0].Message)
}

func TestReachability_MissingStart(t *testing.T) {
	result := checkReachability(t, `{"resolver":{"steps":[
		{"id":"a","type":"INLINE","next":"ghost"}
	]}}`)

	// No traversal, so no orphan report; the reference pass still runs.
	assert.Equal(t, []string{
		"Missing 'start' field in resolver - no entry point defined for the flow",
		"Step 'a' references non-existent next step 'ghost'",
	}, messages(result.Errors))
	assert.Equal(t, schema.CodeMissingStart, result.Errors[0].Code)
}

func TestReachability_StartNotDeclared(t *testing.T) {
	result := checkReachability(t, `{"resolver":{"start":"nope","steps":[{"id":"a","type":"INLINE"}]}}`)

	assert.Equal(t, []string{
		"Start step 'nope' not found in steps list",
		"Found orphaned/unreachable steps: a",
	}, messages(result.Errors))
}

func TestReachability_DanglingIndependentOfReachability(t *testing.T) {
	result := checkReachability(t, `{"resolver":{"start":"a","steps":[
		{"id":"a","type":"INLINE"},
		{"id":"lost","type":"INLINE","next":"ghost"}
	]}}`)

	assert.Equal(t, []string{
		"Found orphaned/unreachable steps: lost",
		"Step 'lost' references non-existent next step 'ghost'",
	}, messages(result.Errors))
	assert.Equal(t, schema.CodeDanglingRef, result.Errors[1].Code)
	assert.Equal(t, "resolver.steps[1]", result.Errors[1].Location)
}

func TestReachability_ConditionalFanOut(t *testing.T) {
	doc := `{"resolver":{"start":"check","steps":[
		{"id":"check","type":"CONDITIONAL","conditional":{
			"expressions":[{"operation":"EQ","next":"x"},{"operation":"NEQ","next":"y"}],
			"next":"z"}},
		{"id":"x","type":"LOGGER"},
		{"id":"y","type":"LOGGER"},
		{"id":"z","type":"LOGGER"}
	]}}`

	result := checkReachability(t, doc)
	assert.True(t, result.Valid(), messages(result.Errors))

	got := reachable(t, doc)
	assert.Equal(t, map[string]bool{"check": true, "x": true, "y": true, "z": true}, got)
}

func TestReachability_ConditionalDefaultFallsBackToStepNext(t *testing.T) {
	got := reachable(t, `{"resolver":{"start":"check","steps":[
		{"id":"check","type":"CONDITIONAL","next":"after","conditional":{"expressions":[]}},
		{"id":"after","type":"LOGGER"}
	]}}`)
	assert.True(t, got["after"])
}

func TestReachability_CycleTerminates(t *testing.T) {
	result := checkReachability(t, `{"resolver":{"start":"a","steps":[
		{"id":"a","type":"INLINE","next":"b"},
		{"id":"b","type":"INLINE","next":"a"}
	]}}`)
	assert.True(t, result.Valid())
}

func TestReachability_CompositeExitEdge(t *testing.T) {
	doc := `{"resolver":{"start":"c","steps":[
		{"id":"c","type":"COMPOSITE","next":"ignored","composite":{"next":"after","steps":[
			{"id":"inner","type":"INLINE"}
		]}},
		{"id":"after","type":"LOGGER"},
		{"id":"ignored","type":"LOGGER"}
	]}}`

	got := reachable(t, doc)
	assert.True(t, got["after"], "composite.next wins over the step's own next")
	assert.False(t, got["ignored"])
	assert.False(t, got["inner"], "nested ids are not part of the top-level set")
}

func TestReachability_LoopFallsBackToFirstStep(t *testing.T) {
	result := checkReachability(t, `{"resolver":{"start":"l","steps":[
		{"id":"l","type":"LOOP","loop":{"steps":[
			{"id":"one","type":"INLINE","next":"two"},
			{"id":"two","type":"INLINE"}
		]}}
	]}}`)
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestReachability_NestedOrphanIsWarning(t *testing.T) {
	result := checkReachability(t, `{"resolver":{"start":"c","steps":[
		{"id":"c","type":"COMPOSITE","composite":{"start":"one","steps":[
			{"id":"one","type":"INLINE"},
			{"id":"two","type":"INLINE"}
		]}}
	]}}`)

	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "Unreachable steps inside composite of step 'c': two", result.Warnings[0].Message)
	assert.Equal(t, "resolver.steps[0].composite.steps", result.Warnings[0].Location)
}

func TestReachability_ScopesDoNotShareVisitedSets(t *testing.T) {
	// The nested "a" is a different step from the top-level "a". Visiting
	// the outer one must not mark the inner one as reached, or the reverse.
	result := checkReachability(t, `{"resolver":{"start":"a","steps":[
		{"id":"a","type":"INLINE","next":"c"},
		{"id":"c","type":"COMPOSITE","composite":{"start":"b","steps":[
			{"id":"b","type":"INLINE","next":"a"},
			{"id":"a","type":"INLINE"}
		]}}
	]}}`)

	assert.True(t, result.Valid(), messages(result.Errors))
	assert.Empty(t, result.Warnings)
}

func TestReachability_NestedIDDoesNotSatisfyOuterOrphan(t *testing.T) {
	result := checkReachability(t, `{"resolver":{"start":"c","steps":[
		{"id":"c","type":"COMPOSITE","composite":{"steps":[{"id":"x","type":"INLINE"}]}},
		{"id":"x","type":"INLINE"}
	]}}`)

	assert.Equal(t, []string{"Found orphaned/unreachable steps: x"}, messages(result.Errors))
}

func TestReachability_DuplicateIDsUseFirst(t *testing.T) {
	got := reachable(t, `{"resolver":{"start":"a","steps":[
		{"id":"a","type":"INLINE","next":"b"},
		{"id":"a","type":"INLINE","next":"c"},
		{"id":"b","type":"LOGGER"},
		{"id":"c","type":"LOGGER"}
	]}}`)
	assert.True(t, got["b"])
	assert.False(t, got["c"])
}

// --- Reference validity ---

func TestReferences_AllPositions(t *testing.T) {
	result := checkReachability(t, `{"resolver":{"start":"c","steps":[
		{"id":"c","type":"COMPOSITE","next":"d","composite":{"start":"nowhere","next":"gone","steps":[
			{"id":"inner","type":"INLINE","next":"outerOnly"}
		]}},
		{"id":"d","type":"CONDITIONAL","conditional":{
			"expressions":[{"operation":"EQ","next":"l"},{"operation":"EQ","next":"missing"}],
			"next":"void"}},
		{"id":"l","type":"LOOP","loop":{"next":"lost","steps":[]}},
		{"id":"outerOnly","type":"LOGGER"}
	]}}`)

	assert.Equal(t, []string{
		"Found orphaned/unreachable steps: d, l, outerOnly",
		"Composite step 'c' references non-existent start step 'nowhere'",
		"Composite step 'c' references non-existent next step 'gone'",
		"Step 'inner' references non-existent next step 'outerOnly'",
		"Conditional step 'd' expression 2 references non-existent next step 'missing'",
		"Conditional step 'd' references non-existent default next step 'void'",
		"Loop step 'l' references non-existent next step 'lost'",
	}, messages(result.Errors))
	assert.Equal(t, "resolver.steps[0].composite.steps[0]", result.Errors[3].Location)
}

func TestReachable_NilResolver(t *testing.T) {
	assert.Empty(t, Reachable(nil))
}

func TestReachableFrom_NestedBody(t *testing.T) {
	v, err := schema.Decode([]byte(`{"resolver":{"start":"c","steps":[
		{"id":"c","type":"COMPOSITE","composite":{"start":"x","steps":[
			{"id":"x","type":"INLINE","next":"y"},
			{"id":"y","type":"INLINE"},
			{"id":"z","type":"INLINE"}
		]}}
	]}}`))
	require.NoError(t, err)

	body := schema.NewFlow(v).Resolver.Value.Steps.Value[0].Composite.Value
	got := ReachableFrom(body.StepList(), body.Entry())
	assert.Equal(t, map[string]bool{"x": true, "y": true}, got)
	assert.Empty(t, ReachableFrom(body.StepList(), ""))
}
