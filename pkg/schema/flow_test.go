package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeFlow(t *testing.T, doc string) *Flow {
	t.Helper()
	v, err := Decode([]byte(doc))
	require.NoError(t, err)
	return NewFlow(v)
}

func TestNewFlow_Presence(t *testing.T) {
	f := decodeFlow(t, `{"id":"orders","status":null,"inputModel":null,"outputModel":{"id":"m1"},"headerModel":"oops"}`)

	assert.True(t, f.ID.IsSet())
	assert.Equal(t, "orders", f.ID.Value)
	assert.True(t, f.Status.IsNull())
	assert.True(t, f.Status.Declared())
	assert.False(t, f.Name.Declared())

	assert.True(t, f.InputModel.IsNull())
	require.NotNil(t, f.OutputModel.Value)
	assert.Equal(t, "m1", f.OutputModel.Value.ID.Value)
	assert.True(t, f.HeaderModel.IsSet())
	assert.Nil(t, f.HeaderModel.Value)
	assert.Equal(t, KindString, f.HeaderModel.Raw.Kind)

	assert.Equal(t, []string{"name", "resolver"}, f.Missing([]string{"id", "name", "status", "resolver"}))
}

func TestNewFlow_Models(t *testing.T) {
	f := decodeFlow(t, `{"inputModelId":"in","inputModel":{"id":"in"}}`)
	bindings := f.Models()
	require.Len(t, bindings, 3)
	assert.Equal(t, "inputModel", bindings[0].ModelKey)
	assert.Equal(t, "inputModelId", bindings[0].IDKey)
	assert.Equal(t, "in", bindings[0].ModelID.Value)
	assert.False(t, bindings[1].Model.Declared())
	assert.Equal(t, "headerModelId", bindings[2].IDKey)
}

func TestNewFlow_Steps(t *testing.T) {
	f := decodeFlow(t, `{"resolver":{"start":"a","steps":[
		{"id":"a","type":"COMPOSITE","composite":{"steps":[{"id":"inner","type":"INLINE"}]},"next":"b"},
		42,
		{"id":"b","type":"CONDITIONAL","conditional":{"expressions":[{"operation":"EQ","next":"a"}]}}
	]}}`)

	r := f.Resolver.Value
	require.NotNil(t, r)
	assert.Equal(t, "a", r.Start.Value)
	steps := r.Steps.Value
	require.Len(t, steps, 3)

	assert.True(t, steps[0].Object)
	assert.Equal(t, StepTypeComposite, steps[0].StepType())
	require.NotNil(t, steps[0].Composite.Value)
	assert.Equal(t, "inner", steps[0].Composite.Value.StepList()[0].ID.Value)
	assert.False(t, steps[0].Loop.Declared())

	assert.False(t, steps[1].Object)
	assert.Equal(t, 1, steps[1].Index)
	assert.Nil(t, steps[1].Edges())

	cond := steps[2].Conditional.Value
	require.NotNil(t, cond)
	require.Len(t, cond.Expressions.Value, 1)
	assert.Equal(t, "EQ", cond.Expressions.Value[0].Operation.Value)
}

func TestStepType_Valid(t *testing.T) {
	for _, st := range StepTypes {
		assert.True(t, st.Valid(), st)
	}
	assert.False(t, StepType("SWITCH").Valid())
	assert.False(t, StepType("").Valid())
}

func TestGraph_Entry(t *testing.T) {
	var g *Graph
	assert.Equal(t, "", g.Entry())
	assert.Nil(t, g.StepList())

	f := decodeFlow(t, `{"resolver":{"steps":[
		{"id":"s1","type":"LOOP","loop":{"steps":[{"id":"first"},{"id":"second"}]}},
		{"id":"s2","type":"LOOP","loop":{"start":"second","steps":[{"id":"first"},{"id":"second"}]}},
		{"id":"s3","type":"LOOP","loop":{"steps":[]}}
	]}}`)
	steps := f.Resolver.Value.Steps.Value
	assert.Equal(t, "first", steps[0].Loop.Value.Entry())
	assert.Equal(t, "second", steps[1].Loop.Value.Entry())
	assert.Equal(t, "", steps[2].Loop.Value.Entry())
}
