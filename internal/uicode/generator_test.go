package uicode

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rendis/flowlint/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const messageSchema = `{
	"type": "object",
	"properties": {
		"channel": {"type": "string", "title": "Channel", "description": "Target channel"},
		"text": {"type": "string"},
		"priority": {"type": "string", "enum": ["low", "high"], "default": "low"},
		"meta": {
			"type": "object",
			"properties": {
				"thread": {"type": "string"},
				"author": {"type": "object", "properties": {"id": {"type": "integer"}}, "required": ["id"]}
			}
		},
		"blocks": {
			"type": "array",
			"items": {"type": "object", "properties": {"kind": {"type": "string"}}, "required": ["kind"]}
		},
		"tags": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["channel", "text"]
}`

func generate(t *testing.T, src string) *Form {
	t.Helper()
	form, err := NewGenerator().Generate([]byte(src))
	require.NoError(t, err)
	return form
}

func keys(t *Target) []string {
	out := make([]string, len(t.Fields))
	for i, a := range t.Fields {
		out[i] = a.Key
	}
	return out
}

func TestGenerate_RootShape(t *testing.T) {
	form := generate(t, messageSchema)
	assert.Equal(t, "map", form.ActionType)
	assert.Equal(t, "object", form.TargetType)
	assert.Equal(t, []string{"channel", "text", "priority", "meta", "blocks", "tags"}, keys(form.Target),
		"fields follow schema order")
}

func TestGenerate_PropertyDefaults(t *testing.T) {
	form := generate(t, messageSchema)
	text := form.Target.Field("text")
	require.NotNil(t, text)

	assert.Equal(t, "map", text.ActionType)
	assert.Equal(t, "", text.Target)
	assert.Equal(t, `"string"`, text.TargetType.JSON())
	assert.Equal(t, `[]`, text.Enum.JSON())
	assert.Equal(t, `""`, text.Title.JSON())
	assert.Equal(t, `""`, text.Description.JSON())
	assert.Equal(t, `""`, text.Default.JSON())
	assert.True(t, text.IsRequired)
	assert.Equal(t, "MANUAL", text.AutoEscape)
	assert.False(t, text.Selected)
	assert.False(t, text.ByUser)
	assert.Equal(t, "text", text.Path)
	assert.Equal(t, "", text.Field)
	assert.Equal(t, []string{"text"}, text.Position)
	assert.Empty(t, text.Actions)
	assert.Nil(t, text.Items)
}

func TestGenerate_CopiesSchemaMetadata(t *testing.T) {
	form := generate(t, messageSchema)

	channel := form.Target.Field("channel")
	assert.Equal(t, `"Channel"`, channel.Title.JSON())
	assert.Equal(t, `"Target channel"`, channel.Description.JSON())

	priority := form.Target.Field("priority")
	assert.Equal(t, `["low","high"]`, priority.Enum.JSON())
	assert.Equal(t, `"low"`, priority.Default.JSON())
	assert.False(t, priority.IsRequired)
}

func TestGenerate_NestedObject(t *testing.T) {
	form := generate(t, messageSchema)
	meta := form.Target.Field("meta")
	nested := meta.NestedTarget()
	require.NotNil(t, nested)
	assert.Equal(t, []string{"thread", "author"}, keys(nested))

	thread := nested.Field("thread")
	assert.Equal(t, "meta.thread", thread.Path)
	assert.Equal(t, "meta", thread.Field)
	assert.Equal(t, []string{"meta", "thread"}, thread.Position)

	id := nested.Field("author").NestedTarget().Field("id")
	require.NotNil(t, id)
	assert.Equal(t, "meta.author.id", id.Path)
	assert.Equal(t, "meta.author", id.Field)
	assert.True(t, id.IsRequired)
}

func TestGenerate_ArrayOfObjects(t *testing.T) {
	form := generate(t, messageSchema)
	blocks := form.Target.Field("blocks")
	require.NotNil(t, blocks.Items)
	assert.Equal(t, "", blocks.Target)
	assert.Equal(t, "map", blocks.Items.ActionType)

	kind := blocks.Items.Target.Field("kind")
	require.NotNil(t, kind)
	assert.Equal(t, "blocks.kind", kind.Path)
	assert.True(t, kind.IsRequired)

	assert.Nil(t, form.Target.Field("tags").Items, "scalar arrays get no items form")
}

func TestGenerate_JSONKeepsOrderAndSpelling(t *testing.T) {
	form := generate(t, `{"type":"object","properties":{"b":{"type":"string"},"a":{"type":"number"}}}`)
	out, err := json.Marshal(form)
	require.NoError(t, err)

	s := string(out)
	assert.Less(t, strings.Index(s, `"b":{`), strings.Index(s, `"a":{`))
	assert.Contains(t, s, `"isRequred":false`)
	assert.Contains(t, s, `"targetType":"object"`)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	target := decoded["target"].(map[string]any)
	assert.Equal(t, "number", target["a"].(map[string]any)["targetType"])
}

func TestGenerate_NoProperties(t *testing.T) {
	form := generate(t, `{"type":"object"}`)
	assert.Empty(t, form.Target.Fields)

	out, err := json.Marshal(form)
	require.NoError(t, err)
	assert.JSONEq(t, `{"actionType":"map","target":{},"targetType":"object"}`, string(out))
}

func TestGenerate_InvalidSchemas(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"not json", `{"type":`},
		{"not an object", `[1,2]`},
		{"bad keyword value", `{"type":"object","properties":{"a":{"type":42}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator().Generate([]byte(tt.src))
			require.Error(t, err)

			var flowErr *schema.FlowError
			require.True(t, errors.As(err, &flowErr))
			assert.Equal(t, schema.ErrCodeSchema, flowErr.Code)
		})
	}
}

func TestGenerator_CachesCompiledSchemas(t *testing.T) {
	g := NewGenerator()
	_, err := g.Generate([]byte(messageSchema))
	require.NoError(t, err)
	_, err = g.Generate([]byte(messageSchema))
	require.NoError(t, err)
	assert.Equal(t, 1, g.Compiled())

	_, err = g.Generate([]byte(`{"type":"object"}`))
	require.NoError(t, err)
	assert.Equal(t, 2, g.Compiled())
}

func TestGenerator_Concurrent(t *testing.T) {
	g := NewGenerator()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			form, err := g.Generate([]byte(messageSchema))
			assert.NoError(t, err)
			assert.Len(t, form.Target.Fields, 6)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, g.Compiled())
}
