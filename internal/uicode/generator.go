// Package uicode turns an endpoint request schema into the nested
// "map action" tree the flow editor stores as a step's uiCode.
package uicode

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/flowlint/pkg/schema"
)

// Generator builds forms from JSON Schemas. Schemas are compiled once and
// cached by content so malformed schemas are rejected before generation.
type Generator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewGenerator creates a generator with an empty compile cache.
func NewGenerator() *Generator {
	return &Generator{cache: make(map[string]*jsonschema.Schema)}
}

// Generate compiles schemaJSON and produces its form.
func (g *Generator) Generate(schemaJSON []byte) (*Form, error) {
	if _, err := g.getOrCompile(schemaJSON); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeSchema, "invalid request schema: %v", err).WithCause(err)
	}
	doc, err := schema.Decode(schemaJSON)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeSchema, "invalid request schema: %v", err).WithCause(err)
	}
	if !doc.IsObject() {
		return nil, schema.NewErrorf(schema.ErrCodeSchema, "request schema must be an object, got %s", doc.Kind)
	}
	return build(doc, ""), nil
}

// Compiled returns the number of cached schemas.
func (g *Generator) Compiled() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cache)
}

func (g *Generator) getOrCompile(schemaJSON []byte) (*jsonschema.Schema, error) {
	key := string(schemaJSON)

	g.mu.RLock()
	if cached, ok := g.cache[key]; ok {
		g.mu.RUnlock()
		return cached, nil
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Double-check after acquiring write lock.
	if cached, ok := g.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	url := fmt.Sprintf("flowlint://request-schema/%d", len(g.cache))
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	g.cache[key] = compiled
	return compiled, nil
}

func build(node *schema.Value, prefix string) *Form {
	return &Form{ActionType: "map", Target: buildTarget(node, prefix), TargetType: "object"}
}

func buildTarget(node *schema.Value, prefix string) *Target {
	t := &Target{Fields: []*Action{}}
	props, ok := node.Get("properties")
	if !ok || !props.IsObject() {
		return t
	}
	required := requiredSet(node)

	for _, key := range props.Keys {
		prop := props.Fields[key]
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		a := &Action{
			ActionType:  "map",
			Target:      "",
			TargetType:  lookup(prop, "type", &schema.Value{Kind: schema.KindString, Str: "string"}),
			Actions:     []any{},
			Enum:        lookup(prop, "enum", &schema.Value{Kind: schema.KindArray}),
			Title:       lookup(prop, "title", emptyString()),
			Description: lookup(prop, "description", emptyString()),
			IsRequired:  slices.Contains(required, key),
			Default:     lookup(prop, "default", emptyString()),
			AutoEscape:  "MANUAL",
			Path:        path,
			Field:       prefix,
			Position:    strings.Split(path, "."),
			Key:         key,
		}

		switch typeName(prop) {
		case "object":
			a.Target = buildTarget(prop, path)
		case "array":
			if items, ok := prop.Get("items"); ok && typeName(items) == "object" {
				a.Items = build(items, path)
			}
		}
		t.Fields = append(t.Fields, a)
	}
	return t
}

func requiredSet(node *schema.Value) []string {
	req, ok := node.Get("required")
	if !ok || !req.IsArray() {
		return nil
	}
	out := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Kind == schema.KindString {
			out = append(out, item.Str)
		}
	}
	return out
}

func typeName(v *schema.Value) string {
	t, ok := v.Get("type")
	if !ok || t.Kind != schema.KindString {
		return ""
	}
	return t.Str
}

func lookup(v *schema.Value, key string, fallback *schema.Value) *schema.Value {
	if got, ok := v.Get(key); ok {
		return got
	}
	return fallback
}

func emptyString() *schema.Value {
	return &schema.Value{Kind: schema.KindString}
}
