// Package connector resolves connector endpoints from a directory of
// connector description files.
//
// Each file is a JSON array of endpoint items shaped either
// {"name": ..., "contract": ...} or {"node": {"name": ..., "contract": ...}}.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rendis/flowlint/internal/expressions"
	"github.com/rendis/flowlint/pkg/schema"
)

const (
	// findQuery selects every item whose own or nested node name equals $name.
	findQuery = `.[] | select(type == "object") | select((if has("node") then .node.name else .name end) == $name)`
	// namesQuery lists endpoint names in file order.
	namesQuery = `.[] | select(type == "object") | (if has("node") then .node.name else .name end) | select(type == "string")`
	// schemaQuery extracts the serialized request schema of one item.
	schemaQuery = `(if has("node") then .node else . end) | .contract.action.request.schema`
)

// Endpoint is one resolved connector endpoint.
type Endpoint struct {
	Name string `json:"name"`
	File string `json:"file"`
	// Item is the endpoint entry exactly as declared in the connector file.
	Item map[string]any `json:"item"`

	engine *expressions.GoJQEngine
}

// RequestSchema returns contract.action.request.schema, the serialized JSON
// Schema of the endpoint's request.
func (e *Endpoint) RequestSchema(ctx context.Context) ([]byte, error) {
	out, err := e.engine.Query(ctx, schemaQuery, e.Item, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 || out[0] == nil {
		return nil, schema.NewErrorf(schema.ErrCodeSchema,
			"endpoint '%s' has no contract.action.request.schema", e.Name).
			WithDetails(map[string]any{"file": e.File})
	}
	switch s := out[0].(type) {
	case string:
		return []byte(s), nil
	case map[string]any:
		// Some exports inline the schema instead of serializing it.
		return json.Marshal(s)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeSchema,
			"endpoint '%s' request schema must be a string, got %T", e.Name, out[0])
	}
}

// Registry looks endpoints up by name.
type Registry struct {
	dir    string
	engine *expressions.GoJQEngine
	logger *slog.Logger
}

// NewRegistry creates a registry over dir.
func NewRegistry(dir string, engine *expressions.GoJQEngine, logger *slog.Logger) *Registry {
	if engine == nil {
		engine = expressions.NewGoJQEngine()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{dir: dir, engine: engine, logger: logger}
}

// Dir returns the directory the registry reads from.
func (r *Registry) Dir() string {
	return r.dir
}

// Files returns the connector files in the registry, sorted by name.
func (r *Registry) Files() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "read connectors dir %s: %v", r.dir, err).WithCause(err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	return files, nil
}

// Lookup resolves name. A non-empty hint restricts the search to that
// connector file. Without a hint, a name declared in more than one file is
// AMBIGUOUS and the error details list the candidate files.
func (r *Registry) Lookup(ctx context.Context, name, hint string) (*Endpoint, error) {
	if name == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "endpoint name is required")
	}

	if hint != "" {
		items, err := r.load(hint)
		if err != nil {
			return nil, err
		}
		ep, err := r.find(ctx, hint, items, name)
		if err != nil {
			return nil, err
		}
		if ep == nil {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound,
				"endpoint '%s' not found in %s", name, hint)
		}
		return ep, nil
	}

	files, err := r.Files()
	if err != nil {
		return nil, err
	}

	var found []*Endpoint
	for _, f := range files {
		items, err := r.load(f)
		if err != nil {
			r.logger.Warn("skipping connector file", slog.String("file", f), slog.String("error", err.Error()))
			continue
		}
		ep, err := r.find(ctx, f, items, name)
		if err != nil {
			return nil, err
		}
		if ep != nil {
			found = append(found, ep)
		}
	}

	switch len(found) {
	case 0:
		return nil, schema.NewErrorf(schema.ErrCodeNotFound,
			"endpoint '%s' not found in any connector", name)
	case 1:
		return found[0], nil
	default:
		candidates := make([]string, len(found))
		for i, ep := range found {
			candidates[i] = ep.File
		}
		return nil, schema.NewErrorf(schema.ErrCodeAmbiguous,
			"multiple connectors define endpoint '%s': %s; pass the connector file to disambiguate",
			name, strings.Join(candidates, ", ")).
			WithDetails(map[string]any{"endpoint": name, "candidates": candidates})
	}
}

// Endpoints lists the endpoint names declared in one connector file.
func (r *Registry) Endpoints(ctx context.Context, file string) ([]string, error) {
	items, err := r.load(file)
	if err != nil {
		return nil, err
	}
	out, err := r.engine.Query(ctx, namesQuery, items, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out))
	for _, v := range out {
		names = append(names, v.(string))
	}
	return names, nil
}

func (r *Registry) find(ctx context.Context, file string, items []any, name string) (*Endpoint, error) {
	out, err := r.engine.Query(ctx, findQuery, items, map[string]any{"$name": name})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	if len(out) > 1 {
		r.logger.Debug("endpoint declared more than once, using the first",
			slog.String("file", file), slog.String("endpoint", name))
	}
	item, _ := out[0].(map[string]any)
	return &Endpoint{Name: name, File: file, Item: item, engine: r.engine}, nil
}

func (r *Registry) load(file string) ([]any, error) {
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.dir, file)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "connector file %s not found", path).WithCause(err)
		}
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "read connector file %s: %v", path, err).WithCause(err)
	}
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeParse, "connector file %s: %v", path, err).WithCause(err)
	}
	return items, nil
}
