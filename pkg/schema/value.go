package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Kind tags a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a parsed JSON value. Objects remember their key order so that
// everything derived from a document is reported in document order.
type Value struct {
	Kind   Kind
	Str    string // string contents, or the number literal
	Bool   bool
	Items  []*Value
	Keys   []string
	Fields map[string]*Value
}

// ErrSkip tells Walk not to descend into the current value.
var ErrSkip = errors.New("skip")

// Decode parses a JSON document into a Value tree. Syntax errors (including
// trailing data) are reported as a PARSE_ERROR FlowError.
func Decode(data []byte) (*Value, error) {
	if _, err := jsonschema.UnmarshalJSON(bytes.NewReader(data)); err != nil {
		return nil, NewErrorf(ErrCodeParse, "invalid JSON: %v", err).WithCause(err)
	}
	raw, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, NewErrorf(ErrCodeParse, "invalid JSON: %v", err).WithCause(err)
	}
	v, err := build(raw, typ)
	if err != nil {
		return nil, NewErrorf(ErrCodeParse, "invalid JSON: %v", err).WithCause(err)
	}
	return v, nil
}

func build(raw []byte, typ jsonparser.ValueType) (*Value, error) {
	switch typ {
	case jsonparser.Null:
		return &Value{Kind: KindNull}, nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindBool, Bool: b}, nil
	case jsonparser.Number:
		return &Value{Kind: KindNumber, Str: string(raw)}, nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindString, Str: s}, nil
	case jsonparser.Array:
		return buildArray(raw)
	case jsonparser.Object:
		return buildObject(raw)
	default:
		return nil, fmt.Errorf("unsupported JSON value %q", truncate(string(raw), 32))
	}
}

func buildArray(raw []byte) (*Value, error) {
	v := &Value{Kind: KindArray, Items: []*Value{}}
	var buildErr error
	_, err := jsonparser.ArrayEach(raw, func(item []byte, t jsonparser.ValueType, _ int, err error) {
		if buildErr != nil {
			return
		}
		if err != nil {
			buildErr = err
			return
		}
		child, err := build(item, t)
		if err != nil {
			buildErr = err
			return
		}
		v.Items = append(v.Items, child)
	})
	if buildErr != nil {
		return nil, buildErr
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// buildObject scans the object itself and hands each member value to
// jsonparser.Get. Keys are unescaped exactly once; ObjectEach cannot be
// used because it mis-scans keys ending in an escaped backslash.
func buildObject(raw []byte) (*Value, error) {
	v := &Value{Kind: KindObject, Fields: map[string]*Value{}}
	i := skipSpace(raw, 0)
	if i >= len(raw) || raw[i] != '{' {
		return nil, fmt.Errorf("expected object at offset %d", i)
	}
	i = skipSpace(raw, i+1)
	if i < len(raw) && raw[i] == '}' {
		return v, nil
	}
	for {
		if i >= len(raw) || raw[i] != '"' {
			return nil, fmt.Errorf("expected object key at offset %d", i)
		}
		end := keyEnd(raw, i+1)
		if end < 0 {
			return nil, fmt.Errorf("unterminated object key at offset %d", i)
		}
		key, err := jsonparser.Unescape(raw[i+1:end], nil)
		if err != nil {
			return nil, err
		}
		i = skipSpace(raw, end+1)
		if i >= len(raw) || raw[i] != ':' {
			return nil, fmt.Errorf("expected ':' at offset %d", i)
		}
		item, t, off, err := jsonparser.Get(raw[i+1:])
		if err != nil {
			return nil, err
		}
		child, err := build(item, t)
		if err != nil {
			return nil, err
		}
		k := string(key)
		// Duplicate keys: last value wins, first position is kept.
		if _, dup := v.Fields[k]; !dup {
			v.Keys = append(v.Keys, k)
		}
		v.Fields[k] = child

		i = skipSpace(raw, i+1+off)
		if i >= len(raw) {
			return nil, fmt.Errorf("unterminated object")
		}
		switch raw[i] {
		case ',':
			i = skipSpace(raw, i+1)
		case '}':
			return v, nil
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", raw[i], i)
		}
	}
}

// keyEnd returns the index of the quote closing the string that starts at
// from, or -1.
func keyEnd(raw []byte, from int) int {
	for i := from; i < len(raw); i++ {
		switch raw[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func skipSpace(raw []byte, i int) int {
	for i < len(raw) {
		switch raw[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// IsNull reports whether v is absent or JSON null.
func (v *Value) IsNull() bool {
	return v == nil || v.Kind == KindNull
}

// IsObject reports whether v is a JSON object.
func (v *Value) IsObject() bool {
	return v != nil && v.Kind == KindObject
}

// IsArray reports whether v is a JSON array.
func (v *Value) IsArray() bool {
	return v != nil && v.Kind == KindArray
}

// Has reports whether the object declares key (its value may be null).
func (v *Value) Has(key string) bool {
	if !v.IsObject() {
		return false
	}
	_, ok := v.Fields[key]
	return ok
}

// Get returns the value for key on an object.
func (v *Value) Get(key string) (*Value, bool) {
	if !v.IsObject() {
		return nil, false
	}
	child, ok := v.Fields[key]
	return child, ok
}

// Text returns a string form for use in identifiers and messages: string
// contents, number literals, "true"/"false", "" for null, compact JSON for
// containers.
func (v *Value) Text() string {
	if v == nil {
		return ""
	}
	switch v.Kind {
	case KindNull:
		return ""
	case KindString, KindNumber:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.JSON()
	}
}

// JSON renders v as compact JSON, keeping object key order.
func (v *Value) JSON() string {
	var b strings.Builder
	v.writeJSON(&b)
	return b.String()
}

func (v *Value) writeJSON(b *strings.Builder) {
	if v == nil {
		b.WriteString("null")
		return
	}
	switch v.Kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		b.WriteString(strconv.FormatBool(v.Bool))
	case KindNumber:
		b.WriteString(v.Str)
	case KindString:
		q, _ := json.Marshal(v.Str)
		b.Write(q)
	case KindArray:
		b.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				b.WriteByte(',')
			}
			item.writeJSON(b)
		}
		b.WriteByte(']')
	case KindObject:
		b.WriteByte('{')
		for i, k := range v.Keys {
			if i > 0 {
				b.WriteByte(',')
			}
			q, _ := json.Marshal(k)
			b.Write(q)
			b.WriteByte(':')
			v.Fields[k].writeJSON(b)
		}
		b.WriteByte('}')
	}
}

// MarshalJSON keeps object key order when a Value is embedded in other output.
func (v *Value) MarshalJSON() ([]byte, error) {
	return []byte(v.JSON()), nil
}

// Equal reports deep equality. Numbers compare by literal.
func (v *Value) Equal(o *Value) bool {
	if v.IsNull() || o.IsNull() {
		return v.IsNull() && o.IsNull()
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindNumber, KindString:
		return v.Str == o.Str
	case KindArray:
		if len(v.Items) != len(o.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
		return true
	default:
		if len(v.Fields) != len(o.Fields) {
			return false
		}
		for k, a := range v.Fields {
			b, ok := o.Fields[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
}

// Walk visits v and every nested value depth first, in document order.
// Paths extend root with ".key" and "[i]". Returning ErrSkip from fn skips
// the value's children; any other error stops the walk.
func Walk(v *Value, root string, fn func(path string, v *Value) error) error {
	if v == nil {
		return nil
	}
	if err := fn(root, v); err != nil {
		if errors.Is(err, ErrSkip) {
			return nil
		}
		return err
	}
	switch v.Kind {
	case KindObject:
		for _, k := range v.Keys {
			if err := Walk(v.Fields[k], JoinKey(root, k), fn); err != nil {
				return err
			}
		}
	case KindArray:
		for i, item := range v.Items {
			if err := Walk(item, JoinIndex(root, i), fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// JoinKey appends an object key to a location path.
func JoinKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// JoinIndex appends an array index to a location path.
func JoinIndex(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
