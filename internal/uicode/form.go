package uicode

import (
	"bytes"
	"encoding/json"

	"github.com/rendis/flowlint/pkg/schema"
)

// Form is the root "map action" of a request schema.
type Form struct {
	ActionType string  `json:"actionType"`
	Target     *Target `json:"target"`
	TargetType string  `json:"targetType"`
}

// Target holds the field actions of one object level, in schema order.
type Target struct {
	Fields []*Action
}

// Field returns the action for key, or nil.
func (t *Target) Field(key string) *Action {
	if t == nil {
		return nil
	}
	for _, a := range t.Fields {
		if a.Key == key {
			return a
		}
	}
	return nil
}

// MarshalJSON renders the target as an object keyed by field name, keeping
// schema order.
func (t *Target) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	if t != nil {
		for i, a := range t.Fields {
			if i > 0 {
				b.WriteByte(',')
			}
			k, err := json.Marshal(a.Key)
			if err != nil {
				return nil, err
			}
			b.Write(k)
			b.WriteByte(':')
			v, err := json.Marshal(a)
			if err != nil {
				return nil, err
			}
			b.Write(v)
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Action maps one schema property. The isRequred spelling is what the flow
// editor reads.
type Action struct {
	ActionType  string        `json:"actionType"`
	Target      any           `json:"target"` // "" or *Target for object properties
	TargetType  *schema.Value `json:"targetType"`
	Actions     []any         `json:"actions"`
	Enum        *schema.Value `json:"enum"`
	Title       *schema.Value `json:"title"`
	Description *schema.Value `json:"description"`
	IsRequired  bool          `json:"isRequred"`
	Default     *schema.Value `json:"default"`
	AutoEscape  string        `json:"autoEscape"`
	Selected    bool          `json:"selected"`
	ByUser      bool          `json:"byUser"`
	Path        string        `json:"path"`
	Field       string        `json:"field"`
	Position    []string      `json:"position"`
	Key         string        `json:"key"`
	Items       *Form         `json:"items,omitempty"`
}

// NestedTarget returns the child target of an object property, or nil.
func (a *Action) NestedTarget() *Target {
	t, _ := a.Target.(*Target)
	return t
}
