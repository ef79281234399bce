package schema

// Presence distinguishes a key that is missing from one declared as null.
// The downstream deserializer treats the two differently, so the model keeps
// them apart.
type Presence uint8

const (
	Absent Presence = iota
	Null
	Set
)

// Field is one optional attribute of a document object.
type Field[T any] struct {
	Presence Presence
	Value    T
	Raw      *Value
}

// Declared reports whether the key exists, null or not.
func (f Field[T]) Declared() bool { return f.Presence != Absent }

// IsNull reports whether the key exists with a null value.
func (f Field[T]) IsNull() bool { return f.Presence == Null }

// IsSet reports whether the key exists with a non-null value.
func (f Field[T]) IsSet() bool { return f.Presence == Set }

// Record gives presence queries over the keys a document object declared.
type Record struct {
	raw *Value
}

// Declares reports whether the object has key, null or not.
func (r Record) Declares(key string) bool { return r.raw.Has(key) }

// Missing returns the keys from want the object does not declare, in the
// order given.
func (r Record) Missing(want []string) []string {
	var out []string
	for _, k := range want {
		if !r.raw.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Raw returns the underlying JSON object.
func (r Record) Raw() *Value { return r.raw }

// StepType enumerates the step variants the runtime accepts.
type StepType string

const (
	StepTypeComposite   StepType = "COMPOSITE"
	StepTypeInline      StepType = "INLINE"
	StepTypeConditional StepType = "CONDITIONAL"
	StepTypeLoop        StepType = "LOOP"
	StepTypeVariable    StepType = "VARIABLE"
	StepTypeInternalDB  StepType = "INTERNAL_DB"
	StepTypeAPI         StepType = "API"
	StepTypeLogger      StepType = "LOGGER"
)

// StepTypes lists every valid step type.
var StepTypes = []StepType{
	StepTypeComposite, StepTypeInline, StepTypeConditional, StepTypeLoop,
	StepTypeVariable, StepTypeInternalDB, StepTypeAPI, StepTypeLogger,
}

// Valid reports whether t is one of the eight step variants.
func (t StepType) Valid() bool {
	for _, v := range StepTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Flow is the root entity of a flow document.
type Flow struct {
	Record
	ID            Field[string]
	Name          Field[string]
	Status        Field[string]
	InputModelID  Field[string]
	OutputModelID Field[string]
	HeaderModelID Field[string]
	InputModel    Field[*Model]
	OutputModel   Field[*Model]
	HeaderModel   Field[*Model]
	Resolver      Field[*Resolver]
}

// ModelBinding pairs a model object with the id field that must match it.
type ModelBinding struct {
	ModelKey string
	IDKey    string
	Model    Field[*Model]
	ModelID  Field[string]
}

// Models returns the input, output and header bindings in that order.
func (f *Flow) Models() []ModelBinding {
	return []ModelBinding{
		{ModelKey: "inputModel", IDKey: "inputModelId", Model: f.InputModel, ModelID: f.InputModelID},
		{ModelKey: "outputModel", IDKey: "outputModelId", Model: f.OutputModel, ModelID: f.OutputModelID},
		{ModelKey: "headerModel", IDKey: "headerModelId", Model: f.HeaderModel, ModelID: f.HeaderModelID},
	}
}

// Model describes a data contract attached to a flow.
type Model struct {
	Record
	ID   Field[string]
	Name Field[string]
	Type Field[string]
}

// Resolver is the top-level step graph and its entry point.
type Resolver struct {
	Record
	Start Field[string]
	Steps Field[[]*Step]
}

// Step is one node of a resolver graph. Object is false when the document
// holds something other than a JSON object at the step's position.
type Step struct {
	Record
	Index       int
	Object      bool
	ID          Field[string]
	Type        Field[string]
	Next        Field[string]
	Inline      Field[*Inline]
	Composite   Field[*Graph]
	Loop        Field[*Graph]
	Conditional Field[*Conditional]
	Function    Field[*Function]
}

// StepType returns the declared type.
func (s *Step) StepType() StepType { return StepType(s.Type.Value) }

// Graph is the nested body of a COMPOSITE or LOOP step.
type Graph struct {
	Record
	Start Field[string]
	Next  Field[string]
	Steps Field[[]*Step]
}

// StepList returns the nested steps, or nil when none are declared.
func (g *Graph) StepList() []*Step {
	if g == nil {
		return nil
	}
	return g.Steps.Value
}

// Entry returns the id traversal enters the graph at: start when declared,
// otherwise the first declared step.
func (g *Graph) Entry() string {
	if g == nil {
		return ""
	}
	if g.Start.Value != "" {
		return g.Start.Value
	}
	if steps := g.StepList(); len(steps) > 0 {
		return steps[0].ID.Value
	}
	return ""
}

// Conditional is the body of a CONDITIONAL step.
type Conditional struct {
	Record
	Expressions Field[[]*Expression]
	Next        Field[string]
}

// Expression is one branch of a conditional.
type Expression struct {
	Record
	Index     int
	Operation Field[string]
	Next      Field[string]
}

// Function is the connector endpoint descriptor of an API call.
type Function struct {
	Record
	ID            Field[string]
	GroupID       Field[string]
	Name          Field[string]
	Version       Field[string]
	ConnectorID   Field[string]
	Configuration Field[*Value]
}

// Inline is the body of an INLINE step.
type Inline struct {
	Record
	Code          Field[string]
	UICode        Field[*Value]
	QueryExecutor Field[*Value]
}

// NewFlow builds the typed model over a flow object. Missing or mistyped
// members are recorded as such, never rejected.
func NewFlow(v *Value) *Flow {
	return &Flow{
		Record:        Record{raw: v},
		ID:            textField(v, "id"),
		Name:          textField(v, "name"),
		Status:        textField(v, "status"),
		InputModelID:  textField(v, "inputModelId"),
		OutputModelID: textField(v, "outputModelId"),
		HeaderModelID: textField(v, "headerModelId"),
		InputModel:    objectField(v, "inputModel", newModel),
		OutputModel:   objectField(v, "outputModel", newModel),
		HeaderModel:   objectField(v, "headerModel", newModel),
		Resolver:      objectField(v, "resolver", newResolver),
	}
}

func newModel(v *Value) *Model {
	return &Model{
		Record: Record{raw: v},
		ID:     textField(v, "id"),
		Name:   textField(v, "name"),
		Type:   textField(v, "type"),
	}
}

func newResolver(v *Value) *Resolver {
	return &Resolver{
		Record: Record{raw: v},
		Start:  textField(v, "start"),
		Steps:  stepsField(v, "steps"),
	}
}

func newStep(v *Value, index int) *Step {
	s := &Step{Record: Record{raw: v}, Index: index, Object: v.IsObject()}
	if !s.Object {
		return s
	}
	s.ID = textField(v, "id")
	s.Type = textField(v, "type")
	s.Next = textField(v, "next")
	s.Inline = objectField(v, "inline", newInline)
	s.Composite = objectField(v, "composite", newGraph)
	s.Loop = objectField(v, "loop", newGraph)
	s.Conditional = objectField(v, "conditional", newConditional)
	s.Function = objectField(v, "function", newFunction)
	return s
}

func newGraph(v *Value) *Graph {
	return &Graph{
		Record: Record{raw: v},
		Start:  textField(v, "start"),
		Next:   textField(v, "next"),
		Steps:  stepsField(v, "steps"),
	}
}

func newConditional(v *Value) *Conditional {
	c := &Conditional{
		Record: Record{raw: v},
		Next:   textField(v, "next"),
	}
	raw, ok := v.Get("expressions")
	if !ok {
		return c
	}
	c.Expressions = Field[[]*Expression]{Presence: presenceOf(raw), Raw: raw}
	if raw.IsArray() {
		exprs := make([]*Expression, 0, len(raw.Items))
		for i, item := range raw.Items {
			exprs = append(exprs, &Expression{
				Record:    Record{raw: item},
				Index:     i,
				Operation: textField(item, "operation"),
				Next:      textField(item, "next"),
			})
		}
		c.Expressions.Value = exprs
	}
	return c
}

func newFunction(v *Value) *Function {
	f := &Function{
		Record:      Record{raw: v},
		ID:          textField(v, "id"),
		GroupID:     textField(v, "groupId"),
		Name:        textField(v, "name"),
		Version:     textField(v, "version"),
		ConnectorID: textField(v, "connectorId"),
	}
	if raw, ok := v.Get("configuration"); ok {
		f.Configuration = Field[*Value]{Presence: presenceOf(raw), Value: raw, Raw: raw}
	}
	return f
}

func newInline(v *Value) *Inline {
	in := &Inline{
		Record: Record{raw: v},
		Code:   textField(v, "code"),
	}
	if raw, ok := v.Get("uiCode"); ok {
		in.UICode = Field[*Value]{Presence: presenceOf(raw), Value: raw, Raw: raw}
	}
	if raw, ok := v.Get("queryExecutor"); ok {
		in.QueryExecutor = Field[*Value]{Presence: presenceOf(raw), Value: raw, Raw: raw}
	}
	return in
}

func presenceOf(v *Value) Presence {
	if v.IsNull() {
		return Null
	}
	return Set
}

func textField(obj *Value, key string) Field[string] {
	raw, ok := obj.Get(key)
	if !ok {
		return Field[string]{}
	}
	return Field[string]{Presence: presenceOf(raw), Value: raw.Text(), Raw: raw}
}

// objectField decodes key with build when it holds an object. A non-object,
// non-null value is Set with a nil Value; callers inspect Raw.Kind.
func objectField[T any](obj *Value, key string, build func(*Value) T) Field[T] {
	raw, ok := obj.Get(key)
	if !ok {
		return Field[T]{}
	}
	f := Field[T]{Presence: presenceOf(raw), Raw: raw}
	if raw.IsObject() {
		f.Value = build(raw)
	}
	return f
}

func stepsField(obj *Value, key string) Field[[]*Step] {
	raw, ok := obj.Get(key)
	if !ok {
		return Field[[]*Step]{}
	}
	f := Field[[]*Step]{Presence: presenceOf(raw), Raw: raw}
	if raw.IsArray() {
		steps := make([]*Step, 0, len(raw.Items))
		for i, item := range raw.Items {
			steps = append(steps, newStep(item, i))
		}
		f.Value = steps
	}
	return f
}
