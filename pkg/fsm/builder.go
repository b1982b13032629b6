package fsm

import "github.com/fla/fsmforge/pkg/schema"

// DefBuilder provides a fluent, chainable API for constructing an FSMDef
// in Go code, the programmatic counterpart to BuildDef's document-driven
// path — grounded on the teacher's FSMBuilder chaining pattern
// (builder.go), generalized from Transition/Event/Condition/Action values
// to states, typed transitions, and schemas.
type DefBuilder struct {
	def *FSMDef
	err error
}

// NewDefBuilder starts building an FSMDef with the given id.
func NewDefBuilder(id string) *DefBuilder {
	return &DefBuilder{def: &FSMDef{
		ID:      id,
		Schemas: map[string]schema.Value{},
		Hats:    map[string]Hat{},
	}}
}

// Describe sets the FSM's description.
func (b *DefBuilder) Describe(description string) *DefBuilder {
	b.def.Description = description
	return b
}

// Prompt appends an FSM-level prompt.
func (b *DefBuilder) Prompt(prompt string) *DefBuilder {
	b.def.Prompts = append(b.def.Prompts, prompt)
	return b
}

// Schema registers a named schema usable by ref from transitions.
func (b *DefBuilder) Schema(name string, s schema.Value) *DefBuilder {
	b.def.Schemas[name] = s
	return b
}

// Hat registers a reusable hat by name.
func (b *DefBuilder) Hat(name string, hat Hat) *DefBuilder {
	b.def.Hats[name] = hat
	return b
}

// State adds a state with the given action and, optionally, hats.
func (b *DefBuilder) State(id State, action string, hats ...string) *DefBuilder {
	b.def.States = append(b.def.States, StateDef{ID: id, Action: action, Hats: hats})
	return b
}

// StatePrompts appends prompts to the state contributed to the prompt
// stack while the machine sits there. Must be called after State for the
// same id.
func (b *DefBuilder) StatePrompts(id State, prompts ...string) *DefBuilder {
	for i := range b.def.States {
		if b.def.States[i].ID == id {
			b.def.States[i].Prompts = append(b.def.States[i].Prompts, prompts...)
			return b
		}
	}
	b.err = errNoSuchBuilderState(id)
	return b
}

// Xition adds a transition whose schema is a concrete schema.Value.
func (b *DefBuilder) Xition(from, to State, s schema.Value) *DefBuilder {
	b.def.Xitions = append(b.def.Xitions, XitionDef{ID: XitionID{From: from, To: to}, Schema: s})
	return b
}

// DynamicXition adds a transition whose schema is resolved at call time by
// a dynamic schema function, looked up by dynamicKey (spec §4.1).
func (b *DefBuilder) DynamicXition(from, to State, dynamicKey string) *DefBuilder {
	b.def.Xitions = append(b.def.Xitions, XitionDef{ID: XitionID{From: from, To: to}, Schema: dynamicKey})
	return b
}

// WithLabel sets the most recently added transition's label/description.
func (b *DefBuilder) WithLabel(label, description string) *DefBuilder {
	if n := len(b.def.Xitions); n > 0 {
		b.def.Xitions[n-1].Label = label
		b.def.Xitions[n-1].Description = description
	}
	return b
}

// WithGuard compiles and attaches a guard expression to the most recently
// added transition.
func (b *DefBuilder) WithGuard(expression string) *DefBuilder {
	if b.err != nil {
		return b
	}
	g, err := CompileGuard(expression)
	if err != nil {
		b.err = err
		return b
	}
	if n := len(b.def.Xitions); n > 0 {
		b.def.Xitions[n-1].When = g
	}
	return b
}

// Omit marks the most recently added transition as omit-from-trail.
func (b *DefBuilder) Omit() *DefBuilder {
	if n := len(b.def.Xitions); n > 0 {
		b.def.Xitions[n-1].Omit = true
	}
	return b
}

// Build expands hats, validates, and returns the finished FSMDef.
func (b *DefBuilder) Build() (*FSMDef, error) {
	if b.err != nil {
		return nil, b.err
	}
	expanded, err := ExpandHats(b.def)
	if err != nil {
		return nil, err
	}
	if err := expanded.Validate(); err != nil {
		return nil, err
	}
	return expanded, nil
}

type builderError string

func (e builderError) Error() string { return string(e) }

func errNoSuchBuilderState(id State) error {
	return builderError("fsm builder: no such state " + string(id) + " (call State before StatePrompts)")
}
