// Package fsm implements the orchestration engine: typed finite state
// machines whose transitions are schema-validated JSON-like events, driven
// by named actions (LLM calls, MCP bridge lifecycle, sub-FSMs).
package fsm

import (
	"fmt"

	"github.com/fla/fsmforge/pkg/schema"
)

// State identifies a state by id within an FSM definition.
// "start" and "end" are reserved: every run begins at Start and Stop()/the
// end action resolve a run's completion once State reaches End.
type State string

const (
	Start State = "start"
	End   State = "end"

	// Cancelled names the synthetic trail record a stopped session's
	// final trail ends with (spec §5); it is never a real state any FSM
	// definition declares.
	Cancelled State = "cancelled"
)

// XitionID is the ordered [from,to] pair that names a transition.
type XitionID struct {
	From State
	To   State
}

// String formats a XitionID for logging and error messages.
func (x XitionID) String() string { return fmt.Sprintf("[%s->%s]", x.From, x.To) }

// Event is an untyped mapping the engine accepts from an action or an
// external caller. Its mandatory "id" field carries the XitionID the event
// claims to trigger; every other field is payload, validated against the
// transition's schema before it is accepted into the trail.
type Event map[string]interface{}

// ID extracts and parses the event's mandatory "id" field, accepting a
// XitionID, a [2]string, or a two-element []interface{} of strings (the
// shapes an event arrives in depending on whether it was constructed in Go
// code or decoded off the wire).
func (e Event) ID() (XitionID, error) {
	raw, ok := e["id"]
	if !ok {
		return XitionID{}, fmt.Errorf("event has no \"id\" field")
	}
	switch v := raw.(type) {
	case XitionID:
		return v, nil
	case [2]string:
		return XitionID{From: State(v[0]), To: State(v[1])}, nil
	case []interface{}:
		if len(v) != 2 {
			return XitionID{}, fmt.Errorf("event id must be a 2-element pair, got %d elements", len(v))
		}
		from, ok1 := v[0].(string)
		to, ok2 := v[1].(string)
		if !ok1 || !ok2 {
			return XitionID{}, fmt.Errorf("event id elements must be strings")
		}
		return XitionID{From: State(from), To: State(to)}, nil
	default:
		return XitionID{}, fmt.Errorf("event id has unsupported type %T", raw)
	}
}

// StateDef is one state of an FSM definition: its id, the name of the
// action invoked on entry, any prompts contributed to the prompt stack
// while the machine sits in this state, and the hats it wears (reusable
// transition fragments expanded into concrete ids before the engine ever
// sees them — see hats.go).
type StateDef struct {
	ID      State
	Action  string
	Prompts []string
	Hats    []string
}

// XitionDef is one transition of an FSM definition: its id, descriptive
// metadata contributed to the prompt stack, its schema (either a resolved
// schema.Value or a string key naming a dynamic schema function resolved
// per spec §4.1), and an Omit flag excluding it from human-facing trail
// rendering (used for high-frequency bridge/cache bookkeeping transitions).
type XitionDef struct {
	ID          XitionID
	Label       string
	Description string
	Prompts     []string
	Schema      interface{} // schema.Value or string (dynamic schema key)
	Omit        bool
	When        *Guard // optional availability guard, nil means always available
}

// FSMDef is an immutable, already-hat-expanded FSM definition.
type FSMDef struct {
	ID          string
	Description string
	Prompts     []string
	Schemas     map[string]schema.Value
	Hats        map[string]Hat
	States      []StateDef
	Xitions     []XitionDef
}

// StateByID finds a state definition by id. The reserved End state is
// synthesized with the built-in "end" action if the definition doesn't
// list it explicitly.
func (d *FSMDef) StateByID(id State) (StateDef, bool) {
	for _, s := range d.States {
		if s.ID == id {
			return s, true
		}
	}
	if id == End {
		return StateDef{ID: End, Action: "end"}, true
	}
	return StateDef{}, false
}

// XitionByID finds a transition definition by its [from,to] id.
func (d *FSMDef) XitionByID(id XitionID) (XitionDef, bool) {
	for _, x := range d.Xitions {
		if x.ID == id {
			return x, true
		}
	}
	return XitionDef{}, false
}

// OutgoingFrom returns every transition definition whose From == state, in
// definition order. This is the set the LLM action unions together to
// build the schema it asks the model to satisfy (spec §4.6).
func (d *FSMDef) OutgoingFrom(state State) []XitionDef {
	var out []XitionDef
	for _, x := range d.Xitions {
		if x.ID.From == state {
			out = append(out, x)
		}
	}
	return out
}

// OutgoingAvailable is OutgoingFrom filtered by each transition's guard
// (if any), evaluated against ctx and the event that just arrived at
// state. Guards are a SPEC_FULL.md supplement over the distilled spec's
// schema-only transitions — most FSM definitions never set one, and
// OutgoingFrom alone is equivalent to OutgoingAvailable for them.
func (d *FSMDef) OutgoingAvailable(state State, ctx Context, event Event) ([]XitionDef, error) {
	all := d.OutgoingFrom(state)
	out := make([]XitionDef, 0, len(all))
	for _, x := range all {
		ok, err := x.When.Eval(ctx, event)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, x)
		}
	}
	return out, nil
}

// Validate checks the structural invariants a definition must satisfy
// before the engine can run it: every transition's endpoints are known
// states (or start/end), transition ids are unique, and every transition
// carries a schema.
func (d *FSMDef) Validate() error {
	known := map[State]bool{Start: true, End: true}
	for _, s := range d.States {
		if s.ID == "" {
			return fmt.Errorf("fsm %q: state with empty id", d.ID)
		}
		known[s.ID] = true
	}
	seen := map[XitionID]bool{}
	for _, x := range d.Xitions {
		if seen[x.ID] {
			return fmt.Errorf("fsm %q: duplicate transition id %s", d.ID, x.ID)
		}
		seen[x.ID] = true
		if !known[x.ID.From] {
			return fmt.Errorf("fsm %q: transition %s references unknown state %q", d.ID, x.ID, x.ID.From)
		}
		if !known[x.ID.To] {
			return fmt.Errorf("fsm %q: transition %s references unknown state %q", d.ID, x.ID, x.ID.To)
		}
		if x.Schema == nil {
			return fmt.Errorf("fsm %q: transition %s has no schema", d.ID, x.ID)
		}
	}
	return nil
}
