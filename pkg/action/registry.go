// Package action implements the action registry (spec §4.7, C7) and the
// Invocable/Continuation contract. The concrete actions the engine invokes
// on state entry (the LLM action (§4.6), the bridge lifecycle action, the
// cache-tick action (§4.4), the end action (§4.5 step 9), and the sub-FSM
// action) live in the sub-packages llmaction, bridgeaction, cacheaction,
// endaction and subfsmaction.
package action

import (
	"github.com/fla/fsmforge/pkg/fsmerr"
	"github.com/fla/fsmforge/pkg/schema"
)

// Continuation is what an invocable calls to hand control back to the
// engine: a (possibly updated) context and the next event to process.
// Context and Event are carried as interface{} here, the same way
// schema.DynamicFunc does, so this package never imports pkg/fsm — pkg/fsm
// imports this package to run actions, not the other way around.
type Continuation func(nextContext interface{}, nextEvent interface{}) error

// Invocable is a configured, ready-to-run action instance, resolved for
// one specific (fsm, xition, state) triple by a Factory.
type Invocable interface {
	// Invoke runs the action. It must eventually call continuation exactly
	// once. For the reserved "end" state the engine passes a completion
	// callback as continuation, which the action calls with the final
	// context and trail entries to resolve the session (spec §4.5 step 9).
	Invoke(ctx interface{}, event interface{}, trail interface{}, continuation Continuation) error
}

// InvocableFunc adapts a plain function to Invocable.
type InvocableFunc func(ctx interface{}, event interface{}, trail interface{}, continuation Continuation) error

// Invoke implements Invocable.
func (f InvocableFunc) Invoke(ctx interface{}, event interface{}, trail interface{}, continuation Continuation) error {
	return f(ctx, event, trail, continuation)
}

// Factory builds an Invocable bound to one state of one FSM, given its
// per-state configuration block (already validated against ConfigSchema),
// the owning FSM definition, the transition that is about to be entered,
// and the destination state's id. fsmDef and xition are passed as
// interface{} for the same import-cycle reason as Continuation; the
// concrete actions in the sub-packages type-assert them back to
// *fsm.FSMDef / fsm.XitionDef.
type Factory func(config map[string]interface{}, fsmDef interface{}, xition interface{}, state interface{}) (Invocable, error)

// Registration is one named action: its configuration schema and factory.
type Registration struct {
	Name         string
	ConfigSchema schema.Value
	Factory      Factory
}

// Registry holds every action name the engine may resolve. Registries are
// built once at startup and treated as immutable thereafter, mirroring the
// schema registry's composition discipline (pkg/schema.Registry).
type Registry struct {
	regs map[string]Registration
}

// NewRegistry returns an empty action registry.
func NewRegistry() *Registry {
	return &Registry{regs: map[string]Registration{}}
}

// Register adds or overwrites a named action.
func (r *Registry) Register(reg Registration) {
	r.regs[reg.Name] = reg
}

// Lookup resolves an action by name.
func (r *Registry) Lookup(name string) (Registration, bool) {
	reg, ok := r.regs[name]
	return reg, ok
}

// ValidateConfig checks a per-state configuration block against the named
// action's configuration schema, without instantiating the action. The
// engine calls this for every state at session start (spec §4.7: "caught
// before any user event is accepted"), not lazily on first entry.
func (r *Registry) ValidateConfig(actionName string, config map[string]interface{}, schemaRegistry *schema.Registry) error {
	reg, ok := r.regs[actionName]
	if !ok {
		return fsmerr.Coded(fsmerr.Config, fsmerr.CodeNoSuchAction, "no such action %q", actionName)
	}
	if err := schema.Validate(reg.ConfigSchema, config, schemaRegistry); err != nil {
		return fsmerr.New(fsmerr.Config, err)
	}
	return nil
}

// Build resolves and instantiates the named action for one state, first
// validating its configuration.
func (r *Registry) Build(actionName string, config map[string]interface{}, schemaRegistry *schema.Registry, fsmDef, xition, state interface{}) (Invocable, error) {
	reg, ok := r.regs[actionName]
	if !ok {
		return nil, fsmerr.Coded(fsmerr.Config, fsmerr.CodeNoSuchAction, "no such action %q", actionName)
	}
	if err := schema.Validate(reg.ConfigSchema, config, schemaRegistry); err != nil {
		return nil, fsmerr.New(fsmerr.Config, err)
	}
	return reg.Factory(config, fsmDef, xition, state)
}
