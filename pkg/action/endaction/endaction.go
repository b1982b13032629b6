// Package endaction implements the built-in "end" action every FSM's
// reserved End state resolves to (spec §4.5 step 9): for End, the engine
// passes a completion callback in the continuation slot, and this action
// calls it once with the final context and the trail entries, which
// resolves the session's completion one-shot.
//
// This package (and its sibling action packages) lives outside pkg/action
// itself so it can import pkg/fsm — pkg/fsm imports pkg/action for the
// Invocable/Continuation contract, so pkg/action cannot import pkg/fsm
// without a cycle. Wiring code (the demo, or any other top-level caller)
// imports both and calls Register.
package endaction

import (
	"github.com/fla/fsmforge/pkg/action"
	"github.com/fla/fsmforge/pkg/fsm"
	"github.com/fla/fsmforge/pkg/schema"
)

// Name is the registry key for this action.
const Name = "end"

// Register installs the end action under Name. Its configuration schema
// accepts anything (it never reads configuration).
func Register(reg *action.Registry) {
	reg.Register(action.Registration{
		Name:         Name,
		ConfigSchema: schema.Any(),
		Factory: func(config map[string]interface{}, fsmDef interface{}, xition interface{}, state interface{}) (action.Invocable, error) {
			return action.InvocableFunc(invoke), nil
		},
	})
}

func invoke(ctxRaw interface{}, eventRaw interface{}, trailRaw interface{}, continuation action.Continuation) error {
	ctx, _ := ctxRaw.(fsm.Context)
	trail, _ := trailRaw.(*fsm.Trail)
	var entries []fsm.TrailEnvelope
	if trail != nil {
		entries = trail.Entries()
	}
	return continuation(ctx, entries)
}
