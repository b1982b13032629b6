package fsm

import (
	"encoding/json"
	"fmt"

	"github.com/fla/fsmforge/pkg/action"
	"github.com/fla/fsmforge/pkg/fsmerr"
	"github.com/fla/fsmforge/pkg/schema"
)

// Engine is the per-session cooperatively-scheduled loop (spec §4.5, C6).
// One Engine drives exactly one Session; it is never shared or run from
// more than one goroutine at a time — the single-logical-thread guarantee
// comes from run()'s own for-loop, not from locking.
type Engine struct {
	def     *FSMDef
	actions *action.Registry
	schemas *schema.Registry
	dynamic schema.DynamicRegistry

	// stateConfigs holds the per-state configuration blocks NewEngine
	// validated up front; buildAction consults it on every entry to a
	// state, building a fresh action instance each time (actions are
	// instantiated per spec §4.5 step 7, not all at session start).
	stateConfigs map[State]map[string]interface{}
}

// NewEngine validates def, config-checks every state's action up front
// (spec §4.7: "caught before any user event is accepted"), and returns a
// ready-to-run Engine.
func NewEngine(def *FSMDef, actions *action.Registry, schemas *schema.Registry, dynamic schema.DynamicRegistry, stateConfigs map[State]map[string]interface{}) (*Engine, error) {
	if err := def.Validate(); err != nil {
		return nil, fsmerr.New(fsmerr.Config, err)
	}

	for _, s := range def.States {
		cfg := stateConfigs[s.ID]
		if err := actions.ValidateConfig(s.Action, cfg, schemas); err != nil {
			return nil, fmt.Errorf("state %q: %w", s.ID, err)
		}
	}
	// End is always implicitly present with the built-in "end" action,
	// which takes no configuration.
	if _, ok := def.StateByID(End); ok {
		if _, explicit := stateConfigs[End]; !explicit {
			if err := actions.ValidateConfig("end", nil, schemas); err != nil {
				return nil, fmt.Errorf("state %q: %w", End, err)
			}
		}
	}

	return &Engine{def: def, actions: actions, schemas: schemas, dynamic: dynamic, stateConfigs: stateConfigs}, nil
}

// step is the result of running one iteration of the main loop: either a
// continuation event to process next, or a terminal outcome.
type step struct {
	nextCtx   Context
	nextEvent Event
	done      bool
	completed Outcome
}

// Outcome is what a run resolves to (spec §4.5 step 9, §5 cancellation).
type Outcome struct {
	FinalContext Context
	Trail        []TrailEnvelope
	Cancelled    bool
	Err          error
}

// RunStep executes exactly one iteration of the 9-step main loop: resolve
// the transition named by event's id, validate, append to trail, resolve
// and invoke the destination state's action, and return what the action
// produced. The caller (Session) re-enters RunStep with the continuation
// event until a step reports done.
func (e *Engine) RunStep(ctx Context, event Event, trail *Trail) (step, error) {
	xid, err := event.ID()
	if err != nil {
		return step{}, fsmerr.New(fsmerr.Validation, err)
	}

	xition, ok := e.def.XitionByID(xid)
	if !ok {
		return step{}, fsmerr.Coded(fsmerr.Validation, fsmerr.CodeNoSuchTransition, "no transition %s", xid)
	}

	resolved, err := schema.Resolve(xition.Schema, ctx, xition, e.dynamic)
	if err != nil {
		return step{}, err
	}

	payload := map[string]interface{}(event)
	if err := schema.Validate(resolved, payload, e.schemas); err != nil {
		return step{}, fsmerr.Coded(fsmerr.Validation, fsmerr.CodeTransitionInvalid, "transition %s: %v", xid, err)
	}

	if xition.Omit {
		trail.Append(xid, Event{"id": []interface{}{string(xid.From), string(xid.To)}, "omitted": true}, ctx)
	} else {
		trail.Append(xid, event, ctx)
	}

	destState, ok := e.def.StateByID(xid.To)
	if !ok {
		return step{}, fsmerr.Coded(fsmerr.Config, fsmerr.CodeNoSuchAction, "no such state %q", xid.To)
	}

	inv, err := e.buildAction(destState, xition)
	if err != nil {
		return step{}, err
	}

	var result step
	cont := action.Continuation(func(nextContextRaw interface{}, nextEventRaw interface{}) error {
		nextContext, ok := nextContextRaw.(Context)
		if !ok {
			return fmt.Errorf("action for state %q returned context of type %T, want fsm.Context", destState.ID, nextContextRaw)
		}
		nextEvent, ok := nextEventRaw.(Event)
		if !ok {
			return fmt.Errorf("action for state %q returned event of type %T, want fsm.Event", destState.ID, nextEventRaw)
		}
		result = step{nextCtx: nextContext, nextEvent: nextEvent}
		return nil
	})

	if xid.To == End {
		var outcome Outcome
		endCont := action.Continuation(func(finalCtxRaw interface{}, trailRaw interface{}) error {
			finalCtx, _ := finalCtxRaw.(Context)
			outcome = Outcome{FinalContext: finalCtx, Trail: trail.Entries()}
			return nil
		})
		if err := inv.Invoke(ctx, event, trail, endCont); err != nil {
			return step{}, err
		}
		return step{done: true, completed: outcome}, nil
	}

	if err := inv.Invoke(ctx, event, trail, cont); err != nil {
		return step{}, err
	}
	return result, nil
}

func (e *Engine) buildAction(state StateDef, xition XitionDef) (action.Invocable, error) {
	cfg := e.stateConfigs[state.ID]
	actionName := state.Action
	if actionName == "" {
		actionName = "end"
	}
	return e.actions.Build(actionName, cfg, e.schemas, e.def, xition, state)
}

// jsonPayload is a convenience for actions that want to log/serialize an
// event body; kept here rather than in Event itself so event stays a bare
// map type.
func jsonPayload(e Event) string {
	b, err := json.Marshal(map[string]interface{}(e))
	if err != nil {
		return fmt.Sprintf("<unmarshalable event: %v>", err)
	}
	return string(b)
}
