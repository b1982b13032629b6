// Package subfsmaction implements the sub-FSM action (SPEC_FULL.md's
// supplemented nested-session feature): running a child FSM to completion
// on the same action registry as its parent, with the parent's schema
// registry layered underneath the child's own, and reporting back to the
// parent with a single synthesized event carrying the child's trail.
package subfsmaction

import (
	"fmt"
	"time"

	"github.com/fla/fsmforge/pkg/action"
	"github.com/fla/fsmforge/pkg/fsm"
	"github.com/fla/fsmforge/pkg/schema"
	"go.uber.org/zap"
)

// Name is the registry key for this action.
const Name = "sub-fsm"

// Defs is the set of sub-FSM definitions this action may launch, resolved
// by name from a state's configuration block (the same keyed-registry
// pattern pkg/llmclient.Registry uses for named LLM clients).
type Defs struct {
	defs map[string]*fsm.FSMDef
	cfgs map[string]map[fsm.State]map[string]interface{}
}

// NewDefs returns an empty set of sub-FSM definitions.
func NewDefs() *Defs {
	return &Defs{defs: map[string]*fsm.FSMDef{}, cfgs: map[string]map[fsm.State]map[string]interface{}{}}
}

// Register associates name with a ready-to-run sub-FSM definition and the
// per-state action configuration its states require.
func (d *Defs) Register(name string, def *fsm.FSMDef, stateConfigs map[fsm.State]map[string]interface{}) {
	d.defs[name] = def
	d.cfgs[name] = stateConfigs
}

func (d *Defs) lookup(name string) (*fsm.FSMDef, map[fsm.State]map[string]interface{}, bool) {
	def, ok := d.defs[name]
	return def, d.cfgs[name], ok
}

// ConfigSchema validates the action's per-state configuration block.
func ConfigSchema() schema.Value {
	return schema.Map(false, schema.Entry{Key: "fsm", Value: schema.String()})
}

// Register installs the sub-fsm action. actions is the shared registry the
// child session resolves its own actions from (spec supplement: "sharing
// the parent's action registry"); schemas is the registry layered
// underneath each child's own schemas map; next is the transition the
// parent takes once the child completes.
func Register(reg *action.Registry, defs *Defs, actions *action.Registry, schemas *schema.Registry, dynamic schema.DynamicRegistry, log *zap.Logger, awaitTimeout time.Duration, next fsm.XitionID) {
	reg.Register(action.Registration{
		Name:         Name,
		ConfigSchema: ConfigSchema(),
		Factory: func(config map[string]interface{}, fsmDefRaw, xitionRaw, stateRaw interface{}) (action.Invocable, error) {
			name, _ := config["fsm"].(string)
			subDef, subCfgs, ok := defs.lookup(name)
			if !ok {
				return nil, fmt.Errorf("sub-fsm action: no such sub-fsm %q", name)
			}

			engine, err := fsm.NewEngine(subDef, actions, schema.Compose(schemas, subDef.Schemas), dynamic, subCfgs)
			if err != nil {
				return nil, fmt.Errorf("sub-fsm action: building %q: %w", name, err)
			}

			return action.InvocableFunc(func(ctxRaw, eventRaw, trailRaw interface{}, continuation action.Continuation) error {
				return invoke(ctxRaw, subDef, engine, log, awaitTimeout, next, continuation)
			}), nil
		},
	})
}

func invoke(ctxRaw interface{}, subDef *fsm.FSMDef, engine *fsm.Engine, log *zap.Logger, awaitTimeout time.Duration, next fsm.XitionID, continuation action.Continuation) error {
	ctx, _ := ctxRaw.(fsm.Context)

	entry, ok := firstState(subDef)
	if !ok {
		return fmt.Errorf("sub-fsm action: %q has no transition out of start", subDef.ID)
	}

	sub := fsm.StartFSM(subDef.ID, engine, fsm.SessionConfig{}, log)
	initial := fsm.Event{"id": []interface{}{string(fsm.Start), string(entry)}}
	if err := sub.Submit(initial); err != nil {
		return err
	}

	outcome, err := sub.Await(awaitTimeout)
	if err != nil {
		sub.Stop()
		return err
	}
	if outcome.Err != nil {
		return fmt.Errorf("sub-fsm %q failed: %w", subDef.ID, outcome.Err)
	}

	nextCtx := ctx.With("subfsm_result:"+subDef.ID, outcome.FinalContext.Snapshot())
	nextEvent := fsm.Event{
		"id":       []interface{}{string(next.From), string(next.To)},
		"subtrail": outcome.Trail,
	}
	return continuation(nextCtx, nextEvent)
}

// firstState finds the state the sub-FSM's {start -> X} transition enters.
func firstState(def *fsm.FSMDef) (fsm.State, bool) {
	for _, x := range def.Xitions {
		if x.ID.From == fsm.Start {
			return x.ID.To, true
		}
	}
	return "", false
}
