package fsm

import (
	"testing"
	"time"

	"github.com/fla/fsmforge/pkg/action"
	"github.com/fla/fsmforge/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRunsToCompletion(t *testing.T) {
	def := &FSMDef{
		ID:     "demo",
		States: []StateDef{{ID: "middle", Action: "echo"}},
		Xitions: []XitionDef{
			{ID: XitionID{From: Start, To: "middle"}, Schema: schema.Any()},
			{ID: XitionID{From: "middle", To: End}, Schema: schema.Any()},
		},
	}
	reg := buildTwoStepRegistry(XitionID{From: "middle", To: End})
	eng, err := NewEngine(def, reg, schema.Base(), schema.DynamicRegistry{}, nil)
	require.NoError(t, err)

	sess := StartFSM("t1", eng, SessionConfig{}, nil)
	require.NoError(t, sess.Submit(Event{"id": []interface{}{string(Start), "middle"}}))

	outcome, err := sess.Await(2 * time.Second)
	require.NoError(t, err)
	assert.False(t, outcome.Cancelled)
	assert.NoError(t, outcome.Err)
	assert.Len(t, outcome.Trail, 2)
}

func TestSessionStopCancelsRunInProgress(t *testing.T) {
	blocked := make(chan struct{})
	reg := action.NewRegistry()
	reg.Register(action.Registration{Name: "block", ConfigSchema: schema.Any(), Factory: func(config map[string]interface{}, fsmDef, xition, state interface{}) (action.Invocable, error) {
		return action.InvocableFunc(func(ctxRaw, eventRaw, trailRaw interface{}, continuation action.Continuation) error {
			<-blocked
			ctx := ctxRaw.(Context)
			return continuation(ctx, Event{"id": []interface{}{"stuck", string(End)}})
		}), nil
	}})
	reg.Register(action.Registration{Name: "end", ConfigSchema: schema.Any(), Factory: func(config map[string]interface{}, fsmDef, xition, state interface{}) (action.Invocable, error) {
		return action.InvocableFunc(func(ctxRaw, eventRaw, trailRaw interface{}, continuation action.Continuation) error {
			ctx := ctxRaw.(Context)
			trail := trailRaw.(*Trail)
			return continuation(ctx, trail.Entries())
		}), nil
	}})

	def := &FSMDef{
		ID:      "demo",
		States:  []StateDef{{ID: "stuck", Action: "block"}},
		Xitions: []XitionDef{{ID: XitionID{From: Start, To: "stuck"}, Schema: schema.Any()}},
	}
	eng, err := NewEngine(def, reg, schema.Base(), schema.DynamicRegistry{}, nil)
	require.NoError(t, err)

	sess := StartFSM("t2", eng, SessionConfig{}, nil)
	require.NoError(t, sess.Submit(Event{"id": []interface{}{string(Start), "stuck"}}))

	sess.Stop()
	submitErr := sess.Submit(Event{"id": []interface{}{"stuck", "anywhere"}})
	assert.Error(t, submitErr, "submit observes cancellation even while an action is still in flight")

	// Unblock the in-flight action so run()'s loop can reach its own
	// cancellation check and resolve the outcome.
	close(blocked)
	outcome, err := sess.Await(2 * time.Second)
	require.NoError(t, err)
	assert.True(t, outcome.Cancelled)
}

func TestSubmitAfterStopFails(t *testing.T) {
	reg := action.NewRegistry()
	reg.Register(action.Registration{Name: "end", ConfigSchema: schema.Any(), Factory: func(config map[string]interface{}, fsmDef, xition, state interface{}) (action.Invocable, error) {
		return action.InvocableFunc(func(ctxRaw, eventRaw, trailRaw interface{}, continuation action.Continuation) error {
			return continuation(ctxRaw, eventRaw)
		}), nil
	}})
	def := &FSMDef{ID: "demo"}
	eng, err := NewEngine(def, reg, schema.Base(), schema.DynamicRegistry{}, nil)
	require.NoError(t, err)

	sess := StartFSM("t3", eng, SessionConfig{}, nil)
	sess.Stop()
	_, _ = sess.Await(2 * time.Second)

	err = sess.Submit(Event{"id": []interface{}{string(Start), string(End)}})
	assert.Error(t, err)
}
