package fsm

import (
	"testing"

	"github.com/fla/fsmforge/pkg/action"
	"github.com/fla/fsmforge/pkg/fsmerr"
	"github.com/fla/fsmforge/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoAction advances straight to the given next transition, carrying
// whatever payload the incoming event held under "carry".
func echoAction(next XitionID) action.Invocable {
	return action.InvocableFunc(func(ctxRaw, eventRaw, trailRaw interface{}, continuation action.Continuation) error {
		ctx := ctxRaw.(Context)
		nextEvent := Event{"id": []interface{}{string(next.From), string(next.To)}}
		return continuation(ctx, nextEvent)
	})
}

func buildTwoStepRegistry(middle XitionID) *action.Registry {
	reg := action.NewRegistry()
	reg.Register(action.Registration{Name: "echo", ConfigSchema: schema.Any(), Factory: func(config map[string]interface{}, fsmDef, xition, state interface{}) (action.Invocable, error) {
		return echoAction(middle), nil
	}})
	reg.Register(action.Registration{Name: "end", ConfigSchema: schema.Any(), Factory: func(config map[string]interface{}, fsmDef, xition, state interface{}) (action.Invocable, error) {
		return action.InvocableFunc(func(ctxRaw, eventRaw, trailRaw interface{}, continuation action.Continuation) error {
			ctx := ctxRaw.(Context)
			trail := trailRaw.(*Trail)
			return continuation(ctx, trail.Entries())
		}), nil
	}})
	return reg
}

func TestRunStepAdvancesThroughTransitions(t *testing.T) {
	def := &FSMDef{
		ID: "demo",
		States: []StateDef{
			{ID: "middle", Action: "echo"},
		},
		Xitions: []XitionDef{
			{ID: XitionID{From: Start, To: "middle"}, Schema: schema.Any()},
			{ID: XitionID{From: "middle", To: End}, Schema: schema.Any()},
		},
	}
	reg := buildTwoStepRegistry(XitionID{From: "middle", To: End})

	eng, err := NewEngine(def, reg, schema.Base(), schema.DynamicRegistry{}, nil)
	require.NoError(t, err)

	trail := &Trail{}
	ctx := NewContext()
	event := Event{"id": []interface{}{string(Start), "middle"}}

	s1, err := eng.RunStep(ctx, event, trail)
	require.NoError(t, err)
	assert.False(t, s1.done)
	assert.Equal(t, XitionID{From: "middle", To: End}, mustXitionID(t, s1.nextEvent))

	s2, err := eng.RunStep(s1.nextCtx, s1.nextEvent, trail)
	require.NoError(t, err)
	assert.True(t, s2.done)
	assert.Len(t, s2.completed.Trail, 2)
}

func TestRunStepRejectsUnknownTransition(t *testing.T) {
	def := &FSMDef{
		ID:      "demo",
		States:  []StateDef{{ID: "middle", Action: "echo"}},
		Xitions: []XitionDef{{ID: XitionID{From: Start, To: "middle"}, Schema: schema.Any()}},
	}
	reg := buildTwoStepRegistry(XitionID{From: "middle", To: End})
	eng, err := NewEngine(def, reg, schema.Base(), schema.DynamicRegistry{}, nil)
	require.NoError(t, err)

	_, err = eng.RunStep(NewContext(), Event{"id": []interface{}{"middle", "nowhere"}}, &Trail{})
	require.Error(t, err)
	assert.True(t, fsmerr.HasCode(err, fsmerr.CodeNoSuchTransition))
}

func TestRunStepRejectsSchemaMismatch(t *testing.T) {
	def := &FSMDef{
		ID:     "demo",
		States: []StateDef{{ID: "middle", Action: "echo"}},
		Xitions: []XitionDef{
			{ID: XitionID{From: Start, To: "middle"}, Schema: schema.Map(true, schema.Entry{Key: "id", Value: schema.Any()}, schema.Entry{Key: "n", Value: schema.Int()})},
		},
	}
	reg := buildTwoStepRegistry(XitionID{From: "middle", To: End})
	eng, err := NewEngine(def, reg, schema.Base(), schema.DynamicRegistry{}, nil)
	require.NoError(t, err)

	_, err = eng.RunStep(NewContext(), Event{"id": []interface{}{string(Start), "middle"}}, &Trail{})
	require.Error(t, err)
	assert.True(t, fsmerr.HasCode(err, fsmerr.CodeTransitionInvalid))
}

func TestNewEngineValidatesStateConfigsUpFront(t *testing.T) {
	def := &FSMDef{
		ID:     "demo",
		States: []StateDef{{ID: "middle", Action: "needs-config"}},
		Xitions: []XitionDef{
			{ID: XitionID{From: Start, To: "middle"}, Schema: schema.Any()},
		},
	}
	reg := action.NewRegistry()
	reg.Register(action.Registration{
		Name:         "needs-config",
		ConfigSchema: schema.Map(false, schema.Entry{Key: "required", Value: schema.String()}),
		Factory: func(config map[string]interface{}, fsmDef, xition, state interface{}) (action.Invocable, error) {
			return nil, nil
		},
	})

	_, err := NewEngine(def, reg, schema.Base(), schema.DynamicRegistry{}, nil)
	assert.Error(t, err, "missing required config must be caught at NewEngine, not at first entry")
}

func mustXitionID(t *testing.T, e Event) XitionID {
	t.Helper()
	id, err := e.ID()
	require.NoError(t, err)
	return id
}
