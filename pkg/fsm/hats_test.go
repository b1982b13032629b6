package fsm

import (
	"testing"

	"github.com/fla/fsmforge/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandHatsRewritesSatelliteIDs(t *testing.T) {
	hat := Hat{
		Name: "retry",
		States: []StateDef{
			{ID: Anchor},
			{ID: "failed", Action: "end"},
		},
		Xitions: []XitionDef{
			{ID: XitionID{From: Anchor, To: "failed"}, Schema: schema.Any()},
			{ID: XitionID{From: "failed", To: Anchor}, Schema: schema.Any()},
		},
	}

	def := &FSMDef{
		ID:    "demo",
		Hats:  map[string]Hat{"retry": hat},
		States: []StateDef{
			{ID: "work", Action: "llm", Hats: []string{"retry"}},
		},
		Xitions: []XitionDef{
			{ID: XitionID{From: Start, To: "work"}, Schema: schema.Any()},
		},
	}

	expanded, err := ExpandHats(def)
	require.NoError(t, err)

	var sawSatellite bool
	for _, s := range expanded.States {
		if s.ID == State("work.failed") {
			sawSatellite = true
		}
	}
	assert.True(t, sawSatellite, "hat's satellite state is rewritten under its anchor")

	_, ok := expanded.XitionByID(XitionID{From: "work", To: "work.failed"})
	assert.True(t, ok, "hat transition out of the anchor is rewritten to the concrete anchor state")
	_, ok = expanded.XitionByID(XitionID{From: "work.failed", To: "work"})
	assert.True(t, ok, "hat transition back to the anchor placeholder resolves to the concrete anchor, not a satellite")
}

func TestExpandHatsUnknownHatIsError(t *testing.T) {
	def := &FSMDef{
		ID:     "demo",
		Hats:   map[string]Hat{},
		States: []StateDef{{ID: "work", Hats: []string{"nonexistent"}}},
	}
	_, err := ExpandHats(def)
	assert.Error(t, err)
}

func TestRewriteStatePreservesStartAndEnd(t *testing.T) {
	assert.Equal(t, Start, rewriteState("work", Start))
	assert.Equal(t, End, rewriteState("work", End))
	assert.Equal(t, State("work"), rewriteState("work", Anchor))
	assert.Equal(t, State("work.failed"), rewriteState("work", "failed"))
}
