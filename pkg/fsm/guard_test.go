package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilGuardAlwaysPasses(t *testing.T) {
	var g *Guard
	ok, err := g.Eval(NewContext(), Event{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", g.Source())
}

func TestCompileGuardEmptySourceIsNil(t *testing.T) {
	g, err := CompileGuard("")
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestGuardEvaluatesAgainstContextAndEvent(t *testing.T) {
	g, err := CompileGuard(`context["retries"] >= 3 && event["kind"] == "error"`)
	require.NoError(t, err)

	ctx := NewContext().With("retries", 3)
	ok, err := g.Eval(ctx, Event{"kind": "error"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Eval(NewContext().With("retries", 1), Event{"kind": "error"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileGuardRejectsInvalidExpression(t *testing.T) {
	_, err := CompileGuard("this is not an expression (")
	assert.Error(t, err)
}
