package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntroduceStartsNil(t *testing.T) {
	c := New()
	assert.False(t, c.Introduced(Tools))

	c.Introduce(Tools)
	assert.True(t, c.Introduced(Tools))
	assert.Nil(t, c.Get(Tools))
	assert.False(t, c.Introduced(Prompts))
}

func TestNextToRefreshStableOrder(t *testing.T) {
	c := New()
	c.Introduce(Resources)
	c.Introduce(Tools)
	c.Introduce(Prompts)

	cap, pending := c.NextToRefresh()
	require.True(t, pending)
	assert.Equal(t, Tools, cap, "capabilities walk in Tools, Prompts, Resources order regardless of introduction order")

	c.Set(Tools, Entries{Tools: []ToolEntry{{Name: "search"}}})
	cap, pending = c.NextToRefresh()
	require.True(t, pending)
	assert.Equal(t, Prompts, cap)

	c.Set(Prompts, Entries{})
	c.Set(Resources, Entries{})
	_, pending = c.NextToRefresh()
	assert.False(t, pending, "every introduced capability is populated")
}

func TestInvalidateResetsToNil(t *testing.T) {
	c := New()
	c.Introduce(Tools)
	c.Set(Tools, Entries{Tools: []ToolEntry{{Name: "search"}}})
	require.NotNil(t, c.Get(Tools))

	c.Invalidate(Tools)
	assert.Nil(t, c.Get(Tools))

	// Invalidating a capability never introduced is a no-op, not a panic.
	c.Invalidate(Resources)
	assert.False(t, c.Introduced(Resources))
}

func TestCloneIsIndependent(t *testing.T) {
	c := New()
	c.Introduce(Tools)
	c.Set(Tools, Entries{Tools: []ToolEntry{{Name: "search"}}})

	clone := c.Clone()
	clone.Set(Tools, Entries{Tools: []ToolEntry{{Name: "search"}, {Name: "fetch"}}})

	assert.Len(t, c.Get(Tools).Tools, 1, "mutating the clone must not affect the original")
	assert.Len(t, clone.Get(Tools).Tools, 2)
}
