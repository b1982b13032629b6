package schema

import (
	"testing"

	"github.com/fla/fsmforge/pkg/fsmerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePrimitives(t *testing.T) {
	reg := Base()
	assert.NoError(t, Validate(String(), "hello", reg))
	assert.Error(t, Validate(String(), 5, reg))
	assert.NoError(t, Validate(Int(), 5, reg))
	assert.NoError(t, Validate(Int(), 5.0, reg), "JSON numbers decode as float64")
	assert.NoError(t, Validate(Any(), nil, reg))
	assert.NoError(t, Validate(Any(), map[string]interface{}{"x": 1}, reg))
}

func TestValidateClosedMapRejectsUnknownKeys(t *testing.T) {
	s := Map(true, Entry{Key: "name", Value: String()})
	reg := Base()

	assert.NoError(t, Validate(s, map[string]interface{}{"name": "a"}, reg))
	assert.Error(t, Validate(s, map[string]interface{}{"name": "a", "extra": 1}, reg))
}

func TestValidateOpenMapAllowsExtraKeys(t *testing.T) {
	s := Map(false, Entry{Key: "name", Value: String()})
	reg := Base()
	assert.NoError(t, Validate(s, map[string]interface{}{"name": "a", "extra": 1}, reg))
}

func TestValidateOptionalEntryMayBeAbsent(t *testing.T) {
	s := Map(true, Entry{Key: "name", Optional: true, Value: String()})
	reg := Base()
	assert.NoError(t, Validate(s, map[string]interface{}{}, reg))
	assert.Error(t, Validate(s, map[string]interface{}{"name": 5}, reg))
}

func TestValidateUnionFirstMatchWins(t *testing.T) {
	s := Union(Literal("a"), String())
	reg := Base()
	assert.NoError(t, Validate(s, "a", reg))
	assert.NoError(t, Validate(s, "b", reg))
	assert.Error(t, Validate(s, 5, reg))
}

func TestValidateCollectionSetRejectsDuplicates(t *testing.T) {
	vec := CollectionOf(Vector, Int())
	set := CollectionOf(Set, Int())
	reg := Base()

	vals := []interface{}{1, 1, 2}
	assert.NoError(t, Validate(vec, vals, reg), "vectors tolerate duplicates")
	assert.Error(t, Validate(set, vals, reg), "sets reject duplicates")
}

func TestValidateRefResolvesThroughRegistry(t *testing.T) {
	reg := Base().Layer(map[string]Value{
		"point": Map(true, Entry{Key: "x", Value: Int()}, Entry{Key: "y", Value: Int()}),
	})
	ref := Ref("point")
	assert.NoError(t, Validate(ref, map[string]interface{}{"x": 1, "y": 2}, reg))
	assert.Error(t, Validate(ref, map[string]interface{}{"x": 1}, reg))
}

func TestValidateUnresolvedRefIsCoded(t *testing.T) {
	err := Validate(Ref("nonexistent"), "anything", Base())
	require.Error(t, err)
	assert.True(t, fsmerr.HasCode(err, fsmerr.CodeRefUnresolved))
}

func TestExpandInlinesOnlySelectedRefs(t *testing.T) {
	reg := Base().Layer(map[string]Value{
		"inlineMe": String(),
		"keepRef":  Int(),
	})
	root := Map(false,
		Entry{Key: "a", Value: Ref("inlineMe")},
		Entry{Key: "b", Value: Ref("keepRef")},
	)

	expanded := Expand(root, reg, map[string]bool{"inlineMe": true})
	assert.Equal(t, KindString, expanded.Entries[0].Value.Kind, "inlineMe is replaced by its target shape")
	assert.Equal(t, KindRef, expanded.Entries[1].Value.Kind, "keepRef is left as a reference")
}

func TestResolveStringKeyCallsDynamicFunc(t *testing.T) {
	dyn := DynamicRegistry{
		"greeting-schema": func(ctx interface{}, xition interface{}) (Value, error) {
			return String(), nil
		},
	}
	v, err := Resolve("greeting-schema", nil, nil, dyn)
	require.NoError(t, err)
	assert.Equal(t, KindString, v.Kind)
}

func TestResolvePassesThroughConcreteValue(t *testing.T) {
	v, err := Resolve(Int(), nil, nil, DynamicRegistry{})
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind)
}

func TestResolveUnknownKeyIsConfigError(t *testing.T) {
	_, err := Resolve("missing", nil, nil, DynamicRegistry{})
	require.Error(t, err)
	assert.True(t, fsmerr.Is(err, fsmerr.Config))
}
