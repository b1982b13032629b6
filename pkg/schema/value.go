// Package schema implements the structural schema kernel: validation,
// reference expansion, and dynamic schema resolution (spec §4.1), plus the
// composite registry that schemas are named and looked up through (§4.2).
package schema

// Kind discriminates the closed sum of schema shapes spec §3 allows.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindAny
	KindMap
	KindCollection
	KindUnion
	KindLiteral
	KindEnum
	KindRef
)

// CollectionKind distinguishes the two homogeneous collection shapes.
type CollectionKind int

const (
	Vector CollectionKind = iota
	Set
)

// Entry is one key of a KindMap schema: a key name, whether it may be
// absent, and the schema its value must satisfy. Entries are ordered —
// order is preserved through Expand and Emission for deterministic output.
type Entry struct {
	Key      string
	Optional bool
	Value    Value
}

// Value is a structural schema value. Exactly one group of fields is
// meaningful per Kind; the zero Value has Kind KindString and so is the
// string schema. Construct Values via the constructors (String, Int, Map,
// Union, ...) rather than struct literals in calling code.
type Value struct {
	Kind Kind

	// KindMap
	Entries []Entry
	Closed  bool

	// KindCollection
	Collection CollectionKind
	Elem       *Value

	// KindUnion
	Branches []Value

	// KindLiteral
	Literal interface{}

	// KindEnum
	Enum []interface{}

	// KindRef
	Ref string
}

func String() Value { return Value{Kind: KindString} }
func Int() Value    { return Value{Kind: KindInt} }
func Bool() Value   { return Value{Kind: KindBool} }
func Any() Value    { return Value{Kind: KindAny} }

func Map(closed bool, entries ...Entry) Value {
	return Value{Kind: KindMap, Closed: closed, Entries: entries}
}

func CollectionOf(kind CollectionKind, elem Value) Value {
	return Value{Kind: KindCollection, Collection: kind, Elem: &elem}
}

func Union(branches ...Value) Value {
	return Value{Kind: KindUnion, Branches: branches}
}

func Literal(v interface{}) Value {
	return Value{Kind: KindLiteral, Literal: v}
}

func Enum(values ...interface{}) Value {
	return Value{Kind: KindEnum, Enum: values}
}

func Ref(name string) Value {
	return Value{Kind: KindRef, Ref: name}
}

// IsWildcardTrue reports whether raw is the boolean literal `true` used as a
// schema shorthand. Per the Open Question in spec §9, this port resolves
// that shorthand as "permit anything" (see SPEC_FULL.md §4.1): a document's
// `schema: true` maps straight to Any() rather than ever reaching a raw bool
// at the Value level. fsm.XitionDoc.Schema carries the raw interface{} so
// the document loader can call this before falling back to a named ref.
func IsWildcardTrue(raw interface{}) bool {
	b, ok := raw.(bool)
	return ok && b
}
