package schema

import (
	"fmt"
	"sort"

	"github.com/fla/fsmforge/pkg/fsmerr"
)

// ValidationError reports where and why a value failed to satisfy a schema.
// path is a slice of map keys / collection indices from the schema root to
// the point of failure, for readable diagnostics.
type ValidationError struct {
	Path    []string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("value-invalid at %v: %s", e.Path, e.Message)
}

// Validate performs structural validation of value against schema,
// resolving refs against registry. Closed maps reject unlisted keys;
// optional entries may be absent but, once present, must satisfy their
// schema (null is rejected unless that entry's schema itself admits it via
// KindAny or an explicit union branch). Unions are tried left to right; the
// first branch that validates wins.
func Validate(s Value, value interface{}, registry *Registry) error {
	return validate(s, value, registry, nil)
}

func validate(s Value, value interface{}, registry *Registry, path []string) error {
	switch s.Kind {
	case KindAny:
		return nil
	case KindString:
		if _, ok := value.(string); !ok {
			return fail(path, "expected string, got %T", value)
		}
		return nil
	case KindInt:
		switch value.(type) {
		case int, int32, int64, float64:
			return nil
		default:
			return fail(path, "expected int, got %T", value)
		}
	case KindBool:
		if _, ok := value.(bool); !ok {
			return fail(path, "expected boolean, got %T", value)
		}
		return nil
	case KindLiteral:
		if value != s.Literal {
			return fail(path, "expected literal %v, got %v", s.Literal, value)
		}
		return nil
	case KindEnum:
		for _, candidate := range s.Enum {
			if candidate == value {
				return nil
			}
		}
		return fail(path, "value %v not among enumerated values %v", value, s.Enum)
	case KindMap:
		return validateMap(s, value, registry, path)
	case KindCollection:
		return validateCollection(s, value, registry, path)
	case KindUnion:
		var errs []error
		for i, branch := range s.Branches {
			if err := validate(branch, value, registry, append(path, fmt.Sprintf("branch[%d]", i))); err == nil {
				return nil
			} else {
				errs = append(errs, err)
			}
		}
		return fail(path, "no union branch matched: %v", errs)
	case KindRef:
		target, ok := registry.Lookup(s.Ref)
		if !ok {
			return fsmerr.Coded(fsmerr.Validation, fsmerr.CodeRefUnresolved, "ref-unresolved: %q", s.Ref)
		}
		return validate(target, value, registry, path)
	default:
		return fsmerr.Coded(fsmerr.Config, fsmerr.CodeSchemaInvalid, "schema-invalid: unknown kind %v", s.Kind)
	}
}

func validateMap(s Value, value interface{}, registry *Registry, path []string) error {
	m, ok := value.(map[string]interface{})
	if !ok {
		return fail(path, "expected map, got %T", value)
	}
	seen := map[string]bool{}
	for _, entry := range s.Entries {
		seen[entry.Key] = true
		v, present := m[entry.Key]
		if !present {
			if entry.Optional {
				continue
			}
			return fail(append(path, entry.Key), "required key %q is missing", entry.Key)
		}
		if err := validate(entry.Value, v, registry, append(path, entry.Key)); err != nil {
			return err
		}
	}
	if s.Closed {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				return fail(append(path, k), "unexpected key %q on closed map", k)
			}
		}
	}
	return nil
}

func validateCollection(s Value, value interface{}, registry *Registry, path []string) error {
	vals, ok := value.([]interface{})
	if !ok {
		return fail(path, "expected collection, got %T", value)
	}
	if s.Collection == Set {
		seen := make([]interface{}, 0, len(vals))
		for _, v := range vals {
			for _, prior := range seen {
				if prior == v {
					return fail(path, "duplicate element %v in set", v)
				}
			}
			seen = append(seen, v)
		}
	}
	for i, v := range vals {
		if err := validate(*s.Elem, v, registry, append(path, fmt.Sprintf("[%d]", i))); err != nil {
			return err
		}
	}
	return nil
}

func fail(path []string, format string, args ...interface{}) error {
	cp := make([]string, len(path))
	copy(cp, path)
	return &ValidationError{Path: cp, Message: fmt.Sprintf(format, args...)}
}

// Expand recursively replaces references whose target name is present in
// inlineSet with the referenced schema, leaving other refs untouched. It
// does not mutate s.
func Expand(s Value, registry *Registry, inlineSet map[string]bool) Value {
	switch s.Kind {
	case KindRef:
		if inlineSet[s.Ref] {
			if target, ok := registry.Lookup(s.Ref); ok {
				return Expand(target, registry, inlineSet)
			}
			// Passes through verbatim: unresolved refs are only an error
			// outside emission (spec §4.1).
			return s
		}
		return s
	case KindMap:
		out := s
		out.Entries = make([]Entry, len(s.Entries))
		for i, e := range s.Entries {
			out.Entries[i] = Entry{Key: e.Key, Optional: e.Optional, Value: Expand(e.Value, registry, inlineSet)}
		}
		return out
	case KindCollection:
		out := s
		elem := Expand(*s.Elem, registry, inlineSet)
		out.Elem = &elem
		return out
	case KindUnion:
		out := s
		out.Branches = make([]Value, len(s.Branches))
		for i, b := range s.Branches {
			out.Branches[i] = Expand(b, registry, inlineSet)
		}
		return out
	default:
		return s
	}
}

// DynamicFunc is a dynamic schema function: (context, xition) -> schema.
// context and xition are passed as interface{} so this package never
// depends on package fsm — the fsm package supplies its own Context and
// Xition values, type-asserting them back inside the function bodies it
// registers. A dynamic function must be total on valid contexts and
// idempotent (spec §4.1).
type DynamicFunc func(ctx interface{}, xition interface{}) (Value, error)

// DynamicRegistry is an id -> DynamicFunc lookup, the "id→schema" context
// key from spec §3.
type DynamicRegistry map[string]DynamicFunc

// Resolve implements spec §4.1's resolve operation: if schemaOrKey is a
// string, look it up in dyn and call it with (ctx, xition); otherwise
// schemaOrKey must already be a Value, returned unchanged.
func Resolve(schemaOrKey interface{}, ctx interface{}, xition interface{}, dyn DynamicRegistry) (Value, error) {
	key, isKey := schemaOrKey.(string)
	if !isKey {
		v, ok := schemaOrKey.(Value)
		if !ok {
			return Value{}, fsmerr.Coded(fsmerr.Config, fsmerr.CodeSchemaInvalid, "schema-invalid: xition schema is neither a Value nor a string key (got %T)", schemaOrKey)
		}
		return v, nil
	}
	fn, ok := dyn[key]
	if !ok {
		return Value{}, fsmerr.Coded(fsmerr.Config, fsmerr.CodeSchemaInvalid, "schema-invalid: no dynamic schema function registered for key %q", key)
	}
	return fn(ctx, xition)
}
