// Package emission implements schema emission (spec §4.8): given a root
// schema and a registry, compute the transitive closure of references,
// count occurrences, and split into an inlined schema plus an auxiliary
// registry of multi-use refs. Emission is purely structural and never
// affects validation — it only shapes what gets written into an LLM prompt.
package emission

import "github.com/fla/fsmforge/pkg/schema"

// Result is the {inlined-schema, auxiliary-registry} pair spec §4.8 names.
type Result struct {
	Inlined   schema.Value
	Auxiliary map[string]schema.Value
}

// Emit computes occurrence counts for every ref reachable from root (walked
// through registry, following refs transitively), inlines every ref used
// exactly once, and keeps every ref used two or more times in Auxiliary.
// Refs to unknown names pass through verbatim per spec §4.1.
func Emit(rootName string, registry *schema.Registry) Result {
	root, ok := registry.Lookup(rootName)
	if !ok {
		return Result{Inlined: schema.Ref(rootName), Auxiliary: map[string]schema.Value{}}
	}
	counts := map[string]int{}
	countRefs(root, registry, counts, map[string]bool{})

	inlineSet := map[string]bool{}
	aux := map[string]schema.Value{}
	for name, n := range counts {
		if n <= 1 {
			inlineSet[name] = true
		} else if target, ok := registry.Lookup(name); ok {
			aux[name] = target
		}
	}

	return Result{
		Inlined:   schema.Expand(root, registry, inlineSet),
		Auxiliary: aux,
	}
}

// countRefs walks s, incrementing counts for every ref name encountered and
// recursing into each ref's target exactly once per distinct occurrence
// path (visiting, not memoizing globally, so a ref used from two different
// parents is counted twice even if its own subtree is identical).
func countRefs(s schema.Value, registry *schema.Registry, counts map[string]int, visiting map[string]bool) {
	switch s.Kind {
	case schema.KindRef:
		counts[s.Ref]++
		if visiting[s.Ref] {
			// Recursive schema: don't loop forever counting the same
			// cycle; the first visit already recorded the occurrence.
			return
		}
		if target, ok := registry.Lookup(s.Ref); ok {
			next := map[string]bool{}
			for k := range visiting {
				next[k] = true
			}
			next[s.Ref] = true
			countRefs(target, registry, counts, next)
		}
	case schema.KindMap:
		for _, e := range s.Entries {
			countRefs(e.Value, registry, counts, visiting)
		}
	case schema.KindCollection:
		countRefs(*s.Elem, registry, counts, visiting)
	case schema.KindUnion:
		for _, b := range s.Branches {
			countRefs(b, registry, counts, visiting)
		}
	}
}
