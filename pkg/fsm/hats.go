package fsm

import "fmt"

// Hat is a reusable fragment of states and transitions — e.g. a standard
// "retryable" wrapper, or the cache-refresh loop every MCP-backed FSM
// needs — authored once and worn by any number of anchor states.
//
// A hat's own State/Xition ids are written relative to the hat, using the
// literal anchor placeholder state Anchor ("@"); expansion rewrites every
// id of the form "@" or "<hat-state>" into "<anchor>" or
// "<anchor>.<hat-state>" so two states wearing the same hat never collide.
type Hat struct {
	Name    string
	States  []StateDef
	Xitions []XitionDef
}

// Anchor is the placeholder state id a hat's own definition uses to refer
// back to the state wearing it.
const Anchor State = "@"

// rewriteState maps a hat-local state id onto its expansion under anchor.
func rewriteState(anchor State, s State) State {
	if s == Anchor {
		return anchor
	}
	if s == Start || s == End {
		return s
	}
	return State(fmt.Sprintf("%s.%s", anchor, s))
}

// ExpandHats rewrites every state's Hats list into concrete states and
// transitions, returning a new FSMDef with Hats resolved away. Expansion
// is deterministic: the same (anchor, hat name) pair always produces the
// same rewritten ids, so two runs loading the same source definition
// produce byte-identical expanded definitions.
func ExpandHats(def *FSMDef) (*FSMDef, error) {
	out := &FSMDef{
		ID:          def.ID,
		Description: def.Description,
		Prompts:     def.Prompts,
		Schemas:     def.Schemas,
		Hats:        def.Hats,
	}

	for _, s := range def.States {
		stateCopy := s
		stateCopy.Hats = nil
		out.States = append(out.States, stateCopy)

		for _, hatName := range s.Hats {
			hat, ok := def.Hats[hatName]
			if !ok {
				return nil, fmt.Errorf("fsm %q: state %q wears unknown hat %q", def.ID, s.ID, hatName)
			}
			expanded, err := expandHat(hat, s.ID)
			if err != nil {
				return nil, fmt.Errorf("fsm %q: expanding hat %q on state %q: %w", def.ID, hatName, s.ID, err)
			}
			out.States = append(out.States, expanded.States...)
			out.Xitions = append(out.Xitions, expanded.Xitions...)
		}
	}
	out.Xitions = append(out.Xitions, def.Xitions...)

	return out, nil
}

type expandedHat struct {
	States  []StateDef
	Xitions []XitionDef
}

func expandHat(hat Hat, anchor State) (expandedHat, error) {
	var out expandedHat
	for _, s := range hat.States {
		if s.ID == Anchor {
			// The anchor state itself already exists; a hat only
			// contributes its satellite states.
			continue
		}
		rewritten := s
		rewritten.ID = rewriteState(anchor, s.ID)
		out.States = append(out.States, rewritten)
	}
	for _, x := range hat.Xitions {
		rewritten := x
		rewritten.ID = XitionID{
			From: rewriteState(anchor, x.ID.From),
			To:   rewriteState(anchor, x.ID.To),
		}
		out.Xitions = append(out.Xitions, rewritten)
	}
	return out, nil
}
