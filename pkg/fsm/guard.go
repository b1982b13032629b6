package fsm

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Guard is a compiled expr-lang expression guarding a transition's
// availability, the config-driven replacement for the teacher's
// TransitionCondition function values (state_machine.go) — since FSM
// definitions here are data (YAML/JSON) rather than Go source, a guard
// must be expressible as a string and compiled once at load time instead
// of written as a closure.
type Guard struct {
	source   string
	compiled *vm.Program
}

// CompileGuard compiles an expr-lang boolean expression evaluated against
// the run's context (exposed to the expression as "context", a
// map[string]interface{}) and, for the rare guard that needs it, the
// event payload that triggered evaluation (exposed as "event").
func CompileGuard(source string) (*Guard, error) {
	if source == "" {
		return nil, nil
	}
	env := map[string]interface{}{
		"context": map[string]interface{}{},
		"event":   map[string]interface{}{},
	}
	program, err := expr.Compile(source, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, err
	}
	return &Guard{source: source, compiled: program}, nil
}

// Eval runs the guard against ctx and event, returning whether the
// transition it guards is currently available. A nil Guard always passes.
func (g *Guard) Eval(ctx Context, event Event) (bool, error) {
	if g == nil {
		return true, nil
	}
	env := map[string]interface{}{
		"context": ctx.Snapshot(),
		"event":   map[string]interface{}(event),
	}
	out, err := expr.Run(g.compiled, env)
	if err != nil {
		return false, err
	}
	b, _ := out.(bool)
	return b, nil
}

// Source returns the expression's original text, for trail/debug display.
func (g *Guard) Source() string {
	if g == nil {
		return ""
	}
	return g.source
}
