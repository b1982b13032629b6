// Package engine assembles the built-in actions (pkg/action/endaction,
// bridgeaction, cacheaction, llmaction, subfsmaction) into one shared
// action.Registry. It exists purely to avoid the import cycle each of
// those sub-packages would otherwise create with pkg/action and pkg/fsm:
// this is the one place allowed to import all of them at once.
package engine

import (
	"time"

	"github.com/fla/fsmforge/pkg/action"
	"github.com/fla/fsmforge/pkg/action/bridgeaction"
	"github.com/fla/fsmforge/pkg/action/cacheaction"
	"github.com/fla/fsmforge/pkg/action/endaction"
	"github.com/fla/fsmforge/pkg/action/llmaction"
	"github.com/fla/fsmforge/pkg/action/subfsmaction"
	"github.com/fla/fsmforge/pkg/config"
	"github.com/fla/fsmforge/pkg/fsm"
	"github.com/fla/fsmforge/pkg/llmclient"
	"github.com/fla/fsmforge/pkg/schema"
	"go.uber.org/zap"
)

// Wiring names the fixed transitions the built-in actions hand control to
// once their own work completes. An FSM definition that uses bridge-start,
// cache-tick, or sub-fsm states must declare these transitions verbatim so
// the corresponding action knows where to go next (spec §4.4's cache loop,
// §4.3's post-initialize handoff, and the sub-FSM supplement's completion
// event all need a fixed destination known at registration time, not
// something negotiated per invocation).
type Wiring struct {
	// AfterBridgeInit is taken once bridge-start's initialize handshake
	// completes, normally leading into the cache state.
	AfterBridgeInit fsm.XitionID
	// CacheSelfLoop is cache-tick's self-transition while capabilities
	// remain unpopulated.
	CacheSelfLoop fsm.XitionID
	// CacheDone is cache-tick's transition once every capability is
	// populated.
	CacheDone fsm.XitionID
	// AfterSubFSM is taken once a nested sub-FSM session completes.
	AfterSubFSM fsm.XitionID
	// CacheInvalidate is the transition a
	// notifications/{capability}/list_changed message submits to
	// re-enter the cache state (spec §4.4, §6); its To must name the
	// same state as CacheSelfLoop/CacheDone's From.
	CacheInvalidate fsm.XitionID
	// LLMErrorEdges maps a state id to the transition its LLM action
	// should take on retry exhaustion, for states that declare one.
	LLMErrorEdges map[fsm.State]fsm.XitionID
}

// Build returns a fully-populated action registry: the five built-in
// actions registered against the ambient engine configuration, a subFSM
// definition set, and an LLM client registry. Callers add any
// domain-specific actions with reg.Register before passing the registry to
// fsm.NewEngine.
func Build(cfg config.Engine, clients *llmclient.Registry, schemas *schema.Registry, dynamic schema.DynamicRegistry, subDefs *subfsmaction.Defs, wiring Wiring, log *zap.Logger) *action.Registry {
	reg := action.NewRegistry()

	endaction.Register(reg)

	bridgeaction.Register(reg, log,
		time.Duration(cfg.BridgeRequestTimeoutMS)*time.Millisecond,
		time.Duration(cfg.BridgeStopGraceMS)*time.Millisecond,
		wiring.AfterBridgeInit,
		wiring.CacheInvalidate,
	)

	cacheaction.Register(reg,
		time.Duration(cfg.BridgeRequestTimeoutMS)*time.Millisecond,
		wiring.CacheSelfLoop,
		wiring.CacheDone,
	)

	llmaction.Register(reg, clients, schemas, dynamic,
		cfg.LLMMaxRetries,
		time.Duration(cfg.LLMRetryDelayMS)*time.Millisecond,
		wiring.LLMErrorEdges,
	)

	subfsmaction.Register(reg, subDefs, reg, schemas, dynamic, log,
		time.Duration(cfg.BridgeRequestTimeoutMS)*time.Millisecond,
		wiring.AfterSubFSM,
	)

	return reg
}
