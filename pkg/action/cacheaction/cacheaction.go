// Package cacheaction implements the cache-tick action driving the FSM's
// "cache" state (spec §4.4): while any introduced capability is nil, send
// its `{capability}/list` request and loop; once every introduced
// capability is populated, hand control to the next state.
package cacheaction

import (
	"context"
	"time"

	"github.com/fla/fsmforge/pkg/action"
	"github.com/fla/fsmforge/pkg/bridge"
	"github.com/fla/fsmforge/pkg/cache"
	"github.com/fla/fsmforge/pkg/fsm"
	"github.com/fla/fsmforge/pkg/schema"
)

// Name is the registry key for this action.
const Name = "cache-tick"

// Register installs the cache-tick action. selfLoop is the transition id
// this action re-enters while capabilities remain unpopulated; done is the
// transition id it takes once every introduced capability is populated.
func Register(reg *action.Registry, requestTimeout time.Duration, selfLoop, done fsm.XitionID) {
	reg.Register(action.Registration{
		Name:         Name,
		ConfigSchema: schema.Any(),
		Factory: func(config map[string]interface{}, fsmDef interface{}, xition interface{}, state interface{}) (action.Invocable, error) {
			return action.InvocableFunc(func(ctxRaw, eventRaw, trailRaw interface{}, continuation action.Continuation) error {
				return invoke(ctxRaw, eventRaw, requestTimeout, selfLoop, done, continuation)
			}), nil
		},
	})
}

func invoke(ctxRaw, eventRaw interface{}, requestTimeout time.Duration, selfLoop, done fsm.XitionID, continuation action.Continuation) error {
	ctx, _ := ctxRaw.(fsm.Context)
	event, _ := eventRaw.(fsm.Event)

	brRaw, _ := ctx.Get(fsm.CtxKeyBridge)
	br, _ := brRaw.(*bridge.Bridge)
	cacheRaw, _ := ctx.Get(fsm.CtxKeyCache)
	c, _ := cacheRaw.(*cache.Cache)
	if br == nil || c == nil {
		return fsmMissingDependency()
	}

	// A notifications/{capability}/list_changed message (spec §4.4, §6)
	// arrives here as an invalidate_capability-tagged event, re-entering
	// this same state from bridgeaction's watcher goroutine rather than
	// from the normal self-loop.
	if capName, ok := event["invalidate_capability"].(string); ok {
		invalidated := c.Clone()
		invalidated.Invalidate(cache.Capability(capName))
		ctx = ctx.With(fsm.CtxKeyCache, invalidated)
		c = invalidated
	}

	cap, pending := c.NextToRefresh()
	if !pending {
		nextEvent := fsm.Event{"id": []interface{}{string(done.From), string(done.To)}}
		return continuation(ctx, nextEvent)
	}

	fut, err := br.Send(bridge.Request{ID: br.NextID(), Method: string(cap) + "/list", Params: map[string]interface{}{}})
	if err != nil {
		return err
	}
	resp, err := br.Await(context.Background(), fut, requestTimeout)
	if err != nil {
		return err
	}

	entries, err := decodeEntries(cap, resp)
	if err != nil {
		return err
	}

	next := c.Clone()
	next.Set(cap, entries)
	nextCtx := ctx.With(fsm.CtxKeyCache, next)
	nextEvent := fsm.Event{"id": []interface{}{string(selfLoop.From), string(selfLoop.To)}}
	return continuation(nextCtx, nextEvent)
}

type missingDependencyError struct{}

func (missingDependencyError) Error() string {
	return "cache-tick: context missing bridge or cache (bridge-start action must run first)"
}

func fsmMissingDependency() error { return missingDependencyError{} }
