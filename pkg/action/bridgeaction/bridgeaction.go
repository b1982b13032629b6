// Package bridgeaction implements the bridge lifecycle action: spawning
// the MCP tool-server child process, sending `initialize`, introducing
// the capabilities it claims, and handing control to the cache state
// (spec §4.2, §4.3, §4.4).
package bridgeaction

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fla/fsmforge/pkg/action"
	"github.com/fla/fsmforge/pkg/bridge"
	"github.com/fla/fsmforge/pkg/cache"
	"github.com/fla/fsmforge/pkg/fsm"
	"github.com/fla/fsmforge/pkg/fsmerr"
	"github.com/fla/fsmforge/pkg/schema"
	"go.uber.org/zap"
)

// Name is the registry key for this action.
const Name = "bridge-start"

// Config lists the settings this action works with. Register's factory
// does not populate it: it reads command and args straight from the map
// the engine validates against ConfigSchema, and takes the timeouts and
// next transition from Register's own arguments.
type Config struct {
	Command        string
	Args           []string
	Env            []string
	RequestTimeout time.Duration
	StopGrace      time.Duration
	NextTransition fsm.XitionID // where to send the post-initialize event
}

// ConfigSchema validates the action's per-state configuration block.
func ConfigSchema() schema.Value {
	return schema.Map(false,
		schema.Entry{Key: "command", Value: schema.String()},
		schema.Entry{Key: "args", Optional: true, Value: schema.CollectionOf(schema.Vector, schema.String())},
	)
}

// Register installs the bridge-start action. log is used for the
// spawned Bridge's own logger. invalidate is the transition a
// `notifications/{capability}/list_changed` message submits to re-enter
// the cache state (spec §4.4, §6: "sets it back to nil and enqueues a
// refresh request"); its To must name the cache state.
func Register(reg *action.Registry, log *zap.Logger, requestTimeout, stopGrace time.Duration, next, invalidate fsm.XitionID) {
	reg.Register(action.Registration{
		Name:         Name,
		ConfigSchema: ConfigSchema(),
		Factory: func(config map[string]interface{}, fsmDef interface{}, xition interface{}, state interface{}) (action.Invocable, error) {
			command, _ := config["command"].(string)
			var args []string
			if raw, ok := config["args"].([]interface{}); ok {
				for _, a := range raw {
					if s, ok := a.(string); ok {
						args = append(args, s)
					}
				}
			}
			return action.InvocableFunc(func(ctxRaw, eventRaw, trailRaw interface{}, continuation action.Continuation) error {
				return invoke(ctxRaw, log, bridge.Config{Command: command, Args: args}, requestTimeout, stopGrace, next, invalidate, continuation)
			}), nil
		},
	})
}

func invoke(ctxRaw interface{}, log *zap.Logger, bridgeCfg bridge.Config, requestTimeout, stopGrace time.Duration, next, invalidate fsm.XitionID, continuation action.Continuation) error {
	ctx, _ := ctxRaw.(fsm.Context)

	br, err := bridge.Spawn(bridgeCfg, log, stopGrace)
	if err != nil {
		return err
	}

	fut, err := br.Send(bridge.Request{ID: br.NextID(), Method: "initialize", Params: map[string]interface{}{}})
	if err != nil {
		return err
	}
	resp, err := br.Await(context.Background(), fut, requestTimeout)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fsmerr.Newf(fsmerr.Protocol, "bridge: initialize failed: %s", resp.Error.Message)
	}

	// Required lifecycle (spec §6): initialize -> await response ->
	// notifications/initialized -> usable. This is a notification (nil
	// id), so Send fires it without an Await.
	if _, err := br.Send(bridge.Request{Method: "notifications/initialized"}); err != nil {
		return err
	}

	c := cache.New()
	for _, cap := range capabilitiesClaimed(resp) {
		c.Introduce(cap)
	}

	if sessRaw, ok := ctx.Get(fsm.CtxKeySession); ok {
		if sess, ok := sessRaw.(*fsm.Session); ok {
			go watchListChanged(br, sess, invalidate, log)
		}
	}

	nextCtx := ctx.With(fsm.CtxKeyBridge, br).With(fsm.CtxKeyCache, c)
	nextEvent := fsm.Event{"id": []interface{}{string(next.From), string(next.To)}}
	return continuation(nextCtx, nextEvent)
}

// watchListChanged ranges over the bridge's notifications for the
// lifetime of the bridge (the channel closes once the reader loop
// observes stdout EOF), submitting invalidate onto sess for every
// `notifications/{capability}/list_changed` message so the cache state
// re-enters and refetches it (spec §4.4, Testable Property 5, S4).
func watchListChanged(br *bridge.Bridge, sess *fsm.Session, invalidate fsm.XitionID, log *zap.Logger) {
	for n := range br.Notifications {
		cap, ok := capabilityFromListChanged(n.Method)
		if !ok {
			continue
		}
		event := fsm.Event{
			"id":                    []interface{}{string(invalidate.From), string(invalidate.To)},
			"invalidate_capability": string(cap),
		}
		if err := sess.Submit(event); err != nil {
			log.Debug("bridge: notification dropped, session no longer accepting events", zap.String("method", n.Method))
			return
		}
	}
}

// capabilityFromListChanged recognizes the three
// `notifications/{capability}/list_changed` methods spec §6 names.
func capabilityFromListChanged(method string) (cache.Capability, bool) {
	for _, cap := range []cache.Capability{cache.Tools, cache.Prompts, cache.Resources} {
		if method == "notifications/"+string(cap)+"/list_changed" {
			return cap, true
		}
	}
	return "", false
}

// capabilitiesClaimed inspects an initialize response's capabilities
// block for the MCP capability names this cache tracks (tools, prompts,
// resources), per spec §4.4: "capabilities the server claims to support
// ... are introduced as nil entries".
func capabilitiesClaimed(resp bridge.Response) []cache.Capability {
	var caps map[string]interface{}
	if resp.Result == nil {
		return nil
	}
	_ = json.Unmarshal(resp.Result, &caps)
	serverCaps, _ := caps["capabilities"].(map[string]interface{})

	var out []cache.Capability
	for key, capName := range map[string]cache.Capability{
		"tools":     cache.Tools,
		"prompts":   cache.Prompts,
		"resources": cache.Resources,
	} {
		if _, ok := serverCaps[key]; ok {
			out = append(out, capName)
		}
	}
	return out
}
